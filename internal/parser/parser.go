package parser

import (
	"strings"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/token"
)

type bindKind int

const (
	bindLoop  bindKind = iota // element of a loop, sum or implicit loop
	bindLocal                 // local set from def
)

type scope map[string]bindKind

type Parser struct {
	stream pipeline.TokenStream
	ctx    *pipeline.PipelineContext

	curToken  token.Token
	peekToken token.Token

	keyword  string // leading keyword of the statement being parsed
	scopes   []scope
	loopDims int

	// halted is set by the first error; the parse functions then return
	// nil up to ParseProgram.
	halted bool
}

func New(stream pipeline.TokenStream, ctx *pipeline.PipelineContext) *Parser {
	p := &Parser{stream: stream, ctx: ctx}
	// Read two tokens, so curToken and peekToken are both set
	p.curToken = p.stream.Next()
	p.peekToken = p.stream.Next()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.stream.Next()
	p.checkIllegal()
}

func (p *Parser) checkIllegal() {
	if p.curToken.Type == token.ILLEGAL {
		if d, ok := p.curToken.Literal.(*diagnostics.DiagnosticError); ok {
			p.fail(d)
			return
		}
		p.errorf(diagnostics.ErrL001, p.curToken, "illegal token %q", p.curToken.Lexeme)
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

// expect consumes the current token when it has type t. It reports false
// when the token is missing or the parser has already halted.
func (p *Parser) expect(t token.TokenType) bool {
	if p.halted {
		return false
	}
	if p.curToken.Type != t {
		p.unexpected(describe(t))
		return false
	}
	p.nextToken()
	return !p.halted
}

// accept consumes the current token when it has type t.
func (p *Parser) accept(t token.TokenType) bool {
	if p.halted || p.curToken.Type != t {
		return false
	}
	p.nextToken()
	return true
}

// lookahead returns the token n positions after curToken; 1 is peekToken.
func (p *Parser) lookahead(n int) token.Token {
	if n <= 1 {
		return p.peekToken
	}
	toks := p.stream.Peek(n - 1)
	if len(toks) < n-1 {
		if len(toks) > 0 {
			return toks[len(toks)-1]
		}
		return token.Token{Type: token.EOF}
	}
	return toks[n-2]
}

// fail records d and halts the parser. Only the first error is kept.
func (p *Parser) fail(d *diagnostics.DiagnosticError) {
	if p.halted {
		return
	}
	if d.Context == "" {
		d.Context = p.keyword
	}
	if d.File == "" {
		d.File = p.ctx.FilePath
	}
	p.ctx.Errors = append(p.ctx.Errors, d)
	p.halted = true
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	p.fail(diagnostics.NewError(code, tok, format, args...))
}

func (p *Parser) unexpected(expected ...string) {
	d := diagnostics.NewError(diagnostics.ErrP001, p.curToken, "unexpected %s", tokenDesc(p.curToken))
	p.fail(d.WithExpected(expected...))
}

func tokenDesc(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER, token.STRING:
		return strings.ToLower(string(tok.Type)) + " " + tok.Lexeme
	}
	if tok.Type.IsSymbol() {
		return "symbol " + tok.Lexeme
	}
	return "'" + tok.Lexeme + "'"
}

func describe(t token.TokenType) string {
	switch t {
	case token.IDENT:
		return "identifier"
	case token.STRING:
		return "element label"
	case token.NUMBER:
		return "number"
	case token.SYM_SET:
		return "set"
	case token.SYM_VAR:
		return "variable"
	case token.SYM_EQU:
		return "equation"
	case token.SYM_PARAM:
		return "parameter"
	case token.EOF:
		return "end of input"
	}
	if t.IsKeyword() {
		return "'" + token.KeywordText(t) + "'"
	}
	return "'" + string(t) + "'"
}

func (p *Parser) pushScope() { p.scopes = append(p.scopes, scope{}) }
func (p *Parser) popScope()  { p.scopes = p.scopes[:len(p.scopes)-1] }

func (p *Parser) bind(tok token.Token, name string, kind bindKind) bool {
	key := strings.ToLower(name)
	if _, dup := p.scopes[len(p.scopes)-1][key]; dup {
		p.errorf(diagnostics.ErrS005, tok, "%s is already bound in this scope", name)
		return false
	}
	if kind == bindLoop {
		if k, ok := p.resolve(name); ok && k == bindLoop {
			p.errorf(diagnostics.ErrS005, tok, "%s is already iterated by an enclosing loop", name)
			return false
		}
	}
	p.scopes[len(p.scopes)-1][key] = kind
	return true
}

func (p *Parser) resolve(name string) (bindKind, bool) {
	key := strings.ToLower(name)
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if k, ok := p.scopes[i][key]; ok {
			return k, true
		}
	}
	return 0, false
}

// ParseProgram parses statements up to the end of input. It stops at the
// first error, which is recorded in the pipeline context; the statements
// before it are kept.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.ctx.FilePath}

	p.checkIllegal()
	for !p.halted && !p.curTokenIs(token.EOF) {
		if p.accept(token.SEMICOLON) {
			continue
		}
		stmt := p.parseStatement(true)
		if p.halted {
			break
		}
		program.Statements = append(program.Statements, stmt)
	}
	return program
}
