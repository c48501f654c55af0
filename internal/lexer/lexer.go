package lexer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
	dict         symbols.Dictionary
}

// New creates a lexer. Identifiers that are not reserved words are
// classified against dict; a nil dict leaves them all IDENT.
func New(input string, dict symbols.Dictionary) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0, dict: dict}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	switch l.ch {
	case '(':
		tok = newToken(token.LPAREN, l.ch, l.line, l.column)
	case ')':
		tok = newToken(token.RPAREN, l.ch, l.line, l.column)
	case '{':
		tok = newToken(token.LBRACE, l.ch, l.line, l.column)
	case '}':
		tok = newToken(token.RBRACE, l.ch, l.line, l.column)
	case ',':
		tok = newToken(token.COMMA, l.ch, l.line, l.column)
	case ':':
		tok = newToken(token.COLON, l.ch, l.line, l.column)
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, l.line, l.column)
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		tok = newToken(token.DOT, l.ch, l.line, l.column)
	case '$':
		tok = newToken(token.DOLLAR, l.ch, l.line, l.column)
	case '=':
		tok = newToken(token.ASSIGN, l.ch, l.line, l.column)
	case '+':
		tok = newToken(token.PLUS, l.ch, l.line, l.column)
	case '-':
		tok = newToken(token.MINUS, l.ch, l.line, l.column)
	case '*':
		tok = newToken(token.ASTERISK, l.ch, l.line, l.column)
	case '"', '\'':
		return l.readString()
	case 0:
		if l.position < len(l.input) {
			tok = newToken(token.ILLEGAL, l.ch, l.line, l.column)
			tok.Literal = diagnostics.NewError(diagnostics.ErrL001, tok, "unrecognized character %q", l.ch)
			break
		}
		tok.Type = token.EOF
		tok.Line = l.line
		tok.Column = l.column
		return tok
	default:
		if isLetter(l.ch) {
			startLine, startCol := l.line, l.column
			lexeme := l.readIdentifier()
			tok = token.Token{Type: token.IDENT, Lexeme: lexeme, Literal: lexeme, Line: startLine, Column: startCol}
			return Classify(tok, l.dict)
		} else if isDigit(l.ch) {
			return l.readNumber()
		}
		tok = newToken(token.ILLEGAL, l.ch, l.line, l.column)
		tok.Literal = diagnostics.NewError(diagnostics.ErrL001, tok, "unrecognized character %q", l.ch)
	}

	l.readChar()
	return tok
}

// Classify resolves an identifier token: reserved words first, then the
// symbol dictionary. Dictionary failures other than "not found" turn the
// token ILLEGAL with an I/O diagnostic as literal.
func Classify(tok token.Token, dict symbols.Dictionary) token.Token {
	if tok.Type != token.IDENT && !tok.Type.IsSymbol() {
		return tok
	}
	tok.Type = token.LookupIdent(tok.Lexeme)
	if tok.Type != token.IDENT {
		tok.Literal = tok.Lexeme
		return tok
	}
	if dict == nil {
		tok.Literal = tok.Lexeme
		return tok
	}

	sym, err := dict.Lookup(tok.Lexeme)
	switch {
	case errors.Is(err, symbols.ErrNotFound):
		tok.Literal = tok.Lexeme
		return tok
	case err != nil:
		tok.Type = token.ILLEGAL
		tok.Literal = diagnostics.NewError(diagnostics.ErrI001, tok, "looking up %s: %v", tok.Lexeme, err)
		return tok
	}

	switch sym.Kind {
	case symbols.KindVar:
		tok.Type = token.SYM_VAR
	case symbols.KindEqu:
		tok.Type = token.SYM_EQU
	case symbols.KindSet:
		tok.Type = token.SYM_SET
	case symbols.KindParam:
		tok.Type = token.SYM_PARAM
	default:
		tok.Literal = tok.Lexeme
		return tok
	}
	tok.Literal = sym
	return tok
}

// readString reads a quoted element label. Both quote styles are accepted;
// the label may not span lines.
func (l *Lexer) readString() token.Token {
	startLine, startCol := l.line, l.column
	quote := l.ch
	position := l.position + 1
	for {
		l.readChar()
		if l.ch == quote {
			break
		}
		if l.ch == 0 || l.ch == '\n' {
			tok := token.Token{Type: token.ILLEGAL, Lexeme: l.input[position-1 : l.position], Line: startLine, Column: startCol}
			tok.Literal = diagnostics.NewError(diagnostics.ErrL002, tok, "unterminated element label")
			return tok
		}
	}
	label := l.input[position:l.position]
	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Lexeme: l.input[position-1 : l.position], Literal: label, Line: startLine, Column: startCol}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an unsigned decimal number with optional fraction and
// exponent. Every number is a float64 literal.
func (l *Lexer) readNumber() token.Token {
	startLine, startCol := l.line, l.column
	position := l.position

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar() // e
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lexeme := l.input[position:l.position]
	tok := token.Token{Type: token.NUMBER, Lexeme: lexeme, Line: startLine, Column: startCol}
	val, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		tok.Type = token.ILLEGAL
		tok.Literal = diagnostics.NewError(diagnostics.ErrL001, tok, "malformed number %s", lexeme)
		return tok
	}
	tok.Literal = val
	return tok
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func newToken(tokenType token.TokenType, ch byte, line, col int) token.Token {
	literal := string(ch)
	return token.Token{Type: tokenType, Lexeme: literal, Literal: literal, Line: line, Column: col}
}

// skipWhitespace also skips '#' comments up to the end of the line.
func (l *Lexer) skipWhitespace() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// Tokenize scans the whole input. It is used by tests and the disasm
// command; the pipeline reads tokens lazily through a TokenStream.
func Tokenize(input string, dict symbols.Dictionary) []token.Token {
	l := New(input, dict)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

// Describe renders tokens as "TYPE:lexeme" pairs, for traces and tests.
func Describe(toks []token.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		if t.Lexeme == "" {
			parts[i] = string(t.Type)
			continue
		}
		parts[i] = string(t.Type) + ":" + t.Lexeme
	}
	return strings.Join(parts, " ")
}
