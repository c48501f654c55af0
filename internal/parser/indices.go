package parser

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

// parseIndexList parses '(' index {',' index} ')'. An absent list is an
// empty one; callers tell it from an error with p.halted.
func (p *Parser) parseIndexList() []*ast.Index {
	if !p.curTokenIs(token.LPAREN) {
		return nil
	}
	open := p.curToken
	if !p.expect(token.LPAREN) {
		return nil
	}
	var indices []*ast.Index
	for {
		idx := p.parseIndex()
		if idx == nil {
			return nil
		}
		indices = append(indices, idx)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	if len(indices) > config.MaxIndexDims {
		p.errorf(diagnostics.ErrS003, open, "%d indices exceed the limit of %d", len(indices), config.MaxIndexDims)
		return nil
	}
	return indices
}

func (p *Parser) parseIndex() *ast.Index {
	tok := p.curToken
	switch tok.Type {
	case token.STRING:
		p.nextToken()
		return &ast.Index{Token: tok, Kind: ast.IndexElem, Label: tok.Literal.(string)}
	case token.ASTERISK:
		p.nextToken()
		return &ast.Index{Token: tok, Kind: ast.IndexWildcard}
	case token.IDENT, token.SYM_SET:
	default:
		p.unexpected("element label", "set", "'*'")
		return nil
	}
	p.nextToken()

	if kind, ok := p.resolve(tok.Lexeme); ok {
		if kind == bindLoop {
			return &ast.Index{Token: tok, Kind: ast.IndexLoopVar, Name: tok.Lexeme}
		}
		return &ast.Index{Token: tok, Kind: ast.IndexLocalSet, Name: tok.Lexeme}
	}
	if tok.Type == token.SYM_SET {
		sym := tok.Literal.(symbols.Symbol)
		if sym.Dim != 1 {
			p.errorf(diagnostics.ErrS002, tok, "set %s has dimension %d and cannot be used as an index", tok.Lexeme, sym.Dim)
			return nil
		}
		return &ast.Index{Token: tok, Kind: ast.IndexSet, Name: tok.Lexeme, Set: sym}
	}
	p.errorf(diagnostics.ErrS001, tok, "unknown index %s (quote element labels: '%s')", tok.Lexeme, tok.Lexeme)
	return nil
}

// parseSymbolRef parses a variable, equation or parameter reference.
func (p *Parser) parseSymbolRef() *ast.SymbolRef {
	tok := p.curToken
	if !tok.Type.IsSymbol() || tok.Type == token.SYM_SET {
		p.unexpected("variable", "equation", "parameter")
		return nil
	}
	p.nextToken()
	sym := tok.Literal.(symbols.Symbol)
	indices := p.parseIndexList()
	if p.halted {
		return nil
	}
	if len(indices) != sym.Dim {
		p.errorf(diagnostics.ErrS002, tok, "%s %s has dimension %d, got %d indices", sym.Kind, sym.Name, sym.Dim, len(indices))
		return nil
	}
	return &ast.SymbolRef{Token: tok, Symbol: sym, Indices: indices}
}

// parseLabelRef parses basename[(indices)]. Wildcards cannot name a node.
func (p *Parser) parseLabelRef() *ast.LabelRef {
	tok := p.curToken
	if !p.expect(token.IDENT) {
		return nil
	}
	indices := p.parseIndexList()
	if p.halted || !p.noWildcard(indices) {
		return nil
	}
	return &ast.LabelRef{Token: tok, Basename: tok.Lexeme, Indices: indices}
}

func (p *Parser) noWildcard(indices []*ast.Index) bool {
	for _, idx := range indices {
		if idx.Kind == ast.IndexWildcard {
			p.errorf(diagnostics.ErrS002, idx.Token, "a wildcard cannot name a node")
			return false
		}
	}
	return true
}

// isLabelDecl reports whether the IDENT at curToken starts a labelled
// declaration: IDENT [ '(' ... ')' ] ( ':' | '$' ).
func (p *Parser) isLabelDecl() bool {
	if !p.curTokenIs(token.IDENT) {
		return false
	}
	n := 1
	tok := p.lookahead(n)
	if tok.Type == token.LPAREN {
		depth := 0
		for {
			switch tok.Type {
			case token.LPAREN:
				depth++
			case token.RPAREN:
				depth--
			case token.EOF:
				return false
			}
			if depth == 0 {
				break
			}
			n++
			tok = p.lookahead(n)
		}
		n++
		tok = p.lookahead(n)
	}
	return tok.Type == token.COLON || tok.Type == token.DOLLAR
}

// parseLabelDecl parses the name of a declaration up to and including the
// colon. The free sets of the label are bound as loop elements in a new
// scope, which the caller closes after the declaration body.
func (p *Parser) parseLabelDecl() *ast.LabelDecl {
	tok := p.curToken
	if !p.expect(token.IDENT) {
		return nil
	}
	indices := p.parseIndexList()
	if p.halted || !p.noWildcard(indices) {
		return nil
	}
	decl := &ast.LabelDecl{Token: tok, Basename: tok.Lexeme, Indices: indices}

	p.pushScope()
	free := ast.FreeSets(decl.Indices)
	if !p.checkLoopDims(tok, len(free)) {
		return nil
	}
	for _, idx := range free {
		if !p.bind(idx.Token, idx.Name, bindLoop) {
			return nil
		}
	}
	p.loopDims += len(free)
	if p.accept(token.DOLLAR) {
		if decl.Cond = p.parseCondAtom(); decl.Cond == nil {
			return nil
		}
	}
	if !p.expect(token.COLON) {
		return nil
	}
	return decl
}

// closeLabelDecl pops the scope opened by parseLabelDecl.
func (p *Parser) closeLabelDecl(decl *ast.LabelDecl) {
	p.loopDims -= len(ast.FreeSets(decl.Indices))
	p.popScope()
}

func (p *Parser) checkLoopDims(tok token.Token, add int) bool {
	if p.loopDims+add > config.MaxIndexDims {
		p.errorf(diagnostics.ErrS003, tok, "%d nested loop dimensions exceed the limit of %d", p.loopDims+add, config.MaxIndexDims)
		return false
	}
	return true
}

// parseSetRef parses a set name: a dictionary set or a local set.
func (p *Parser) parseSetRef() *ast.SetRef {
	tok := p.curToken
	if tok.Type != token.IDENT && tok.Type != token.SYM_SET {
		p.unexpected("set")
		return nil
	}
	p.nextToken()
	if kind, ok := p.resolve(tok.Lexeme); ok {
		if kind == bindLocal {
			return &ast.SetRef{Token: tok, Name: tok.Lexeme, Local: true}
		}
		if tok.Type != token.SYM_SET {
			p.errorf(diagnostics.ErrS002, tok, "%s is a loop element, not a set", tok.Lexeme)
			return nil
		}
	}
	if tok.Type != token.SYM_SET {
		p.errorf(diagnostics.ErrS001, tok, "unknown set %s", tok.Lexeme)
		return nil
	}
	return &ast.SetRef{Token: tok, Name: tok.Lexeme, Set: tok.Literal.(symbols.Symbol)}
}

// parseDomain parses setname | '(' setname {',' setname} ')' followed by an
// optional '$' condition, and binds the sets as loop elements in a new
// scope the caller closes. Iterated sets must be one-dimensional.
func (p *Parser) parseDomain() *ast.Domain {
	dom := &ast.Domain{Token: p.curToken}
	if p.accept(token.LPAREN) {
		for {
			s := p.parseSetRef()
			if s == nil {
				return nil
			}
			dom.Sets = append(dom.Sets, s)
			if !p.accept(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
	} else {
		s := p.parseSetRef()
		if s == nil || p.halted {
			return nil
		}
		dom.Sets = append(dom.Sets, s)
	}

	for _, s := range dom.Sets {
		if !s.Local && s.Set.Dim != 1 {
			p.errorf(diagnostics.ErrS002, s.Token, "cannot iterate over %s of dimension %d", s.Name, s.Set.Dim)
			return nil
		}
	}

	p.pushScope()
	if !p.checkLoopDims(dom.Token, len(dom.Sets)) {
		return nil
	}
	for _, s := range dom.Sets {
		if !p.bind(s.Token, s.Name, bindLoop) {
			return nil
		}
	}
	p.loopDims += len(dom.Sets)

	if p.accept(token.DOLLAR) {
		if dom.Cond = p.parseCondAtom(); dom.Cond == nil {
			return nil
		}
	}
	return dom
}

// closeDomain pops the scope opened by parseDomain.
func (p *Parser) closeDomain(dom *ast.Domain) {
	p.loopDims -= len(dom.Sets)
	p.popScope()
}

// Conditions: or < and < not. Each parser returns nil on error.

func (p *Parser) parseCondition() ast.Condition {
	left := p.parseConjunction()
	for left != nil && p.curTokenIs(token.OR) {
		tok := p.curToken
		p.nextToken()
		right := p.parseConjunction()
		if right == nil {
			return nil
		}
		left = &ast.OrCond{Token: tok, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseConjunction() ast.Condition {
	left := p.parseCondAtom()
	for left != nil && p.curTokenIs(token.AND) {
		tok := p.curToken
		p.nextToken()
		right := p.parseCondAtom()
		if right == nil {
			return nil
		}
		left = &ast.AndCond{Token: tok, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseCondAtom() ast.Condition {
	if p.halted {
		return nil
	}
	tok := p.curToken
	switch tok.Type {
	case token.NOT:
		p.nextToken()
		operand := p.parseCondAtom()
		if operand == nil {
			return nil
		}
		return &ast.NotCond{Token: tok, Operand: operand}
	case token.LPAREN:
		p.nextToken()
		cond := p.parseCondition()
		if cond == nil || !p.expect(token.RPAREN) {
			return nil
		}
		return cond
	case token.SAMEAS:
		p.nextToken()
		if !p.expect(token.LPAREN) {
			return nil
		}
		left := p.parseIndex()
		if left == nil || !p.expect(token.COMMA) {
			return nil
		}
		right := p.parseIndex()
		if right == nil || !p.expect(token.RPAREN) {
			return nil
		}
		for _, idx := range []*ast.Index{left, right} {
			if idx.Kind != ast.IndexElem && idx.Kind != ast.IndexLoopVar {
				p.errorf(diagnostics.ErrS002, idx.Token, "sameas compares elements, got %s %s", idx.Kind, idx.Token.Lexeme)
				return nil
			}
		}
		return &ast.SameAs{Token: tok, Left: left, Right: right}
	case token.SYM_PARAM:
		ref := p.parseSymbolRef()
		if ref == nil || !p.requireElements(ref.Indices) {
			return nil
		}
		return &ast.ParamCond{Token: tok, Param: ref}
	case token.SYM_SET, token.IDENT:
		set := p.parseSetRef()
		if set == nil {
			return nil
		}
		if !p.curTokenIs(token.LPAREN) {
			p.unexpected("'('")
			return nil
		}
		indices := p.parseIndexList()
		if p.halted {
			return nil
		}
		want := 1
		if !set.Local {
			want = set.Set.Dim
		}
		if len(indices) != want {
			p.errorf(diagnostics.ErrS002, tok, "set %s has dimension %d, got %d indices", set.Name, want, len(indices))
			return nil
		}
		if !p.requireElements(indices) {
			return nil
		}
		return &ast.InSet{Token: tok, Set: set, Indices: indices}
	}
	p.unexpected("'not'", "'('", "'sameas'", "set", "parameter")
	return nil
}

// requireElements rejects indices that do not denote a single element.
func (p *Parser) requireElements(indices []*ast.Index) bool {
	for _, idx := range indices {
		if idx.Kind != ast.IndexElem && idx.Kind != ast.IndexLoopVar {
			p.errorf(diagnostics.ErrS002, idx.Token, "a condition needs an element here, got %s %s", idx.Kind, idx.Token.Lexeme)
			return false
		}
	}
	return true
}
