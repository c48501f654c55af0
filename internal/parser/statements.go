package parser

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/token"
)

// parseStatement dispatches on the leading reserved word. Root and load
// statements are only valid at top level.
func (p *Parser) parseStatement(topLevel bool) ast.Statement {
	p.keyword = p.curToken.Lexeme

	switch p.curToken.Type {
	case token.IDENT:
		if p.isLabelDecl() {
			return p.parseLabelledDecl()
		}
	case token.MIN, token.MAX, token.VI, token.FEASIBILITY, token.NASH, token.CCF:
		return p.parseDecl(nil)
	case token.OVF:
		ovf := p.parseOvf()
		if ovf == nil {
			return nil
		}
		ast.Classify(ovf)
		return ovf
	case token.LOOP:
		if l := p.parseLoop(); l != nil {
			return l
		}
		return nil
	case token.DEF:
		if d := p.parseDef(); d != nil {
			return d
		}
		return nil
	case token.ROOT:
		if !topLevel {
			p.errorf(diagnostics.ErrP001, p.curToken, "root can only be declared at top level")
			return nil
		}
		if r := p.parseRoot(); r != nil {
			return r
		}
		return nil
	case token.LOAD:
		if !topLevel {
			p.errorf(diagnostics.ErrP001, p.curToken, "load is only allowed at top level")
			return nil
		}
		if l := p.parseLoad(); l != nil {
			return l
		}
		return nil
	case token.SUM:
		p.errorf(diagnostics.ErrP003, p.curToken, "sum is only allowed inside a node body")
		return nil
	case token.LEGACY:
		p.errorf(diagnostics.ErrP002, p.curToken, "legacy EMP keyword %s is not supported", p.curToken.Lexeme)
		return nil
	}
	p.unexpected("statement")
	return nil
}

func (p *Parser) parseLabelledDecl() ast.Statement {
	label := p.parseLabelDecl()
	if label == nil {
		return nil
	}
	defer p.closeLabelDecl(label)
	switch p.curToken.Type {
	case token.MIN, token.MAX, token.VI, token.FEASIBILITY, token.NASH, token.CCF:
		p.keyword = p.curToken.Lexeme
		return p.parseDecl(label)
	}
	p.unexpected("'min'", "'max'", "'vi'", "'feasibility'", "'nash'", "'ccf'")
	return nil
}

func (p *Parser) parseDecl(label *ast.LabelDecl) ast.Statement {
	var stmt ast.Statement
	switch p.curToken.Type {
	case token.NASH:
		if n := p.parseNash(label); n != nil {
			stmt = n
		}
	case token.CCF:
		if c := p.parseCCF(label); c != nil {
			stmt = c
		}
	default:
		if n := p.parseNode(label); n != nil {
			stmt = n
		}
	}
	if stmt == nil || p.halted {
		return nil
	}
	ast.Classify(stmt)
	return stmt
}

func (p *Parser) parseNode(label *ast.LabelDecl) *ast.NodeDecl {
	tok := p.curToken
	p.nextToken()
	n := &ast.NodeDecl{Token: tok, Label: label, Kind: tok.Type}
	if tok.Type == token.MIN || tok.Type == token.MAX {
		if !p.curTokenIs(token.SYM_VAR) && !p.curTokenIs(token.SYM_EQU) {
			p.unexpected("objective variable", "objective equation")
			return nil
		}
		if n.Objective = p.parseSymbolRef(); n.Objective == nil {
			return nil
		}
	}
	n.Body = p.parseBody(tok.Type, bodyEnd)
	if p.halted {
		return nil
	}
	return n
}

// parseNash parses nash '(' member {',' member} ')'.
func (p *Parser) parseNash(label *ast.LabelDecl) *ast.NashDecl {
	n := &ast.NashDecl{Token: p.curToken, Label: label}
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	n.Members = p.parseMembers()
	if n.Members == nil || !p.expect(token.RPAREN) {
		return nil
	}
	return n
}

// parseMembers returns nil on error; a member list is never empty.
func (p *Parser) parseMembers() []ast.BodyItem {
	var members []ast.BodyItem
	for {
		switch p.curToken.Type {
		case token.IDENT:
			ref := p.parseLabelRef()
			if ref == nil {
				return nil
			}
			members = append(members, &ast.LabelItem{Label: ref})
		case token.SUM:
			tok := p.curToken
			p.nextToken()
			if !p.expect(token.LPAREN) {
				return nil
			}
			dom := p.parseDomain()
			if dom == nil || !p.expect(token.COMMA) {
				return nil
			}
			items := p.parseMembers()
			if items == nil {
				return nil
			}
			p.closeDomain(dom)
			if !p.expect(token.RPAREN) {
				return nil
			}
			members = append(members, &ast.SumItem{Token: tok, Domain: dom, Items: items})
		default:
			p.unexpected("node label", "'sum'")
			return nil
		}
		if !p.accept(token.COMMA) {
			return members
		}
	}
}

// parseCCF parses ccf FUNC result {arg} {param = coef}.
func (p *Parser) parseCCF(label *ast.LabelDecl) *ast.CCFDecl {
	c := &ast.CCFDecl{Token: p.curToken, Label: label}
	p.nextToken()
	c.Func, c.Result, c.Args, c.Params = p.parseFunctionBody()
	if p.halted {
		return nil
	}
	return c
}

// parseOvf parses ovf FUNC result {arg} {param = coef}.
func (p *Parser) parseOvf() *ast.OvfDecl {
	o := &ast.OvfDecl{Token: p.curToken}
	p.nextToken()
	o.Func, o.Result, o.Args, o.Params = p.parseFunctionBody()
	if p.halted {
		return nil
	}
	return o
}

func (p *Parser) parseFunctionBody() (string, *ast.SymbolRef, []*ast.SymbolRef, []*ast.ParamAssign) {
	fn := p.curToken
	if !p.expect(token.IDENT) {
		return "", nil, nil, nil
	}
	if !p.curTokenIs(token.SYM_VAR) {
		p.unexpected("result variable")
		return "", nil, nil, nil
	}
	result := p.parseSymbolRef()
	if result == nil {
		return "", nil, nil, nil
	}

	var args []*ast.SymbolRef
	for !p.halted && p.curTokenIs(token.SYM_VAR) {
		arg := p.parseSymbolRef()
		if arg == nil {
			return "", nil, nil, nil
		}
		args = append(args, arg)
	}
	if len(args) == 0 {
		p.unexpected("argument variable")
		return "", nil, nil, nil
	}

	var params []*ast.ParamAssign
	for !p.halted && p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN) {
		tok := p.curToken
		p.nextToken()
		p.nextToken()
		coef := p.parseCoef()
		if coef == nil {
			return "", nil, nil, nil
		}
		params = append(params, &ast.ParamAssign{Token: tok, Name: tok.Lexeme, Value: coef})
	}
	return fn.Lexeme, result, args, params
}

// parseCoef parses a number or a parameter reference.
func (p *Parser) parseCoef() *ast.Coef {
	tok := p.curToken
	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &ast.Coef{Token: tok, Value: tok.Literal.(float64)}
	case token.MINUS:
		p.nextToken()
		c := p.parseCoef()
		if c == nil {
			return nil
		}
		if c.Param != nil {
			p.errorf(diagnostics.ErrP001, tok, "a parameter coefficient cannot be negated here")
			return nil
		}
		c.Token = tok
		c.Value = -c.Value
		return c
	case token.SYM_PARAM:
		ref := p.parseSymbolRef()
		if ref == nil || !p.requireElements(ref.Indices) {
			return nil
		}
		return &ast.Coef{Token: tok, Param: ref}
	}
	p.unexpected("number", "parameter")
	return nil
}

func (p *Parser) parseRoot() *ast.RootStmt {
	r := &ast.RootStmt{Token: p.curToken}
	p.nextToken()
	if !p.expect(token.COLON) {
		return nil
	}
	if r.Label = p.parseLabelRef(); r.Label == nil {
		return nil
	}
	for _, idx := range r.Label.Indices {
		if idx.Kind != ast.IndexElem {
			p.errorf(diagnostics.ErrS002, idx.Token, "the root label needs fixed elements, got %s %s", idx.Kind, idx.Token.Lexeme)
			return nil
		}
	}
	return r
}

// parseLoop parses loop '(' domain ',' {statement} ')'.
func (p *Parser) parseLoop() *ast.LoopStmt {
	l := &ast.LoopStmt{Token: p.curToken}
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	if l.Domain = p.parseDomain(); l.Domain == nil || !p.expect(token.COMMA) {
		return nil
	}
	l.Body = p.parseNested()
	if p.halted {
		return nil
	}
	p.closeDomain(l.Domain)
	if !p.expect(token.RPAREN) {
		return nil
	}
	return l
}

// parseDef parses def '(' name = localset {',' name = localset} ','
// {statement} ')'.
func (p *Parser) parseDef() *ast.DefStmt {
	d := &ast.DefStmt{Token: p.curToken}
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}

	var bindings []*ast.Binding
	for p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN) {
		b := p.parseBinding()
		if b == nil || !p.expect(token.COMMA) {
			return nil
		}
		bindings = append(bindings, b)
	}
	if len(bindings) == 0 {
		p.unexpected("local set definition")
		return nil
	}

	p.pushScope()
	for _, b := range bindings {
		if !p.bind(b.Token, b.Name, bindLocal) {
			return nil
		}
	}
	d.Bindings = bindings
	d.Body = p.parseNested()
	if p.halted {
		return nil
	}
	p.popScope()
	if !p.expect(token.RPAREN) {
		return nil
	}
	return d
}

func (p *Parser) parseBinding() *ast.Binding {
	tok := p.curToken
	if !p.expect(token.IDENT) || !p.expect(token.ASSIGN) {
		return nil
	}
	b := &ast.Binding{Token: tok, Name: tok.Lexeme}
	if p.accept(token.LBRACE) {
		for {
			el := p.curToken
			if !p.expect(token.STRING) {
				return nil
			}
			b.Elements = append(b.Elements, el.Literal.(string))
			if !p.accept(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RBRACE) {
			return nil
		}
		return b
	}
	if b.Set = p.parseSetRef(); b.Set == nil {
		return nil
	}
	if !b.Set.Local && b.Set.Set.Dim != 1 {
		p.errorf(diagnostics.ErrS002, b.Set.Token, "a local set copies a one-dimensional set, %s has dimension %d", b.Set.Name, b.Set.Set.Dim)
		return nil
	}
	return b
}

// parseNested parses statements up to the closing parenthesis of a loop or
// def, which is left for the caller.
func (p *Parser) parseNested() []ast.Statement {
	var body []ast.Statement
	for !p.halted && !p.curTokenIs(token.RPAREN) {
		if p.curTokenIs(token.EOF) {
			p.unexpected("')'")
			return nil
		}
		if p.accept(token.SEMICOLON) {
			continue
		}
		keyword := p.keyword
		stmt := p.parseStatement(false)
		if p.halted {
			return nil
		}
		body = append(body, stmt)
		p.keyword = keyword
	}
	return body
}

// parseLoad runs the load immediately: identifiers after it are classified
// against the merged dictionary.
func (p *Parser) parseLoad() *ast.LoadStmt {
	l := &ast.LoadStmt{Token: p.curToken}
	if !p.peekTokenIs(token.STRING) {
		p.nextToken()
		p.unexpected("file name")
		return nil
	}
	p.nextToken()
	pathTok := p.curToken
	l.Path = pathTok.Literal.(string)

	if err := p.ctx.LoadData(l.Path); err != nil {
		p.errorf(diagnostics.ErrI001, pathTok, "load %s: %v", l.Path, err)
		return nil
	}
	p.stream.Reclassify()
	p.peekToken = p.stream.Classify(p.peekToken)
	p.nextToken()
	return l
}
