package parser

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/token"
)

type bodyMode int

const (
	bodyEnd bodyMode = iota // body of a declaration, ends at the next statement
	bodySum                 // body of a sum, ends at ')'
)

// atBodyEnd reports whether curToken terminates a declaration body. A
// halted parser is always at the end.
func (p *Parser) atBodyEnd() bool {
	if p.halted {
		return true
	}
	switch p.curToken.Type {
	case token.EOF, token.RPAREN, token.LEGACY,
		token.MIN, token.MAX, token.VI, token.FEASIBILITY, token.NASH, token.CCF,
		token.LOOP, token.DEF, token.ROOT, token.LOAD:
		return true
	case token.IDENT:
		return p.isLabelDecl()
	}
	return false
}

// parseBody parses body items of a node of the given kind.
func (p *Parser) parseBody(kind token.TokenType, mode bodyMode) []ast.BodyItem {
	var items []ast.BodyItem
	for !p.atBodyEnd() {
		if p.accept(token.SEMICOLON) {
			continue
		}
		if mode == bodySum && p.accept(token.COMMA) {
			continue
		}
		item := p.parseBodyItem(kind)
		if item == nil {
			return nil
		}
		items = append(items, item)
	}
	return items
}

// parseBodyItem returns nil on error.
func (p *Parser) parseBodyItem(kind token.TokenType) ast.BodyItem {
	tok := p.curToken
	switch tok.Type {
	case token.SYM_VAR:
		if p.isWeightedVar() {
			return weighted(p.parseWeighted(kind, tok, 1))
		}
		if ref := p.parseSymbolRef(); ref != nil {
			return &ast.SymbolItem{Ref: ref}
		}
	case token.SYM_EQU:
		ref := p.parseSymbolRef()
		if ref == nil {
			return nil
		}
		item := &ast.SymbolItem{Ref: ref}
		if kind == token.VI && p.curTokenIs(token.SYM_VAR) && !p.isWeightedVar() {
			if item.Pair = p.parseSymbolRef(); item.Pair == nil {
				return nil
			}
		}
		return item
	case token.NUMBER, token.SYM_PARAM:
		return weighted(p.parseWeighted(kind, tok, 1))
	case token.MINUS:
		if p.peekTokenIs(token.SYM_EQU) {
			p.nextToken()
			if ref := p.parseSymbolRef(); ref != nil {
				return &ast.SymbolItem{Ref: ref, Flipped: true}
			}
			return nil
		}
		p.nextToken()
		return p.parseSigned(kind, tok, -1)
	case token.PLUS:
		p.nextToken()
		return p.parseSigned(kind, tok, 1)
	case token.IDENT:
		ref := p.parseLabelRef()
		if ref == nil {
			return nil
		}
		if p.curTokenIs(token.DOT) {
			return weighted(p.finishWeighted(kind, &ast.WeightedTerm{Token: tok, Sign: 1}, ref))
		}
		return &ast.LabelItem{Label: ref}
	case token.DUAL:
		if d := p.parseDual(); d != nil {
			return d
		}
	case token.OVF:
		if ovf := p.parseOvf(); ovf != nil {
			return &ast.OvfItem{Ovf: ovf}
		}
	case token.SUM:
		if sum := p.parseSum(kind, tok); sum != nil {
			return sum
		}
	default:
		p.unexpected("variable", "equation", "node label", "'dual'", "'ovf'", "'sum'")
	}
	return nil
}

// weighted keeps a failed term from becoming a non-nil BodyItem.
func weighted(w *ast.WeightedTerm) ast.BodyItem {
	if w == nil {
		return nil
	}
	return w
}

// isWeightedVar reports whether the variable at curToken is the multiplier
// of a weighted term: x * child.valfn.
func (p *Parser) isWeightedVar() bool {
	n := 1
	if p.lookahead(n).Type == token.LPAREN {
		depth := 0
		for {
			switch p.lookahead(n).Type {
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
		}
		n++
	}
	return p.lookahead(n).Type == token.ASTERISK
}

func (p *Parser) parseSum(kind token.TokenType, tok token.Token) *ast.SumItem {
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	dom := p.parseDomain()
	if dom == nil || !p.expect(token.COMMA) {
		return nil
	}
	items := p.parseBody(kind, bodySum)
	if p.halted {
		return nil
	}
	p.closeDomain(dom)
	if !p.expect(token.RPAREN) {
		return nil
	}
	return &ast.SumItem{Token: tok, Domain: dom, Items: items}
}

// parseSigned parses the term after a '+' or '-': a weighted term or a sum
// of weighted terms.
func (p *Parser) parseSigned(kind token.TokenType, tok token.Token, sign float64) ast.BodyItem {
	if !p.curTokenIs(token.SUM) {
		return weighted(p.parseWeighted(kind, tok, sign))
	}
	sum := p.parseSum(kind, p.curToken)
	if sum == nil || !p.applySign(sum.Items, sign) {
		return nil
	}
	return sum
}

func (p *Parser) applySign(items []ast.BodyItem, sign float64) bool {
	for _, it := range items {
		switch it := it.(type) {
		case *ast.WeightedTerm:
			it.Sign *= sign
		case *ast.SumItem:
			if !p.applySign(it.Items, sign) {
				return false
			}
		default:
			p.errorf(diagnostics.ErrS002, it.GetToken(), "only weighted objective terms can be signed")
			return false
		}
	}
	return true
}

// parseWeighted parses [coef '*'] [var '*'] label '.' member.
func (p *Parser) parseWeighted(kind token.TokenType, tok token.Token, sign float64) *ast.WeightedTerm {
	w := &ast.WeightedTerm{Token: tok, Sign: sign}
	if p.curTokenIs(token.NUMBER) || p.curTokenIs(token.SYM_PARAM) {
		if w.Coef = p.parseCoef(); w.Coef == nil || !p.expect(token.ASTERISK) {
			return nil
		}
	}
	if p.curTokenIs(token.SYM_VAR) {
		if w.Var = p.parseSymbolRef(); w.Var == nil || !p.expect(token.ASTERISK) {
			return nil
		}
	}
	if p.halted || !p.curTokenIs(token.IDENT) {
		p.unexpected("node label")
		return nil
	}
	ref := p.parseLabelRef()
	if ref == nil {
		return nil
	}
	return p.finishWeighted(kind, w, ref)
}

func (p *Parser) finishWeighted(kind token.TokenType, w *ast.WeightedTerm, ref *ast.LabelRef) *ast.WeightedTerm {
	w.Label = ref
	if !p.expect(token.DOT) {
		return nil
	}
	switch p.curToken.Type {
	case token.VALFN, token.OBJFN:
		w.Member = p.curToken.Type
		p.nextToken()
	default:
		p.unexpected("'valfn'", "'objfn'")
		return nil
	}
	if kind != token.MIN && kind != token.MAX {
		p.errorf(diagnostics.ErrS002, w.Token, "objective terms need a min or max node")
		return nil
	}
	if w.Member == token.OBJFN && (w.Coef != nil || w.Var != nil) {
		p.errorf(diagnostics.ErrS002, w.Token, "objfn terms cannot be weighted")
		return nil
	}
	if p.halted {
		return nil
	}
	return w
}

// parseDual parses dual '(' label [',' scheme] [',' domain] ')'.
func (p *Parser) parseDual() *ast.DualItem {
	d := &ast.DualItem{Token: p.curToken, Scheme: model.SchemeFenchel, Domain: model.DomainDefault}
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	if d.Label = p.parseLabelRef(); d.Label == nil {
		return nil
	}
	if p.accept(token.COMMA) {
		switch p.curToken.Type {
		case token.FENCHEL:
			d.Scheme = model.SchemeFenchel
		case token.EPI:
			d.Scheme = model.SchemeEpi
		case token.DEFAULT:
			d.Domain = model.DomainDefault
		case token.LARGEST:
			d.Domain = model.DomainLargest
		default:
			p.unexpected("'fenchel'", "'epi'", "'default'", "'largest'")
			return nil
		}
		second := p.curToken.Type == token.FENCHEL || p.curToken.Type == token.EPI
		p.nextToken()
		if second && p.accept(token.COMMA) {
			switch p.curToken.Type {
			case token.DEFAULT:
				d.Domain = model.DomainDefault
			case token.LARGEST:
				d.Domain = model.DomainLargest
			default:
				p.unexpected("'default'", "'largest'")
				return nil
			}
			p.nextToken()
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return d
}
