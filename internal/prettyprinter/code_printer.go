package prettyprinter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/token"
)

// --- Code Printer (Output looks like source code) ---

// Condition precedence (higher = binds tighter)
const (
	precOr = iota + 1
	precAnd
	precNot
)

// CodePrinter prints a parsed program back in canonical form: one
// statement per line, declarations terminated by ';' and nested
// statements indented. Printing the result of parsing its output gives
// the same text.
type CodePrinter struct {
	buf       bytes.Buffer
	indent    int
	lineWidth int // max line width (0 = unlimited)
	column    int // current column position
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{indent: 0, lineWidth: 100, column: 0}
}

func NewCodePrinterWithWidth(width int) *CodePrinter {
	return &CodePrinter{indent: 0, lineWidth: width, column: 0}
}

// Print returns the canonical text of prog.
func Print(prog *ast.Program) string {
	p := NewCodePrinter()
	p.PrintProgram(prog)
	return p.String()
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
	p.column = p.indent * 4
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.column = len(s) - i - 1
	} else {
		p.column += len(s)
	}
}

func (p *CodePrinter) writeln() {
	p.buf.WriteString("\n")
	p.column = 0
}

// item writes one body item, breaking the line first when it would not
// fit.
func (p *CodePrinter) item(s string) {
	if p.lineWidth > 0 && p.column+1+len(s) > p.lineWidth {
		p.writeln()
		p.indent++
		p.writeIndent()
		p.indent--
	} else {
		p.write(" ")
	}
	p.write(s)
}

func (p *CodePrinter) PrintProgram(prog *ast.Program) {
	for _, stmt := range prog.Statements {
		p.statement(stmt)
	}
}

func (p *CodePrinter) statement(stmt ast.Statement) {
	p.writeIndent()
	stmt.Accept(p)
	p.writeln()
}

func (p *CodePrinter) nested(body []ast.Statement) {
	p.writeln()
	p.indent++
	for _, stmt := range body {
		p.statement(stmt)
	}
	p.indent--
	p.writeIndent()
	p.write(")")
}

func (p *CodePrinter) labelDecl(l *ast.LabelDecl) {
	if l == nil {
		return
	}
	p.write(l.Basename + indexList(l.Indices))
	if l.Cond != nil {
		p.write(" $ " + condAtom(l.Cond))
	}
	p.write(": ")
}

func (p *CodePrinter) VisitNodeDecl(n *ast.NodeDecl) {
	p.labelDecl(n.Label)
	p.write(token.KeywordText(n.Kind))
	if n.Objective != nil {
		p.write(" " + symbolRef(n.Objective))
	}
	if len(n.Body) == 0 {
		p.write(";")
		return
	}
	for i, it := range n.Body {
		s := bodyItem(it)
		if i == len(n.Body)-1 {
			s += ";"
		}
		p.item(s)
	}
}

func (p *CodePrinter) VisitNashDecl(n *ast.NashDecl) {
	p.labelDecl(n.Label)
	p.write(token.KeywordText(token.NASH) + "(" + members(n.Members) + ");")
}

func (p *CodePrinter) VisitCCFDecl(n *ast.CCFDecl) {
	p.labelDecl(n.Label)
	p.write(token.KeywordText(token.CCF) + " " + function(n.Func, n.Result, n.Args, n.Params) + ";")
}

func (p *CodePrinter) VisitOvfDecl(n *ast.OvfDecl) {
	p.write(ovf(n) + ";")
}

func (p *CodePrinter) VisitRootStmt(n *ast.RootStmt) {
	p.write(token.KeywordText(token.ROOT) + ": " + labelRef(n.Label))
}

func (p *CodePrinter) VisitLoadStmt(n *ast.LoadStmt) {
	p.write(token.KeywordText(token.LOAD) + " " + quote(n.Path))
}

func (p *CodePrinter) VisitLoopStmt(n *ast.LoopStmt) {
	p.write(token.KeywordText(token.LOOP) + "(" + domain(n.Domain) + ",")
	p.nested(n.Body)
}

func (p *CodePrinter) VisitDefStmt(n *ast.DefStmt) {
	parts := make([]string, len(n.Bindings))
	for i, b := range n.Bindings {
		if b.Set != nil {
			parts[i] = b.Name + " = " + b.Set.Name
			continue
		}
		elems := make([]string, len(b.Elements))
		for j, el := range b.Elements {
			elems[j] = quote(el)
		}
		parts[i] = b.Name + " = {" + strings.Join(elems, ", ") + "}"
	}
	p.write(token.KeywordText(token.DEF) + "(" + strings.Join(parts, ", ") + ",")
	p.nested(n.Body)
}

// --- Fragments ---

func quote(label string) string {
	if strings.ContainsRune(label, '\'') {
		return `"` + label + `"`
	}
	return "'" + label + "'"
}

func index(idx *ast.Index) string {
	switch idx.Kind {
	case ast.IndexElem:
		return quote(idx.Label)
	case ast.IndexWildcard:
		return "*"
	}
	return idx.Name
}

func indexList(indices []*ast.Index) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = index(idx)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func symbolRef(ref *ast.SymbolRef) string {
	return ref.Token.Lexeme + indexList(ref.Indices)
}

func labelRef(ref *ast.LabelRef) string {
	return ref.Basename + indexList(ref.Indices)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func coef(c *ast.Coef) string {
	if c.Param != nil {
		return symbolRef(c.Param)
	}
	return number(c.Value)
}

func domain(d *ast.Domain) string {
	names := make([]string, len(d.Sets))
	for i, s := range d.Sets {
		names[i] = s.Name
	}
	out := names[0]
	if len(names) > 1 {
		out = "(" + strings.Join(names, ", ") + ")"
	}
	if d.Cond != nil {
		out += " $ " + condAtom(d.Cond)
	}
	return out
}

// condAtom prints a condition where the grammar expects an atom.
func condAtom(c ast.Condition) string {
	return cond(c, precNot+1)
}

// cond prints c, adding parentheses only if needed
func cond(c ast.Condition, parentPrec int) string {
	wrap := func(prec int, s string) string {
		if prec < parentPrec {
			return "(" + s + ")"
		}
		return s
	}
	switch c := c.(type) {
	case *ast.OrCond:
		return wrap(precOr, cond(c.Left, precOr)+" or "+cond(c.Right, precAnd))
	case *ast.AndCond:
		return wrap(precAnd, cond(c.Left, precAnd)+" and "+cond(c.Right, precNot))
	case *ast.NotCond:
		return wrap(precNot, "not "+cond(c.Operand, precNot))
	case *ast.SameAs:
		return "sameas(" + index(c.Left) + ", " + index(c.Right) + ")"
	case *ast.InSet:
		return c.Set.Name + indexList(c.Indices)
	case *ast.ParamCond:
		return symbolRef(c.Param)
	}
	return "<?>"
}

func bodyItem(item ast.BodyItem) string {
	switch it := item.(type) {
	case *ast.SymbolItem:
		s := symbolRef(it.Ref)
		if it.Flipped {
			s = "-" + s
		}
		if it.Pair != nil {
			s += " " + symbolRef(it.Pair)
		}
		return s
	case *ast.LabelItem:
		return labelRef(it.Label)
	case *ast.DualItem:
		if it.Scheme == model.SchemeFenchel && it.Domain == model.DomainDefault {
			return "dual(" + labelRef(it.Label) + ")"
		}
		return "dual(" + labelRef(it.Label) + ", " + it.Scheme.String() + ", " + it.Domain.String() + ")"
	case *ast.WeightedTerm:
		var sb strings.Builder
		if it.Sign < 0 {
			sb.WriteString("- ")
		}
		if it.Coef != nil {
			sb.WriteString(coef(it.Coef) + "*")
		}
		if it.Var != nil {
			sb.WriteString(symbolRef(it.Var) + "*")
		}
		sb.WriteString(labelRef(it.Label) + "." + token.KeywordText(it.Member))
		return sb.String()
	case *ast.OvfItem:
		return ovf(it.Ovf)
	case *ast.SumItem:
		items := make([]string, len(it.Items))
		for i, sub := range it.Items {
			items[i] = bodyItem(sub)
		}
		return "sum(" + domain(it.Domain) + ", " + strings.Join(items, " ") + ")"
	}
	return "<?>"
}

func members(items []ast.BodyItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if sum, ok := item.(*ast.SumItem); ok {
			parts[i] = "sum(" + domain(sum.Domain) + ", " + members(sum.Items) + ")"
			continue
		}
		parts[i] = bodyItem(item)
	}
	return strings.Join(parts, ", ")
}

func function(fn string, result *ast.SymbolRef, args []*ast.SymbolRef, params []*ast.ParamAssign) string {
	parts := []string{fn, symbolRef(result)}
	for _, a := range args {
		parts = append(parts, symbolRef(a))
	}
	for _, prm := range params {
		parts = append(parts, prm.Name+" = "+coef(prm.Value))
	}
	return strings.Join(parts, " ")
}

func ovf(o *ast.OvfDecl) string {
	return token.KeywordText(token.OVF) + " " + function(o.Func, o.Result, o.Args, o.Params)
}
