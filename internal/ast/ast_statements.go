package ast

import (
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/token"
)

// BodyItem is an element of a node body.
type BodyItem interface {
	Node
	bodyItem()
}

// SymbolItem adds a variable or an equation to the node. In a VI node an
// equation directly followed by a variable forms a pair.
type SymbolItem struct {
	Ref     *SymbolRef
	Flipped bool       // -e: the constraint enters with flipped sign
	Pair    *SymbolRef // VI only
}

// LabelItem is a control edge in an optimization node and a membership
// edge in an equilibrium.
type LabelItem struct {
	Label *LabelRef
}

// DualItem links the node to the dual of another node.
type DualItem struct {
	Token  token.Token
	Label  *LabelRef
	Scheme model.DualScheme
	Domain model.DualDomain
}

// WeightedTerm is a child objective entering the parent's objective:
// sign * coef * var * child.valfn, or child.objfn.
type WeightedTerm struct {
	Token  token.Token
	Sign   float64
	Coef   *Coef      // nil means 1
	Var    *SymbolRef // optional
	Label  *LabelRef
	Member token.TokenType // VALFN or OBJFN
}

// OvfItem is an OVF definition nested in a node.
type OvfItem struct {
	Ovf *OvfDecl
}

// SumItem repeats its items over a domain.
type SumItem struct {
	Token  token.Token
	Domain *Domain
	Items  []BodyItem
}

func (i *SymbolItem) bodyItem()   {}
func (i *LabelItem) bodyItem()    {}
func (i *DualItem) bodyItem()     {}
func (i *WeightedTerm) bodyItem() {}
func (i *OvfItem) bodyItem()      {}
func (i *SumItem) bodyItem()      {}

func (i *SymbolItem) TokenLiteral() string   { return i.Ref.Token.Lexeme }
func (i *LabelItem) TokenLiteral() string    { return i.Label.Token.Lexeme }
func (i *DualItem) TokenLiteral() string     { return i.Token.Lexeme }
func (i *WeightedTerm) TokenLiteral() string { return i.Token.Lexeme }
func (i *OvfItem) TokenLiteral() string      { return i.Ovf.Token.Lexeme }
func (i *SumItem) TokenLiteral() string      { return i.Token.Lexeme }

func (i *SymbolItem) GetToken() token.Token   { return i.Ref.Token }
func (i *LabelItem) GetToken() token.Token    { return i.Label.Token }
func (i *DualItem) GetToken() token.Token     { return i.Token }
func (i *WeightedTerm) GetToken() token.Token { return i.Token }
func (i *OvfItem) GetToken() token.Token      { return i.Ovf.Token }
func (i *SumItem) GetToken() token.Token      { return i.Token }

// NodeDecl declares a math-program node.
//
//	nOpt(i): min z(i) x(i) e(i)
type NodeDecl struct {
	Token     token.Token     // MIN, MAX, VI or FEASIBILITY
	Label     *LabelDecl      // nil for an anonymous node
	Kind      token.TokenType // same as Token.Type
	Objective *SymbolRef      // min/max only: objective variable or equation
	Body      []BodyItem
	Compiled  bool
}

// NashDecl declares an equilibrium group.
type NashDecl struct {
	Token    token.Token
	Label    *LabelDecl
	Members  []BodyItem // LabelItem or SumItem
	Compiled bool
}

// ParamAssign sets a named OVF or CCF parameter.
type ParamAssign struct {
	Token token.Token
	Name  string
	Value *Coef
}

func (p *ParamAssign) TokenLiteral() string  { return p.Token.Lexeme }
func (p *ParamAssign) GetToken() token.Token { return p.Token }

// OvfDecl defines result = func(args...) with parameters.
type OvfDecl struct {
	Token    token.Token
	Func     string
	Result   *SymbolRef
	Args     []*SymbolRef
	Params   []*ParamAssign
	Compiled bool
}

// CCFDecl declares a composite-function node.
type CCFDecl struct {
	Token    token.Token
	Label    *LabelDecl
	Func     string
	Result   *SymbolRef
	Args     []*SymbolRef
	Params   []*ParamAssign
	Compiled bool
}

// RootStmt designates the root node explicitly.
type RootStmt struct {
	Token token.Token
	Label *LabelRef
}

// LoopStmt repeats its statements over a domain.
type LoopStmt struct {
	Token  token.Token
	Domain *Domain
	Body   []Statement
}

// Binding defines a local set, either from literal elements or as a copy
// of a dictionary set.
type Binding struct {
	Token    token.Token
	Name     string
	Elements []string
	Set      *SetRef
}

func (b *Binding) TokenLiteral() string  { return b.Token.Lexeme }
func (b *Binding) GetToken() token.Token { return b.Token }

// DefStmt scopes local sets over its statements.
type DefStmt struct {
	Token    token.Token
	Bindings []*Binding
	Body     []Statement
}

// LoadStmt merges an external data file into the symbol dictionary. The
// parser executes it so that later identifiers see the new symbols.
type LoadStmt struct {
	Token token.Token
	Path  string
}

func (n *NodeDecl) Accept(v Visitor) { v.VisitNodeDecl(n) }
func (n *NashDecl) Accept(v Visitor) { v.VisitNashDecl(n) }
func (n *CCFDecl) Accept(v Visitor)  { v.VisitCCFDecl(n) }
func (n *OvfDecl) Accept(v Visitor)  { v.VisitOvfDecl(n) }
func (n *RootStmt) Accept(v Visitor) { v.VisitRootStmt(n) }
func (n *LoopStmt) Accept(v Visitor) { v.VisitLoopStmt(n) }
func (n *DefStmt) Accept(v Visitor)  { v.VisitDefStmt(n) }
func (n *LoadStmt) Accept(v Visitor) { v.VisitLoadStmt(n) }

func (n *NodeDecl) statementNode() {}
func (n *NashDecl) statementNode() {}
func (n *CCFDecl) statementNode()  {}
func (n *OvfDecl) statementNode()  {}
func (n *RootStmt) statementNode() {}
func (n *LoopStmt) statementNode() {}
func (n *DefStmt) statementNode()  {}
func (n *LoadStmt) statementNode() {}

func (n *NodeDecl) TokenLiteral() string { return n.Token.Lexeme }
func (n *NashDecl) TokenLiteral() string { return n.Token.Lexeme }
func (n *CCFDecl) TokenLiteral() string  { return n.Token.Lexeme }
func (n *OvfDecl) TokenLiteral() string  { return n.Token.Lexeme }
func (n *RootStmt) TokenLiteral() string { return n.Token.Lexeme }
func (n *LoopStmt) TokenLiteral() string { return n.Token.Lexeme }
func (n *DefStmt) TokenLiteral() string  { return n.Token.Lexeme }
func (n *LoadStmt) TokenLiteral() string { return n.Token.Lexeme }

func (n *NodeDecl) GetToken() token.Token { return n.Token }
func (n *NashDecl) GetToken() token.Token { return n.Token }
func (n *CCFDecl) GetToken() token.Token  { return n.Token }
func (n *OvfDecl) GetToken() token.Token  { return n.Token }
func (n *RootStmt) GetToken() token.Token { return n.Token }
func (n *LoopStmt) GetToken() token.Token { return n.Token }
func (n *DefStmt) GetToken() token.Token  { return n.Token }
func (n *LoadStmt) GetToken() token.Token { return n.Token }

func (n *NodeDecl) IsCompiled() bool { return n.Compiled }
func (n *NashDecl) IsCompiled() bool { return n.Compiled }
func (n *CCFDecl) IsCompiled() bool  { return n.Compiled }
func (n *OvfDecl) IsCompiled() bool  { return n.Compiled }
func (n *RootStmt) IsCompiled() bool { return false }
func (n *LoopStmt) IsCompiled() bool { return true }
func (n *DefStmt) IsCompiled() bool  { return true }
func (n *LoadStmt) IsCompiled() bool { return false }
