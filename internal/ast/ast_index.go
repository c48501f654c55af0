package ast

import (
	"strings"

	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

type IndexKind int

const (
	IndexElem     IndexKind = iota // 'a'
	IndexWildcard                  // *
	IndexSet                       // free dictionary set
	IndexLocalSet                  // set bound by def
	IndexLoopVar                   // element bound by an enclosing loop
)

func (k IndexKind) String() string {
	switch k {
	case IndexElem:
		return "element"
	case IndexWildcard:
		return "wildcard"
	case IndexSet:
		return "set"
	case IndexLocalSet:
		return "local set"
	case IndexLoopVar:
		return "loop element"
	}
	return "?"
}

// Index is one position of an index list.
type Index struct {
	Token token.Token
	Kind  IndexKind
	Label string         // IndexElem
	Name  string         // set, local set or loop element name
	Set   symbols.Symbol // IndexSet
}

func (i *Index) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Index) GetToken() token.Token { return i.Token }

// Dynamic reports whether the index makes its statement compiled.
func (i *Index) Dynamic() bool {
	return i.Kind == IndexSet || i.Kind == IndexLocalSet || i.Kind == IndexLoopVar
}

// SetRef names a set iterated by a loop, a sum or a membership test.
type SetRef struct {
	Token token.Token
	Name  string
	Local bool           // bound by def
	Set   symbols.Symbol // dictionary set when !Local
}

func (s *SetRef) TokenLiteral() string  { return s.Token.Lexeme }
func (s *SetRef) GetToken() token.Token { return s.Token }

// Domain is the iteration domain of a loop or sum: one or more sets,
// iterated in row-major order, optionally filtered by a condition.
type Domain struct {
	Token token.Token
	Sets  []*SetRef
	Cond  Condition
}

func (d *Domain) TokenLiteral() string  { return d.Token.Lexeme }
func (d *Domain) GetToken() token.Token { return d.Token }

// Condition is a boolean expression over set membership.
type Condition interface {
	Node
	conditionNode()
}

type AndCond struct {
	Token       token.Token
	Left, Right Condition
}

type OrCond struct {
	Token       token.Token
	Left, Right Condition
}

type NotCond struct {
	Token   token.Token
	Operand Condition
}

// SameAs tests two indices for equality.
type SameAs struct {
	Token       token.Token
	Left, Right *Index
}

// InSet tests whether a tuple of elements belongs to a set.
type InSet struct {
	Token   token.Token
	Set     *SetRef
	Indices []*Index
}

// ParamCond is true when a parameter record is non-zero.
type ParamCond struct {
	Token token.Token
	Param *SymbolRef
}

func (c *AndCond) conditionNode()   {}
func (c *OrCond) conditionNode()    {}
func (c *NotCond) conditionNode()   {}
func (c *SameAs) conditionNode()    {}
func (c *InSet) conditionNode()     {}
func (c *ParamCond) conditionNode() {}

func (c *AndCond) TokenLiteral() string   { return c.Token.Lexeme }
func (c *OrCond) TokenLiteral() string    { return c.Token.Lexeme }
func (c *NotCond) TokenLiteral() string   { return c.Token.Lexeme }
func (c *SameAs) TokenLiteral() string    { return c.Token.Lexeme }
func (c *InSet) TokenLiteral() string     { return c.Token.Lexeme }
func (c *ParamCond) TokenLiteral() string { return c.Token.Lexeme }

func (c *AndCond) GetToken() token.Token   { return c.Token }
func (c *OrCond) GetToken() token.Token    { return c.Token }
func (c *NotCond) GetToken() token.Token   { return c.Token }
func (c *SameAs) GetToken() token.Token    { return c.Token }
func (c *InSet) GetToken() token.Token     { return c.Token }
func (c *ParamCond) GetToken() token.Token { return c.Token }

// SymbolRef is a reference to a dictionary variable, equation or
// parameter, e.g. x(i,'a').
type SymbolRef struct {
	Token   token.Token
	Symbol  symbols.Symbol
	Indices []*Index
}

func (s *SymbolRef) TokenLiteral() string  { return s.Token.Lexeme }
func (s *SymbolRef) GetToken() token.Token { return s.Token }

// LabelDecl names the node a declaration creates. Free sets among its
// indices make the declaration an implicit loop, filtered by Cond.
type LabelDecl struct {
	Token    token.Token
	Basename string
	Indices  []*Index
	Cond     Condition
}

func (l *LabelDecl) TokenLiteral() string  { return l.Token.Lexeme }
func (l *LabelDecl) GetToken() token.Token { return l.Token }

// LabelRef points at a node by name. Free sets among its indices stand
// for one child per element.
type LabelRef struct {
	Token    token.Token
	Basename string
	Indices  []*Index
}

func (l *LabelRef) TokenLiteral() string  { return l.Token.Lexeme }
func (l *LabelRef) GetToken() token.Token { return l.Token }

// Coef is a constant or a parameter read.
type Coef struct {
	Token token.Token
	Value float64
	Param *SymbolRef
}

func (c *Coef) TokenLiteral() string  { return c.Token.Lexeme }
func (c *Coef) GetToken() token.Token { return c.Token }

// FreeSets returns the distinct free sets among indices, in order of first
// appearance.
func FreeSets(indices []*Index) []*Index {
	var out []*Index
	seen := make(map[string]bool)
	for _, idx := range indices {
		if idx.Kind != IndexSet && idx.Kind != IndexLocalSet {
			continue
		}
		key := strings.ToLower(idx.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, idx)
	}
	return out
}

func anyDynamic(indices []*Index) bool {
	for _, idx := range indices {
		if idx.Dynamic() {
			return true
		}
	}
	return false
}
