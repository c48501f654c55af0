// Package symbols is the symbol dictionary of the host modeling system:
// sets, parameters, variables and equations, and the universe of element
// labels (UELs) that index them.
package symbols

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSet
	KindParam
	KindVar
	KindEqu
)

func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindParam:
		return "parameter"
	case KindVar:
		return "variable"
	case KindEqu:
		return "equation"
	}
	return "unknown"
}

// Symbol is the resolved payload of a dictionary lookup.
type Symbol struct {
	Name string
	Kind Kind
	Dim  int
	ID   int
}

var (
	ErrNotFound    = errors.New("symbol not found")
	ErrNoRecord    = errors.New("no matching record")
	ErrDimMismatch = errors.New("dimension mismatch")
	ErrWrongKind   = errors.New("wrong symbol kind")
)

// FilterKind says how one index position of a read is constrained.
type FilterKind int

const (
	FilterAny  FilterKind = iota // '*'
	FilterElem                   // one element
	FilterSet                    // any member of a set
)

// Filter constrains one index position of a symbol read.
type Filter struct {
	Kind    FilterKind
	Elem    int
	Members map[int]bool
}

func (f Filter) match(uel int) bool {
	switch f.Kind {
	case FilterElem:
		return f.Elem == uel
	case FilterSet:
		return f.Members[uel]
	}
	return true
}

// Ref designates variables or equations by their global index. A
// contiguous selection is kept compact as (Start, Count); otherwise List
// holds every index explicitly.
type Ref struct {
	Kind  Kind
	Start int
	Count int
	List  []int
}

// Len returns the number of designated indices.
func (r Ref) Len() int {
	if r.List != nil {
		return len(r.List)
	}
	return r.Count
}

// IsCompact reports whether r uses the (Start, Count) form.
func (r Ref) IsCompact() bool {
	return r.List == nil
}

// Indices expands r into explicit indices.
func (r Ref) Indices() []int {
	if r.List != nil {
		return r.List
	}
	out := make([]int, r.Count)
	for i := range out {
		out[i] = r.Start + i
	}
	return out
}

// Single returns the only index of a one-element reference.
func (r Ref) Single() (int, bool) {
	if r.Len() != 1 {
		return 0, false
	}
	return r.Indices()[0], true
}

func (r Ref) String() string {
	if r.List == nil {
		if r.Count == 1 {
			return strconv.Itoa(r.Start)
		}
		return fmt.Sprintf("%d..%d", r.Start, r.Start+r.Count-1)
	}
	parts := make([]string, len(r.List))
	for i, v := range r.List {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// MakeRef builds the most compact reference for the given indices.
func MakeRef(kind Kind, indices []int) Ref {
	if len(indices) == 0 {
		return Ref{Kind: kind}
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			list := make([]int, len(indices))
			copy(list, indices)
			return Ref{Kind: kind, List: list}
		}
	}
	return Ref{Kind: kind, Start: indices[0], Count: len(indices)}
}

// Dictionary is the synchronous, fallible interface the compiler, VM and
// lexer consume.
type Dictionary interface {
	// Lookup resolves a name; ErrNotFound when the name is not a symbol.
	Lookup(name string) (Symbol, error)

	// SymbolByID is the inverse of Lookup.
	SymbolByID(id int) (Symbol, error)

	// Elements returns the records of a set, in set order.
	Elements(setID int) ([][]int, error)

	// ReadRef selects the variable or equation records matching filters.
	ReadRef(id int, filters []Filter) (Ref, error)

	// ReadParam reads one parameter value; an empty tuple reads a scalar.
	ReadParam(id int, tuple []int) (float64, error)

	// ElementLabel decodes an element id.
	ElementLabel(uel int) string

	// ElementID encodes an element label.
	ElementID(label string) (int, bool)

	// Name decodes a global variable or equation index, e.g. "x(i1)".
	Name(kind Kind, index int) string
}

// Loader is implemented by dictionaries that accept external data files.
type Loader interface {
	LoadFile(path string) error
}

// FormatTuple renders an element tuple as "(a,b)" using dict for labels.
// Quoted is used for label references printed in diagnostics.
func FormatTuple(dict Dictionary, tuple []int, quoted bool) string {
	if len(tuple) == 0 {
		return ""
	}
	parts := make([]string, len(tuple))
	for i, uel := range tuple {
		label := dict.ElementLabel(uel)
		if quoted {
			label = "'" + label + "'"
		}
		parts[i] = label
	}
	return "(" + strings.Join(parts, ",") + ")"
}

var errNoLoader = errors.New("dictionary does not accept data files")
