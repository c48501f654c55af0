package vm

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/labels"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

// Session is the state of one interpretation pass shared by the
// immediate executor, the compiler and the VM: the graph under
// construction, the label collector and the constant table.
type Session struct {
	Graph    *model.Graph
	Registry *labels.Registry
	Pending  *labels.Pending
	Dict     *symbols.Overlay
	Globals  *Globals

	sets    map[int][]int
	members map[int]map[string]bool
}

// NewSession starts a pass over dict.
func NewSession(dict symbols.Dictionary) *Session {
	return &Session{
		Graph:    model.NewGraph(),
		Registry: labels.NewRegistry(),
		Pending:  &labels.Pending{},
		Dict:     symbols.NewOverlay(dict),
		Globals:  newGlobals(),
		sets:     make(map[int][]int),
		members:  make(map[int]map[string]bool),
	}
}

// Elem returns the id of an element label, interning unknown labels.
func (s *Session) Elem(label string) int {
	return s.Dict.Intern(label)
}

// SymbolName decodes a dictionary symbol id.
func (s *Session) SymbolName(id int) string {
	sym, err := s.Dict.SymbolByID(id)
	if err != nil {
		return "#" + strconv.Itoa(id)
	}
	return sym.Name
}

// SetElements returns the elements of a one-dimensional set in set order.
// Data files only add symbols, so the result is cached per set.
func (s *Session) SetElements(id int) ([]int, error) {
	if elems, ok := s.sets[id]; ok {
		return elems, nil
	}
	recs, err := s.Dict.Elements(id)
	if err != nil {
		return nil, dictError(err)
	}
	elems := make([]int, 0, len(recs))
	for _, rec := range recs {
		if len(rec) != 1 {
			return nil, diagnostics.NewError(diagnostics.ErrS002, token.Token{},
				"cannot iterate over %s of dimension %d", s.SymbolName(id), len(rec))
		}
		elems = append(elems, rec[0])
	}
	s.sets[id] = elems
	return elems, nil
}

// InSet reports whether tuple is a record of set id.
func (s *Session) InSet(id int, tuple []int) (bool, error) {
	m, ok := s.members[id]
	if !ok {
		recs, err := s.Dict.Elements(id)
		if err != nil {
			return false, dictError(err)
		}
		m = make(map[string]bool, len(recs))
		for _, rec := range recs {
			m[tupleKey(rec)] = true
		}
		s.members[id] = m
	}
	return m[tupleKey(tuple)], nil
}

// ReadSymbol selects the records of a variable or equation. Each argument
// is an element, nil for '*', or a local set.
func (s *Session) ReadSymbol(id int, args []Value) (symbols.Ref, error) {
	filters := make([]symbols.Filter, len(args))
	for i, a := range args {
		switch a.Type {
		case ValElem:
			filters[i] = symbols.Filter{Kind: symbols.FilterElem, Elem: a.AsElem()}
		case ValNil:
			filters[i] = symbols.Filter{Kind: symbols.FilterAny}
		case ValCursor:
			filters[i] = symbols.Filter{Kind: symbols.FilterSet, Members: a.AsCursor().Members()}
		default:
			return symbols.Ref{}, diagnostics.Bug("symbol read: index %d is a %s", i, a.Type)
		}
	}
	ref, err := s.Dict.ReadRef(id, filters)
	if err != nil {
		if errors.Is(err, symbols.ErrNoRecord) {
			return symbols.Ref{}, diagnostics.NewError(diagnostics.ErrR001, token.Token{},
				"no record of %s", s.describe(id, args))
		}
		return symbols.Ref{}, dictError(err)
	}
	return ref, nil
}

// ReadParam reads one parameter value. Absent records read as zero.
func (s *Session) ReadParam(id int, args []Value) (float64, error) {
	tuple := make([]int, len(args))
	for i, a := range args {
		if a.Type != ValElem {
			return 0, diagnostics.Bug("parameter read: index %d is a %s", i, a.Type)
		}
		tuple[i] = a.AsElem()
	}
	v, err := s.Dict.ReadParam(id, tuple)
	if err != nil {
		return 0, dictError(err)
	}
	return v, nil
}

// describe renders a symbol reference for diagnostics, e.g. x('a',*).
func (s *Session) describe(id int, args []Value) string {
	name := s.SymbolName(id)
	if len(args) == 0 {
		return name
	}
	parts := make([]string, len(args))
	for i, a := range args {
		switch a.Type {
		case ValElem:
			parts[i] = "'" + s.Dict.ElementLabel(a.AsElem()) + "'"
		case ValCursor:
			parts[i] = a.AsCursor().Name
		case ValNil:
			parts[i] = "*"
		default:
			parts[i] = a.Inspect()
		}
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// RegisterNode names node basename(tuple) in the registry and the graph.
func (s *Session) RegisterNode(basename string, tuple []int, node model.NodeRef) error {
	s.Registry.Register(basename, tuple, node)
	if err := s.Graph.SetName(node, labels.NodeName(s.Dict, basename, tuple)); err != nil {
		return diagnostics.Bug("naming %s: %v", node, err)
	}
	return nil
}

// SetRoot records the explicit root label. A second root declaration
// replaces the first.
func (s *Session) SetRoot(basename string, tuple []int, line int) {
	s.Pending.Root = &labels.Label{Basename: basename, Tuple: tuple, Line: line}
}

// Resolve turns the collected labels into edges and settles the root.
func (s *Session) Resolve() (labels.Stats, error) {
	return labels.Resolve(s.Graph, s.Registry, s.Pending, s.Dict)
}

// dictError classifies a dictionary failure.
func dictError(err error) error {
	var d *diagnostics.DiagnosticError
	if errors.As(err, &d) {
		return d
	}
	switch {
	case errors.Is(err, symbols.ErrNotFound):
		return diagnostics.NewError(diagnostics.ErrS001, token.Token{}, "%v", err)
	case errors.Is(err, symbols.ErrWrongKind), errors.Is(err, symbols.ErrDimMismatch):
		return diagnostics.NewError(diagnostics.ErrS002, token.Token{}, "%v", err)
	}
	return diagnostics.NewError(diagnostics.ErrI001, token.Token{}, "symbol dictionary: %v", err)
}

func tupleKey(tuple []int) string {
	var sb strings.Builder
	for i, v := range tuple {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}
