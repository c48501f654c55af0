package symbols

import (
	"fmt"
	"strings"
)

type entry struct {
	Symbol
	records  [][]int
	position map[string]int // tuple key -> record position
	values   []float64      // parameters only
	base     int            // variables and equations: global index of record 0
}

// Store is an in-memory Dictionary. Variable and equation records are laid
// out in insertion order from a per-kind base index, so a read over a
// leading fixed prefix is contiguous.
type Store struct {
	uels     []string // uels[0] is unused
	uelIndex map[string]int
	entries  []*entry
	byName   map[string]int
	nextVar  int
	nextEqu  int
	varOwner []int // global var index -> entry id
	equOwner []int
	loadHook func(path string) error
}

// NewStore creates an empty dictionary.
func NewStore() *Store {
	return &Store{
		uels:     []string{""},
		uelIndex: make(map[string]int),
		byName:   make(map[string]int),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

func tupleKey(tuple []int) string {
	var sb strings.Builder
	for i, v := range tuple {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	return sb.String()
}

// AddElement interns an element label and returns its id.
func (s *Store) AddElement(label string) int {
	if id, ok := s.uelIndex[label]; ok {
		return id
	}
	s.uels = append(s.uels, label)
	id := len(s.uels) - 1
	s.uelIndex[label] = id
	return id
}

// NumElements returns the size of the element universe.
func (s *Store) NumElements() int {
	return len(s.uels) - 1
}

func (s *Store) internTuples(dim int, labels [][]string) ([][]int, error) {
	out := make([][]int, 0, len(labels))
	for _, rec := range labels {
		if len(rec) != dim {
			return nil, fmt.Errorf("record %v: %w (want %d indices)", rec, ErrDimMismatch, dim)
		}
		tuple := make([]int, dim)
		for i, l := range rec {
			tuple[i] = s.AddElement(l)
		}
		out = append(out, tuple)
	}
	return out, nil
}

func (s *Store) add(name string, kind Kind, dim int, records [][]int) (*entry, error) {
	if name == "" {
		return nil, fmt.Errorf("empty symbol name")
	}
	if _, dup := s.byName[key(name)]; dup {
		return nil, fmt.Errorf("symbol %s already defined", name)
	}
	e := &entry{
		Symbol:   Symbol{Name: name, Kind: kind, Dim: dim, ID: len(s.entries)},
		position: make(map[string]int, len(records)),
	}
	for _, rec := range records {
		k := tupleKey(rec)
		if _, dup := e.position[k]; dup {
			return nil, fmt.Errorf("%s: duplicate record %s", name, k)
		}
		e.position[k] = len(e.records)
		e.records = append(e.records, rec)
	}
	s.entries = append(s.entries, e)
	s.byName[key(name)] = e.ID
	return e, nil
}

// AddSet defines a set from element-label records.
func (s *Store) AddSet(name string, dim int, records [][]string) (Symbol, error) {
	tuples, err := s.internTuples(dim, records)
	if err != nil {
		return Symbol{}, fmt.Errorf("set %s: %w", name, err)
	}
	e, err := s.add(name, KindSet, dim, tuples)
	if err != nil {
		return Symbol{}, err
	}
	return e.Symbol, nil
}

// AddParam defines a parameter. values[i] belongs to records[i].
func (s *Store) AddParam(name string, dim int, records [][]string, values []float64) (Symbol, error) {
	if len(records) != len(values) {
		return Symbol{}, fmt.Errorf("parameter %s: %d records but %d values", name, len(records), len(values))
	}
	tuples, err := s.internTuples(dim, records)
	if err != nil {
		return Symbol{}, fmt.Errorf("parameter %s: %w", name, err)
	}
	e, err := s.add(name, KindParam, dim, tuples)
	if err != nil {
		return Symbol{}, err
	}
	e.values = append([]float64(nil), values...)
	return e.Symbol, nil
}

// AddScalar defines a zero-dimensional parameter.
func (s *Store) AddScalar(name string, value float64) (Symbol, error) {
	return s.AddParam(name, 0, [][]string{{}}, []float64{value})
}

// AddVar defines a variable; a scalar variable has a single empty record.
func (s *Store) AddVar(name string, dim int, records [][]string) (Symbol, error) {
	return s.addRows(name, KindVar, dim, records)
}

// AddEqu defines an equation.
func (s *Store) AddEqu(name string, dim int, records [][]string) (Symbol, error) {
	return s.addRows(name, KindEqu, dim, records)
}

// Domain returns the cartesian product of the records of the named
// one-dimensional sets, in row-major order.
func (s *Store) Domain(sets ...string) ([][]string, error) {
	out := [][]string{{}}
	for _, name := range sets {
		id, ok := s.byName[key(name)]
		if !ok || s.entries[id].Kind != KindSet || s.entries[id].Dim != 1 {
			return nil, fmt.Errorf("domain %s: not a one-dimensional set", name)
		}
		var next [][]string
		for _, prefix := range out {
			for _, rec := range s.entries[id].records {
				row := append(append([]string(nil), prefix...), s.uels[rec[0]])
				next = append(next, row)
			}
		}
		out = next
	}
	return out, nil
}

func (s *Store) addRows(name string, kind Kind, dim int, records [][]string) (Symbol, error) {
	if dim == 0 && len(records) == 0 {
		records = [][]string{{}}
	}
	tuples, err := s.internTuples(dim, records)
	if err != nil {
		return Symbol{}, fmt.Errorf("%s %s: %w", kind, name, err)
	}
	e, err := s.add(name, kind, dim, tuples)
	if err != nil {
		return Symbol{}, err
	}
	switch kind {
	case KindVar:
		e.base = s.nextVar
		s.nextVar += len(tuples)
		for range tuples {
			s.varOwner = append(s.varOwner, e.ID)
		}
	case KindEqu:
		e.base = s.nextEqu
		s.nextEqu += len(tuples)
		for range tuples {
			s.equOwner = append(s.equOwner, e.ID)
		}
	}
	return e.Symbol, nil
}

// SetLoadHook installs the function used by LoadFile. The default hook
// dispatches on the file extension.
func (s *Store) SetLoadHook(fn func(path string) error) {
	s.loadHook = fn
}

// LoadFile merges the symbols of a YAML or SQLite data file.
func (s *Store) LoadFile(path string) error {
	if s.loadHook != nil {
		return s.loadHook(path)
	}
	return LoadFile(s, path)
}

func (s *Store) entry(id int) (*entry, error) {
	if id < 0 || id >= len(s.entries) {
		return nil, fmt.Errorf("symbol id %d: %w", id, ErrNotFound)
	}
	return s.entries[id], nil
}

// Lookup implements Dictionary.
func (s *Store) Lookup(name string) (Symbol, error) {
	id, ok := s.byName[key(name)]
	if !ok {
		return Symbol{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return s.entries[id].Symbol, nil
}

// SymbolByID implements Dictionary.
func (s *Store) SymbolByID(id int) (Symbol, error) {
	e, err := s.entry(id)
	if err != nil {
		return Symbol{}, err
	}
	return e.Symbol, nil
}

// Elements implements Dictionary.
func (s *Store) Elements(setID int) ([][]int, error) {
	e, err := s.entry(setID)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindSet {
		return nil, fmt.Errorf("%s is a %s: %w", e.Name, e.Kind, ErrWrongKind)
	}
	return e.records, nil
}

// ReadRef implements Dictionary.
func (s *Store) ReadRef(id int, filters []Filter) (Ref, error) {
	e, err := s.entry(id)
	if err != nil {
		return Ref{}, err
	}
	if e.Kind != KindVar && e.Kind != KindEqu {
		return Ref{}, fmt.Errorf("%s is a %s: %w", e.Name, e.Kind, ErrWrongKind)
	}
	if len(filters) != e.Dim {
		return Ref{}, fmt.Errorf("%s: %w (got %d indices, want %d)", e.Name, ErrDimMismatch, len(filters), e.Dim)
	}

	// Fast path: fully fixed tuple.
	if allFixed(filters) {
		tuple := make([]int, len(filters))
		for i, f := range filters {
			tuple[i] = f.Elem
		}
		pos, ok := e.position[tupleKey(tuple)]
		if !ok {
			return Ref{}, fmt.Errorf("%s%s: %w", e.Name, FormatTuple(s, tuple, false), ErrNoRecord)
		}
		return Ref{Kind: e.Kind, Start: e.base + pos, Count: 1}, nil
	}

	var indices []int
	for pos, rec := range e.records {
		if matchAll(filters, rec) {
			indices = append(indices, e.base+pos)
		}
	}
	if len(indices) == 0 {
		return Ref{}, fmt.Errorf("%s: %w", e.Name, ErrNoRecord)
	}
	return MakeRef(e.Kind, indices), nil
}

func allFixed(filters []Filter) bool {
	for _, f := range filters {
		if f.Kind != FilterElem {
			return false
		}
	}
	return true
}

func matchAll(filters []Filter, rec []int) bool {
	for i, f := range filters {
		if !f.match(rec[i]) {
			return false
		}
	}
	return true
}

// ReadParam implements Dictionary.
func (s *Store) ReadParam(id int, tuple []int) (float64, error) {
	e, err := s.entry(id)
	if err != nil {
		return 0, err
	}
	if e.Kind != KindParam {
		return 0, fmt.Errorf("%s is a %s: %w", e.Name, e.Kind, ErrWrongKind)
	}
	if len(tuple) != e.Dim {
		return 0, fmt.Errorf("%s: %w", e.Name, ErrDimMismatch)
	}
	pos, ok := e.position[tupleKey(tuple)]
	if !ok {
		// GAMS semantics: absent parameter records read as zero.
		return 0, nil
	}
	return e.values[pos], nil
}

// ElementLabel implements Dictionary.
func (s *Store) ElementLabel(uel int) string {
	if uel <= 0 || uel >= len(s.uels) {
		return fmt.Sprintf("#%d", uel)
	}
	return s.uels[uel]
}

// ElementID implements Dictionary.
func (s *Store) ElementID(label string) (int, bool) {
	id, ok := s.uelIndex[label]
	return id, ok
}

// Name implements Dictionary.
func (s *Store) Name(kind Kind, index int) string {
	var owners []int
	switch kind {
	case KindVar:
		owners = s.varOwner
	case KindEqu:
		owners = s.equOwner
	}
	if index < 0 || index >= len(owners) {
		return fmt.Sprintf("%s#%d", kind, index)
	}
	e := s.entries[owners[index]]
	return e.Name + FormatTuple(s, e.records[index-e.base], false)
}
