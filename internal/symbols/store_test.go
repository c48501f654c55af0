package symbols

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

const sampleData = `
sets:
  - name: i
    elements: [i1, i2, i3]
  - name: sub
    elements: [i1, i3]
parameters:
  - name: w
    records:
      - {index: [i1], value: 2.5}
      - {index: [i3], value: -1}
  - name: alpha
    value: 0.5
variables:
  - name: z
  - name: x
    domain: [i]
equations:
  - name: e
    domain: [i]
`

func newSample(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := ParseYAML(s, []byte(sampleData), "sample.yaml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func filterOf(s *Store, labels ...string) []Filter {
	out := make([]Filter, len(labels))
	for i, l := range labels {
		if l == "*" {
			out[i] = Filter{Kind: FilterAny}
			continue
		}
		id, _ := s.ElementID(l)
		out[i] = Filter{Kind: FilterElem, Elem: id}
	}
	return out
}

func TestStore_LookupIsCaseInsensitive(t *testing.T) {
	s := newSample(t)
	sym, err := s.Lookup("X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sym.Kind != KindVar || sym.Dim != 1 {
		t.Errorf("got %s/%d, want variable/1", sym.Kind, sym.Dim)
	}
	if _, err := s.Lookup("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ReadRef(t *testing.T) {
	s := newSample(t)
	x, _ := s.Lookup("x")
	i2, _ := s.ElementID("i2")
	sub, _ := s.Lookup("sub")
	subRecords, _ := s.Elements(sub.ID)
	members := map[int]bool{}
	for _, rec := range subRecords {
		members[rec[0]] = true
	}

	tests := []struct {
		name    string
		filters []Filter
		want    string
		compact bool
	}{
		{"single", []Filter{{Kind: FilterElem, Elem: i2}}, "2", true},
		{"wildcard", []Filter{{Kind: FilterAny}}, "1..3", true},
		{"subset", []Filter{{Kind: FilterSet, Members: members}}, "[1 3]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := s.ReadRef(x.ID, tt.filters)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.String() != tt.want {
				t.Errorf("ref = %s, want %s", ref, tt.want)
			}
			if ref.IsCompact() != tt.compact {
				t.Errorf("compact = %v, want %v", ref.IsCompact(), tt.compact)
			}
		})
	}
}

func TestStore_ReadRefErrors(t *testing.T) {
	s := newSample(t)
	x, _ := s.Lookup("x")
	w, _ := s.Lookup("w")
	missing := s.AddElement("i9")

	if _, err := s.ReadRef(x.ID, nil); !errors.Is(err, ErrDimMismatch) {
		t.Errorf("expected ErrDimMismatch, got %v", err)
	}
	if _, err := s.ReadRef(x.ID, []Filter{{Kind: FilterElem, Elem: missing}}); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord, got %v", err)
	}
	if _, err := s.ReadRef(w.ID, filterOf(s, "i1")); !errors.Is(err, ErrWrongKind) {
		t.Errorf("expected ErrWrongKind, got %v", err)
	}
}

func TestStore_ReadParam(t *testing.T) {
	s := newSample(t)
	w, _ := s.Lookup("w")
	alpha, _ := s.Lookup("alpha")
	i1, _ := s.ElementID("i1")
	i2, _ := s.ElementID("i2")

	if v, err := s.ReadParam(w.ID, []int{i1}); err != nil || v != 2.5 {
		t.Errorf("w(i1) = %v, %v; want 2.5", v, err)
	}
	if v, err := s.ReadParam(w.ID, []int{i2}); err != nil || v != 0 {
		t.Errorf("w(i2) = %v, %v; want 0", v, err)
	}
	if v, err := s.ReadParam(alpha.ID, nil); err != nil || v != 0.5 {
		t.Errorf("alpha = %v, %v; want 0.5", v, err)
	}
}

func TestStore_Name(t *testing.T) {
	s := newSample(t)
	if got := s.Name(KindVar, 0); got != "z" {
		t.Errorf("Name(var 0) = %q, want z", got)
	}
	if got := s.Name(KindVar, 2); got != "x(i2)" {
		t.Errorf("Name(var 2) = %q, want x(i2)", got)
	}
	if got := s.Name(KindEqu, 0); got != "e(i1)" {
		t.Errorf("Name(equ 0) = %q, want e(i1)", got)
	}
}

func TestStore_DuplicateSymbol(t *testing.T) {
	s := newSample(t)
	if _, err := s.AddSet("I", 1, nil); err == nil {
		t.Error("expected error for duplicate symbol")
	}
}

func TestOverlay_InternsUnknownLabels(t *testing.T) {
	s := newSample(t)
	o := NewOverlay(s)
	i1 := o.Intern("i1")
	if want, _ := s.ElementID("i1"); i1 != want {
		t.Errorf("Intern(i1) = %d, want %d", i1, want)
	}
	missing := o.Intern("missing")
	if missing >= 0 {
		t.Fatalf("expected negative id, got %d", missing)
	}
	if o.Intern("missing") != missing {
		t.Error("Intern is not stable")
	}
	if got := FormatTuple(o, []int{missing}, true); got != "('missing')" {
		t.Errorf("FormatTuple = %q", got)
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	alpha := 3.0
	file := &DataFile{
		Sets:       []SetData{{Name: "i", Elements: []string{"a", "b"}}},
		Parameters: []ParamData{{Name: "alpha", Value: &alpha}},
		Variables:  []RowData{{Name: "z"}, {Name: "x", Records: [][]string{{"a"}, {"b"}}}},
	}
	if err := WriteSQLite(db, file); err != nil {
		t.Fatalf("write: %v", err)
	}
	db.Close()

	s := NewStore()
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	x, err := s.Lookup("x")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	ref, err := s.ReadRef(x.ID, filterOf(s, "*"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ref.String() != "1..2" {
		t.Errorf("ref = %s, want 1..2", ref)
	}
	a, _ := s.Lookup("alpha")
	if v, _ := s.ReadParam(a.ID, nil); v != 3 {
		t.Errorf("alpha = %v, want 3", v)
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	if err := LoadFile(NewStore(), "data.csv"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
