package labels

import (
	"strings"
	"testing"

	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
)

type fixture struct {
	store   *symbols.Store
	dict    *symbols.Overlay
	graph   *model.Graph
	reg     *Registry
	pending *Pending
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := symbols.NewStore()
	if _, err := store.AddSet("i", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		store:   store,
		dict:    symbols.NewOverlay(store),
		graph:   model.NewGraph(),
		reg:     NewRegistry(),
		pending: &Pending{},
	}
}

func (f *fixture) el(label string) int {
	return f.dict.Intern(label)
}

// node declares a finalized optimization node named basename(labels...).
func (f *fixture) node(basename string, labels ...string) model.NodeRef {
	mp := f.graph.NewMP(model.SenseMin)
	f.graph.SetObjVar(mp.ID, mp.ID)
	ref := model.MPRef(mp.ID)
	tuple := make([]int, len(labels))
	for i, l := range labels {
		tuple[i] = f.el(l)
	}
	f.reg.Register(basename, tuple, ref)
	f.graph.SetName(ref, NodeName(f.dict, basename, tuple))
	return ref
}

func (f *fixture) resolve() (Stats, error) {
	return Resolve(f.graph, f.reg, f.pending, f.dict)
}

func TestResolve_MissingLabelReportsName(t *testing.T) {
	f := newFixture(t)
	upper := f.node("upper")
	f.pending.AddLabel(&Label{Kind: model.EdgeControl, Basename: "nOpt", Tuple: []int{f.el("missing")}, Parent: upper, Var: model.NoIndex})

	_, err := f.resolve()
	diags := diagnostics.Flatten(err)
	if len(diags) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", err)
	}
	if diags[0].Kind() != diagnostics.SemanticError {
		t.Errorf("kind = %s, want semantic error", diags[0].Kind())
	}
	if !strings.Contains(diags[0].Message, "nOpt('missing')") {
		t.Errorf("message %q does not name nOpt('missing')", diags[0].Message)
	}
	if len(f.graph.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(f.graph.Edges))
	}
}

func TestResolve_AccumulatesAllMissingNames(t *testing.T) {
	f := newFixture(t)
	upper := f.node("upper")
	f.node("nOpt", "i1")
	for _, name := range []string{"a", "b", "c"} {
		f.pending.AddLabel(&Label{Kind: model.EdgeControl, Basename: name, Parent: upper, Var: model.NoIndex})
	}
	// Right basename, wrong element: reported by the second phase only.
	f.pending.AddLabel(&Label{Kind: model.EdgeControl, Basename: "NOPT", Tuple: []int{f.el("i2")}, Parent: upper, Var: model.NoIndex})

	_, err := f.resolve()
	if got := len(diagnostics.Flatten(err)); got != 3 {
		t.Errorf("expected 3 existence errors, got %d: %v", got, err)
	}

	f.pending.Labels = f.pending.Labels[3:]
	_, err = f.resolve()
	if got := len(diagnostics.Flatten(err)); got != 1 {
		t.Errorf("expected 1 lookup error, got %d: %v", got, err)
	}
	if len(f.graph.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(f.graph.Edges))
	}
}

func TestResolve_RootCandidates(t *testing.T) {
	f := newFixture(t)
	f.node("a")
	f.node("b")

	_, err := f.resolve()
	diags := diagnostics.Flatten(err)
	if len(diags) != 1 || diags[0].Code != diagnostics.ErrS009 {
		t.Fatalf("expected one root error, got %v", err)
	}
	for _, want := range []string{"2 root candidates", "a", "b"} {
		if !strings.Contains(diags[0].Message, want) {
			t.Errorf("message %q lacks %q", diags[0].Message, want)
		}
	}
}

func TestResolve_ExplicitRootWins(t *testing.T) {
	f := newFixture(t)
	f.node("a")
	b := f.node("b")
	f.pending.Root = &Label{Basename: "b", Var: model.NoIndex}

	stats, err := f.resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Root != b || f.graph.Root != b {
		t.Errorf("root = %v, want %v", f.graph.Root, b)
	}
}

func TestResolve_ArcWithFreePositionsAndIdempotence(t *testing.T) {
	f := newFixture(t)
	upper := f.node("upper")
	for _, l := range []string{"i1", "i2", "i3"} {
		f.node("nOpt", l)
	}

	tmpl := &ArcTemplate{Kind: model.EdgeValFn, Basename: "nOpt", Dim: 1, Index: []int{0}, Free: []int{0}}
	arc := NewArc(tmpl, upper, 1)
	for i, l := range []string{"i1", "i2", "i3"} {
		arc.Store([]int{f.el(l)}, 2, true, 10+i)
	}
	f.pending.AddArc(arc)
	f.pending.Root = &Label{Basename: "upper", Var: model.NoIndex}

	stats, err := f.resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.EdgesAdded != 3 {
		t.Errorf("edges added = %d, want 3", stats.EdgesAdded)
	}
	if f.graph.Root != upper {
		t.Errorf("root = %v, want %v", f.graph.Root, upper)
	}
	for _, e := range f.graph.Edges {
		if e.Weight.Kind != model.WeightConstVar {
			t.Errorf("weight kind = %s, want constvar", e.Weight.Kind)
		}
	}

	journal := len(f.graph.Journal)
	stats, err = f.resolve()
	if err != nil || stats.EdgesAdded != 0 {
		t.Errorf("second resolve = %+v, %v; want no-op", stats, err)
	}
	if len(f.graph.Journal) != journal {
		t.Error("second resolve mutated the graph")
	}
}

func TestResolve_AmbiguousLabel(t *testing.T) {
	f := newFixture(t)
	upper := f.node("upper")
	f.node("dup")
	f.node("dup")
	f.pending.AddLabel(&Label{Kind: model.EdgeControl, Basename: "dup", Parent: upper, Var: model.NoIndex})

	_, err := f.resolve()
	diags := diagnostics.Flatten(err)
	if len(diags) != 1 || diags[0].Code != diagnostics.ErrS007 {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
}

func TestResolve_InvalidTarget(t *testing.T) {
	f := newFixture(t)
	nash := f.graph.NewNash()
	f.reg.Register("eq", nil, model.NashRef(nash.ID))
	upper := f.node("upper")
	f.pending.AddLabel(&Label{Kind: model.EdgeValFn, Basename: "eq", Parent: upper, Var: model.NoIndex})

	_, err := f.resolve()
	diags := diagnostics.Flatten(err)
	if len(diags) != 1 || diags[0].Code != diagnostics.ErrS008 {
		t.Fatalf("expected invalid target error, got %v", err)
	}
}

func TestResolve_EmptyGraph(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resolve(); !diagnostics.IsKind(err, diagnostics.SemanticError) {
		t.Errorf("expected semantic error for empty graph, got %v", err)
	}
}

func TestResolve_OnlyControlAndEquilibriumHideRoots(t *testing.T) {
	tests := []struct {
		name       string
		kind       model.EdgeKind
		candidates int
	}{
		{"control", model.EdgeControl, 1},
		{"equilibrium", model.EdgeEquil, 1},
		{"valfn", model.EdgeValFn, 2},
		{"dual", model.EdgeDual, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var parent model.NodeRef
			if tt.kind == model.EdgeEquil {
				nash := f.graph.NewNash()
				parent = model.NashRef(nash.ID)
				f.reg.Register("upper", nil, parent)
			} else {
				parent = f.node("upper")
			}
			f.node("lower")
			f.pending.AddLabel(&Label{Kind: tt.kind, Basename: "lower", Parent: parent, Var: model.NoIndex,
				Scheme: model.SchemeEpi, Domain: model.DomainLargest})

			stats, err := f.resolve()
			if stats.EdgesAdded != 1 {
				t.Errorf("edges added = %d, want 1", stats.EdgesAdded)
			}
			if tt.candidates == 1 {
				if err != nil || f.graph.Root != parent {
					t.Errorf("root = %v, err = %v; want %v", f.graph.Root, err, parent)
				}
				return
			}
			diags := diagnostics.Flatten(err)
			if len(diags) != 1 || diags[0].Code != diagnostics.ErrS009 || !strings.Contains(diags[0].Message, "2 root candidates") {
				t.Fatalf("expected root inference to see 2 candidates, got %v", err)
			}
		})
	}
}

func TestResolve_DualEdgesDoNotHideRoots(t *testing.T) {
	f := newFixture(t)
	upper := f.node("upper")
	f.node("lower")
	f.pending.AddLabel(&Label{Kind: model.EdgeDual, Basename: "lower", Parent: upper, Var: model.NoIndex,
		Scheme: model.SchemeEpi, Domain: model.DomainLargest})

	stats, err := f.resolve()
	if stats.EdgesAdded != 1 {
		t.Errorf("edges added = %d, want 1", stats.EdgesAdded)
	}
	if len(f.graph.DualBuckets[model.SchemeEpi][model.DomainLargest]) != 1 {
		t.Error("dual edge not filed in its bucket")
	}
	diags := diagnostics.Flatten(err)
	if len(diags) != 1 || diags[0].Code != diagnostics.ErrS009 {
		t.Fatalf("expected root inference to see 2 candidates, got %v", err)
	}
}
