package vm_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/lexer"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/parser"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/vm"
)

func testDict(t *testing.T) *symbols.Store {
	t.Helper()
	s := symbols.NewStore()
	must := func(_ symbols.Symbol, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.AddSet("i", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddSet("j", 1, [][]string{{"i1"}, {"i3"}}))
	must(s.AddSet("none", 1, nil))
	must(s.AddVar("z", 0, nil))
	must(s.AddVar("x1", 0, nil))
	must(s.AddVar("x2", 0, nil))
	must(s.AddEqu("e1", 0, nil))
	must(s.AddEqu("e2", 0, nil))
	must(s.AddVar("v", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddVar("x", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddVar("y", 1, [][]string{{"i1"}, {"i2"}}))
	must(s.AddEqu("e", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddScalar("w", 2))
	must(s.AddParam("p", 1, [][]string{{"i1"}, {"i2"}}, []float64{1, 2}))
	return s
}

// machine compiles and runs statements against one session.
type machine struct {
	ctx      *pipeline.PipelineContext
	compiler *vm.Compiler
	chunks   []*vm.Chunk
}

func parse(t *testing.T, src string, dict symbols.Dictionary) *pipeline.PipelineContext {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src, dict)
	ctx.FilePath = filepath.Join("testdata", "model.emp")
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("parse errors for %q: %v", src, ctx.Err())
	}
	return ctx
}

func newMachine(t *testing.T, src string, dict symbols.Dictionary) *machine {
	t.Helper()
	m := &machine{ctx: parse(t, src, dict)}
	exec := vm.New(m.ctx.Session)
	m.compiler = vm.NewCompiler(m.ctx.Session, func(chunk *vm.Chunk) error {
		m.chunks = append(m.chunks, chunk)
		return exec.Run(chunk)
	})
	m.compiler.SetFile(m.ctx.FilePath)
	return m
}

// run compiles every statement but root declarations, which only the
// backends execute. It stops at the first error.
func (m *machine) run(t *testing.T) error {
	t.Helper()
	for _, stmt := range m.ctx.AstRoot.Statements {
		if _, ok := stmt.(*ast.RootStmt); ok {
			continue
		}
		err := m.compiler.Compile(stmt)
		if n := m.compiler.LocalCount(); n != 0 {
			t.Errorf("%d locals left after %s", n, ast.Keyword(stmt))
		}
		if n := m.compiler.PendingJumps(); n != 0 {
			t.Errorf("%d jumps left after %s", n, ast.Keyword(stmt))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runOK(t *testing.T, src string) *machine {
	t.Helper()
	m := newMachine(t, src, testDict(t))
	if err := m.run(t); err != nil {
		t.Fatalf("unexpected error for %q: %v", src, err)
	}
	return m
}

func (m *machine) graph() *model.Graph {
	return m.ctx.Session.Graph
}

func mpNames(g *model.Graph) string {
	names := make([]string, len(g.MPs))
	for i, mp := range g.MPs {
		names[i] = mp.Name
	}
	return strings.Join(names, " ")
}

func TestLoopCreatesOneNodePerElement(t *testing.T) {
	m := runOK(t, "loop(i, nOpt(i): min v(i) x(i) e(i));")
	g := m.graph()

	if got := mpNames(g); got != "nOpt(i1) nOpt(i2) nOpt(i3)" {
		t.Errorf("nodes = %q", got)
	}
	for _, mp := range g.MPs {
		if !mp.Finalized || mp.ObjVar == model.NoIndex {
			t.Errorf("%s: finalized %v objvar %d", mp.Name, mp.Finalized, mp.ObjVar)
		}
		if len(mp.Vars) != 1 || len(mp.Equs) != 1 {
			t.Errorf("%s: %d vars %d equs, want 1 and 1", mp.Name, len(mp.Vars), len(mp.Equs))
		}
	}
	if n := m.ctx.Session.Registry.Len(); n != 3 {
		t.Errorf("registry has %d entries, want 3", n)
	}
	if len(m.chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(m.chunks))
	}
}

func TestImplicitLoopFollowsLabelCondition(t *testing.T) {
	m := runOK(t, "nOpt(i) $ p(i): min z x(i)")
	if got := mpNames(m.graph()); got != "nOpt(i1) nOpt(i2)" {
		t.Errorf("nodes = %q", got)
	}
}

func TestEmptySetSkipsLoop(t *testing.T) {
	m := runOK(t, "loop(none, n(none): min z x1)\nloop(i, loop(none, k(i, none): min z x1))")
	if n := len(m.graph().MPs); n != 0 {
		t.Errorf("got %d nodes, want none", n)
	}
}

func TestNestedLoops(t *testing.T) {
	m := runOK(t, "loop(i, loop(j, n(i, j): min z x(i)))")
	g := m.graph()
	if len(g.MPs) != 6 {
		t.Fatalf("got %d nodes, want 6", len(g.MPs))
	}
	if g.MPs[0].Name != "n(i1,i1)" || g.MPs[1].Name != "n(i1,i3)" || g.MPs[5].Name != "n(i3,i3)" {
		t.Errorf("nodes = %q, want row-major order", mpNames(g))
	}
}

func TestConditions(t *testing.T) {
	testCases := []struct {
		cond string
		want string
	}{
		{"sameas(i, 'i2')", "n(i2)"},
		{"not sameas(i, 'i2')", "n(i1) n(i3)"},
		{"j(i)", "n(i1) n(i3)"},
		{"(j(i) or sameas(i, 'i2'))", "n(i1) n(i2) n(i3)"},
		{"(j(i) and p(i))", "n(i1)"},
		{"(not j(i) and not p(i))", ""},
		{"(not (j(i) or p(i)))", ""},
		{"(sameas(i, 'i3') or (p(i) and not j(i)))", "n(i2) n(i3)"},
	}

	for _, tc := range testCases {
		t.Run(tc.cond, func(t *testing.T) {
			m := runOK(t, "loop(i $ "+tc.cond+", n(i): min z x(i))")
			if got := mpNames(m.graph()); got != tc.want {
				t.Errorf("nodes = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocalSets(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{"literal", "def(s = {'i1', 'i3'}, loop(s, n(s): feasibility x(s)))", "n(i1) n(i3)"},
		{"copy", "def(s = j, loop(s, n(s): min z x(s)))", "n(i1) n(i3)"},
		{"membership", "def(s = {'i2'}, loop(i $ s(i), n(i): min z x(i)))", "n(i2)"},
		{"implicit", "def(s = {'i3'}, n(s): min z x(s))", "n(i3)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := runOK(t, tc.src)
			if got := mpNames(m.graph()); got != tc.want {
				t.Errorf("nodes = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocalSetFiltersSymbol(t *testing.T) {
	m := runOK(t, "def(s = {'i1', 'i3'}, m: min z x(s))")
	g := m.graph()
	if len(g.MPs) != 1 {
		t.Fatalf("got %d nodes, want 1", len(g.MPs))
	}
	if n := len(g.MPs[0].Vars); n != 2 {
		t.Errorf("got %d variables, want x(i1) and x(i3)", n)
	}
}

func TestSumBuildsOneArc(t *testing.T) {
	m := runOK(t, `
		loop(i, c(i): min v(i) x(i))
		top: max z sum(i, w*c(i).valfn)
	`)
	sess := m.ctx.Session
	sess.SetRoot("top", nil, 3)
	if n := len(sess.Pending.Arcs); n != 1 {
		t.Fatalf("got %d pending arcs, want 1", n)
	}
	if n := len(sess.Pending.Arcs[0].Children); n != 3 {
		t.Errorf("arc has %d children, want 3", n)
	}

	stats, err := sess.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stats.EdgesAdded != 3 {
		t.Errorf("added %d edges, want 3", stats.EdgesAdded)
	}
	g := m.graph()
	for _, e := range g.Edges {
		if e.Kind != model.EdgeValFn || e.Weight == nil || e.Weight.Kind != model.WeightConst || e.Weight.Const != 2 {
			t.Errorf("edge %s -> %s = %+v", g.NodeName(e.From), g.NodeName(e.To), e)
		}
	}
	if got := g.NodeName(g.Root); got != "top" {
		t.Errorf("root = %s, want top", got)
	}
}

func TestSumSkipsEmptyArcs(t *testing.T) {
	m := runOK(t, `
		loop(i, c(i): min v(i) x(i))
		top: max z sum(none, c(none).valfn) c('i1').valfn
	`)
	if n := len(m.ctx.Session.Pending.Arcs); n != 1 {
		t.Errorf("got %d pending arcs, want only the non-empty one", n)
	}
}

func TestNashMembers(t *testing.T) {
	m := runOK(t, `
		loop(i, c(i): min v(i) x(i))
		eq: nash(sum(i $ j(i), c(i)))
	`)
	m.ctx.Session.SetRoot("eq", nil, 3)
	if _, err := m.ctx.Session.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	g := m.graph()
	if len(g.Nashs) != 1 || len(g.Nashs[0].Members) != 2 {
		t.Fatalf("nash = %+v", g.Nashs)
	}
	if got := g.NodeName(g.Root); got != "eq" {
		t.Errorf("root = %s, want eq", got)
	}
}

func TestHoistedArcIsCopiedPerNode(t *testing.T) {
	m := runOK(t, `
		leaf: min z x1
		n(i): min v(i) x(i) leaf
	`)
	if len(m.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(m.chunks))
	}
	listing := vm.Disassemble(m.chunks[1], "n(i)", m.ctx.Session)
	if !strings.Contains(listing, "ARC_DUP") {
		t.Errorf("control arc was not hoisted:\n%s", listing)
	}

	_, err := m.ctx.Session.Resolve()
	g := m.graph()
	if len(g.Edges) != 3 {
		t.Fatalf("got %d edges, want 3", len(g.Edges))
	}
	for i, e := range g.Edges {
		if e.Kind != model.EdgeControl || e.From != model.MPRef(i+1) || g.NodeName(e.To) != "leaf" {
			t.Errorf("edge %d = %s -%s-> %s", i, g.NodeName(e.From), e.Kind, g.NodeName(e.To))
		}
	}
	// The three n(i) nodes are all root candidates.
	if !diagnostics.IsKind(err, diagnostics.SemanticError) || !strings.Contains(err.Error(), "3 root candidates") {
		t.Errorf("err = %v, want 3 root candidates", err)
	}
}

func TestViAndOvf(t *testing.T) {
	m := runOK(t, `
		loop(i, n(i): vi e(i) x(i) x1)
		loop(i, o(i): min v(i) x(i) ovf huber v(i) x(i) kappa = w)
	`)
	g := m.graph()
	if len(g.MPs) != 6 {
		t.Fatalf("got %d nodes, want 6", len(g.MPs))
	}
	vi := g.MPs[0]
	if vi.Type != model.TypeVI || len(vi.ViPairs) != 1 || len(vi.ViZeroFunc) != 1 {
		t.Errorf("vi node = %+v", vi)
	}
	if len(g.Ovfs) != 3 {
		t.Fatalf("got %d ovfs, want 3", len(g.Ovfs))
	}
	if k, ok := g.Ovfs[0].Param("kappa"); !ok || k != 2 {
		t.Errorf("kappa = %v %v, want 2", k, ok)
	}
	if o := g.MPs[3]; len(o.Ovfs) != 1 {
		t.Errorf("%s has %d ovfs, want 1", o.Name, len(o.Ovfs))
	}
}

func TestJournalOrder(t *testing.T) {
	m := runOK(t, "loop(j, n(j): min z x(j) e(j))")
	journal := strings.Join(m.graph().Journal, "\n")
	want := []string{"new mp#0 min", "name mp#0 n(i1)", "mp#0 finalize", "new mp#1 min", "name mp#1 n(i3)", "mp#1 finalize"}
	pos := 0
	for _, w := range want {
		i := strings.Index(journal[pos:], w)
		if i < 0 {
			t.Fatalf("journal is missing %q after offset %d:\n%s", w, pos, journal)
		}
		pos += i + len(w)
	}
}

func TestDisassemble(t *testing.T) {
	m := runOK(t, "loop(i $ p(i), n(i): min z x(i))")
	listing := vm.Disassemble(m.chunks[0], "loop", m.ctx.Session)

	for _, want := range []string{
		"== loop ==",
		"INIT_LOOP",
		"SET_CARD           i -> L",
		"JUMP_IF_ZERO",
		"UPDATE_ELEM        i[L",
		"READ_PARAM         p/1",
		"JUMP_IF_FALSE",
		"NEW_OBJ            NEW_MP/1",
		"REG_INIT",
		"CALL_API           ADD_VAR/1",
		"CALL_API           FINALIZE/0",
		"INC_LOOP",
		"END",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing is missing %q:\n%s", want, listing)
		}
	}
}

func TestDisassembleTruncated(t *testing.T) {
	chunk := vm.NewChunk()
	chunk.WriteOp(vm.OP_CONST, 1)
	chunk.Write(0, 1)
	listing := vm.Disassemble(chunk, "bad", nil)
	if !strings.Contains(listing, "(truncated)") {
		t.Errorf("listing = %q", listing)
	}
}

func TestGlobalsShareScalars(t *testing.T) {
	sess := vm.NewSession(testDict(t))
	a, _ := sess.Globals.Add(vm.FloatVal(2))
	b, _ := sess.Globals.Add(vm.FloatVal(2))
	c, _ := sess.Globals.Add(vm.StrVal("huber"))
	d, _ := sess.Globals.Add(vm.StrVal("huber"))
	if a != b || c != d {
		t.Errorf("equal scalars got %d/%d and %d/%d", a, b, c, d)
	}
	e, _ := sess.Globals.Add(vm.RegVal(&vm.RegTemplate{Basename: "n"}))
	f, _ := sess.Globals.Add(vm.RegVal(&vm.RegTemplate{Basename: "n"}))
	if e == f {
		t.Error("templates must not be shared")
	}
	if sess.Globals.Len() != 4 {
		t.Errorf("got %d globals, want 4", sess.Globals.Len())
	}
}

func TestMachineIsIdleAfterRun(t *testing.T) {
	ctx := parse(t, "loop(i, n(i): min z x(i))", testDict(t))
	machine := vm.New(ctx.Session)
	compiler := vm.NewCompiler(ctx.Session, machine.Run)
	if err := compiler.Compile(ctx.AstRoot.Statements[0]); err != nil {
		t.Fatal(err)
	}
	if machine.State() != vm.Idle || machine.StackDepth() != 0 {
		t.Errorf("machine = %s", machine)
	}
}
