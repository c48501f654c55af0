package backend_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/backend"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/lexer"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/parser"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/symbols"
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

// interpret runs the whole interpretation pass over src.
func interpret(t *testing.T, src string, opts *config.Options) *pipeline.PipelineContext {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src, testDict(t))
	ctx.FilePath = filepath.Join("testdata", "model.emp")
	if opts != nil {
		ctx.Options = opts
	}
	return pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		backend.NewExecutionProcessor(nil),
		backend.NewResolverProcessor(),
	).Run(ctx)
}

func interpretOK(t *testing.T, src string, opts *config.Options) *pipeline.PipelineContext {
	t.Helper()
	ctx := interpret(t, src, opts)
	if err := ctx.Err(); err != nil {
		t.Fatalf("unexpected errors for %q: %v", src, err)
	}
	return ctx
}

func withMode(mode config.Mode) *config.Options {
	opts := config.DefaultOptions()
	opts.Mode = mode
	return opts
}

func TestIndexFreeNodeIsTheRoot(t *testing.T) {
	ctx := interpretOK(t, "min z; x1 x2; e1 e2;", nil)
	g := ctx.Session.Graph

	if len(g.MPs) != 1 {
		t.Fatalf("got %d nodes, want 1", len(g.MPs))
	}
	mp := g.MPs[0]
	if mp.Sense != model.SenseMin || !mp.Finalized {
		t.Errorf("node: sense %s finalized %v", mp.Sense, mp.Finalized)
	}
	if len(mp.Vars) != 2 || len(mp.Equs) != 2 || mp.ObjVar == model.NoIndex {
		t.Errorf("node: %d vars %d equs objvar %d", len(mp.Vars), len(mp.Equs), mp.ObjVar)
	}
	if g.Root != model.MPRef(0) || ctx.Stats.Root != g.Root {
		t.Errorf("root = %s (stats %s)", g.Root, ctx.Stats.Root)
	}
}

func TestLoopRegistersEveryNode(t *testing.T) {
	ctx := interpretOK(t, "loop(i, nOpt(i): min v(i) x(i) e(i));\ntop: min z nOpt('i1') nOpt('i2') nOpt('i3')", nil)
	g := ctx.Session.Graph

	var names []string
	for _, mp := range g.MPs {
		names = append(names, mp.Name)
	}
	if got := strings.Join(names, " "); got != "nOpt(i1) nOpt(i2) nOpt(i3) top" {
		t.Errorf("nodes = %q", got)
	}
	if n := ctx.Session.Registry.Len(); n != 4 {
		t.Errorf("registry has %d entries, want 4", n)
	}
	if ctx.Stats.EdgesAdded != 3 || g.NodeName(g.Root) != "top" {
		t.Errorf("stats = %+v, root %s", ctx.Stats, g.NodeName(g.Root))
	}
}

func TestMissingLabelAbortsResolution(t *testing.T) {
	ctx := interpret(t, "top: min z x1 nOpt('missing')\nloop(i, nOpt(i): min v(i) x(i))", nil)
	if len(ctx.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(ctx.Errors), ctx.Err())
	}
	d := ctx.Errors[0]
	if d.Kind() != diagnostics.SemanticError || !strings.Contains(d.Message, "nOpt('missing')") {
		t.Errorf("error = %v", d)
	}
	if d.Token.Line != 1 || d.File != filepath.Join("testdata", "model.emp") {
		t.Errorf("error is not located: %v", d)
	}
	if n := len(ctx.Session.Graph.Edges); n != 0 {
		t.Errorf("got %d edges, want none", n)
	}
}

func TestRootMustBeUnique(t *testing.T) {
	ctx := interpret(t, "a: min z x1\nb: min z x2", nil)
	err := ctx.Err()
	if !diagnostics.IsKind(err, diagnostics.SemanticError) {
		t.Fatalf("err = %v, want a semantic error", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "2 root candidates") || !strings.Contains(msg, "a, b") {
		t.Errorf("message = %q", msg)
	}
}

func TestExplicitRoot(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		require bool
		root    string
		wantErr diagnostics.ErrorCode
	}{
		{"declared", "a: min z x1\nb: min z x2\nroot: b", false, "b", ""},
		{"declared_before_node", "root: b\na: min z x1 b\nb: min z x2", false, "b", ""},
		{"indexed", "loop(i, n(i): min v(i) x(i))\nroot: n('i2')", false, "n(i2)", ""},
		{"inferred", "a: min z x1 b\nb: min z x2", false, "a", ""},
		{"required", "a: min z x1 b\nb: min z x2", true, "", diagnostics.ErrS009},
		{"required_and_declared", "a: min z x1 b\nb: min z x2\nroot: a", true, "a", ""},
		{"unknown", "a: min z x1\nroot: c", false, "", diagnostics.ErrS006},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := config.DefaultOptions()
			opts.RequireRoot = tt.require
			ctx := interpret(t, tt.src, opts)
			if tt.wantErr != "" {
				if len(ctx.Errors) != 1 || ctx.Errors[0].Code != tt.wantErr {
					t.Fatalf("errors = %v, want %s", ctx.Err(), tt.wantErr)
				}
				return
			}
			if err := ctx.Err(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			g := ctx.Session.Graph
			if got := g.NodeName(g.Root); got != tt.root {
				t.Errorf("root = %s, want %s", got, tt.root)
			}
		})
	}
}

const mixedModel = `
c: min x1 e1
d: min x2 e2 ovf huber z x('i1') kappa = w
n1: vi e('i1') x('i1') x('i2')
cf: ccf l2 v('i1') x('i3') x1
top: max z -e('i3') 2*x1*c.valfn - p('i2')*d.valfn n1 cf.objfn dual(c, epi, largest)
game: nash(top)
root: game
`

// Both execution paths must drive the model API identically.
func TestEmbeddedModeMatchesAuto(t *testing.T) {
	auto := interpretOK(t, mixedModel, withMode(config.ModeAuto))
	embedded := interpretOK(t, mixedModel, withMode(config.ModeEmbedded))

	a, e := auto.Session.Graph, embedded.Session.Graph
	if strings.Join(a.Journal, "\n") != strings.Join(e.Journal, "\n") {
		t.Errorf("journals differ\nauto:\n%s\n\nembedded:\n%s",
			strings.Join(a.Journal, "\n"), strings.Join(e.Journal, "\n"))
	}
	if a.NodeName(a.Root) != "game" || len(a.Edges) != 6 {
		t.Errorf("auto graph:\n%s", a)
	}
}

func TestWeightedTermsOnTreeWalker(t *testing.T) {
	ctx := interpretOK(t, mixedModel, nil)
	g := ctx.Session.Graph

	var weights []string
	for _, e := range g.Edges {
		if e.Kind == model.EdgeValFn {
			weights = append(weights, e.Weight.String())
		}
	}
	if len(weights) != 2 {
		t.Fatalf("got %d valfn edges, want 2:\n%s", len(weights), g)
	}
	if weights[0] == weights[1] {
		t.Errorf("both weights are %s", weights[0])
	}
	top := g.MPs[4]
	if top.Name != "top" || len(top.Flipped) != 1 || len(top.Ovfs) != 0 {
		t.Errorf("top = %+v", top)
	}
	if d := g.MPs[1]; len(d.Ovfs) != 1 {
		t.Errorf("d has %d ovfs, want 1", len(d.Ovfs))
	}
}

func TestSelect(t *testing.T) {
	immediate, compiled, embedded := backend.NewTreeWalk(), backend.NewVM(), backend.NewVM(true)
	tests := []struct {
		stmt ast.Statement
		mode config.Mode
		want string
	}{
		{&ast.NodeDecl{}, config.ModeAuto, "immediate"},
		{&ast.NodeDecl{Compiled: true}, config.ModeAuto, "compiled"},
		{&ast.LoopStmt{}, config.ModeAuto, "compiled"},
		{&ast.NodeDecl{}, config.ModeEmbedded, "embedded"},
		{&ast.DefStmt{}, config.ModeEmbedded, "embedded"},
		{&ast.RootStmt{}, config.ModeEmbedded, "immediate"},
		{&ast.LoadStmt{}, config.ModeEmbedded, "immediate"},
	}
	for _, tt := range tests {
		b := backend.Select(tt.mode, tt.stmt, immediate, compiled, embedded)
		if b.Name() != tt.want {
			t.Errorf("%s in %s mode runs on %s, want %s", ast.Keyword(tt.stmt), tt.mode, b.Name(), tt.want)
		}
	}
}

func TestExecutionStopsAtFirstError(t *testing.T) {
	ctx := interpret(t, "a: min z x1\nb: max x2 y('i3')\nc: min z x1", nil)
	if len(ctx.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(ctx.Errors), ctx.Err())
	}
	if line := ctx.Errors[0].Token.Line; line != 2 {
		t.Errorf("error on line %d, want 2: %v", line, ctx.Errors[0])
	}
	if n := len(ctx.Session.Graph.MPs); n != 2 {
		t.Errorf("got %d nodes, want 2 (the third statement must not run)", n)
	}
	if ctx.Session.Graph.Root.Valid() {
		t.Error("resolution ran after an execution error")
	}
}

func TestTraceLogsBytecode(t *testing.T) {
	var buf bytes.Buffer
	opts := config.DefaultOptions()
	opts.Trace = true
	ctx := pipeline.NewPipelineContext("loop(i, n(i): min v(i) x(i))", testDict(t))
	ctx.Options = opts
	ctx.Logger = log.New(&buf, "", 0)
	pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		backend.NewExecutionProcessor(nil),
	).Run(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"on compiled", "== loop ==", "INIT_LOOP"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace does not contain %q:\n%s", want, out)
		}
	}
}

func TestDisassembleDoesNotRun(t *testing.T) {
	ctx := pipeline.NewPipelineContext("a: min z x1\nloop(i, n(i): min v(i) x(i))\nroot: a", testDict(t))
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatal(err)
	}
	out, err := backend.NewVM().Disassemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "== min ==") || !strings.Contains(out, "== loop ==") {
		t.Errorf("disassembly:\n%s", out)
	}
	if strings.Contains(out, "== root ==") {
		t.Error("root statements have no bytecode")
	}
	if n := len(ctx.Session.Graph.MPs); n != 0 {
		t.Errorf("disassembly created %d nodes", n)
	}
}

func TestCancelledPass(t *testing.T) {
	goctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := pipeline.NewPipelineContext("loop(i, n(i): min v(i) x(i))", testDict(t))
	ctx = pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		backend.NewExecutionProcessor(goctx),
	).Run(ctx)
	if len(ctx.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(ctx.Errors), ctx.Err())
	}
	if d := ctx.Errors[0]; d.Code != diagnostics.ErrR003 || !errors.Is(d, context.Canceled) {
		t.Errorf("error = %v", d)
	}
	if n := len(ctx.Session.Graph.MPs); n != 0 {
		t.Errorf("got %d nodes after cancellation", n)
	}
}

func TestLoadMakesSymbolsVisible(t *testing.T) {
	dir := t.TempDir()
	data := "sets:\n  - name: k\n    elements: [k1, k2]\nvariables:\n  - name: u\n    domain: [k]\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := pipeline.NewPipelineContext("load 'extra.yaml'\nloop(k, n(k): min z u(k))\ntop: min z n('k1') n('k2')",
		testDict(t))
	ctx.FilePath = filepath.Join(dir, "model.emp")
	ctx = pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		backend.NewExecutionProcessor(nil),
		backend.NewResolverProcessor(),
	).Run(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatal(err)
	}
	if n := len(ctx.Session.Graph.MPs); n != 3 {
		t.Errorf("got %d nodes, want 3", n)
	}
}
