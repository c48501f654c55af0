package parser_test

import (
	"os"
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
	"github.com/xhub/reshop-sub001/internal/token"
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
	must(s.AddSet("k", 2, [][]string{{"i1", "i2"}}))
	must(s.AddVar("z", 0, nil))
	must(s.AddVar("x1", 0, nil))
	must(s.AddVar("x2", 0, nil))
	must(s.AddEqu("e1", 0, nil))
	must(s.AddEqu("e2", 0, nil))
	must(s.AddVar("x", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddEqu("e", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddScalar("w", 2))
	must(s.AddParam("p", 1, [][]string{{"i1"}}, []float64{1}))
	return s
}

func parse(t *testing.T, src string, dict symbols.Dictionary) (*ast.Program, *pipeline.PipelineContext) {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src, dict)
	ctx.FilePath = filepath.Join(t.TempDir(), "model.emp")
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	return ctx.AstRoot, ctx
}

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, ctx := parse(t, src, testDict(t))
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected errors for %q: %v", src, ctx.Err())
	}
	return prog
}

func TestParser_ImmediateNode(t *testing.T) {
	prog := parseOK(t, "min z; x1 x2; e1 e2;")
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	n, ok := prog.Statements[0].(*ast.NodeDecl)
	if !ok {
		t.Fatalf("statement is %T, want *ast.NodeDecl", prog.Statements[0])
	}
	if n.Kind != token.MIN || n.Label != nil || n.Compiled {
		t.Errorf("node = kind %s label %v compiled %v", n.Kind, n.Label, n.Compiled)
	}
	if n.Objective == nil || n.Objective.Symbol.Name != "z" {
		t.Errorf("objective = %v, want z", n.Objective)
	}
	var names []string
	for _, it := range n.Body {
		names = append(names, it.(*ast.SymbolItem).Ref.Symbol.Name)
	}
	if got := strings.Join(names, " "); got != "x1 x2 e1 e2" {
		t.Errorf("body = %s", got)
	}
}

func TestParser_LoopNode(t *testing.T) {
	prog := parseOK(t, "loop(i, nOpt(i): min z x(i) e(i));")
	loop, ok := prog.Statements[0].(*ast.LoopStmt)
	if !ok {
		t.Fatalf("statement is %T, want *ast.LoopStmt", prog.Statements[0])
	}
	if len(loop.Domain.Sets) != 1 || loop.Domain.Sets[0].Name != "i" {
		t.Errorf("domain = %+v", loop.Domain.Sets)
	}
	n := loop.Body[0].(*ast.NodeDecl)
	if n.Label.Basename != "nOpt" || n.Label.Indices[0].Kind != ast.IndexLoopVar {
		t.Errorf("label = %s %v", n.Label.Basename, n.Label.Indices[0].Kind)
	}
	x := n.Body[0].(*ast.SymbolItem).Ref
	if x.Indices[0].Kind != ast.IndexLoopVar {
		t.Errorf("x(i) index kind = %v, want loop element", x.Indices[0].Kind)
	}
	if !n.Compiled {
		t.Error("node inside a loop must be compiled")
	}
}

func TestParser_ImplicitLoop(t *testing.T) {
	prog := parseOK(t, "nOpt(i) $ p(i): min z x(i)")
	n := prog.Statements[0].(*ast.NodeDecl)
	if n.Label.Indices[0].Kind != ast.IndexSet {
		t.Errorf("label index kind = %v, want free set", n.Label.Indices[0].Kind)
	}
	if _, ok := n.Label.Cond.(*ast.ParamCond); !ok {
		t.Errorf("label condition = %T, want *ast.ParamCond", n.Label.Cond)
	}
	if x := n.Body[0].(*ast.SymbolItem).Ref; x.Indices[0].Kind != ast.IndexLoopVar {
		t.Errorf("body sees i as %v, want loop element", x.Indices[0].Kind)
	}
}

func TestParser_Classification(t *testing.T) {
	testCases := []struct {
		src      string
		compiled bool
	}{
		{"min z x1", false},
		{"n('i1'): min z x('i1')", false},
		{"n(i): min z x1", true},
		{"min z x(i)", true},
		{"min z x(*)", false},
		{"min z sum(i, x(i))", true},
		{"vi e1 x1", false},
		{"n $ w: min z x1", true},
		{"ovf l1 z x1", false},
		{"ovf l1 z x(i)", true},
		{"ovf huber z x1 kappa = 2", false},
		{"nash(a, b)", false},
		{"nash(sum(i, a(i)))", true},
		{"c: ccf l2 z x1 x2", false},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			prog := parseOK(t, tc.src)
			if got := prog.Statements[0].IsCompiled(); got != tc.compiled {
				t.Errorf("compiled = %v, want %v", got, tc.compiled)
			}
		})
	}
}

func TestParser_BodyItems(t *testing.T) {
	prog := parseOK(t, "top: max z -e1 x1 2*x1*c.valfn - sum(i, w*c2(i).valfn) dual(c3, epi, largest) c4 cf.objfn")
	n := prog.Statements[0].(*ast.NodeDecl)
	if len(n.Body) != 7 {
		t.Fatalf("got %d body items, want 7", len(n.Body))
	}
	if e := n.Body[0].(*ast.SymbolItem); !e.Flipped || e.Ref.Symbol.Name != "e1" {
		t.Errorf("item 0 = %+v, want flipped e1", e)
	}
	w := n.Body[2].(*ast.WeightedTerm)
	if w.Sign != 1 || w.Coef.Value != 2 || w.Var.Symbol.Name != "x1" || w.Label.Basename != "c" || w.Member != token.VALFN {
		t.Errorf("item 2 = %+v", w)
	}
	sum := n.Body[3].(*ast.SumItem)
	inner := sum.Items[0].(*ast.WeightedTerm)
	if inner.Sign != -1 || inner.Coef.Param == nil || inner.Label.Indices[0].Kind != ast.IndexLoopVar {
		t.Errorf("negated sum term = %+v", inner)
	}
	d := n.Body[4].(*ast.DualItem)
	if d.Scheme != model.SchemeEpi || d.Domain != model.DomainLargest {
		t.Errorf("dual = %v %v", d.Scheme, d.Domain)
	}
	if l := n.Body[5].(*ast.LabelItem); l.Label.Basename != "c4" {
		t.Errorf("item 5 = %s, want control edge to c4", l.Label.Basename)
	}
	if o := n.Body[6].(*ast.WeightedTerm); o.Member != token.OBJFN {
		t.Errorf("item 6 member = %s, want OBJFN", o.Member)
	}
}

func TestParser_ViPairs(t *testing.T) {
	prog := parseOK(t, "vi e1 x1 x2 e2")
	n := prog.Statements[0].(*ast.NodeDecl)
	if len(n.Body) != 3 {
		t.Fatalf("got %d items, want 3", len(n.Body))
	}
	if p := n.Body[0].(*ast.SymbolItem); p.Pair == nil || p.Pair.Symbol.Name != "x1" {
		t.Errorf("e1 is not paired with x1: %+v", p)
	}
	if z := n.Body[1].(*ast.SymbolItem); z.Pair != nil || z.Ref.Symbol.Name != "x2" {
		t.Errorf("x2 should be a lone variable: %+v", z)
	}
}

func TestParser_StatementSequence(t *testing.T) {
	prog := parseOK(t, `
		# two nodes and a root
		upper: min z x1 lower
		lower: vi e1 x2
		root: upper
		def(s = {'i1', 'i3'}, t = i,
			loop(s, n(s): feasibility x(s)))
	`)
	var kinds []string
	for _, s := range prog.Statements {
		kinds = append(kinds, ast.Keyword(s))
	}
	if got := strings.Join(kinds, " "); got != "min vi root def" {
		t.Errorf("statements = %s", got)
	}
	def := prog.Statements[3].(*ast.DefStmt)
	if len(def.Bindings) != 2 || len(def.Bindings[0].Elements) != 2 || def.Bindings[1].Set == nil {
		t.Errorf("bindings = %+v", def.Bindings)
	}
	loop := def.Body[0].(*ast.LoopStmt)
	if !loop.Domain.Sets[0].Local {
		t.Error("loop over s should iterate the local set")
	}
	if upper := prog.Statements[0].(*ast.NodeDecl); len(upper.Body) != 2 {
		t.Errorf("upper body has %d items, want 2", len(upper.Body))
	}
}

func TestParser_Conditions(t *testing.T) {
	prog := parseOK(t, "loop(i $ (not sameas(i, 'i2') and (p(i) or k(i, 'i2'))), n(i): min z x(i))")
	loop := prog.Statements[0].(*ast.LoopStmt)
	and, ok := loop.Domain.Cond.(*ast.AndCond)
	if !ok {
		t.Fatalf("condition = %T, want *ast.AndCond", loop.Domain.Cond)
	}
	if _, ok := and.Left.(*ast.NotCond); !ok {
		t.Errorf("left = %T, want *ast.NotCond", and.Left)
	}
	or, ok := and.Right.(*ast.OrCond)
	if !ok {
		t.Fatalf("right = %T, want *ast.OrCond", and.Right)
	}
	if in, ok := or.Right.(*ast.InSet); !ok || in.Set.Name != "k" || len(in.Indices) != 2 {
		t.Errorf("membership = %+v", or.Right)
	}
}

func TestParser_Errors(t *testing.T) {
	tooMany := "n(" + strings.TrimSuffix(strings.Repeat("'a',", 21), ",") + "): min z x1"

	testCases := []struct {
		name string
		src  string
		code diagnostics.ErrorCode
	}{
		{"stray_paren", "min z x1 )", diagnostics.ErrP001},
		{"missing_objective", "min x1(", diagnostics.ErrP001},
		{"legacy_keyword", "bilevel x1", diagnostics.ErrP002},
		{"top_level_sum", "sum(i, x(i))", diagnostics.ErrP003},
		{"unknown_index", "min z x(j)", diagnostics.ErrS001},
		{"dimension_mismatch", "min z x('i1', 'i2')", diagnostics.ErrS002},
		{"root_with_set", "root: n(i)", diagnostics.ErrS002},
		{"valfn_outside_opt", "vi e1 c.valfn", diagnostics.ErrS002},
		{"weighted_objfn", "min z 2*c.objfn", diagnostics.ErrS002},
		{"iterate_2d_set", "loop(k, min z x1)", diagnostics.ErrS002},
		{"too_many_indices", tooMany, diagnostics.ErrS003},
		{"duplicate_local", "def(s = {'a'}, s = {'b'}, min z x1)", diagnostics.ErrS005},
		{"nested_same_set", "loop(i, loop(i, min z x1))", diagnostics.ErrS005},
		{"nested_root", "loop(i, root: n)", diagnostics.ErrP001},
		{"illegal_char", "min z ?", diagnostics.ErrL001},
		{"unterminated", "min z x('i1)", diagnostics.ErrL002},
		{"load_missing", "load 'nothere.yaml'", diagnostics.ErrI001},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, ctx := parse(t, tc.src, testDict(t))
			if len(ctx.Errors) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(ctx.Errors), ctx.Err())
			}
			if got := ctx.Errors[0].Code; got != tc.code {
				t.Errorf("code = %s, want %s (%v)", got, tc.code, ctx.Errors[0])
			}
			if ctx.Errors[0].File == "" {
				t.Error("error has no file")
			}
		})
	}
}

func TestParser_StopsAtFirstError(t *testing.T) {
	testCases := []struct {
		name  string
		src   string
		code  diagnostics.ErrorCode
		kept  int
		token string
	}{
		{"unknown_index_then_illegal", "a: min z x1\nb: min z x(j) ?", diagnostics.ErrS001, 1, "j"},
		{"bad_condition_in_loop", "loop(i $ (not), min z x(i)) min z ?", diagnostics.ErrP001, 0, ")"},
		{"bad_member_then_sum", "a: min z x1; g: nash(a, 3) sum(i, x(i))", diagnostics.ErrP001, 1, "3"},
		{"illegal_inside_label", "n('i1' ?): min z x1", diagnostics.ErrL001, 0, "?"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prog, ctx := parse(t, tc.src, testDict(t))
			if len(ctx.Errors) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(ctx.Errors), ctx.Err())
			}
			if d := ctx.Errors[0]; d.Code != tc.code || d.Token.Lexeme != tc.token {
				t.Errorf("error = %v at %q, want %s at %q", d, d.Token.Lexeme, tc.code, tc.token)
			}
			if len(prog.Statements) != tc.kept {
				t.Errorf("kept %d statements, want %d", len(prog.Statements), tc.kept)
			}
		})
	}
}

func TestParser_ExpectedSet(t *testing.T) {
	_, ctx := parse(t, "dual", testDict(t))
	if len(ctx.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(ctx.Errors))
	}
	if d := ctx.Errors[0]; d.Code != diagnostics.ErrP001 || len(d.Expected) == 0 {
		t.Errorf("error = %v, want P001 with an expected set", d)
	}
}

func TestParser_LoadReclassifies(t *testing.T) {
	dir := t.TempDir()
	data := "sets:\n  - name: j\n    elements: [j1, j2]\nvariables:\n  - name: y\n    domain: [j]\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := pipeline.NewPipelineContext("load 'extra.yaml'\nn(j): min z y(j)", testDict(t))
	ctx.FilePath = filepath.Join(dir, "model.emp")
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Err())
	}
	prog := ctx.AstRoot
	if _, ok := prog.Statements[0].(*ast.LoadStmt); !ok {
		t.Fatalf("first statement is %T, want *ast.LoadStmt", prog.Statements[0])
	}
	n := prog.Statements[1].(*ast.NodeDecl)
	if n.Label.Indices[0].Kind != ast.IndexSet {
		t.Errorf("j classified as %v, want free set", n.Label.Indices[0].Kind)
	}
	if y := n.Body[0].(*ast.SymbolItem).Ref; y.Symbol.Name != "y" {
		t.Errorf("body = %s, want y", y.Symbol.Name)
	}
}
