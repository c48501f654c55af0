package prettyprinter_test

import (
	"strings"
	"testing"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/lexer"
	"github.com/xhub/reshop-sub001/internal/parser"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/prettyprinter"
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
	must(s.AddSet("j", 1, [][]string{{"i1"}, {"i3"}}))
	must(s.AddVar("z", 0, nil))
	must(s.AddVar("x1", 0, nil))
	must(s.AddEqu("e1", 0, nil))
	must(s.AddVar("x", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddEqu("e", 1, [][]string{{"i1"}, {"i2"}, {"i3"}}))
	must(s.AddScalar("w", 2))
	must(s.AddParam("p", 1, [][]string{{"i1"}, {"i2"}}, []float64{1, 2}))
	return s
}

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src, testDict(t))
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatalf("parse errors for %q: %v", src, err)
	}
	return ctx.AstRoot
}

func TestPrint(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"anonymous", "min z; x1; e1;", "min z x1 e1;\n"},
		{"label_condition", "n(i) $ p(i): min z x(i)", "n(i) $ p(i): min z x(i);\n"},
		{"weighted", "top: max z -e1 2*x1*c.valfn - w*d.valfn dual(c, epi)",
			"top: max z -e1 2*x1*c.valfn - w*d.valfn dual(c, epi, default);\n"},
		{"vi_pair", "vi e('i1') x('i1') x(*)", "vi e('i1') x('i1') x(*);\n"},
		{"nash", "g: nash(a, sum(i $ j(i), c(i)))", "g: nash(a, sum(i $ j(i), c(i)));\n"},
		{"equilibrium_alias", "g: equilibrium(a, b)", "g: nash(a, b);\n"},
		{"ovf", "min z x1 ovf huber z x('i1') kappa = w", "min z x1 ovf huber z x('i1') kappa = w;\n"},
		{"root", "root: top('i1')", "root: top('i1')\n"},
		{"loop", "loop(i $ (not sameas(i, 'i2') and p(i)), n(i): min z x(i))",
			"loop(i $ (not sameas(i, 'i2') and p(i)),\n    n(i): min z x(i);\n)\n"},
		{"def", "def(s = {'i1', 'i3'}, t = i, loop(s, n(s): feasibility x(s)))",
			"def(s = {'i1', 'i3'}, t = i,\n    loop(s,\n        n(s): feasibility x(s);\n    )\n)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prettyprinter.Print(parse(t, tt.src)); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestPrintIsStable(t *testing.T) {
	src := `
		c: min x1 e1
		top: max z sum(i $ (p(i) or sameas(i, 'i3')), - p(i)*c2(i).valfn) c.valfn
		loop((i, j) $ not sameas(i, j), k(i, j): min z x(i) e(j))
		root: top
	`
	first := prettyprinter.Print(parse(t, src))
	second := prettyprinter.Print(parse(t, first))
	if first != second {
		t.Errorf("printing is not stable:\n%s\n---\n%s", first, second)
	}
}

func TestLongBodiesWrap(t *testing.T) {
	items := strings.Repeat(" x('i1') x('i2') x('i3')", 8)
	p := prettyprinter.NewCodePrinterWithWidth(40)
	p.PrintProgram(parse(t, "min z"+items))
	for _, line := range strings.Split(strings.TrimSpace(p.String()), "\n") {
		if len(line) > 40 {
			t.Errorf("line longer than 40: %q", line)
		}
	}
}
