// Package conformance runs model files described in YAML fixtures through
// the whole interpretation pass and compares the outcome with the
// recorded expectation.
package conformance

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xhub/reshop-sub001/internal/backend"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/lexer"
	"github.com/xhub/reshop-sub001/internal/parser"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/symbols"
)

// Suite is one fixture file: a shared symbol dictionary and the cases run
// against it.
type Suite struct {
	Data  string `yaml:"data"`
	Cases []Case `yaml:"cases"`
}

// Case is one model and what interpreting it must produce.
type Case struct {
	Name   string   `yaml:"name"`
	Model  string   `yaml:"model"`
	Modes  []string `yaml:"modes,omitempty"` // default: auto and embedded
	Expect Expect   `yaml:"expect"`
}

// Expect lists the observable results. Empty fields are not checked,
// except Errors: a case without errors must succeed.
type Expect struct {
	Nodes  []string    `yaml:"nodes,omitempty"`
	Edges  []string    `yaml:"edges,omitempty"`
	Root   string      `yaml:"root,omitempty"`
	Errors []ErrorSpec `yaml:"errors,omitempty"`
}

// ErrorSpec matches one diagnostic by code and message fragment.
type ErrorSpec struct {
	Code     string `yaml:"code"`
	Contains string `yaml:"contains,omitempty"`
	Line     int    `yaml:"line,omitempty"`
}

// Load reads a fixture file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// Dictionary builds a fresh symbol store from the suite data.
func (s *Suite) Dictionary() (*symbols.Store, error) {
	store := symbols.NewStore()
	if s.Data == "" {
		return store, nil
	}
	if err := symbols.ParseYAML(store, []byte(s.Data), "suite data"); err != nil {
		return nil, err
	}
	return store, nil
}

// ModesOf returns the execution modes a case runs in.
func (c *Case) ModesOf() []config.Mode {
	if len(c.Modes) == 0 {
		return []config.Mode{config.ModeAuto, config.ModeEmbedded}
	}
	modes := make([]config.Mode, len(c.Modes))
	for i, m := range c.Modes {
		modes[i] = config.Mode(m)
	}
	return modes
}

// Run interprets the case model in mode against dict.
func (c *Case) Run(dict symbols.Dictionary, mode config.Mode) *pipeline.PipelineContext {
	ctx := pipeline.NewPipelineContext(c.Model, dict)
	ctx.FilePath = c.Name + ".emp"
	ctx.Options.Mode = mode
	return pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		backend.NewExecutionProcessor(nil),
		backend.NewResolverProcessor(),
	).Run(ctx)
}

// Check compares the outcome of a run with the expectation and returns
// one line per mismatch.
func (e *Expect) Check(ctx *pipeline.PipelineContext) []string {
	var problems []string
	if len(e.Errors) > 0 || len(ctx.Errors) > 0 {
		problems = append(problems, e.checkErrors(ctx)...)
		return problems
	}

	g := ctx.Session.Graph
	if e.Nodes != nil {
		var names []string
		for _, ref := range g.Nodes() {
			names = append(names, g.NodeName(ref))
		}
		if got, want := strings.Join(names, " "), strings.Join(e.Nodes, " "); got != want {
			problems = append(problems, fmt.Sprintf("nodes = %q, want %q", got, want))
		}
	}
	if e.Edges != nil {
		got := make([]string, len(g.Edges))
		for i, edge := range g.Edges {
			got[i] = fmt.Sprintf("%s %s %s", edge.Kind, g.NodeName(edge.From), g.NodeName(edge.To))
		}
		want := append([]string(nil), e.Edges...)
		sort.Strings(got)
		sort.Strings(want)
		if strings.Join(got, "; ") != strings.Join(want, "; ") {
			problems = append(problems, fmt.Sprintf("edges = %q, want %q", got, want))
		}
	}
	if e.Root != "" {
		if got := g.NodeName(g.Root); got != e.Root {
			problems = append(problems, fmt.Sprintf("root = %s, want %s", got, e.Root))
		}
	}
	return problems
}

func (e *Expect) checkErrors(ctx *pipeline.PipelineContext) []string {
	var problems []string
	if len(ctx.Errors) != len(e.Errors) {
		problems = append(problems, fmt.Sprintf("got %d errors, want %d: %v", len(ctx.Errors), len(e.Errors), ctx.Err()))
		return problems
	}
	for i, want := range e.Errors {
		d := ctx.Errors[i]
		if string(d.Code) != want.Code {
			problems = append(problems, fmt.Sprintf("error %d: code %s, want %s (%v)", i, d.Code, want.Code, d))
		}
		if want.Contains != "" && !strings.Contains(d.Message, want.Contains) {
			problems = append(problems, fmt.Sprintf("error %d: message %q does not contain %q", i, d.Message, want.Contains))
		}
		if want.Line != 0 && d.Token.Line != want.Line {
			problems = append(problems, fmt.Sprintf("error %d: line %d, want %d", i, d.Token.Line, want.Line))
		}
	}
	return problems
}
