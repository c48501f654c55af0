package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/xhub/reshop-sub001/internal/backend"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/lexer"
	"github.com/xhub/reshop-sub001/internal/parser"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/prettyprinter"
)

const usage = `Usage: reshop [command] [flags] <file.emp>

Commands:
  run       interpret the model and print the resulting graph (default)
  check     interpret the model and report diagnostics only
  disasm    print the bytecode of every statement without running it
  fmt       print the model in canonical form
  help      show this message

Flags:
  --config <path>   configuration file (default: reshop.yaml found upwards)
  --data <path>     load a symbol file before the first statement (repeatable)
  --mode <mode>     auto or embedded
  --trace           log the bytecode handed to the VM on stderr
  --require-root    reject models without a root declaration
  --journal         print the model API journal instead of the graph
  --color <when>    auto, always or never
`

// cliArgs is the parsed command line.
type cliArgs struct {
	command     string
	file        string
	configPath  string
	data        []string
	mode        string
	trace       bool
	requireRoot bool
	journal     bool
	color       string
}

var commands = map[string]bool{"run": true, "check": true, "disasm": true, "fmt": true, "help": true}

func parseArgs(args []string) (*cliArgs, error) {
	a := &cliArgs{command: "run"}
	if len(args) > 0 && commands[args[0]] {
		a.command = args[0]
		args = args[1:]
	}

	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s needs a value", flag)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, inline, hasInline := strings.Cut(arg, "=")
		get := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			return value(&i, name)
		}
		var err error
		switch name {
		case "-h", "-help", "--help":
			a.command = "help"
		case "--config":
			a.configPath, err = get()
		case "--data":
			var d string
			d, err = get()
			a.data = append(a.data, d)
		case "--mode":
			a.mode, err = get()
		case "--color":
			a.color, err = get()
		case "--trace":
			a.trace = true
		case "--require-root":
			a.requireRoot = true
		case "--journal":
			a.journal = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag %s", arg)
			}
			if a.file != "" {
				return nil, fmt.Errorf("only one model file is accepted, got %s and %s", a.file, arg)
			}
			a.file = arg
		}
		if err != nil {
			return nil, err
		}
	}
	if a.command != "help" && a.file == "" {
		return nil, fmt.Errorf("no model file given")
	}
	return a, nil
}

// options merges the configuration file with the command line; flags win.
func (a *cliArgs) options() (*config.Options, error) {
	path := a.configPath
	if path == "" {
		found, err := config.FindOptions(filepath.Dir(a.file))
		if err != nil {
			return nil, err
		}
		path = found
	}

	opts := config.DefaultOptions()
	if path != "" {
		loaded, err := config.LoadOptions(path)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	if a.mode != "" {
		opts.Mode = config.Mode(a.mode)
	}
	if a.color != "" {
		opts.Color = a.color
	}
	opts.Trace = opts.Trace || a.trace
	opts.RequireRoot = opts.RequireRoot || a.requireRoot
	for _, d := range a.data {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		opts.Data = append(opts.Data, abs)
	}

	switch opts.Mode {
	case config.ModeAuto, config.ModeEmbedded:
	default:
		return nil, fmt.Errorf("unknown mode %q (want auto or embedded)", opts.Mode)
	}
	for _, d := range opts.Data {
		if !config.IsDataFile(d) {
			return nil, fmt.Errorf("unsupported data file %q", d)
		}
	}
	return opts, nil
}

func useColor(setting string, out io.Writer) bool {
	switch setting {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newContext reads the model file and prepares the pass, data files
// included.
func newContext(a *cliArgs, opts *config.Options, stderr io.Writer) (*pipeline.PipelineContext, error) {
	source, err := os.ReadFile(a.file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.file, err)
	}
	ctx := pipeline.NewPipelineContext(string(source), nil)
	ctx.FilePath = a.file
	ctx.Options = opts
	if opts.Trace {
		ctx.Logger = log.New(stderr, "reshop: ", 0)
	}
	for _, d := range opts.Data {
		if err := ctx.LoadData(d); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	a, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n\n%s", err, usage)
		return 2
	}
	if a.command == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	opts, err := a.options()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 2
	}
	ctx, err := newContext(a, opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	color := useColor(opts.Color, stderr)

	goctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	front := []pipeline.Processor{&lexer.LexerProcessor{}, &parser.ParserProcessor{}}
	switch a.command {
	case "fmt", "disasm":
		ctx = pipeline.New(front...).Run(ctx)
	default:
		ctx = pipeline.New(append(front,
			backend.NewExecutionProcessor(goctx),
			backend.NewResolverProcessor(),
		)...).Run(ctx)
	}

	if err := ctx.Err(); err != nil {
		fmt.Fprint(stderr, diagnostics.RenderAll(err, ctx.SourceCode, color))
		return 1
	}

	switch a.command {
	case "fmt":
		fmt.Fprint(stdout, prettyprinter.Print(ctx.AstRoot))
	case "disasm":
		out, err := backend.NewVM().Disassemble(ctx)
		fmt.Fprint(stdout, out)
		if err != nil {
			fmt.Fprint(stderr, diagnostics.RenderAll(err, ctx.SourceCode, color))
			return 1
		}
	case "check":
		g := ctx.Session.Graph
		fmt.Fprintf(stdout, "%s: %d nodes, %d edges, root %s\n",
			config.TrimSourceExt(filepath.Base(a.file)), len(g.MPs)+len(g.Nashs), len(g.Edges), g.NodeName(g.Root))
	default:
		g := ctx.Session.Graph
		if a.journal {
			for _, line := range g.Journal {
				fmt.Fprintln(stdout, line)
			}
			return 0
		}
		fmt.Fprintf(stdout, "# model %s\n%s", g.ID, g)
	}
	return 0
}

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
