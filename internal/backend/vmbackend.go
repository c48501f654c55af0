package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/vm"
)

// VMBackend compiles statements to bytecode and runs them on the VM.
type VMBackend struct {
	embedded bool

	sess     *vm.Session
	compiler *vm.Compiler
	machine  *vm.VM
	ctx      *pipeline.PipelineContext
	goctx    context.Context
}

// NewVM creates a new VM backend. An embedded backend takes every
// statement, index-free ones included.
func NewVM(embedded ...bool) *VMBackend {
	emb := false
	if len(embedded) > 0 {
		emb = embedded[0]
	}
	return &VMBackend{embedded: emb}
}

// SetContext bounds the runs of the VM by goctx.
func (b *VMBackend) SetContext(goctx context.Context) {
	b.goctx = goctx
	if b.machine != nil {
		b.machine.SetContext(goctx)
	}
}

// bind (re)creates the compiler and the VM when the session changes. The
// same compiler serves the whole pass so that globals are shared between
// statements.
func (b *VMBackend) bind(ctx *pipeline.PipelineContext) {
	b.ctx = ctx
	if b.compiler != nil && ctx.Session == b.sess {
		return
	}
	b.sess = ctx.Session
	b.machine = vm.New(b.sess)
	if b.goctx != nil {
		b.machine.SetContext(b.goctx)
	}
	b.compiler = vm.NewCompiler(b.sess, b.run)
	b.compiler.SetFile(ctx.FilePath)
	if b.tracing() {
		b.machine.SetTrace(ctx.Logger)
	}
}

func (b *VMBackend) tracing() bool {
	return b.ctx.Options != nil && b.ctx.Options.Trace
}

// run is the executor handed to the compiler.
func (b *VMBackend) run(chunk *vm.Chunk) error {
	if b.tracing() {
		b.ctx.Logger.Print(vm.Disassemble(chunk, chunk.Keyword, b.sess))
	}
	return b.machine.Run(chunk)
}

// Exec compiles stmt and runs every chunk the compiler produces.
func (b *VMBackend) Exec(ctx *pipeline.PipelineContext, stmt ast.Statement) error {
	if ctx.Session == nil {
		return diagnostics.Bug("no session to execute %s", ast.Keyword(stmt))
	}
	b.bind(ctx)
	return b.compiler.Compile(stmt)
}

// Name returns the backend name
func (b *VMBackend) Name() string {
	if b.embedded {
		return "embedded"
	}
	return "compiled"
}

// Disassemble returns the bytecode of every statement of the program
// without running it. Statements run immediately in the current mode are
// compiled all the same.
func (b *VMBackend) Disassemble(ctx *pipeline.PipelineContext) (string, error) {
	if ctx.AstRoot == nil {
		return "", fmt.Errorf("no AST to compile")
	}
	if ctx.Session == nil {
		return "", diagnostics.Bug("no session to compile against")
	}

	var out strings.Builder
	compiler := vm.NewCompiler(ctx.Session, func(chunk *vm.Chunk) error {
		out.WriteString(vm.Disassemble(chunk, chunk.Keyword, ctx.Session))
		return nil
	})
	compiler.SetFile(ctx.FilePath)

	var errs diagnostics.ErrorList
	for _, stmt := range ctx.AstRoot.Statements {
		switch stmt.(type) {
		case *ast.RootStmt, *ast.LoadStmt:
			continue
		}
		if err := compiler.Compile(stmt); err != nil {
			errs = append(errs, diagnostics.Flatten(err)...)
		}
	}
	return out.String(), errs.Err()
}
