package backend

import (
	"context"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/token"
)

// ExecutionProcessor implements pipeline.Processor: it runs the top-level
// statements in source order, each on the backend its mode selects.
type ExecutionProcessor struct {
	Immediate Backend
	Compiled  Backend
	Embedded  Backend

	// Context is checked between statements; nil means no bound.
	Context context.Context
}

// NewExecutionProcessor creates the execution stage with the default
// backends. goctx bounds the VM runs; nil means no bound.
func NewExecutionProcessor(goctx context.Context) *ExecutionProcessor {
	compiled, embedded := NewVM(), NewVM(true)
	if goctx != nil {
		compiled.SetContext(goctx)
		embedded.SetContext(goctx)
	}
	return &ExecutionProcessor{
		Immediate: NewTreeWalk(),
		Compiled:  compiled,
		Embedded:  embedded,
		Context:   goctx,
	}
}

// Process stops at the first failing statement. The mutations made by the
// statements before it, and by the failing one up to the error, are kept.
func (p *ExecutionProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous steps failed, don't run execution
	if ctx.AstRoot == nil || len(ctx.Errors) > 0 {
		return ctx
	}
	mode := config.ModeAuto
	if ctx.Options != nil {
		mode = ctx.Options.Mode
	}

	for _, stmt := range ctx.AstRoot.Statements {
		if p.Context != nil && p.Context.Err() != nil {
			ctx.AddError(diagnostics.Interrupted(stmt.GetToken(), p.Context.Err()))
			return ctx
		}
		b := Select(mode, stmt, p.Immediate, p.Compiled, p.Embedded)
		ctx.Logger.Printf("line %d: %s on %s", stmt.GetToken().Line, ast.Keyword(stmt), b.Name())
		if err := b.Exec(ctx, stmt); err != nil {
			ctx.AddError(err)
			return ctx
		}
	}
	return ctx
}

// ResolverProcessor implements pipeline.Processor: it turns the labels
// collected during execution into edges and settles the root.
type ResolverProcessor struct{}

// NewResolverProcessor creates the resolution stage
func NewResolverProcessor() *ResolverProcessor {
	return &ResolverProcessor{}
}

func (p *ResolverProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Session == nil || len(ctx.Errors) > 0 {
		return ctx
	}
	explicit := ctx.Session.Pending.Root != nil

	stats, err := ctx.Session.Resolve()
	ctx.Stats = stats
	if err != nil {
		ctx.AddError(err)
		return ctx
	}
	ctx.Logger.Printf("%d edges added, root %s", stats.EdgesAdded, stats.Root)

	if !explicit && ctx.Options != nil && ctx.Options.RequireRoot {
		ctx.AddError(diagnostics.NewError(diagnostics.ErrS009, token.Token{},
			"no root declaration, the inferred root is %s", ctx.Session.Graph.NodeName(stats.Root)))
	}
	return ctx
}
