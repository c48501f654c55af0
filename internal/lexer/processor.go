package lexer

import (
	"github.com/xhub/reshop-sub001/internal/pipeline"
)

type LexerProcessor struct{}

// Process installs a lazy token stream over the source. Lexical errors
// surface as ILLEGAL tokens and are reported by the parser, which knows
// the statement context.
func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	l := New(ctx.SourceCode, ctx.Dictionary())
	ctx.TokenStream = NewTokenStream(l)
	return ctx
}
