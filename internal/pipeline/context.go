package pipeline

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/labels"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
	"github.com/xhub/reshop-sub001/internal/vm"
)

// Processor is one stage of the interpretation pass.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// TokenStream is what the parser reads; the lexer provides it.
type TokenStream interface {
	Next() token.Token
	Peek(n int) []token.Token
	Reclassify()
	Classify(tok token.Token) token.Token
}

// PipelineContext is the interpretation-pass context. It owns every piece
// of mutable state of one pass and is handed from stage to stage.
type PipelineContext struct {
	SourceCode  string
	FilePath    string
	TokenStream TokenStream
	AstRoot     *ast.Program
	Session     *vm.Session
	Options     *config.Options
	Logger      *log.Logger
	Errors      []*diagnostics.DiagnosticError
	Stats       labels.Stats
}

// NewPipelineContext creates a context over source with a fresh session
// on dict. A nil dict starts from an empty symbol store.
func NewPipelineContext(source string, dict symbols.Dictionary) *PipelineContext {
	if dict == nil {
		dict = symbols.NewStore()
	}
	return &PipelineContext{
		SourceCode: source,
		Session:    vm.NewSession(dict),
		Options:    config.DefaultOptions(),
		Logger:     log.New(io.Discard, "", 0),
	}
}

// Dictionary returns the symbol dictionary of the pass, nil when there is
// no session.
func (ctx *PipelineContext) Dictionary() symbols.Dictionary {
	if ctx.Session == nil || ctx.Session.Dict == nil {
		return nil
	}
	return ctx.Session.Dict
}

// LoadData merges a data file into the dictionary. Relative paths are
// taken from the directory of the source file.
func (ctx *PipelineContext) LoadData(path string) error {
	if ctx.Session == nil {
		return fmt.Errorf("load %s: no session", path)
	}
	if !filepath.IsAbs(path) && ctx.FilePath != "" {
		path = filepath.Join(filepath.Dir(ctx.FilePath), path)
	}
	ctx.Logger.Printf("loading %s", path)
	return ctx.Session.Dict.LoadFile(path)
}

// AddError records err, whatever its form, as diagnostics of this file.
func (ctx *PipelineContext) AddError(err error) {
	for _, d := range diagnostics.Flatten(err) {
		if d.File == "" {
			d.File = ctx.FilePath
		}
		ctx.Errors = append(ctx.Errors, d)
	}
}

// Err returns the recorded diagnostics as one error, nil when there are
// none.
func (ctx *PipelineContext) Err() error {
	return diagnostics.ErrorList(ctx.Errors).Err()
}
