// Package backend provides the executors of the interpretation pass.
// Index-free statements can run on the tree walker; the rest go through
// the compiler and the VM.
package backend

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/pipeline"
)

// Backend is the interface for execution backends
type Backend interface {
	// Exec runs one top-level statement against the session of ctx
	Exec(ctx *pipeline.PipelineContext, stmt ast.Statement) error

	// Name returns the backend name for display
	Name() string
}

// Select returns the backend that runs stmt under mode. Root and load
// statements have no bytecode and always run immediately. Every other
// statement goes to embedded in embedded mode, otherwise the parser's
// classification decides.
func Select(mode config.Mode, stmt ast.Statement, immediate, compiled, embedded Backend) Backend {
	switch stmt.(type) {
	case *ast.RootStmt, *ast.LoadStmt:
		return immediate
	}
	if mode == config.ModeEmbedded {
		return embedded
	}
	if stmt.IsCompiled() {
		return compiled
	}
	return immediate
}
