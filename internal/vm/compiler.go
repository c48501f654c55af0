package vm

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/token"
)

// LocalKind says what a local slot holds.
type LocalKind int

const (
	LocalIndex LocalKind = iota // loop counter
	LocalBound                  // loop cardinality
	LocalElem                   // current element, named after its set
	LocalSet                    // local set bound by def
	LocalArc                    // arc instance
	LocalReg                    // name entry
)

// Local represents a local slot during compilation
type Local struct {
	Name  string
	Depth int // Scope depth where this local was declared, -1 when free
	Kind  LocalKind
}

// Fixup is a forward jump waiting for its target. Fixups recorded deeper
// than a closing scope are patched when that scope ends.
type Fixup struct {
	Depth int
	Addr  int
}

// Executor runs a finished chunk.
type Executor func(chunk *Chunk) error

// Compiler compiles one statement at a time to bytecode. A chunk is
// handed to the executor when the outermost scope of its statement
// closes.
type Compiler struct {
	sess  *Session
	exec  Executor
	chunk *Chunk
	file  string

	locals     [config.MaxLocals]Local
	localCount int
	scopeDepth int
	loopDims   int

	trueJumps  []Fixup
	falseJumps []Fixup
}

// NewCompiler creates a compiler emitting constants into sess and
// running chunks with exec.
func NewCompiler(sess *Session, exec Executor) *Compiler {
	return &Compiler{sess: sess, exec: exec, chunk: NewChunk()}
}

// SetFile sets the source file recorded in chunks.
func (c *Compiler) SetFile(file string) {
	c.file = file
}

// LocalCount returns the number of live local slots. It is 0 between
// statements.
func (c *Compiler) LocalCount() int {
	return c.localCount
}

// PendingJumps returns the number of unpatched fixups.
func (c *Compiler) PendingJumps() int {
	return len(c.trueJumps) + len(c.falseJumps)
}

// Compile compiles stmt and runs it through the executor.
func (c *Compiler) Compile(stmt ast.Statement) error {
	keyword := ast.Keyword(stmt)
	tok := stmt.GetToken()

	c.chunk = NewChunk()
	c.chunk.File = c.file
	c.chunk.Keyword = keyword

	c.beginScope()
	if err := c.compileStatement(stmt); err != nil {
		c.reset()
		return Locate(err, tok, c.file, keyword)
	}
	if err := c.endScope(tok.Line); err != nil {
		c.reset()
		return Locate(err, tok, c.file, keyword)
	}
	return nil
}

// reset drops the state of a statement that failed to compile or run.
func (c *Compiler) reset() {
	for i := range c.locals[:c.localCount] {
		c.locals[i] = Local{Depth: -1}
	}
	c.localCount = 0
	c.scopeDepth = 0
	c.loopDims = 0
	c.trueJumps = c.trueJumps[:0]
	c.falseJumps = c.falseJumps[:0]
	c.chunk = NewChunk()
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.NodeDecl:
		return c.compileNode(s)
	case *ast.NashDecl:
		return c.compileNash(s)
	case *ast.CCFDecl:
		return c.compileCCF(s)
	case *ast.OvfDecl:
		return c.compileOvf(s, false)
	case *ast.LoopStmt:
		return c.compileLoopStmt(s)
	case *ast.DefStmt:
		return c.compileDef(s)
	}
	return diagnostics.NewError(diagnostics.ErrB001, stmt.GetToken(),
		"%s statements are not compiled", ast.Keyword(stmt))
}

// finish closes the chunk of the current statement and runs it.
func (c *Compiler) finish(line int) error {
	if n := c.PendingJumps(); n > 0 {
		return diagnostics.Bug("%d jumps left unpatched at the end of the statement", n)
	}
	c.emit(OP_END, line)
	chunk := c.chunk
	c.chunk = NewChunk()
	if c.exec == nil {
		return nil
	}
	return c.exec(chunk)
}

// Locate fills in the position of every diagnostic in err that does not
// have one yet.
func Locate(err error, tok token.Token, file, keyword string) error {
	if err == nil {
		return nil
	}
	list := diagnostics.Flatten(err)
	for _, d := range list {
		if d.Token.Line == 0 {
			d.Token = tok
		}
		if d.File == "" {
			d.File = file
		}
		if d.Context == "" {
			d.Context = keyword
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return diagnostics.ErrorList(list)
}
