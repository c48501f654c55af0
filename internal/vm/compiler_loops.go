package vm

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/token"
)

// iterator is one dimension of a loop: a dictionary set or a local set,
// with the slots holding its counter, its cardinality and its current
// element.
type iterator struct {
	name  string
	tok   token.Token
	set   int // dictionary set id, -1 for a local set
	local int // slot of the local set

	index, bound, elem int
}

// domainIterators builds one iterator per set of an explicit domain.
func (c *Compiler) domainIterators(sets []*ast.SetRef) ([]*iterator, error) {
	its := make([]*iterator, 0, len(sets))
	for _, s := range sets {
		it := &iterator{name: s.Name, tok: s.Token, set: -1, local: -1}
		if s.Local {
			slot, kind := c.resolveLocal(s.Name)
			if slot < 0 || kind != LocalSet {
				return nil, diagnostics.NewError(diagnostics.ErrS001, s.Token, "unknown local set %s", s.Name)
			}
			it.local = slot
		} else {
			it.set = s.Set.ID
		}
		its = append(its, it)
	}
	return its, nil
}

// freeIterators builds one iterator per free set among indices. Sets
// already iterated by an enclosing loop stand for their current element
// and are skipped.
func (c *Compiler) freeIterators(indices []*ast.Index) ([]*iterator, error) {
	var its []*iterator
	for _, idx := range ast.FreeSets(indices) {
		if c.isBound(idx.Name) {
			continue
		}
		it := &iterator{name: idx.Name, tok: idx.Token, set: -1, local: -1}
		if idx.Kind == ast.IndexLocalSet {
			slot, kind := c.resolveLocal(idx.Name)
			if slot < 0 || kind != LocalSet {
				return nil, diagnostics.NewError(diagnostics.ErrS001, idx.Token, "unknown local set %s", idx.Name)
			}
			it.local = slot
		} else {
			it.set = idx.Set.ID
		}
		its = append(its, it)
	}
	return its, nil
}

// isBound reports whether name currently designates a loop element.
func (c *Compiler) isBound(name string) bool {
	slot, kind := c.resolveLocal(name)
	return slot >= 0 && kind == LocalElem
}

// loop compiles body once per element of the product of its, in row-major
// order. An empty set skips the whole loop.
//
//	INIT_LOOP idx; SET_CARD set bound; JUMP_IF_ZERO bound -> end   (per set)
//	start: UPDATE_ELEM set idx elem                                (per set)
//	body
//	INC_LOOP idx bound -> start                                    (innermost first)
//	end:
func (c *Compiler) loop(its []*iterator, tok token.Token, body func() error) error {
	if len(its) == 0 {
		return body()
	}
	if c.loopDims+len(its) > config.MaxIndexDims {
		return diagnostics.NewError(diagnostics.ErrS003, tok,
			"%d nested loop dimensions exceed the limit of %d", c.loopDims+len(its), config.MaxIndexDims)
	}
	line := tok.Line

	c.beginScope()
	for _, it := range its {
		var err error
		if it.index, err = c.addLocal("", LocalIndex, it.tok); err != nil {
			return err
		}
		if it.bound, err = c.addLocal("", LocalBound, it.tok); err != nil {
			return err
		}
		c.emitOp(OP_INIT_LOOP, line, it.index)
		if it.set >= 0 {
			if err := c.emitSymbolOp(OP_SET_CARD, it.set, it.tok, it.bound); err != nil {
				return err
			}
		} else {
			c.emitOp(OP_SET_CARD_LOCAL, line, it.local, it.bound)
		}
		c.jumpTo(&c.trueJumps, OP_JUMP_IF_ZERO, line, it.bound)
	}
	for _, it := range its {
		var err error
		if it.elem, err = c.addLocal(it.name, LocalElem, it.tok); err != nil {
			return err
		}
	}

	start := c.chunk.Len()
	for _, it := range its {
		if it.set >= 0 {
			if err := c.emitSymbolOp(OP_UPDATE_ELEM, it.set, it.tok, it.index, it.elem); err != nil {
				return err
			}
		} else {
			c.emitOp(OP_UPDATE_ELEM_LOCAL, line, it.local, it.index, it.elem)
		}
	}

	c.loopDims += len(its)
	if err := body(); err != nil {
		return err
	}
	c.loopDims -= len(its)

	for i := len(its) - 1; i >= 0; i-- {
		if err := c.emitLoop(its[i].index, its[i].bound, start, line); err != nil {
			return err
		}
	}
	return c.endScope(line)
}

// compileLoopStmt compiles loop(domain, statements).
func (c *Compiler) compileLoopStmt(s *ast.LoopStmt) error {
	its, err := c.domainIterators(s.Domain.Sets)
	if err != nil {
		return err
	}
	return c.loop(its, s.Token, func() error {
		return c.guarded(s.Domain.Cond, s.Token.Line, func() error {
			for _, stmt := range s.Body {
				if err := c.compileNested(stmt); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// compileNested compiles a statement inside a loop or def body.
func (c *Compiler) compileNested(stmt ast.Statement) error {
	switch stmt.(type) {
	case *ast.RootStmt, *ast.LoadStmt:
		return diagnostics.NewError(diagnostics.ErrP001, stmt.GetToken(),
			"%s is not allowed inside a loop or def", ast.Keyword(stmt))
	}
	return c.compileStatement(stmt)
}

// compileDef binds local sets over the statements of a def block.
func (c *Compiler) compileDef(s *ast.DefStmt) error {
	line := s.Token.Line
	c.beginScope()
	for _, b := range s.Bindings {
		if err := c.pushBinding(b); err != nil {
			return err
		}
		slot, err := c.addLocal(b.Name, LocalSet, b.Token)
		if err != nil {
			return err
		}
		c.emitOp(OP_SET_LOCAL, b.Token.Line, slot)
	}
	for _, stmt := range s.Body {
		if err := c.compileNested(stmt); err != nil {
			return err
		}
	}
	return c.endScope(line)
}

// pushBinding pushes the value of a local set definition.
func (c *Compiler) pushBinding(b *ast.Binding) error {
	line := b.Token.Line
	switch {
	case b.Set == nil:
		elems := make([]int, len(b.Elements))
		for i, label := range b.Elements {
			elems[i] = c.sess.Elem(label)
		}
		return c.emitConstant(CursorVal(NewCursor(b.Name, elems)), line)
	case b.Set.Local:
		slot, kind := c.resolveLocal(b.Set.Name)
		if slot < 0 || kind != LocalSet {
			return diagnostics.NewError(diagnostics.ErrS001, b.Set.Token, "unknown local set %s", b.Set.Name)
		}
		c.emitOp(OP_GET_LOCAL, line, slot)
		return nil
	}
	return c.emitSymbolOp(OP_COPY_SET, b.Set.Set.ID, b.Set.Token)
}
