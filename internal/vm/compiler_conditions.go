package vm

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
)

// guarded compiles body behind cond. A false condition jumps to the end
// of the guard scope, which is the next loop increment when the guard is
// the body of a loop.
func (c *Compiler) guarded(cond ast.Condition, line int, body func() error) error {
	if cond == nil {
		return body()
	}
	c.beginScope()
	if err := c.jumpWhen(cond, false, &c.falseJumps); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	return c.endScope(line)
}

// jumpWhen emits the tests of cond so that control reaches the jumps
// recorded in q exactly when cond evaluates to value, and falls through
// otherwise. Short-circuit exits that fall through are collected in the
// other queue and land right after the condition.
func (c *Compiler) jumpWhen(cond ast.Condition, value bool, q *[]Fixup) error {
	other := &c.trueJumps
	if q == &c.trueJumps {
		other = &c.falseJumps
	}
	mark := len(*other)

	switch cond := cond.(type) {
	case *ast.NotCond:
		return c.jumpWhen(cond.Operand, !value, q)

	case *ast.AndCond:
		if !value {
			// either side false is enough
			if err := c.jumpWhen(cond.Left, false, q); err != nil {
				return err
			}
			if err := c.jumpWhen(cond.Right, false, q); err != nil {
				return err
			}
			return nil
		}
		if err := c.jumpWhen(cond.Left, false, other); err != nil {
			return err
		}
		if err := c.jumpWhen(cond.Right, true, q); err != nil {
			return err
		}
		return c.patchFrom(other, mark)

	case *ast.OrCond:
		if value {
			if err := c.jumpWhen(cond.Left, true, q); err != nil {
				return err
			}
			if err := c.jumpWhen(cond.Right, true, q); err != nil {
				return err
			}
			return nil
		}
		if err := c.jumpWhen(cond.Left, true, other); err != nil {
			return err
		}
		if err := c.jumpWhen(cond.Right, false, q); err != nil {
			return err
		}
		return c.patchFrom(other, mark)
	}

	if err := c.emitTest(cond); err != nil {
		return err
	}
	op := OP_JUMP_IF_FALSE
	if value {
		op = OP_JUMP_IF_TRUE
	}
	c.jumpTo(q, op, cond.GetToken().Line)
	return nil
}

// emitTest leaves the boolean value of an atomic condition on the stack.
func (c *Compiler) emitTest(cond ast.Condition) error {
	line := cond.GetToken().Line
	switch cond := cond.(type) {
	case *ast.InSet:
		if cond.Set.Local {
			slot, kind := c.resolveLocal(cond.Set.Name)
			if slot < 0 || kind != LocalSet {
				return diagnostics.NewError(diagnostics.ErrS001, cond.Set.Token, "unknown local set %s", cond.Set.Name)
			}
			if len(cond.Indices) != 1 {
				return diagnostics.NewError(diagnostics.ErrS002, cond.Token,
					"local set %s has dimension 1, got %d indices", cond.Set.Name, len(cond.Indices))
			}
			if err := c.pushElem(cond.Indices[0]); err != nil {
				return err
			}
			c.emitOp(OP_IN_LOCAL_SET, line, slot)
			return nil
		}
		for _, idx := range cond.Indices {
			if err := c.pushElem(idx); err != nil {
				return err
			}
		}
		return c.emitSymbolOp(OP_IN_SET, cond.Set.Set.ID, cond.Set.Token, len(cond.Indices))

	case *ast.SameAs:
		if err := c.pushElem(cond.Left); err != nil {
			return err
		}
		if err := c.pushElem(cond.Right); err != nil {
			return err
		}
		c.emit(OP_SAMEAS, line)
		return nil

	case *ast.ParamCond:
		if err := c.readParam(cond.Param); err != nil {
			return err
		}
		c.emit(OP_NONZERO, line)
		return nil
	}
	return diagnostics.Bug("unexpected condition %T", cond)
}

// pushElem pushes the element an index designates: a constant or the
// current element of a loop.
func (c *Compiler) pushElem(idx *ast.Index) error {
	line := idx.Token.Line
	switch idx.Kind {
	case ast.IndexElem:
		return c.emitConstant(ElemVal(c.sess.Elem(idx.Label)), line)
	case ast.IndexLoopVar, ast.IndexSet, ast.IndexLocalSet:
		slot, kind := c.resolveLocal(idx.Name)
		if slot >= 0 && kind == LocalElem {
			c.emitOp(OP_GET_LOCAL, line, slot)
			return nil
		}
	}
	return diagnostics.NewError(diagnostics.ErrS002, idx.Token,
		"expected an element, got %s %s", idx.Kind, idx.Token.Lexeme)
}

// readParam pushes the value of a parameter record.
func (c *Compiler) readParam(ref *ast.SymbolRef) error {
	for _, idx := range ref.Indices {
		if err := c.pushElem(idx); err != nil {
			return err
		}
	}
	return c.emitSymbolOp(OP_READ_PARAM, ref.Symbol.ID, ref.Token, len(ref.Indices))
}

// readSymbol pushes the variable or equation records a reference selects.
// Each index becomes a filter: an element, nil for '*', or a local set.
func (c *Compiler) readSymbol(ref *ast.SymbolRef) error {
	line := ref.Token.Line
	for _, idx := range ref.Indices {
		switch idx.Kind {
		case ast.IndexElem:
			if err := c.emitConstant(ElemVal(c.sess.Elem(idx.Label)), line); err != nil {
				return err
			}
		case ast.IndexWildcard:
			c.emit(OP_NIL, line)
		case ast.IndexLoopVar, ast.IndexLocalSet:
			slot, _ := c.resolveLocal(idx.Name)
			if slot < 0 {
				return diagnostics.NewError(diagnostics.ErrS001, idx.Token, "unknown index %s", idx.Name)
			}
			c.emitOp(OP_GET_LOCAL, line, slot)
		case ast.IndexSet:
			if slot, kind := c.resolveLocal(idx.Name); slot >= 0 && kind == LocalElem {
				c.emitOp(OP_GET_LOCAL, line, slot)
				continue
			}
			if err := c.emitSymbolOp(OP_COPY_SET, idx.Set.ID, idx.Token); err != nil {
				return err
			}
		}
	}
	return c.emitSymbolOp(OP_READ_SYMBOL, ref.Symbol.ID, ref.Token, len(ref.Indices))
}
