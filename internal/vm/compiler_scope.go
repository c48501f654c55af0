package vm

import (
	"strings"

	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/token"
)

// beginScope starts a new scope
func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope ends the current scope: its locals are released and the jumps
// recorded inside it land here. Closing the outermost scope of a
// statement terminates the chunk and runs it.
func (c *Compiler) endScope(line int) error {
	if c.scopeDepth == 0 {
		return diagnostics.Bug("scope underflow")
	}
	c.scopeDepth--

	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		c.localCount--
		c.locals[c.localCount] = Local{Depth: -1}
	}

	for _, q := range []*[]Fixup{&c.trueJumps, &c.falseJumps} {
		for len(*q) > 0 && (*q)[len(*q)-1].Depth > c.scopeDepth {
			last := (*q)[len(*q)-1]
			*q = (*q)[:len(*q)-1]
			if err := c.patchJump(last.Addr); err != nil {
				return err
			}
		}
	}

	if c.scopeDepth == 0 {
		return c.finish(line)
	}
	return nil
}

// addLocal reserves a slot in the current scope.
func (c *Compiler) addLocal(name string, kind LocalKind, tok token.Token) (int, error) {
	if kind == LocalSet {
		for i := c.localCount - 1; i >= 0 && c.locals[i].Depth == c.scopeDepth; i-- {
			if c.locals[i].Kind == LocalSet && strings.EqualFold(c.locals[i].Name, name) {
				return 0, diagnostics.NewError(diagnostics.ErrS005, tok,
					"local set %s is already defined in this scope", name)
			}
		}
	}
	if c.localCount >= config.MaxLocals {
		return 0, diagnostics.NewError(diagnostics.ErrS004, tok,
			"too many local variables (limit %d)", config.MaxLocals)
	}
	slot := c.localCount
	c.locals[slot] = Local{Name: name, Depth: c.scopeDepth, Kind: kind}
	c.localCount++
	return slot, nil
}

// resolveLocal looks up a named local, innermost first. Names are case
// insensitive.
func (c *Compiler) resolveLocal(name string) (int, LocalKind) {
	if name == "" {
		return -1, 0
	}
	for i := c.localCount - 1; i >= 0; i-- {
		if strings.EqualFold(c.locals[i].Name, name) {
			return i, c.locals[i].Kind
		}
	}
	return -1, 0
}

// emit helpers

func (c *Compiler) emit(op Opcode, line int) {
	c.chunk.WriteOp(op, line)
}

func (c *Compiler) emitByte(b int, line int) {
	c.chunk.Write(byte(b), line)
}

func (c *Compiler) emitOp(op Opcode, line int, operands ...int) {
	c.emit(op, line)
	for _, b := range operands {
		c.emitByte(b, line)
	}
}

// emitOpAt is emitOp for instructions that can fail at run time: the
// opcode keeps the column and lexeme of tok for the error caret.
func (c *Compiler) emitOpAt(op Opcode, tok token.Token, operands ...int) {
	c.chunk.WriteOpAt(op, tok)
	for _, b := range operands {
		c.emitByte(b, tok.Line)
	}
}

// emitSymbolOp writes an opcode whose first operand is a dictionary symbol
// id, followed by one-byte operands.
func (c *Compiler) emitSymbolOp(op Opcode, id int, tok token.Token, operands ...int) error {
	if id < 0 || id > 0xffff {
		return diagnostics.Bug("symbol id %d does not fit in an operand", id)
	}
	c.chunk.WriteOpAt(op, tok)
	c.chunk.WriteShort(id, tok.Line)
	for _, b := range operands {
		c.emitByte(b, tok.Line)
	}
	return nil
}

// emitGlobalOp interns v and writes op with its index.
func (c *Compiler) emitGlobalOp(op Opcode, v Value, line int, operands ...int) error {
	idx, err := c.sess.Globals.Add(v)
	if err != nil {
		return err
	}
	c.emit(op, line)
	c.chunk.WriteShort(idx, line)
	for _, b := range operands {
		c.emitByte(b, line)
	}
	return nil
}

func (c *Compiler) emitConstant(v Value, line int) error {
	return c.emitGlobalOp(OP_CONST, v, line)
}

func (c *Compiler) emitCall(fn APIFunc, nargs int, tok token.Token) {
	c.emitOpAt(OP_CALL_API, tok, int(fn), nargs)
}

// emitJump writes op and its operands followed by a placeholder offset and
// returns the address of the placeholder.
func (c *Compiler) emitJump(op Opcode, line int, operands ...int) int {
	c.emitOp(op, line, operands...)
	c.chunk.Write(0xff, line)
	c.chunk.Write(0xff, line)
	return c.chunk.Len() - 2
}

// patchJump points the placeholder at addr to the current end of chunk.
func (c *Compiler) patchJump(addr int) error {
	jump := c.chunk.Len() - addr - 2
	if jump > config.MaxJump {
		return diagnostics.NewError(diagnostics.ErrS011, token.Token{Line: c.chunk.Line(addr)},
			"jump of %d bytes exceeds the %d byte limit", jump, config.MaxJump)
	}
	c.chunk.Code[addr] = byte(jump >> 8)
	c.chunk.Code[addr+1] = byte(jump)
	return nil
}

// emitLoop writes a backward jump to start.
func (c *Compiler) emitLoop(idx, bound, start, line int) error {
	c.emitOp(OP_INC_LOOP, line, idx, bound)
	offset := start - (c.chunk.Len() + 2)
	if -offset > config.MaxJump+1 {
		return diagnostics.NewError(diagnostics.ErrS011, token.Token{Line: line},
			"loop body of %d bytes exceeds the %d byte limit", -offset, config.MaxJump)
	}
	c.chunk.WriteShort(int(uint16(int16(offset))), line)
	return nil
}

// jumpTo records a forward jump in q, patched when the current scope ends.
func (c *Compiler) jumpTo(q *[]Fixup, op Opcode, line int, operands ...int) {
	addr := c.emitJump(op, line, operands...)
	*q = append(*q, Fixup{Depth: c.scopeDepth, Addr: addr})
}

// patchFrom lands the jumps recorded in q since mark here.
func (c *Compiler) patchFrom(q *[]Fixup, mark int) error {
	for len(*q) > mark {
		last := (*q)[len(*q)-1]
		*q = (*q)[:len(*q)-1]
		if err := c.patchJump(last.Addr); err != nil {
			return err
		}
	}
	return nil
}
