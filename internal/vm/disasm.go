package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode.
// Globals and symbol ids are decoded through sess when it is not nil.
func Disassemble(chunk *Chunk, name string, sess *Session) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset, sess)
	}

	return sb.String()
}

// disassembleInstruction disassembles a single instruction
func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int, sess *Session) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	// Print line number
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	if _, named := OpcodeNames[op]; !named {
		sb.WriteString(fmt.Sprintf("Unknown opcode %d\n", op))
		return offset + 1
	}
	width := operandWidths[op]
	if offset+width >= len(chunk.Code) {
		sb.WriteString(fmt.Sprintf("%-18s (truncated)\n", op))
		return len(chunk.Code)
	}
	b := func(i int) int { return int(chunk.Code[offset+i]) }
	short := func(i int) int { return chunk.ReadShort(offset + i) }
	name := op.String()

	switch op {
	case OP_CONST, OP_REG_INIT, OP_ARC_INIT:
		idx := short(1)
		sb.WriteString(fmt.Sprintf("%-18s %4d '%s'", name, idx, globalText(sess, idx)))
		if op != OP_CONST {
			sb.WriteString(fmt.Sprintf(" -> L%d", b(3)))
		}
		sb.WriteString("\n")

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_INIT_LOOP, OP_IN_LOCAL_SET,
		OP_REG_STORE, OP_ARC_STORE, OP_ARC_FINALIZE:
		sb.WriteString(fmt.Sprintf("%-18s L%d\n", name, b(1)))

	case OP_SET_CARD:
		sb.WriteString(fmt.Sprintf("%-18s %s -> L%d\n", name, symbolText(sess, short(1)), b(3)))
	case OP_SET_CARD_LOCAL:
		sb.WriteString(fmt.Sprintf("%-18s L%d -> L%d\n", name, b(1), b(2)))
	case OP_UPDATE_ELEM:
		sb.WriteString(fmt.Sprintf("%-18s %s[L%d] -> L%d\n", name, symbolText(sess, short(1)), b(3), b(4)))
	case OP_UPDATE_ELEM_LOCAL:
		sb.WriteString(fmt.Sprintf("%-18s L%d[L%d] -> L%d\n", name, b(1), b(2), b(3)))

	case OP_INC_LOOP:
		jump := chunk.ReadOffset(offset + 3)
		sb.WriteString(fmt.Sprintf("%-18s L%d < L%d %4d -> %d\n", name, b(1), b(2), jump, offset+5+jump))
	case OP_JUMP_IF_ZERO:
		jump := chunk.ReadOffset(offset + 2)
		sb.WriteString(fmt.Sprintf("%-18s L%d %4d -> %d\n", name, b(1), jump, offset+4+jump))
	case OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE:
		jump := chunk.ReadOffset(offset + 1)
		sb.WriteString(fmt.Sprintf("%-18s %4d -> %d\n", name, jump, offset+3+jump))

	case OP_IN_SET, OP_READ_SYMBOL, OP_READ_PARAM:
		sb.WriteString(fmt.Sprintf("%-18s %s/%d\n", name, symbolText(sess, short(1)), b(3)))
	case OP_COPY_SET:
		sb.WriteString(fmt.Sprintf("%-18s %s\n", name, symbolText(sess, short(1))))

	case OP_CALL_API:
		sb.WriteString(fmt.Sprintf("%-18s %s/%d\n", name, APIFunc(b(1)), b(2)))
	case OP_NEW_OBJ:
		sb.WriteString(fmt.Sprintf("%-18s %s/%d\n", name, Ctor(b(1)), b(2)))

	case OP_ARC_DUP:
		sb.WriteString(fmt.Sprintf("%-18s L%d -> L%d\n", name, b(1), b(2)))
	case OP_LABEL_SET_ELEM:
		sb.WriteString(fmt.Sprintf("%-18s L%d[%d] = L%d\n", name, b(1), b(2), b(3)))

	default:
		sb.WriteString(name + "\n")
	}
	return offset + 1 + width
}

func globalText(sess *Session, idx int) string {
	if sess == nil {
		return "?"
	}
	v, ok := sess.Globals.Get(idx)
	if !ok {
		return "(invalid)"
	}
	if v.Type == ValElem {
		return "'" + sess.Dict.ElementLabel(v.AsElem()) + "'"
	}
	return v.Inspect()
}

func symbolText(sess *Session, id int) string {
	if sess == nil {
		return fmt.Sprintf("#%d", id)
	}
	return sess.SymbolName(id)
}
