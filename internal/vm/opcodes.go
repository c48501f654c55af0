// Package vm compiles set-indexed statements to bytecode and runs them
// against the model graph and the label collector.
package vm

// Opcode represents a single VM instruction
type Opcode byte

// Operand notation: g16 global index, s16 dictionary symbol id, l8 local
// slot, n8 count, o16 signed jump offset relative to the next instruction.
const (
	// Values
	OP_CONST  Opcode = iota // g16: push global
	OP_NIL                  // push nil (no coefficient, no variable)
	OP_NEGATE               // negate the number on top

	// Locals
	OP_GET_LOCAL // l8: push local
	OP_SET_LOCAL // l8: pop into local

	// Loops
	OP_INIT_LOOP         // l8 index: index = 0
	OP_SET_CARD          // s16 set, l8 bound: bound = card(set)
	OP_SET_CARD_LOCAL    // l8 set, l8 bound
	OP_UPDATE_ELEM       // s16 set, l8 index, l8 elem: elem = set[index]
	OP_UPDATE_ELEM_LOCAL // l8 set, l8 index, l8 elem
	OP_INC_LOOP          // l8 index, l8 bound, o16: next iteration or reset index

	// Jumps
	OP_JUMP_IF_ZERO  // l8 bound, o16: empty domain
	OP_JUMP_IF_TRUE  // o16: pop bool
	OP_JUMP_IF_FALSE // o16: pop bool

	// Condition atoms
	OP_IN_SET       // s16 set, n8: pop n elements, push membership
	OP_IN_LOCAL_SET // l8 set: pop one element, push membership
	OP_SAMEAS       // pop two elements, push equality
	OP_NONZERO      // pop number, push number != 0

	// Dictionary reads
	OP_READ_SYMBOL // s16, n8: pop n filters, push a variable or equation ref
	OP_READ_PARAM  // s16, n8: pop n elements, push the parameter value
	OP_COPY_SET    // s16: push the elements of a set as a local set

	// Model API
	OP_CALL_API // fn8, n8: call on the object in progress
	OP_NEW_OBJ  // ctor8, n8: push a new object in progress

	// Labels
	OP_REG_INIT       // g16 template, l8: new name entry
	OP_REG_STORE      // l8: name the object in progress
	OP_ARC_INIT       // g16 template, l8: new arc owned by the object in progress
	OP_ARC_DUP        // l8 src, l8 dst: clone a prototype arc for the object in progress
	OP_LABEL_SET_ELEM // l8 entry, n8 position, l8 elem
	OP_ARC_STORE      // l8: pop variable and coefficient, store one child
	OP_ARC_FINALIZE   // l8: hand the arc to the resolver

	OP_END
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_CONST:             "CONST",
	OP_NIL:               "NIL",
	OP_NEGATE:            "NEGATE",
	OP_GET_LOCAL:         "GET_LOCAL",
	OP_SET_LOCAL:         "SET_LOCAL",
	OP_INIT_LOOP:         "INIT_LOOP",
	OP_SET_CARD:          "SET_CARD",
	OP_SET_CARD_LOCAL:    "SET_CARD_LOCAL",
	OP_UPDATE_ELEM:       "UPDATE_ELEM",
	OP_UPDATE_ELEM_LOCAL: "UPDATE_ELEM_LOCAL",
	OP_INC_LOOP:          "INC_LOOP",
	OP_JUMP_IF_ZERO:      "JUMP_IF_ZERO",
	OP_JUMP_IF_TRUE:      "JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE:     "JUMP_IF_FALSE",
	OP_IN_SET:            "IN_SET",
	OP_IN_LOCAL_SET:      "IN_LOCAL_SET",
	OP_SAMEAS:            "SAMEAS",
	OP_NONZERO:           "NONZERO",
	OP_READ_SYMBOL:       "READ_SYMBOL",
	OP_READ_PARAM:        "READ_PARAM",
	OP_COPY_SET:          "COPY_SET",
	OP_CALL_API:          "CALL_API",
	OP_NEW_OBJ:           "NEW_OBJ",
	OP_REG_INIT:          "REG_INIT",
	OP_REG_STORE:         "REG_STORE",
	OP_ARC_INIT:          "ARC_INIT",
	OP_ARC_DUP:           "ARC_DUP",
	OP_LABEL_SET_ELEM:    "LABEL_SET_ELEM",
	OP_ARC_STORE:         "ARC_STORE",
	OP_ARC_FINALIZE:      "ARC_FINALIZE",
	OP_END:               "END",
}

// operandWidths is the number of operand bytes following each opcode.
var operandWidths = map[Opcode]int{
	OP_CONST:             2,
	OP_GET_LOCAL:         1,
	OP_SET_LOCAL:         1,
	OP_INIT_LOOP:         1,
	OP_SET_CARD:          3,
	OP_SET_CARD_LOCAL:    2,
	OP_UPDATE_ELEM:       4,
	OP_UPDATE_ELEM_LOCAL: 3,
	OP_INC_LOOP:          4,
	OP_JUMP_IF_ZERO:      3,
	OP_JUMP_IF_TRUE:      2,
	OP_JUMP_IF_FALSE:     2,
	OP_IN_SET:            3,
	OP_IN_LOCAL_SET:      1,
	OP_READ_SYMBOL:       3,
	OP_READ_PARAM:        3,
	OP_COPY_SET:          2,
	OP_CALL_API:          2,
	OP_NEW_OBJ:           2,
	OP_REG_INIT:          3,
	OP_REG_STORE:         1,
	OP_ARC_INIT:          3,
	OP_ARC_DUP:           2,
	OP_LABEL_SET_ELEM:    3,
	OP_ARC_STORE:         1,
	OP_ARC_FINALIZE:      1,
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
