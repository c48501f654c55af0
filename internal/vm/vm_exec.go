package vm

import (
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/labels"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/token"
)

func (vm *VM) executeOneOp(op Opcode) error {
	switch op {
	case OP_CONST:
		vm.push(vm.readGlobal())

	case OP_NIL:
		vm.push(NilVal())

	case OP_NEGATE:
		v, ok := vm.pop().Number()
		if !ok {
			return vm.bug("NEGATE on a non-number")
		}
		vm.push(FloatVal(-v))

	case OP_GET_LOCAL:
		vm.push(vm.locals[vm.readLocal()])

	case OP_SET_LOCAL:
		vm.locals[vm.readLocal()] = vm.pop()

	// Loops

	case OP_INIT_LOOP:
		vm.locals[vm.readLocal()] = UintVal(0)

	case OP_SET_CARD:
		set := vm.readShort()
		bound := vm.readLocal()
		elems, err := vm.sess.SetElements(set)
		if err != nil {
			return err
		}
		vm.locals[bound] = UintVal(uint64(len(elems)))

	case OP_SET_CARD_LOCAL:
		cur, err := vm.cursorAt(vm.readLocal())
		if err != nil {
			return err
		}
		vm.locals[vm.readLocal()] = UintVal(uint64(len(cur.Elems)))

	case OP_UPDATE_ELEM:
		set := vm.readShort()
		idx := vm.readLocal()
		elem := vm.readLocal()
		elems, err := vm.sess.SetElements(set)
		if err != nil {
			return err
		}
		return vm.updateElem(elems, idx, elem)

	case OP_UPDATE_ELEM_LOCAL:
		cur, err := vm.cursorAt(vm.readLocal())
		if err != nil {
			return err
		}
		idx := vm.readLocal()
		elem := vm.readLocal()
		return vm.updateElem(cur.Elems, idx, elem)

	case OP_INC_LOOP:
		idx := vm.readLocal()
		bound := vm.readLocal()
		offset := vm.readOffset()
		next := vm.locals[idx].AsUint() + 1
		if next < vm.locals[bound].AsUint() {
			vm.locals[idx] = UintVal(next)
			vm.ip += offset
		} else {
			vm.locals[idx] = UintVal(0)
		}

	// Jumps

	case OP_JUMP_IF_ZERO:
		bound := vm.readLocal()
		offset := vm.readOffset()
		if vm.locals[bound].AsUint() == 0 {
			vm.ip += offset
		}

	case OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE:
		offset := vm.readOffset()
		v := vm.pop()
		if v.Type != ValBool {
			return vm.bug("%s on a %s", op, v.Type)
		}
		if v.AsBool() == (op == OP_JUMP_IF_TRUE) {
			vm.ip += offset
		}

	// Condition atoms

	case OP_IN_SET:
		set := vm.readShort()
		n := int(vm.readByte())
		tuple, err := elemTuple(vm.popN(n))
		if err != nil {
			return err
		}
		in, err := vm.sess.InSet(set, tuple)
		if err != nil {
			return err
		}
		vm.push(BoolVal(in))

	case OP_IN_LOCAL_SET:
		cur, err := vm.cursorAt(vm.readLocal())
		if err != nil {
			return err
		}
		e := vm.pop()
		if e.Type != ValElem {
			return vm.bug("IN_LOCAL_SET on a %s", e.Type)
		}
		vm.push(BoolVal(cur.Has(e.AsElem())))

	case OP_SAMEAS:
		tuple, err := elemTuple(vm.popN(2))
		if err != nil {
			return err
		}
		vm.push(BoolVal(tuple[0] == tuple[1]))

	case OP_NONZERO:
		v, ok := vm.pop().Number()
		if !ok {
			return vm.bug("NONZERO on a non-number")
		}
		vm.push(BoolVal(v != 0))

	// Dictionary reads

	case OP_READ_SYMBOL:
		sym := vm.readShort()
		n := int(vm.readByte())
		ref, err := vm.sess.ReadSymbol(sym, vm.popN(n))
		if err != nil {
			return err
		}
		vm.push(RefVal(ref))

	case OP_READ_PARAM:
		sym := vm.readShort()
		n := int(vm.readByte())
		v, err := vm.sess.ReadParam(sym, vm.popN(n))
		if err != nil {
			return err
		}
		vm.push(FloatVal(v))

	case OP_COPY_SET:
		set := vm.readShort()
		elems, err := vm.sess.SetElements(set)
		if err != nil {
			return err
		}
		vm.push(CursorVal(NewCursor(vm.sess.SymbolName(set), elems)))

	// Model API

	case OP_CALL_API:
		fn := APIFunc(vm.readByte())
		n := int(vm.readByte())
		args := vm.popN(n)
		obj := vm.peek(0)
		if !obj.IsObject() || !obj.Same(vm.parent) {
			return vm.bug("%s: %s is not the object in progress", fn, obj.Inspect())
		}
		if err := vm.sess.CallAPI(fn, obj, vm.grandparent, args...); err != nil {
			return err
		}
		if apiTable[fn].Pops {
			vm.pop()
			vm.parent = vm.grandparent
			vm.grandparent = NilVal()
		}

	case OP_NEW_OBJ:
		ctor := Ctor(vm.readByte())
		n := int(vm.readByte())
		obj, err := vm.sess.Construct(ctor, vm.popN(n)...)
		if err != nil {
			return err
		}
		if vm.parent.Type != ValNil {
			if vm.grandparent.Type != ValNil {
				return vm.bug("%s: objects nested more than two deep", ctor)
			}
			vm.grandparent = vm.parent
		}
		vm.parent = obj
		vm.push(obj)

	// Labels

	case OP_REG_INIT:
		tmpl, ok := vm.readGlobal().Obj.(*RegTemplate)
		if !ok {
			return vm.bug("REG_INIT: global is not a name template")
		}
		vm.locals[vm.readLocal()] = RegVal(&RegEntry{Template: tmpl, Tuple: make([]int, len(tmpl.Free))})

	case OP_REG_STORE:
		entry, ok := vm.locals[vm.readLocal()].Obj.(*RegEntry)
		if !ok {
			return vm.bug("REG_STORE: slot does not hold a name entry")
		}
		node := vm.parent.Node()
		if !node.Valid() {
			return vm.bug("REG_STORE without a node in progress")
		}
		return vm.sess.RegisterNode(entry.Template.Basename, entry.Template.Substitute(entry.Tuple), node)

	case OP_ARC_INIT:
		line := vm.chunk.Line(vm.ip - 1)
		tmpl, ok := vm.readGlobal().Obj.(*labels.ArcTemplate)
		if !ok {
			return vm.bug("ARC_INIT: global is not an arc template")
		}
		arc := labels.NewArc(tmpl, vm.parent.Node(), line)
		vm.locals[vm.readLocal()] = ArcVal(newArcObj(arc))

	case OP_ARC_DUP:
		src, err := vm.arcAt(vm.readLocal())
		if err != nil {
			return err
		}
		vm.locals[vm.readLocal()] = ArcVal(newArcObj(src.Arc.Clone(vm.parent.Node())))

	case OP_LABEL_SET_ELEM:
		entry := vm.readLocal()
		pos := int(vm.readByte())
		e := vm.locals[vm.readLocal()]
		if e.Type != ValElem {
			return diagnostics.NewError(diagnostics.ErrR002, token.Token{},
				"label index holds a %s, want an element", e.Type)
		}
		var tuple []int
		switch obj := vm.locals[entry].Obj.(type) {
		case *RegEntry:
			tuple = obj.Tuple
		case *ArcObj:
			tuple = obj.Tuple
		default:
			return vm.bug("LABEL_SET_ELEM: slot %d holds a %s", entry, vm.locals[entry].Type)
		}
		if pos >= len(tuple) {
			return vm.bug("LABEL_SET_ELEM: position %d out of %d", pos, len(tuple))
		}
		tuple[pos] = e.AsElem()

	case OP_ARC_STORE:
		a, err := vm.arcAt(vm.readLocal())
		if err != nil {
			return err
		}
		vr := vm.pop()
		coef := vm.pop()
		vi, err := weightVar(vr)
		if err != nil {
			return err
		}
		c, hasCoef := 0.0, false
		if coef.Type != ValNil {
			if c, hasCoef = coef.Number(); !hasCoef {
				return vm.bug("ARC_STORE: coefficient is a %s", coef.Type)
			}
		}
		a.Arc.Store(a.Tuple, c, hasCoef, vi)

	case OP_ARC_FINALIZE:
		slot := vm.readLocal()
		a, err := vm.arcAt(slot)
		if err != nil {
			return err
		}
		if len(a.Arc.Children) > 0 {
			vm.sess.Pending.AddArc(a.Arc)
		}
		vm.locals[slot] = NilVal()

	default:
		return vm.bug("unknown opcode %d", op)
	}
	return nil
}

func (vm *VM) cursorAt(slot int) (*Cursor, error) {
	cur := vm.locals[slot].AsCursor()
	if cur == nil {
		return nil, vm.bug("slot %d holds a %s, want a local set", slot, vm.locals[slot].Type)
	}
	return cur, nil
}

func (vm *VM) arcAt(slot int) (*ArcObj, error) {
	a, ok := vm.locals[slot].Obj.(*ArcObj)
	if !ok {
		return nil, vm.bug("slot %d holds a %s, want an arc", slot, vm.locals[slot].Type)
	}
	return a, nil
}

// updateElem sets the element slot to elems[index].
func (vm *VM) updateElem(elems []int, idx, elem int) error {
	i := vm.locals[idx]
	if i.Type != ValUint || i.AsUint() >= uint64(len(elems)) {
		return vm.bug("loop index %s out of %d elements", i.Inspect(), len(elems))
	}
	vm.locals[elem] = ElemVal(elems[i.AsUint()])
	return nil
}

func elemTuple(vals []Value) ([]int, error) {
	tuple := make([]int, len(vals))
	for i, v := range vals {
		if v.Type != ValElem {
			return nil, diagnostics.Bug("condition index %d is a %s", i, v.Type)
		}
		tuple[i] = v.AsElem()
	}
	return tuple, nil
}

// weightVar decodes the variable of a value-function child: nil for none,
// otherwise a reference to exactly one variable.
func weightVar(v Value) (int, error) {
	switch v.Type {
	case ValNil:
		return model.NoIndex, nil
	case ValRef:
		ref := v.AsRef()
		if idx, ok := ref.Single(); ok {
			return idx, nil
		}
		return 0, diagnostics.NewError(diagnostics.ErrR001, token.Token{},
			"a weight needs a single variable, the reference designates %d", ref.Len())
	}
	return 0, diagnostics.Bug("ARC_STORE: variable is a %s", v.Type)
}
