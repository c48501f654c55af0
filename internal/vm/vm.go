package vm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
)

var errTruncatedBytecode = errors.New("truncated bytecode")
var errStackUnderflow = errors.New("stack underflow")
var errStackOverflow = errors.New("stack overflow")
var errInvalidGlobalIndex = errors.New("invalid global index")
var errInvalidLocal = errors.New("invalid local slot")

// State of the machine between and during runs.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// VM executes chunks against the session of the pass.
type VM struct {
	sess *Session

	stack [config.StackSize]Value
	sp    int // Stack pointer (points to next free slot)

	locals [config.MaxLocals]Value

	chunk *Chunk
	ip    int
	state State

	// Objects in progress: the innermost and the one it is nested in.
	parent      Value
	grandparent Value

	ctx   context.Context
	trace *log.Logger
}

// New creates an idle machine bound to sess.
func New(sess *Session) *VM {
	return &VM{sess: sess, ctx: context.Background()}
}

// SetContext sets the context checked for cancellation during long runs.
func (vm *VM) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	vm.ctx = ctx
}

// SetTrace enables per-instruction tracing to l. nil disables it.
func (vm *VM) SetTrace(l *log.Logger) {
	vm.trace = l
}

// State returns the current state.
func (vm *VM) State() State {
	return vm.state
}

// StackDepth returns the number of values on the operand stack.
func (vm *VM) StackDepth() int {
	return vm.sp
}

// Run executes chunk from its first instruction until OP_END. Any error
// aborts the statement; mutations already applied to the graph stay.
func (vm *VM) Run(chunk *Chunk) (err error) {
	if vm.state == Running {
		return diagnostics.Bug("Run called on a running machine")
	}
	vm.state = Running
	vm.chunk = chunk
	vm.ip = 0
	vm.sp = 0
	vm.parent = NilVal()
	vm.grandparent = NilVal()
	for i := range vm.locals {
		vm.locals[i] = NilVal()
	}

	opStart := 0
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			switch e {
			case errTruncatedBytecode, errStackUnderflow, errStackOverflow,
				errInvalidGlobalIndex, errInvalidLocal:
				err = vm.locate(diagnostics.Bug("%v", e), opStart)
			default:
				panic(r)
			}
		}
		vm.state = Idle
		vm.chunk = nil
	}()

	opsSinceCheck := 0
	const checkInterval = 1000

	for {
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			select {
			case <-vm.ctx.Done():
				return vm.locate(diagnostics.Interrupted(vm.chunk.Pos(opStart), vm.ctx.Err()), opStart)
			default:
			}
		}

		opStart = vm.ip
		op := Opcode(vm.readByte())
		if vm.trace != nil {
			vm.trace.Printf("%04d %-18s sp=%d", opStart, op, vm.sp)
		}
		if op == OP_END {
			if vm.sp != 0 {
				return vm.locate(diagnostics.Bug("%d values left on the stack at the end of the statement", vm.sp), opStart)
			}
			return nil
		}
		if err := vm.executeOneOp(op); err != nil {
			return vm.locate(err, opStart)
		}
	}
}

// locate attaches the source position of the instruction at offset.
func (vm *VM) locate(err error, offset int) error {
	return Locate(err, vm.chunk.Pos(offset), vm.chunk.File, vm.chunk.Keyword)
}

// Stack operations

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		panic(errStackOverflow)
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Value{}
	return v
}

func (vm *VM) peek(distance int) Value {
	idx := vm.sp - 1 - distance
	if idx < 0 {
		panic(errStackUnderflow)
	}
	return vm.stack[idx]
}

// popN removes the n topmost values and returns them bottom first.
func (vm *VM) popN(n int) []Value {
	if vm.sp < n {
		panic(errStackUnderflow)
	}
	out := make([]Value, n)
	copy(out, vm.stack[vm.sp-n:vm.sp])
	for i := vm.sp - n; i < vm.sp; i++ {
		vm.stack[i] = Value{}
	}
	vm.sp -= n
	return out
}

// Read helpers

func (vm *VM) readByte() byte {
	if vm.ip >= len(vm.chunk.Code) {
		panic(errTruncatedBytecode)
	}
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readShort() int {
	high := vm.readByte()
	low := vm.readByte()
	return int(high)<<8 | int(low)
}

func (vm *VM) readOffset() int {
	return int(int16(uint16(vm.readShort())))
}

func (vm *VM) readGlobal() Value {
	v, ok := vm.sess.Globals.Get(vm.readShort())
	if !ok {
		panic(errInvalidGlobalIndex)
	}
	return v
}

func (vm *VM) readLocal() int {
	slot := int(vm.readByte())
	if slot >= len(vm.locals) {
		panic(errInvalidLocal)
	}
	return slot
}

func (vm *VM) bug(format string, args ...interface{}) error {
	return diagnostics.Bug(format, args...)
}

// String summarizes the machine for traces.
func (vm *VM) String() string {
	return fmt.Sprintf("vm[%s ip=%d sp=%d parent=%s]", vm.state, vm.ip, vm.sp, vm.parent.Inspect())
}
