package vm

import (
	"fmt"
	"math"

	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValInt
	ValUint
	ValFloat
	ValElem     // element id
	ValStr      // Obj: string
	ValMP       // math program id
	ValNash     // equilibrium id
	ValOvf      // OVF id
	ValCursor   // Obj: *Cursor
	ValRegEntry // Obj: *RegTemplate (global) or *RegEntry (local)
	ValArc      // Obj: *labels.ArcTemplate (global) or *ArcObj (local)
	ValRef      // Obj: symbols.Ref
)

var valueTypeNames = [...]string{
	ValNil:      "nil",
	ValBool:     "bool",
	ValInt:      "int",
	ValUint:     "uint",
	ValFloat:    "float",
	ValElem:     "element",
	ValStr:      "string",
	ValMP:       "mp",
	ValNash:     "nash",
	ValOvf:      "ovf",
	ValCursor:   "local set",
	ValRegEntry: "name entry",
	ValArc:      "arc",
	ValRef:      "symbol ref",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "?"
}

// Value is a tagged union. Scalars and node ids live in Data; pointer
// payloads in Obj.
type Value struct {
	Type ValueType
	Data uint64
	Obj  interface{}
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func UintVal(v uint64) Value {
	return Value{Type: ValUint, Data: v}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

// ElemVal wraps an element id. Ids of labels unknown to the dictionary
// are negative.
func ElemVal(uel int) Value {
	return Value{Type: ValElem, Data: uint64(int64(uel))}
}

func StrVal(s string) Value {
	return Value{Type: ValStr, Obj: s}
}

func MPVal(id int) Value   { return Value{Type: ValMP, Data: uint64(id)} }
func NashVal(id int) Value { return Value{Type: ValNash, Data: uint64(id)} }
func OvfVal(id int) Value  { return Value{Type: ValOvf, Data: uint64(id)} }

func CursorVal(c *Cursor) Value {
	return Value{Type: ValCursor, Obj: c}
}

func RegVal(r interface{}) Value {
	return Value{Type: ValRegEntry, Obj: r}
}

func ArcVal(a interface{}) Value {
	return Value{Type: ValArc, Obj: a}
}

func RefVal(r symbols.Ref) Value {
	return Value{Type: ValRef, Obj: r}
}

// Accessors

func (v Value) AsBool() bool     { return v.Data == 1 }
func (v Value) AsInt() int64     { return int64(v.Data) }
func (v Value) AsUint() uint64   { return v.Data }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsElem() int      { return int(int64(v.Data)) }
func (v Value) AsID() int        { return int(v.Data) }

func (v Value) AsStr() string {
	s, _ := v.Obj.(string)
	return s
}

func (v Value) AsCursor() *Cursor {
	c, _ := v.Obj.(*Cursor)
	return c
}

func (v Value) AsRef() symbols.Ref {
	r, _ := v.Obj.(symbols.Ref)
	return r
}

// Number returns the numeric payload of an int, uint or float value.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case ValInt:
		return float64(v.AsInt()), true
	case ValUint:
		return float64(v.AsUint()), true
	case ValFloat:
		return v.AsFloat(), true
	}
	return 0, false
}

// Node returns the graph reference of an mp or nash value.
func (v Value) Node() model.NodeRef {
	switch v.Type {
	case ValMP:
		return model.MPRef(v.AsID())
	case ValNash:
		return model.NashRef(v.AsID())
	}
	return model.NoNode
}

// IsObject reports whether v is an object under construction.
func (v Value) IsObject() bool {
	return v.Type == ValMP || v.Type == ValNash || v.Type == ValOvf
}

// Same reports whether two object values designate the same object.
func (v Value) Same(o Value) bool {
	return v.Type == o.Type && v.Data == o.Data
}

// Inspect returns string representation
func (v Value) Inspect() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return fmt.Sprintf("%t", v.AsBool())
	case ValInt:
		return fmt.Sprintf("%d", v.AsInt())
	case ValUint:
		return fmt.Sprintf("%du", v.AsUint())
	case ValFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case ValElem:
		return fmt.Sprintf("uel#%d", v.AsElem())
	case ValStr:
		return fmt.Sprintf("%q", v.AsStr())
	case ValMP, ValNash, ValOvf:
		return fmt.Sprintf("%s#%d", v.Type, v.AsID())
	case ValCursor:
		if c := v.AsCursor(); c != nil {
			return fmt.Sprintf("set[%d]", len(c.Elems))
		}
	case ValRegEntry:
		if t := regTemplateOf(v); t != nil {
			return "name " + t.Basename
		}
	case ValArc:
		if t := arcTemplateOf(v); t != nil {
			return fmt.Sprintf("%s arc %s", t.Kind, t.Basename)
		}
	case ValRef:
		return v.AsRef().String()
	}
	return v.Type.String()
}
