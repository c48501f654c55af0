package vm

import (
	"github.com/xhub/reshop-sub001/internal/labels"
)

// Cursor is a local set: an ordered list of one-dimensional elements.
type Cursor struct {
	Name    string
	Elems   []int
	members map[int]bool
}

// NewCursor wraps elems. The slice is not copied.
func NewCursor(name string, elems []int) *Cursor {
	return &Cursor{Name: name, Elems: elems}
}

// Members returns the element set, built on first use.
func (c *Cursor) Members() map[int]bool {
	if c.members == nil {
		c.members = make(map[int]bool, len(c.Elems))
		for _, e := range c.Elems {
			c.members[e] = true
		}
	}
	return c.members
}

// Has reports whether uel belongs to the local set.
func (c *Cursor) Has(uel int) bool {
	return c.Members()[uel]
}

// RegTemplate is the compile-time part of a node name: fixed elements in
// Index, positions filled per iteration in Free.
type RegTemplate struct {
	Basename string
	Index    []int
	Free     []int
}

// Substitute builds the full tuple from the varying elements.
func (t *RegTemplate) Substitute(free []int) []int {
	out := make([]int, len(t.Index))
	copy(out, t.Index)
	for i, pos := range t.Free {
		out[pos] = free[i]
	}
	return out
}

// RegEntry is a name being assembled in a local slot.
type RegEntry struct {
	Template *RegTemplate
	Tuple    []int
}

// ArcObj is an arc instance in a local slot together with the varying
// elements of the child being assembled.
type ArcObj struct {
	Arc   *labels.Arc
	Tuple []int
}

func newArcObj(a *labels.Arc) *ArcObj {
	return &ArcObj{Arc: a, Tuple: make([]int, len(a.Template.Free))}
}

func regTemplateOf(v Value) *RegTemplate {
	switch r := v.Obj.(type) {
	case *RegTemplate:
		return r
	case *RegEntry:
		return r.Template
	}
	return nil
}

func arcTemplateOf(v Value) *labels.ArcTemplate {
	switch a := v.Obj.(type) {
	case *labels.ArcTemplate:
		return a
	case *ArcObj:
		return a.Arc.Template
	}
	return nil
}
