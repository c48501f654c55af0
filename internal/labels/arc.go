package labels

import (
	"github.com/xhub/reshop-sub001/internal/model"
)

// ArcTemplate is the compile-time part of an arc: which label it points
// to and which index positions vary per child. Index holds the fixed
// elements; positions listed in Free are filled from each child tuple.
type ArcTemplate struct {
	Kind     model.EdgeKind
	Basename string
	Dim      int
	Index    []int
	Free     []int
	Scheme   model.DualScheme
	Domain   model.DualDomain
}

// Substitute builds the full index tuple of a child.
func (t *ArcTemplate) Substitute(child []int) []int {
	out := make([]int, len(t.Index))
	copy(out, t.Index)
	for i, pos := range t.Free {
		out[pos] = child[i]
	}
	return out
}

// Child is one recorded instance of an arc: the varying elements plus an
// optional coefficient and variable for value-function weights.
type Child struct {
	Tuple   []int
	Coef    float64
	HasCoef bool
	Var     int
}

// Arc is a mutable template instance owned by a parent node.
type Arc struct {
	Template *ArcTemplate
	Parent   model.NodeRef
	Children []Child
	Line     int
	seq      int
}

// NewArc instantiates tmpl for parent.
func NewArc(tmpl *ArcTemplate, parent model.NodeRef, line int) *Arc {
	return &Arc{Template: tmpl, Parent: parent, Line: line}
}

// Clone copies a prototype instance for a new parent.
func (a *Arc) Clone(parent model.NodeRef) *Arc {
	c := &Arc{Template: a.Template, Parent: parent, Line: a.Line}
	c.Children = make([]Child, len(a.Children))
	for i, ch := range a.Children {
		ch.Tuple = append([]int(nil), ch.Tuple...)
		c.Children[i] = ch
	}
	return c
}

// Store appends a child. len(tuple) must equal len(Template.Free).
func (a *Arc) Store(tuple []int, coef float64, hasCoef bool, vi int) {
	a.Children = append(a.Children, Child{
		Tuple:   append([]int(nil), tuple...),
		Coef:    coef,
		HasCoef: hasCoef,
		Var:     vi,
	})
}

// Label is a single-child arc recorded by immediate execution. Tuple is
// the complete index vector.
type Label struct {
	Kind     model.EdgeKind
	Basename string
	Tuple    []int
	Parent   model.NodeRef
	Coef     float64
	HasCoef  bool
	Var      int
	Scheme   model.DualScheme
	Domain   model.DualDomain
	Line     int
	seq      int
}

// Pending holds everything the resolver still has to consume. Arcs and
// labels are resolved in the order they were added, whichever list holds
// them.
type Pending struct {
	Arcs   []*Arc
	Labels []*Label
	Root   *Label
	next   int
}

func (p *Pending) AddArc(a *Arc) {
	a.seq = p.next
	p.next++
	p.Arcs = append(p.Arcs, a)
}

func (p *Pending) AddLabel(l *Label) {
	l.seq = p.next
	p.next++
	p.Labels = append(p.Labels, l)
}

// Len counts the arcs and labels waiting for resolution.
func (p *Pending) Len() int {
	n := len(p.Arcs) + len(p.Labels)
	if p.Root != nil {
		n++
	}
	return n
}

func (p *Pending) clear() {
	p.Arcs = nil
	p.Labels = nil
	p.Root = nil
}
