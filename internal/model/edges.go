package model

import (
	"fmt"
	"strings"
)

type EdgeKind int

const (
	EdgeValFn EdgeKind = iota
	EdgeEquil
	EdgeControl
	EdgeObjFn
	EdgeDual
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeValFn:
		return "valfn"
	case EdgeEquil:
		return "equil"
	case EdgeControl:
		return "ctrl"
	case EdgeObjFn:
		return "objfn"
	case EdgeDual:
		return "dual"
	}
	return "?"
}

type DualScheme int

const (
	SchemeFenchel DualScheme = iota
	SchemeEpi
)

func (s DualScheme) String() string {
	if s == SchemeEpi {
		return "epi"
	}
	return "fenchel"
}

type DualDomain int

const (
	DomainDefault DualDomain = iota
	DomainLargest
)

func (d DualDomain) String() string {
	if d == DomainLargest {
		return "largest"
	}
	return "default"
}

type WeightKind int

const (
	WeightNone WeightKind = iota
	WeightConst
	WeightConstVar
	WeightLinComb
	WeightExpr
)

func (k WeightKind) String() string {
	switch k {
	case WeightConst:
		return "const"
	case WeightConstVar:
		return "constvar"
	case WeightLinComb:
		return "lincomb"
	case WeightExpr:
		return "expr"
	}
	return "none"
}

// Term is coef*Var.
type Term struct {
	Coef float64
	Var  int
}

// Weight is the factor by which a child's objective enters its parent's
// objective. The representation escalates as terms are added:
// a constant, a constant times a variable, a linear combination, and
// finally a general affine expression once constants and variables mix.
type Weight struct {
	Kind  WeightKind
	Const float64
	Terms []Term
}

// Add accumulates coef or coef*vi (vi == NoIndex for a pure constant).
func (w *Weight) Add(coef float64, vi int) {
	if vi == NoIndex {
		switch w.Kind {
		case WeightNone:
			w.Kind = WeightConst
		case WeightConstVar, WeightLinComb:
			w.Kind = WeightExpr
		}
		w.Const += coef
		return
	}
	w.Terms = append(w.Terms, Term{Coef: coef, Var: vi})
	switch w.Kind {
	case WeightNone:
		w.Kind = WeightConstVar
	case WeightConstVar:
		w.Kind = WeightLinComb
	case WeightConst:
		w.Kind = WeightExpr
	}
}

// merge adds every term of o to w. An empty weight stands for 1.
func (w *Weight) merge(o *Weight) {
	if w.Kind == WeightNone {
		w.Add(1, NoIndex)
	}
	if o == nil || o.Kind == WeightNone {
		w.Add(1, NoIndex)
		return
	}
	if o.Kind == WeightConst || o.Kind == WeightExpr {
		w.Add(o.Const, NoIndex)
	}
	for _, t := range o.Terms {
		w.Add(t.Coef, t.Var)
	}
}

func (w *Weight) String() string {
	if w == nil || w.Kind == WeightNone {
		return "1"
	}
	var parts []string
	if w.Kind == WeightConst || w.Kind == WeightExpr {
		parts = append(parts, fmt.Sprintf("%g", w.Const))
	}
	for _, t := range w.Terms {
		parts = append(parts, fmt.Sprintf("%g*v%d", t.Coef, t.Var))
	}
	return strings.Join(parts, "+")
}

// Edge is a typed arc from parent to child.
type Edge struct {
	Kind   EdgeKind
	From   NodeRef
	To     NodeRef
	Weight *Weight
	Scheme DualScheme
	Domain DualDomain
}

// CheckEdge validates an edge without adding it.
func (g *Graph) CheckEdge(kind EdgeKind, parent, child NodeRef) error {
	if !g.Exists(parent) {
		return fmt.Errorf("%s parent %s: %w", kind, parent, ErrUnknownNode)
	}
	if !g.Exists(child) {
		return fmt.Errorf("%s child %s: %w", kind, child, ErrUnknownNode)
	}
	switch kind {
	case EdgeControl:
		if parent == child {
			return fmt.Errorf("ctrl %s onto itself: %w", g.NodeName(parent), ErrInvalidTarget)
		}
		return nil
	case EdgeEquil:
		if parent.Kind != NodeNash {
			return fmt.Errorf("equil parent %s is not an equilibrium: %w", g.NodeName(parent), ErrInvalidTarget)
		}
		if child.Kind != NodeMP {
			return fmt.Errorf("equil member %s is not a math program: %w", g.NodeName(child), ErrInvalidTarget)
		}
		return nil
	}

	if child.Kind != NodeMP {
		return fmt.Errorf("%s child %s is not a math program: %w", kind, g.NodeName(child), ErrInvalidTarget)
	}
	mp := g.MPs[child.ID]
	switch kind {
	case EdgeValFn:
		if parent.Kind != NodeMP {
			return fmt.Errorf("valfn parent %s is not a math program: %w", g.NodeName(parent), ErrInvalidTarget)
		}
		if !mp.HasObjective() {
			return fmt.Errorf("valfn child %s has no objective: %w", g.NodeName(child), ErrInvalidTarget)
		}
	case EdgeObjFn:
		if parent.Kind != NodeMP {
			return fmt.Errorf("objfn parent %s is not a math program: %w", g.NodeName(parent), ErrInvalidTarget)
		}
		if mp.Type != TypeCCF {
			return fmt.Errorf("objfn child %s is not a composite-function node: %w", g.NodeName(child), ErrInvalidTarget)
		}
	case EdgeDual:
		if mp.Type != TypeOpt && mp.Type != TypeCCF {
			return fmt.Errorf("dual child %s is a %s node: %w", g.NodeName(child), mp.Type, ErrInvalidTarget)
		}
	}
	return nil
}

// AddValFn adds a value-function edge; child must carry an objective. A
// second edge between the same nodes merges into the first one's weight.
func (g *Graph) AddValFn(parent, child NodeRef, w *Weight) error {
	if err := g.CheckEdge(EdgeValFn, parent, child); err != nil {
		return err
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Kind == EdgeValFn && e.From == parent && e.To == child {
			if e.Weight == nil {
				e.Weight = &Weight{}
			}
			e.Weight.merge(w)
			g.record("edge valfn %s %s += %s", parent, child, w)
			return nil
		}
	}
	g.Edges = append(g.Edges, Edge{Kind: EdgeValFn, From: parent, To: child, Weight: w})
	g.record("edge valfn %s %s %s", parent, child, w)
	return nil
}

// AddEquil adds math program child to equilibrium group parent.
func (g *Graph) AddEquil(parent, child NodeRef) error {
	if err := g.CheckEdge(EdgeEquil, parent, child); err != nil {
		return err
	}
	if err := g.AddMember(parent.ID, child.ID); err != nil {
		return err
	}
	g.Edges = append(g.Edges, Edge{Kind: EdgeEquil, From: parent, To: child})
	g.record("edge equil %s %s", parent, child)
	return nil
}

// AddControl adds a control edge to any node.
func (g *Graph) AddControl(parent, child NodeRef) error {
	if err := g.CheckEdge(EdgeControl, parent, child); err != nil {
		return err
	}
	g.Edges = append(g.Edges, Edge{Kind: EdgeControl, From: parent, To: child})
	g.record("edge ctrl %s %s", parent, child)
	return nil
}

// AddObjFn composes parent's objective with composite-function node child.
func (g *Graph) AddObjFn(parent, child NodeRef) error {
	if err := g.CheckEdge(EdgeObjFn, parent, child); err != nil {
		return err
	}
	g.Edges = append(g.Edges, Edge{Kind: EdgeObjFn, From: parent, To: child})
	g.record("edge objfn %s %s", parent, child)
	return nil
}

// AddDual links parent to the dual of child and files child into the
// (scheme, domain) bucket.
func (g *Graph) AddDual(parent, child NodeRef, scheme DualScheme, domain DualDomain) error {
	if err := g.CheckEdge(EdgeDual, parent, child); err != nil {
		return err
	}
	g.Edges = append(g.Edges, Edge{Kind: EdgeDual, From: parent, To: child, Scheme: scheme, Domain: domain})
	g.DualBuckets[scheme][domain] = append(g.DualBuckets[scheme][domain], child.ID)
	g.record("edge dual %s %s %s %s", parent, child, scheme, domain)
	return nil
}

// Incoming reports whether ref is the target of a control or equilibrium
// edge. Value-function, objfn and dual edges do not make a node a
// sub-problem for root inference.
func (g *Graph) Incoming(ref NodeRef) bool {
	for _, e := range g.Edges {
		if e.To != ref {
			continue
		}
		switch e.Kind {
		case EdgeControl, EdgeEquil:
			return true
		}
	}
	return false
}
