package labels

import (
	"sort"
	"strings"

	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

// Stats summarizes one resolution.
type Stats struct {
	EdgesAdded int
	Root       model.NodeRef
}

type request struct {
	kind     model.EdgeKind
	parent   model.NodeRef
	basename string
	tuple    []int
	coef     float64
	hasCoef  bool
	vi       int
	scheme   model.DualScheme
	domain   model.DualDomain
	line     int
	seq      int
}

type edge struct {
	req   request
	child model.NodeRef
}

// Resolver matches pending arcs against the registry.
type Resolver struct {
	Graph    *model.Graph
	Registry *Registry
	Pending  *Pending
	Dict     symbols.Dictionary
}

// Resolve runs the existence check, materializes every edge and infers
// the root. The existence check and the materialization each report all
// their errors at once; no edge is added when either fails.
func Resolve(g *model.Graph, reg *Registry, pending *Pending, dict symbols.Dictionary) (Stats, error) {
	r := &Resolver{Graph: g, Registry: reg, Pending: pending, Dict: dict}
	return r.Resolve()
}

func (r *Resolver) Resolve() (Stats, error) {
	reqs := r.requests()

	if err := r.checkExistence(reqs).Err(); err != nil {
		return Stats{}, err
	}

	var root *request
	if r.Pending.Root != nil {
		rr := labelRequest(r.Pending.Root)
		root = &rr
	}
	edges, rootNode, errs := r.materialize(reqs, root)
	if err := errs.Err(); err != nil {
		return Stats{}, err
	}

	for _, e := range edges {
		if err := r.add(e); err != nil {
			return Stats{}, diagnostics.Bug("adding validated edge: %v", err)
		}
	}
	r.Pending.clear()

	if rootNode.Valid() {
		if err := r.Graph.SetRoot(rootNode); err != nil {
			return Stats{}, diagnostics.Bug("setting root: %v", err)
		}
	}
	if err := r.inferRoot(); err != nil {
		return Stats{EdgesAdded: len(edges)}, err
	}
	return Stats{EdgesAdded: len(edges), Root: r.Graph.Root}, nil
}

func labelRequest(l *Label) request {
	return request{
		kind:     l.Kind,
		parent:   l.Parent,
		basename: l.Basename,
		tuple:    l.Tuple,
		coef:     l.Coef,
		hasCoef:  l.HasCoef,
		vi:       l.Var,
		scheme:   l.Scheme,
		domain:   l.Domain,
		line:     l.Line,
		seq:      l.seq,
	}
}

func (r *Resolver) requests() []request {
	var reqs []request
	for _, a := range r.Pending.Arcs {
		t := a.Template
		for _, c := range a.Children {
			reqs = append(reqs, request{
				kind:     t.Kind,
				parent:   a.Parent,
				basename: t.Basename,
				tuple:    t.Substitute(c.Tuple),
				coef:     c.Coef,
				hasCoef:  c.HasCoef,
				vi:       c.Var,
				scheme:   t.Scheme,
				domain:   t.Domain,
				line:     a.Line,
				seq:      a.seq,
			})
		}
	}
	for _, l := range r.Pending.Labels {
		reqs = append(reqs, labelRequest(l))
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].seq < reqs[j].seq })
	return reqs
}

func at(line int) token.Token {
	return token.Token{Line: line}
}

func (r *Resolver) name(req request) string {
	return LabelName(r.Dict, req.basename, req.tuple)
}

// checkExistence verifies basename and dimension only. Each missing name
// is reported once.
func (r *Resolver) checkExistence(reqs []request) diagnostics.ErrorList {
	var errs diagnostics.ErrorList
	seen := make(map[string]bool)
	check := func(req request) {
		if r.Registry.Has(req.basename, len(req.tuple)) {
			return
		}
		name := r.name(req)
		if seen[name] {
			return
		}
		seen[name] = true
		errs = append(errs, diagnostics.NewError(diagnostics.ErrS006, at(req.line),
			"no node declared as %s", name))
	}
	for _, req := range reqs {
		check(req)
	}
	if r.Pending.Root != nil {
		check(labelRequest(r.Pending.Root))
	}
	return errs
}

func (r *Resolver) lookup(req request) (model.NodeRef, *diagnostics.DiagnosticError) {
	node, n := r.Registry.Find(req.basename, req.tuple)
	switch n {
	case 0:
		return model.NoNode, diagnostics.NewError(diagnostics.ErrS006, at(req.line),
			"no node declared as %s", r.name(req))
	case 1:
		return node, nil
	}
	return model.NoNode, diagnostics.NewError(diagnostics.ErrS007, at(req.line),
		"label %s matches %d nodes", r.name(req), n)
}

func (r *Resolver) materialize(reqs []request, root *request) ([]edge, model.NodeRef, diagnostics.ErrorList) {
	var errs diagnostics.ErrorList
	edges := make([]edge, 0, len(reqs))
	for _, req := range reqs {
		child, derr := r.lookup(req)
		if derr != nil {
			errs = append(errs, derr)
			continue
		}
		if err := r.Graph.CheckEdge(req.kind, req.parent, child); err != nil {
			errs = append(errs, diagnostics.NewError(diagnostics.ErrS008, at(req.line),
				"%s edge to %s: %v", req.kind, r.name(req), err))
			continue
		}
		edges = append(edges, edge{req: req, child: child})
	}

	rootNode := model.NoNode
	if root != nil {
		node, derr := r.lookup(*root)
		if derr != nil {
			errs = append(errs, derr)
		} else {
			rootNode = node
		}
	}
	return edges, rootNode, errs
}

func (r *Resolver) add(e edge) error {
	req := e.req
	switch req.kind {
	case model.EdgeValFn:
		return r.Graph.AddValFn(req.parent, e.child, weightOf(req))
	case model.EdgeEquil:
		return r.Graph.AddEquil(req.parent, e.child)
	case model.EdgeControl:
		return r.Graph.AddControl(req.parent, e.child)
	case model.EdgeObjFn:
		return r.Graph.AddObjFn(req.parent, e.child)
	case model.EdgeDual:
		return r.Graph.AddDual(req.parent, e.child, req.scheme, req.domain)
	}
	return diagnostics.Bug("unknown edge kind %d", req.kind)
}

func weightOf(req request) *model.Weight {
	w := &model.Weight{}
	coef := 1.0
	if req.hasCoef {
		coef = req.coef
	}
	switch {
	case req.vi != model.NoIndex:
		w.Add(coef, req.vi)
	case req.hasCoef:
		w.Add(coef, model.NoIndex)
	}
	return w
}

// inferRoot picks the only node that is nobody's sub-problem. An explicit
// root always wins.
func (r *Resolver) inferRoot() error {
	g := r.Graph
	if g.Root.Valid() {
		return nil
	}
	if g.Empty() {
		return diagnostics.NewError(diagnostics.ErrS009, token.Token{}, "empty model graph has no root")
	}

	var candidates []model.NodeRef
	for _, ref := range g.Nodes() {
		if ref.Kind == model.NodeMP && g.MPs[ref.ID].Type == model.TypeCCF {
			continue
		}
		if !g.Incoming(ref) {
			candidates = append(candidates, ref)
		}
	}

	switch len(candidates) {
	case 1:
		return g.SetRoot(candidates[0])
	case 0:
		return diagnostics.NewError(diagnostics.ErrS009, token.Token{},
			"no root candidate: every node is the child of another")
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = g.NodeName(c)
	}
	return diagnostics.NewError(diagnostics.ErrS009, token.Token{},
		"%d root candidates, declare one with 'root:': %s", len(candidates), strings.Join(names, ", "))
}
