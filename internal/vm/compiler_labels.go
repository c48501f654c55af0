package vm

import (
	"strings"

	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/labels"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/token"
)

// arcSpec is an arc-producing body item in uniform shape.
type arcSpec struct {
	tok    token.Token
	kind   model.EdgeKind
	label  *ast.LabelRef
	scheme model.DualScheme
	domain model.DualDomain
	sign   float64
	coef   *ast.Coef
	vr     *ast.SymbolRef
}

// arcSpecOf describes item as an arc. Plain labels are control edges in
// a node and membership edges in an equilibrium.
func arcSpecOf(item ast.BodyItem, nash bool) (*arcSpec, bool) {
	switch it := item.(type) {
	case *ast.LabelItem:
		kind := model.EdgeControl
		if nash {
			kind = model.EdgeEquil
		}
		return &arcSpec{tok: it.Label.Token, kind: kind, label: it.Label, sign: 1}, true
	case *ast.DualItem:
		return &arcSpec{tok: it.Token, kind: model.EdgeDual, label: it.Label,
			scheme: it.Scheme, domain: it.Domain, sign: 1}, true
	case *ast.WeightedTerm:
		kind := model.EdgeValFn
		if it.Member == token.OBJFN {
			kind = model.EdgeObjFn
		}
		return &arcSpec{tok: it.Token, kind: kind, label: it.Label,
			sign: it.Sign, coef: it.Coef, vr: it.Var}, true
	}
	return nil, false
}

// splitIndices separates the constant elements of an index list from the
// positions that vary at run time.
func (c *Compiler) splitIndices(indices []*ast.Index) (fixed []int, free []int) {
	fixed = make([]int, len(indices))
	for i, idx := range indices {
		if idx.Kind == ast.IndexElem {
			fixed[i] = c.sess.Elem(idx.Label)
			continue
		}
		free = append(free, i)
	}
	return fixed, free
}

func (c *Compiler) arcTemplate(spec *arcSpec) *labels.ArcTemplate {
	fixed, free := c.splitIndices(spec.label.Indices)
	return &labels.ArcTemplate{
		Kind:     spec.kind,
		Basename: spec.label.Basename,
		Dim:      len(spec.label.Indices),
		Index:    fixed,
		Free:     free,
		Scheme:   spec.scheme,
		Domain:   spec.domain,
	}
}

// setElems fills the varying positions of the entry in slot from the
// current loop elements.
func (c *Compiler) setElems(slot int, indices []*ast.Index, free []int, line int) error {
	for j, pos := range free {
		idx := indices[pos]
		elem, kind := c.resolveLocal(idx.Name)
		if elem < 0 || kind != LocalElem {
			return diagnostics.NewError(diagnostics.ErrS002, idx.Token,
				"label index %s does not designate an element", idx.Token.Lexeme)
		}
		c.emitOp(OP_LABEL_SET_ELEM, line, slot, j, elem)
	}
	return nil
}

// register names the object in progress after its label.
func (c *Compiler) register(l *ast.LabelDecl) error {
	line := l.Token.Line
	fixed, free := c.splitIndices(l.Indices)
	tmpl := &RegTemplate{Basename: l.Basename, Index: fixed, Free: free}

	c.beginScope()
	slot, err := c.addLocal("", LocalReg, l.Token)
	if err != nil {
		return err
	}
	if err := c.emitGlobalOp(OP_REG_INIT, RegVal(tmpl), line, slot); err != nil {
		return err
	}
	if err := c.setElems(slot, l.Indices, free, line); err != nil {
		return err
	}
	c.emitOp(OP_REG_STORE, line, slot)
	return c.endScope(line)
}

// initArc allocates a slot and creates an arc instance for spec in it.
func (c *Compiler) initArc(spec *arcSpec) (int, error) {
	slot, err := c.addLocal("", LocalArc, spec.tok)
	if err != nil {
		return 0, err
	}
	if err := c.emitGlobalOp(OP_ARC_INIT, ArcVal(c.arcTemplate(spec)), spec.tok.Line, slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// storeChildren records the children of spec in the arc at slot: one
// child, or one per element when the label carries free sets.
func (c *Compiler) storeChildren(spec *arcSpec, slot int) error {
	line := spec.tok.Line
	its, err := c.freeIterators(spec.label.Indices)
	if err != nil {
		return err
	}
	_, free := c.splitIndices(spec.label.Indices)
	return c.loop(its, spec.tok, func() error {
		if err := c.setElems(slot, spec.label.Indices, free, line); err != nil {
			return err
		}
		if err := c.pushCoef(spec.coef, spec.sign, line, false); err != nil {
			return err
		}
		if spec.vr != nil {
			if err := c.readSymbol(spec.vr); err != nil {
				return err
			}
		} else {
			c.emit(OP_NIL, line)
		}
		at := spec.tok
		if spec.vr != nil {
			at = spec.vr.Token
		}
		c.emitOpAt(OP_ARC_STORE, at, slot)
		return nil
	})
}

// inlineArc compiles a single arc item in place.
func (c *Compiler) inlineArc(spec *arcSpec) error {
	line := spec.tok.Line
	c.beginScope()
	slot, err := c.initArc(spec)
	if err != nil {
		return err
	}
	if err := c.storeChildren(spec, slot); err != nil {
		return err
	}
	c.emitOp(OP_ARC_FINALIZE, line, slot)
	return c.endScope(line)
}

// dupArc hands a copy of a hoisted prototype to the resolver, owned by
// the object in progress.
func (c *Compiler) dupArc(proto int, line int) error {
	c.beginScope()
	slot, err := c.addLocal("", LocalArc, token.Token{Line: line})
	if err != nil {
		return err
	}
	c.emitOp(OP_ARC_DUP, line, proto, slot)
	c.emitOp(OP_ARC_FINALIZE, line, slot)
	return c.endScope(line)
}

// hoistArcs builds, ahead of an implicit loop, the arcs of body items that
// do not depend on the loop elements. Each iteration then copies the
// prototype instead of rebuilding it.
func (c *Compiler) hoistArcs(items []ast.BodyItem, its []*iterator) (map[ast.BodyItem]int, error) {
	names := make(map[string]bool, len(its))
	for _, it := range its {
		names[strings.ToLower(it.name)] = true
	}
	var protos map[ast.BodyItem]int
	for _, item := range items {
		spec, ok := arcSpecOf(item, false)
		if !ok || specDependsOn(spec, names) {
			continue
		}
		slot, err := c.initArc(spec)
		if err != nil {
			return nil, err
		}
		if err := c.storeChildren(spec, slot); err != nil {
			return nil, err
		}
		if protos == nil {
			protos = make(map[ast.BodyItem]int)
		}
		protos[item] = slot
	}
	return protos, nil
}

func specDependsOn(spec *arcSpec, names map[string]bool) bool {
	if indicesDependOn(spec.label.Indices, names) {
		return true
	}
	if spec.coef != nil && spec.coef.Param != nil && indicesDependOn(spec.coef.Param.Indices, names) {
		return true
	}
	return spec.vr != nil && indicesDependOn(spec.vr.Indices, names)
}

func indicesDependOn(indices []*ast.Index, names map[string]bool) bool {
	for _, idx := range indices {
		if idx.Kind == ast.IndexLoopVar && names[strings.ToLower(idx.Name)] {
			return true
		}
	}
	return false
}

// compileSum compiles an aggregation. Every arc item of the sum, nested
// sums included, gets a single arc collecting one child per iteration.
func (c *Compiler) compileSum(s *ast.SumItem, ctx bodyCtx) error {
	line := s.Token.Line
	c.beginScope()

	slots := make(map[ast.BodyItem]int)
	var collect func(items []ast.BodyItem) error
	collect = func(items []ast.BodyItem) error {
		for _, item := range items {
			if sub, ok := item.(*ast.SumItem); ok {
				if err := collect(sub.Items); err != nil {
					return err
				}
				continue
			}
			spec, ok := arcSpecOf(item, ctx.nash)
			if !ok {
				continue
			}
			slot, err := c.initArc(spec)
			if err != nil {
				return err
			}
			slots[item] = slot
		}
		return nil
	}
	if err := collect(s.Items); err != nil {
		return err
	}

	if err := c.sumLoop(s, ctx, slots); err != nil {
		return err
	}
	for _, item := range orderedArcItems(s.Items) {
		c.emitOp(OP_ARC_FINALIZE, line, slots[item])
	}
	return c.endScope(line)
}

func (c *Compiler) sumLoop(s *ast.SumItem, ctx bodyCtx, slots map[ast.BodyItem]int) error {
	its, err := c.domainIterators(s.Domain.Sets)
	if err != nil {
		return err
	}
	return c.loop(its, s.Token, func() error {
		return c.guarded(s.Domain.Cond, s.Token.Line, func() error {
			for _, item := range s.Items {
				if sub, ok := item.(*ast.SumItem); ok {
					if err := c.sumLoop(sub, ctx, slots); err != nil {
						return err
					}
					continue
				}
				if slot, ok := slots[item]; ok {
					spec, _ := arcSpecOf(item, ctx.nash)
					if err := c.storeChildren(spec, slot); err != nil {
						return err
					}
					continue
				}
				if err := c.bodyItem(item, bodyCtx{vi: ctx.vi, nash: ctx.nash}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// orderedArcItems lists the arc items of a sum in source order.
func orderedArcItems(items []ast.BodyItem) []ast.BodyItem {
	var out []ast.BodyItem
	for _, item := range items {
		switch it := item.(type) {
		case *ast.SumItem:
			out = append(out, orderedArcItems(it.Items)...)
		case *ast.LabelItem, *ast.DualItem, *ast.WeightedTerm:
			out = append(out, it)
		}
	}
	return out
}
