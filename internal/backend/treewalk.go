package backend

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/labels"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/pipeline"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
	"github.com/xhub/reshop-sub001/internal/vm"
)

// TreeWalkBackend executes index-free statements directly on the
// session. It makes the same model-API calls, in the same order, as the
// bytecode the compiler would emit for the statement.
type TreeWalkBackend struct{}

// NewTreeWalk creates a new tree-walk backend
func NewTreeWalk() *TreeWalkBackend {
	return &TreeWalkBackend{}
}

// Exec walks stmt.
func (b *TreeWalkBackend) Exec(ctx *pipeline.PipelineContext, stmt ast.Statement) error {
	if ctx.Session == nil {
		return diagnostics.Bug("no session to execute %s", ast.Keyword(stmt))
	}
	w := &walker{ctx: ctx, sess: ctx.Session}
	stmt.Accept(w)
	return vm.Locate(w.err, stmt.GetToken(), ctx.FilePath, ast.Keyword(stmt))
}

// Name returns the backend name
func (b *TreeWalkBackend) Name() string {
	return "immediate"
}

// walker is the visitor of one statement. The first error stops it.
type walker struct {
	ctx  *pipeline.PipelineContext
	sess *vm.Session
	err  error
}

func (w *walker) VisitNodeDecl(n *ast.NodeDecl) { w.err = w.node(n) }
func (w *walker) VisitNashDecl(n *ast.NashDecl) { w.err = w.nash(n) }
func (w *walker) VisitCCFDecl(n *ast.CCFDecl)   { w.err = w.ccf(n) }
func (w *walker) VisitOvfDecl(n *ast.OvfDecl)   { w.err = w.ovf(n, vm.NilVal()) }
func (w *walker) VisitRootStmt(n *ast.RootStmt) { w.err = w.root(n) }

func (w *walker) VisitLoopStmt(n *ast.LoopStmt) {
	w.err = diagnostics.Bug("loop statements cannot run on the tree walker")
}

func (w *walker) VisitDefStmt(n *ast.DefStmt) {
	w.err = diagnostics.Bug("def statements cannot run on the tree walker")
}

// VisitLoadStmt has nothing to do: the parser merged the file so that the
// statements after it could see its symbols.
func (w *walker) VisitLoadStmt(n *ast.LoadStmt) {
	w.ctx.Logger.Printf("%s already loaded", n.Path)
}

// call applies a model-API function to obj.
func (w *walker) call(fn vm.APIFunc, obj, parent vm.Value, args ...vm.Value) error {
	return w.sess.CallAPI(fn, obj, parent, args...)
}

func (w *walker) node(n *ast.NodeDecl) error {
	mp, err := w.sess.Construct(vm.CTOR_NEW_MP, vm.IntVal(int64(vm.NodeSense(n.Kind))))
	if err != nil {
		return err
	}
	switch n.Kind {
	case token.VI:
		if err := w.call(vm.API_SET_KIND, mp, vm.NilVal(), vm.IntVal(int64(model.TypeVI))); err != nil {
			return err
		}
	case token.FEASIBILITY:
		if err := w.call(vm.API_SET_FEASIBILITY, mp, vm.NilVal()); err != nil {
			return err
		}
	}
	if err := w.register(n.Label, mp); err != nil {
		return err
	}

	if obj := n.Objective; obj != nil {
		ref, err := w.read(obj)
		if err != nil {
			return err
		}
		fn := vm.API_SET_OBJVAR
		switch obj.Symbol.Kind {
		case symbols.KindVar:
		case symbols.KindEqu:
			fn = vm.API_SET_OBJEQU
		default:
			return diagnostics.NewError(diagnostics.ErrS002, obj.Token,
				"objective %s is a %s, want a variable or an equation", obj.Symbol.Name, obj.Symbol.Kind)
		}
		if err := w.call(fn, mp, vm.NilVal(), ref); err != nil {
			return err
		}
	}

	for _, item := range n.Body {
		if err := w.bodyItem(item, mp, n.Kind == token.VI, false); err != nil {
			return err
		}
	}
	return w.call(vm.API_FINALIZE, mp, vm.NilVal())
}

func (w *walker) nash(n *ast.NashDecl) error {
	nash, err := w.sess.Construct(vm.CTOR_NEW_NASH)
	if err != nil {
		return err
	}
	if err := w.register(n.Label, nash); err != nil {
		return err
	}
	for _, item := range n.Members {
		if err := w.bodyItem(item, nash, false, true); err != nil {
			return err
		}
	}
	return w.call(vm.API_FINALIZE, nash, vm.NilVal())
}

func (w *walker) ccf(n *ast.CCFDecl) error {
	res, err := w.result(n.Result)
	if err != nil {
		return err
	}
	mp, err := w.sess.Construct(vm.CTOR_NEW_CCF, vm.StrVal(n.Func), res)
	if err != nil {
		return err
	}
	if err := w.register(n.Label, mp); err != nil {
		return err
	}
	for _, arg := range n.Args {
		ref, err := w.read(arg)
		if err != nil {
			return err
		}
		if err := w.call(vm.API_CCF_ADD_ARG, mp, vm.NilVal(), ref); err != nil {
			return err
		}
	}
	for _, p := range n.Params {
		v, err := w.coef(p.Value, 1)
		if err != nil {
			return err
		}
		if err := w.call(vm.API_CCF_SET_PARAM, mp, vm.NilVal(), vm.StrVal(p.Name), vm.FloatVal(v)); err != nil {
			return err
		}
	}
	return w.call(vm.API_FINALIZE, mp, vm.NilVal())
}

// ovf defines an OVF; parent is the node it is nested in, nil at top
// level.
func (w *walker) ovf(o *ast.OvfDecl, parent vm.Value) error {
	res, err := w.result(o.Result)
	if err != nil {
		return err
	}
	obj, err := w.sess.Construct(vm.CTOR_NEW_OVF, vm.StrVal(o.Func), res)
	if err != nil {
		return err
	}
	for _, arg := range o.Args {
		ref, err := w.read(arg)
		if err != nil {
			return err
		}
		if err := w.call(vm.API_OVF_ADD_ARG, obj, parent, ref); err != nil {
			return err
		}
	}
	for _, p := range o.Params {
		v, err := w.coef(p.Value, 1)
		if err != nil {
			return err
		}
		if err := w.call(vm.API_OVF_SET_PARAM, obj, parent, vm.StrVal(p.Name), vm.FloatVal(v)); err != nil {
			return err
		}
	}
	if err := w.call(vm.API_OVF_SYNC_PARAMS, obj, parent); err != nil {
		return err
	}
	if err := w.call(vm.API_OVF_CHECK, obj, parent); err != nil {
		return err
	}
	if parent.Type != vm.ValNil {
		if err := w.call(vm.API_ATTACH_OVF, obj, parent); err != nil {
			return err
		}
	}
	return w.call(vm.API_OVF_FINALIZE, obj, parent)
}

func (w *walker) root(r *ast.RootStmt) error {
	tuple, err := w.tuple(r.Label.Indices)
	if err != nil {
		return err
	}
	w.sess.SetRoot(r.Label.Basename, tuple, r.Token.Line)
	return nil
}

func (w *walker) register(l *ast.LabelDecl, obj vm.Value) error {
	if l == nil {
		return nil
	}
	tuple, err := w.tuple(l.Indices)
	if err != nil {
		return err
	}
	return w.sess.RegisterNode(l.Basename, tuple, obj.Node())
}

func (w *walker) bodyItem(item ast.BodyItem, obj vm.Value, vi, nash bool) error {
	switch it := item.(type) {
	case *ast.SymbolItem:
		return w.symbolItem(it, obj, vi)
	case *ast.OvfItem:
		return w.ovf(it.Ovf, obj)
	case *ast.LabelItem:
		kind := model.EdgeControl
		if nash {
			kind = model.EdgeEquil
		}
		return w.label(&labels.Label{Kind: kind, Line: it.Label.Token.Line}, it.Label, nil, 1, nil, obj)
	case *ast.DualItem:
		return w.label(&labels.Label{Kind: model.EdgeDual, Scheme: it.Scheme, Domain: it.Domain, Line: it.Token.Line},
			it.Label, nil, 1, nil, obj)
	case *ast.WeightedTerm:
		kind := model.EdgeValFn
		if it.Member == token.OBJFN {
			kind = model.EdgeObjFn
		}
		return w.label(&labels.Label{Kind: kind, Line: it.Token.Line}, it.Label, it.Coef, it.Sign, it.Var, obj)
	}
	return diagnostics.Bug("%T cannot run on the tree walker", item)
}

func (w *walker) symbolItem(it *ast.SymbolItem, obj vm.Value, vi bool) error {
	ref, err := w.read(it.Ref)
	if err != nil {
		return err
	}
	switch it.Ref.Symbol.Kind {
	case symbols.KindVar:
		if vi {
			return w.call(vm.API_ADD_VI_ZERO, obj, vm.NilVal(), ref)
		}
		return w.call(vm.API_ADD_VAR, obj, vm.NilVal(), ref)
	case symbols.KindEqu:
		if it.Pair != nil {
			pair, err := w.read(it.Pair)
			if err != nil {
				return err
			}
			return w.call(vm.API_ADD_VI_PAIR, obj, vm.NilVal(), ref, pair)
		}
		if err := w.call(vm.API_ADD_EQU, obj, vm.NilVal(), ref); err != nil {
			return err
		}
		if it.Flipped {
			return w.call(vm.API_MARK_FLIPPED, obj, vm.NilVal(), ref)
		}
		return nil
	}
	return diagnostics.NewError(diagnostics.ErrS002, it.Ref.Token,
		"%s %s cannot appear in a node body", it.Ref.Symbol.Kind, it.Ref.Symbol.Name)
}

// label records an arc with a single child for the resolver. A missing
// positive coefficient leaves the weight to its default.
func (w *walker) label(l *labels.Label, ref *ast.LabelRef, coef *ast.Coef, sign float64, vr *ast.SymbolRef, obj vm.Value) error {
	tuple, err := w.tuple(ref.Indices)
	if err != nil {
		return err
	}
	l.Basename = ref.Basename
	l.Tuple = tuple
	l.Parent = obj.Node()
	l.Var = model.NoIndex

	if coef != nil || sign < 0 {
		if l.Coef, err = w.coef(coef, sign); err != nil {
			return err
		}
		l.HasCoef = true
	}
	if vr != nil {
		r, err := w.read(vr)
		if err != nil {
			return err
		}
		idx, ok := r.AsRef().Single()
		if !ok {
			return diagnostics.NewError(diagnostics.ErrR001, vr.Token,
				"a weight needs a single variable, %s designates %d", vr.Symbol.Name, r.AsRef().Len())
		}
		l.Var = idx
	}
	w.sess.Pending.AddLabel(l)
	return nil
}

// coef evaluates sign*coef; an absent coefficient is 1.
func (w *walker) coef(c *ast.Coef, sign float64) (float64, error) {
	if c == nil {
		return sign, nil
	}
	if c.Param == nil {
		return sign * c.Value, nil
	}
	args, err := w.args(c.Param.Indices)
	if err != nil {
		return 0, err
	}
	v, err := w.sess.ReadParam(c.Param.Symbol.ID, args)
	if err != nil {
		return 0, vm.Locate(err, c.Token, w.ctx.FilePath, "")
	}
	return sign * v, nil
}

func (w *walker) result(ref *ast.SymbolRef) (vm.Value, error) {
	if ref == nil {
		return vm.NilVal(), nil
	}
	return w.read(ref)
}

// read selects the records of a variable or equation reference.
func (w *walker) read(ref *ast.SymbolRef) (vm.Value, error) {
	args, err := w.args(ref.Indices)
	if err != nil {
		return vm.Value{}, err
	}
	r, err := w.sess.ReadSymbol(ref.Symbol.ID, args)
	if err != nil {
		return vm.Value{}, vm.Locate(err, ref.Token, w.ctx.FilePath, "")
	}
	return vm.RefVal(r), nil
}

// args turns fixed elements and wildcards into read filters.
func (w *walker) args(indices []*ast.Index) ([]vm.Value, error) {
	args := make([]vm.Value, len(indices))
	for i, idx := range indices {
		switch idx.Kind {
		case ast.IndexElem:
			args[i] = vm.ElemVal(w.sess.Elem(idx.Label))
		case ast.IndexWildcard:
			args[i] = vm.NilVal()
		default:
			return nil, diagnostics.Bug("%s index %s on the tree walker", idx.Kind, idx.Name)
		}
	}
	return args, nil
}

// tuple resolves a label index list made of fixed elements.
func (w *walker) tuple(indices []*ast.Index) ([]int, error) {
	tuple := make([]int, len(indices))
	for i, idx := range indices {
		if idx.Kind != ast.IndexElem {
			return nil, diagnostics.Bug("%s index %s in a label on the tree walker", idx.Kind, idx.Name)
		}
		tuple[i] = w.sess.Elem(idx.Label)
	}
	return tuple, nil
}
