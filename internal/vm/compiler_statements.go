package vm

import (
	"github.com/xhub/reshop-sub001/internal/ast"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

// NodeSense maps the keyword of a node declaration to its sense.
func NodeSense(kind token.TokenType) model.Sense {
	switch kind {
	case token.MIN:
		return model.SenseMin
	case token.MAX:
		return model.SenseMax
	}
	return model.SenseFeas
}

// bodyCtx is what the items of a body need to know about their node.
type bodyCtx struct {
	vi     bool
	nash   bool
	protos map[ast.BodyItem]int // hoisted arc prototypes by item
}

func labelIndices(l *ast.LabelDecl) []*ast.Index {
	if l == nil {
		return nil
	}
	return l.Indices
}

func labelCond(l *ast.LabelDecl) ast.Condition {
	if l == nil {
		return nil
	}
	return l.Cond
}

// declare compiles a declaration whose label may carry free sets: emit
// runs once per element of the implicit loop that passes the label
// condition. prelude runs before the loop opens.
func (c *Compiler) declare(tok token.Token, label *ast.LabelDecl, prelude func(its []*iterator) error, emit func() error) error {
	line := tok.Line
	c.beginScope()
	its, err := c.freeIterators(labelIndices(label))
	if err != nil {
		return err
	}
	if prelude != nil {
		if err := prelude(its); err != nil {
			return err
		}
	}
	err = c.loop(its, tok, func() error {
		return c.guarded(labelCond(label), line, emit)
	})
	if err != nil {
		return err
	}
	return c.endScope(line)
}

// compileNode compiles a min, max, vi or feasibility declaration.
func (c *Compiler) compileNode(n *ast.NodeDecl) error {
	ctx := bodyCtx{vi: n.Kind == token.VI}
	prelude := func(its []*iterator) error {
		if len(its) == 0 {
			return nil
		}
		protos, err := c.hoistArcs(n.Body, its)
		ctx.protos = protos
		return err
	}
	return c.declare(n.Token, n.Label, prelude, func() error {
		return c.emitNode(n, ctx)
	})
}

func (c *Compiler) emitNode(n *ast.NodeDecl, ctx bodyCtx) error {
	line := n.Token.Line
	if err := c.emitConstant(IntVal(int64(NodeSense(n.Kind))), line); err != nil {
		return err
	}
	c.emitOp(OP_NEW_OBJ, line, int(CTOR_NEW_MP), 1)

	switch n.Kind {
	case token.VI:
		if err := c.emitConstant(IntVal(int64(model.TypeVI)), line); err != nil {
			return err
		}
		c.emitCall(API_SET_KIND, 1, n.Token)
	case token.FEASIBILITY:
		c.emitCall(API_SET_FEASIBILITY, 0, n.Token)
	}

	if n.Label != nil {
		if err := c.register(n.Label); err != nil {
			return err
		}
	}

	if obj := n.Objective; obj != nil {
		if err := c.readSymbol(obj); err != nil {
			return err
		}
		switch obj.Symbol.Kind {
		case symbols.KindVar:
			c.emitCall(API_SET_OBJVAR, 1, obj.Token)
		case symbols.KindEqu:
			c.emitCall(API_SET_OBJEQU, 1, obj.Token)
		default:
			return diagnostics.NewError(diagnostics.ErrS002, obj.Token,
				"objective %s is a %s, want a variable or an equation", obj.Symbol.Name, obj.Symbol.Kind)
		}
	}

	if err := c.body(n.Body, ctx); err != nil {
		return err
	}
	c.emitCall(API_FINALIZE, 0, n.Token)
	return nil
}

// compileNash compiles an equilibrium declaration.
func (c *Compiler) compileNash(n *ast.NashDecl) error {
	return c.declare(n.Token, n.Label, nil, func() error {
		line := n.Token.Line
		c.emitOp(OP_NEW_OBJ, line, int(CTOR_NEW_NASH), 0)
		if n.Label != nil {
			if err := c.register(n.Label); err != nil {
				return err
			}
		}
		if err := c.body(n.Members, bodyCtx{nash: true}); err != nil {
			return err
		}
		c.emitCall(API_FINALIZE, 0, n.Token)
		return nil
	})
}

// compileCCF compiles a composite-function node.
func (c *Compiler) compileCCF(n *ast.CCFDecl) error {
	return c.declare(n.Token, n.Label, nil, func() error {
		line := n.Token.Line
		if err := c.emitConstant(StrVal(n.Func), line); err != nil {
			return err
		}
		if err := c.readResult(n.Result, line); err != nil {
			return err
		}
		c.emitOp(OP_NEW_OBJ, line, int(CTOR_NEW_CCF), 2)
		if n.Label != nil {
			if err := c.register(n.Label); err != nil {
				return err
			}
		}
		for _, arg := range n.Args {
			if err := c.readSymbol(arg); err != nil {
				return err
			}
			c.emitCall(API_CCF_ADD_ARG, 1, arg.Token)
		}
		for _, p := range n.Params {
			if err := c.pushParam(p); err != nil {
				return err
			}
			c.emitCall(API_CCF_SET_PARAM, 2, p.Token)
		}
		c.emitCall(API_FINALIZE, 0, n.Token)
		return nil
	})
}

// compileOvf compiles an OVF definition. A nested definition is attached
// to the node in progress.
func (c *Compiler) compileOvf(o *ast.OvfDecl, nested bool) error {
	line := o.Token.Line
	if err := c.emitConstant(StrVal(o.Func), line); err != nil {
		return err
	}
	if err := c.readResult(o.Result, line); err != nil {
		return err
	}
	c.emitOp(OP_NEW_OBJ, line, int(CTOR_NEW_OVF), 2)
	for _, arg := range o.Args {
		if err := c.readSymbol(arg); err != nil {
			return err
		}
		c.emitCall(API_OVF_ADD_ARG, 1, arg.Token)
	}
	for _, p := range o.Params {
		if err := c.pushParam(p); err != nil {
			return err
		}
		c.emitCall(API_OVF_SET_PARAM, 2, p.Token)
	}
	c.emitCall(API_OVF_SYNC_PARAMS, 0, o.Token)
	c.emitCall(API_OVF_CHECK, 0, o.Token)
	if nested {
		c.emitCall(API_ATTACH_OVF, 0, o.Token)
	}
	c.emitCall(API_OVF_FINALIZE, 0, o.Token)
	return nil
}

func (c *Compiler) readResult(ref *ast.SymbolRef, line int) error {
	if ref == nil {
		c.emit(OP_NIL, line)
		return nil
	}
	return c.readSymbol(ref)
}

// pushParam pushes the name and the value of a parameter assignment.
func (c *Compiler) pushParam(p *ast.ParamAssign) error {
	if err := c.emitConstant(StrVal(p.Name), p.Token.Line); err != nil {
		return err
	}
	return c.pushCoef(p.Value, 1, p.Token.Line, true)
}

// body compiles the items of a node or the members of an equilibrium.
func (c *Compiler) body(items []ast.BodyItem, ctx bodyCtx) error {
	for _, item := range items {
		if err := c.bodyItem(item, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) bodyItem(item ast.BodyItem, ctx bodyCtx) error {
	switch it := item.(type) {
	case *ast.SymbolItem:
		return c.symbolItem(it, ctx)
	case *ast.OvfItem:
		return c.compileOvf(it.Ovf, true)
	case *ast.SumItem:
		return c.compileSum(it, ctx)
	}

	spec, ok := arcSpecOf(item, ctx.nash)
	if !ok {
		return diagnostics.Bug("unexpected body item %T", item)
	}
	if proto, ok := ctx.protos[item]; ok {
		return c.dupArc(proto, spec.tok.Line)
	}
	return c.inlineArc(spec)
}

func (c *Compiler) symbolItem(it *ast.SymbolItem, ctx bodyCtx) error {
	ref := it.Ref
	switch ref.Symbol.Kind {
	case symbols.KindVar:
		if err := c.readSymbol(ref); err != nil {
			return err
		}
		if ctx.vi {
			c.emitCall(API_ADD_VI_ZERO, 1, ref.Token)
		} else {
			c.emitCall(API_ADD_VAR, 1, ref.Token)
		}
		return nil

	case symbols.KindEqu:
		if err := c.readSymbol(ref); err != nil {
			return err
		}
		if it.Pair != nil {
			if err := c.readSymbol(it.Pair); err != nil {
				return err
			}
			c.emitCall(API_ADD_VI_PAIR, 2, ref.Token)
			return nil
		}
		c.emitCall(API_ADD_EQU, 1, ref.Token)
		if it.Flipped {
			if err := c.readSymbol(ref); err != nil {
				return err
			}
			c.emitCall(API_MARK_FLIPPED, 1, ref.Token)
		}
		return nil
	}
	return diagnostics.NewError(diagnostics.ErrS002, ref.Token,
		"%s %s cannot appear in a node body", ref.Symbol.Kind, ref.Symbol.Name)
}

// pushCoef pushes a coefficient: nil when absent and positive, the signed
// constant, or a parameter read. Parameter assignments always push a
// number.
func (c *Compiler) pushCoef(coef *ast.Coef, sign float64, line int, required bool) error {
	if coef == nil {
		if sign >= 0 && !required {
			c.emit(OP_NIL, line)
			return nil
		}
		return c.emitConstant(FloatVal(sign), line)
	}
	if coef.Param != nil {
		if err := c.readParam(coef.Param); err != nil {
			return err
		}
		if sign < 0 {
			c.emit(OP_NEGATE, line)
		}
		return nil
	}
	return c.emitConstant(FloatVal(sign*coef.Value), line)
}
