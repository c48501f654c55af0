package ast

// Classification: a statement is compiled as soon as one of its indices is
// a free set, a local set or a loop element, or a condition or an
// aggregation appears anywhere in it.

func labelDeclDynamic(l *LabelDecl) bool {
	return l != nil && (l.Cond != nil || anyDynamic(l.Indices))
}

func refDynamic(r *SymbolRef) bool {
	return r != nil && anyDynamic(r.Indices)
}

func coefDynamic(c *Coef) bool {
	return c != nil && refDynamic(c.Param)
}

func itemsDynamic(items []BodyItem) bool {
	for _, it := range items {
		if itemDynamic(it) {
			return true
		}
	}
	return false
}

func itemDynamic(it BodyItem) bool {
	switch it := it.(type) {
	case *SymbolItem:
		return refDynamic(it.Ref) || refDynamic(it.Pair)
	case *LabelItem:
		return anyDynamic(it.Label.Indices)
	case *DualItem:
		return anyDynamic(it.Label.Indices)
	case *WeightedTerm:
		return coefDynamic(it.Coef) || refDynamic(it.Var) || anyDynamic(it.Label.Indices)
	case *OvfItem:
		return ovfDynamic(it.Ovf.Result, it.Ovf.Args, it.Ovf.Params)
	case *SumItem:
		return true
	}
	return false
}

func ovfDynamic(result *SymbolRef, args []*SymbolRef, params []*ParamAssign) bool {
	if refDynamic(result) {
		return true
	}
	for _, a := range args {
		if refDynamic(a) {
			return true
		}
	}
	for _, p := range params {
		if coefDynamic(p.Value) {
			return true
		}
	}
	return false
}

// Classify sets the Compiled flag of a declaration.
func Classify(s Statement) {
	switch s := s.(type) {
	case *NodeDecl:
		s.Compiled = labelDeclDynamic(s.Label) || refDynamic(s.Objective) || itemsDynamic(s.Body)
	case *NashDecl:
		s.Compiled = labelDeclDynamic(s.Label) || itemsDynamic(s.Members)
	case *CCFDecl:
		s.Compiled = labelDeclDynamic(s.Label) || ovfDynamic(s.Result, s.Args, s.Params)
	case *OvfDecl:
		s.Compiled = ovfDynamic(s.Result, s.Args, s.Params)
	}
}
