package model

import "fmt"

func (g *Graph) openMP(id int) (*MathPrgm, error) {
	mp, err := g.MP(id)
	if err != nil {
		return nil, err
	}
	if mp.Finalized {
		return nil, fmt.Errorf("mp#%d: %w", id, ErrFinalized)
	}
	return mp, nil
}

// AddVar adds variable vi to mp.
func (g *Graph) AddVar(id, vi int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Vars = append(mp.Vars, vi)
	g.record("mp#%d var %d", id, vi)
	return nil
}

// AddEqu adds constraint ei to mp.
func (g *Graph) AddEqu(id, ei int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Equs = append(mp.Equs, ei)
	g.record("mp#%d equ %d", id, ei)
	return nil
}

// AddViZero adds a VI variable whose function is identically zero.
func (g *Graph) AddViZero(id, vi int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Vars = append(mp.Vars, vi)
	mp.ViZeroFunc = append(mp.ViZeroFunc, vi)
	g.record("mp#%d vizero %d", id, vi)
	return nil
}

// AddViPair adds equation ei as the VI function of variable vi.
func (g *Graph) AddViPair(id, ei, vi int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Vars = append(mp.Vars, vi)
	mp.Equs = append(mp.Equs, ei)
	mp.ViPairs = append(mp.ViPairs, ViPair{Equ: ei, Var: vi})
	g.record("mp#%d vipair %d %d", id, ei, vi)
	return nil
}

// SetObjVar sets the objective variable of mp.
func (g *Graph) SetObjVar(id, vi int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.ObjVar = vi
	g.record("mp#%d objvar %d", id, vi)
	return nil
}

// SetObjEqu sets the objective equation of mp.
func (g *Graph) SetObjEqu(id, ei int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.ObjEqu = ei
	g.record("mp#%d objequ %d", id, ei)
	return nil
}

// SetKind changes the problem type of mp.
func (g *Graph) SetKind(id int, t ProblemType) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Type = t
	g.record("mp#%d kind %s", id, t)
	return nil
}

// SetFeasibility marks mp as a feasibility-only problem.
func (g *Graph) SetFeasibility(id int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.FeasibilityOnly = true
	mp.Sense = SenseFeas
	g.record("mp#%d feasibility", id)
	return nil
}

// MarkFlipped records that constraint ei enters mp with flipped sign.
func (g *Graph) MarkFlipped(id, ei int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	mp.Flipped = append(mp.Flipped, ei)
	g.record("mp#%d flipped %d", id, ei)
	return nil
}

// FinalizeMP closes mp. An optimization node needs an objective unless it
// is feasibility-only; a composite-function node needs a checked
// parameter set.
func (g *Graph) FinalizeMP(id int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	switch mp.Type {
	case TypeOpt:
		if !mp.FeasibilityOnly && !mp.HasObjective() {
			return fmt.Errorf("mp#%d: %w", id, ErrNoObjective)
		}
	case TypeCCF:
		def, err := lookupOvf(mp.Func)
		if err != nil {
			return err
		}
		def.sync(mp.Params)
		if err := def.check(mp.Params, len(mp.Args)); err != nil {
			return fmt.Errorf("ccf %s: %w", mp.Func, err)
		}
	}
	mp.Finalized = true
	g.record("mp#%d finalize", id)
	return nil
}

// NewCCF creates a composite-function node implementing the library
// function name. resvar is its result variable, NoIndex when absent.
func (g *Graph) NewCCF(name string, resvar int) (*MathPrgm, error) {
	def, err := lookupOvf(name)
	if err != nil {
		return nil, err
	}
	mp := &MathPrgm{
		ID:     len(g.MPs),
		Sense:  SenseFeas,
		Type:   TypeCCF,
		ObjVar: resvar,
		ObjEqu: NoIndex,
		Func:   def.Name,
		Params: def.newParams(),
	}
	g.MPs = append(g.MPs, mp)
	g.record("new ccf mp#%d %s %d", mp.ID, def.Name, resvar)
	return mp, nil
}

// AddCCFArg adds argument variable vi to a composite-function node.
func (g *Graph) AddCCFArg(id, vi int) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	if mp.Type != TypeCCF {
		return fmt.Errorf("mp#%d is not a composite-function node: %w", id, ErrInvalidTarget)
	}
	mp.Args = append(mp.Args, vi)
	g.record("mp#%d ccfarg %d", id, vi)
	return nil
}

// SetCCFParam sets a parameter of a composite-function node.
func (g *Graph) SetCCFParam(id int, name string, value float64) error {
	mp, err := g.openMP(id)
	if err != nil {
		return err
	}
	if mp.Type != TypeCCF {
		return fmt.Errorf("mp#%d is not a composite-function node: %w", id, ErrInvalidTarget)
	}
	if err := setParam(mp.Params, mp.Func, name, value); err != nil {
		return err
	}
	g.record("mp#%d ccfparam %s %g", id, name, value)
	return nil
}

// AddMember adds mp to an equilibrium group.
func (g *Graph) AddMember(nashID, mpID int) error {
	n, err := g.Nash(nashID)
	if err != nil {
		return err
	}
	if _, err := g.MP(mpID); err != nil {
		return err
	}
	n.Members = append(n.Members, mpID)
	g.record("nash#%d member mp#%d", nashID, mpID)
	return nil
}

// FinalizeNash closes an equilibrium group. Members arrive later through
// equilibrium edges.
func (g *Graph) FinalizeNash(id int) error {
	n, err := g.Nash(id)
	if err != nil {
		return err
	}
	if n.Finalized {
		return fmt.Errorf("nash#%d: %w", id, ErrFinalized)
	}
	n.Finalized = true
	g.record("nash#%d finalize", id)
	return nil
}

// Finalize closes either kind of node.
func (g *Graph) Finalize(ref NodeRef) error {
	switch ref.Kind {
	case NodeMP:
		return g.FinalizeMP(ref.ID)
	case NodeNash:
		return g.FinalizeNash(ref.ID)
	}
	return ErrUnknownNode
}
