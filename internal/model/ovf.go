package model

import (
	"fmt"
	"sort"
	"strings"
)

// Param is one named parameter of an OVF or composite function.
type Param struct {
	Name  string
	Value float64
	Set   bool
}

type paramDef struct {
	name       string
	def        float64
	hasDefault bool
}

// OvfDef describes a library function.
type OvfDef struct {
	Name   string
	params []paramDef
}

var ovfLibrary = map[string]*OvfDef{
	"l1":           {Name: "l1"},
	"l2":           {Name: "l2"},
	"huber":        {Name: "huber", params: []paramDef{{"kappa", 1, true}}},
	"hinge":        {Name: "hinge", params: []paramDef{{"epsilon", 0, true}}},
	"vapnik":       {Name: "vapnik", params: []paramDef{{"epsilon", 0, true}}},
	"elastic_net":  {Name: "elastic_net", params: []paramDef{{name: "lambda"}}},
	"soft_thresh":  {Name: "soft_thresh", params: []paramDef{{name: "lambda"}}},
	"sum_pos_part": {Name: "sum_pos_part"},
}

// OvfNames lists the library functions in alphabetical order.
func OvfNames() []string {
	names := make([]string, 0, len(ovfLibrary))
	for name := range ovfLibrary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupOvf(name string) (*OvfDef, error) {
	def, ok := ovfLibrary[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownOvf)
	}
	return def, nil
}

func (d *OvfDef) newParams() []Param {
	params := make([]Param, len(d.params))
	for i, p := range d.params {
		params[i] = Param{Name: p.name}
	}
	return params
}

// sync fills unset parameters that have a default.
func (d *OvfDef) sync(params []Param) {
	for i, p := range d.params {
		if !params[i].Set && p.hasDefault {
			params[i].Value = p.def
			params[i].Set = true
		}
	}
}

func (d *OvfDef) check(params []Param, nargs int) error {
	for _, p := range params {
		if !p.Set {
			return fmt.Errorf("%s: %w", p.Name, ErrMissingParam)
		}
	}
	if nargs == 0 {
		return ErrNoArgs
	}
	return nil
}

func setParam(params []Param, fn, name string, value float64) error {
	for i := range params {
		if strings.EqualFold(params[i].Name, name) {
			params[i].Value = value
			params[i].Set = true
			return nil
		}
	}
	return fmt.Errorf("%s of %s: %w", name, fn, ErrUnknownParam)
}

// Ovf is an objective-value-function definition: resvar = fn(args).
type Ovf struct {
	ID        int
	Func      string
	ResVar    int
	Args      []int
	Params    []Param
	Parent    NodeRef
	Checked   bool
	Finalized bool
}

// Param returns the value of a parameter.
func (o *Ovf) Param(name string) (float64, bool) {
	for _, p := range o.Params {
		if strings.EqualFold(p.Name, name) {
			return p.Value, p.Set
		}
	}
	return 0, false
}

// NewOvf creates an OVF definition for library function name.
func (g *Graph) NewOvf(name string, resvar int) (*Ovf, error) {
	def, err := lookupOvf(name)
	if err != nil {
		return nil, err
	}
	o := &Ovf{ID: len(g.Ovfs), Func: def.Name, ResVar: resvar, Params: def.newParams()}
	g.Ovfs = append(g.Ovfs, o)
	g.record("new ovf#%d %s %d", o.ID, def.Name, resvar)
	return o, nil
}

func (g *Graph) openOvf(id int) (*Ovf, error) {
	if id < 0 || id >= len(g.Ovfs) {
		return nil, fmt.Errorf("ovf#%d: %w", id, ErrUnknownNode)
	}
	o := g.Ovfs[id]
	if o.Finalized {
		return nil, fmt.Errorf("ovf#%d: %w", id, ErrFinalized)
	}
	return o, nil
}

// OvfAddArg adds argument variable vi.
func (g *Graph) OvfAddArg(id, vi int) error {
	o, err := g.openOvf(id)
	if err != nil {
		return err
	}
	o.Args = append(o.Args, vi)
	g.record("ovf#%d arg %d", id, vi)
	return nil
}

// OvfSetParam sets a named parameter.
func (g *Graph) OvfSetParam(id int, name string, value float64) error {
	o, err := g.openOvf(id)
	if err != nil {
		return err
	}
	if err := setParam(o.Params, o.Func, name, value); err != nil {
		return err
	}
	g.record("ovf#%d param %s %g", id, name, value)
	return nil
}

// OvfSyncParams fills unset parameters from their defaults.
func (g *Graph) OvfSyncParams(id int) error {
	o, err := g.openOvf(id)
	if err != nil {
		return err
	}
	def, err := lookupOvf(o.Func)
	if err != nil {
		return err
	}
	def.sync(o.Params)
	g.record("ovf#%d sync", id)
	return nil
}

// OvfCheck verifies that every parameter is set and there is an argument.
func (g *Graph) OvfCheck(id int) error {
	o, err := g.openOvf(id)
	if err != nil {
		return err
	}
	def, err := lookupOvf(o.Func)
	if err != nil {
		return err
	}
	if err := def.check(o.Params, len(o.Args)); err != nil {
		return fmt.Errorf("ovf %s: %w", o.Func, err)
	}
	o.Checked = true
	g.record("ovf#%d check", id)
	return nil
}

// OvfFinalize closes a checked OVF definition.
func (g *Graph) OvfFinalize(id int) error {
	o, err := g.openOvf(id)
	if err != nil {
		return err
	}
	if !o.Checked {
		return fmt.Errorf("ovf#%d: %w", id, ErrNotFinalized)
	}
	o.Finalized = true
	g.record("ovf#%d finalize", id)
	return nil
}

// AttachOvf makes mp the owner of an OVF definition.
func (g *Graph) AttachOvf(mpID, ovfID int) error {
	mp, err := g.openMP(mpID)
	if err != nil {
		return err
	}
	if ovfID < 0 || ovfID >= len(g.Ovfs) {
		return fmt.Errorf("ovf#%d: %w", ovfID, ErrUnknownNode)
	}
	g.Ovfs[ovfID].Parent = MPRef(mpID)
	mp.Ovfs = append(mp.Ovfs, ovfID)
	g.record("mp#%d attach ovf#%d", mpID, ovfID)
	return nil
}
