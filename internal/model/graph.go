// Package model holds the EMPDAG: math-program nodes, equilibrium groups,
// OVF definitions and the typed edges between them.
//
// Every mutation appends a canonical line to Graph.Journal. Two ways of
// building the same model must produce the same journal.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type NodeKind int

const (
	NodeNone NodeKind = iota
	NodeMP
	NodeNash
)

// NodeRef designates a math program or an equilibrium group.
type NodeRef struct {
	Kind NodeKind
	ID   int
}

// NoNode is the zero reference.
var NoNode = NodeRef{}

func MPRef(id int) NodeRef   { return NodeRef{Kind: NodeMP, ID: id} }
func NashRef(id int) NodeRef { return NodeRef{Kind: NodeNash, ID: id} }

func (r NodeRef) Valid() bool { return r.Kind != NodeNone }

func (r NodeRef) String() string {
	switch r.Kind {
	case NodeMP:
		return fmt.Sprintf("mp#%d", r.ID)
	case NodeNash:
		return fmt.Sprintf("nash#%d", r.ID)
	}
	return "none"
}

type Sense int

const (
	SenseMin Sense = iota
	SenseMax
	SenseFeas
)

func (s Sense) String() string {
	switch s {
	case SenseMin:
		return "min"
	case SenseMax:
		return "max"
	}
	return "feas"
}

type ProblemType int

const (
	TypeOpt ProblemType = iota
	TypeVI
	TypeCCF
)

func (t ProblemType) String() string {
	switch t {
	case TypeVI:
		return "vi"
	case TypeCCF:
		return "ccf"
	}
	return "opt"
}

// NoIndex marks an absent objective variable or equation.
const NoIndex = -1

var (
	ErrFinalized     = errors.New("node already finalized")
	ErrNotFinalized  = errors.New("node not finalized")
	ErrUnknownNode   = errors.New("unknown node")
	ErrNoObjective   = errors.New("optimization node without objective")
	ErrUnknownOvf    = errors.New("unknown OVF function")
	ErrUnknownParam  = errors.New("unknown OVF parameter")
	ErrMissingParam  = errors.New("OVF parameter not set")
	ErrNoArgs        = errors.New("OVF without arguments")
	ErrInvalidTarget = errors.New("invalid edge target")
)

// ViPair matches an equation with the variable it is complementary to.
type ViPair struct {
	Equ int
	Var int
}

// MathPrgm is an optimization, VI or composite-function node.
type MathPrgm struct {
	ID              int
	Name            string
	Sense           Sense
	Type            ProblemType
	FeasibilityOnly bool
	ObjVar          int
	ObjEqu          int
	Vars            []int
	Equs            []int
	ViPairs         []ViPair
	ViZeroFunc      []int
	Flipped         []int
	Ovfs            []int // attached OVF definitions

	// Composite-function nodes only.
	Func   string
	Args   []int
	Params []Param

	Finalized bool
}

// HasObjective reports whether a value-function edge can point at mp.
func (mp *MathPrgm) HasObjective() bool {
	return mp.ObjVar != NoIndex || mp.ObjEqu != NoIndex
}

// Nash is an equilibrium group.
type Nash struct {
	ID        int
	Name      string
	Members   []int
	Finalized bool
}

// Graph is the model under construction for one interpretation pass.
type Graph struct {
	ID          uuid.UUID
	MPs         []*MathPrgm
	Nashs       []*Nash
	Ovfs        []*Ovf
	Edges       []Edge
	Root        NodeRef
	DualBuckets [2][2][]int
	Journal     []string
}

// NewGraph creates an empty graph with a fresh id.
func NewGraph() *Graph {
	return &Graph{ID: uuid.New()}
}

func (g *Graph) record(format string, args ...interface{}) {
	g.Journal = append(g.Journal, fmt.Sprintf(format, args...))
}

// MP returns the math program with the given id.
func (g *Graph) MP(id int) (*MathPrgm, error) {
	if id < 0 || id >= len(g.MPs) {
		return nil, fmt.Errorf("mp#%d: %w", id, ErrUnknownNode)
	}
	return g.MPs[id], nil
}

// Nash returns the equilibrium group with the given id.
func (g *Graph) Nash(id int) (*Nash, error) {
	if id < 0 || id >= len(g.Nashs) {
		return nil, fmt.Errorf("nash#%d: %w", id, ErrUnknownNode)
	}
	return g.Nashs[id], nil
}

// Exists reports whether ref designates a node of g.
func (g *Graph) Exists(ref NodeRef) bool {
	switch ref.Kind {
	case NodeMP:
		return ref.ID >= 0 && ref.ID < len(g.MPs)
	case NodeNash:
		return ref.ID >= 0 && ref.ID < len(g.Nashs)
	}
	return false
}

// NewMP creates a math-program node.
func (g *Graph) NewMP(sense Sense) *MathPrgm {
	mp := &MathPrgm{ID: len(g.MPs), Sense: sense, ObjVar: NoIndex, ObjEqu: NoIndex}
	g.MPs = append(g.MPs, mp)
	g.record("new mp#%d %s", mp.ID, sense)
	return mp
}

// NewNash creates an equilibrium group.
func (g *Graph) NewNash() *Nash {
	n := &Nash{ID: len(g.Nashs)}
	g.Nashs = append(g.Nashs, n)
	g.record("new nash#%d", n.ID)
	return n
}

// SetName records the registry name of a node.
func (g *Graph) SetName(ref NodeRef, name string) error {
	switch ref.Kind {
	case NodeMP:
		mp, err := g.MP(ref.ID)
		if err != nil {
			return err
		}
		mp.Name = name
	case NodeNash:
		n, err := g.Nash(ref.ID)
		if err != nil {
			return err
		}
		n.Name = name
	default:
		return ErrUnknownNode
	}
	g.record("name %s %s", ref, name)
	return nil
}

// NodeName returns the registry name of ref, or its numeric form.
func (g *Graph) NodeName(ref NodeRef) string {
	switch ref.Kind {
	case NodeMP:
		if mp, err := g.MP(ref.ID); err == nil && mp.Name != "" {
			return mp.Name
		}
	case NodeNash:
		if n, err := g.Nash(ref.ID); err == nil && n.Name != "" {
			return n.Name
		}
	}
	return ref.String()
}

// Nodes lists every node, math programs first.
func (g *Graph) Nodes() []NodeRef {
	out := make([]NodeRef, 0, len(g.MPs)+len(g.Nashs))
	for _, mp := range g.MPs {
		out = append(out, MPRef(mp.ID))
	}
	for _, n := range g.Nashs {
		out = append(out, NashRef(n.ID))
	}
	return out
}

// SetRoot designates the root of the graph.
func (g *Graph) SetRoot(ref NodeRef) error {
	if !g.Exists(ref) {
		return fmt.Errorf("root %s: %w", ref, ErrUnknownNode)
	}
	g.Root = ref
	g.record("root %s", ref)
	return nil
}

// Empty reports whether the graph has no node.
func (g *Graph) Empty() bool {
	return len(g.MPs) == 0 && len(g.Nashs) == 0
}

// String is a human-readable summary, one line per node and edge.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s: %d mp, %d nash, %d ovf, %d edges\n",
		g.ID, len(g.MPs), len(g.Nashs), len(g.Ovfs), len(g.Edges))
	for _, mp := range g.MPs {
		fmt.Fprintf(&sb, "  %s %s %s vars=%d equs=%d", g.NodeName(MPRef(mp.ID)), mp.Type, mp.Sense, len(mp.Vars), len(mp.Equs))
		if mp.FeasibilityOnly {
			sb.WriteString(" feasibility")
		}
		if mp.Type == TypeCCF {
			fmt.Fprintf(&sb, " func=%s args=%d", mp.Func, len(mp.Args))
		}
		sb.WriteByte('\n')
	}
	for _, n := range g.Nashs {
		fmt.Fprintf(&sb, "  %s nash members=%d\n", g.NodeName(NashRef(n.ID)), len(n.Members))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  %s -%s-> %s\n", g.NodeName(e.From), e.Kind, g.NodeName(e.To))
	}
	if g.Root.Valid() {
		fmt.Fprintf(&sb, "  root %s\n", g.NodeName(g.Root))
	}
	return sb.String()
}
