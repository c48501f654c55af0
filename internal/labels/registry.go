// Package labels collects node names and symbolic arcs during execution
// and turns them into typed graph edges once every node exists.
package labels

import (
	"strconv"
	"strings"

	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
)

// Entry is a declared node name.
type Entry struct {
	Basename string
	Dim      int
	Tuple    []int
	Node     model.NodeRef
}

// Registry maps (basename, dim, tuple) to nodes. Registering the same key
// twice is allowed; lookups of such keys report the ambiguity.
type Registry struct {
	entries []Entry
	counts  map[string]int
	names   map[string]bool // basename/dim pairs
}

func NewRegistry() *Registry {
	return &Registry{counts: make(map[string]int), names: make(map[string]bool)}
}

func nameKey(basename string, dim int) string {
	return strings.ToLower(basename) + "/" + strconv.Itoa(dim)
}

func entryKey(basename string, tuple []int) string {
	var sb strings.Builder
	sb.WriteString(nameKey(basename, len(tuple)))
	for _, v := range tuple {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// Register records that node is named basename(tuple).
func (r *Registry) Register(basename string, tuple []int, node model.NodeRef) {
	t := make([]int, len(tuple))
	copy(t, tuple)
	r.entries = append(r.entries, Entry{Basename: basename, Dim: len(t), Tuple: t, Node: node})
	r.counts[entryKey(basename, t)]++
	r.names[nameKey(basename, len(t))] = true
}

// Has reports whether some node was declared with this basename and
// dimension. The basename comparison ignores case.
func (r *Registry) Has(basename string, dim int) bool {
	return r.names[nameKey(basename, dim)]
}

// Find looks up basename(tuple). It returns the first exact match and the
// number of entries sharing the key; anything other than 1 is an error
// for the caller to report.
func (r *Registry) Find(basename string, tuple []int) (model.NodeRef, int) {
	n := r.counts[entryKey(basename, tuple)]
	if n == 0 {
		return model.NoNode, 0
	}
	for _, e := range r.entries {
		if e.Dim == len(tuple) && strings.EqualFold(e.Basename, basename) && equalTuple(e.Tuple, tuple) {
			return e.Node, n
		}
	}
	return model.NoNode, 0
}

func equalTuple(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) Entries() []Entry { return r.entries }

// NodeName formats a registered name, e.g. nOpt(i1).
func NodeName(dict symbols.Dictionary, basename string, tuple []int) string {
	return basename + symbols.FormatTuple(dict, tuple, false)
}

// LabelName formats a label reference for diagnostics, e.g.
// nOpt('missing').
func LabelName(dict symbols.Dictionary, basename string, tuple []int) string {
	return basename + symbols.FormatTuple(dict, tuple, true)
}
