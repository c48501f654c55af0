package vm

import (
	"github.com/xhub/reshop-sub001/internal/config"
	"github.com/xhub/reshop-sub001/internal/diagnostics"
)

// Globals is the append-only constant table of one interpretation pass:
// element ids, numbers, strings and label templates. Entries are never
// removed, so every chunk of the pass can address them by index.
type Globals struct {
	values []Value
	scalar map[Value]int
}

func newGlobals() *Globals {
	return &Globals{scalar: make(map[Value]int)}
}

// Add appends v and returns its index. Scalars and strings are shared.
func (g *Globals) Add(v Value) (int, error) {
	shared := v.Obj == nil || v.Type == ValStr
	if shared {
		if idx, ok := g.scalar[v]; ok {
			return idx, nil
		}
	}
	if len(g.values) >= config.MaxGlobals {
		return 0, diagnostics.Bug("global table full (%d entries)", config.MaxGlobals)
	}
	g.values = append(g.values, v)
	idx := len(g.values) - 1
	if shared {
		g.scalar[v] = idx
	}
	return idx, nil
}

// Get returns the value at idx.
func (g *Globals) Get(idx int) (Value, bool) {
	if idx < 0 || idx >= len(g.values) {
		return Value{}, false
	}
	return g.values[idx], true
}

// Len returns the number of globals.
func (g *Globals) Len() int {
	return len(g.values)
}
