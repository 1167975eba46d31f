package dom

import (
	"fmt"
)

// Frontier holds the dominance frontier of every block.
type Frontier struct {
	names []string
	index map[string]int
	df    []bitset
}

// ComputeFrontier applies the two rules of Cytron et al. while visiting the
// dominator tree in post-order:
//
//	local: s ∈ succ(a), idom(s) ≠ a           ⇒ s ∈ DF(a)
//	up:    c ∈ children(a), w ∈ DF(c), idom(w) ≠ a ⇒ w ∈ DF(a)
//
// Children are complete before their parent absorbs them.
func ComputeFrontier(g Graph, t *Tree) (*Frontier, error) {
	n := len(t.names)
	f := &Frontier{
		names: t.names,
		index: t.index,
		df:    make([]bitset, n),
	}
	for i := range f.df {
		f.df[i] = newBitset(n)
	}

	for _, a := range t.postOrder() {
		for _, s := range g.Succs(t.names[a]) {
			si, ok := t.index[s]
			if !ok {
				return nil, fmt.Errorf("%w: block %q has unknown successor %q", ErrInvalidGraph, t.names[a], s)
			}
			if t.idom[si] != a {
				f.df[a].set(si)
			}
		}

		for _, c := range t.children[a] {
			for _, w := range f.df[c].members() {
				if t.idom[w] != a {
					f.df[a].set(w)
				}
			}
		}
	}

	return f, nil
}

// Of returns the frontier of a block in program order.
func (f *Frontier) Of(name string) []string {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	members := f.df[i].members()
	out := make([]string, len(members))
	for k, m := range members {
		out[k] = f.names[m]
	}
	return out
}

// Contains reports whether w is in the frontier of a.
func (f *Frontier) Contains(a, w string) bool {
	i, ok := f.index[a]
	j, ok2 := f.index[w]
	return ok && ok2 && f.df[i].has(j)
}

// Map returns every non-empty frontier keyed by block name.
func (f *Frontier) Map() map[string][]string {
	out := make(map[string][]string)
	for i, name := range f.names {
		if f.df[i].count() > 0 {
			out[name] = f.Of(name)
		}
	}
	return out
}
