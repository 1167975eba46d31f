package dom

import (
	"fmt"

	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
)

// CrossCheck recomputes immediate dominators with gonum's Lengauer-Tarjan
// implementation and compares them with t.
func CrossCheck(g Graph, t *Tree) error {
	names := g.BlockNames()
	if len(names) != len(t.names) {
		return fmt.Errorf("%w: graph has %d blocks, tree has %d", ErrInvalidGraph, len(names), len(t.names))
	}
	if len(names) == 0 {
		return nil
	}

	dg := simple.NewDirectedGraph()
	for i := range names {
		dg.AddNode(simple.Node(i))
	}
	for i, name := range names {
		for _, s := range g.Succs(name) {
			j, ok := t.index[s]
			if !ok {
				return fmt.Errorf("%w: block %q has unknown successor %q", ErrInvalidGraph, name, s)
			}
			// Self loops and parallel edges do not affect dominance.
			if i == j || dg.HasEdgeFromTo(int64(i), int64(j)) {
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}

	lt := flow.Dominators(simple.Node(0), dg)
	for i, name := range names {
		want := -1
		if d := lt.DominatorOf(int64(i)); d != nil {
			want = int(d.ID())
		}
		if got := t.idom[i]; got != want {
			return fmt.Errorf("%w: idom(%q) is %s, Lengauer-Tarjan gives %s",
				ErrTreeInconsistency, name, t.nameOf(got), t.nameOf(want))
		}
	}
	return nil
}

func (t *Tree) nameOf(i int) string {
	if i < 0 {
		return "none"
	}
	return fmt.Sprintf("%q", t.names[i])
}
