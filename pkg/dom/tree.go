package dom

import (
	"fmt"

	"github.com/oleiade/lane"
)

// Tree is the dominator tree of the blocks reachable from the entry.
type Tree struct {
	Root string

	names    []string
	index    map[string]int
	idom     []int
	children [][]int
}

// BuildTree extracts immediate dominators from dominator sets. The
// immediate dominator of b is the strict dominator of b with the largest
// dominator set; strict dominators of b form a chain, so their set sizes
// are pairwise distinct and the idom's set is exactly dom(b) minus b.
func BuildTree(s *Sets) (*Tree, error) {
	n := len(s.names)
	t := &Tree{
		names:    s.names,
		index:    s.index,
		idom:     make([]int, n),
		children: make([][]int, n),
	}
	if n == 0 {
		return t, nil
	}
	t.Root = s.names[0]

	strict := newBitset(n)
	for i := range s.names {
		t.idom[i] = -1
		if i == 0 || !s.reachable[i] {
			continue
		}

		best, bestSize, tie := -1, -1, false
		for _, d := range s.dom[i].members() {
			if d == i {
				continue
			}
			size := s.dom[d].count()
			switch {
			case size > bestSize:
				best, bestSize, tie = d, size, false
			case size == bestSize:
				tie = true
			}
		}

		if best < 0 {
			return nil, fmt.Errorf("%w: block %q has no strict dominator", ErrTreeInconsistency, s.names[i])
		}
		if tie {
			return nil, fmt.Errorf("%w: block %q has several candidate immediate dominators of size %d",
				ErrTreeInconsistency, s.names[i], bestSize)
		}

		strict.copyFrom(s.dom[i])
		strict.clear(i)
		if !strict.equal(s.dom[best]) {
			return nil, fmt.Errorf("%w: dominators of %q are not dom(%q) plus itself",
				ErrTreeInconsistency, s.names[i], s.names[best])
		}

		t.idom[i] = best
		t.children[best] = append(t.children[best], i)
	}

	return t, nil
}

// Idom returns the immediate dominator of a block. It reports false for the
// root and for unreachable blocks.
func (t *Tree) Idom(name string) (string, bool) {
	i, ok := t.index[name]
	if !ok || t.idom[i] < 0 {
		return "", false
	}
	return t.names[t.idom[i]], true
}

// Children returns the blocks immediately dominated by name, in program order.
func (t *Tree) Children(name string) []string {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(t.children[i]))
	for k, c := range t.children[i] {
		out[k] = t.names[c]
	}
	return out
}

// IdomMap returns the immediate dominator of every non-root reachable block.
func (t *Tree) IdomMap() map[string]string {
	out := make(map[string]string, len(t.names))
	for i, d := range t.idom {
		if d >= 0 {
			out[t.names[i]] = t.names[d]
		}
	}
	return out
}

// ChildrenMap returns the children of every block that has any.
func (t *Tree) ChildrenMap() map[string][]string {
	out := make(map[string][]string)
	for i, name := range t.names {
		if len(t.children[i]) > 0 {
			out[name] = t.Children(name)
		}
	}
	return out
}

// PathToRoot returns name followed by its chain of immediate dominators.
func (t *Tree) PathToRoot(name string) []string {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	var path []string
	for ; i >= 0; i = t.idom[i] {
		path = append(path, t.names[i])
	}
	return path
}

// PostOrder returns the reachable blocks with every child before its parent.
func (t *Tree) PostOrder() []string {
	order := t.postOrder()
	out := make([]string, len(order))
	for k, i := range order {
		out[k] = t.names[i]
	}
	return out
}

type postOrderFrame struct {
	node int
	next int
}

// postOrder walks the tree with an explicit stack so deep trees do not
// exhaust the goroutine stack.
func (t *Tree) postOrder() []int {
	if len(t.names) == 0 {
		return nil
	}

	var order []int
	st := lane.NewStack()
	st.Push(&postOrderFrame{node: 0})

	for !st.Empty() {
		f := st.Head().(*postOrderFrame)
		if f.next < len(t.children[f.node]) {
			c := t.children[f.node][f.next]
			f.next++
			st.Push(&postOrderFrame{node: c})
			continue
		}
		st.Pop()
		order = append(order, f.node)
	}
	return order
}
