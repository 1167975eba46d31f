package dom

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGraph is a Graph built from an edge list; names keep first-seen order
// unless given explicitly.
type testGraph struct {
	names []string
	succs map[string][]string
	preds map[string][]string
}

func newTestGraph(names []string, edges ...string) *testGraph {
	g := &testGraph{
		names: names,
		succs: make(map[string][]string),
		preds: make(map[string][]string),
	}
	for _, e := range edges {
		parts := strings.Split(e, "->")
		a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		g.succs[a] = append(g.succs[a], b)
		g.preds[b] = append(g.preds[b], a)
	}
	return g
}

func (g *testGraph) BlockNames() []string       { return g.names }
func (g *testGraph) Succs(name string) []string { return g.succs[name] }
func (g *testGraph) Preds(name string) []string { return g.preds[name] }

func diamondLoopGraph() *testGraph {
	return newTestGraph(
		[]string{"entry", "then", "else", "merge", "loop_header", "loop_body", "loop_exit"},
		"entry -> then",
		"entry -> else",
		"then -> merge",
		"else -> merge",
		"merge -> loop_header",
		"loop_header -> loop_body",
		"loop_header -> loop_exit",
		"loop_body -> loop_header",
	)
}

func TestDiamondLoop(t *testing.T) {
	g := diamondLoopGraph()
	info, err := Analyze(g)
	require.NoError(t, err)

	assert.Equal(t, []string{"entry"}, info.Sets.Of("entry"))
	assert.Equal(t, []string{"entry", "merge", "loop_header", "loop_body"}, info.Sets.Of("loop_body"))

	idom := func(name string) string {
		d, ok := info.Tree.Idom(name)
		require.True(t, ok, "idom(%s)", name)
		return d
	}
	assert.Equal(t, "entry", idom("then"))
	assert.Equal(t, "entry", idom("else"))
	assert.Equal(t, "entry", idom("merge"))
	assert.Equal(t, "merge", idom("loop_header"))
	assert.Equal(t, "loop_header", idom("loop_body"))
	assert.Equal(t, "loop_header", idom("loop_exit"))

	_, ok := info.Tree.Idom("entry")
	assert.False(t, ok)
	assert.Equal(t, "entry", info.Tree.Root)
	assert.Equal(t, []string{"then", "else", "merge"}, info.Tree.Children("entry"))
	assert.Equal(t, []string{"loop_body", "loop_exit"}, info.Tree.Children("loop_header"))

	assert.Equal(t, []string{"merge"}, info.Frontier.Of("then"))
	assert.Equal(t, []string{"merge"}, info.Frontier.Of("else"))
	assert.Equal(t, []string{"loop_header"}, info.Frontier.Of("loop_body"))
	// The back edge from loop_body puts the header in its own frontier.
	assert.Equal(t, []string{"loop_header"}, info.Frontier.Of("loop_header"))
	assert.Equal(t, 3, info.Sets.Complexity(g))
	assert.Empty(t, info.Frontier.Of("merge"))
	assert.Empty(t, info.Frontier.Of("entry"))
	assert.Empty(t, info.Frontier.Of("loop_exit"))

	require.NoError(t, CrossCheck(g, info.Tree))
}

func TestStraightLine(t *testing.T) {
	g := newTestGraph([]string{"a", "b", "c"}, "a -> b", "b -> c")
	info, err := Analyze(g)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"b": "a", "c": "b"}, info.Tree.IdomMap())
	assert.Equal(t, []string{"c", "b", "a"}, info.Tree.PostOrder())
	assert.Empty(t, info.Frontier.Map())
}

func TestSingleBlock(t *testing.T) {
	info, err := Analyze(newTestGraph([]string{"only"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, info.Sets.Of("only"))
	assert.Empty(t, info.Tree.IdomMap())
	assert.Empty(t, info.Frontier.Of("only"))
	assert.Equal(t, 1, info.Sets.Complexity(newTestGraph([]string{"only"})))
}

func TestEmptyGraph(t *testing.T) {
	g := newTestGraph(nil)
	info, err := Analyze(g)
	require.NoError(t, err)
	assert.Equal(t, "", info.Tree.Root)
	assert.Empty(t, info.Sets.Map())
	assert.Empty(t, info.Tree.PostOrder())
	assert.Equal(t, 0, info.Sets.Complexity(g))
	assert.NoError(t, CrossCheck(g, info.Tree))
}

func TestUnreachableBlocks(t *testing.T) {
	g := newTestGraph(
		[]string{"entry", "a", "u", "v", "w"},
		"entry -> a",
		"u -> a",
		"v -> w",
		"w -> v",
	)
	info, err := Analyze(g)
	require.NoError(t, err)

	assert.Equal(t, []string{"u"}, info.Sets.Of("u"), "zero-predecessor block")
	assert.Equal(t, []string{"v"}, info.Sets.Of("v"))
	assert.Equal(t, []string{"w"}, info.Sets.Of("w"))
	assert.False(t, info.Sets.Reachable("u"))

	// The unreachable predecessor u does not weaken dom(a).
	assert.Equal(t, []string{"entry", "a"}, info.Sets.Of("a"))

	_, ok := info.Tree.Idom("u")
	assert.False(t, ok)
	assert.NotContains(t, info.Tree.PostOrder(), "u")
	assert.Empty(t, info.Frontier.Of("u"))
	assert.Equal(t, 1, info.Sets.Complexity(g), "unreachable edges are not counted")
	require.NoError(t, CrossCheck(g, info.Tree))
}

func TestEntryWithPredecessors(t *testing.T) {
	g := newTestGraph([]string{"entry", "a", "b"}, "entry -> a", "a -> b", "b -> entry", "a -> a")
	info, err := Analyze(g)
	require.NoError(t, err)

	assert.Equal(t, []string{"entry"}, info.Sets.Of("entry"))
	assert.Equal(t, []string{"entry"}, info.Frontier.Of("b"))
	assert.Equal(t, []string{"entry", "a"}, info.Frontier.Of("a"))
	require.NoError(t, CrossCheck(g, info.Tree))
}

func TestInvalidGraph(t *testing.T) {
	_, err := ComputeDominators(newTestGraph([]string{"a", "a"}))
	assert.ErrorIs(t, err, ErrInvalidGraph)

	_, err = ComputeDominators(newTestGraph([]string{"a"}, "a -> ghost"))
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func testSets(reachable []bool, doms ...[]int) *Sets {
	n := len(doms)
	s := &Sets{
		names:     make([]string, n),
		index:     make(map[string]int, n),
		dom:       make([]bitset, n),
		reachable: reachable,
	}
	for i, members := range doms {
		s.names[i] = string(rune('a' + i))
		s.index[s.names[i]] = i
		s.dom[i] = newBitset(n)
		for _, m := range members {
			s.dom[i].set(m)
		}
	}
	return s
}

func TestBuildTreeRejectsTie(t *testing.T) {
	// dom(c) = {a, b, c} with |dom(a)| = |dom(b)| cannot come from a
	// converged solver.
	s := testSets([]bool{true, false, true}, []int{0}, []int{1}, []int{0, 1, 2})
	_, err := BuildTree(s)
	assert.ErrorIs(t, err, ErrTreeInconsistency)
	assert.Contains(t, err.Error(), "several candidate")
}

func TestBuildTreeRejectsBrokenChain(t *testing.T) {
	// b has the largest set among c's strict dominators but dom(b) is not
	// dom(c) minus c.
	s := testSets([]bool{true, false, true}, []int{0}, []int{1, 2}, []int{0, 1, 2})
	_, err := BuildTree(s)
	assert.ErrorIs(t, err, ErrTreeInconsistency)
	assert.Contains(t, err.Error(), "not dom")
}

func TestBuildTreeRejectsMissingStrictDominator(t *testing.T) {
	s := testSets([]bool{true, true}, []int{0}, []int{1})
	_, err := BuildTree(s)
	assert.ErrorIs(t, err, ErrTreeInconsistency)
}

func TestDeepTreePostOrder(t *testing.T) {
	const n = 5000
	names := make([]string, n)
	var edges []string
	for i := range names {
		names[i] = fmt.Sprintf("b%d", i)
		if i > 0 {
			edges = append(edges, fmt.Sprintf("b%d -> b%d", i-1, i))
		}
	}

	info, err := Analyze(newTestGraph(names, edges...))
	require.NoError(t, err)

	order := info.Tree.PostOrder()
	require.Len(t, order, n)
	assert.Equal(t, "b4999", order[0])
	assert.Equal(t, "b0", order[n-1])
	assert.Len(t, info.Tree.PathToRoot("b4999"), n)
}

// randomGraph returns a graph of n blocks with roughly density*n*n edges.
func randomGraph(r *rand.Rand, n int, density float64) *testGraph {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("n%d", i)
	}
	var edges []string
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if r.Float64() < density {
				edges = append(edges, fmt.Sprintf("n%d -> n%d", i, j))
			}
		}
	}
	return newTestGraph(names, edges...)
}

// reachableWithout lists the blocks reachable from the entry when skip is
// removed from the graph.
func reachableWithout(g *testGraph, skip string) map[string]bool {
	seen := map[string]bool{}
	entry := g.names[0]
	if entry == skip {
		return seen
	}
	stack := []string{entry}
	seen[entry] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.succs[b] {
			if s != skip && !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return seen
}

func sorted(xs []string) []string {
	out := append([]string(nil), xs...)
	sort.Strings(out)
	return out
}

func TestRandomGraphProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for iter := 0; iter < 300; iter++ {
		n := 1 + r.Intn(12)
		g := randomGraph(r, n, 0.05+r.Float64()*0.25)

		info, err := Analyze(g)
		require.NoError(t, err, "graph:\n%s", spew.Sdump(g))

		if !checkProperties(t, g, info) {
			t.Logf("failing graph:\n%s", spew.Sdump(g))
			t.FailNow()
		}
		require.NoError(t, CrossCheck(g, info.Tree), "graph:\n%s", spew.Sdump(g))
	}
}

func checkProperties(t *testing.T, g *testGraph, info *Info) bool {
	t.Helper()
	ok := true
	entry := g.names[0]
	reach := reachableWithout(g, "")

	// Entry minimality.
	ok = assert.Equal(t, []string{entry}, info.Sets.Of(entry)) && ok

	for _, b := range g.names {
		if !reach[b] {
			// Unreachable-block policy.
			ok = assert.Equal(t, []string{b}, info.Sets.Of(b)) && ok
			continue
		}

		// Reflexivity.
		ok = assert.True(t, info.Sets.Dominates(b, b), "%s dom %s", b, b) && ok

		// Dominance by definition: a dominates b iff removing a cuts b off.
		for _, a := range g.names {
			want := a == b || (reach[a] && !reachableWithout(g, a)[b])
			ok = assert.Equal(t, want, info.Sets.Dominates(a, b), "%s dom %s", a, b) && ok
		}

		// Tree/set consistency.
		ok = assert.Equal(t, sorted(info.Sets.Of(b)), sorted(info.Tree.PathToRoot(b)), "path to %s", b) && ok
	}

	// Transitivity.
	for _, x := range g.names {
		for _, y := range g.names {
			for _, z := range g.names {
				if info.Sets.Dominates(x, y) && info.Sets.Dominates(y, z) {
					ok = assert.True(t, info.Sets.Dominates(x, z), "%s dom %s dom %s", x, y, z) && ok
				}
			}
		}
	}

	// Frontier correctness: w ∈ DF(a) iff a dominates a reachable
	// predecessor of w and does not strictly dominate w.
	for _, a := range g.names {
		if !reach[a] {
			continue
		}
		for _, w := range g.names {
			want := false
			for _, p := range g.preds[w] {
				if reach[p] && info.Sets.Dominates(a, p) {
					want = true
				}
			}
			want = want && !info.Sets.StrictlyDominates(a, w)
			ok = assert.Equal(t, want, info.Frontier.Contains(a, w), "%s in DF(%s)", w, a) && ok
		}
	}
	return ok
}

// TestNoIdomTies checks every graph on up to four nodes: converged sets never
// produce an immediate-dominator tie.
func TestNoIdomTies(t *testing.T) {
	for n := 1; n <= 4; n++ {
		pairs := n * n
		for mask := 0; mask < 1<<pairs; mask++ {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("n%d", i)
			}
			var edges []string
			for e := 0; e < pairs; e++ {
				if mask&(1<<e) != 0 {
					edges = append(edges, fmt.Sprintf("n%d -> n%d", e/n, e%n))
				}
			}
			g := newTestGraph(names, edges...)

			sets, err := ComputeDominators(g)
			require.NoError(t, err)
			tree, err := BuildTree(sets)
			require.NoError(t, err, "graph:\n%s", spew.Sdump(g))
			require.NoError(t, CrossCheck(g, tree))
		}
	}
}

func TestSetsAccessors(t *testing.T) {
	info, err := Analyze(diamondLoopGraph())
	require.NoError(t, err)

	assert.True(t, info.Sets.StrictlyDominates("entry", "merge"))
	assert.False(t, info.Sets.StrictlyDominates("merge", "merge"))
	assert.False(t, info.Sets.Dominates("then", "merge"))
	assert.False(t, info.Sets.Dominates("nope", "merge"))
	assert.Nil(t, info.Sets.Of("nope"))
	assert.GreaterOrEqual(t, info.Sets.Passes(), 1)

	m := info.Sets.Map()
	assert.Len(t, m, 7)
	assert.Equal(t, []string{"entry", "merge"}, m["merge"])

	children := info.Tree.ChildrenMap()
	assert.Equal(t, []string{"loop_header"}, children["merge"])
	assert.NotContains(t, children, "then")
}
