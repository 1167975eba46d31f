package pdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-dominance/pkg/cfg"
	"github.com/l3aro/go-dominance/pkg/dataflow"
	"github.com/l3aro/go-dominance/pkg/ir"
)

func build(t *testing.T, args []ir.Arg, instrs ...ir.Instruction) (*cfg.CFG, *Graph) {
	t.Helper()
	g, err := cfg.Build("f", instrs, cfg.NewNamer(cfg.DefaultNamePrefix))
	require.NoError(t, err)

	chains := dataflow.NewReachingDefs(g, args).Chains(g)
	p, err := Build("f", g, chains)
	require.NoError(t, err)
	return g, p
}

// loop counts i up to n:
//
//	b1:   i = const 0
//	loop: c = lt i n; br c body end
//	body: i = add i n; jmp loop
//	end:  ret i
func loop(t *testing.T) *Graph {
	_, p := build(t, []ir.Arg{{Name: "n", Type: "int"}},
		ir.NewOp("const", "i"),
		ir.NewLabel("loop"),
		ir.NewOp("lt", "c", "i", "n"),
		ir.Br("c", "body", "end"),
		ir.NewLabel("body"),
		ir.NewOp("add", "i", "i", "n"),
		ir.Jmp("loop"),
		ir.NewLabel("end"),
		ir.Ret("i"),
	)
	return p
}

func TestDiamondControlDeps(t *testing.T) {
	_, p := build(t, []ir.Arg{{Name: "cond", Type: "bool"}},
		ir.Br("cond", "then", "else"),
		ir.NewLabel("then"),
		ir.Jmp("merge"),
		ir.NewLabel("else"),
		ir.Jmp("merge"),
		ir.NewLabel("merge"),
		ir.Ret(),
	)

	assert.Equal(t, map[string]string{
		"b1":    "merge",
		"then":  "merge",
		"else":  "merge",
		"merge": ExitBlock,
	}, p.Ipdom)
	assert.Equal(t, map[string][]string{
		"then": {"b1"},
		"else": {"b1"},
	}, p.ControlDeps())
	assert.Empty(t, p.DependsOn("merge"), "merge always runs")
}

func TestLoopDependences(t *testing.T) {
	p := loop(t)

	assert.Equal(t, map[string][]string{
		"loop": {"loop"},
		"body": {"loop"},
	}, p.ControlDeps())

	var data []Edge
	for _, e := range p.Edges {
		if e.DepType == DepTypeData {
			data = append(data, e)
		}
	}
	assert.ElementsMatch(t, []Edge{
		{Source: "b1", Target: "loop", DepType: DepTypeData, Label: "i"},
		{Source: "body", Target: "loop", DepType: DepTypeData, Label: "i"},
		{Source: "loop", Target: "loop", DepType: DepTypeData, Label: "c"},
		{Source: "b1", Target: "body", DepType: DepTypeData, Label: "i"},
		{Source: "body", Target: "body", DepType: DepTypeData, Label: "i"},
		{Source: "b1", Target: "end", DepType: DepTypeData, Label: "i"},
		{Source: "body", Target: "end", DepType: DepTypeData, Label: "i"},
	}, data, "argument n has no source block")
}

func TestSlices(t *testing.T) {
	p := loop(t)
	c := "c"

	tests := []struct {
		name     string
		forward  bool
		block    string
		variable *string
		want     []string
	}{
		{"backward from end", false, "end", nil, []string{"b1", "loop", "body", "end"}},
		{"backward from body on c", false, "body", &c, []string{"loop", "body"}},
		{"backward from entry", false, "b1", nil, []string{"b1"}},
		{"forward from entry", true, "b1", nil, []string{"b1", "loop", "body", "end"}},
		{"forward from body", true, "body", nil, []string{"loop", "body", "end"}},
		{"forward from end", true, "end", nil, []string{"end"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slice := p.BackwardSlice
			if tt.forward {
				slice = p.ForwardSlice
			}
			got, err := slice(tt.block, tt.variable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := p.BackwardSlice("nowhere", nil)
	assert.Error(t, err)
}

func TestInfiniteLoopHasNoPostDominator(t *testing.T) {
	_, p := build(t, nil,
		ir.Jmp("spin"),
		ir.NewLabel("spin"),
		ir.Jmp("spin"),
	)

	_, ok := p.Ipdom["spin"]
	assert.False(t, ok)
	assert.Empty(t, p.ControlDeps())
}

func TestPostDominatorsEmptyGraph(t *testing.T) {
	g, err := cfg.New("empty", nil)
	require.NoError(t, err)

	info, err := PostDominators(g)
	require.NoError(t, err)
	assert.Equal(t, ExitBlock, info.Tree.Root)
}

// namedGraph is a straight line of blocks given by name.
type namedGraph []string

func (g namedGraph) BlockNames() []string { return g }

func (g namedGraph) Succs(name string) []string {
	for i, b := range g {
		if b == name && i+1 < len(g) {
			return []string{g[i+1]}
		}
	}
	return nil
}

func (g namedGraph) Preds(name string) []string {
	for i, b := range g {
		if b == name && i > 0 {
			return []string{g[i-1]}
		}
	}
	return nil
}

func TestPostDominatorsExitNameCollision(t *testing.T) {
	info, err := PostDominators(namedGraph{"entry", "tail"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"entry": "tail", "tail": ExitBlock}, info.Tree.IdomMap())

	_, err = PostDominators(namedGraph{"entry", ExitBlock})
	assert.ErrorIs(t, err, ErrExitCollision)

	_, err = Build("f", namedGraph{ExitBlock}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExitCollision)
	assert.Contains(t, err.Error(), "function f:")
}
