package pdg

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-dominance/pkg/dataflow"
	"github.com/l3aro/go-dominance/pkg/dom"
)

// ExitBlock is the virtual node every returning block flows into. It roots
// the post-dominator tree.
const ExitBlock = "%exit"

// ErrExitCollision is returned when a real block is named ExitBlock.
var ErrExitCollision = errors.New("block name collides with virtual exit " + ExitBlock)

// reversed flips every edge of a graph and puts ExitBlock in front, so that
// dominance on it is post-dominance on the original.
type reversed struct {
	g     dom.Graph
	names []string
	exits []string
}

func newReversed(g dom.Graph) (*reversed, error) {
	r := &reversed{g: g, names: []string{ExitBlock}}
	for _, b := range g.BlockNames() {
		if b == ExitBlock {
			return nil, ErrExitCollision
		}
		r.names = append(r.names, b)
		if len(g.Succs(b)) == 0 {
			r.exits = append(r.exits, b)
		}
	}
	return r, nil
}

func (r *reversed) BlockNames() []string { return r.names }

func (r *reversed) Succs(name string) []string {
	if name == ExitBlock {
		return r.exits
	}
	return r.g.Preds(name)
}

func (r *reversed) Preds(name string) []string {
	if name == ExitBlock {
		return nil
	}
	if succs := r.g.Succs(name); len(succs) > 0 {
		return succs
	}
	return []string{ExitBlock}
}

// PostDominators analyzes the reversed graph of g. Blocks that cannot reach
// a return, such as the body of an infinite loop, are unreachable there and
// have no post-dominator.
func PostDominators(g dom.Graph) (*dom.Info, error) {
	r, err := newReversed(g)
	if err != nil {
		return nil, fmt.Errorf("post-dominators: %w", err)
	}
	info, err := dom.Analyze(r)
	if err != nil {
		return nil, fmt.Errorf("post-dominators: %w", err)
	}
	return info, nil
}

// Build assembles the dependence graph of function name from its control
// flow graph and def-use chains. Argument definitions have no source block
// and produce no data edge.
func Build(name string, g dom.Graph, chains []dataflow.Chain) (*Graph, error) {
	post, err := PostDominators(g)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}

	p := &Graph{
		Function: name,
		Blocks:   g.BlockNames(),
		Ipdom:    post.Tree.IdomMap(),
	}

	// Y depends on X exactly when X is in the post-dominance frontier of Y.
	for _, y := range p.Blocks {
		for _, x := range post.Frontier.Of(y) {
			p.Edges = append(p.Edges, Edge{Source: x, Target: y, DepType: DepTypeControl})
		}
	}

	seen := make(map[Edge]bool)
	for _, c := range chains {
		if c.Def.Index < 0 {
			continue
		}
		e := Edge{Source: c.Def.Block, Target: c.Use.Block, DepType: DepTypeData, Label: c.Use.Var}
		if !seen[e] {
			seen[e] = true
			p.Edges = append(p.Edges, e)
		}
	}

	p.buildEdgeMaps()
	return p, nil
}

func (p *Graph) buildEdgeMaps() {
	p.incoming = make(map[string][]Edge)
	p.outgoing = make(map[string][]Edge)
	for _, e := range p.Edges {
		p.outgoing[e.Source] = append(p.outgoing[e.Source], e)
		p.incoming[e.Target] = append(p.incoming[e.Target], e)
	}
}

// ControlDeps maps each block to the blocks whose branch decides whether
// it runs. Blocks that always run are left out.
func (p *Graph) ControlDeps() map[string][]string {
	out := make(map[string][]string)
	for _, e := range p.Edges {
		if e.DepType == DepTypeControl {
			out[e.Target] = append(out[e.Target], e.Source)
		}
	}
	return out
}

// DependsOn returns the edges into block.
func (p *Graph) DependsOn(block string) []Edge {
	return p.incoming[block]
}

// Dependents returns the edges out of block.
func (p *Graph) Dependents(block string) []Edge {
	return p.outgoing[block]
}
