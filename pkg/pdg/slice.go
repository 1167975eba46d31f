package pdg

import (
	"fmt"

	"github.com/oleiade/lane"
)

// BackwardSlice returns the blocks that may affect block, itself included,
// in block order. With a variable filter only data edges for that variable
// are followed; control edges always are.
func (p *Graph) BackwardSlice(block string, variable *string) ([]string, error) {
	return p.slice(block, variable, p.incoming, func(e Edge) string { return e.Source })
}

// ForwardSlice returns the blocks that block may affect, itself included.
func (p *Graph) ForwardSlice(block string, variable *string) ([]string, error) {
	return p.slice(block, variable, p.outgoing, func(e Edge) string { return e.Target })
}

func (p *Graph) slice(start string, variable *string, edges map[string][]Edge, next func(Edge) string) ([]string, error) {
	if !p.has(start) {
		return nil, fmt.Errorf("function %s: no block %q", p.Function, start)
	}

	visited := map[string]bool{start: true}
	q := lane.NewQueue()
	for q.Enqueue(start); !q.Empty(); {
		current := q.Dequeue().(string)
		for _, e := range edges[current] {
			if variable != nil && e.DepType == DepTypeData && e.Label != *variable {
				continue
			}
			n := next(e)
			if !visited[n] {
				visited[n] = true
				q.Enqueue(n)
			}
		}
	}

	var out []string
	for _, b := range p.Blocks {
		if visited[b] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (p *Graph) has(block string) bool {
	for _, b := range p.Blocks {
		if b == block {
			return true
		}
	}
	return false
}
