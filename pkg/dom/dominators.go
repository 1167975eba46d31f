// Package dom computes dominator sets, dominator trees and dominance
// frontiers over any control flow graph exposing block names and
// predecessor/successor lookups.
package dom

import (
	"errors"
	"fmt"

	"github.com/oleiade/lane"
)

var (
	// ErrTreeInconsistency is returned when the dominator sets do not form
	// a tree: an immediate-dominator tie, an idom whose own set is not the
	// strict dominator set, or a disagreement with the cross-check.
	ErrTreeInconsistency = errors.New("dominator tree inconsistency")

	// ErrInvalidGraph is returned for duplicate or dangling block names.
	ErrInvalidGraph = errors.New("invalid graph")
)

// Graph is the view of a control flow graph the engine works on. The first
// name returned by BlockNames is the entry block. Edge lists may contain
// duplicates.
type Graph interface {
	BlockNames() []string
	Preds(name string) []string
	Succs(name string) []string
}

// Sets holds the dominator set of every block. Unreachable blocks are
// dominated only by themselves.
type Sets struct {
	names     []string
	index     map[string]int
	dom       []bitset
	reachable []bool
	passes    int
}

// ComputeDominators solves the dominator equations by iterating
//
//	dom(entry) = {entry}
//	dom(b)     = {b} ∪ ⋂ dom(p) for reachable predecessors p of b
//
// from the all-blocks initial value until a full pass changes nothing.
func ComputeDominators(g Graph) (*Sets, error) {
	names := g.BlockNames()
	n := len(names)

	index := make(map[string]int, n)
	for i, name := range names {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate block %q", ErrInvalidGraph, name)
		}
		index[name] = i
	}

	s := &Sets{
		names:     names,
		index:     index,
		dom:       make([]bitset, n),
		reachable: make([]bool, n),
	}
	if n == 0 {
		return s, nil
	}

	if err := s.markReachable(g); err != nil {
		return nil, err
	}

	preds := make([][]int, n)
	for i, name := range names {
		if !s.reachable[i] {
			continue
		}
		for _, p := range g.Preds(name) {
			j, ok := index[p]
			if !ok {
				return nil, fmt.Errorf("%w: block %q has unknown predecessor %q", ErrInvalidGraph, name, p)
			}
			if s.reachable[j] {
				preds[i] = append(preds[i], j)
			}
		}
	}

	all := newBitset(n)
	for i := range names {
		s.dom[i] = newBitset(n)
		if s.reachable[i] {
			all.set(i)
		}
	}
	for i := range names {
		switch {
		case i == 0 || !s.reachable[i]:
			s.dom[i].set(i)
		default:
			s.dom[i].copyFrom(all)
		}
	}

	tmp := newBitset(n)
	for changed := true; changed; {
		changed = false
		s.passes++

		for i := 1; i < n; i++ {
			if !s.reachable[i] {
				continue
			}

			if len(preds[i]) == 0 {
				tmp.reset()
			} else {
				tmp.copyFrom(s.dom[preds[i][0]])
				for _, p := range preds[i][1:] {
					tmp.intersect(s.dom[p])
				}
			}
			tmp.set(i)

			if !tmp.equal(s.dom[i]) {
				s.dom[i].copyFrom(tmp)
				changed = true
			}
		}
	}

	return s, nil
}

// markReachable walks successors breadth-first from the entry block.
func (s *Sets) markReachable(g Graph) error {
	q := lane.NewQueue()
	s.reachable[0] = true

	for q.Enqueue(0); !q.Empty(); {
		i := q.Dequeue().(int)
		for _, succ := range g.Succs(s.names[i]) {
			j, ok := s.index[succ]
			if !ok {
				return fmt.Errorf("%w: block %q has unknown successor %q", ErrInvalidGraph, s.names[i], succ)
			}
			if !s.reachable[j] {
				s.reachable[j] = true
				q.Enqueue(j)
			}
		}
	}
	return nil
}

// Names returns the block names in program order.
func (s *Sets) Names() []string {
	return s.names
}

// Passes returns the number of fixed-point passes performed.
func (s *Sets) Passes() int {
	return s.passes
}

// Reachable reports whether the block is reachable from the entry.
func (s *Sets) Reachable(name string) bool {
	i, ok := s.index[name]
	return ok && s.reachable[i]
}

// Of returns the dominators of a block, itself included, in program order.
func (s *Sets) Of(name string) []string {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.namesOf(s.dom[i])
}

// Dominates reports whether a dominates b.
func (s *Sets) Dominates(a, b string) bool {
	i, ok := s.index[a]
	j, ok2 := s.index[b]
	if !ok || !ok2 {
		return false
	}
	return s.dom[j].has(i)
}

// StrictlyDominates reports whether a dominates b and a != b.
func (s *Sets) StrictlyDominates(a, b string) bool {
	return a != b && s.Dominates(a, b)
}

// Map returns every block's dominator set keyed by name.
func (s *Sets) Map() map[string][]string {
	out := make(map[string][]string, len(s.names))
	for i, name := range s.names {
		out[name] = s.namesOf(s.dom[i])
	}
	return out
}

func (s *Sets) namesOf(b bitset) []string {
	members := b.members()
	out := make([]string, len(members))
	for k, i := range members {
		out[k] = s.names[i]
	}
	return out
}
