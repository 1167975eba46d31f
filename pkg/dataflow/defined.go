// Package dataflow runs forward data flow analyses over a normalized CFG.
package dataflow

import (
	"sort"

	"github.com/oleiade/lane"

	"github.com/l3aro/go-dominance/pkg/cfg"
	"github.com/l3aro/go-dominance/pkg/ir"
)

// Result holds the in and out facts of every block, sorted by name.
type Result struct {
	In  map[string][]string `json:"in" yaml:"in" msgpack:"in"`
	Out map[string][]string `json:"out" yaml:"out" msgpack:"out"`
}

type varSet map[string]struct{}

func (s varSet) add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

func (s varSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Defined computes the variables that may have been assigned on some path
// reaching each block:
//
//	in(entry) = args
//	in(b)     = ∪ out(p) for p in preds(b)
//	out(b)    = defs(b) ∪ in(b)
//
// The entry block also unions in its predecessors when it is a loop target.
func Defined(g *cfg.CFG, args []ir.Arg) *Result {
	names := g.BlockNames()
	in := make(map[string]varSet, len(names))
	out := make(map[string]varSet, len(names))
	defs := make(map[string]varSet, len(names))

	for _, b := range g.Blocks {
		in[b.Name] = varSet{}
		out[b.Name] = varSet{}
		d := varSet{}
		for _, instr := range b.Instrs {
			if instr.Dest != "" {
				d.add(instr.Dest)
			}
		}
		defs[b.Name] = d
	}

	if entry := g.Entry(); entry != nil {
		for _, a := range args {
			in[entry.Name].add(a.Name)
		}
	}

	queued := make(map[string]bool, len(names))
	work := lane.NewQueue()
	for _, name := range names {
		work.Enqueue(name)
		queued[name] = true
	}

	for !work.Empty() {
		name := work.Dequeue().(string)
		queued[name] = false

		for _, p := range g.Preds(name) {
			for v := range out[p] {
				in[name].add(v)
			}
		}

		changed := false
		for v := range in[name] {
			changed = out[name].add(v) || changed
		}
		for v := range defs[name] {
			changed = out[name].add(v) || changed
		}

		if !changed {
			continue
		}
		for _, s := range g.Succs(name) {
			if !queued[s] {
				work.Enqueue(s)
				queued[s] = true
			}
		}
	}

	return newResult(in, out)
}

func newResult(in, out map[string]varSet) *Result {
	r := &Result{
		In:  make(map[string][]string, len(in)),
		Out: make(map[string][]string, len(out)),
	}
	for name, s := range in {
		r.In[name] = s.sorted()
	}
	for name, s := range out {
		r.Out[name] = s.sorted()
	}
	return r
}
