package dataflow

import (
	"github.com/oleiade/lane"

	"github.com/l3aro/go-dominance/pkg/cfg"
	"github.com/l3aro/go-dominance/pkg/ir"
)

// Def is one assignment site. Index is the position within the block, or -1
// for a function argument defined on entry.
type Def struct {
	Var   string `json:"var" yaml:"var" msgpack:"var"`
	Block string `json:"block" yaml:"block" msgpack:"block"`
	Index int    `json:"index" yaml:"index" msgpack:"index"`
}

// Use is one read of a variable.
type Use struct {
	Var   string `json:"var" yaml:"var" msgpack:"var"`
	Block string `json:"block" yaml:"block" msgpack:"block"`
	Index int    `json:"index" yaml:"index" msgpack:"index"`
}

// Chain links a definition to a use it may reach.
type Chain struct {
	Def Def `json:"def" yaml:"def" msgpack:"def"`
	Use Use `json:"use" yaml:"use" msgpack:"use"`
}

// ReachingDefs computes which definitions reach each block with the usual
// gen/kill equations and turns the result into def-use chains:
//
//	in(b)  = ∪ out(p) for p in preds(b)
//	out(b) = gen(b) ∪ (in(b) − kill(b))
//
// Chains are ordered by use position, then by definition id.
type ReachingDefs struct {
	defs  []Def
	byVar map[string][]int
	gen   map[string]map[int]struct{}
	kill  map[string]map[string]struct{}
	in    map[string]map[int]struct{}
	out   map[string]map[int]struct{}
}

// NewReachingDefs solves reaching definitions for g. Function arguments are
// definitions at the entry block.
func NewReachingDefs(g *cfg.CFG, args []ir.Arg) *ReachingDefs {
	r := &ReachingDefs{
		byVar: make(map[string][]int),
		gen:   make(map[string]map[int]struct{}),
		kill:  make(map[string]map[string]struct{}),
		in:    make(map[string]map[int]struct{}),
		out:   make(map[string]map[int]struct{}),
	}
	r.initialize(g, args)
	r.solve(g)
	return r
}

func (r *ReachingDefs) addDef(d Def) int {
	id := len(r.defs)
	r.defs = append(r.defs, d)
	r.byVar[d.Var] = append(r.byVar[d.Var], id)
	return id
}

// initialize numbers definitions and builds gen and kill sets. Only the last
// definition of a variable in a block survives into gen.
func (r *ReachingDefs) initialize(g *cfg.CFG, args []ir.Arg) {
	entry := g.Entry()
	for _, b := range g.Blocks {
		last := make(map[string]int)
		kill := make(map[string]struct{})

		if b == entry {
			for _, a := range args {
				last[a.Name] = r.addDef(Def{Var: a.Name, Block: b.Name, Index: -1})
			}
		}
		for i, instr := range b.Instrs {
			if instr.Dest == "" {
				continue
			}
			last[instr.Dest] = r.addDef(Def{Var: instr.Dest, Block: b.Name, Index: i})
			kill[instr.Dest] = struct{}{}
		}

		gen := make(map[int]struct{}, len(last))
		for _, id := range last {
			gen[id] = struct{}{}
		}
		r.gen[b.Name] = gen
		r.kill[b.Name] = kill
		r.in[b.Name] = make(map[int]struct{})
		r.out[b.Name] = make(map[int]struct{})
	}
}

func (r *ReachingDefs) solve(g *cfg.CFG) {
	queued := make(map[string]bool, len(g.Blocks))
	work := lane.NewQueue()
	for _, b := range g.Blocks {
		work.Enqueue(b.Name)
		queued[b.Name] = true
	}

	for !work.Empty() {
		name := work.Dequeue().(string)
		queued[name] = false

		in := make(map[int]struct{})
		for _, p := range g.Preds(name) {
			for id := range r.out[p] {
				in[id] = struct{}{}
			}
		}
		r.in[name] = in

		out := make(map[int]struct{}, len(in))
		for id := range r.gen[name] {
			out[id] = struct{}{}
		}
		for id := range in {
			if _, killed := r.kill[name][r.defs[id].Var]; !killed {
				out[id] = struct{}{}
			}
		}

		if len(out) == len(r.out[name]) {
			continue
		}
		r.out[name] = out
		for _, s := range g.Succs(name) {
			if !queued[s] {
				work.Enqueue(s)
				queued[s] = true
			}
		}
	}
}

// Defs returns every definition in numbering order.
func (r *ReachingDefs) Defs() []Def {
	return r.defs
}

// In returns the definitions reaching the start of a block, in id order.
func (r *ReachingDefs) In(block string) []Def {
	return r.ordered(r.in[block])
}

// Out returns the definitions live at the end of a block, in id order.
func (r *ReachingDefs) Out(block string) []Def {
	return r.ordered(r.out[block])
}

func (r *ReachingDefs) ordered(set map[int]struct{}) []Def {
	var out []Def
	for id, d := range r.defs {
		if _, ok := set[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Chains walks every block forward from its in set and links each operand to
// the definitions of that variable reaching it.
func (r *ReachingDefs) Chains(g *cfg.CFG) []Chain {
	var chains []Chain
	for _, b := range g.Blocks {
		current := make(map[string][]int)
		for id, d := range r.defs {
			_, reaches := r.in[b.Name][id]
			if reaches || (d.Block == b.Name && d.Index < 0) {
				current[d.Var] = append(current[d.Var], id)
			}
		}

		for i, instr := range b.Instrs {
			for _, v := range instr.Args {
				for _, id := range current[v] {
					chains = append(chains, Chain{
						Def: r.defs[id],
						Use: Use{Var: v, Block: b.Name, Index: i},
					})
				}
			}
			if instr.Dest != "" {
				current[instr.Dest] = []int{r.idOf(Def{Var: instr.Dest, Block: b.Name, Index: i})}
			}
		}
	}
	return chains
}

func (r *ReachingDefs) idOf(d Def) int {
	for _, id := range r.byVar[d.Var] {
		if r.defs[id] == d {
			return id
		}
	}
	return -1
}
