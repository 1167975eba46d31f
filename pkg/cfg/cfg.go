package cfg

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-dominance/pkg/ir"
)

var (
	// ErrNotATerminator is returned when successors are requested for an
	// instruction that does not transfer control.
	ErrNotATerminator = errors.New("not a terminator")

	// ErrUnknownTarget is returned when a branch names a missing block.
	ErrUnknownTarget = errors.New("unknown branch target")

	// ErrDuplicateLabel is returned when two blocks share a name.
	ErrDuplicateLabel = errors.New("duplicate block label")
)

// Block is a named basic block. After normalization its last instruction is
// its only terminator.
type Block struct {
	Name   string           `json:"name"`
	Instrs []ir.Instruction `json:"instrs"`
}

// Terminator returns the last instruction of the block.
func (b *Block) Terminator() (ir.Instruction, bool) {
	if len(b.Instrs) == 0 {
		return ir.Instruction{}, false
	}
	return b.Instrs[len(b.Instrs)-1], true
}

// CFG is the control flow graph of one function. The first block is the
// entry. Edge lists keep insertion order and multiplicity.
type CFG struct {
	Name   string
	Blocks []*Block

	index map[string]int
	succs map[string][]string
	preds map[string][]string
}

// Build forms, names and normalizes the blocks of a function and resolves
// its edges. No partial CFG is returned on error.
func Build(name string, instrs []ir.Instruction, namer *Namer) (*CFG, error) {
	blocks, err := NameBlocks(FormBlocks(instrs), namer)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return New(name, blocks)
}

// New normalizes already named blocks and resolves their edges.
func New(name string, blocks []*Block) (*CFG, error) {
	AddTerminators(blocks)

	index := make(map[string]int, len(blocks))
	for i, b := range blocks {
		if _, dup := index[b.Name]; dup {
			return nil, fmt.Errorf("function %s: %w: %q", name, ErrDuplicateLabel, b.Name)
		}
		index[b.Name] = i
	}

	preds, succs, err := Edges(blocks)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}

	return &CFG{
		Name:   name,
		Blocks: blocks,
		index:  index,
		succs:  succs,
		preds:  preds,
	}, nil
}

// Edges derives predecessor and successor lists from each block's
// terminator. Every block gets an entry in both maps.
func Edges(blocks []*Block) (preds, succs map[string][]string, err error) {
	preds = make(map[string][]string, len(blocks))
	succs = make(map[string][]string, len(blocks))

	for _, b := range blocks {
		preds[b.Name] = nil
		succs[b.Name] = nil
	}

	for _, b := range blocks {
		term, ok := b.Terminator()
		if !ok {
			return nil, nil, fmt.Errorf("block %s: %w: block is empty", b.Name, ErrNotATerminator)
		}

		targets, err := Successors(term)
		if err != nil {
			return nil, nil, fmt.Errorf("block %s: %w", b.Name, err)
		}

		for _, s := range targets {
			if _, ok := succs[s]; !ok {
				return nil, nil, fmt.Errorf("block %s: %w: %q", b.Name, ErrUnknownTarget, s)
			}
			succs[b.Name] = append(succs[b.Name], s)
			preds[s] = append(preds[s], b.Name)
		}
	}

	return preds, succs, nil
}

// Entry returns the first block, or nil for an empty function.
func (g *CFG) Entry() *Block {
	if len(g.Blocks) == 0 {
		return nil
	}
	return g.Blocks[0]
}

// Block returns the block with the given name.
func (g *CFG) Block(name string) (*Block, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.Blocks[i], true
}

// Index returns the program-order position of a block, or -1.
func (g *CFG) Index(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	return -1
}

// BlockNames returns block names in program order.
func (g *CFG) BlockNames() []string {
	names := make([]string, len(g.Blocks))
	for i, b := range g.Blocks {
		names[i] = b.Name
	}
	return names
}

// Succs returns the successors of a block.
func (g *CFG) Succs(name string) []string {
	return g.succs[name]
}

// Preds returns the predecessors of a block.
func (g *CFG) Preds(name string) []string {
	return g.preds[name]
}

// Successors returns a copy of the successor map.
func (g *CFG) Successors() map[string][]string {
	return copyEdges(g.succs)
}

// Predecessors returns a copy of the predecessor map.
func (g *CFG) Predecessors() map[string][]string {
	return copyEdges(g.preds)
}

// Instructions flattens the normalized CFG back into a labelled stream.
func (g *CFG) Instructions() []ir.Instruction {
	var out []ir.Instruction
	for _, b := range g.Blocks {
		out = append(out, ir.NewLabel(b.Name))
		out = append(out, b.Instrs...)
	}
	return out
}

func copyEdges(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
