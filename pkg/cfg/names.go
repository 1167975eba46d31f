package cfg

import (
	"fmt"
	"strconv"

	"github.com/l3aro/go-dominance/pkg/ir"
)

// DefaultNamePrefix is the prefix of generated block names.
const DefaultNamePrefix = "b"

// Namer hands out synthetic block names from an explicit counter.
//
// A single Namer is threaded through the naming of every function in a run,
// so generated names are unique across the run. Reserved names (the labels
// present in program text) are never generated. Namer is not safe for
// concurrent use; naming runs before any per-function parallelism.
type Namer struct {
	prefix   string
	next     int
	reserved map[string]struct{}
}

// NewNamer creates a Namer whose names are prefix followed by 1, 2, ...
func NewNamer(prefix string) *Namer {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	return &Namer{
		prefix:   prefix,
		next:     1,
		reserved: make(map[string]struct{}),
	}
}

// Reserve marks names as taken.
func (n *Namer) Reserve(names ...string) {
	for _, name := range names {
		n.reserved[name] = struct{}{}
	}
}

// ReserveProgram reserves every label of every function in prog.
func (n *Namer) ReserveProgram(prog *ir.Program) {
	for i := range prog.Functions {
		n.Reserve(prog.Functions[i].Labels()...)
	}
}

// Next returns a fresh name and reserves it.
func (n *Namer) Next() string {
	for {
		name := n.prefix + strconv.Itoa(n.next)
		n.next++
		if _, taken := n.reserved[name]; taken {
			continue
		}
		n.reserved[name] = struct{}{}
		return name
	}
}

// NameBlocks turns formed blocks into named blocks, preserving order.
// A leading label becomes the block name and is removed from the block;
// other blocks receive a name from namer.
func NameBlocks(blocks [][]ir.Instruction, namer *Namer) ([]*Block, error) {
	out := make([]*Block, 0, len(blocks))
	seen := make(map[string]struct{}, len(blocks))

	// Labels of this function are reserved up front so that an unlabeled
	// block never takes a name that a later label uses.
	for _, instrs := range blocks {
		if len(instrs) > 0 && instrs[0].IsLabel() {
			namer.Reserve(instrs[0].Label)
		}
	}

	for _, instrs := range blocks {
		var name string
		if len(instrs) > 0 && instrs[0].IsLabel() {
			name = instrs[0].Label
			instrs = instrs[1:]
		} else {
			name = namer.Next()
		}

		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, name)
		}
		seen[name] = struct{}{}

		body := make([]ir.Instruction, len(instrs))
		copy(body, instrs)
		out = append(out, &Block{Name: name, Instrs: body})
	}

	return out, nil
}
