package cfg

import (
	"fmt"

	"github.com/l3aro/go-dominance/pkg/ir"
)

// AddTerminators appends an explicit control transfer to every block whose
// last instruction is missing or is not a terminator: a jmp to the next
// block in order, or a bare ret for the last block. Blocks are modified in
// place.
func AddTerminators(blocks []*Block) {
	for i, b := range blocks {
		if n := len(b.Instrs); n > 0 && b.Instrs[n-1].IsTerminator() {
			continue
		}

		if i == len(blocks)-1 {
			b.Instrs = append(b.Instrs, ir.Ret())
		} else {
			b.Instrs = append(b.Instrs, ir.Jmp(blocks[i+1].Name))
		}
	}
}

// Successors returns the control-flow targets of a terminator: both labels
// of a br (true target first), the single label of a jmp, none for ret.
func Successors(instr ir.Instruction) ([]string, error) {
	if instr.Op == "" {
		return nil, fmt.Errorf("%w: instruction has no op field", ir.ErrMalformedInstruction)
	}

	switch instr.Op {
	case ir.OpBr:
		if len(instr.Labels) != 2 {
			return nil, fmt.Errorf("%w: br needs 2 labels, got %d", ir.ErrMalformedInstruction, len(instr.Labels))
		}
	case ir.OpJmp:
		if len(instr.Labels) != 1 {
			return nil, fmt.Errorf("%w: jmp needs 1 label, got %d", ir.ErrMalformedInstruction, len(instr.Labels))
		}
	case ir.OpRet:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotATerminator, instr.Op)
	}

	succs := make([]string, len(instr.Labels))
	copy(succs, instr.Labels)
	return succs, nil
}
