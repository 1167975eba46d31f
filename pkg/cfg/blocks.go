// Package cfg builds control flow graphs from linear instruction streams.
// It splits a function into basic blocks, names them, makes every block end
// in an explicit terminator and derives predecessor/successor edges.
package cfg

import (
	"github.com/l3aro/go-dominance/pkg/ir"
)

// FormBlocks splits a flat instruction stream into basic blocks.
//
// Operations are appended to the current block and a terminator closes it.
// A label always starts a new block: the current block is closed if it is
// non-empty and a new one is seeded with the label. A block holding only a
// label is non-empty, so consecutive labels produce one block each.
func FormBlocks(instrs []ir.Instruction) [][]ir.Instruction {
	var blocks [][]ir.Instruction
	var block []ir.Instruction

	for _, instr := range instrs {
		if !instr.IsLabel() {
			block = append(block, instr)
			if instr.IsTerminator() {
				blocks = append(blocks, block)
				block = nil
			}
			continue
		}

		if len(block) > 0 {
			blocks = append(blocks, block)
		}
		block = []ir.Instruction{instr}
	}

	if len(block) > 0 {
		blocks = append(blocks, block)
	}
	return blocks
}

// Flatten concatenates blocks back into a single stream.
func Flatten(blocks [][]ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}
