// Package ir defines the instruction model consumed by the CFG builder.
// An instruction is either a label marker or an operation in a linear,
// three-address stream, following the Bril JSON layout.
package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Opcodes that transfer control and therefore end a basic block.
const (
	OpJmp = "jmp"
	OpBr  = "br"
	OpRet = "ret"
)

// Instruction is either a label (Label set, Op empty) or an operation
// (Op set, Label empty). Exactly one of the two is present.
type Instruction struct {
	Label  string          `json:"label,omitempty"`  // Label name, only for label markers
	Op     string          `json:"op,omitempty"`     // Operation code, e.g. "add", "br"
	Dest   string          `json:"dest,omitempty"`   // Destination variable
	Type   string          `json:"type,omitempty"`   // Type of Dest
	Args   []string        `json:"args,omitempty"`   // Operand variables
	Labels []string        `json:"labels,omitempty"` // Branch targets; br is (true, false)
	Funcs  []string        `json:"funcs,omitempty"`  // Called functions
	Value  json.RawMessage `json:"value,omitempty"`  // Literal for const
}

// Arg is a formal parameter of a function.
type Arg struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Function is a named instruction stream.
type Function struct {
	Name   string        `json:"name"`
	Args   []Arg         `json:"args,omitempty"`
	Type   string        `json:"type,omitempty"`
	Instrs []Instruction `json:"instrs"`

	err error
}

// Err reports why the function's instructions could not be decoded.
func (f *Function) Err() error {
	return f.err
}

// Program is an ordered list of functions.
type Program struct {
	Functions []Function `json:"functions"`
}

// IsLabel reports whether the instruction is a label marker.
func (i Instruction) IsLabel() bool {
	return i.Label != ""
}

// IsTerminator reports whether the instruction ends a basic block.
func (i Instruction) IsTerminator() bool {
	return IsTerminatorOp(i.Op)
}

// IsTerminatorOp reports whether op is jmp, br or ret.
func IsTerminatorOp(op string) bool {
	switch op {
	case OpJmp, OpBr, OpRet:
		return true
	}
	return false
}

// NewLabel returns a label marker.
func NewLabel(name string) Instruction {
	return Instruction{Label: name}
}

// NewOp returns an operation writing dest (may be empty) from args.
func NewOp(op, dest string, args ...string) Instruction {
	return Instruction{Op: op, Dest: dest, Args: args}
}

// Jmp returns an unconditional jump to target.
func Jmp(target string) Instruction {
	return Instruction{Op: OpJmp, Labels: []string{target}}
}

// Br returns a conditional branch on cond.
func Br(cond, ifTrue, ifFalse string) Instruction {
	return Instruction{Op: OpBr, Args: []string{cond}, Labels: []string{ifTrue, ifFalse}}
}

// Ret returns a return of args.
func Ret(args ...string) Instruction {
	return Instruction{Op: OpRet, Args: args}
}

// String renders the instruction in Bril text form.
func (i Instruction) String() string {
	if i.IsLabel() {
		return "." + i.Label + ":"
	}

	var sb strings.Builder
	if i.Dest != "" {
		sb.WriteString(i.Dest)
		if i.Type != "" {
			sb.WriteString(": ")
			sb.WriteString(i.Type)
		}
		sb.WriteString(" = ")
	}
	sb.WriteString(i.Op)
	if len(i.Value) > 0 {
		sb.WriteString(" ")
		sb.Write(i.Value)
	}
	for _, f := range i.Funcs {
		sb.WriteString(" @")
		sb.WriteString(f)
	}
	for _, a := range i.Args {
		sb.WriteString(" ")
		sb.WriteString(a)
	}
	for _, l := range i.Labels {
		sb.WriteString(" .")
		sb.WriteString(l)
	}
	sb.WriteString(";")
	return sb.String()
}

// Labels returns every label defined in the function, in order.
func (f *Function) Labels() []string {
	var labels []string
	for _, instr := range f.Instrs {
		if instr.IsLabel() {
			labels = append(labels, instr.Label)
		}
	}
	return labels
}

// Lookup returns the function with the given name.
func (p *Program) Lookup(name string) (*Function, error) {
	for i := range p.Functions {
		if p.Functions[i].Name == name {
			return &p.Functions[i], nil
		}
	}
	return nil, fmt.Errorf("function %q not found", name)
}
