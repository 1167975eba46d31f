package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMalformedInstruction is returned when an instruction lacks the
// label/op discriminator or carries operands inconsistent with its opcode.
var ErrMalformedInstruction = errors.New("malformed instruction")

// rawInstruction mirrors Instruction with presence tracking for the
// discriminator fields.
type rawInstruction struct {
	Label  *string         `json:"label"`
	Op     *string         `json:"op"`
	Dest   string          `json:"dest"`
	Type   json.RawMessage `json:"type"`
	Args   []string        `json:"args"`
	Labels []string        `json:"labels"`
	Funcs  []string        `json:"funcs"`
	Value  json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes a label or an operation, rejecting records that
// carry neither or both discriminators.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw rawInstruction
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}

	switch {
	case raw.Label != nil && raw.Op != nil:
		return fmt.Errorf("%w: both label and op present", ErrMalformedInstruction)
	case raw.Label != nil:
		if *raw.Label == "" {
			return fmt.Errorf("%w: empty label", ErrMalformedInstruction)
		}
		*i = Instruction{Label: *raw.Label}
		return nil
	case raw.Op == nil || *raw.Op == "":
		return fmt.Errorf("%w: missing op field", ErrMalformedInstruction)
	}

	*i = Instruction{
		Op:     *raw.Op,
		Dest:   raw.Dest,
		Type:   typeName(raw.Type),
		Args:   raw.Args,
		Labels: raw.Labels,
		Funcs:  raw.Funcs,
		Value:  raw.Value,
	}
	return nil
}

// UnmarshalJSON accepts both primitive and parameterized argument types.
func (a *Arg) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string          `json:"name"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding argument: %w", err)
	}
	*a = Arg{Name: raw.Name, Type: typeName(raw.Type)}
	return nil
}

// MarshalJSON writes parameterized types back as objects.
func (a Arg) MarshalJSON() ([]byte, error) {
	t, err := typeJSON(a.Type)
	if err != nil {
		return nil, err
	}
	return marshal(struct {
		Name string          `json:"name"`
		Type json.RawMessage `json:"type,omitempty"`
	}{a.Name, t})
}

// wireInstruction is the encoded form of an Instruction.
type wireInstruction struct {
	Label  string          `json:"label,omitempty"`
	Op     string          `json:"op,omitempty"`
	Dest   string          `json:"dest,omitempty"`
	Type   json.RawMessage `json:"type,omitempty"`
	Args   []string        `json:"args,omitempty"`
	Labels []string        `json:"labels,omitempty"`
	Funcs  []string        `json:"funcs,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON writes parameterized types back as objects.
func (i Instruction) MarshalJSON() ([]byte, error) {
	t, err := typeJSON(i.Type)
	if err != nil {
		return nil, err
	}
	return marshal(wireInstruction{
		Label:  i.Label,
		Op:     i.Op,
		Dest:   i.Dest,
		Type:   t,
		Args:   i.Args,
		Labels: i.Labels,
		Funcs:  i.Funcs,
		Value:  i.Value,
	})
}

// UnmarshalJSON decodes a function. A malformed instruction does not fail
// the decode: the function keeps its name and arguments, has no
// instructions, and reports the problem through Err.
func (f *Function) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string            `json:"name"`
		Args   []Arg             `json:"args"`
		Type   json.RawMessage   `json:"type"`
		Instrs []json.RawMessage `json:"instrs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding function: %w", err)
	}
	*f = Function{Name: raw.Name, Args: raw.Args, Type: typeName(raw.Type)}
	if raw.Instrs == nil {
		return nil
	}

	instrs := make([]Instruction, len(raw.Instrs))
	for i, msg := range raw.Instrs {
		if err := json.Unmarshal(msg, &instrs[i]); err != nil {
			f.err = fmt.Errorf("function %s: instruction %d: %w", raw.Name, i, err)
			return nil
		}
	}
	f.Instrs = instrs
	return nil
}

// MarshalJSON writes parameterized return types back as objects.
func (f Function) MarshalJSON() ([]byte, error) {
	t, err := typeJSON(f.Type)
	if err != nil {
		return nil, err
	}
	return marshal(struct {
		Name   string          `json:"name"`
		Args   []Arg           `json:"args,omitempty"`
		Type   json.RawMessage `json:"type,omitempty"`
		Instrs []Instruction   `json:"instrs"`
	}{f.Name, f.Args, t, f.Instrs})
}

// marshal encodes v without HTML escaping so literal values keep their
// operators.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// typeName flattens Bril parameterized types ({"ptr": "int"}) to their
// compact JSON text ({"ptr":"int"}); primitive types stay plain strings.
func typeName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// typeJSON reverses typeName.
func typeJSON(t string) (json.RawMessage, error) {
	if t == "" {
		return nil, nil
	}
	if strings.HasPrefix(t, "{") && json.Valid([]byte(t)) {
		return json.RawMessage(t), nil
	}
	data, err := marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding type %q: %w", t, err)
	}
	return data, nil
}

// Decode reads a JSON program. Only a syntax error or an unnamed function
// fails the whole program; a malformed instruction is attached to its
// function (see Function.Err).
func Decode(r io.Reader) (*Program, error) {
	var prog Program
	dec := json.NewDecoder(r)
	if err := dec.Decode(&prog); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	for i, fn := range prog.Functions {
		if fn.Name == "" {
			return nil, fmt.Errorf("function %d has no name", i)
		}
	}
	return &prog, nil
}

// Encode writes the program as indented JSON.
func Encode(w io.Writer, prog *Program) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(prog); err != nil {
		return fmt.Errorf("encoding program: %w", err)
	}
	return nil
}

// LoadFile reads a JSON program from path; "-" reads stdin.
func LoadFile(path string) (*Program, error) {
	if path == "-" {
		return Decode(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening program %s: %w", path, err)
	}
	defer f.Close()

	prog, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}
