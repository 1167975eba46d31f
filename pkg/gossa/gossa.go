// Package gossa runs the dominance engine over functions built by
// golang.org/x/tools/go/ssa.
package gossa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/l3aro/go-dominance/pkg/dom"
)

// ErrLoad is returned when packages fail to load or type-check.
var ErrLoad = errors.New("loading packages")

// Func adapts an *ssa.Function to dom.Graph. Blocks are named by their
// index, with the builder's comment appended when present ("0.entry").
type Func struct {
	Fn *ssa.Function

	names []string
	index map[string]*ssa.BasicBlock
}

// NewFunc wraps fn. The recover block, if any, is listed last.
func NewFunc(fn *ssa.Function) *Func {
	f := &Func{
		Fn:    fn,
		names: make([]string, 0, len(fn.Blocks)),
		index: make(map[string]*ssa.BasicBlock, len(fn.Blocks)),
	}
	for _, b := range fn.Blocks {
		name := BlockName(b)
		f.names = append(f.names, name)
		f.index[name] = b
	}
	return f
}

// BlockName returns the graph name of an ssa block.
func BlockName(b *ssa.BasicBlock) string {
	if b.Comment == "" {
		return strconv.Itoa(b.Index)
	}
	return strconv.Itoa(b.Index) + "." + b.Comment
}

func (f *Func) BlockNames() []string { return f.names }

func (f *Func) Succs(name string) []string {
	b, ok := f.index[name]
	if !ok {
		return nil
	}
	return blockNames(b.Succs)
}

func (f *Func) Preds(name string) []string {
	b, ok := f.index[name]
	if !ok {
		return nil
	}
	return blockNames(b.Preds)
}

// Instrs renders the instructions of a block.
func (f *Func) Instrs(name string) []string {
	b, ok := f.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(b.Instrs))
	for _, instr := range b.Instrs {
		if v, ok := instr.(ssa.Value); ok && v.Name() != "" {
			out = append(out, v.Name()+" = "+instr.String())
			continue
		}
		out = append(out, instr.String())
	}
	return out
}

func blockNames(bs []*ssa.BasicBlock) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = BlockName(b)
	}
	return out
}

// Analyze runs the dominance engine on fn.
func Analyze(fn *ssa.Function) (*Func, *dom.Info, error) {
	f := NewFunc(fn)
	info, err := dom.Analyze(f)
	if err != nil {
		return nil, nil, fmt.Errorf("function %s: %w", fn.String(), err)
	}
	return f, info, nil
}

// CheckIdom compares t with the dominator tree go/ssa computed while
// building fn. The recover block is skipped: go/ssa hangs it under the
// entry even though no edge reaches it.
func CheckIdom(f *Func, t *dom.Tree) error {
	for _, b := range f.Fn.Blocks {
		if b == f.Fn.Recover {
			continue
		}
		name := BlockName(b)
		got, ok := t.Idom(name)

		want := b.Idom()
		switch {
		case want == nil && ok:
			return fmt.Errorf("%w: function %s: block %s has idom %s, go/ssa has none",
				dom.ErrTreeInconsistency, f.Fn.String(), name, got)
		case want != nil && got != BlockName(want):
			return fmt.Errorf("%w: function %s: block %s has idom %q, go/ssa has %s",
				dom.ErrTreeInconsistency, f.Fn.String(), name, got, BlockName(want))
		}
	}
	return nil
}

// Load type-checks the packages matching patterns under dir, builds SSA
// for them and returns their source functions sorted by name. Functions
// without a body and wrappers synthesized by go/ssa are left out.
func Load(ctx context.Context, dir string, patterns ...string) ([]*ssa.Function, error) {
	config := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports | packages.NeedDeps,
	}
	initial, err := packages.Load(config, patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if n := packages.PrintErrors(initial); n > 0 {
		return nil, fmt.Errorf("%w: %d package errors", ErrLoad, n)
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: no packages match %v", ErrLoad, patterns)
	}

	prog, pkgs := ssautil.Packages(initial, ssa.InstantiateGenerics)
	prog.Build()

	return Functions(prog, pkgs...), nil
}

// Functions lists the source functions of pkgs, anonymous functions
// included, sorted by their qualified name.
func Functions(prog *ssa.Program, pkgs ...*ssa.Package) []*ssa.Function {
	want := make(map[*ssa.Package]bool, len(pkgs))
	for _, p := range pkgs {
		if p != nil {
			want[p] = true
		}
	}

	var out []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Synthetic != "" || len(fn.Blocks) == 0 || !want[fn.Pkg] {
			continue
		}
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
