// Package report renders analysis results as text, JSON, YAML, msgpack or
// Graphviz DOT.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-dominance/pkg/analysis"
	"github.com/l3aro/go-dominance/pkg/dataflow"
	"github.com/l3aro/go-dominance/pkg/dom"
)

// ErrUnknownFormat is returned by Encode for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// View selects which sections a report carries.
type View int

const (
	// ViewBlocks lists blocks and their instructions.
	ViewBlocks View = iota
	// ViewCFG adds successor and predecessor lists.
	ViewCFG
	// ViewDom adds dominator sets, the dominator tree and frontiers.
	ViewDom
	// ViewDataflow adds defined variables, def-use chains, post-dominators
	// and control dependences.
	ViewDataflow
)

// Block is one basic block.
type Block struct {
	Name   string   `json:"name" yaml:"name" msgpack:"name"`
	Instrs []string `json:"instrs" yaml:"instrs" msgpack:"instrs"`
	Succs  []string `json:"succs,omitempty" yaml:"succs,omitempty" msgpack:"succs,omitempty"`
	Preds  []string `json:"preds,omitempty" yaml:"preds,omitempty" msgpack:"preds,omitempty"`
}

// Function is the report for one function. Maps are keyed by block name.
type Function struct {
	Name       string              `json:"name" yaml:"name" msgpack:"name"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
	Blocks     []Block             `json:"blocks,omitempty" yaml:"blocks,omitempty" msgpack:"blocks,omitempty"`
	Complexity int                 `json:"complexity,omitempty" yaml:"complexity,omitempty" msgpack:"complexity,omitempty"`
	Dominators map[string][]string `json:"dominators,omitempty" yaml:"dominators,omitempty" msgpack:"dominators,omitempty"`
	Idom       map[string]string   `json:"idom,omitempty" yaml:"idom,omitempty" msgpack:"idom,omitempty"`
	Children   map[string][]string `json:"children,omitempty" yaml:"children,omitempty" msgpack:"children,omitempty"`
	Frontier   map[string][]string `json:"frontier,omitempty" yaml:"frontier,omitempty" msgpack:"frontier,omitempty"`
	Defined    *dataflow.Result    `json:"defined,omitempty" yaml:"defined,omitempty" msgpack:"defined,omitempty"`
	Chains     []dataflow.Chain    `json:"chains,omitempty" yaml:"chains,omitempty" msgpack:"chains,omitempty"`
	Ipdom      map[string]string   `json:"ipdom,omitempty" yaml:"ipdom,omitempty" msgpack:"ipdom,omitempty"`
	Control    map[string][]string `json:"control,omitempty" yaml:"control,omitempty" msgpack:"control,omitempty"`
}

// Graph is a control flow graph whose blocks can be listed as text.
type Graph interface {
	dom.Graph
	Instrs(block string) []string
}

// FromGraph builds a report from any graph and its dominance info. info may
// be nil below ViewDom.
func FromGraph(name string, g Graph, info *dom.Info, view View) Function {
	f := Function{Name: name}
	for _, b := range g.BlockNames() {
		block := Block{Name: b, Instrs: g.Instrs(b)}
		if view >= ViewCFG {
			block.Succs = g.Succs(b)
			block.Preds = g.Preds(b)
		}
		f.Blocks = append(f.Blocks, block)
	}

	if view >= ViewCFG && info != nil {
		f.Complexity = info.Sets.Complexity(g)
	}
	if view >= ViewDom && info != nil {
		f.Dominators = info.Sets.Map()
		f.Idom = info.Tree.IdomMap()
		f.Children = info.Tree.ChildrenMap()
		f.Frontier = info.Frontier.Map()
	}
	return f
}

// FromResult builds a report from a driver result.
func FromResult(r *analysis.Result, view View) Function {
	if r.Err != nil {
		return Function{Name: r.Function, Error: r.Err.Error()}
	}
	f := FromGraph(r.Function, cfgGraph{r}, r.Info, view)
	if view >= ViewDataflow {
		f.Defined = r.Defined
		f.Chains = r.Chains
		if r.PDG != nil {
			f.Ipdom = r.PDG.Ipdom
			f.Control = r.PDG.ControlDeps()
		}
	}
	return f
}

// FromResults converts every driver result.
func FromResults(results []*analysis.Result, view View) []Function {
	out := make([]Function, len(results))
	for i, r := range results {
		out[i] = FromResult(r, view)
	}
	return out
}

type cfgGraph struct {
	*analysis.Result
}

func (g cfgGraph) BlockNames() []string       { return g.CFG.BlockNames() }
func (g cfgGraph) Succs(name string) []string { return g.CFG.Succs(name) }
func (g cfgGraph) Preds(name string) []string { return g.CFG.Preds(name) }

func (g cfgGraph) Instrs(name string) []string {
	b, ok := g.CFG.Block(name)
	if !ok {
		return nil
	}
	out := make([]string, len(b.Instrs))
	for i, instr := range b.Instrs {
		out[i] = instr.String()
	}
	return out
}

// Encode writes funcs to w in the named format.
func Encode(w io.Writer, format string, funcs []Function) error {
	switch format {
	case "text", "":
		return encodeText(w, funcs)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(funcs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(funcs); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case "msgpack":
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(funcs); err != nil {
			return fmt.Errorf("encoding msgpack: %w", err)
		}
		return nil
	case "dot":
		return encodeDOT(w, funcs)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Decode reads back a report written in one of the structured formats.
func Decode(r io.Reader, format string) ([]Function, error) {
	var funcs []Function
	switch format {
	case "json":
		if err := json.NewDecoder(r).Decode(&funcs); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case "msgpack":
		if err := msgpack.NewDecoder(r).Decode(&funcs); err != nil {
			return nil, fmt.Errorf("decoding msgpack: %w", err)
		}
	case "yaml":
		if err := yaml.NewDecoder(r).Decode(&funcs); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return funcs, nil
}
