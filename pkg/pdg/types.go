// Package pdg builds block-level program dependence graphs. Control
// dependence comes from the dominance frontier of the reversed control flow
// graph, data dependence from def-use chains.
package pdg

// DepType represents the type of dependence in a PDG edge.
type DepType string

const (
	DepTypeControl DepType = "control"
	DepTypeData    DepType = "data"
)

// Edge is a dependence of Target on Source. Data edges carry the variable
// in Label.
type Edge struct {
	Source  string  `json:"source" yaml:"source" msgpack:"source"`
	Target  string  `json:"target" yaml:"target" msgpack:"target"`
	DepType DepType `json:"dep_type" yaml:"dep_type" msgpack:"dep_type"`
	Label   string  `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
}

// Graph is the dependence graph of one function. Its nodes are the blocks
// of the control flow graph.
type Graph struct {
	Function string
	Blocks   []string
	// Ipdom maps each block to its immediate post-dominator. Blocks that
	// return are post-dominated by ExitBlock.
	Ipdom map[string]string
	Edges []Edge

	incoming map[string][]Edge
	outgoing map[string][]Edge
}
