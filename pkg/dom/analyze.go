package dom

// Info bundles the three dominance views of one function.
type Info struct {
	Sets     *Sets
	Tree     *Tree
	Frontier *Frontier
}

// Analyze runs the solver, the tree builder and the frontier builder in
// order. Any failure discards the partial results.
func Analyze(g Graph) (*Info, error) {
	sets, err := ComputeDominators(g)
	if err != nil {
		return nil, err
	}

	tree, err := BuildTree(sets)
	if err != nil {
		return nil, err
	}

	frontier, err := ComputeFrontier(g, tree)
	if err != nil {
		return nil, err
	}

	return &Info{Sets: sets, Tree: tree, Frontier: frontier}, nil
}
