package dom

// Complexity returns the cyclomatic complexity of the part of g reachable
// from the entry: edges minus blocks plus two. An empty graph scores 0.
func (s *Sets) Complexity(g Graph) int {
	nodes, edges := 0, 0
	for i, name := range s.names {
		if !s.reachable[i] {
			continue
		}
		nodes++
		edges += len(g.Succs(name))
	}
	if nodes == 0 {
		return 0
	}
	return edges - nodes + 2
}
