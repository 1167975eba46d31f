package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// encodeText prints one section per function. Map sections follow block
// order and skip blocks without an entry.
func encodeText(w io.Writer, funcs []Function) error {
	bw := bufio.NewWriter(w)
	for i, f := range funcs {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		writeFunction(bw, f)
	}
	return bw.Flush()
}

func writeFunction(w io.Writer, f Function) {
	fmt.Fprintf(w, "@%s\n", f.Name)
	if f.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", f.Error)
		return
	}

	edges := false
	for _, b := range f.Blocks {
		edges = edges || b.Succs != nil || b.Preds != nil
	}

	for _, b := range f.Blocks {
		fmt.Fprintf(w, "  .%s:\n", b.Name)
		for _, instr := range b.Instrs {
			fmt.Fprintf(w, "    %s\n", instr)
		}
		if edges {
			fmt.Fprintf(w, "    succs: %s\n", list(b.Succs))
			fmt.Fprintf(w, "    preds: %s\n", list(b.Preds))
		}
	}

	if f.Complexity > 0 {
		fmt.Fprintf(w, "  complexity: %d\n", f.Complexity)
	}

	order := make([]string, len(f.Blocks))
	for i, b := range f.Blocks {
		order[i] = b.Name
	}

	writeSets(w, "dominators", order, f.Dominators)
	if len(f.Idom) > 0 {
		fmt.Fprintln(w, "  idom:")
		for _, name := range order {
			if d, ok := f.Idom[name]; ok {
				fmt.Fprintf(w, "    %s: %s\n", name, d)
			}
		}
	}
	writeSets(w, "children", order, f.Children)
	writeSets(w, "frontier", order, f.Frontier)

	if f.Defined != nil {
		fmt.Fprintln(w, "  defined:")
		for _, name := range order {
			fmt.Fprintf(w, "    %s: in %s out %s\n", name, list(f.Defined.In[name]), list(f.Defined.Out[name]))
		}
	}
	if len(f.Chains) > 0 {
		fmt.Fprintln(w, "  chains:")
		for _, c := range f.Chains {
			def := fmt.Sprintf("%s[%d]", c.Def.Block, c.Def.Index)
			if c.Def.Index < 0 {
				def = "arg"
			}
			fmt.Fprintf(w, "    %s: %s -> %s[%d]\n", c.Use.Var, def, c.Use.Block, c.Use.Index)
		}
	}
	if len(f.Ipdom) > 0 {
		fmt.Fprintln(w, "  ipdom:")
		for _, name := range order {
			if d, ok := f.Ipdom[name]; ok {
				fmt.Fprintf(w, "    %s: %s\n", name, d)
			}
		}
	}
	writeSets(w, "control", order, f.Control)
}

func writeSets(w io.Writer, title string, order []string, sets map[string][]string) {
	if len(sets) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", title)
	for _, name := range order {
		if s, ok := sets[name]; ok {
			fmt.Fprintf(w, "    %s: %s\n", name, list(s))
		}
	}
}

func list(xs []string) string {
	if len(xs) == 0 {
		return "-"
	}
	return strings.Join(xs, " ")
}
