package report

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// encodeDOT draws each function as a cluster. Control flow edges are solid
// and labelled by branch position; dominator tree edges, when present, are
// dashed.
func encodeDOT(w io.Writer, funcs []Function) error {
	buf := []string{
		"digraph CFG {",
		`    graph [ fontname = "Fira Code" ]`,
		`    node [ fontname = "Fira Code" fontsize = "12" shape = "plaintext" ]`,
		`    edge [ fontname = "Fira Code" ]`,
	}

	for i, f := range funcs {
		id := func(block string) string {
			return fmt.Sprintf(`"f%d_%s"`, i, escape(block))
		}

		buf = append(buf,
			fmt.Sprintf(`    subgraph cluster_%d {`, i),
			fmt.Sprintf(`        label = "%s"`, escape(f.Name)),
		)
		if f.Error != "" {
			buf = append(buf, fmt.Sprintf(`        %s [ label = "%s" ]`, id("error"), escape(f.Error)), "    }")
			continue
		}

		for _, b := range f.Blocks {
			buf = append(buf, fmt.Sprintf(`        %s [ label = < %s > ]`, id(b.Name), blockTable(b)))
		}
		for _, b := range f.Blocks {
			for k, s := range b.Succs {
				buf = append(buf, fmt.Sprintf(`        %s -> %s [ label = "%s" ]`, id(b.Name), id(s), edgeLabel(k, len(b.Succs))))
			}
		}
		for _, b := range f.Blocks {
			if d, ok := f.Idom[b.Name]; ok {
				buf = append(buf, fmt.Sprintf(`        %s -> %s [ style = "dashed" color = "blue" constraint = "false" ]`, id(d), id(b.Name)))
			}
		}
		buf = append(buf, "    }")
	}

	buf = append(buf, "}", "")
	_, err := io.WriteString(w, strings.Join(buf, "\n"))
	return err
}

func edgeLabel(k, n int) string {
	switch {
	case n == 1:
		return "goto"
	case n == 2 && k == 0:
		return "true"
	case n == 2:
		return "false"
	default:
		return fmt.Sprintf("%d", k)
	}
}

func blockTable(b Block) string {
	buf := []string{
		`<table border="1" cellborder="0" cellspacing="0" cellpadding="2">`,
		fmt.Sprintf(`<tr><td align="left"><b>%s</b></td></tr>`, html.EscapeString(b.Name)),
	}
	for _, instr := range b.Instrs {
		buf = append(buf, fmt.Sprintf(`<tr><td align="left">%s</td></tr>`, html.EscapeString(instr)))
	}
	buf = append(buf, "</table>")
	return strings.Join(buf, "")
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
