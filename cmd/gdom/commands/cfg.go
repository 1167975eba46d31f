package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/pkg/report"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <program.json>",
	Short: "Build the control flow graph of each function",
	Long: `Builds the control flow graph of every function: blocks get explicit
terminators and each block lists its successors and predecessors.

Use --format dot to render the graphs with Graphviz.`,
	Args: programArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFile(cmd, args[0], report.ViewCFG)
	},
}
