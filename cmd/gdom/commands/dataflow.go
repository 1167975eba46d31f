package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/pkg/report"
)

// dataflowCmd represents the dataflow command
var dataflowCmd = &cobra.Command{
	Use:   "dataflow <program.json>",
	Short: "Defined variables, def-use chains and control dependences",
	Long: `Runs the dominance analysis and two forward dataflow passes on top of the
control flow graph: the variables defined on entry to and exit from each
block, and the definitions reaching each use. Post-dominators and the
control dependences derived from them are listed as well.`,
	Args: programArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFile(cmd, args[0], report.ViewDataflow)
	},
}
