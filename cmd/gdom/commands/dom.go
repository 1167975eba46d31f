package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/pkg/report"
)

// domCmd represents the dom command
var domCmd = &cobra.Command{
	Use:   "dom <program.json>",
	Short: "Compute dominators, dominator trees and dominance frontiers",
	Long: `Computes for every function the set of dominators of each block, the
immediate dominator tree and the dominance frontier of each block.

Blocks unreachable from the entry are dominated only by themselves and are
left out of the tree and the frontiers.`,
	Args: programArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFile(cmd, args[0], report.ViewDom)
	},
}
