package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/pkg/report"
)

// blocksCmd represents the blocks command
var blocksCmd = &cobra.Command{
	Use:   "blocks <program.json>",
	Short: "Split functions into named basic blocks",
	Long: `Splits every function of a JSON program into basic blocks. Blocks that do
not start with a label get a generated name; names are unique across the
whole program.`,
	Args: programArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProgramFile(cmd, args[0], report.ViewBlocks)
	},
}
