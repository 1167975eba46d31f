package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/internal/log"
	"github.com/l3aro/go-dominance/pkg/dom"
	"github.com/l3aro/go-dominance/pkg/gossa"
	"github.com/l3aro/go-dominance/pkg/report"
)

// ssaCmd represents the ssa command
var ssaCmd = &cobra.Command{
	Use:   "ssa [packages]",
	Short: "Analyze Go packages through go/ssa",
	Long: `Loads and type-checks Go packages, builds their SSA form and runs the
dominance analysis on the basic blocks of every source function.

With --verify each dominator tree is compared with the one go/ssa computed
and with a Lengauer-Tarjan solver.

Examples:
  gdom ssa ./...
  gdom ssa --dir ../project ./pkg/... --function 'example.com/p.Run'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"./..."}
		}
		dir, _ := cmd.Flags().GetString("dir")
		only, _ := cmd.Flags().GetString("function")
		logger := log.Default()

		spinner := log.NewSpinner(fmt.Sprintf("Loading %v", args))
		spinner.Start()
		fns, err := gossa.Load(cmd.Context(), dir, args...)
		spinner.Stop()
		if err != nil {
			return err
		}
		logger.Debug("loaded packages", "functions", len(fns))

		var funcs []report.Function
		failed := 0
		for _, fn := range fns {
			name := fn.String()
			if only != "" && name != only {
				continue
			}

			f, info, err := gossa.Analyze(fn)
			if err == nil && settings.Verify {
				if err = gossa.CheckIdom(f, info.Tree); err == nil {
					err = dom.CrossCheck(f, info.Tree)
				}
			}
			if err != nil {
				logger.Warn("analysis failed", "function", name, "error", err)
				if settings.FailFast {
					return err
				}
				failed++
				funcs = append(funcs, report.Function{Name: name, Error: err.Error()})
				continue
			}
			funcs = append(funcs, report.FromGraph(name, f, info, report.ViewDom))
		}

		if err := report.Encode(cmd.OutOrStdout(), settings.Format, funcs); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d", errFunctionsFailed, failed, len(funcs))
		}
		return nil
	},
}

func init() {
	ssaCmd.Flags().String("dir", ".", "Directory to load packages from")
}
