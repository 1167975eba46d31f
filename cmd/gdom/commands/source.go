package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/internal/log"
	"github.com/l3aro/go-dominance/internal/scanner"
	"github.com/l3aro/go-dominance/pkg/frontend/golang"
	"github.com/l3aro/go-dominance/pkg/ir"
	"github.com/l3aro/go-dominance/pkg/report"
)

// sourceCmd represents the source command
var sourceCmd = &cobra.Command{
	Use:   "source <file.go|dir> [function]",
	Short: "Analyze the functions of Go source files",
	Long: `Parses Go source with tree-sitter, lowers each function body to the
instruction form used by the other commands and analyzes it.

Given a directory, every Go file below it is lowered except hidden files,
vendor and testdata directories and paths matched by a .gdomignore file.
Function names are then qualified by file, "path/file.go:Name".

Examples:
  gdom source main.go
  gdom source main.go Server.Handle --view cfg --format dot
  gdom source main.go --emit-ir > prog.json
  gdom source ./internal --skip-tests`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := lowerSource(cmd, args[0])
		if err != nil {
			return fmt.Errorf("lowering source: %w", err)
		}
		if len(args) == 2 {
			fn, err := prog.Lookup(args[1])
			if err != nil {
				return fmt.Errorf("%w: %s", golang.ErrFunctionNotFound, args[1])
			}
			prog = &ir.Program{Functions: []ir.Function{*fn}}
		}

		if emit, _ := cmd.Flags().GetBool("emit-ir"); emit {
			return ir.Encode(cmd.OutOrStdout(), prog)
		}

		viewName, _ := cmd.Flags().GetString("view")
		view, err := parseView(viewName)
		if err != nil {
			return err
		}
		return runProgram(cmd, prog, view)
	},
}

func init() {
	sourceCmd.Flags().Bool("emit-ir", false, "Print the lowered program as JSON instead of analyzing it")
	sourceCmd.Flags().String("view", "dom", "Report view: blocks, cfg, dom or dataflow")
	sourceCmd.Flags().Bool("skip-tests", false, "Skip _test.go files when given a directory")
}

func lowerSource(cmd *cobra.Command, path string) (*ir.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return golang.LowerFile(cmd.Context(), path)
	}

	opts := scanner.DefaultOptions()
	opts.SkipTests, _ = cmd.Flags().GetBool("skip-tests")
	files, err := scanner.New(opts).Scan(path)
	if err != nil {
		return nil, err
	}
	log.Default().Debug("scanned directory", "dir", path, "files", len(files))

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(path, filepath.FromSlash(f.Path))
	}
	return golang.LowerFiles(cmd.Context(), paths)
}

func parseView(s string) (report.View, error) {
	switch s {
	case "blocks":
		return report.ViewBlocks, nil
	case "cfg":
		return report.ViewCFG, nil
	case "dom":
		return report.ViewDom, nil
	case "dataflow":
		return report.ViewDataflow, nil
	default:
		return 0, fmt.Errorf("unknown view %q (use blocks, cfg, dom or dataflow)", s)
	}
}
