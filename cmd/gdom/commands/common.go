package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/internal/log"
	"github.com/l3aro/go-dominance/pkg/analysis"
	"github.com/l3aro/go-dominance/pkg/ir"
	"github.com/l3aro/go-dominance/pkg/report"
)

// errFunctionsFailed is returned after the report is written when at least
// one function could not be analyzed.
var errFunctionsFailed = errors.New("some functions failed")

// programArgs accepts one program file.
var programArgs = cobra.ExactArgs(1)

// selectFunction narrows prog to the function named by --function, if set.
func selectFunction(cmd *cobra.Command, prog *ir.Program) (*ir.Program, error) {
	name, _ := cmd.Flags().GetString("function")
	if name == "" {
		return prog, nil
	}
	fn, err := prog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &ir.Program{Functions: []ir.Function{*fn}}, nil
}

// runProgramFile analyzes the program at path and writes the report.
func runProgramFile(cmd *cobra.Command, path string, view report.View) error {
	prog, err := ir.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading program: %w", err)
	}
	return runProgram(cmd, prog, view)
}

// runProgram analyzes prog with the effective settings and writes a report
// of the requested view to the command output.
func runProgram(cmd *cobra.Command, prog *ir.Program, view report.View) error {
	prog, err := selectFunction(cmd, prog)
	if err != nil {
		return err
	}

	results, err := analysis.AnalyzeProgram(cmd.Context(), prog, analysis.Options{
		NamePrefix:  settings.NamePrefix,
		Parallelism: settings.Parallelism,
		Verify:      settings.Verify,
		FailFast:    settings.FailFast,
		Dataflow:    view >= report.ViewDataflow,
		Logger:      log.Default(),
	})
	if err != nil {
		return fmt.Errorf("analyzing program: %w", err)
	}

	if err := report.Encode(cmd.OutOrStdout(), settings.Format, report.FromResults(results, view)); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if failed := analysis.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d", errFunctionsFailed, len(failed), len(results))
	}
	return nil
}
