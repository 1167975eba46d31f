// Package analysis drives CFG construction and dominance analysis over
// whole programs.
package analysis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-dominance/internal/log"
	"github.com/l3aro/go-dominance/pkg/cfg"
	"github.com/l3aro/go-dominance/pkg/dataflow"
	"github.com/l3aro/go-dominance/pkg/dom"
	"github.com/l3aro/go-dominance/pkg/ir"
	"github.com/l3aro/go-dominance/pkg/pdg"
)

// Options controls a program run.
type Options struct {
	// NamePrefix is the prefix of generated block names. Empty means "b".
	NamePrefix string
	// Parallelism bounds the number of functions analyzed at once.
	// Values below 1 mean serial.
	Parallelism int
	// Verify cross-checks every dominator tree against Lengauer-Tarjan.
	Verify bool
	// FailFast aborts the run at the first failing function.
	FailFast bool
	// Dataflow also computes defined variables, def-use chains and the
	// dependence graph.
	Dataflow bool
	Logger   log.Logger
}

// Result is the outcome for one function. Err is set when any stage
// failed, in which case CFG and Info are nil.
type Result struct {
	Function string
	Args     []ir.Arg
	CFG      *cfg.CFG
	Info     *dom.Info
	Defined  *dataflow.Result
	Chains   []dataflow.Chain
	PDG      *pdg.Graph
	Err      error
}

// Analyze runs normalization, edge resolution, the dominator solver, the
// tree builder and the frontier builder on already named blocks.
func Analyze(name string, blocks []*cfg.Block, verify bool) (*cfg.CFG, *dom.Info, error) {
	g, err := cfg.New(name, blocks)
	if err != nil {
		return nil, nil, err
	}

	info, err := dom.Analyze(g)
	if err != nil {
		return nil, nil, fmt.Errorf("function %s: %w", name, err)
	}

	if verify {
		if err := dom.CrossCheck(g, info.Tree); err != nil {
			return nil, nil, fmt.Errorf("function %s: %w", name, err)
		}
	}
	return g, info, nil
}

// AnalyzeProgram analyzes every function of prog. Block naming runs first
// and in program order so generated names do not depend on scheduling;
// the per-function stages may then run concurrently. Results keep program
// order. The returned error is non-nil only for cancellation or, with
// FailFast, the first function failure.
func AnalyzeProgram(ctx context.Context, prog *ir.Program, opts Options) ([]*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	prefix := opts.NamePrefix
	if prefix == "" {
		prefix = cfg.DefaultNamePrefix
	}
	namer := cfg.NewNamer(prefix)
	namer.ReserveProgram(prog)

	results := make([]*Result, len(prog.Functions))
	named := make([][]*cfg.Block, len(prog.Functions))
	for i, fn := range prog.Functions {
		results[i] = &Result{Function: fn.Name, Args: fn.Args}
		err := fn.Err()
		var blocks []*cfg.Block
		if err == nil {
			blocks, err = cfg.NameBlocks(cfg.FormBlocks(fn.Instrs), namer)
			if err != nil {
				err = fmt.Errorf("function %s: %w", fn.Name, err)
			}
		}
		if err != nil {
			logger.Warn("analysis failed", "function", fn.Name, "error", err)
			if opts.FailFast {
				return nil, err
			}
			results[i].Err = err
			continue
		}
		named[i] = blocks
	}

	eg, ctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	eg.SetLimit(limit)

	for i := range prog.Functions {
		res := results[i]
		if res.Err != nil {
			continue
		}
		blocks := named[i]

		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			flog := logger.With("function", res.Function)
			flog.Debug("analyzing function", "blocks", len(blocks))
			g, info, err := Analyze(res.Function, blocks, opts.Verify)
			if err != nil {
				flog.Warn("analysis failed", "error", err)
				res.Err = err
				if opts.FailFast {
					return err
				}
				return nil
			}

			res.CFG, res.Info = g, info
			if opts.Dataflow {
				res.Defined = dataflow.Defined(g, res.Args)
				res.Chains = dataflow.NewReachingDefs(g, res.Args).Chains(g)
				p, err := pdg.Build(res.Function, g, res.Chains)
				if err != nil {
					flog.Warn("dependence graph failed", "error", err)
					res.CFG, res.Info, res.Defined, res.Chains = nil, nil, nil, nil
					res.Err = err
					if opts.FailFast {
						return err
					}
					return nil
				}
				res.PDG = p
			}
			flog.Debug("analyzed function", "passes", info.Sets.Passes())
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Failed returns the results that carry an error.
func Failed(results []*Result) []*Result {
	var out []*Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
