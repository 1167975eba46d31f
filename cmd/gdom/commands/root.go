// Package commands provides the CLI commands for gdom.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/internal/config"
	"github.com/l3aro/go-dominance/internal/log"
)

// settings is the effective configuration: config files, environment and
// then explicit flags.
var settings = config.DefaultConfig()

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gdom",
	Short: "gdom - control flow graphs and dominance analysis",
	Long: `gdom splits functions into basic blocks, builds their control flow graph
and computes dominators, the dominator tree and dominance frontiers.

Commands:
  blocks      Split functions into named basic blocks
  cfg         Show successors and predecessors of every block
  dom         Dominator sets, dominator tree and dominance frontiers
  dataflow    Defined variables, def-use chains and control dependences
  slice       Backward or forward slice of a function
  source      Analyze functions of a Go source file
  ssa         Analyze Go packages through go/ssa
  init        Create a configuration file interactively

Use "gdom [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.String("config", "", "Config file path (default: ~/.gdom/config.yaml then ./.gdom/config.yaml)")
	flags.StringP("format", "f", config.FormatText, "Output format: text, json, yaml, msgpack or dot")
	flags.String("function", "", "Only analyze the named function")
	flags.String("prefix", "b", "Prefix for generated block names")
	flags.Int("parallel", 1, "Number of functions analyzed concurrently")
	flags.Bool("verify", false, "Cross-check dominator trees with Lengauer-Tarjan")
	flags.Bool("fail-fast", false, "Stop at the first function that fails")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("verbose", false, "Verbose logging (same as --log-level debug)")
	flags.Bool("log-json", false, "Log as JSON lines")

	RootCmd.AddCommand(blocksCmd)
	RootCmd.AddCommand(cfgCmd)
	RootCmd.AddCommand(domCmd)
	RootCmd.AddCommand(dataflowCmd)
	RootCmd.AddCommand(sliceCmd)
	RootCmd.AddCommand(sourceCmd)
	RootCmd.AddCommand(ssaCmd)
	RootCmd.AddCommand(initCmd)
}

func loadSettings(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("prefix") {
		cfg.NamePrefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("parallel") {
		cfg.Parallelism, _ = flags.GetInt("parallel")
	}
	if flags.Changed("verify") {
		cfg.Verify, _ = flags.GetBool("verify")
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast, _ = flags.GetBool("fail-fast")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.Default()
	logger.SetLevel(cfg.Level())
	logger.SetJSONOutput(cfg.LogJSON)

	settings = cfg
	return nil
}
