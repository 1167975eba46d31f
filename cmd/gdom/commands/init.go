package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-dominance/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gdom configuration interactively",
	Long: `Guides you through setting up gdom configuration step by step and writes
a global or project config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Block naming and analysis ===
	parallelism := strconv.Itoa(cfg.Parallelism)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Block name prefix").
				Description("Unlabelled blocks are named <prefix>1, <prefix>2, ...").
				Placeholder("b").
				Value(&cfg.NamePrefix),
			huh.NewInput().
				Title("Functions analyzed concurrently").
				Placeholder("1").
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&parallelism),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Parallelism, _ = strconv.Atoi(parallelism)

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Verify dominator trees").
				Description("Cross-check every tree with a Lengauer-Tarjan solver?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.Verify),
			huh.NewConfirm().
				Title("Failure handling").
				Description("Stop at the first function that fails?").
				Affirmative("Stop").
				Negative("Keep going").
				Value(&cfg.FailFast),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Output ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Description("Default format for reports").
				Options(
					huh.NewOption("Text", config.FormatText),
					huh.NewOption("JSON", config.FormatJSON),
					huh.NewOption("YAML", config.FormatYAML),
					huh.NewOption("MessagePack", config.FormatMsgpack),
					huh.NewOption("Graphviz DOT", config.FormatDOT),
				).
				Value(&cfg.Format),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.gdom/config.yaml)", "global"),
					huh.NewOption("Project (./.gdom/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Block prefix: %s\n", cfg.NamePrefix)
	fmt.Printf("Parallelism: %d\n", cfg.Parallelism)
	fmt.Printf("Verify: %t\n", cfg.Verify)
	fmt.Printf("Fail fast: %t\n", cfg.FailFast)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}
