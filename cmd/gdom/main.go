// Package main implements the gdom CLI. It builds control flow graphs from
// JSON programs, Go source files or Go packages and reports their
// dominators, dominator trees and dominance frontiers.
package main

import (
	"os"

	"github.com/l3aro/go-dominance/cmd/gdom/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`gdom version {{.Version}}
`)
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (built " + buildTime + ")"
	}

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
