package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weave-labs/toolweave/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "toolweave",
	Short: "ToolWeave tool registry and composition CLI",
	Long:  "ToolWeave — a CLI for registering tools, discovering them by capability, and composing them into executable workflows.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress all output except errors")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("toolweave version %s\n", version))

	rootCmd.AddCommand(cli.NewToolsCmd())
	rootCmd.AddCommand(cli.NewWorkflowCmd())
}
