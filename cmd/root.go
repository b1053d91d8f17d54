// Package cmd provides the sqlagent command-line interface: an HTTP and MCP
// server, one-shot and interactive questions, and schema and tool listings.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version holds the build version. It is set at build time using -ldflags.
var Version = "0.0.0-dev"

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sqlagent",
	Short: "Answer questions about a database with validated, self-correcting SQL",
	Long: `sqlagent translates natural-language questions into read-only SQL, validates the
statement against a safety policy, executes it and asks the model to correct it when
the database rejects it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI application.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}
