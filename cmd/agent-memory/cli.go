package main

import (
	"github.com/spf13/cobra"
)

// CLI is the command-line interface for the agent memory service.
// Grounded on the teacher's migrations.CLI: a root command plus one
// constructor method per subcommand, each building whatever it needs
// from a freshly loaded Config rather than sharing mutable state
// across subcommands.
type CLI struct {
	configPath string
}

// NewCLI constructs a CLI.
func NewCLI() *CLI {
	return &CLI{}
}

// GetRootCommand returns the root command with every subcommand
// attached.
func (cli *CLI) GetRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agent-memory",
		Short: "Structured memory service for AI coding agents",
		Long:  "Stores guidelines, knowledge, and tool descriptors scoped to org/project/session, and serves them over a tool-call protocol.",
	}

	root.PersistentFlags().StringVar(&cli.configPath, "config", "", "path to a YAML config file (optional, env vars and defaults otherwise)")

	root.AddCommand(
		cli.serveCommand(),
		cli.backupCommand(),
		cli.reindexCommand(),
		cli.verifyResponseCommand(),
		cli.setupHookCommand(),
		cli.syncRulesCommand(),
	)

	return root
}
