package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/cmd/credvault/commands"
	"github.com/systmms/credvault/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		user       string
		noColor    bool
		debug      bool
	)

	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "credvault",
		Short: "Manage credentials behind access control and an audit trail",
		Long: `credvault reads and writes credentials through a configured provider
chain. Every operation passes policy and rate-limit checks and lands in the
audit log.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.ConfigFile = configFile
			opts.User = user
			opts.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credvault.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&user, "user", defaultUser(), "Identity for access control and audit")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewGetCommand(opts),
		commands.NewSetCommand(opts),
		commands.NewListCommand(opts),
		commands.NewDeleteCommand(opts),
		commands.NewAuditCommand(opts),
		commands.NewMigrateCommand(opts),
		commands.NewCompletionCommand(opts),
	)

	return rootCmd.Execute()
}

func defaultUser() string {
	if u := os.Getenv("CREDVAULT_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}
