package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/migrate"
)

func NewMigrateCommand(opts *Options) *cobra.Command {
	var (
		dryRun     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "migrate <source-file>",
		Short: "Migrate a legacy plaintext credential file into a provider",
		Long: `Migrate credentials from a legacy plaintext file into the first
writable provider. The source file is never modified or deleted; re-running
against an already-migrated target overwrites with identical values, so the
operation is safe to retry.

Accepted source formats: a YAML mapping of key to value bundle, or flat
KEY=VALUE lines.

Examples:
  # See what would happen first
  credvault migrate legacy-secrets.yaml --dry-run

  # Do it
  credvault migrate legacy-secrets.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.Service()
			if err != nil {
				return err
			}

			migrator, err := migrate.New(migrate.Config{
				Manager: svc.Manager(),
				Audit:   svc.AuditLogger(),
				Logger:  opts.Logger,
				User:    opts.User,
			})
			if err != nil {
				return err
			}

			report, err := migrator.Migrate(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(report); err != nil {
					return err
				}
			} else {
				opts.Logger.Info("migrated %d, skipped %d, errors %d",
					len(report.Migrated), len(report.Skipped), len(report.Errors))
				for _, e := range report.Errors {
					opts.Logger.Error("%s", e)
				}
			}

			if len(report.Errors) > 0 {
				return fmt.Errorf("%d credentials failed to migrate", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be migrated without writing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}
