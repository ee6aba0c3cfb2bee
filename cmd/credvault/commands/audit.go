package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/pkg/audit"
)

func NewAuditCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(newAuditQueryCommand(opts))
	return cmd
}

func newAuditQueryCommand(opts *Options) *cobra.Command {
	var (
		eventType  string
		user       string
		key        string
		since      string
		until      string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query audit events in chronological order",
		Long: `Query the audit trail with optional filters.

Examples:
  # Everything admin did to prod_db in the last day
  credvault audit query --filter-user admin --credential prod_db --since 24h

  # Recent denials
  credvault audit query --event-type access_denied --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := audit.Filter{
				EventType:     eventType,
				User:          user,
				CredentialKey: key,
			}

			var err error
			if filter.Since, err = parseTimeFlag(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if filter.Until, err = parseTimeFlag(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			svc, err := opts.Service()
			if err != nil {
				return err
			}
			events, err := svc.QueryAudit(filter, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(events)
			}
			for _, e := range events {
				fmt.Printf("%s  %-18s %-10s user=%s key=%s\n",
					e.Timestamp.Format(time.RFC3339), e.EventType, e.Outcome, e.User, e.CredentialKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "event-type", "", "Filter by event type")
	cmd.Flags().StringVar(&user, "filter-user", "", "Filter by acting user")
	cmd.Flags().StringVar(&key, "credential", "", "Filter by credential key")
	cmd.Flags().StringVar(&since, "since", "", "Lower time bound (RFC3339, or a duration back from now)")
	cmd.Flags().StringVar(&until, "until", "", "Upper time bound (RFC3339, or a duration back from now)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to return (0 = unlimited)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// parseTimeFlag accepts an absolute RFC3339 timestamp or a duration meaning
// "that long ago".
func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	return time.Now().Add(-d), nil
}
