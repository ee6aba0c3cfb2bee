package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/pkg/credential"
)

func NewSetCommand(opts *Options) *cobra.Command {
	var (
		fields   []string
		jsonBody string
		stdin    bool
	)

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a credential",
		Long: `Store a credential value bundle through the first writable provider.

The value comes from repeated --field name=value flags, a --json document,
or stdin. Passing secrets on the command line exposes them to process
listings; prefer --stdin for anything sensitive.

Examples:
  # Field flags
  credvault set db_credentials --field user=app --field pass=hunter2

  # JSON from stdin
  echo '{"user":"app","pass":"hunter2"}' | credvault set db_credentials --stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := buildValue(fields, jsonBody, stdin, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, err := opts.Service()
			if err != nil {
				return err
			}

			key := args[0]
			if err := svc.SetCredential(cmd.Context(), opts.User, key, value); err != nil {
				return err
			}
			opts.Logger.Info("stored credential %s", key)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "Value field as name=value (repeatable)")
	cmd.Flags().StringVar(&jsonBody, "json", "", "Value bundle as a JSON object")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read the value bundle as JSON from stdin")

	return cmd
}

func buildValue(fields []string, jsonBody string, stdin bool, in io.Reader) (credential.Value, error) {
	sources := 0
	if len(fields) > 0 {
		sources++
	}
	if jsonBody != "" {
		sources++
	}
	if stdin {
		sources++
	}
	if sources == 0 {
		return nil, fmt.Errorf("no value given; use --field, --json or --stdin")
	}
	if sources > 1 {
		return nil, fmt.Errorf("--field, --json and --stdin are mutually exclusive")
	}

	if stdin {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		jsonBody = string(data)
	}
	if jsonBody != "" {
		var value credential.Value
		if err := json.Unmarshal([]byte(jsonBody), &value); err != nil {
			return nil, fmt.Errorf("value is not a JSON object: %w", err)
		}
		return value, nil
	}

	value := make(credential.Value, len(fields))
	for _, f := range fields {
		name, v, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --field %q: expected name=value", f)
		}
		value[name] = v
	}
	return value, nil
}
