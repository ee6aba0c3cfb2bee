package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/pkg/credential"
)

func NewGetCommand(opts *Options) *cobra.Command {
	var (
		credentialType string
		field          string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a credential",
		Long: `Fetch a credential through the provider chain.

By default the value bundle is printed as JSON. With --field only that
field's value is printed, making the output suitable for scripting.

Examples:
  # Full value bundle
  credvault get db_credentials

  # One field, raw
  export DB_PASS=$(credvault get db_credentials --field pass)

  # Enforce a registered credential type
  credvault get db_credentials --type database`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.Service()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			key := args[0]

			var cred credential.Credential
			if credentialType != "" {
				cred, err = svc.GetTypedCredential(ctx, opts.User, key, credentialType)
			} else {
				cred, err = svc.GetCredential(ctx, opts.User, key)
			}
			if err != nil {
				return err
			}

			if field != "" {
				v, ok := cred.Value[field]
				if !ok {
					return fmt.Errorf("credential %q has no field %q", key, field)
				}
				fmt.Print(v)
				return nil
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"key":          cred.Key,
					"value":        cred.Value,
					"source":       cred.Source,
					"retrieved_at": cred.RetrievedAt,
				})
			}

			out, err := json.Marshal(cred.Value)
			if err != nil {
				return fmt.Errorf("failed to encode value: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&credentialType, "type", "", "Credential type to validate against")
	cmd.Flags().StringVar(&field, "field", "", "Print only this field of the value bundle")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output with metadata in JSON format")

	return cmd
}
