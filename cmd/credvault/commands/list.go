package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewListCommand(opts *Options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credential keys across all providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.Service()
			if err != nil {
				return err
			}

			keys, err := svc.ListCredentials(cmd.Context(), opts.User)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(keys)
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as a JSON array")

	return cmd
}
