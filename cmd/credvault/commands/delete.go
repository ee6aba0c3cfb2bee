package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewDeleteCommand(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a credential from the first writable provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete credential %q? [y/N]: ", key)
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					opts.Logger.Info("aborted")
					return nil
				}
			}

			svc, err := opts.Service()
			if err != nil {
				return err
			}
			if err := svc.DeleteCredential(cmd.Context(), opts.User, key); err != nil {
				return err
			}
			opts.Logger.Info("deleted credential %s", key)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Delete without confirmation")

	return cmd
}
