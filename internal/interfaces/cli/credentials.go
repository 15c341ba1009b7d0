package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCredentialsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Provider credentials sealed in the store",
	}
	var ref string
	set := &cobra.Command{
		Use:   "set PROVIDER KEY=VALUE...",
		Short: "Seal and store credentials for a provider",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]string{}
			for i, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("argument %d is not KEY=VALUE", i+2)
				}
				values[strings.TrimSpace(k)] = v
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				stored, err := a.creds.Set(cmd.Context(), strings.ToLower(args[0]), ref, values)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %d value(s) as %s\n", len(values), stored)
				return nil
			})
		},
	}
	set.Flags().StringVar(&ref, "ref", "", "credential reference, as given to venues link --credential-ref (default PROVIDER/default)")
	cmd.AddCommand(set)
	return cmd
}
