package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/example/bookhub/internal/application/usecases"
	"github.com/spf13/cobra"
)

func newPingCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping every provider and report its mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				uc := usecases.PingProviders{Providers: a.providers, Timeout: a.callTimeout()}
				statuses := uc.Execute(cmd.Context())
				if asJSON {
					return printJSON(cmd.OutOrStdout(), statuses)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tMODE\tSTATUS\tTOOK")
				failed := 0
				for _, s := range statuses {
					status := "ok"
					if !s.OK {
						status = s.Kind + ": " + s.Error
						failed++
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Provider, s.Mode, status, s.Took.Round(time.Millisecond))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d provider(s) failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
