package cli

import (
	"fmt"

	"github.com/example/bookhub/internal/infrastructure/config"
	"github.com/example/bookhub/internal/infrastructure/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo venues and provider links into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				if a.cfg.Store == config.StoreMemory {
					a.log.Warn().Msg("memory store: seed data is lost when this command exits")
				}
				n, err := seed.Load(cmd.Context(), a.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new venue(s) of %d\n", n, len(seed.Entries()))
				return nil
			})
		},
	}
}
