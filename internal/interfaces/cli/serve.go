package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/bookhub/internal/application/scheduler"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/interfaces/mcp"
	"github.com/example/bookhub/internal/interfaces/web"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		addr      string
		noSync    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the booking tools over MCP (stdio or streamable HTTP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if transport != "stdio" && transport != "http" {
				return fmt.Errorf("unknown transport %q (expected stdio or http)", transport)
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.seedIfEmpty(cmd.Context()); err != nil {
					return err
				}
				tools := mcp.New(a.dispatcher(), Version, a.log)

				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				g, ctx := errgroup.WithContext(ctx)

				if a.cfg.SyncInterval > 0 && !noSync {
					syncer := &scheduler.LinkSyncer{
						Store:     a.store,
						Providers: a.providers,
						Interval:  a.cfg.SyncInterval,
						PerSecond: a.cfg.Provider.RateLimit,
						Timeout:   a.callTimeout(),
						Log:       a.log.With().Str("component", "link-sync").Logger(),
					}
					g.Go(func() error {
						if err := syncer.Run(ctx); !errors.Is(err, context.Canceled) {
							return err
						}
						return nil
					})
				}

				g.Go(func() error {
					defer cancel()
					if transport == "stdio" {
						a.log.Info().Int("tools", len(tools.ToolNames())).Msg("serving MCP over stdio")
						return tools.ServeStdio()
					}
					listen := addr
					if listen == "" {
						listen = a.cfg.HTTPAddr
					}
					checks := map[string]web.Health{"store": storeHealth(a.store)}
					return web.New(listen, tools.Handler(), checks, a.log).ListenAndServe(ctx)
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "stdio or http")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default BOOKHUB_HTTP_ADDR)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "do not run the provider link sync loop")
	return cmd
}

// storeHealth checks the store with a lookup that is expected to miss.
func storeHealth(s registry.Store) web.Health {
	return func(ctx context.Context) error {
		_, err := s.GetVenue(ctx, "__healthz__")
		if err == nil || errors.Is(err, internaltypes.ErrNotFound) {
			return nil
		}
		return err
	}
}
