package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/bookhub/internal/application/scheduler"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/spf13/cobra"
)

func newVenuesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "Venue directory management",
	}
	cmd.AddCommand(newVenuesListCmd(opts))
	cmd.AddCommand(newVenuesShowCmd(opts))
	cmd.AddCommand(newVenuesLinkCmd(opts))
	cmd.AddCommand(newVenuesStatusCmd(opts))
	cmd.AddCommand(newVenuesSyncCmd(opts))
	return cmd
}

func newVenuesListCmd(opts *rootOptions) *cobra.Command {
	var (
		cat, city string
		asJSON    bool
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List venues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.seedIfEmpty(cmd.Context()); err != nil {
					return err
				}
				list, err := a.dispatcher().ListVenues(cmd.Context(), cat, city)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCITY\tSTATUS")
				for _, v := range list.Venues {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Category, v.City, v.Status)
				}
				return tw.Flush()
			})
		},
	}
	c.Flags().StringVar(&cat, "category", "", "restaurant, hair_salon, spa or fitness")
	c.Flags().StringVar(&city, "city", "", "city name")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}

func newVenuesShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show VENUE_ID",
		Short: "Show a venue and its provider links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.seedIfEmpty(cmd.Context()); err != nil {
					return err
				}
				d, err := a.dispatcher().GetVenueDetails(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	}
}

func newVenuesLinkCmd(opts *rootOptions) *cobra.Command {
	var credRef string
	c := &cobra.Command{
		Use:   "link VENUE_ID PROVIDER EXTERNAL_ID",
		Short: "Link a venue to its listing on a provider",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			venueID, provider, external := args[0], strings.ToLower(args[1]), args[2]
			return withApp(cmd.Context(), opts, func(a *app) error {
				if names := a.providers.Names(); !slices.Contains(names, provider) {
					return internaltypes.UnknownProvider(provider, names)
				}
				if err := a.seedIfEmpty(cmd.Context()); err != nil {
					return err
				}
				if _, err := a.store.GetVenue(cmd.Context(), venueID); err != nil {
					return err
				}
				if credRef != "" {
					if _, err := a.creds.ForRef(cmd.Context(), provider, credRef); err != nil {
						return err
					}
				}
				l := venue.ProviderLink{
					VenueID:       venueID,
					Provider:      provider,
					ExternalID:    external,
					CredentialRef: credRef,
					SyncStatus:    venue.SyncActive,
					CreatedAt:     time.Now().UTC(),
				}
				if err := a.store.CreateLink(cmd.Context(), l); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s:%s\n", venueID, provider, external)
				return nil
			})
		},
	}
	c.Flags().StringVar(&credRef, "credential-ref", "", "credential reference for this link, stored with credentials set --ref")
	return c
}

func newVenuesStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status VENUE_ID active|inactive|pending",
		Short: "Change a venue's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := venue.Status(strings.ToLower(args[1]))
			if !status.Valid() {
				return internaltypes.Invalid("status", "status must be active, inactive or pending")
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.store.UpdateVenueStatus(cmd.Context(), args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", args[0], status)
				return nil
			})
		},
	}
}

func newVenuesSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-check every provider link once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				s := &scheduler.LinkSyncer{
					Store:     a.store,
					Providers: a.providers,
					PerSecond: a.cfg.Provider.RateLimit,
					Timeout:   a.callTimeout(),
					Log:       a.log,
				}
				rep, err := s.Sync(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}
