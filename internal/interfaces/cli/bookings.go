package cli

import (
	"fmt"
	"strings"

	"github.com/example/bookhub/internal/application/usecases"
	"github.com/example/bookhub/internal/domain/booking"
	"github.com/spf13/cobra"
)

func newBookingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Create, inspect and cancel bookings",
	}
	cmd.AddCommand(newBookingsShowCmd(opts))
	cmd.AddCommand(newBookingsBookCmd(opts))
	cmd.AddCommand(newBookingsCancelCmd(opts))
	return cmd
}

func newBookingsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOKING_ID",
		Short: "Show a recorded booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				b, err := a.dispatcher().GetBookingStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			})
		},
	}
}

func newBookingsBookCmd(opts *rootOptions) *cobra.Command {
	var (
		venueID, cat string
		params       []string
		times        []string
		c            booking.Customer
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a venue; with --times, book the first open preferred time",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.seedIfEmpty(cmd.Context()); err != nil {
					return err
				}
				d := a.dispatcher()
				var res usecases.BookResult
				if len(times) > 0 {
					res, err = d.FindAndBook(cmd.Context(), usecases.FindAndBookRequest{
						VenueID: venueID, Category: cat, Params: p, PreferredTimes: times, Customer: c,
					})
				} else {
					res, err = d.Book(cmd.Context(), usecases.BookRequest{VenueID: venueID, Category: cat, Params: p, Customer: c})
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&venueID, "venue", "", "venue id")
	cmd.Flags().StringVar(&cat, "category", "", "venue category")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "category parameter as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&times, "times", nil, "preferred times HH:MM, most preferred first")
	cmd.Flags().StringVar(&c.Name, "name", "", "customer name")
	cmd.Flags().StringVar(&c.Email, "email", "", "customer email")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "customer phone")
	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newBookingsCancelCmd(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "cancel BOOKING_ID",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				res, err := a.dispatcher().Cancel(cmd.Context(), usecases.CancelRequest{BookingID: args[0], CustomerEmail: email})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "customer email the booking was made with")
	return cmd
}

// parseParams turns repeated key=value flags into a parameter bag.
func parseParams(kvs []string) (map[string]any, error) {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}
