package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/google/uuid"
)

type AvailabilityRequest struct {
	VenueID  string
	Category string
	Params   map[string]any
}

type AvailabilityResult struct {
	VenueID   string                 `json:"venue_id"`
	VenueName string                 `json:"venue_name"`
	Category  string                 `json:"category"`
	Provider  string                 `json:"provider"`
	Date      string                 `json:"date"`
	Slots     []reservation.TimeSlot `json:"slots"`
	Count     int                    `json:"count"`
}

// prepared is the outcome of the first two states shared by availability
// and booking calls.
type prepared struct {
	venue   venue.Venue
	link    venue.ProviderLink
	adapter reservation.Adapter
	params  booking.Params
}

// prepare validates params, resolves the venue and its provider. extra
// violations found by the caller are reported together with schema ones.
func (d *Dispatcher) prepare(ctx context.Context, c *call, venueID, cat string, op category.Operation, params map[string]any, extra []internaltypes.Violation) (prepared, error) {
	res, err := d.schema.Validate(cat, string(op), params)
	if err != nil {
		return prepared{}, c.fail(err)
	}
	violations := append(res.Violations, extra...)
	if strings.TrimSpace(venueID) == "" {
		violations = append(violations, internaltypes.Violation{Field: "venue_id", Message: "venue_id is required"})
	}
	if len(violations) > 0 {
		return prepared{}, c.fail(internaltypes.NewValidationError(violations...))
	}
	c.advance(StateSchemaValidated)

	v, link, err := d.dir.ResolveByID(ctx, venueID)
	if err != nil {
		return prepared{}, c.fail(err)
	}
	if v.Category != res.Schema.Category {
		return prepared{}, c.fail(internaltypes.Invalid("category", "venue %s is a %s, not a %s", v.ID, v.Category, res.Schema.Category))
	}
	a, err := d.adapter(link)
	if err != nil {
		return prepared{}, c.fail(err)
	}
	c.log = c.log.With().Str("venue_id", v.ID).Str("provider", link.Provider).Logger()
	c.advance(StateVenueResolved)
	return prepared{venue: v, link: link, adapter: a, params: booking.Params(res.Params)}, nil
}

// CheckAvailability lists open slots for a venue on a date.
func (d *Dispatcher) CheckAvailability(ctx context.Context, req AvailabilityRequest) (AvailabilityResult, error) {
	c := d.begin(ctx, "check_availability")
	p, err := d.prepare(ctx, c, req.VenueID, req.Category, category.OpAvailability, req.Params, nil)
	if err != nil {
		return AvailabilityResult{}, err
	}

	slots, err := adapterCall(ctx, d, p.link.Provider, func(ctx context.Context) ([]reservation.TimeSlot, error) {
		return p.adapter.GetAvailability(ctx, reservation.AvailabilityQuery{
			ExternalID: p.link.ExternalID,
			Category:   p.venue.Category,
			Date:       p.params.Date(),
			Params:     p.params,
		})
	})
	if err != nil {
		return AvailabilityResult{}, c.fail(err)
	}
	c.advance(StateAdapterInvoked)
	if slots == nil {
		slots = []reservation.TimeSlot{}
	}
	return AvailabilityResult{
		VenueID:   p.venue.ID,
		VenueName: p.venue.Name,
		Category:  string(p.venue.Category),
		Provider:  p.link.Provider,
		Date:      p.params.Date(),
		Slots:     slots,
		Count:     len(slots),
	}, nil
}

type BookRequest struct {
	VenueID  string
	Category string
	Params   map[string]any
	Customer booking.Customer
}

type BookResult struct {
	Booking booking.Booking `json:"booking"`
	Message string          `json:"message,omitempty"`
	// AtLeastOnce is set when the provider could not deduplicate the
	// request, so a retried call may have produced a second reservation.
	AtLeastOnce bool `json:"at_least_once,omitempty"`
}

// Book reserves a slot and records the booking. A provider confirmation that
// cannot be recorded is reported as a PersistenceInconsistencyError carrying
// the confirmation.
func (d *Dispatcher) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	c := d.begin(ctx, "book")

	customer := req.Customer
	var extra []internaltypes.Violation
	if err := d.customers.Validate(&customer); err != nil {
		var ve *internaltypes.ValidationError
		if !errors.As(err, &ve) {
			return BookResult{}, c.fail(err)
		}
		extra = ve.Violations
	}
	p, err := d.prepare(ctx, c, req.VenueID, req.Category, category.OpBook, req.Params, extra)
	if err != nil {
		return BookResult{}, err
	}

	breq := reservation.BookingRequest{
		ExternalID:     p.link.ExternalID,
		Category:       p.venue.Category,
		Date:           p.params.Date(),
		Time:           p.params.Time(),
		Params:         p.params,
		Customer:       customer,
		IdempotencyKey: uuid.NewString(),
	}
	conf, err := adapterCall(ctx, d, p.link.Provider, func(ctx context.Context) (reservation.Confirmation, error) {
		return p.adapter.Book(ctx, breq)
	})
	if err != nil {
		return BookResult{}, c.fail(err)
	}
	c.advance(StateAdapterInvoked)
	if !conf.Idempotent {
		c.log.Info().Str("provider_booking_id", conf.ProviderBookingID).Msg("provider booking is at-least-once")
	}

	now := d.now().UTC()
	b := booking.Booking{
		ID:                booking.NewID(),
		VenueID:           p.venue.ID,
		VenueName:         p.venue.Name,
		Provider:          p.link.Provider,
		ProviderBookingID: conf.ProviderBookingID,
		Category:          p.venue.Category,
		Params:            p.params.Clone(),
		Customer:          customer,
		Status:            booking.StatusConfirmed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := d.store.CreateBooking(ctx, b); err != nil {
		return BookResult{}, c.fail(&PersistenceInconsistencyError{
			BookingID:    b.ID,
			VenueID:      b.VenueID,
			Provider:     b.Provider,
			Confirmation: conf,
			Err:          err,
		})
	}
	c.advance(StatePersisted)
	c.log.Info().Str("booking_id", b.ID).Msg("booking confirmed")
	d.publish(ctx, c, booking.EventCreated, b)

	return BookResult{Booking: b, Message: conf.Message, AtLeastOnce: !conf.Idempotent}, nil
}

type CancelRequest struct {
	BookingID string
	// CustomerEmail, when set, must match the booking's customer.
	CustomerEmail string
}

type CancelResult struct {
	BookingID string         `json:"booking_id"`
	Cancelled bool           `json:"cancelled"`
	Status    booking.Status `json:"status"`
}

// Cancel cancels a booking. Cancelling an unknown booking, or one that is
// already cancelled, completed or a no-show, returns false without calling
// the provider.
func (d *Dispatcher) Cancel(ctx context.Context, req CancelRequest) (CancelResult, error) {
	c := d.begin(ctx, "cancel")
	id := strings.TrimSpace(req.BookingID)
	if id == "" {
		return CancelResult{}, c.fail(internaltypes.Invalid("booking_id", "booking_id is required"))
	}
	c.advance(StateSchemaValidated)

	unlock := d.bookingLocks.Lock(id)
	defer unlock()
	b, err := d.getBooking(ctx, id)
	if errors.Is(err, internaltypes.ErrBookingNotFound) {
		c.log.Debug().Str("booking_id", id).Msg("no such booking")
		return CancelResult{BookingID: id, Cancelled: false}, nil
	}
	if err != nil {
		return CancelResult{}, c.fail(err)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" && !strings.EqualFold(email, b.Customer.Email) {
		return CancelResult{}, c.fail(internaltypes.Forbidden("booking %s belongs to another customer", id))
	}
	c.log = c.log.With().Str("booking_id", id).Str("provider", b.Provider).Logger()
	if b.Status.Terminal() {
		c.log.Debug().Str("status", string(b.Status)).Msg("booking already closed")
		return CancelResult{BookingID: id, Cancelled: false, Status: b.Status}, nil
	}
	a, err := d.adapter(d.bookingLink(ctx, b))
	if err != nil {
		return CancelResult{}, c.fail(err)
	}
	c.advance(StateVenueResolved)

	if b.ProviderBookingID != "" {
		upstream, err := adapterCall(ctx, d, b.Provider, func(ctx context.Context) (bool, error) {
			return a.Cancel(ctx, b.ProviderBookingID)
		})
		if err != nil {
			return CancelResult{}, c.fail(err)
		}
		if !upstream {
			c.log.Info().Msg("provider had no live reservation; closing locally")
		}
	}
	c.advance(StateAdapterInvoked)

	if err := d.store.UpdateBookingStatus(ctx, id, booking.StatusCancelled); err != nil {
		return CancelResult{}, c.fail(err)
	}
	c.advance(StatePersisted)
	b.Status = booking.StatusCancelled
	b.UpdatedAt = d.now().UTC()
	d.publish(ctx, c, booking.EventCancelled, b)
	return CancelResult{BookingID: id, Cancelled: true, Status: booking.StatusCancelled}, nil
}

// bookingLink returns the link a booking was made through, or a bare link
// on the default credentials when it has since been removed.
func (d *Dispatcher) bookingLink(ctx context.Context, b booking.Booking) venue.ProviderLink {
	links, err := d.store.ListLinks(ctx, b.VenueID)
	if err == nil {
		for _, l := range links {
			if l.Provider == b.Provider {
				return l
			}
		}
	}
	return venue.ProviderLink{VenueID: b.VenueID, Provider: b.Provider}
}

func (d *Dispatcher) getBooking(ctx context.Context, id string) (booking.Booking, error) {
	b, err := d.store.GetBooking(ctx, id)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return booking.Booking{}, internaltypes.BookingNotFound(id)
	}
	return b, err
}

// GetBookingStatus returns the recorded booking.
func (d *Dispatcher) GetBookingStatus(ctx context.Context, bookingID string) (booking.Booking, error) {
	c := d.begin(ctx, "get_booking_status")
	id := strings.TrimSpace(bookingID)
	if id == "" {
		return booking.Booking{}, c.fail(internaltypes.Invalid("booking_id", "booking_id is required"))
	}
	b, err := d.getBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, c.fail(err)
	}
	return b, nil
}
