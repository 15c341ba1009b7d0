package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
)

// ErrNoMatchingSlot describes a FindAndBook where none of the preferred
// times is open.
var ErrNoMatchingSlot = errors.New("no matching slots")

type FindAndBookRequest struct {
	VenueID  string
	Category string
	// Params are the booking parameters without "time".
	Params         map[string]any
	PreferredTimes []string
	Customer       booking.Customer
}

// FindAndBook checks availability and books the first preferred time that
// is open, in preference order.
func (d *Dispatcher) FindAndBook(ctx context.Context, req FindAndBookRequest) (BookResult, error) {
	times := normalizeTimes(req.PreferredTimes)
	if len(times) == 0 {
		return BookResult{}, internaltypes.Invalid("preferred_times", "at least one preferred time is required")
	}
	avail, err := d.CheckAvailability(ctx, AvailabilityRequest{VenueID: req.VenueID, Category: req.Category, Params: req.Params})
	if err != nil {
		return BookResult{}, err
	}
	slot, ok := chooseSlot(times, avail.Slots)
	if !ok {
		return BookResult{}, internaltypes.NewValidationError(internaltypes.Violation{
			Field:   "preferred_times",
			Message: ErrNoMatchingSlot.Error() + " among " + strings.Join(times, ", "),
		})
	}

	params := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	params["time"] = slot.Time
	return d.Book(ctx, BookRequest{VenueID: req.VenueID, Category: req.Category, Params: params, Customer: req.Customer})
}

// chooseSlot returns the first open slot whose start time equals a preferred
// time, walking preferences in order.
func chooseSlot(preferred []string, slots []reservation.TimeSlot) (reservation.TimeSlot, bool) {
	byTime := make(map[string]reservation.TimeSlot, len(slots))
	for _, s := range slots {
		if s.Available {
			byTime[s.Time] = s
		}
	}
	for _, t := range preferred {
		if s, ok := byTime[t]; ok {
			return s, true
		}
	}
	return reservation.TimeSlot{}, false
}

// normalizeTimes accepts "19:00" or "19:00:00" and drops blanks.
func normalizeTimes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if len(t) == len("15:04:05") && strings.Count(t, ":") == 2 {
			t = t[:5]
		}
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
