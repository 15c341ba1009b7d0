package usecases

import (
	"fmt"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
)

// PersistenceInconsistencyError reports a booking the provider confirmed but
// that could not be recorded locally. It carries the confirmation so the
// caller can reconcile by hand.
type PersistenceInconsistencyError struct {
	BookingID    string
	VenueID      string
	Provider     string
	Confirmation reservation.Confirmation
	Err          error
}

func (e *PersistenceInconsistencyError) Error() string {
	return fmt.Sprintf("provider %s confirmed booking %s but it was not recorded: %v",
		e.Provider, e.Confirmation.ProviderBookingID, e.Err)
}

func (e *PersistenceInconsistencyError) Unwrap() error { return e.Err }

func (e *PersistenceInconsistencyError) ErrorKind() internaltypes.Kind {
	return internaltypes.KindPersistenceInconsistency
}

func (e *PersistenceInconsistencyError) ErrorDetails() map[string]any {
	return map[string]any{
		"booking_id":          e.BookingID,
		"venue_id":            e.VenueID,
		"provider":            e.Provider,
		"provider_booking_id": e.Confirmation.ProviderBookingID,
		"provider_status":     e.Confirmation.Status,
	}
}
