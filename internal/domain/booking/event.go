package booking

import "time"

// Lifecycle event routing keys.
const (
	EventCreated   = "booking.created"
	EventCancelled = "booking.cancelled"
)

// Event is published after a booking is persisted or cancelled.
type Event struct {
	Type              string    `json:"type"`
	BookingID         string    `json:"booking_id"`
	VenueID           string    `json:"venue_id"`
	Provider          string    `json:"provider"`
	ProviderBookingID string    `json:"provider_booking_id,omitempty"`
	Category          string    `json:"category"`
	Status            Status    `json:"status"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func NewEvent(typ string, b Booking, at time.Time) Event {
	return Event{
		Type:              typ,
		BookingID:         b.ID,
		VenueID:           b.VenueID,
		Provider:          b.Provider,
		ProviderBookingID: b.ProviderBookingID,
		Category:          string(b.Category),
		Status:            b.Status,
		OccurredAt:        at.UTC(),
	}
}
