package booking

import (
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/category"
	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether a booking in this status can no longer be cancelled.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

type Customer struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
}

// Booking is written once per successful reservation; afterwards only its
// status changes.
type Booking struct {
	ID                string            `json:"booking_id"`
	VenueID           string            `json:"venue_id"`
	VenueName         string            `json:"venue_name,omitempty"`
	Provider          string            `json:"provider"`
	ProviderBookingID string            `json:"provider_booking_id,omitempty"`
	Category          category.Category `json:"category"`
	Params            Params            `json:"params"`
	Customer          Customer          `json:"customer"`
	Status            Status            `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a collision-resistant booking id.
func NewID() string {
	return "bk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
