package reservation

import (
	"context"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
)

// SearchQuery is what the dispatcher hands a provider when looking for
// venues. Filters only carries keys declared by the category search schema.
type SearchQuery struct {
	Category  category.Category
	City      string
	Date      string
	PartySize int
	Filters   map[string]string

	// ExternalIDs restricts the search to venues the directory already links
	// to this provider. Empty means no restriction.
	ExternalIDs []string
}

type AvailabilityQuery struct {
	ExternalID string
	Category   category.Category
	Date       string
	Params     booking.Params
}

type BookingRequest struct {
	ExternalID string
	Category   category.Category
	Date       string
	Time       string
	Params     booking.Params
	Customer   booking.Customer

	// IdempotencyKey identifies one logical booking attempt. Adapters whose
	// upstream supports it must forward it.
	IdempotencyKey string
}

type VenueResult struct {
	ExternalID string            `json:"external_id"`
	Name       string            `json:"name"`
	Category   category.Category `json:"category"`
	Address    string            `json:"address,omitempty"`
	City       string            `json:"city,omitempty"`
	Rating     float64           `json:"rating,omitempty"`
	PriceRange string            `json:"price_range,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TimeSlot is a bookable start time with remaining capacity.
type TimeSlot struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Available bool   `json:"available"`
}

type Confirmation struct {
	ProviderBookingID string `json:"provider_booking_id"`
	Status            string `json:"status"`
	Message           string `json:"message,omitempty"`

	// Idempotent is false when the upstream cannot deduplicate retries, so a
	// repeated Book may create a second reservation.
	Idempotent bool `json:"idempotent"`
}

// Adapter is the capability set every booking platform integration provides.
// Implementations translate upstream failures into internaltypes errors before
// returning.
type Adapter interface {
	Name() string
	Mode() Mode
	Ping(ctx context.Context) error
	Search(ctx context.Context, q SearchQuery) ([]VenueResult, error)
	GetAvailability(ctx context.Context, q AvailabilityQuery) ([]TimeSlot, error)
	Book(ctx context.Context, req BookingRequest) (Confirmation, error)
	// Cancel returns false when the booking is unknown or already cancelled.
	Cancel(ctx context.Context, providerBookingID string) (bool, error)
}
