package registry

import (
	"context"
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/venue"
)

// VenueFilter narrows ListVenues. Zero values match everything.
type VenueFilter struct {
	Category category.Category
	City     string
	Status   venue.Status
}

// Match applies the filter in memory: exact category, case-insensitive city.
func (f VenueFilter) Match(v venue.Venue) bool {
	if f.Category != "" && v.Category != f.Category {
		return false
	}
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(v.City), strings.TrimSpace(f.City)) {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return true
}

// Credential is a sealed provider secret addressed by ProviderLink.CredentialRef.
type Credential struct {
	Ref       string
	Provider  string
	Sealed    []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LinkSync struct {
	Status venue.SyncStatus
	At     time.Time
}

// Store persists venues, provider links, bookings and credentials.
// Implementations reject duplicate venue ids, (venue_id, provider) pairs and
// booking ids with internaltypes.ErrConflict, even under concurrent writers.
// Lookups of absent records return internaltypes.ErrNotFound.
type Store interface {
	CreateVenue(ctx context.Context, v venue.Venue) error
	UpdateVenueStatus(ctx context.Context, id string, status venue.Status) error
	GetVenue(ctx context.Context, id string) (venue.Venue, error)
	ListVenues(ctx context.Context, f VenueFilter) ([]venue.Venue, error)
	FindVenueByDomain(ctx context.Context, domain string) (venue.Venue, error)

	CreateLink(ctx context.Context, l venue.ProviderLink) error
	ListLinks(ctx context.Context, venueID string) ([]venue.ProviderLink, error)
	ListLinksByProvider(ctx context.Context, provider string) ([]venue.ProviderLink, error)
	FindLinkByExternal(ctx context.Context, provider, externalID string) (venue.ProviderLink, error)
	UpdateLinkSync(ctx context.Context, venueID, provider string, s LinkSync) error

	CreateBooking(ctx context.Context, b booking.Booking) error
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status booking.Status) error

	PutCredential(ctx context.Context, c Credential) error
	GetCredential(ctx context.Context, ref string) (Credential, error)

	Close() error
}
