package usecases

import (
	"context"
	"strings"

	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

type LinkSummary struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	SyncStatus string `json:"sync_status"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
}

type VenueDetails struct {
	venue.Venue
	// Provider is the provider bookings are routed through; empty when the
	// venue has no active link.
	Provider string        `json:"provider,omitempty"`
	Bookable bool          `json:"bookable"`
	Links    []LinkSummary `json:"links"`
}

func (d *Dispatcher) details(ctx context.Context, v venue.Venue) (VenueDetails, error) {
	links, err := d.dir.Links(ctx, v.ID)
	if err != nil {
		return VenueDetails{}, err
	}
	out := VenueDetails{Venue: v, Links: make([]LinkSummary, 0, len(links))}
	for _, l := range links {
		s := LinkSummary{Provider: l.Provider, ExternalID: l.ExternalID, SyncStatus: string(l.SyncStatus)}
		if l.LastSyncAt != nil {
			s.LastSyncAt = l.LastSyncAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out.Links = append(out.Links, s)
	}
	if l, ok := venue.ChooseLink(links); ok && v.Status == venue.StatusActive {
		out.Provider = l.Provider
		out.Bookable = true
	}
	return out, nil
}

// FindVenueByDomain resolves a website domain to its venue.
func (d *Dispatcher) FindVenueByDomain(ctx context.Context, domain string) (VenueDetails, error) {
	c := d.begin(ctx, "find_venue_by_domain")
	if strings.TrimSpace(domain) == "" {
		return VenueDetails{}, c.fail(internaltypes.Invalid("domain", "domain is required"))
	}
	c.advance(StateSchemaValidated)
	v, err := d.dir.ResolveByDomain(ctx, domain)
	if err != nil {
		return VenueDetails{}, c.fail(err)
	}
	c.advance(StateVenueResolved)
	out, err := d.details(ctx, v)
	if err != nil {
		return VenueDetails{}, c.fail(err)
	}
	return out, nil
}

func (d *Dispatcher) GetVenueDetails(ctx context.Context, venueID string) (VenueDetails, error) {
	c := d.begin(ctx, "get_venue_details")
	if strings.TrimSpace(venueID) == "" {
		return VenueDetails{}, c.fail(internaltypes.Invalid("venue_id", "venue_id is required"))
	}
	c.advance(StateSchemaValidated)
	v, err := d.dir.Get(ctx, venueID)
	if err != nil {
		return VenueDetails{}, c.fail(err)
	}
	c.advance(StateVenueResolved)
	out, err := d.details(ctx, v)
	if err != nil {
		return VenueDetails{}, c.fail(err)
	}
	return out, nil
}

type VenueList struct {
	Count  int           `json:"count"`
	Venues []venue.Venue `json:"venues"`
}

// ListVenues lists directory venues, optionally narrowed by category and city.
func (d *Dispatcher) ListVenues(ctx context.Context, cat, city string) (VenueList, error) {
	c := d.begin(ctx, "list_venues")
	vs, err := d.dir.List(ctx, cat, strings.TrimSpace(city))
	if err != nil {
		return VenueList{}, c.fail(err)
	}
	if vs == nil {
		vs = []venue.Venue{}
	}
	return VenueList{Count: len(vs), Venues: vs}, nil
}
