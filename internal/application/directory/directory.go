// Package directory resolves venues and the provider link each one is
// routed through.
package directory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

type Directory struct {
	store  registry.Store
	schema *category.Table
}

func New(store registry.Store, schema *category.Table) *Directory {
	return &Directory{store: store, schema: schema}
}

// Get returns the venue regardless of its status.
func (d *Directory) Get(ctx context.Context, venueID string) (venue.Venue, error) {
	v, err := d.store.GetVenue(ctx, venueID)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return venue.Venue{}, internaltypes.VenueNotFound(venueID)
	}
	return v, err
}

func (d *Directory) Links(ctx context.Context, venueID string) ([]venue.ProviderLink, error) {
	return d.store.ListLinks(ctx, venueID)
}

// ResolveByID returns an active venue and the link it is routed through.
// Venues that are not active are reported as not found; a venue without an
// active link fails with NoProviderLinked.
func (d *Directory) ResolveByID(ctx context.Context, venueID string) (venue.Venue, venue.ProviderLink, error) {
	v, err := d.Get(ctx, venueID)
	if err != nil {
		return venue.Venue{}, venue.ProviderLink{}, err
	}
	if v.Status != venue.StatusActive {
		return venue.Venue{}, venue.ProviderLink{}, internaltypes.VenueNotFound(venueID)
	}
	link, err := d.route(ctx, venueID)
	if err != nil {
		return venue.Venue{}, venue.ProviderLink{}, err
	}
	return v, link, nil
}

func (d *Directory) route(ctx context.Context, venueID string) (venue.ProviderLink, error) {
	links, err := d.store.ListLinks(ctx, venueID)
	if err != nil {
		return venue.ProviderLink{}, err
	}
	link, ok := venue.ChooseLink(links)
	if !ok {
		return venue.ProviderLink{}, internaltypes.NoProviderLinked(venueID)
	}
	return link, nil
}

// Routed pairs a venue with the link it is routed through.
type Routed struct {
	Venue venue.Venue
	Link  venue.ProviderLink
}

// Search lists active venues of cat in city. Filter keys the category's
// search schema does not declare are ignored; declared keys match venue
// metadata case-insensitively. Results are sorted by venue id.
func (d *Directory) Search(ctx context.Context, cat category.Category, city string, filters map[string]string) ([]venue.Venue, error) {
	s, err := d.schema.Schema(string(cat), string(category.OpSearch))
	if err != nil {
		return nil, err
	}
	vs, err := d.store.ListVenues(ctx, registry.VenueFilter{Category: s.Category, City: city, Status: venue.StatusActive})
	if err != nil {
		return nil, err
	}
	out := make([]venue.Venue, 0, len(vs))
	for _, v := range vs {
		if matchMetadata(s, v.Metadata, filters) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchMetadata(s category.ParamSchema, metadata, filters map[string]string) bool {
	for k, want := range filters {
		p, ok := s.Param(k)
		if !ok || p.Type != category.TypeString {
			continue
		}
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(metadata[k]), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// Route resolves the routing link of each venue. Venues with no active link
// are returned separately instead of failing the whole batch.
func (d *Directory) Route(ctx context.Context, vs []venue.Venue) (routed []Routed, unrouted []venue.Venue, err error) {
	for _, v := range vs {
		link, err := d.route(ctx, v.ID)
		switch {
		case errors.Is(err, internaltypes.ErrNoProviderLinked):
			unrouted = append(unrouted, v)
		case err != nil:
			return nil, nil, err
		default:
			routed = append(routed, Routed{Venue: v, Link: link})
		}
	}
	return routed, unrouted, nil
}

// List returns venues of any status, optionally narrowed by category and city.
func (d *Directory) List(ctx context.Context, cat, city string) ([]venue.Venue, error) {
	f := registry.VenueFilter{City: city}
	if strings.TrimSpace(cat) != "" {
		c, err := d.schema.Lookup(cat)
		if err != nil {
			return nil, err
		}
		f.Category = c
	}
	vs, err := d.store.ListVenues(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	return vs, nil
}

// ResolveByDomain matches the normalised domain exactly. There is no
// partial or fuzzy matching.
func (d *Directory) ResolveByDomain(ctx context.Context, domain string) (venue.Venue, error) {
	norm := venue.NormalizeDomain(domain)
	if norm == "" {
		return venue.Venue{}, internaltypes.Invalid("domain", "domain is required")
	}
	v, err := d.store.FindVenueByDomain(ctx, norm)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return venue.Venue{}, internaltypes.VenueNotFound(norm)
	}
	return v, err
}

// ResolveByExternal maps a provider's external id back to the directory venue.
func (d *Directory) ResolveByExternal(ctx context.Context, provider, externalID string) (venue.Venue, venue.ProviderLink, error) {
	l, err := d.store.FindLinkByExternal(ctx, provider, externalID)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return venue.Venue{}, venue.ProviderLink{}, internaltypes.VenueNotFound(provider + ":" + externalID)
	}
	if err != nil {
		return venue.Venue{}, venue.ProviderLink{}, err
	}
	v, err := d.Get(ctx, l.VenueID)
	if err != nil {
		return venue.Venue{}, venue.ProviderLink{}, err
	}
	return v, l, nil
}
