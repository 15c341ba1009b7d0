// Package memory is the default registry store. Everything lives in maps
// behind one RWMutex; it is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

type linkKey struct{ venueID, provider string }

type Store struct {
	mu          sync.RWMutex
	venues      map[string]venue.Venue
	links       map[linkKey]venue.ProviderLink
	bookings    map[string]booking.Booking
	credentials map[string]registry.Credential
	now         func() time.Time
}

var _ registry.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		venues:      map[string]venue.Venue{},
		links:       map[linkKey]venue.ProviderLink{},
		bookings:    map[string]booking.Booking{},
		credentials: map[string]registry.Credential{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateVenue(_ context.Context, v venue.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[v.ID]; ok {
		return internaltypes.Conflict("venue %q already exists", v.ID)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	v.Metadata = cloneStrings(v.Metadata)
	s.venues[v.ID] = v
	return nil
}

func (s *Store) UpdateVenueStatus(_ context.Context, id string, status venue.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.venues[id]
	if !ok {
		return internaltypes.NotFound("venue %q not found", id)
	}
	v.Status = status
	v.UpdatedAt = s.now()
	s.venues[id] = v
	return nil
}

func (s *Store) GetVenue(_ context.Context, id string) (venue.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return venue.Venue{}, internaltypes.NotFound("venue %q not found", id)
	}
	v.Metadata = cloneStrings(v.Metadata)
	return v, nil
}

func (s *Store) ListVenues(_ context.Context, f registry.VenueFilter) ([]venue.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []venue.Venue
	for _, v := range s.venues {
		if f.Match(v) {
			v.Metadata = cloneStrings(v.Metadata)
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindVenueByDomain(_ context.Context, domain string) (venue.Venue, error) {
	want := venue.NormalizeDomain(domain)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found venue.Venue
		ok    bool
	)
	for _, v := range s.venues {
		if want == "" || venue.NormalizeDomain(v.Domain) != want {
			continue
		}
		// Several venues may share a domain; the lowest id wins.
		if !ok || v.ID < found.ID {
			found, ok = v, true
		}
	}
	if !ok {
		return venue.Venue{}, internaltypes.NotFound("no venue for domain %q", domain)
	}
	found.Metadata = cloneStrings(found.Metadata)
	return found, nil
}

func (s *Store) CreateLink(_ context.Context, l venue.ProviderLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[l.VenueID]; !ok {
		return internaltypes.NotFound("venue %q not found", l.VenueID)
	}
	k := linkKey{l.VenueID, l.Provider}
	if _, ok := s.links[k]; ok {
		return internaltypes.Conflict("venue %q is already linked to %s", l.VenueID, l.Provider)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	if l.SyncStatus == "" {
		l.SyncStatus = venue.SyncActive
	}
	s.links[k] = l
	return nil
}

func (s *Store) ListLinks(_ context.Context, venueID string) ([]venue.ProviderLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []venue.ProviderLink
	for k, l := range s.links {
		if k.venueID == venueID {
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (s *Store) ListLinksByProvider(_ context.Context, provider string) ([]venue.ProviderLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []venue.ProviderLink
	for k, l := range s.links {
		if k.provider == provider {
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (s *Store) FindLinkByExternal(_ context.Context, provider, externalID string) (venue.ProviderLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, l := range s.links {
		if k.provider == provider && l.ExternalID == externalID {
			return l, nil
		}
	}
	return venue.ProviderLink{}, internaltypes.NotFound("no %s link for external id %q", provider, externalID)
}

func (s *Store) UpdateLinkSync(_ context.Context, venueID, provider string, sync registry.LinkSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := linkKey{venueID, provider}
	l, ok := s.links[k]
	if !ok {
		return internaltypes.NotFound("no %s link for venue %q", provider, venueID)
	}
	l.SyncStatus = sync.Status
	if sync.Status == venue.SyncActive {
		at := sync.At
		l.LastSyncAt = &at
	}
	s.links[k] = l
	return nil
}

func (s *Store) CreateBooking(_ context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return internaltypes.Conflict("booking %q already exists", b.ID)
	}
	b.Params = b.Params.Clone()
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, internaltypes.NotFound("booking %q not found", id)
	}
	b.Params = b.Params.Clone()
	return b, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, status booking.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return internaltypes.NotFound("booking %q not found", id)
	}
	b.Status = status
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return nil
}

func (s *Store) PutCredential(_ context.Context, c registry.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if prev, ok := s.credentials[c.Ref]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Sealed = append([]byte(nil), c.Sealed...)
	s.credentials[c.Ref] = c
	return nil
}

func (s *Store) GetCredential(_ context.Context, ref string) (registry.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[ref]
	if !ok {
		return registry.Credential{}, internaltypes.NotFound("credential %q not found", ref)
	}
	c.Sealed = append([]byte(nil), c.Sealed...)
	return c, nil
}

func sortLinks(ls []venue.ProviderLink) {
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		}
		if ls[i].VenueID != ls[j].VenueID {
			return ls[i].VenueID < ls[j].VenueID
		}
		return ls[i].Provider < ls[j].Provider
	})
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
