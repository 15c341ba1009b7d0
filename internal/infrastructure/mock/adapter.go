// Package mock serves a provider's catalog from memory with deterministic
// availability. Providers fall back to it when no credentials are configured.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/google/uuid"
)

type issued struct {
	conf      reservation.Confirmation
	slot      string
	covers    int
	cancelled bool
}

type Adapter struct {
	name    string
	catalog map[string]reservation.VenueResult

	mu       sync.Mutex
	bookings map[string]*issued
	byKey    map[string]string
	// held counts covers taken by live bookings, per slot.
	held map[string]int
}

var _ reservation.Adapter = (*Adapter)(nil)

func New(name string, catalog map[string]reservation.VenueResult) *Adapter {
	return &Adapter{
		name:     name,
		catalog:  catalog,
		bookings: map[string]*issued{},
		byKey:    map[string]string{},
		held:     map[string]int{},
	}
}

func slotKey(externalID, date, t string) string {
	return externalID + "|" + date + "|" + t
}

// remaining returns the covers still free in a slot. Times the venue never
// offers have none. Callers hold a.mu.
func (a *Adapter) remaining(externalID, date, t string) int {
	for _, s := range Slots(externalID, date) {
		if s.Time == t {
			if !s.Available {
				return 0
			}
			return s.Capacity - a.held[slotKey(externalID, date, t)]
		}
	}
	return 0
}

func (a *Adapter) Name() string           { return a.name }
func (a *Adapter) Mode() reservation.Mode { return reservation.ModeMock }

func (a *Adapter) Ping(context.Context) error { return nil }

// CheckLink reports whether the catalog still lists externalID.
func (a *Adapter) CheckLink(_ context.Context, externalID string) error {
	if _, ok := a.catalog[externalID]; !ok {
		return internaltypes.NotFound("%s does not list %q", a.name, externalID)
	}
	return nil
}

func (a *Adapter) Search(ctx context.Context, q reservation.SearchQuery) ([]reservation.VenueResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, internaltypes.ProviderTimeout(a.name, err)
	}
	out := []reservation.VenueResult{}
	for id, v := range a.catalog {
		if q.Category != "" && v.Category != q.Category {
			continue
		}
		if q.City != "" && !strings.EqualFold(v.City, strings.TrimSpace(q.City)) {
			continue
		}
		if !q.WithinExternalIDs(id) || !matchFilters(v.Attributes, q.Filters) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func matchFilters(attrs, filters map[string]string) bool {
	for k, want := range filters {
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(attrs[k]), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// GetAvailability returns only slots that can seat the party.
func (a *Adapter) GetAvailability(ctx context.Context, q reservation.AvailabilityQuery) ([]reservation.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, internaltypes.ProviderTimeout(a.name, err)
	}
	if err := a.CheckLink(ctx, q.ExternalID); err != nil {
		return nil, err
	}
	party := q.Params.PartySize()
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []reservation.TimeSlot{}
	for _, s := range Slots(q.ExternalID, q.Date) {
		if left := a.remaining(q.ExternalID, q.Date, s.Time); left >= party {
			s.Capacity = left
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Adapter) Book(ctx context.Context, req reservation.BookingRequest) (reservation.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return reservation.Confirmation{}, internaltypes.ProviderTimeout(a.name, err)
	}
	v, ok := a.catalog[req.ExternalID]
	if !ok {
		return reservation.Confirmation{}, internaltypes.NotFound("%s does not list %q", a.name, req.ExternalID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if req.IdempotencyKey != "" {
		if id, seen := a.byKey[req.IdempotencyKey]; seen {
			return a.bookings[id].conf, nil
		}
	}
	party := req.Params.PartySize()
	if left := a.remaining(req.ExternalID, req.Date, req.Time); left < party {
		return reservation.Confirmation{}, internaltypes.Invalid("time", "%s has no open slot at %s on %s for %d", v.Name, req.Time, req.Date, party)
	}

	id := fmt.Sprintf("%s_%s", a.name, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	conf := reservation.Confirmation{
		ProviderBookingID: id,
		Status:            reservation.StatusConfirmed,
		Message:           fmt.Sprintf("Booked %s on %s at %s", v.Name, req.Date, req.Time),
		Idempotent:        true,
	}
	key := slotKey(req.ExternalID, req.Date, req.Time)
	a.held[key] += party
	a.bookings[id] = &issued{conf: conf, slot: key, covers: party}
	if req.IdempotencyKey != "" {
		a.byKey[req.IdempotencyKey] = id
	}
	return conf, nil
}

func (a *Adapter) Cancel(ctx context.Context, providerBookingID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, internaltypes.ProviderTimeout(a.name, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bookings[providerBookingID]
	if !ok || b.cancelled {
		return false, nil
	}
	b.cancelled = true
	a.held[b.slot] -= b.covers
	return true, nil
}
