// Package registrytest holds the behaviour every registry.Store must share.
// Store packages call Run from their own tests.
package registrytest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) registry.Store) {
	t.Run("VenueUniqueness", func(t *testing.T) { testVenueUniqueness(t, newStore(t)) })
	t.Run("ListVenuesFilter", func(t *testing.T) { testListVenues(t, newStore(t)) })
	t.Run("DomainLookup", func(t *testing.T) { testDomainLookup(t, newStore(t)) })
	t.Run("LinkUniqueness", func(t *testing.T) { testLinkUniqueness(t, newStore(t)) })
	t.Run("ConcurrentLinkWriters", func(t *testing.T) { testConcurrentLinks(t, newStore(t)) })
	t.Run("LinkSync", func(t *testing.T) { testLinkSync(t, newStore(t)) })
	t.Run("BookingRoundTrip", func(t *testing.T) { testBookingRoundTrip(t, newStore(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newStore(t)) })
}

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func paris(id string) venue.Venue {
	return venue.Venue{
		ID:        id,
		Name:      "Venue " + id,
		Category:  category.Restaurant,
		City:      "Paris",
		Country:   "France",
		Metadata:  map[string]string{"cuisine": "french"},
		Status:    venue.StatusActive,
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
}

func mustCreateVenue(t *testing.T, s registry.Store, v venue.Venue) {
	t.Helper()
	if err := s.CreateVenue(context.Background(), v); err != nil {
		t.Fatalf("CreateVenue(%s): %v", v.ID, err)
	}
}

func testVenueUniqueness(t *testing.T, s registry.Store) {
	ctx := context.Background()
	mustCreateVenue(t, s, paris("v1"))

	dup := paris("v1")
	dup.Name = "Overwrite attempt"
	err := s.CreateVenue(ctx, dup)
	if !errors.Is(err, internaltypes.ErrConflict) {
		t.Fatalf("duplicate venue: got %v, want conflict", err)
	}
	got, err := s.GetVenue(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVenue: %v", err)
	}
	if got.Name != "Venue v1" {
		t.Fatalf("duplicate insert overwrote venue: %q", got.Name)
	}
	if _, err := s.GetVenue(ctx, "missing"); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("GetVenue(missing): got %v, want not found", err)
	}

	if err := s.UpdateVenueStatus(ctx, "v1", venue.StatusInactive); err != nil {
		t.Fatalf("UpdateVenueStatus: %v", err)
	}
	got, _ = s.GetVenue(ctx, "v1")
	if got.Status != venue.StatusInactive {
		t.Fatalf("status = %s, want inactive", got.Status)
	}
}

func testListVenues(t *testing.T, s registry.Store) {
	ctx := context.Background()
	mustCreateVenue(t, s, paris("v2"))
	mustCreateVenue(t, s, paris("v1"))
	london := paris("v3")
	london.City = "London"
	mustCreateVenue(t, s, london)
	salon := paris("v4")
	salon.Category = category.HairSalon
	mustCreateVenue(t, s, salon)

	got, err := s.ListVenues(ctx, registry.VenueFilter{Category: category.Restaurant, City: "paris"})
	if err != nil {
		t.Fatalf("ListVenues: %v", err)
	}
	if len(got) != 2 || got[0].ID != "v1" || got[1].ID != "v2" {
		t.Fatalf("ListVenues = %+v, want v1,v2", ids(got))
	}

	all, _ := s.ListVenues(ctx, registry.VenueFilter{})
	if len(all) != 4 {
		t.Fatalf("unfiltered ListVenues returned %d venues, want 4", len(all))
	}
}

func testDomainLookup(t *testing.T, s registry.Store) {
	ctx := context.Background()
	v := paris("v1")
	v.Domain = "goldenfork.example.com"
	mustCreateVenue(t, s, v)

	got, err := s.FindVenueByDomain(ctx, "https://www.GoldenFork.example.com/")
	if err != nil || got.ID != "v1" {
		t.Fatalf("FindVenueByDomain = %v, %v; want v1", got.ID, err)
	}
	if _, err := s.FindVenueByDomain(ctx, "goldenfork.example"); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("partial domain must not match, got %v", err)
	}
	if _, err := s.FindVenueByDomain(ctx, ""); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("empty domain must not match, got %v", err)
	}
}

func testLinkUniqueness(t *testing.T, s registry.Store) {
	ctx := context.Background()
	mustCreateVenue(t, s, paris("v1"))

	link := venue.ProviderLink{VenueID: "v1", Provider: "demo", ExternalID: "ext_1", SyncStatus: venue.SyncActive, CreatedAt: epoch}
	if err := s.CreateLink(ctx, link); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	dup := link
	dup.ExternalID = "ext_other"
	if err := s.CreateLink(ctx, dup); !errors.Is(err, internaltypes.ErrConflict) {
		t.Fatalf("duplicate link: got %v, want conflict", err)
	}

	second := venue.ProviderLink{VenueID: "v1", Provider: "zenchef", ExternalID: "zc_1", SyncStatus: venue.SyncPaused, CreatedAt: epoch.Add(time.Minute)}
	if err := s.CreateLink(ctx, second); err != nil {
		t.Fatalf("CreateLink second provider: %v", err)
	}

	links, err := s.ListLinks(ctx, "v1")
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 2 || links[0].Provider != "demo" || links[0].ExternalID != "ext_1" {
		t.Fatalf("ListLinks = %+v", links)
	}

	got, err := s.FindLinkByExternal(ctx, "zenchef", "zc_1")
	if err != nil || got.VenueID != "v1" {
		t.Fatalf("FindLinkByExternal = %+v, %v", got, err)
	}
	if _, err := s.FindLinkByExternal(ctx, "demo", "zc_1"); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("FindLinkByExternal wrong provider: got %v", err)
	}

	byProvider, _ := s.ListLinksByProvider(ctx, "zenchef")
	if len(byProvider) != 1 || byProvider[0].VenueID != "v1" {
		t.Fatalf("ListLinksByProvider = %+v", byProvider)
	}

	orphan := venue.ProviderLink{VenueID: "missing", Provider: "demo", ExternalID: "x"}
	if err := s.CreateLink(ctx, orphan); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("link to missing venue: got %v", err)
	}
}

func testConcurrentLinks(t *testing.T, s registry.Store) {
	ctx := context.Background()
	mustCreateVenue(t, s, paris("v1"))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateLink(ctx, venue.ProviderLink{VenueID: "v1", Provider: "demo", ExternalID: "ext", SyncStatus: venue.SyncActive})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, internaltypes.ErrConflict):
				dupes++
			default:
				t.Errorf("CreateLink: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dupes != writers-1 {
		t.Fatalf("concurrent writers: %d succeeded, %d conflicted", ok, dupes)
	}
}

func testLinkSync(t *testing.T, s registry.Store) {
	ctx := context.Background()
	mustCreateVenue(t, s, paris("v1"))
	if err := s.CreateLink(ctx, venue.ProviderLink{VenueID: "v1", Provider: "demo", ExternalID: "ext", SyncStatus: venue.SyncActive, CreatedAt: epoch}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	at := epoch.Add(time.Hour)
	if err := s.UpdateLinkSync(ctx, "v1", "demo", registry.LinkSync{Status: venue.SyncActive, At: at}); err != nil {
		t.Fatalf("UpdateLinkSync: %v", err)
	}
	links, _ := s.ListLinks(ctx, "v1")
	if links[0].LastSyncAt == nil || !links[0].LastSyncAt.Equal(at) {
		t.Fatalf("LastSyncAt = %v, want %v", links[0].LastSyncAt, at)
	}

	if err := s.UpdateLinkSync(ctx, "v1", "demo", registry.LinkSync{Status: venue.SyncError, At: at.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateLinkSync error: %v", err)
	}
	links, _ = s.ListLinks(ctx, "v1")
	if links[0].SyncStatus != venue.SyncError {
		t.Fatalf("SyncStatus = %s, want error", links[0].SyncStatus)
	}
	if !links[0].LastSyncAt.Equal(at) {
		t.Fatal("a failed sync must not move LastSyncAt")
	}

	if err := s.UpdateLinkSync(ctx, "v1", "resy", registry.LinkSync{Status: venue.SyncActive, At: at}); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("UpdateLinkSync missing link: got %v", err)
	}
}

func testBookingRoundTrip(t *testing.T, s registry.Store) {
	ctx := context.Background()
	b := booking.Booking{
		ID:                booking.NewID(),
		VenueID:           "v1",
		Provider:          "demo",
		ProviderBookingID: "demo_123",
		Category:          category.Restaurant,
		Params:            booking.Params{"date": "2025-01-15", "time": "19:30", "party_size": 4},
		Customer:          booking.Customer{Name: "Ada", Email: "ada@example.com", Phone: "+33123456789"},
		Status:            booking.StatusConfirmed,
		CreatedAt:         epoch,
		UpdatedAt:         epoch,
	}
	if err := s.CreateBooking(ctx, b); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if err := s.CreateBooking(ctx, b); !errors.Is(err, internaltypes.ErrConflict) {
		t.Fatalf("duplicate booking: got %v, want conflict", err)
	}

	got, err := s.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Customer != b.Customer {
		t.Fatalf("customer = %+v, want %+v", got.Customer, b.Customer)
	}
	if !got.Params.Equal(b.Params) {
		t.Fatalf("params = %v, want %v", got.Params, b.Params)
	}
	if got.Category != category.Restaurant || got.ProviderBookingID != "demo_123" {
		t.Fatalf("unexpected booking %+v", got)
	}

	if err := s.UpdateBookingStatus(ctx, b.ID, booking.StatusCancelled); err != nil {
		t.Fatalf("UpdateBookingStatus: %v", err)
	}
	got, _ = s.GetBooking(ctx, b.ID)
	if got.Status != booking.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if _, err := s.GetBooking(ctx, "bk_missing"); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("GetBooking(missing): got %v", err)
	}
}

func testCredentials(t *testing.T, s registry.Store) {
	ctx := context.Background()
	c := registry.Credential{Ref: "zenchef/main", Provider: "zenchef", Sealed: []byte{1, 2, 3}}
	if err := s.PutCredential(ctx, c); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
	c.Sealed = []byte{4, 5}
	if err := s.PutCredential(ctx, c); err != nil {
		t.Fatalf("PutCredential overwrite: %v", err)
	}
	got, err := s.GetCredential(ctx, "zenchef/main")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if string(got.Sealed) != string([]byte{4, 5}) || got.Provider != "zenchef" {
		t.Fatalf("GetCredential = %+v", got)
	}
	if _, err := s.GetCredential(ctx, "nope"); !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("GetCredential(missing): got %v", err)
	}
}

func ids(vs []venue.Venue) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}
