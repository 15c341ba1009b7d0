package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/infrastructure/memory"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/seed"
	"github.com/rs/zerolog"
)

// pingOnlyAdapter hides CheckLink, so its ping decides every link.
type pingOnlyAdapter struct {
	reservation.Adapter
	err error
}

func (p pingOnlyAdapter) Ping(context.Context) error { return p.err }

func linkStatus(t *testing.T, store *memory.Store, venueID, provider string) venue.ProviderLink {
	t.Helper()
	links, err := store.ListLinks(context.Background(), venueID)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	for _, l := range links {
		if l.Provider == provider {
			return l
		}
	}
	t.Fatalf("%s has no %s link", venueID, provider)
	return venue.ProviderLink{}
}

func TestSyncMarksUnlistedLinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	if _, err := seed.Load(ctx, store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg := providers.NewRegistry()
	reg.MustRegister(reservation.ProviderDemo, func() (reservation.Adapter, error) {
		return mock.New(reservation.ProviderDemo, seed.Catalog(reservation.ProviderDemo)), nil
	})

	// An unlisted venue must not be revived, and a listed one that had
	// drifted to error must come back.
	if err := store.UpdateLinkSync(ctx, "demo_paris_001", reservation.ProviderDemo, registry.LinkSync{Status: venue.SyncError}); err != nil {
		t.Fatalf("UpdateLinkSync: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &LinkSyncer{Store: store, Providers: reg, Log: zerolog.Nop(), Now: func() time.Time { return now }}
	rep, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Providers != 1 || rep.Errored != 1 || rep.Checked != rep.Active+rep.Errored {
		t.Fatalf("report = %+v", rep)
	}

	if l := linkStatus(t, store, "demo_paris_005", reservation.ProviderDemo); l.SyncStatus != venue.SyncError {
		t.Fatalf("unlisted link = %s", l.SyncStatus)
	}
	l := linkStatus(t, store, "demo_paris_001", reservation.ProviderDemo)
	if l.SyncStatus != venue.SyncActive || l.LastSyncAt == nil || !l.LastSyncAt.Equal(now) {
		t.Fatalf("listed link = %+v", l)
	}
}

func TestSyncSkipsPausedLinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	v := venue.Venue{ID: "v1", Name: "Paused", Category: category.Restaurant, City: "Paris", Status: venue.StatusActive}
	if err := store.CreateVenue(ctx, v); err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	if err := store.CreateLink(ctx, venue.ProviderLink{VenueID: "v1", Provider: "flaky", ExternalID: "x", SyncStatus: venue.SyncPaused}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if err := store.CreateVenue(ctx, venue.Venue{ID: "v2", Name: "Live", Category: category.Restaurant, City: "Paris", Status: venue.StatusActive}); err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	if err := store.CreateLink(ctx, venue.ProviderLink{VenueID: "v2", Provider: "flaky", ExternalID: "y", SyncStatus: venue.SyncActive}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	reg := providers.NewRegistry()
	reg.MustRegister("flaky", func() (reservation.Adapter, error) {
		return pingOnlyAdapter{Adapter: mock.New("flaky", nil), err: errors.New("401 unauthorized")}, nil
	})
	s := &LinkSyncer{Store: store, Providers: reg, Log: zerolog.Nop()}
	rep, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Skipped != 1 || rep.Errored != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if l := linkStatus(t, store, "v1", "flaky"); l.SyncStatus != venue.SyncPaused {
		t.Fatalf("paused link = %s", l.SyncStatus)
	}
	if l := linkStatus(t, store, "v2", "flaky"); l.SyncStatus != venue.SyncError {
		t.Fatalf("ping failure left link %s", l.SyncStatus)
	}
}

func TestSyncFactoryFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	if err := store.CreateVenue(ctx, venue.Venue{ID: "v1", Name: "V", Category: category.Restaurant, City: "Paris", Status: venue.StatusActive}); err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	if err := store.CreateLink(ctx, venue.ProviderLink{VenueID: "v1", Provider: "nokey", ExternalID: "x", SyncStatus: venue.SyncActive}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	reg := providers.NewRegistry()
	reg.MustRegister("nokey", func() (reservation.Adapter, error) { return nil, errors.New("api key missing") })

	s := &LinkSyncer{Store: store, Providers: reg, Log: zerolog.Nop()}
	if _, err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if l := linkStatus(t, store, "v1", "nokey"); l.SyncStatus != venue.SyncError {
		t.Fatalf("link = %s", l.SyncStatus)
	}
}
