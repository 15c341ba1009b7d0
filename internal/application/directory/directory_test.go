package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/infrastructure/memory"
	"github.com/example/bookhub/internal/infrastructure/seed"
	"github.com/example/bookhub/internal/internaltypes"
)

func seeded(t *testing.T) (*Directory, registry.Store) {
	t.Helper()
	store := memory.New()
	if _, err := seed.Load(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(store, category.DefaultTable()), store
}

func TestSearchParisRestaurants(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	vs, err := d.Search(context.Background(), category.Restaurant, "paris", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for i, v := range vs {
		if v.City != "Paris" || v.Category != category.Restaurant {
			t.Fatalf("unexpected venue %+v", v)
		}
		if i > 0 && vs[i-1].ID >= v.ID {
			t.Fatalf("results not sorted at %d", i)
		}
		if v.Name == "The Golden Fork" {
			found = true
		}
	}
	if !found {
		t.Fatal("The Golden Fork missing from Paris restaurants")
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	vs, err := d.Search(context.Background(), category.Restaurant, "Paris", map[string]string{"cuisine": "japanese", "not_declared": "x"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(vs) != 1 || vs[0].ID != "demo_paris_003" {
		t.Fatalf("Search = %+v", vs)
	}
}

func TestResolveByIDScenarios(t *testing.T) {
	t.Parallel()

	d, store := seeded(t)
	ctx := context.Background()

	v, link, err := d.ResolveByID(ctx, "demo_paris_hair_001")
	if err != nil {
		t.Fatalf("ResolveByID: %v", err)
	}
	if v.Category != category.HairSalon || link.Provider != reservation.ProviderDemo {
		t.Fatalf("resolved %+v via %+v", v, link)
	}

	if _, _, err := d.ResolveByID(ctx, "nope"); !errors.Is(err, internaltypes.ErrVenueNotFound) {
		t.Fatalf("unknown venue: %v", err)
	}
	// Only link is in sync error.
	if _, _, err := d.ResolveByID(ctx, "demo_paris_005"); !errors.Is(err, internaltypes.ErrNoProviderLinked) {
		t.Fatalf("error-state link: %v", err)
	}
	// No links at all.
	if _, _, err := d.ResolveByID(ctx, "demo_paris_006"); !errors.Is(err, internaltypes.ErrNoProviderLinked) {
		t.Fatalf("zero links: %v", err)
	}

	if err := store.UpdateVenueStatus(ctx, "demo_paris_001", venue.StatusInactive); err != nil {
		t.Fatalf("UpdateVenueStatus: %v", err)
	}
	if _, _, err := d.ResolveByID(ctx, "demo_paris_001"); !errors.Is(err, internaltypes.ErrVenueNotFound) {
		t.Fatalf("inactive venue: %v", err)
	}
}

func TestResolveByIDPrefersRecentSync(t *testing.T) {
	t.Parallel()

	d, store := seeded(t)
	ctx := context.Background()

	_, link, err := d.ResolveByID(ctx, "demo_paris_003")
	if err != nil || link.Provider != reservation.ProviderDemo {
		t.Fatalf("before sync: %+v, %v", link, err)
	}
	if err := store.UpdateLinkSync(ctx, "demo_paris_003", reservation.ProviderZenchef, registry.LinkSync{Status: venue.SyncActive, At: time.Now()}); err != nil {
		t.Fatalf("UpdateLinkSync: %v", err)
	}
	_, link, err = d.ResolveByID(ctx, "demo_paris_003")
	if err != nil || link.Provider != reservation.ProviderZenchef {
		t.Fatalf("after sync: %+v, %v", link, err)
	}
}

func TestResolveByDomain(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	ctx := context.Background()

	v, err := d.ResolveByDomain(ctx, "https://www.GoldenFork.example.com/")
	if err != nil || v.ID != "demo_paris_001" {
		t.Fatalf("ResolveByDomain = %+v, %v", v, err)
	}
	for _, domain := range []string{"nonexistent.example", "goldenfork.example", "fork.example.com"} {
		if _, err := d.ResolveByDomain(ctx, domain); !errors.Is(err, internaltypes.ErrVenueNotFound) {
			t.Fatalf("ResolveByDomain(%q) = %v", domain, err)
		}
	}
	if _, err := d.ResolveByDomain(ctx, "  "); !errors.Is(err, internaltypes.ErrValidation) {
		t.Fatalf("blank domain: %v", err)
	}
}

func TestRouteSplitsUnlinked(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	ctx := context.Background()
	vs, err := d.Search(ctx, category.Restaurant, "Paris", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	routed, unrouted, err := d.Route(ctx, vs)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(routed)+len(unrouted) != len(vs) {
		t.Fatalf("lost venues: %d + %d != %d", len(routed), len(unrouted), len(vs))
	}
	ids := map[string]bool{}
	for _, v := range unrouted {
		ids[v.ID] = true
	}
	if !ids["demo_paris_005"] || !ids["demo_paris_006"] || len(ids) != 2 {
		t.Fatalf("unrouted = %v", ids)
	}
}

func TestResolveByExternal(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	v, l, err := d.ResolveByExternal(context.Background(), reservation.ProviderZenchef, "zc_sakurablossom_003")
	if err != nil || v.ID != "demo_paris_003" || l.Provider != reservation.ProviderZenchef {
		t.Fatalf("ResolveByExternal = %+v, %+v, %v", v, l, err)
	}
	if _, _, err := d.ResolveByExternal(context.Background(), reservation.ProviderZenchef, "zc_missing"); !errors.Is(err, internaltypes.ErrVenueNotFound) {
		t.Fatalf("missing external id: %v", err)
	}
}

func TestListUnknownCategory(t *testing.T) {
	t.Parallel()

	d, _ := seeded(t)
	if _, err := d.List(context.Background(), "bowling", ""); !errors.Is(err, internaltypes.ErrUnknownCategory) {
		t.Fatalf("List(bowling) = %v", err)
	}
	vs, err := d.List(context.Background(), "Hair Salon", "")
	if err != nil || len(vs) != 3 {
		t.Fatalf("List(Hair Salon) = %d, %v", len(vs), err)
	}
}
