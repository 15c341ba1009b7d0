package seed

import (
	"context"
	"testing"

	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/memory"
)

func TestLoadIsRepeatable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	n, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != len(Entries()) {
		t.Fatalf("Load created %d venues, want %d", n, len(Entries()))
	}
	n, err = Load(ctx, store)
	if err != nil || n != 0 {
		t.Fatalf("second Load = %d, %v; want 0, nil", n, err)
	}

	venues, _ := store.ListVenues(ctx, registry.VenueFilter{})
	if len(venues) != len(Entries()) {
		t.Fatalf("store holds %d venues, want %d", len(venues), len(Entries()))
	}
	links, _ := store.ListLinks(ctx, "demo_paris_003")
	if len(links) != 2 {
		t.Fatalf("demo_paris_003 has %d links, want 2", len(links))
	}
}

func TestCatalogSkipsUnlisted(t *testing.T) {
	t.Parallel()

	cat := Catalog(reservation.ProviderDemo)
	if _, ok := cat["ext_goldenfork_001"]; !ok {
		t.Fatal("demo catalog is missing The Golden Fork")
	}
	if _, ok := cat["ext_dernierservice_005"]; ok {
		t.Fatal("unlisted external id must not be in the catalog")
	}
	for id, v := range Catalog(reservation.ProviderZenchef) {
		if v.ExternalID != id || v.Name == "" {
			t.Fatalf("bad zenchef catalog entry %q: %+v", id, v)
		}
	}
}
