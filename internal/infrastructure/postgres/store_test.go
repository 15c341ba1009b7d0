package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/registry/registrytest"
	"github.com/rs/zerolog"
)

// Runs against a scratch database named by BOOKHUB_TEST_DATABASE_URL. Every
// subtest truncates the registry tables first.
func TestStore(t *testing.T) {
	url := os.Getenv("BOOKHUB_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOOKHUB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// A second run is a no-op.
	if err := Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}

	registrytest.Run(t, func(t *testing.T) registry.Store {
		if _, err := pool.Exec(ctx, `TRUNCATE provider_links, venues, bookings, provider_credentials`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return &Store{pool: pool}
	})
}
