package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/registry/registrytest"
)

func TestStore(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Store {
		db, err := Open(filepath.Join(t.TempDir(), "data", "bookhub.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		s := NewStore(db)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
