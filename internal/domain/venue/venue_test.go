package venue

import (
	"testing"
	"time"
)

func TestChooseLinkNoEligible(t *testing.T) {
	t.Parallel()

	if _, ok := ChooseLink(nil); ok {
		t.Fatal("expected no link for empty input")
	}
	_, ok := ChooseLink([]ProviderLink{
		{Provider: "demo", SyncStatus: SyncError},
		{Provider: "zenchef", SyncStatus: SyncPaused},
	})
	if ok {
		t.Fatal("error/paused links must not be eligible")
	}
}

func TestChooseLinkMostRecentSyncWins(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := base.Add(time.Hour)
	newer := base.Add(2 * time.Hour)
	links := []ProviderLink{
		{Provider: "demo", SyncStatus: SyncActive, CreatedAt: base, LastSyncAt: &older},
		{Provider: "zenchef", SyncStatus: SyncActive, CreatedAt: base.Add(time.Minute), LastSyncAt: &newer},
		{Provider: "opentable", SyncStatus: SyncActive, CreatedAt: base.Add(-time.Minute)},
	}
	for i := 0; i < 5; i++ {
		got, ok := ChooseLink(links)
		if !ok || got.Provider != "zenchef" {
			t.Fatalf("ChooseLink() = %v, %v; want zenchef", got.Provider, ok)
		}
	}
}

func TestChooseLinkFallsBackToRegistrationOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	links := []ProviderLink{
		{Provider: "zenchef", SyncStatus: SyncActive, CreatedAt: base.Add(time.Minute)},
		{Provider: "demo", SyncStatus: SyncActive, CreatedAt: base},
	}
	got, _ := ChooseLink(links)
	if got.Provider != "demo" {
		t.Fatalf("expected first registered link, got %s", got.Provider)
	}

	links[0].CreatedAt = base
	got, _ = ChooseLink(links)
	if got.Provider != "demo" {
		t.Fatalf("expected provider-name tie break, got %s", got.Provider)
	}
}

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"goldenfork.example.com":              "goldenfork.example.com",
		"https://www.GoldenFork.example.com/": "goldenfork.example.com",
		"  http://goldenfork.example.com ":    "goldenfork.example.com",
	}
	for in, want := range cases {
		if got := NormalizeDomain(in); got != want {
			t.Fatalf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
