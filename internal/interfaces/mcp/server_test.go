package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/application/usecases"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/memory"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/seed"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	if _, err := seed.Load(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg := providers.NewRegistry()
	for _, name := range []string{reservation.ProviderDemo, reservation.ProviderZenchef} {
		reg.MustRegister(name, func() (reservation.Adapter, error) { return mock.New(name, seed.Catalog(name)), nil })
	}
	d := usecases.NewDispatcher(usecases.Deps{Store: store, Providers: reg, Log: zerolog.Nop()})
	return New(d, "test", zerolog.Nop())
}

func call(t *testing.T, s *Server, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	res, err := s.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("%s: %d content items", name, len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s: content %T", name, res.Content[0])
	}
	return res, text.Text
}

func decode(t *testing.T, text string, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("decode %s: %v", text, err)
	}
}

type errorResult struct {
	Error struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestToolNames(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	want := map[string]bool{
		"get_filters": true, "search_venues": true, "check_availability": true, "book": true, "cancel": true,
		"find_venue_by_domain": true, "get_venue_details": true, "list_venues": true, "get_booking_status": true,
		"list_categories": true, "find_and_book": true,
	}
	names := s.ToolNames()
	if len(names) != len(want) {
		t.Fatalf("tools = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected tool %s", n)
		}
	}
}

func TestSearchAndBookFlow(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	res, text := call(t, s, "search_venues", map[string]any{"category": "restaurant", "city": "Paris", "party_size": float64(2)})
	if res.IsError {
		t.Fatalf("search_venues: %s", text)
	}
	var found usecases.SearchResult
	decode(t, text, &found)
	if found.Count == 0 {
		t.Fatal("no Paris restaurants")
	}

	// Parameters flattened at top level are accepted alongside "params".
	res, text = call(t, s, "book", map[string]any{
		"venue_id":       "demo_paris_hair_001",
		"category":       "hair_salon",
		"date":           "2025-02-01",
		"params":         map[string]any{"time": "14:00", "service": "Haircut"},
		"customer_name":  "Ada Lovelace",
		"customer_email": "ada@example.com",
	})
	if res.IsError {
		t.Fatalf("book: %s", text)
	}
	var booked usecases.BookResult
	decode(t, text, &booked)
	if booked.Booking.Category != "hair_salon" || booked.Booking.Params.Service() != "Haircut" {
		t.Fatalf("booking = %+v", booked.Booking)
	}

	_, text = call(t, s, "cancel", map[string]any{"booking_id": booked.Booking.ID})
	var cancelled usecases.CancelResult
	decode(t, text, &cancelled)
	if !cancelled.Cancelled {
		t.Fatalf("first cancel = %s", text)
	}
	res, text = call(t, s, "cancel", map[string]any{"booking_id": booked.Booking.ID})
	decode(t, text, &cancelled)
	if res.IsError || cancelled.Cancelled {
		t.Fatalf("second cancel = %s", text)
	}
}

func TestErrorRendering(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	cases := []struct {
		tool string
		args map[string]any
		kind string
	}{
		{"find_venue_by_domain", map[string]any{"domain": "nonexistent.example"}, "venue_not_found"},
		{"check_availability", map[string]any{"venue_id": "demo_paris_005", "category": "restaurant", "params": map[string]any{"date": "2025-02-01", "party_size": 2}}, "no_provider_linked"},
		{"search_venues", map[string]any{"category": "bowling", "city": "Paris"}, "unknown_category"},
		{"book", map[string]any{"venue_id": "demo_paris_001", "category": "restaurant", "customer_email": "x"}, "validation"},
		{"get_booking_status", map[string]any{"booking_id": "bk_nope"}, "booking_not_found"},
	}
	for _, tc := range cases {
		res, text := call(t, s, tc.tool, tc.args)
		if !res.IsError {
			t.Fatalf("%s: expected error result, got %s", tc.tool, text)
		}
		var e errorResult
		decode(t, text, &e)
		if e.Error.Kind != tc.kind || e.Error.Message == "" {
			t.Fatalf("%s: error = %+v", tc.tool, e.Error)
		}
	}
}

func TestValidationDetailsListEveryViolation(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, text := call(t, s, "book", map[string]any{"venue_id": "demo_paris_001", "category": "restaurant"})
	var e errorResult
	decode(t, text, &e)
	vs, ok := e.Error.Details["violations"].([]any)
	if !ok || len(vs) != 5 {
		t.Fatalf("violations = %v", e.Error.Details)
	}
}

func TestUnknownCategoryListsCategories(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, text := call(t, s, "get_filters", map[string]any{"category": "bowling", "tool": "book"})
	var e errorResult
	decode(t, text, &e)
	cats, ok := e.Error.Details["available_categories"].([]any)
	if !ok || len(cats) != 4 {
		t.Fatalf("details = %v", e.Error.Details)
	}
}

func TestGetFiltersAcceptsToolNames(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	res, text := call(t, s, "get_filters", map[string]any{"category": "restaurant", "tool": "search_venues"})
	if res.IsError {
		t.Fatalf("get_filters: %s", text)
	}
	var f usecases.FiltersResult
	decode(t, text, &f)
	if f.Tool != "search" {
		t.Fatalf("tool = %s", f.Tool)
	}
}
