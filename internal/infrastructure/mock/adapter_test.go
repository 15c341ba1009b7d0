package mock

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
)

func testCatalog() map[string]reservation.VenueResult {
	return map[string]reservation.VenueResult{
		"ext_a": {ExternalID: "ext_a", Name: "A", Category: category.Restaurant, City: "Paris", Attributes: map[string]string{"cuisine": "French"}},
		"ext_b": {ExternalID: "ext_b", Name: "B", Category: category.Restaurant, City: "London", Attributes: map[string]string{"cuisine": "British"}},
		"ext_c": {ExternalID: "ext_c", Name: "C", Category: category.HairSalon, City: "Paris", Attributes: map[string]string{"service": "Haircut"}},
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	a := New("demo", testCatalog())
	ctx := context.Background()

	got, err := a.Search(ctx, reservation.SearchQuery{Category: category.Restaurant, City: "PARIS"})
	if err != nil || len(got) != 1 || got[0].ExternalID != "ext_a" {
		t.Fatalf("Search = %+v, %v", got, err)
	}

	got, _ = a.Search(ctx, reservation.SearchQuery{Category: category.Restaurant, City: "Paris", Filters: map[string]string{"cuisine": "japanese"}})
	if got == nil || len(got) != 0 {
		t.Fatalf("zero results must be an empty slice, got %#v", got)
	}

	got, _ = a.Search(ctx, reservation.SearchQuery{Category: category.Restaurant, ExternalIDs: []string{"ext_b"}})
	if len(got) != 1 || got[0].ExternalID != "ext_b" {
		t.Fatalf("ExternalIDs restriction ignored: %+v", got)
	}
}

func TestSlotsAreDeterministic(t *testing.T) {
	t.Parallel()

	first := Slots("ext_a", "2025-01-15")
	if len(first) != 12 {
		t.Fatalf("got %d slots, want 5 lunch + 7 dinner", len(first))
	}
	if first[0].Time != "12:00" || first[4].Time != "14:00" || first[5].Time != "19:00" || first[11].Time != "22:00" {
		t.Fatalf("unexpected slot times: %+v", first)
	}
	if !reflect.DeepEqual(first, Slots("ext_a", "2025-01-15")) {
		t.Fatal("slots differ between calls")
	}
	for _, s := range first {
		if s.Available != (s.Capacity > 0) {
			t.Fatalf("slot %+v: availability and capacity disagree", s)
		}
	}
}

func TestAvailabilityOnlyReturnsSeatableSlots(t *testing.T) {
	t.Parallel()

	a := New("demo", testCatalog())
	slots, err := a.GetAvailability(context.Background(), reservation.AvailabilityQuery{
		ExternalID: "ext_a", Date: "2025-01-15", Params: booking.Params{"party_size": 12},
	})
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	for _, s := range slots {
		if s.Capacity < 12 {
			t.Fatalf("slot %s has capacity %d for a party of 12", s.Time, s.Capacity)
		}
	}

	_, err = a.GetAvailability(context.Background(), reservation.AvailabilityQuery{ExternalID: "nope", Date: "2025-01-15"})
	if !errors.Is(err, internaltypes.ErrNotFound) {
		t.Fatalf("unknown venue: got %v", err)
	}
}

func TestBookIdempotencyAndCancel(t *testing.T) {
	t.Parallel()

	a := New("demo", testCatalog())
	ctx := context.Background()
	req := reservation.BookingRequest{ExternalID: "ext_c", Date: "2025-01-15", Time: "19:30", IdempotencyKey: "k1"}

	c1, err := a.Book(ctx, req)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	c2, _ := a.Book(ctx, req)
	if c1.ProviderBookingID != c2.ProviderBookingID || !c1.Idempotent {
		t.Fatalf("replayed key produced %q and %q", c1.ProviderBookingID, c2.ProviderBookingID)
	}
	req.IdempotencyKey = "k2"
	c3, _ := a.Book(ctx, req)
	if c3.ProviderBookingID == c1.ProviderBookingID {
		t.Fatal("distinct keys must create distinct bookings")
	}

	ok, err := a.Cancel(ctx, c1.ProviderBookingID)
	if err != nil || !ok {
		t.Fatalf("first Cancel = %v, %v", ok, err)
	}
	ok, err = a.Cancel(ctx, c1.ProviderBookingID)
	if err != nil || ok {
		t.Fatalf("second Cancel = %v, %v; want false, nil", ok, err)
	}
	ok, err = a.Cancel(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("Cancel(missing) = %v, %v", ok, err)
	}
}

func TestBookHonoursOfferedSlots(t *testing.T) {
	t.Parallel()

	a := New("demo", testCatalog())
	ctx := context.Background()
	const date = "2025-01-15"
	var closed, open reservation.TimeSlot
	for _, s := range Slots("ext_a", date) {
		switch {
		case !s.Available && closed.Time == "":
			closed = s
		case s.Available && open.Time == "":
			open = s
		}
	}
	if closed.Time == "" || open.Time == "" {
		t.Fatalf("fixture needs a closed and an open slot: %+v", Slots("ext_a", date))
	}
	book := func(tm string, party int) (reservation.Confirmation, error) {
		return a.Book(ctx, reservation.BookingRequest{ExternalID: "ext_a", Date: date, Time: tm, Params: booking.Params{"party_size": party}})
	}

	for _, tm := range []string{closed.Time, "03:00"} {
		if _, err := book(tm, 2); !errors.Is(err, internaltypes.ErrValidation) {
			t.Fatalf("Book at %s = %v, want validation error", tm, err)
		}
	}

	first, err := book(open.Time, open.Capacity-1)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := book(open.Time, 2); !errors.Is(err, internaltypes.ErrValidation) {
		t.Fatalf("overbooked slot accepted: %v", err)
	}
	slots, _ := a.GetAvailability(ctx, reservation.AvailabilityQuery{ExternalID: "ext_a", Date: date, Params: booking.Params{"party_size": 1}})
	for _, s := range slots {
		if s.Time == open.Time && s.Capacity != 1 {
			t.Fatalf("slot %s reports %d covers, want 1", s.Time, s.Capacity)
		}
	}

	if ok, _ := a.Cancel(ctx, first.ProviderBookingID); !ok {
		t.Fatal("Cancel failed")
	}
	if _, err := book(open.Time, 2); err != nil {
		t.Fatalf("Book after cancel: %v", err)
	}
}
