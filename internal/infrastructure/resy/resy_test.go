package resy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/upstream"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/rs/zerolog"
)

const findJSON = `{"results":{"venues":[{"venue":{"id":{"resy":1505},"name":"Little Italy Kitchen","rating":4.5,"type":"Italian","price_range":2,"location":{"locality":"New York"}},
"slots":[
	{"date":{"start":"2025-01-15 19:00:00"},"config":{"type":"Dining Room","token":"cfg-1900"}},
	{"date":{"start":"2025-01-15 19:00:00"},"config":{"type":"Bar","token":"cfg-1900-bar"}},
	{"date":{"start":"2025-01-15 21:15:00"},"config":{"type":"Patio","token":"cfg-2115"}}
]}]}}`

func newLive(t *testing.T, mux *http.ServeMux, types string) *Provider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewLive(Config{
		Credentials:      Credentials{APIKey: "key", AuthToken: "tok"},
		ReservationTypes: types,
		Upstream: upstream.Config{
			BaseURL:    srv.URL,
			Timeout:    time.Second,
			MaxRetries: 1,
			Backoff:    time.Millisecond,
			Log:        zerolog.Nop(),
		},
	})
}

func TestNewNeedsBothCredentials(t *testing.T) {
	t.Parallel()

	if got := New(Config{Credentials: Credentials{APIKey: "k"}}, nil).Mode(); got != reservation.ModeMock {
		t.Fatalf("api key only: mode = %s", got)
	}
	if got := New(Config{Credentials: Credentials{APIKey: "k", AuthToken: "t"}}, nil).Mode(); got != reservation.ModeLive {
		t.Fatalf("full credentials: mode = %s", got)
	}
}

func TestPingReportsMessage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/2/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-resy-auth-token") != "tok" {
			t.Errorf("missing auth token")
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	})
	p := newLive(t, mux, "")

	err := p.Ping(context.Background())
	if !errors.Is(err, internaltypes.ErrProviderUnavailable) {
		t.Fatalf("Ping = %v", err)
	}
}

func TestAvailabilityFiltersTypes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/4/find", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("venue_id") != "1505" || r.URL.Query().Get("lat") != "0" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(findJSON))
	})
	p := newLive(t, mux, "dining room, bar")

	slots, err := p.GetAvailability(context.Background(), reservation.AvailabilityQuery{
		ExternalID: "1505", Date: "2025-01-15", Params: booking.Params{"party_size": 2},
	})
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if len(slots) != 1 || slots[0].Time != "19:00" {
		t.Fatalf("slots = %+v", slots)
	}

	venues, err := p.Search(context.Background(), reservation.SearchQuery{ExternalIDs: []string{"1505"}, Date: "2025-01-15"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(venues) != 1 || venues[0].Name != "Little Italy Kitchen" || venues[0].PriceRange != "$$" {
		t.Fatalf("Search = %+v", venues)
	}
}

func TestBookAndCancel(t *testing.T) {
	t.Parallel()

	var books atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/4/find", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(findJSON))
	})
	mux.HandleFunc("/3/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"book_token":{"value":"bt-1"},"user":{"payment_methods":[{"id":77}]}}`))
	})
	mux.HandleFunc("/3/book", func(w http.ResponseWriter, r *http.Request) {
		books.Add(1)
		r.ParseForm()
		if r.PostForm.Get("book_token") != "bt-1" || r.PostForm.Get("struct_payment_method") != `{"id":77}` {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Write([]byte(`{"resy_token":"rt-1","reservation_id":9}`))
	})
	mux.HandleFunc("/3/cancel", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("resy_token") == "rt-1" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	p := newLive(t, mux, "")
	ctx := context.Background()

	conf, err := p.Book(ctx, reservation.BookingRequest{
		ExternalID: "1505", Date: "2025-01-15", Time: "21:15",
		Customer: booking.Customer{Name: "Ada", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if conf.ProviderBookingID != "rt-1" || conf.Idempotent || books.Load() != 1 {
		t.Fatalf("Book = %+v", conf)
	}

	if _, err := p.Book(ctx, reservation.BookingRequest{ExternalID: "1505", Date: "2025-01-15", Time: "18:00"}); !errors.Is(err, internaltypes.ErrValidation) {
		t.Fatalf("Book(no slot) = %v", err)
	}

	if ok, err := p.Cancel(ctx, "rt-1"); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}
	if ok, err := p.Cancel(ctx, "rt-unknown"); err != nil || ok {
		t.Fatalf("Cancel(unknown) = %v, %v", ok, err)
	}
}
