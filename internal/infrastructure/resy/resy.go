// Package resy is a Resy API client. It needs an API key and an auth token
// captured from an authenticated browser session; without them it serves the
// seeded Resy catalog from memory.
package resy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/upstream"
	"github.com/example/bookhub/internal/internaltypes"
)

const DefaultBaseURL = "https://api.resy.com"

type Credentials struct {
	APIKey    string
	AuthToken string
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.AuthToken) != ""
}

type Config struct {
	Credentials Credentials
	// ReservationTypes restricts bookable seating, e.g. "Dining Room,Bar".
	ReservationTypes string
	Upstream         upstream.Config
}

func New(cfg Config, catalog map[string]reservation.VenueResult) reservation.Adapter {
	if !cfg.Credentials.complete() {
		return mock.New(reservation.ProviderResy, catalog)
	}
	return NewLive(cfg)
}

type Provider struct {
	client *upstream.Client
	types  []string
}

var _ reservation.Adapter = (*Provider)(nil)

func NewLive(cfg Config) *Provider {
	uc := cfg.Upstream
	uc.Provider = reservation.ProviderResy
	if uc.BaseURL == "" {
		uc.BaseURL = DefaultBaseURL
	}
	creds := cfg.Credentials
	uc.Decorate = func(r *http.Request) {
		r.Header.Set("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
		r.Header.Set("origin", "https://resy.com")
		r.Header.Set("referrer", "https://resy.com")
		r.Header.Set("x-origin", "https://resy.com")
		r.Header.Set("cache-control", "no-cache")
		r.Header.Set("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, creds.APIKey))
		r.Header.Set("x-resy-auth-token", creds.AuthToken)
		r.Header.Set("x-resy-universal-auth", creds.AuthToken)
	}
	return &Provider{client: upstream.New(uc), types: splitCSV(cfg.ReservationTypes)}
}

func (p *Provider) Name() string           { return reservation.ProviderResy }
func (p *Provider) Mode() reservation.Mode { return reservation.ModeLive }

func (p *Provider) Ping(ctx context.Context) error {
	resp, err := p.client.Do(ctx, upstream.Request{Method: http.MethodGet, Path: "/2/user"})
	if err != nil {
		return err
	}
	if !resp.OK() {
		var r struct {
			Message string `json:"message"`
		}
		_ = resp.Decode(&r)
		if r.Message != "" {
			return internaltypes.ProviderUnavailable(p.Name(), fmt.Errorf("ping: %s (status=%d)", r.Message, resp.Status))
		}
		return p.client.Unexpected("ping", resp)
	}
	return nil
}

type slot struct {
	Date struct {
		Start string `json:"start"`
	} `json:"date"`
	Config struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"config"`
}

type findVenue struct {
	Venue struct {
		ID struct {
			Resy int64 `json:"resy"`
		} `json:"id"`
		Name     string  `json:"name"`
		Rating   float64 `json:"rating"`
		Location struct {
			Locality string `json:"locality"`
			Address  string `json:"address_1"`
		} `json:"location"`
		Type       string `json:"type"`
		PriceRange int    `json:"price_range"`
	} `json:"venue"`
	Slots []slot `json:"slots"`
}

// find calls /4/find for one venue and day. lat and long are deprecated
// upstream but still required.
func (p *Provider) find(ctx context.Context, venueID, day string, partySize int) (*findVenue, error) {
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/4/find",
		Query: url.Values{
			"party_size": {strconv.Itoa(partySize)},
			"venue_id":   {venueID},
			"day":        {day},
			"lat":        {"0"},
			"long":       {"0"},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, internaltypes.NotFound("resy does not list %q", venueID)
	}
	if !resp.OK() {
		return nil, p.client.Unexpected("find", resp)
	}
	var body struct {
		Results struct {
			Venues []findVenue `json:"venues"`
		} `json:"results"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, internaltypes.ProviderUnavailable(p.Name(), err)
	}
	if len(body.Results.Venues) == 0 {
		return nil, nil
	}
	return &body.Results.Venues[0], nil
}

// Search looks up each linked venue; Resy has no directory search usable
// with these credentials.
func (p *Provider) Search(ctx context.Context, q reservation.SearchQuery) ([]reservation.VenueResult, error) {
	day := q.Date
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	party := q.PartySize
	if party <= 0 {
		party = 2
	}
	out := []reservation.VenueResult{}
	for _, id := range q.ExternalIDs {
		v, err := p.find(ctx, id, day, party)
		if errors.Is(err, internaltypes.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		res := reservation.VenueResult{
			ExternalID: id,
			Name:       v.Venue.Name,
			Category:   q.Category,
			Address:    v.Venue.Location.Address,
			City:       v.Venue.Location.Locality,
			Rating:     v.Venue.Rating,
			Attributes: map[string]string{"cuisine": v.Venue.Type},
		}
		if v.Venue.PriceRange > 0 {
			res.PriceRange = strings.Repeat("$", v.Venue.PriceRange)
			res.Attributes["price_range"] = res.PriceRange
		}
		out = append(out, res)
	}
	return out, nil
}

// slotClock returns HH:MM from a Resy start such as "2025-01-15 19:00:00".
func slotClock(s slot) (string, bool) {
	pieces := strings.Split(s.Date.Start, " ")
	if len(pieces) < 2 || len(pieces[1]) < 5 {
		return "", false
	}
	return pieces[1][:5], true
}

func (p *Provider) typeAllowed(s slot) bool {
	if len(p.types) == 0 {
		return true
	}
	for _, t := range p.types {
		if strings.EqualFold(t, s.Config.Type) {
			return true
		}
	}
	return false
}

func (p *Provider) GetAvailability(ctx context.Context, q reservation.AvailabilityQuery) ([]reservation.TimeSlot, error) {
	party := q.Params.PartySize()
	v, err := p.find(ctx, q.ExternalID, q.Date, party)
	if err != nil {
		return nil, err
	}
	out := []reservation.TimeSlot{}
	if v == nil {
		return out, nil
	}
	seen := map[string]bool{}
	for _, s := range v.Slots {
		t, ok := slotClock(s)
		if !ok || seen[t] || !p.typeAllowed(s) {
			continue
		}
		seen[t] = true
		out = append(out, reservation.TimeSlot{Time: t, Capacity: party, Available: true})
	}
	return out, nil
}

// Book resolves the slot's config token to a book token and books it. Resy
// takes no idempotency key, so the booking POST is sent once.
func (p *Provider) Book(ctx context.Context, req reservation.BookingRequest) (reservation.Confirmation, error) {
	party := req.Params.PartySize()
	v, err := p.find(ctx, req.ExternalID, req.Date, party)
	if err != nil {
		return reservation.Confirmation{}, err
	}
	var chosen *slot
	if v != nil {
		for i := range v.Slots {
			if t, ok := slotClock(v.Slots[i]); ok && t == req.Time && p.typeAllowed(v.Slots[i]) {
				chosen = &v.Slots[i]
				break
			}
		}
	}
	if chosen == nil {
		return reservation.Confirmation{}, internaltypes.Invalid("time", "no resy slot at %s on %s", req.Time, req.Date)
	}

	// Fetching details has no side effect.
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/3/details",
		JSON: map[string]any{
			"config_id":  chosen.Config.Token,
			"day":        req.Date,
			"party_size": party,
		},
		SafeRetry: true,
	})
	if err != nil {
		return reservation.Confirmation{}, err
	}
	if !resp.OK() {
		return reservation.Confirmation{}, p.client.Unexpected("details", resp)
	}
	var details struct {
		BookToken struct {
			Value string `json:"value"`
		} `json:"book_token"`
		User struct {
			PaymentMethods []struct {
				ID int64 `json:"id"`
			} `json:"payment_methods"`
		} `json:"user"`
	}
	if err := resp.Decode(&details); err != nil || details.BookToken.Value == "" {
		return reservation.Confirmation{}, internaltypes.ProviderUnavailable(p.Name(), fmt.Errorf("details: no book token: %v", err))
	}

	form := url.Values{"book_token": {details.BookToken.Value}}
	if len(details.User.PaymentMethods) > 0 {
		pm, _ := json.Marshal(map[string]int64{"id": details.User.PaymentMethods[0].ID})
		form.Set("struct_payment_method", string(pm))
	}
	resp, err = p.client.Do(ctx, upstream.Request{Method: http.MethodPost, Path: "/3/book", Form: form})
	if err != nil {
		return reservation.Confirmation{}, err
	}
	if resp.Status == http.StatusPreconditionFailed || resp.Status == http.StatusConflict {
		return reservation.Confirmation{}, internaltypes.Invalid("time", "resy slot %s on %s is no longer available", req.Time, req.Date)
	}
	if !resp.OK() {
		return reservation.Confirmation{}, p.client.Unexpected("book", resp)
	}
	var booked struct {
		ResyToken     string `json:"resy_token"`
		ReservationID int64  `json:"reservation_id"`
	}
	if err := resp.Decode(&booked); err != nil || booked.ResyToken == "" {
		return reservation.Confirmation{}, internaltypes.ProviderTimeout(p.Name(), fmt.Errorf("book: no resy_token in response: %v", err))
	}
	return reservation.Confirmation{
		ProviderBookingID: booked.ResyToken,
		Status:            reservation.StatusConfirmed,
		Message:           fmt.Sprintf("Resy reservation %d", booked.ReservationID),
		Idempotent:        false,
	}, nil
}

func (p *Provider) Cancel(ctx context.Context, providerBookingID string) (bool, error) {
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/3/cancel",
		Form:   url.Values{"resy_token": {providerBookingID}},
	})
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.Status == http.StatusNotFound, resp.Status == http.StatusGone:
		return false, nil
	}
	return false, p.client.Unexpected("cancel", resp)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
