// Package zenchef integrates the Zenchef restaurant booking API. Without an
// API key it serves the seeded Zenchef catalog from memory.
package zenchef

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/upstream"
	"github.com/example/bookhub/internal/internaltypes"
)

const DefaultBaseURL = "https://api.zenchef.com/v1"

type Config struct {
	APIKey   string
	Upstream upstream.Config
}

// New returns the live adapter when an API key is configured and the mock
// catalog otherwise.
func New(cfg Config, catalog map[string]reservation.VenueResult) reservation.Adapter {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return mock.New(reservation.ProviderZenchef, catalog)
	}
	return NewLive(cfg)
}

type Provider struct {
	client *upstream.Client
}

var _ reservation.Adapter = (*Provider)(nil)

func NewLive(cfg Config) *Provider {
	uc := cfg.Upstream
	uc.Provider = reservation.ProviderZenchef
	if uc.BaseURL == "" {
		uc.BaseURL = DefaultBaseURL
	}
	key := cfg.APIKey
	uc.Decorate = func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+key)
	}
	return &Provider{client: upstream.New(uc)}
}

func (p *Provider) Name() string           { return reservation.ProviderZenchef }
func (p *Provider) Mode() reservation.Mode { return reservation.ModeLive }

func (p *Provider) Ping(ctx context.Context) error {
	resp, err := p.client.Do(ctx, upstream.Request{Method: http.MethodGet, Path: "/restaurants", Query: url.Values{"limit": {"1"}}})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return p.client.Unexpected("ping", resp)
	}
	return nil
}

type restaurant struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	Cuisine    string   `json:"cuisine"`
	PriceRange string   `json:"price_range"`
	Rating     *float64 `json:"rating"`
}

func (p *Provider) Search(ctx context.Context, q reservation.SearchQuery) ([]reservation.VenueResult, error) {
	query := url.Values{"city": {q.City}}
	if q.Date != "" {
		query.Set("date", q.Date)
	}
	if q.PartySize > 0 {
		query.Set("party_size", strconv.Itoa(q.PartySize))
	}
	if c := q.Filters["cuisine"]; c != "" {
		query.Set("cuisine", c)
	}
	if len(q.ExternalIDs) > 0 {
		query.Set("ids", strings.Join(q.ExternalIDs, ","))
	}

	resp, err := p.client.Do(ctx, upstream.Request{Method: http.MethodGet, Path: "/restaurants", Query: query})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, p.client.Unexpected("search", resp)
	}
	var body struct {
		Data []restaurant `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, internaltypes.ProviderUnavailable(p.Name(), err)
	}

	out := make([]reservation.VenueResult, 0, len(body.Data))
	for _, r := range body.Data {
		if !q.WithinExternalIDs(r.ID) {
			continue
		}
		v := reservation.VenueResult{
			ExternalID: r.ID,
			Name:       r.Name,
			Category:   q.Category,
			Address:    r.Address,
			City:       r.City,
			PriceRange: r.PriceRange,
			Attributes: map[string]string{"cuisine": r.Cuisine, "price_range": r.PriceRange},
		}
		if r.Rating != nil {
			v.Rating = *r.Rating
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Provider) GetAvailability(ctx context.Context, q reservation.AvailabilityQuery) ([]reservation.TimeSlot, error) {
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/restaurants/" + url.PathEscape(q.ExternalID) + "/availability",
		Query:  url.Values{"date": {q.Date}, "party_size": {strconv.Itoa(q.Params.PartySize())}},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, internaltypes.NotFound("zenchef does not list %q", q.ExternalID)
	}
	if !resp.OK() {
		return nil, p.client.Unexpected("availability", resp)
	}
	var body struct {
		Slots []struct {
			Time            string `json:"time"`
			Available       bool   `json:"available"`
			CoversAvailable int    `json:"covers_available"`
		} `json:"slots"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, internaltypes.ProviderUnavailable(p.Name(), err)
	}
	out := []reservation.TimeSlot{}
	for _, s := range body.Slots {
		if !s.Available || s.CoversAvailable <= 0 {
			continue
		}
		out = append(out, reservation.TimeSlot{Time: s.Time, Capacity: s.CoversAvailable, Available: true})
	}
	return out, nil
}

// Book sends the dispatcher's idempotency key, so a retried POST cannot
// create a second reservation.
func (p *Provider) Book(ctx context.Context, req reservation.BookingRequest) (reservation.Confirmation, error) {
	payload := map[string]any{
		"restaurant_id":  req.ExternalID,
		"date":           req.Date,
		"time":           req.Time,
		"party_size":     req.Params.PartySize(),
		"customer_name":  req.Customer.Name,
		"customer_email": req.Customer.Email,
	}
	if req.Customer.Phone != "" {
		payload["customer_phone"] = req.Customer.Phone
	}
	resp, err := p.client.Do(ctx, upstream.Request{
		Method:         http.MethodPost,
		Path:           "/bookings",
		JSON:           payload,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return reservation.Confirmation{}, err
	}
	switch {
	case resp.Status == http.StatusNotFound:
		return reservation.Confirmation{}, internaltypes.NotFound("zenchef does not list %q", req.ExternalID)
	case resp.Status == http.StatusConflict || resp.Status == http.StatusUnprocessableEntity:
		return reservation.Confirmation{}, internaltypes.Invalid("time", "slot %s on %s is no longer available", req.Time, req.Date)
	case !resp.OK():
		return reservation.Confirmation{}, p.client.Unexpected("book", resp)
	}
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	// The upstream accepted the booking; an unreadable answer leaves its
	// state unknown rather than failed.
	if err := resp.Decode(&body); err != nil {
		return reservation.Confirmation{}, internaltypes.ProviderTimeout(p.Name(), fmt.Errorf("book: unreadable confirmation: %w", err))
	}
	if body.ID == "" {
		return reservation.Confirmation{}, internaltypes.ProviderTimeout(p.Name(), fmt.Errorf("book: response has no booking id"))
	}
	status := body.Status
	if status == "" {
		status = reservation.StatusConfirmed
	}
	return reservation.Confirmation{
		ProviderBookingID: body.ID,
		Status:            status,
		Idempotent:        req.IdempotencyKey != "",
	}, nil
}

func (p *Provider) Cancel(ctx context.Context, providerBookingID string) (bool, error) {
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodDelete,
		Path:   "/bookings/" + url.PathEscape(providerBookingID),
		// DELETE of one id is naturally idempotent upstream.
		IdempotencyKey: "cancel-" + providerBookingID,
	})
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.Status == http.StatusNotFound, resp.Status == http.StatusGone, resp.Status == http.StatusConflict:
		return false, nil
	}
	return false, p.client.Unexpected("cancel", resp)
}
