// Package opentable talks to OpenTable's web GraphQL and booking endpoints.
// OpenTable takes no idempotency key, so Book is at-least-once and is never
// retried.
package opentable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/upstream"
	"github.com/example/bookhub/internal/internaltypes"
)

const defaultBaseURL = "https://www.opentable.com/dapi"
const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) bookhub/1.0"
const defaultPersistedQuerySHA256 = "e6b87083b2dfc66e11d26f9bd6e98b8f6a9f4a3b7d0e9a2f33c9f1f6a0b9f2a1"

type Config struct {
	Token string
	// PersistedQuerySHA256 overrides the availability query hash.
	PersistedQuerySHA256 string
	Upstream             upstream.Config
}

func New(cfg Config, catalog map[string]reservation.VenueResult) reservation.Adapter {
	if strings.TrimSpace(cfg.Token) == "" {
		return mock.New(reservation.ProviderOpenTable, catalog)
	}
	return NewLive(cfg)
}

type Provider struct {
	client *upstream.Client
	token  string
	hash   string
}

var _ reservation.Adapter = (*Provider)(nil)

func NewLive(cfg Config) *Provider {
	hash := defaultPersistedQuerySHA256
	if strings.TrimSpace(cfg.PersistedQuerySHA256) != "" {
		hash = cfg.PersistedQuerySHA256
	}
	uc := cfg.Upstream
	uc.Provider = reservation.ProviderOpenTable
	if uc.BaseURL == "" {
		uc.BaseURL = defaultBaseURL
	}
	token := cfg.Token
	uc.Decorate = func(r *http.Request) {
		r.Header.Set("user-agent", defaultUA)
		r.Header.Set("x-csrf-token", token)
	}
	return &Provider{client: upstream.New(uc), token: token, hash: hash}
}

func (p *Provider) Name() string           { return reservation.ProviderOpenTable }
func (p *Provider) Mode() reservation.Mode { return reservation.ModeLive }

// Ping only checks configuration; OpenTable has no cheap authenticated
// endpoint to call.
func (p *Provider) Ping(ctx context.Context) error {
	if strings.TrimSpace(p.token) == "" {
		return internaltypes.ProviderUnavailable(p.Name(), errors.New("OPENTABLE_TOKEN is empty"))
	}
	return ctx.Err()
}

type slot struct {
	IsAvailable           bool   `json:"isAvailable"`
	ReservationDateTime   string `json:"reservationDateTime"`
	SlotAvailabilityToken string `json:"slotAvailabilityToken"`
	SlotHash              string `json:"slotHash"`
}

type restaurantAvailability struct {
	RestaurantID     int `json:"restaurantId"`
	AvailabilityDays []struct {
		Slots []slot `json:"slots"`
	} `json:"availabilityDays"`
}

// availability runs the RestaurantsAvailability persisted query. It is a
// read sent as POST, so it is marked safe to retry.
func (p *Provider) availability(ctx context.Context, restaurantIDs []string, date string, partySize int) ([]restaurantAvailability, error) {
	ids := make([]int, 0, len(restaurantIDs))
	for _, id := range restaurantIDs {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, internaltypes.Invalid("venue_id", "opentable restaurant id %q is not numeric", id)
		}
		ids = append(ids, n)
	}
	payload := map[string]any{
		"operationName": "RestaurantsAvailability",
		"variables": map[string]any{
			"restaurantIds": ids,
			"partySize":     partySize,
			"dateTime":      date + "T19:00:00.000",
			"forwardDays":   0,
			"includeOffers": false,
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": p.hash,
			},
		},
	}
	resp, err := p.client.Do(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/fe/gql?optype=query&opname=RestaurantsAvailability",
		JSON:      payload,
		SafeRetry: true,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, p.client.Unexpected("availability", resp)
	}
	var parsed struct {
		Data struct {
			Availability []restaurantAvailability `json:"availability"`
		} `json:"data"`
	}
	if err := resp.Decode(&parsed); err != nil {
		return nil, internaltypes.ProviderUnavailable(p.Name(), err)
	}
	return parsed.Data.Availability, nil
}

// Search has no city search on OpenTable's side; it checks which of the
// linked restaurants have availability for the query.
func (p *Provider) Search(ctx context.Context, q reservation.SearchQuery) ([]reservation.VenueResult, error) {
	if len(q.ExternalIDs) == 0 {
		return []reservation.VenueResult{}, nil
	}
	date := q.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	party := q.PartySize
	if party <= 0 {
		party = 2
	}
	avail, err := p.availability(ctx, q.ExternalIDs, date, party)
	if err != nil {
		return nil, err
	}
	out := []reservation.VenueResult{}
	for _, a := range avail {
		out = append(out, reservation.VenueResult{
			ExternalID: strconv.Itoa(a.RestaurantID),
			Category:   q.Category,
			City:       q.City,
		})
	}
	return out, nil
}

func (p *Provider) slots(ctx context.Context, externalID, date string, partySize int) ([]slot, error) {
	avail, err := p.availability(ctx, []string{externalID}, date, partySize)
	if err != nil {
		return nil, err
	}
	var out []slot
	for _, a := range avail {
		for _, d := range a.AvailabilityDays {
			for _, s := range d.Slots {
				if s.IsAvailable && strings.HasPrefix(s.ReservationDateTime, date) {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

// slotTime extracts HH:MM from an OpenTable reservationDateTime.
func slotTime(s slot) (string, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s.ReservationDateTime); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

func (p *Provider) GetAvailability(ctx context.Context, q reservation.AvailabilityQuery) ([]reservation.TimeSlot, error) {
	party := q.Params.PartySize()
	ss, err := p.slots(ctx, q.ExternalID, q.Date, party)
	if err != nil {
		return nil, err
	}
	out := []reservation.TimeSlot{}
	for _, s := range ss {
		t, ok := slotTime(s)
		if !ok {
			continue
		}
		// OpenTable only reports slots that fit the requested party.
		out = append(out, reservation.TimeSlot{Time: t, Capacity: party, Available: true})
	}
	return out, nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

func (p *Provider) Book(ctx context.Context, req reservation.BookingRequest) (reservation.Confirmation, error) {
	if req.Customer.Phone == "" {
		return reservation.Confirmation{}, internaltypes.Invalid("customer_phone", "is required for opentable bookings")
	}
	party := req.Params.PartySize()
	ss, err := p.slots(ctx, req.ExternalID, req.Date, party)
	if err != nil {
		return reservation.Confirmation{}, err
	}
	var chosen *slot
	for i := range ss {
		if t, ok := slotTime(ss[i]); ok && t == req.Time {
			chosen = &ss[i]
			break
		}
	}
	if chosen == nil {
		return reservation.Confirmation{}, internaltypes.Invalid("time", "no opentable slot at %s on %s", req.Time, req.Date)
	}
	if chosen.SlotAvailabilityToken == "" || chosen.SlotHash == "" {
		return reservation.Confirmation{}, internaltypes.ProviderUnavailable(p.Name(), errors.New("slot missing slotAvailabilityToken/slotHash"))
	}

	first, last := splitName(req.Customer.Name)
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/booking/make-reservation",
		JSON: map[string]any{
			"restaurantId":          req.ExternalID,
			"partySize":             party,
			"reservationDateTime":   chosen.ReservationDateTime,
			"slotAvailabilityToken": chosen.SlotAvailabilityToken,
			"slotHash":              chosen.SlotHash,
			"firstName":             first,
			"lastName":              last,
			"email":                 req.Customer.Email,
			"phoneNumber":           req.Customer.Phone,
		},
	})
	if err != nil {
		return reservation.Confirmation{}, err
	}
	if !resp.OK() {
		return reservation.Confirmation{}, p.client.Unexpected("book", resp)
	}
	var body struct {
		ConfirmationNumber int64  `json:"confirmationNumber"`
		SecurityToken      string `json:"securityToken"`
	}
	if err := resp.Decode(&body); err != nil || body.ConfirmationNumber == 0 {
		return reservation.Confirmation{}, internaltypes.ProviderTimeout(p.Name(), fmt.Errorf("book: unreadable confirmation: %v", err))
	}
	return reservation.Confirmation{
		ProviderBookingID: encodeBookingID(req.ExternalID, body.ConfirmationNumber, body.SecurityToken),
		Status:            reservation.StatusConfirmed,
		Idempotent:        false,
	}, nil
}

// A booking is addressed upstream by restaurant, confirmation number and
// security token; the three travel together as one provider booking id.
func encodeBookingID(restaurantID string, confirmation int64, token string) string {
	return fmt.Sprintf("%s:%d:%s", restaurantID, confirmation, token)
}

func decodeBookingID(id string) (restaurantID string, confirmation int64, token string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return "", 0, "", false
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], n, parts[2], true
}

func (p *Provider) Cancel(ctx context.Context, providerBookingID string) (bool, error) {
	rid, confirmation, token, ok := decodeBookingID(providerBookingID)
	if !ok {
		return false, nil
	}
	resp, err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/booking/cancel-reservation",
		JSON: map[string]any{
			"restaurantId":       rid,
			"confirmationNumber": confirmation,
			"securityToken":      token,
		},
	})
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		var body struct {
			Cancelled *bool `json:"cancelled"`
		}
		if resp.Decode(&body) == nil && body.Cancelled != nil {
			return *body.Cancelled, nil
		}
		return true, nil
	case resp.Status == http.StatusNotFound, resp.Status == http.StatusConflict:
		return false, nil
	}
	return false, p.client.Unexpected("cancel", resp)
}
