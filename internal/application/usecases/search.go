package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/bookhub/internal/application/directory"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
	"golang.org/x/sync/errgroup"
)

// maxSearchFanout bounds concurrent provider searches.
const maxSearchFanout = 8

type FiltersResult struct {
	Category   string           `json:"category"`
	Tool       string           `json:"tool"`
	Parameters []category.Param `json:"parameters"`
	Required   []string         `json:"required"`
	Optional   []string         `json:"optional"`
}

// GetFilters describes the parameters a category accepts for one tool.
func (d *Dispatcher) GetFilters(ctx context.Context, cat, tool string) (FiltersResult, error) {
	c := d.begin(ctx, "get_filters")
	s, err := d.schema.Schema(cat, tool)
	if err != nil {
		return FiltersResult{}, c.fail(err)
	}
	c.advance(StateSchemaValidated)
	required, optional := s.Required(), s.Optional()
	if required == nil {
		required = []string{}
	}
	if optional == nil {
		optional = []string{}
	}
	return FiltersResult{
		Category:   string(s.Category),
		Tool:       string(s.Operation),
		Parameters: s.Params,
		Required:   required,
		Optional:   optional,
	}, nil
}

type CategoriesResult struct {
	Categories []string `json:"categories"`
	Tools      []string `json:"tools"`
}

func (d *Dispatcher) ListCategories() CategoriesResult {
	return CategoriesResult{Categories: d.schema.Categories(), Tools: d.schema.Operations()}
}

type SearchRequest struct {
	Category  string
	City      string
	Date      string
	PartySize int
	Filters   map[string]any
}

type VenueSummary struct {
	VenueID    string            `json:"venue_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Address    string            `json:"address,omitempty"`
	City       string            `json:"city,omitempty"`
	Country    string            `json:"country,omitempty"`
	Domain     string            `json:"domain,omitempty"`
	Provider   string            `json:"provider"`
	Rating     float64           `json:"rating,omitempty"`
	PriceRange string            `json:"price_range,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	// Degraded marks a venue whose provider could not be reached; it is
	// listed from directory data alone.
	Degraded bool `json:"degraded,omitempty"`
}

type SearchResult struct {
	Category       string         `json:"category"`
	City           string         `json:"city"`
	Count          int            `json:"count"`
	Venues         []VenueSummary `json:"venues"`
	IgnoredFilters []string       `json:"ignored_filters,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

func summarize(v venue.Venue, provider string) VenueSummary {
	return VenueSummary{
		VenueID:    v.ID,
		Name:       v.Name,
		Category:   string(v.Category),
		Address:    v.Address,
		City:       v.City,
		Country:    v.Country,
		Domain:     v.Domain,
		Provider:   provider,
		PriceRange: v.Metadata["price_range"],
		Attributes: v.Metadata,
	}
}

// SearchVenues finds directory venues matching the request and asks each
// routing provider which of them it can serve. Providers are queried
// concurrently; one that fails leaves its venues in the result marked
// degraded instead of failing the search.
func (d *Dispatcher) SearchVenues(ctx context.Context, req SearchRequest) (SearchResult, error) {
	c := d.begin(ctx, "search_venues")

	params := make(map[string]any, len(req.Filters)+2)
	for k, v := range req.Filters {
		params[k] = v
	}
	if req.Date != "" {
		params["date"] = req.Date
	}
	if req.PartySize != 0 {
		params["party_size"] = req.PartySize
	}
	res, err := d.schema.Validate(req.Category, string(category.OpSearch), params)
	if err != nil {
		return SearchResult{}, c.fail(err)
	}
	violations := res.Violations
	city := strings.TrimSpace(req.City)
	if city == "" {
		violations = append(violations, internaltypes.Violation{Field: "city", Message: "city is required"})
	}
	if len(violations) > 0 {
		return SearchResult{}, c.fail(internaltypes.NewValidationError(violations...))
	}
	c.advance(StateSchemaValidated)

	filters := map[string]string{}
	for k, v := range res.Params {
		if p, _ := res.Schema.Param(k); p.Type == category.TypeString {
			filters[k] = v.(string)
		}
	}
	vs, err := d.dir.Search(ctx, res.Schema.Category, city, filters)
	if err != nil {
		return SearchResult{}, c.fail(err)
	}
	routed, unrouted, err := d.dir.Route(ctx, vs)
	if err != nil {
		return SearchResult{}, c.fail(err)
	}
	if len(unrouted) > 0 {
		c.log.Debug().Int("unrouted", len(unrouted)).Msg("skipping venues without an active provider link")
	}
	c.advance(StateVenueResolved)

	// One search per provider account: links on different credentials
	// are served by different adapters.
	type account struct{ provider, ref string }
	byAccount := map[account][]directory.Routed{}
	for _, r := range routed {
		k := account{r.Link.Provider, r.Link.CredentialRef}
		byAccount[k] = append(byAccount[k], r)
	}
	q := reservation.SearchQuery{
		Category:  res.Schema.Category,
		City:      city,
		Date:      req.Date,
		PartySize: req.PartySize,
		Filters:   filters,
	}

	var (
		mu       sync.Mutex
		venues   []VenueSummary
		warnings []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSearchFanout)
	for acct, group := range byAccount {
		provider := acct.provider
		g.Go(func() error {
			found, err := d.searchProvider(gctx, group[0].Link, q, group)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warn().Err(err).Str("provider", provider).Msg("provider search degraded")
				warnings = append(warnings, fmt.Sprintf("%s: %v", provider, err))
				for _, r := range group {
					s := summarize(r.Venue, provider)
					s.Degraded = true
					venues = append(venues, s)
				}
				return nil
			}
			venues = append(venues, found...)
			return nil
		})
	}
	_ = g.Wait()
	c.advance(StateAdapterInvoked)

	sort.Slice(venues, func(i, j int) bool { return venues[i].VenueID < venues[j].VenueID })
	sort.Strings(warnings)
	if venues == nil {
		venues = []VenueSummary{}
	}
	return SearchResult{
		Category:       string(res.Schema.Category),
		City:           city,
		Count:          len(venues),
		Venues:         venues,
		IgnoredFilters: res.Ignored,
		Warnings:       warnings,
	}, nil
}

// searchProvider restricts the provider search to the external ids of the
// venues routed through it and joins the hits back to directory venues.
func (d *Dispatcher) searchProvider(ctx context.Context, link venue.ProviderLink, q reservation.SearchQuery, group []directory.Routed) ([]VenueSummary, error) {
	provider := link.Provider
	a, err := d.adapter(link)
	if err != nil {
		return nil, err
	}
	byExternal := make(map[string]directory.Routed, len(group))
	for _, r := range group {
		q.ExternalIDs = append(q.ExternalIDs, r.Link.ExternalID)
		byExternal[r.Link.ExternalID] = r
	}
	hits, err := adapterCall(ctx, d, provider, func(ctx context.Context) ([]reservation.VenueResult, error) {
		return a.Search(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	out := make([]VenueSummary, 0, len(hits))
	for _, h := range hits {
		r, ok := byExternal[h.ExternalID]
		if !ok {
			continue
		}
		s := summarize(r.Venue, provider)
		s.Rating = h.Rating
		if h.PriceRange != "" {
			s.PriceRange = h.PriceRange
		}
		out = append(out, s)
	}
	return out, nil
}
