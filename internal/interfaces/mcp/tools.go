package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/example/bookhub/internal/application/usecases"
	"github.com/example/bookhub/internal/domain/booking"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (s *Server) toolset() []server.ServerTool {
	categories := strings.Join(s.d.Schema().Categories(), ", ")
	categoryArg := func(required bool) mcp.ToolOption {
		opts := []mcp.PropertyOption{mcp.Description("Venue category: " + categories)}
		if required {
			opts = append(opts, mcp.Required())
		}
		return mcp.WithString("category", opts...)
	}
	readOnly := mcp.WithReadOnlyHintAnnotation(true)

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_categories",
				mcp.WithDescription("List the venue categories and the tools that take category parameters."),
				readOnly,
			),
			Handler: s.handle("list_categories", s.listCategories),
		},
		{
			Tool: mcp.NewTool("get_filters",
				mcp.WithDescription("Describe the parameters a category accepts for search_venues, check_availability or book."),
				categoryArg(true),
				mcp.WithString("tool", mcp.Required(), mcp.Enum("search_venues", "check_availability", "book")),
				readOnly,
			),
			Handler: s.handle("get_filters", s.getFilters),
		},
		{
			Tool: mcp.NewTool("search_venues",
				mcp.WithDescription("Search bookable venues of a category in a city."),
				categoryArg(true),
				mcp.WithString("city", mcp.Required(), mcp.Description("City name, e.g. Paris")),
				mcp.WithString("date", mcp.Description("YYYY-MM-DD")),
				mcp.WithNumber("party_size", mcp.Description("Number of guests (restaurants)")),
				mcp.WithObject("filters", mcp.Description("Category filters, see get_filters")),
				readOnly,
			),
			Handler: s.handle("search_venues", s.searchVenues),
		},
		{
			Tool: mcp.NewTool("check_availability",
				mcp.WithDescription("List open time slots for a venue on a date."),
				mcp.WithString("venue_id", mcp.Required()),
				categoryArg(true),
				mcp.WithObject("params", mcp.Description("Category parameters such as date and party_size or service; see get_filters")),
				readOnly,
			),
			Handler: s.handle("check_availability", s.checkAvailability),
		},
		{
			Tool: mcp.NewTool("book",
				mcp.WithDescription("Book a slot at a venue for a customer."),
				mcp.WithString("venue_id", mcp.Required()),
				categoryArg(true),
				mcp.WithObject("params", mcp.Description("Category parameters such as date, time and party_size or service; see get_filters")),
				mcp.WithString("customer_name", mcp.Required()),
				mcp.WithString("customer_email", mcp.Required()),
				mcp.WithString("customer_phone"),
			),
			Handler: s.handle("book", s.book),
		},
		{
			Tool: mcp.NewTool("find_and_book",
				mcp.WithDescription("Book the first open slot among preferred times, in order."),
				mcp.WithString("venue_id", mcp.Required()),
				categoryArg(true),
				mcp.WithObject("params", mcp.Description("Category parameters without time")),
				mcp.WithArray("preferred_times", mcp.Required(), mcp.Items(map[string]any{"type": "string"}), mcp.Description("HH:MM, most preferred first")),
				mcp.WithString("customer_name", mcp.Required()),
				mcp.WithString("customer_email", mcp.Required()),
				mcp.WithString("customer_phone"),
			),
			Handler: s.handle("find_and_book", s.findAndBook),
		},
		{
			Tool: mcp.NewTool("cancel",
				mcp.WithDescription("Cancel a booking. Returns cancelled=false if it was already closed or does not exist."),
				mcp.WithString("booking_id", mcp.Required()),
				mcp.WithString("customer_email", mcp.Description("Must match the booking when given")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: s.handle("cancel", s.cancel),
		},
		{
			Tool: mcp.NewTool("get_booking_status",
				mcp.WithDescription("Return a recorded booking."),
				mcp.WithString("booking_id", mcp.Required()),
				readOnly,
			),
			Handler: s.handle("get_booking_status", s.getBookingStatus),
		},
		{
			Tool: mcp.NewTool("find_venue_by_domain",
				mcp.WithDescription("Resolve a venue from its website domain."),
				mcp.WithString("domain", mcp.Required(), mcp.Description("e.g. goldenfork.example.com")),
				readOnly,
			),
			Handler: s.handle("find_venue_by_domain", s.findVenueByDomain),
		},
		{
			Tool: mcp.NewTool("get_venue_details",
				mcp.WithDescription("Return a venue with its provider links."),
				mcp.WithString("venue_id", mcp.Required()),
				readOnly,
			),
			Handler: s.handle("get_venue_details", s.getVenueDetails),
		},
		{
			Tool: mcp.NewTool("list_venues",
				mcp.WithDescription("List directory venues, optionally by category and city."),
				categoryArg(false),
				mcp.WithString("city"),
				readOnly,
			),
			Handler: s.handle("list_venues", s.listVenues),
		},
	}
}

func (s *Server) listCategories(context.Context, mcp.CallToolRequest) (any, error) {
	return s.d.ListCategories(), nil
}

func (s *Server) getFilters(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.GetFilters(ctx, req.GetString("category", ""), req.GetString("tool", ""))
}

func (s *Server) searchVenues(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	args := req.GetArguments()
	return s.d.SearchVenues(ctx, usecases.SearchRequest{
		Category:  req.GetString("category", ""),
		City:      req.GetString("city", ""),
		Date:      req.GetString("date", ""),
		PartySize: req.GetInt("party_size", 0),
		Filters:   object(args, "filters"),
	})
}

func (s *Server) checkAvailability(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.CheckAvailability(ctx, usecases.AvailabilityRequest{
		VenueID:  req.GetString("venue_id", ""),
		Category: req.GetString("category", ""),
		Params:   categoryParams(req.GetArguments()),
	})
}

func (s *Server) book(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.Book(ctx, usecases.BookRequest{
		VenueID:  req.GetString("venue_id", ""),
		Category: req.GetString("category", ""),
		Params:   categoryParams(req.GetArguments()),
		Customer: customer(req),
	})
}

func (s *Server) findAndBook(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.FindAndBook(ctx, usecases.FindAndBookRequest{
		VenueID:        req.GetString("venue_id", ""),
		Category:       req.GetString("category", ""),
		Params:         categoryParams(req.GetArguments()),
		PreferredTimes: req.GetStringSlice("preferred_times", nil),
		Customer:       customer(req),
	})
}

func (s *Server) cancel(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.Cancel(ctx, usecases.CancelRequest{
		BookingID:     req.GetString("booking_id", ""),
		CustomerEmail: req.GetString("customer_email", ""),
	})
}

func (s *Server) getBookingStatus(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.GetBookingStatus(ctx, req.GetString("booking_id", ""))
}

func (s *Server) findVenueByDomain(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.FindVenueByDomain(ctx, req.GetString("domain", ""))
}

func (s *Server) getVenueDetails(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.GetVenueDetails(ctx, req.GetString("venue_id", ""))
}

func (s *Server) listVenues(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.d.ListVenues(ctx, req.GetString("category", ""), req.GetString("city", ""))
}

func customer(req mcp.CallToolRequest) booking.Customer {
	return booking.Customer{
		Name:  req.GetString("customer_name", ""),
		Email: req.GetString("customer_email", ""),
		Phone: req.GetString("customer_phone", ""),
	}
}

// reserved are tool arguments that are never category parameters.
var reserved = map[string]bool{
	"venue_id": true, "category": true, "params": true, "preferred_times": true,
	"customer_name": true, "customer_email": true, "customer_phone": true,
}

// categoryParams collects category parameters from the "params" object and
// from any top-level argument that is not reserved, since agents often
// flatten them. Values in "params" win.
func categoryParams(args map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range args {
		if !reserved[k] {
			out[k] = v
		}
	}
	for k, v := range object(args, "params") {
		out[k] = v
	}
	return out
}

func object(args map[string]any, key string) map[string]any {
	switch v := args[key].(type) {
	case map[string]any:
		return v
	case string:
		// Some clients send objects as a JSON string.
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	return nil
}
