package category

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/example/bookhub/internal/internaltypes"
)

func TestCategoriesSorted(t *testing.T) {
	t.Parallel()

	got := DefaultTable().Categories()
	want := []string{"fitness", "hair_salon", "restaurant", "spa"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
}

func TestRequiredSetsAreStable(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	cases := []struct {
		category string
		op       string
		want     []string
	}{
		{"restaurant", "book", []string{"date", "party_size", "time"}},
		{"restaurant", "check_availability", []string{"date", "party_size"}},
		{"restaurant", "search", nil},
		{"hair_salon", "book", []string{"date", "service", "time"}},
		{"hair_salon", "check_availability", []string{"date", "service"}},
		{"spa", "book", []string{"date", "duration", "service", "time"}},
		{"spa", "check_availability", []string{"date", "service"}},
		{"fitness", "book", []string{"activity", "date", "time"}},
		{"fitness", "check_availability", []string{"activity", "date"}},
	}
	for _, tc := range cases {
		s, err := table.Schema(tc.category, tc.op)
		if err != nil {
			t.Fatalf("Schema(%s, %s) error = %v", tc.category, tc.op, err)
		}
		for i := 0; i < 3; i++ {
			if got := s.Required(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("%s.%s required = %v, want %v", tc.category, tc.op, got, tc.want)
			}
		}
	}
}

func TestHairSalonBookHasNoPartySize(t *testing.T) {
	t.Parallel()

	s, err := DefaultTable().Schema("hair_salon", "book")
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if s.Has("party_size") {
		t.Fatal("hair_salon.book must not declare party_size")
	}
}

func TestSchemaCaseInsensitive(t *testing.T) {
	t.Parallel()

	s, err := DefaultTable().Schema("RESTAURANT", "Search")
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !s.Has("cuisine") {
		t.Fatal("expected cuisine filter")
	}
	if _, err := DefaultTable().Schema("Hair Salon", "availability"); err != nil {
		t.Fatalf("Schema(Hair Salon, availability) error = %v", err)
	}
}

func TestSchemaUnknownCategory(t *testing.T) {
	t.Parallel()

	_, err := DefaultTable().Schema("bar", "search")
	if !errors.Is(err, internaltypes.ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	if _, err := DefaultTable().Schema("restaurant ", "search"); !errors.Is(err, internaltypes.ErrUnknownCategory) {
		t.Fatalf("trailing space must not match, got %v", err)
	}
}

func TestSchemaUnknownOperation(t *testing.T) {
	t.Parallel()

	_, err := DefaultTable().Schema("restaurant", "delete")
	if !errors.Is(err, internaltypes.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRestaurantBook(t *testing.T) {
	t.Parallel()

	res, err := DefaultTable().Validate("restaurant", "book", map[string]any{
		"date": "2025-01-15", "time": "19:30", "party_size": float64(4),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.Valid() {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
	if res.Params["party_size"] != 4 {
		t.Fatalf("party_size not normalised: %#v", res.Params["party_size"])
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	t.Parallel()

	res, err := DefaultTable().Validate("restaurant", "book", map[string]any{
		"date":       "15-01-2025",
		"time":       "7:30pm",
		"party_size": float64(100),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(res.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %v", res.Violations)
	}
	msgs := res.Err().Error()
	for _, want := range []string{"YYYY-MM-DD", "HH:MM", "<= 20"} {
		if !strings.Contains(msgs, want) {
			t.Fatalf("expected %q in %q", want, msgs)
		}
	}
}

func TestValidateMissingAndMistyped(t *testing.T) {
	t.Parallel()

	res, _ := DefaultTable().Validate("restaurant", "book", map[string]any{
		"time":       "19:30",
		"party_size": "four",
	})
	want := []internaltypes.Violation{
		{Field: "date", Message: "date is required"},
		{Field: "party_size", Message: "party_size must be an integer"},
	}
	if !reflect.DeepEqual(res.Violations, want) {
		t.Fatalf("violations = %v, want %v", res.Violations, want)
	}
	var ve *internaltypes.ValidationError
	if !errors.As(res.Err(), &ve) || len(ve.Violations) != 2 {
		t.Fatalf("expected aggregated validation error, got %v", res.Err())
	}
}

func TestValidateHairSalonDropsUndeclaredKeys(t *testing.T) {
	t.Parallel()

	res, _ := DefaultTable().Validate("hair_salon", "book", map[string]any{
		"date": "2025-01-15", "time": "14:00", "service": "Haircut", "party_size": float64(2),
	})
	if !res.Valid() {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
	if _, ok := res.Params["party_size"]; ok {
		t.Fatal("party_size must not leak into hair_salon params")
	}
	if !reflect.DeepEqual(res.Ignored, []string{"party_size"}) {
		t.Fatalf("ignored = %v", res.Ignored)
	}
}

func TestValidateEnforcedOptions(t *testing.T) {
	t.Parallel()

	res, _ := DefaultTable().Validate("spa", "book", map[string]any{
		"date": "2025-01-15", "time": "10:00", "service": "Massage", "duration": "45min",
	})
	if res.Valid() || res.Violations[0].Field != "duration" {
		t.Fatalf("expected duration violation, got %v", res.Violations)
	}

	res, _ = DefaultTable().Validate("spa", "book", map[string]any{
		"date": "2025-01-15", "time": "10:00", "service": "Massage", "duration": "60MIN",
	})
	if !res.Valid() || res.Params["duration"] != "60min" {
		t.Fatalf("expected canonical duration, got %v / %v", res.Violations, res.Params)
	}
}

func TestAdvisoryOptionsAreNotEnforced(t *testing.T) {
	t.Parallel()

	res, _ := DefaultTable().Validate("restaurant", "search", map[string]any{"cuisine": "Basque"})
	if !res.Valid() {
		t.Fatalf("advisory filter rejected: %v", res.Violations)
	}
}
