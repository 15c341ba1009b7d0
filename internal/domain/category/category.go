// Package category declares the per-category parameter schemas that shape
// search, availability and booking requests.
package category

import "strings"

type Category string

const (
	Restaurant Category = "restaurant"
	HairSalon  Category = "hair_salon"
	Spa        Category = "spa"
	Fitness    Category = "fitness"
)

type Operation string

const (
	OpSearch       Operation = "search"
	OpAvailability Operation = "check_availability"
	OpBook         Operation = "book"
)

// Operations lists the operations every category declares, in tool order.
var Operations = []Operation{OpSearch, OpAvailability, OpBook}

type ParamType string

const (
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
	TypeDate    ParamType = "date"
	TypeTime    ParamType = "time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Normalize lower-cases a category name and turns spaces into underscores,
// so "Hair Salon" and "hair_salon" name the same category.
func Normalize(s string) Category {
	return Category(strings.ReplaceAll(strings.ToLower(s), " ", "_"))
}

// NormalizeOperation accepts the tool names used by agents: "search_venues"
// maps to search and "availability" to check_availability.
func NormalizeOperation(s string) Operation {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case "search_venues":
		return OpSearch
	case "availability":
		return OpAvailability
	}
	return op
}

func (o Operation) Valid() bool {
	for _, known := range Operations {
		if o == known {
			return true
		}
	}
	return false
}
