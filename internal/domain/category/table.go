package category

func intPtr(v int) *int { return &v }

var (
	dateParam = Param{Name: "date", Type: TypeDate, Required: true, Format: "YYYY-MM-DD", Description: "Date of the visit"}
	timeParam = Param{Name: "time", Type: TypeTime, Required: true, Format: "HH:MM", Description: "Start time of the visit"}

	partySizeParam = Param{Name: "party_size", Type: TypeInteger, Required: true, Min: intPtr(1), Max: intPtr(20), Description: "Number of guests"}
)

func optional(p Param) Param {
	p.Required = false
	return p
}

// defaultSchemas is the built-in category table. Search filters list their
// known values as advisory options; booking parameters with options are
// enforced.
var defaultSchemas = map[Category]map[Operation][]Param{
	Restaurant: {
		OpSearch: {
			{Name: "cuisine", Type: TypeString, Advisory: true, Options: []string{
				"French", "Japanese", "Italian", "Indian", "American",
				"Chinese", "Mexican", "Thai", "Mediterranean", "Korean",
			}},
			{Name: "price_range", Type: TypeString, Advisory: true, Options: []string{"$", "$$", "$$$", "$$$$"}},
			{Name: "ambiance", Type: TypeString, Advisory: true, Options: []string{"Casual", "Fine Dining", "Family", "Romantic", "Business"}},
			optional(dateParam),
			optional(partySizeParam),
		},
		OpAvailability: {partySizeParam, dateParam},
		OpBook:         {partySizeParam, dateParam, timeParam},
	},
	HairSalon: {
		OpSearch: {
			{Name: "service", Type: TypeString, Advisory: true, Options: []string{
				"Haircut", "Coloring", "Balayage", "Highlights", "Treatment", "Styling", "Blow Dry",
			}},
			{Name: "gender", Type: TypeString, Advisory: true, Options: []string{"Men", "Women", "Unisex"}},
			optional(dateParam),
		},
		OpAvailability: {
			{Name: "service", Type: TypeString, Required: true, Description: "Requested service"},
			dateParam,
		},
		OpBook: {
			{Name: "service", Type: TypeString, Required: true, Description: "Requested service"},
			dateParam,
			timeParam,
			{Name: "duration", Type: TypeString, Options: []string{"30min", "60min", "90min"}},
		},
	},
	Spa: {
		OpSearch: {
			{Name: "service", Type: TypeString, Advisory: true, Options: []string{
				"Massage", "Facial", "Body Treatment", "Manicure", "Pedicure", "Waxing",
			}},
			optional(dateParam),
		},
		OpAvailability: {
			{Name: "service", Type: TypeString, Required: true, Description: "Requested treatment"},
			dateParam,
			{Name: "duration", Type: TypeString, Options: []string{"30min", "60min", "90min", "120min"}},
		},
		OpBook: {
			{Name: "service", Type: TypeString, Required: true, Description: "Requested treatment"},
			dateParam,
			timeParam,
			{Name: "duration", Type: TypeString, Required: true, Options: []string{"30min", "60min", "90min", "120min"}},
		},
	},
	Fitness: {
		OpSearch: {
			{Name: "activity", Type: TypeString, Advisory: true, Options: []string{
				"Gym", "Yoga", "Pilates", "CrossFit", "Swimming", "Tennis", "Boxing", "Dance",
			}},
			{Name: "level", Type: TypeString, Advisory: true, Options: []string{"Beginner", "Intermediate", "Advanced"}},
			optional(dateParam),
		},
		OpAvailability: {
			{Name: "activity", Type: TypeString, Required: true, Description: "Class or activity"},
			dateParam,
		},
		OpBook: {
			{Name: "activity", Type: TypeString, Required: true, Description: "Class or activity"},
			dateParam,
			timeParam,
		},
	},
}
