package booking

import (
	"encoding/json"
	"math"
)

// Params is the category-shaped parameter bag of a request. Its keys are the
// ones declared by the category schema; values have already been validated
// and normalised (integers are int, dates and times are strings).
type Params map[string]any

func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Int reads an integer parameter. Values decoded from JSON storage arrive as
// float64 or json.Number and are converted back.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func (p Params) Date() string     { return p.String("date") }
func (p Params) Time() string     { return p.String("time") }
func (p Params) Service() string  { return p.String("service") }
func (p Params) Duration() string { return p.String("duration") }
func (p Params) Activity() string { return p.String("activity") }

// PartySize returns the party size, defaulting to 1 for categories that book
// a single person.
func (p Params) PartySize() int {
	if n, ok := p.Int("party_size"); ok && n > 0 {
		return n
	}
	return 1
}

// Clone returns a shallow copy safe to hand to another component.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Equal compares two bags value by value, treating numeric encodings of the
// same integer as equal.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		if n, ok := p.Int(k); ok {
			m, ok := o.Int(k)
			if !ok || n != m {
				return false
			}
			continue
		}
		if o[k] != v {
			return false
		}
	}
	return true
}
