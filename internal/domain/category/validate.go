package category

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/bookhub/internal/internaltypes"
)

// ValidationResult is the outcome of checking a parameter bag against a
// schema. Params holds the normalised values of declared parameters only;
// undeclared keys are listed in Ignored and never forwarded.
type ValidationResult struct {
	Schema     ParamSchema
	Params     map[string]any
	Violations []internaltypes.Violation
	Ignored    []string
}

func (r ValidationResult) Valid() bool { return len(r.Violations) == 0 }

// Err returns nil for a valid result, otherwise a *ValidationError holding
// every violation.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return internaltypes.NewValidationError(r.Violations...)
}

// Validate checks params against the category/operation schema and collects
// all violations instead of stopping at the first one. The error return is
// reserved for unknown categories and operations.
func (t *Table) Validate(cat, op string, params map[string]any) (ValidationResult, error) {
	s, err := t.Schema(cat, op)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.Validate(params), nil
}

func (s ParamSchema) Validate(params map[string]any) ValidationResult {
	res := ValidationResult{Schema: s, Params: make(map[string]any, len(params))}
	for _, p := range s.Params {
		raw, present := params[p.Name]
		if !present || raw == nil || isBlank(raw) {
			if p.Required {
				res.Violations = append(res.Violations, violation(p.Name, "%s is required", p.Name))
			}
			continue
		}
		v, msg := p.coerce(raw)
		if msg != "" {
			res.Violations = append(res.Violations, violation(p.Name, "%s", msg))
			continue
		}
		res.Params[p.Name] = v
	}
	for k := range params {
		if !s.Has(k) {
			res.Ignored = append(res.Ignored, k)
		}
	}
	sort.Strings(res.Ignored)
	sort.SliceStable(res.Violations, func(i, j int) bool { return res.Violations[i].Field < res.Violations[j].Field })
	return res
}

func violation(field, format string, args ...any) internaltypes.Violation {
	return internaltypes.Violation{Field: field, Message: fmt.Sprintf(format, args...)}
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (p Param) coerce(raw any) (any, string) {
	switch p.Type {
	case TypeInteger:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Sprintf("%s must be an integer", p.Name)
		}
		if p.Min != nil && n < *p.Min {
			return nil, fmt.Sprintf("%s must be >= %d", p.Name, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			return nil, fmt.Sprintf("%s must be <= %d", p.Name, *p.Max)
		}
		return n, ""
	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("%s must be in YYYY-MM-DD format", p.Name)
		}
		s = strings.TrimSpace(s)
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, fmt.Sprintf("%s must be in YYYY-MM-DD format", p.Name)
		}
		return s, ""
	case TypeTime:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("%s must be in HH:MM format", p.Name)
		}
		s = strings.TrimSpace(s)
		if len(s) != len(TimeLayout) {
			return nil, fmt.Sprintf("%s must be in HH:MM format", p.Name)
		}
		if _, err := time.Parse(TimeLayout, s); err != nil {
			return nil, fmt.Sprintf("%s must be in HH:MM format", p.Name)
		}
		return s, ""
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("%s must be a string", p.Name)
		}
		s = strings.TrimSpace(s)
		if len(p.Options) > 0 && !p.Advisory {
			for _, o := range p.Options {
				if strings.EqualFold(o, s) {
					return o, ""
				}
			}
			return nil, fmt.Sprintf("%s must be one of: %s", p.Name, strings.Join(p.Options, ", "))
		}
		return s, ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		// CLI flags and some clients send numbers as text.
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
