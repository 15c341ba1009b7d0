package category

import (
	"sort"
	"strings"

	"github.com/example/bookhub/internal/internaltypes"
)

// Param declares one recognised parameter of an operation.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Format      string    `json:"format,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Min         *int      `json:"min,omitempty"`
	Max         *int      `json:"max,omitempty"`
	Description string    `json:"description,omitempty"`

	// Advisory options are suggestions for agents, not an enforced enum.
	Advisory bool `json:"-"`
}

// ParamSchema is the parameter contract of one (category, operation) pair.
type ParamSchema struct {
	Category  Category  `json:"category"`
	Operation Operation `json:"operation"`
	Params    []Param   `json:"parameters"`
}

func (s ParamSchema) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (s ParamSchema) Has(name string) bool {
	_, ok := s.Param(name)
	return ok
}

// Required returns the sorted names of required parameters.
func (s ParamSchema) Required() []string {
	var out []string
	for _, p := range s.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Optional returns the sorted names of optional parameters.
func (s ParamSchema) Optional() []string {
	var out []string
	for _, p := range s.Params {
		if !p.Required {
			out = append(out, p.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Table is the read-only category schema table. It is safe for concurrent use
// because nothing mutates it after construction.
type Table struct {
	schemas map[Category]map[Operation]ParamSchema
	order   []Category
}

// DefaultTable returns the built-in table for restaurant, hair_salon, spa
// and fitness.
func DefaultTable() *Table {
	return NewTable(defaultSchemas)
}

// NewTable builds a table from a declarative definition. Extra categories
// can be added this way without touching the dispatch code.
func NewTable(def map[Category]map[Operation][]Param) *Table {
	t := &Table{schemas: make(map[Category]map[Operation]ParamSchema, len(def))}
	for cat, ops := range def {
		t.order = append(t.order, cat)
		byOp := make(map[Operation]ParamSchema, len(ops))
		for op, params := range ops {
			ps := make([]Param, len(params))
			copy(ps, params)
			byOp[op] = ParamSchema{Category: cat, Operation: op, Params: ps}
		}
		t.schemas[cat] = byOp
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

// Categories returns the registered category names, sorted.
func (t *Table) Categories() []string {
	out := make([]string, len(t.order))
	for i, c := range t.order {
		out[i] = string(c)
	}
	return out
}

// Operations returns the tool names that accept category parameters.
func (t *Table) Operations() []string {
	out := make([]string, len(Operations))
	for i, op := range Operations {
		out[i] = string(op)
	}
	return out
}

// Lookup resolves a category name, failing with UnknownCategoryError.
func (t *Table) Lookup(name string) (Category, error) {
	c := Normalize(name)
	if _, ok := t.schemas[c]; !ok {
		return "", internaltypes.UnknownCategory(name, t.Categories())
	}
	return c, nil
}

// Schema returns the parameter schema of category/operation.
func (t *Table) Schema(cat, op string) (ParamSchema, error) {
	c, err := t.Lookup(cat)
	if err != nil {
		return ParamSchema{}, err
	}
	o := NormalizeOperation(op)
	s, ok := t.schemas[c][o]
	if !ok {
		return ParamSchema{}, internaltypes.Invalid("tool", "unknown tool %q (expected one of %s)", op, strings.Join(t.Operations(), ", "))
	}
	return s, nil
}
