package query

import "slices"

// Op is a comparison operator of a filter condition.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Condition constrains one field. For OpIn, Value is a []any; for
// OpContains it is the raw search term and stores match it case-insensitively.
type Condition struct {
	Field string
	Kind  Kind
	Op    Op
	Value any
}

// Eq returns an equality condition.
func Eq(field string, kind Kind, value any) Condition {
	return Condition{Field: field, Kind: kind, Op: OpEq, Value: value}
}

// Filter is a conjunction of All and of every AnyOf group, where each group
// is a disjunction.
type Filter struct {
	All   []Condition
	AnyOf [][]Condition
	// None marks a filter that can match no document, e.g. after a value
	// failed to coerce to its field's kind.
	None bool
}

// IsEmpty reports whether the filter matches every document.
func (f Filter) IsEmpty() bool {
	return !f.None && len(f.All) == 0 && len(f.AnyOf) == 0
}

func (f Filter) clone() Filter {
	out := Filter{All: slices.Clone(f.All), None: f.None}
	if f.AnyOf != nil {
		out.AnyOf = make([][]Condition, len(f.AnyOf))
		for i, g := range f.AnyOf {
			out.AnyOf[i] = slices.Clone(g)
		}
	}
	return out
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Projection selects returned fields. A non-empty Include wins; Exclude is
// then only allowed to carry IDField.
type Projection struct {
	Include []string
	Exclude []string
	// Requested is set when the client asked for specific fields.
	Requested bool
}

// Keeps reports whether field survives the projection.
func (p Projection) Keeps(field string) bool {
	if slices.Contains(p.Exclude, field) {
		return false
	}
	if len(p.Include) > 0 {
		return slices.Contains(p.Include, field)
	}
	return true
}

func (p Projection) clone() Projection {
	return Projection{Include: slices.Clone(p.Include), Exclude: slices.Clone(p.Exclude), Requested: p.Requested}
}

// Spec is a fully built, not yet executed query. A zero Limit means no limit.
type Spec struct {
	Filter     Filter
	Projection Projection
	Sort       []SortField
	Skip       int64
	Limit      int64
}

func (s Spec) clone() Spec {
	return Spec{
		Filter:     s.Filter.clone(),
		Projection: s.Projection.clone(),
		Sort:       slices.Clone(s.Sort),
		Skip:       s.Skip,
		Limit:      s.Limit,
	}
}

// Pagination is the page metadata returned with list responses.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	Limit         int  `json:"limit"`
	NumberOfPages int  `json:"numberOfPages"`
	Next          *int `json:"next,omitempty"`
	Previous      *int `json:"previous,omitempty"`
}

// NewPagination computes page metadata for total matching documents.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{CurrentPage: page, Limit: limit}
	if limit <= 0 {
		return p
	}
	p.NumberOfPages = int((total + int64(limit) - 1) / int64(limit))
	if int64(page)*int64(limit) < total {
		next := page + 1
		p.Next = &next
	}
	if page > 1 {
		prev := page - 1
		p.Previous = &prev
	}
	return p
}
