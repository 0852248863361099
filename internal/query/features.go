// Package query turns list-endpoint query parameters into a storage-neutral
// Spec: pagination, filtering, keyword search, field projection and sorting.
//
// Features is a value type. Every stage returns a new Features and leaves the
// receiver untouched, so stages compose in any order:
//
//	f := query.New(c.Request.URL.Query(), schema).Filter().Search().LimitFields().Sort()
//	total, _ := repo.Count(ctx, f.Spec().Filter)
//	f = f.Paginate(total)
//	docs, _ := repo.Find(ctx, f.Spec())
package query

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Reserved parameters drive pagination, projection, sorting and search and
// are never treated as filter fields.
const (
	ParamPage    = "page"
	ParamLimit   = "limit"
	ParamSort    = "sort"
	ParamFields  = "fields"
	ParamKeyword = "keyword"
)

var reservedParams = map[string]bool{
	ParamPage:    true,
	ParamSort:    true,
	ParamLimit:   true,
	ParamFields:  true,
	ParamKeyword: true,
}

// rangeOps are the operators accepted in the bracket form field[op]=value.
var rangeOps = map[string]Op{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

// Features accumulates a Spec from raw query parameters.
type Features struct {
	params     url.Values
	schema     Schema
	spec       Spec
	pagination Pagination
}

// New starts a builder over params for a resource described by schema.
func New(params url.Values, schema Schema) Features {
	if params == nil {
		params = url.Values{}
	}
	return Features{params: params, schema: schema}
}

// Spec returns the query built so far.
func (f Features) Spec() Spec {
	return f.spec.clone()
}

// Pagination returns the metadata recorded by Paginate.
func (f Features) Pagination() Pagination {
	return f.pagination
}

// Where adds route-scoped conditions that always apply.
func (f Features) Where(conds ...Condition) Features {
	if len(conds) == 0 {
		return f
	}
	out := f.clone()
	out.spec.Filter.All = append(out.spec.Filter.All, conds...)
	return out
}

// Paginate applies page and limit and records page metadata against total
// matching documents. Missing or non-positive values fall back to defaults.
func (f Features) Paginate(total int64) Features {
	def, max := f.schema.limits()
	page := positiveInt(f.params.Get(ParamPage), 1)
	limit := positiveInt(f.params.Get(ParamLimit), def)
	if max > 0 && limit > max {
		limit = max
	}
	if page-1 > math.MaxInt/limit {
		page = math.MaxInt / limit
	}

	out := f.clone()
	out.spec.Skip = int64(page-1) * int64(limit)
	out.spec.Limit = int64(limit)
	out.pagination = NewPagination(page, limit, total)
	return out
}

// Filter turns every non-reserved parameter naming a schema field into a
// condition: field=v is equality, repeated field=v is membership and
// field[gte|gt|lte|lt]=v is a range bound. Unknown fields and operators are
// ignored.
func (f Features) Filter() Features {
	out := f.clone()

	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if reservedParams[key] {
			continue
		}
		values := nonEmpty(f.params[key])
		if len(values) == 0 {
			continue
		}
		name, op, ok := parseFilterKey(key)
		if !ok {
			continue
		}
		field, ok := f.schema.Lookup(name)
		if !ok {
			continue
		}

		if op == OpEq && len(values) > 1 {
			set := make([]any, 0, len(values))
			for _, raw := range values {
				v, ok := coerce(field.Kind, raw)
				if !ok {
					out.spec.Filter.None = true
					continue
				}
				set = append(set, v)
			}
			out.spec.Filter.All = append(out.spec.Filter.All, Condition{Field: name, Kind: field.Kind, Op: OpIn, Value: set})
			continue
		}

		v, ok := coerce(field.Kind, values[0])
		if !ok {
			out.spec.Filter.None = true
			continue
		}
		out.spec.Filter.All = append(out.spec.Filter.All, Condition{Field: name, Kind: field.Kind, Op: op, Value: v})
	}
	return out
}

// Search matches the keyword parameter case-insensitively against any of the
// schema's searchable fields. It is a no-op without a keyword or without
// searchable fields.
func (f Features) Search() Features {
	keyword := strings.TrimSpace(f.params.Get(ParamKeyword))
	if keyword == "" || len(f.schema.Searchable) == 0 {
		return f
	}

	group := make([]Condition, 0, len(f.schema.Searchable))
	for _, name := range f.schema.Searchable {
		field, ok := f.schema.Lookup(name)
		if !ok {
			continue
		}
		group = append(group, Condition{Field: name, Kind: field.Kind, Op: OpContains, Value: keyword})
	}
	if len(group) == 0 {
		return f
	}

	out := f.clone()
	out.spec.Filter.AnyOf = append(out.spec.Filter.AnyOf, group)
	return out
}

// LimitFields projects results to the comma-separated fields parameter.
// Entries prefixed with "-" are excluded. The internal version field stays
// hidden unless it is explicitly included.
func (f Features) LimitFields() Features {
	out := f.clone()
	out.spec.Projection = Projection{Exclude: []string{VersionField}}

	raw := strings.TrimSpace(f.params.Get(ParamFields))
	if raw == "" {
		return out
	}

	var include, exclude []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		excluded := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")
		if _, ok := f.schema.Lookup(name); !ok {
			continue
		}
		if excluded {
			exclude = appendUnique(exclude, name)
		} else {
			include = appendUnique(include, name)
		}
	}

	switch {
	case len(include) > 0:
		p := Projection{Include: include, Requested: true}
		if slices.Contains(exclude, IDField) {
			p.Include = slices.DeleteFunc(p.Include, func(s string) bool { return s == IDField })
			p.Exclude = []string{IDField}
		} else if !slices.Contains(p.Include, IDField) {
			p.Include = append([]string{IDField}, p.Include...)
		}
		if len(p.Include) == 0 {
			p = Projection{Exclude: []string{IDField}, Requested: true}
		}
		out.spec.Projection = p
	case len(exclude) > 0:
		out.spec.Projection = Projection{Exclude: appendUnique(exclude, VersionField), Requested: true}
	}
	return out
}

// Sort orders results by the comma-separated sort parameter; a "-" prefix
// sorts descending. Without a usable key results are newest first.
func (f Features) Sort() Features {
	var keys []SortField
	for _, part := range strings.Split(f.params.Get(ParamSort), ",") {
		name := strings.TrimSpace(part)
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimLeft(name, "-+")
		if _, ok := f.schema.Lookup(name); !ok {
			continue
		}
		if slices.ContainsFunc(keys, func(k SortField) bool { return k.Field == name }) {
			continue
		}
		keys = append(keys, SortField{Field: name, Desc: desc})
	}
	if len(keys) == 0 {
		keys = []SortField{{Field: CreatedAtField, Desc: true}}
	}

	out := f.clone()
	out.spec.Sort = keys
	return out
}

func (f Features) clone() Features {
	return Features{params: f.params, schema: f.schema, spec: f.spec.clone(), pagination: f.pagination}
}

// parseFilterKey splits "price[gte]" into ("price", OpGte). Plain keys are
// equality filters.
func parseFilterKey(key string) (string, Op, bool) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, OpEq, key != ""
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	op, ok := rangeOps[key[open+1:len(key)-1]]
	if !ok {
		return "", "", false
	}
	return key[:open], op, true
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
