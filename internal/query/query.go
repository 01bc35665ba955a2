// Package query turns raw listing parameters into a backend-neutral query.
package query

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// SortOrder is the listing direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SearchParam is the query parameter carrying the free-text term.
const SearchParam = "searchTerm"

// Sort is a single sort key.
type Sort struct {
	Field string
	Order SortOrder
}

// Config enumerates what a listing endpoint accepts.
type Config struct {
	SearchableFields []string
	FilterableFields []string
	SortableFields   []string
	DefaultSort      Sort
	DefaultPage      int
	DefaultLimit     int
	MaxLimit         int
}

// Filter is an exact-match condition.
type Filter struct {
	Field string
	Value string
}

// Query is what storage backends translate into their native form.
//
// Matching semantics: when SearchTerm is set, at least one of SearchFields must contain it
// (case-insensitive substring). Every Filter must match exactly. Both groups are AND-ed.
type Query struct {
	SearchTerm   string
	SearchFields []string
	Filters      []Filter
	Sort         Sort
	Page         int
	Limit        int
}

// Skip is the number of records before the requested page.
func (q Query) Skip() int {
	return (q.Page - 1) * q.Limit
}

// Build derives a Query from raw parameters. Unknown parameters are ignored and malformed
// pagination values fall back to the configured defaults. Build never fails.
func Build(raw url.Values, cfg Config) Query {
	q := Query{
		SearchTerm:   strings.TrimSpace(raw.Get(SearchParam)),
		SearchFields: cfg.SearchableFields,
		Sort:         cfg.DefaultSort,
		Page:         positiveInt(raw.Get("page"), cfg.DefaultPage),
		Limit:        positiveInt(raw.Get("limit"), cfg.DefaultLimit),
	}
	if q.SearchTerm == "" {
		q.SearchFields = nil
	}
	if cfg.MaxLimit > 0 && q.Limit > cfg.MaxLimit {
		q.Limit = cfg.MaxLimit
	}
	// Keep Skip within int range.
	if q.Limit > 0 && q.Page > math.MaxInt/q.Limit {
		q.Page = math.MaxInt / q.Limit
	}

	// Iterate the config, not the map, so the filter order is stable.
	for _, field := range cfg.FilterableFields {
		if v := raw.Get(field); v != "" {
			q.Filters = append(q.Filters, Filter{Field: field, Value: v})
		}
	}

	if sortBy := raw.Get("sortBy"); sortBy != "" && slices.Contains(cfg.SortableFields, sortBy) {
		q.Sort.Field = sortBy
	}
	switch SortOrder(strings.ToLower(raw.Get("sortOrder"))) {
	case Asc:
		q.Sort.Order = Asc
	case Desc:
		q.Sort.Order = Desc
	}
	return q
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
