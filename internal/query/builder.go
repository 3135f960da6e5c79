// Package query turns list UI state into normalized queries and carries them
// over URL query strings.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/security"
)

// Transport parameter names.
const (
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamSearch    = "search"
	ParamSortBy    = "sortBy"
	ParamSortOrder = "sortOrder"
)

// UIState is what a list view holds before it is turned into a Query.
type UIState struct {
	Page      int
	Limit     int
	Search    string
	Filters   map[string]string
	SortBy    string
	SortOrder string
}

// Builder normalizes UI state. A zero PageSize means models.DefaultPageSize.
type Builder struct {
	PageSize int
}

// Build normalizes s with the default page size.
func Build(s UIState) models.Query {
	return Builder{}.Build(s)
}

// Build clamps page and limit, trims the search, drops empty and "all"
// filters and keeps the sort only when a sort column is set. Building the
// state of a built query returns the same query.
func (b Builder) Build(s UIState) models.Query {
	q := models.Query{
		Page:   s.Page,
		Limit:  s.Limit,
		Search: strings.TrimSpace(s.Search),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = b.pageSize()
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > models.MaxPageSize {
		q.Limit = models.MaxPageSize
	}

	for key, value := range s.Filters {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || strings.EqualFold(value, models.AllValue) {
			continue
		}
		if q.Filters == nil {
			q.Filters = make(map[string]string)
		}
		q.Filters[key] = value
	}

	if sortBy := strings.TrimSpace(s.SortBy); sortBy != "" {
		q.SortBy = sortBy
		q.SortOrder = models.ParseSortOrder(s.SortOrder)
	}
	return q
}

func (b Builder) pageSize() int {
	if b.PageSize > 0 {
		return b.PageSize
	}
	return models.DefaultPageSize
}

// State is the UI state a query was built from.
func State(q models.Query) UIState {
	s := UIState{
		Page:      q.Page,
		Limit:     q.Limit,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: string(q.SortOrder),
	}
	if len(q.Filters) > 0 {
		s.Filters = make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			s.Filters[k] = v
		}
	}
	return s
}

// =============================================================================
// URL ENCODING
// =============================================================================

// Encode writes q as transport parameters: page, limit, search, sortBy,
// sortOrder and one parameter per filter key. Empty values are left out.
func Encode(q models.Query) url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(q.Page))
	v.Set(ParamLimit, strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set(ParamSearch, q.Search)
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := strings.TrimSpace(q.Filters[k])
		if security.IsReservedParam(k) || value == "" || strings.EqualFold(value, models.AllValue) {
			continue
		}
		v.Set(k, value)
	}

	if q.SortBy != "" {
		v.Set(ParamSortBy, q.SortBy)
		v.Set(ParamSortOrder, string(models.ParseSortOrder(string(q.SortOrder))))
	}
	return v
}

// Decode reads transport parameters back into a normalized query. With a
// module, only keys that resolve to one of its filterable fields become
// filters; without one, every non-reserved key does.
func (b Builder) Decode(values url.Values, m *models.Module) models.Query {
	s := UIState{
		Page:      atoi(values.Get(ParamPage)),
		Limit:     atoi(values.Get(ParamLimit)),
		Search:    values.Get(ParamSearch),
		SortBy:    values.Get(ParamSortBy),
		SortOrder: values.Get(ParamSortOrder),
	}
	for key := range values {
		if security.IsReservedParam(key) {
			continue
		}
		if m != nil {
			if _, ok := m.FilterField(key); !ok {
				continue
			}
		}
		if s.Filters == nil {
			s.Filters = make(map[string]string)
		}
		s.Filters[key] = values.Get(key)
	}
	return b.Build(s)
}

// Decode reads transport parameters with the default page size.
func Decode(values url.Values, m *models.Module) models.Query {
	return Builder{}.Decode(values, m)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
