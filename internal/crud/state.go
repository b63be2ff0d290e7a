package crud

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/mad-auth/console/internal/apiclient"
)

// StateField is the form field carrying the encoded table state through
// POST submissions, so the refetch after a mutation keeps the operator's
// page, filters and sorting.
const StateField = "_state"

type stateKey struct{}

// WithTableState attaches the encoded table state to ctx for the row cells
// rendered under it.
func WithTableState(ctx context.Context, state url.Values) context.Context {
	return context.WithValue(ctx, stateKey{}, state)
}

// TableState is the table state attached by WithTableState, or nil.
func TableState(ctx context.Context) url.Values {
	v, _ := ctx.Value(stateKey{}).(url.Values)
	return v
}

// State is the table's page, size, filters and sorting. It round-trips
// through the console URL: page, limit, search, sort (prefix "-" for
// descending).
type State struct {
	Page     int
	PageSize int
	Filters  []apiclient.Filter
	Sorting  []apiclient.Sort
}

// ParseState reads the table state from console query parameters. search
// becomes a filter on searchColumn.
func ParseState(q url.Values, searchColumn string, defaultPageSize int) State {
	s := State{Page: 1, PageSize: defaultPageSize}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		s.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		s.PageSize = l
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" && searchColumn != "" {
		s.Filters = []apiclient.Filter{{ID: searchColumn, Value: v}}
	}
	for _, raw := range q["sort"] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		desc := strings.HasPrefix(raw, "-")
		s.Sorting = append(s.Sorting, apiclient.Sort{ID: strings.TrimPrefix(raw, "-"), Desc: desc})
	}
	return s
}

// Values encodes s as console query parameters.
func (s State) Values(searchColumn string) url.Values {
	v := url.Values{}
	if s.Page > 1 {
		v.Set("page", strconv.Itoa(s.Page))
	}
	if s.PageSize > 0 {
		v.Set("limit", strconv.Itoa(s.PageSize))
	}
	if search := s.Search(searchColumn); search != "" {
		v.Set("search", search)
	}
	for _, so := range s.Sorting {
		if so.Desc {
			v.Add("sort", "-"+so.ID)
		} else {
			v.Add("sort", so.ID)
		}
	}
	return v
}

// Search returns the filter value on column.
func (s State) Search(column string) string {
	for _, f := range s.Filters {
		if f.ID == column {
			return f.Value
		}
	}
	return ""
}

// SortOf returns the sort direction of column: "asc", "desc" or "".
func (s State) SortOf(column string) string {
	for _, so := range s.Sorting {
		if so.ID == column {
			if so.Desc {
				return "desc"
			}
			return "asc"
		}
	}
	return ""
}

// Toggled cycles column through asc, desc and unsorted.
func (s State) Toggled(column string) State {
	next := s
	switch s.SortOf(column) {
	case "":
		next.Sorting = []apiclient.Sort{{ID: column}}
	case "asc":
		next.Sorting = []apiclient.Sort{{ID: column, Desc: true}}
	default:
		next.Sorting = nil
	}
	return next
}

// WithPage returns s on page p.
func (s State) WithPage(p int) State {
	next := s
	next.Page = p
	return next
}

func (s State) query() apiclient.Query {
	return apiclient.Query{
		Page:    s.Page,
		Limit:   s.PageSize,
		Filters: append([]apiclient.Filter(nil), s.Filters...),
		Sorting: append([]apiclient.Sort(nil), s.Sorting...),
	}
}
