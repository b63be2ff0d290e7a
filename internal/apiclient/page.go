package apiclient

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/mad-auth/console/internal/schema"
)

// Meta describes the position of a page in the collection.
type Meta struct {
	ItemsPerPage int `json:"itemsPerPage" validate:"gte=0"`
	TotalItems   int `json:"totalItems" validate:"gte=0"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
}

// Links are backend-provided navigation URLs; any may be empty.
type Links struct {
	First    string `json:"first,omitempty"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
	Next     string `json:"next,omitempty"`
	Last     string `json:"last,omitempty"`
}

// Page is one page of a paginated collection.
type Page[T any] struct {
	Meta  Meta  `json:"meta"`
	Links Links `json:"links"`
	Data  []T   `json:"data" validate:"dive"`
}

// Normalize maps the empty collection reported as totalPages=0 (and
// currentPage=0) onto a single empty page.
func (p *Page[T]) Normalize() {
	if p.Meta.TotalItems == 0 && len(p.Data) == 0 {
		if p.Meta.TotalPages < 1 {
			p.Meta.TotalPages = 1
		}
		if p.Meta.CurrentPage < 1 {
			p.Meta.CurrentPage = 1
		}
	}
}

// Check enforces len(data) <= itemsPerPage and 1 <= currentPage <= totalPages.
func (p Page[T]) Check() error {
	var issues []schema.FieldError
	if len(p.Data) > p.Meta.ItemsPerPage {
		issues = append(issues, schema.FieldError{
			Field:   "data",
			Message: fmt.Sprintf("page holds %d rows, more than itemsPerPage %d", len(p.Data), p.Meta.ItemsPerPage),
		})
	}
	if p.Meta.CurrentPage < 1 || p.Meta.CurrentPage > p.Meta.TotalPages {
		issues = append(issues, schema.FieldError{
			Field:   "meta.currentPage",
			Message: fmt.Sprintf("currentPage %d outside [1, %d]", p.Meta.CurrentPage, p.Meta.TotalPages),
		})
	}
	if len(issues) > 0 {
		return &schema.ValidationError{Issues: issues}
	}
	return nil
}

// normalizer is implemented by responses fixed up before validation.
type normalizer interface {
	Normalize()
}

// Filter is an ilike filter on one column.
type Filter struct {
	ID    string
	Value string
}

// Sort orders by one column.
type Sort struct {
	ID   string
	Desc bool
}

// Query is the list state sent with every collection request.
type Query struct {
	Page    int
	Limit   int
	Filters []Filter
	Sorting []Sort
}

// Values encodes q as page, limit, filter.<id>=$ilike:<value> and
// sortBy=<id>:ASC|DESC. Page defaults to 1; filters with an empty value are
// skipped.
func (q Query) Values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for _, f := range q.Filters {
		if f.ID == "" || f.Value == "" {
			continue
		}
		v.Add("filter."+f.ID, "$ilike:"+f.Value)
	}
	for _, s := range q.Sorting {
		if s.ID == "" {
			continue
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		v.Add("sortBy", s.ID+":"+dir)
	}
	return v
}
