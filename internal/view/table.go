package view

import (
	"net/url"
	"strconv"
	"time"

	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
)

// StateField carries the encoded table state through modal and row
// action submissions.
const StateField = crud.StateField

var PageSizes = []int{10, 20, 30, 40, 50}

type TableProps[R crud.Row] struct {
	Title          string
	Snapshot       crud.Snapshot[R]
	Fields         form.Renderer
	SearchDebounce time.Duration
}

func debounceMillis(d time.Duration) string {
	if d <= 0 {
		d = crud.DefaultSearchDebounce
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func createURL(base string, state url.Values) string {
	q := cloneValues(state)
	q.Set("create", "1")
	return withQuery(base, q)
}

func ariaSort(dir string) string {
	switch dir {
	case "asc":
		return "ascending"
	case "desc":
		return "descending"
	}
	return "none"
}

func sortArrow(dir string) string {
	switch dir {
	case "asc":
		return " ↑"
	case "desc":
		return " ↓"
	}
	return ""
}

func pageURL[R crud.Row](s crud.Snapshot[R], page int) string {
	return withQuery(s.Base, s.State.WithPage(page).Values(s.SearchColumn))
}

func modalAction(base string, m crud.Modal) string {
	if m.Mode == crud.ModalEdit {
		return crud.Actions{Base: base}.UpdateURL(m.RowID)
	}
	return base
}

func modalSubmit(m crud.Modal) string {
	if m.Mode == crud.ModalEdit {
		return "Save"
	}
	return "Create"
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
