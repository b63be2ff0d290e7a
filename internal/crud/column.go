package crud

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"github.com/mad-auth/console/internal/form"
)

// Row is a resource record addressed by an integer id.
type Row interface {
	RowID() int
}

// Defaults is the initial value of a form field.
type Defaults struct {
	Default any
}

// Column binds a table column to an optional form field.
type Column[R Row] struct {
	AccessorKey string
	Header      string
	Sortable    bool
	// Value renders the cell text; nil falls back to the row's JSON field.
	Value func(R) string
	// Cell overrides Value with markup (action menus).
	Cell func(R) templ.Component
	// FormValue maps the row onto the update form value; nil falls back to
	// the row's JSON field.
	FormValue func(R) any

	Field       form.Field
	Create      *Defaults
	Update      *Defaults
	ForceHidden bool
}

// Actions are the per-row URLs handed to column definitions.
type Actions struct {
	Base string
}

func (a Actions) EditURL(id int) string   { return fmt.Sprintf("%s/%d/edit", a.Base, id) }
func (a Actions) UpdateURL(id int) string { return fmt.Sprintf("%s/%d", a.Base, id) }
func (a Actions) DeleteURL(id int) string { return fmt.Sprintf("%s/%d/delete", a.Base, id) }
func (a Actions) ViewURL(id int) string   { return fmt.Sprintf("%s/%d", a.Base, id) }

// CellText renders the display value of c for row.
func (c Column[R]) CellText(row R) string {
	if c.Value != nil {
		return c.Value(row)
	}
	v, ok := rowFields(row)[c.AccessorKey]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// rowFields flattens row into its JSON fields.
func rowFields(row any) map[string]any {
	out := map[string]any{}
	b, err := json.Marshal(row)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func visibleColumns[R Row](cols []Column[R]) []Column[R] {
	out := make([]Column[R], 0, len(cols))
	for _, c := range cols {
		if !c.ForceHidden {
			out = append(out, c)
		}
	}
	return out
}

func formFields[R Row](cols []Column[R]) []form.Field {
	out := make([]form.Field, 0, len(cols))
	for _, c := range cols {
		if c.Field.Complete() {
			out = append(out, c.Field)
		}
	}
	return out
}

func createDefaults[R Row](cols []Column[R]) map[string]any {
	out := map[string]any{}
	for _, c := range cols {
		if c.Field.Name != "" && c.Create != nil && c.Create.Default != nil {
			out[c.Field.Name] = c.Create.Default
		}
	}
	return out
}

// updateValues is the row's values for the update form, with Update
// defaults filling empty values.
func updateValues[R Row](cols []Column[R], row R) map[string]any {
	fields := rowFields(row)
	out := map[string]any{}
	for _, c := range cols {
		name := c.Field.Name
		if name == "" {
			continue
		}
		var v any
		if c.FormValue != nil {
			v = c.FormValue(row)
		} else {
			v = fields[name]
		}
		if isEmpty(v) && c.Update != nil && c.Update.Default != nil {
			v = c.Update.Default
		}
		out[name] = v
	}
	return out
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}
