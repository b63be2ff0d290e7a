// Package form describes form controls as a closed set of input variants
// and renders them. The same descriptors drive table columns and the
// create/update modals.
package form

import (
	"context"
	"net/url"
	"strings"
)

// Input is the control variant of a field. The set is closed: Text,
// Password, Color, RoleBox, ReadOnly.
type Input interface {
	inputKind() string
}

// Text is a plain <input>. Type is the HTML input type; unknown types
// render as "text".
type Text struct {
	Type string
}

// Password is a password input with a visibility toggle.
type Password struct{}

// Color is a hex color input with a swatch.
type Color struct{}

// RoleBox is a multi-select whose options are loaded at render time.
type RoleBox struct{}

// ReadOnly renders the value without a control.
type ReadOnly struct{}

func (t Text) inputKind() string   { return "text" }
func (Password) inputKind() string { return "password" }
func (Color) inputKind() string    { return "color" }
func (RoleBox) inputKind() string  { return "role-box" }
func (ReadOnly) inputKind() string { return "read-only" }

var htmlInputTypes = map[string]bool{
	"text": true, "email": true, "number": true, "url": true, "tel": true,
	"search": true, "date": true, "datetime-local": true, "time": true,
	"month": true, "week": true,
}

// HTMLType returns the input type attribute, falling back to "text".
func (t Text) HTMLType() string {
	if htmlInputTypes[strings.ToLower(t.Type)] {
		return strings.ToLower(t.Type)
	}
	return "text"
}

// ParseInput maps a type tag to its variant. "" or an unknown tag yields a
// text input.
func ParseInput(tag string) Input {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "password":
		return Password{}
	case "color":
		return Color{}
	case "role-box":
		return RoleBox{}
	case "read-only", "readonly":
		return ReadOnly{}
	default:
		return Text{Type: tag}
	}
}

// Field is one form control.
type Field struct {
	Name         string
	Label        string
	Input        Input
	Placeholder  string
	AutoComplete string
	Description  string
}

// Complete reports whether f can be rendered as a control: name, label and
// input are all set.
func (f Field) Complete() bool {
	return f.Name != "" && f.Label != "" && f.Input != nil
}

// Partial reports a descriptor that sets some form props but not all of
// them, which is a definition mistake.
func (f Field) Partial() bool {
	return !f.Complete() && (f.Label != "" || f.Input != nil)
}

// Option is one selectable entry of a RoleBox.
type Option struct {
	Value string
	Label string
	Color string
}

// OptionsLoader supplies RoleBox options.
type OptionsLoader interface {
	LoadOptions(ctx context.Context) ([]Option, error)
}

// OptionsLoaderFunc adapts a function to OptionsLoader.
type OptionsLoaderFunc func(ctx context.Context) ([]Option, error)

func (f OptionsLoaderFunc) LoadOptions(ctx context.Context) ([]Option, error) { return f(ctx) }

// Values extracts the submitted values of fields from form: RoleBox fields
// yield []string, read-only fields are skipped, everything else a string.
// The result is keyed by field name for schema.Decode.
func Values(form url.Values, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if !f.Complete() {
			continue
		}
		switch f.Input.(type) {
		case ReadOnly:
			continue
		case RoleBox:
			vals := make([]string, 0, len(form[f.Name]))
			for _, v := range form[f.Name] {
				if v = strings.TrimSpace(v); v != "" {
					vals = append(vals, v)
				}
			}
			out[f.Name] = vals
		case Password:
			if _, ok := form[f.Name]; ok {
				out[f.Name] = form.Get(f.Name)
			}
		default:
			if _, ok := form[f.Name]; ok {
				out[f.Name] = strings.TrimSpace(form.Get(f.Name))
			}
		}
	}
	return out
}
