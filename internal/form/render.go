package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/obs"
)

// RoleBoxLoadError is shown in place of the options when loading fails.
const RoleBoxLoadError = "Failed to load roles"

// Renderer renders fields of one form. Prefix keeps element ids unique when
// several forms share a page.
type Renderer struct {
	Prefix  string
	Options OptionsLoader
}

// Field renders a labelled control with its description and error
// message. Incomplete descriptors render nothing.
func (r Renderer) Field(f Field, value any, errMsg string) templ.Component {
	if !f.Complete() {
		if f.Partial() {
			obs.Logger().Error("incomplete form field descriptor",
				zap.String("name", f.Name), zap.String("label", f.Label))
		}
		return templ.NopComponent
	}
	return r.field(r.id(f.Name), f, value, errMsg)
}

// Fields renders every complete field in order. values and errs are keyed
// by field name.
func (r Renderer) Fields(fields []Field, values map[string]any, errs map[string]string) templ.Component {
	parts := make([]templ.Component, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, r.Field(f, values[f.Name], errs[f.Name]))
	}
	return templ.Join(parts...)
}

func (r Renderer) id(name string) string {
	if r.Prefix == "" {
		return "field-" + name
	}
	return r.Prefix + "-" + name
}

func (r Renderer) loadOptions(ctx context.Context) ([]Option, error) {
	if r.Options == nil {
		return nil, nil
	}
	opts, err := r.Options.LoadOptions(ctx)
	if err != nil {
		obs.Logger().Error("load role options", zap.Error(err))
	}
	return opts, err
}

// withSelected appends the selections missing from opts.
func withSelected(opts []Option, selected []string) []Option {
	seen := make(map[string]bool, len(opts))
	for _, o := range opts {
		seen[o.Value] = true
	}
	out := opts
	for _, s := range selected {
		if !seen[s] {
			out = append(out, Option{Value: s})
			seen[s] = true
		}
	}
	return out
}

func optionLabel(o Option) string {
	if o.Label == "" {
		return o.Value
	}
	return o.Label
}

func swatchStyle(v string) templ.SafeCSS {
	return templ.SafeCSS("background-color:" + safeColor(v))
}

// safeColor keeps only hex colors in style attributes.
func safeColor(v string) string {
	if len(v) != 4 && len(v) != 7 || !strings.HasPrefix(v, "#") {
		return "transparent"
	}
	for _, r := range v[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "transparent"
		}
	}
	return v
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case []string:
		return strings.Join(x, ", ")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func valueList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return x
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, valueString(e))
		}
		return out
	default:
		return []string{valueString(x)}
	}
}
