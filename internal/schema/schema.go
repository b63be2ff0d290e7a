// Package schema validates request and response bodies at the backend
// boundary and decodes loosely typed form values into typed bodies.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

const (
	PasswordRuleMessage = "Password must contain at least one uppercase letter, one lowercase letter, one number and one special character."
	SlugRuleMessage     = "Slug must be lowercase and contain only letters, numbers and dashes."
	passwordSpecials    = "!@#$%^&*"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every failed rule of one value.
type ValidationError struct {
	Issues []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Field+": "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the first message reported for field, or "".
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	for _, is := range e.Issues {
		if is.Field == name {
			return is.Message
		}
	}
	return ""
}

// Fields returns the first message per field.
func (e *ValidationError) Fields() map[string]string {
	if e == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(e.Issues))
	for _, is := range e.Issues {
		if _, ok := out[is.Field]; !ok {
			out[is.Field] = is.Message
		}
	}
	return out
}

// Checker is implemented by values with invariants beyond struct tags.
type Checker interface {
	Check() error
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsStrongPassword reports whether p contains a lowercase letter, an
// uppercase letter, a digit and one of !@#$%^&*.
func IsStrongPassword(p string) bool {
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// Validate checks v against its validate tags and, when v implements
// Checker, its own invariants. Failures are *ValidationError.
func Validate(v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if err := engine().Struct(v); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return fromValidator(verrs)
			}
			return err
		}
	}
	if c, ok := v.(Checker); ok {
		if err := c.Check(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return ve
			}
			return &ValidationError{Issues: []FieldError{{Message: err.Error()}}}
		}
	}
	return nil
}

// Decode copies values (form input keyed by JSON field name) into out, then
// validates out.
func Decode(values map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("schema decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return &ValidationError{Issues: []FieldError{{Message: err.Error()}}}
	}
	return Validate(out)
}

func fromValidator(verrs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Issues: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name: "CreateRole.name" -> "name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
		}
		return fmt.Sprintf("Must contain at least %s item(s)", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
		}
		return fmt.Sprintf("Must contain at most %s item(s)", fe.Param())
	case "password":
		return PasswordRuleMessage
	case "slug":
		return SlugRuleMessage
	case "hexcolor":
		return "Invalid color"
	case "eqfield":
		return "The passwords did not match"
	case "required_without_all":
		return "Required"
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("Must be %s %s", fe.Tag(), fe.Param())
	default:
		return "Invalid value"
	}
}
