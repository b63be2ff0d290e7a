package form

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, r Renderer, f Field, value any, errMsg string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Field(f, value, errMsg).Render(context.Background(), &buf))
	return buf.String()
}

func TestParseInput(t *testing.T) {
	assert.Equal(t, Password{}, ParseInput("password"))
	assert.Equal(t, Color{}, ParseInput("color"))
	assert.Equal(t, RoleBox{}, ParseInput("role-box"))
	assert.Equal(t, ReadOnly{}, ParseInput("readonly"))
	assert.Equal(t, Text{Type: "email"}, ParseInput("email"))
	assert.Equal(t, "text", Text{Type: "hologram"}.HTMLType())
	assert.Equal(t, "text", ParseInput("").(Text).HTMLType())
}

func TestTextField(t *testing.T) {
	html := render(t, Renderer{}, Field{
		Name:         "email",
		Label:        "Email",
		Input:        Text{Type: "email"},
		Placeholder:  "e.g. test@mail.com",
		AutoComplete: "email",
		Description:  "Used to sign in",
	}, `a"b@mail.com`, "Invalid email")

	assert.Contains(t, html, `<label for="field-email">Email</label>`)
	assert.Contains(t, html, `type="email"`)
	assert.Contains(t, html, `value="a&#34;b@mail.com"`)
	assert.Contains(t, html, `placeholder="e.g. test@mail.com"`)
	assert.Contains(t, html, `autocomplete="email"`)
	assert.Contains(t, html, "Used to sign in")
	assert.Contains(t, html, `<p class="field-error" role="alert">Invalid email</p>`)
}

func TestUnknownTypeFallsBackToText(t *testing.T) {
	html := render(t, Renderer{}, Field{Name: "x", Label: "X", Input: ParseInput("hologram")}, "", "")
	assert.Contains(t, html, `type="text"`)
}

func TestPasswordHasToggle(t *testing.T) {
	html := render(t, Renderer{Prefix: "create"}, Field{Name: "password", Label: "Password", Input: Password{}}, "", "")
	assert.Contains(t, html, `id="create-password"`)
	assert.Contains(t, html, `type="password"`)
	assert.Contains(t, html, "password-toggle")
}

func TestColorSwatch(t *testing.T) {
	html := render(t, Renderer{}, Field{Name: "color", Label: "Color", Input: Color{}}, "#00ff00", "")
	assert.Contains(t, html, "background-color:#00ff00")

	html = render(t, Renderer{}, Field{Name: "color", Label: "Color", Input: Color{}}, "red;position:fixed", "")
	assert.Contains(t, html, "background-color:transparent")
}

func TestRoleBoxLoadsOptionsAtRender(t *testing.T) {
	loads := 0
	loader := OptionsLoaderFunc(func(ctx context.Context) ([]Option, error) {
		loads++
		return []Option{{Value: "admin", Label: "Administrator"}, {Value: "ops", Label: "Operations"}}, nil
	})
	f := Field{Name: "roles", Label: "Roles", Input: RoleBox{}}
	c := Renderer{Options: loader}.Field(f, []string{"ops", "legacy"}, "")
	assert.Zero(t, loads)

	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	html := buf.String()

	assert.Equal(t, 1, loads)
	assert.Contains(t, html, `<select id="field-roles" name="roles" multiple`)
	assert.Contains(t, html, `<option value="admin">Administrator</option>`)
	assert.Contains(t, html, `<option value="ops" selected>Operations</option>`)
	assert.Contains(t, html, `<option value="legacy" selected>legacy</option>`)
}

func TestRoleBoxLoadFailure(t *testing.T) {
	loader := OptionsLoaderFunc(func(ctx context.Context) ([]Option, error) {
		return nil, errors.New("backend down")
	})
	html := render(t, Renderer{Options: loader}, Field{Name: "roles", Label: "Roles", Input: RoleBox{}}, nil, "")
	assert.Contains(t, html, RoleBoxLoadError)
}

func TestIncompleteFieldRendersNothing(t *testing.T) {
	f := Field{Name: "activeRoles", Label: "Active Roles"}
	assert.True(t, f.Partial())
	assert.Empty(t, render(t, Renderer{}, f, "x", ""))

	display := Field{}
	assert.False(t, display.Partial())
}

func TestValues(t *testing.T) {
	fields := []Field{
		{Name: "email", Label: "Email", Input: Text{Type: "email"}},
		{Name: "password", Label: "Password", Input: Password{}},
		{Name: "roles", Label: "Roles", Input: RoleBox{}},
		{Name: "id", Label: "Id", Input: ReadOnly{}},
		{Name: "firstName", Label: "First Name", Input: Text{}},
		{Name: "activeRoles"},
	}
	form := url.Values{
		"email":       {" groot@mail.com "},
		"password":    {" secret "},
		"roles":       {"admin", "", "ops"},
		"id":          {"7"},
		"activeRoles": {"x"},
	}
	assert.Equal(t, map[string]any{
		"email":    "groot@mail.com",
		"password": " secret ",
		"roles":    []string{"admin", "ops"},
	}, Values(form, fields))
}
