package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/schema"
)

func newClient(t *testing.T, h http.Handler) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL, nil, apiclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRolesNormalizeNullColor(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"meta":{"itemsPerPage":10,"totalItems":2,"currentPage":1,"totalPages":1},
			"links":{},"data":[{"id":1,"name":"admin","displayName":"Admin","color":null},
			{"id":2,"name":"ops","displayName":"Ops","color":"#ff0000"}]}`)
	}))

	table := crud.New(Roles(c), RolesRoute)
	defer table.Close()
	require.NoError(t, table.Refresh(context.Background()))

	snap := table.Snapshot()
	require.NotNil(t, snap.Page)
	require.Len(t, snap.Page.Data, 2)
	assert.Equal(t, "", snap.Page.Data[0].Color)
	assert.Equal(t, "#ff0000", snap.Page.Data[1].Color)
	assert.Equal(t, "Search roles by name", snap.SearchPlaceholder)
}

func TestCreateRoleScenario(t *testing.T) {
	var created apiclient.CreateRoleBody
	roles := []apiclient.Role{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /roles", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		role := apiclient.Role{ID: 1, Name: created.Name, DisplayName: created.DisplayName, Color: created.Color}
		roles = append(roles, role)
		writeJSON(w, role)
	})
	mux.HandleFunc("GET /roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, apiclient.Page[apiclient.Role]{
			Meta: apiclient.Meta{ItemsPerPage: 10, TotalItems: len(roles), CurrentPage: 1, TotalPages: 1},
			Data: roles,
		})
	})
	table := crud.New(Roles(newClient(t, mux)), RolesRoute)
	defer table.Close()

	table.ShowCreate()
	values := table.CreateValues()
	assert.Equal(t, "#000000", values["color"])

	values["name"] = "moderator"
	values["displayName"] = "Moderator"
	require.NoError(t, table.Create(context.Background(), values))

	assert.Equal(t, "moderator", created.Name)
	assert.Equal(t, "#000000", created.Color)
	snap := table.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "Role created successfully", snap.Notifications[0].Description)
	require.Len(t, snap.Page.Data, 1)
	assert.Equal(t, crud.ModalClosed, snap.Modal.Mode)
}

func TestUsersColumns(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	cfg := Users(c)
	assert.Equal(t, "email", cfg.SearchColumn)
	assert.Nil(t, cfg.UpdateRow)

	cols := cfg.Columns(crud.Actions{Base: UsersRoute})
	byKey := map[string]crud.Column[apiclient.User]{}
	for _, col := range cols {
		byKey[col.AccessorKey] = col
	}
	require.Contains(t, byKey, "roles")
	assert.True(t, byKey["roles"].ForceHidden)
	assert.IsType(t, form.RoleBox{}, byKey["roles"].Field.Input)

	u := apiclient.User{ID: 3, Email: "a@b.co", Roles: []apiclient.Role{{Name: "admin"}, {Name: "ops"}}}
	assert.Equal(t, "admin, ops", byKey["activeRoles"].CellText(u))
	assert.Equal(t, []string{"admin", "ops"}, byKey["roles"].FormValue(u))

	assert.Equal(t, "Edit user a@b.co", cfg.UpdateModalTitle(u))
	assert.Equal(t, "Edit user groot", cfg.UpdateModalTitle(apiclient.User{Username: "groot"}))
	assert.Equal(t, "Edit user Star Lord", cfg.UpdateModalTitle(apiclient.User{FirstName: "Star", LastName: "Lord"}))

	var buf bytes.Buffer
	require.NoError(t, byKey["actions"].Cell(u).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `href="/users/3"`)
}

func TestRowActionsKeepTableState(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	cols := ServiceAccounts(c).Columns(crud.Actions{Base: ServiceAccountsRoute})
	var actions crud.Column[apiclient.ServiceAccount]
	for _, col := range cols {
		if col.AccessorKey == "actions" {
			actions = col
		}
	}
	require.NotNil(t, actions.Cell)

	state := crud.ParseState(url.Values{"search": {"ci"}, "sort": {"-name"}, "page": {"2"}}, "name", 10).Values("name")
	ctx := crud.WithTableState(context.Background(), state)
	var buf bytes.Buffer
	require.NoError(t, actions.Cell(apiclient.ServiceAccount{ID: 5, Name: "ci"}).Render(ctx, &buf))
	out := buf.String()

	encoded := templ.EscapeString(state.Encode())
	assert.Contains(t, out, `action="/service-accounts/5/delete"`)
	assert.Contains(t, out, `action="/service-accounts/5/token"`)
	assert.Equal(t, 2, strings.Count(out, `<input type="hidden" name="_state" value="`+encoded+`">`),
		"delete and reset token both post the state")
	assert.Contains(t, out, `href="/service-accounts/5/edit?`+encoded+`"`)

	buf.Reset()
	require.NoError(t, actions.Cell(apiclient.ServiceAccount{ID: 5, Name: "ci"}).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "_state")
	assert.Contains(t, buf.String(), `href="/service-accounts/5/edit"`)
}

func TestServiceAccountTokenSurfaced(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	cfg := ServiceAccounts(c)

	n := cfg.OnRowCreated(context.Background(), apiclient.ServiceAccount{ID: 1, Name: "ci", Token: "tok-123"})
	require.NotNil(t, n)
	assert.Contains(t, n.Description, "tok-123")
	assert.Zero(t, n.Duration)

	assert.Nil(t, cfg.OnRowCreated(context.Background(), apiclient.ServiceAccount{ID: 2}))
	assert.Equal(t, "/service-accounts/4/token", ResetTokenURL(crud.Actions{Base: ServiceAccountsRoute}, 4))
}

func TestRoleOptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /roles/no-pagination", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []apiclient.Role{{ID: 1, Name: "admin", DisplayName: "Admin", Color: "#ff0000"}, {ID: 2, Name: "ops"}})
	})
	opts, err := RoleOptions(newClient(t, mux)).LoadOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []form.Option{
		{Value: "admin", Label: "Admin", Color: "#ff0000"},
		{Value: "ops", Label: "ops"},
	}, opts)
}

func TestEveryColumnFieldIsComplete(t *testing.T) {
	c := newClient(t, http.NotFoundHandler())
	check := func(t *testing.T, fields []form.Field) {
		for _, f := range fields {
			assert.False(t, f.Partial(), f.Name)
		}
	}
	check(t, crud.New(Users(c), UsersRoute).Fields())
	check(t, crud.New(Roles(c), RolesRoute).Fields())
	check(t, crud.New(ServiceAccounts(c), ServiceAccountsRoute).Fields())
	check(t, crud.New(Projects(c), ProjectsRoute).Fields())
}

func TestPasswordFormMismatch(t *testing.T) {
	var f PasswordForm
	err := schema.Decode(map[string]any{
		"oldPassword":     "old",
		"newPassword":     "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pas",
	}, &f)
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "The passwords did not match", ve.Field("confirmPassword"))
}

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata(`{"team":"core","level":3}`)
	require.NoError(t, err)
	assert.Equal(t, "core", m["team"])

	for _, raw := range []string{`{"team":`, `[1,2]`, `null`} {
		_, err := ParseMetadata(raw)
		var ve *schema.ValidationError
		require.ErrorAs(t, err, &ve, raw)
		assert.Equal(t, InvalidJSONMessage, ve.Field("metadata"))
	}

	m, err = ParseMetadata("  ")
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Equal(t, "{}", FormatMetadata(nil))
}

func TestCheckAvatar(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	require.NoError(t, CheckAvatar(1024, 0, png))

	err := CheckAvatar(6<<20, 0, png)
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "File is too large (6.0 MiB), the maximum is 5.0 MiB", ve.Field("avatar"))

	require.Error(t, CheckAvatar(10, 0, []byte("plain text")))
}

func TestWithAvatar(t *testing.T) {
	in := map[string]any{"team": "core"}
	out := WithAvatar(in, "/uploads/a.png")
	assert.Equal(t, "/uploads/a.png", out["avatar"])
	assert.NotContains(t, in, "avatar")

	cleared := WithAvatar(out, "")
	v, ok := cleared["avatar"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDeleteAccountFields(t *testing.T) {
	fields := DeleteAccountFields(apiclient.User{ID: 1, Username: "groot"})
	require.Len(t, fields, 2)
	assert.Equal(t, "username", fields[0].Name)

	fields = DeleteAccountFields(apiclient.User{ID: 1, Email: "a@b.co"})
	assert.Equal(t, "email", fields[0].Name)
	assert.Equal(t, "password", fields[1].Name)
}
