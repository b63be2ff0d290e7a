package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/resources"
	"github.com/mad-auth/console/internal/view"
)

const (
	resetTokenSuccess = "Service account token reset successfully"
	resetTokenError   = "Failed to reset service account token"
	rowNotFound       = "Could not find row to edit"
)

// tablePage serves one resource table: list, create and edit modals, row
// actions.
type tablePage[R crud.Row, C any, U any] struct {
	api    *API
	title  string
	base   string
	active string
	config func(*apiclient.Client) crud.Config[R, C, U]
	// roleOptions feeds RoleBox fields from the backend roles.
	roleOptions bool
}

func (a *API) mountTables() {
	users := tablePage[apiclient.User, apiclient.CreateUserBody, apiclient.UpdateUserBody]{
		api: a, title: "Users", base: resources.UsersRoute, active: "/",
		config: resources.Users, roleOptions: true,
	}
	mountTable(a, users, "/{$}", resources.UsersRoute)

	roles := tablePage[apiclient.Role, apiclient.CreateRoleBody, apiclient.UpdateRoleBody]{
		api: a, title: "Roles", base: resources.RolesRoute, active: resources.RolesRoute,
		config: resources.Roles,
	}
	mountTable(a, roles, resources.RolesRoute)

	accounts := tablePage[apiclient.ServiceAccount, apiclient.CreateServiceAccountBody, apiclient.UpdateServiceAccountBody]{
		api: a, title: "Service Accounts", base: resources.ServiceAccountsRoute, active: resources.ServiceAccountsRoute,
		config: resources.ServiceAccounts,
	}
	mountTable(a, accounts, resources.ServiceAccountsRoute)
	a.mux.Handle("POST "+resources.ServiceAccountsRoute+"/{id}/token", a.guard.Middleware(accounts.rowAction(resetServiceAccountToken)))

	projects := tablePage[apiclient.Project, apiclient.CreateProjectBody, apiclient.UpdateProjectBody]{
		api: a, title: "Projects", base: resources.ProjectsRoute, active: resources.ProjectsRoute,
		config: resources.Projects,
	}
	mountTable(a, projects, resources.ProjectsRoute)
}

// mountTable registers the list on every listPath and the mutations under
// t.base. Update and delete routes exist only when the resource has them.
func mountTable[R crud.Row, C any, U any](a *API, t tablePage[R, C, U], listPaths ...string) {
	guarded := func(h http.HandlerFunc) http.Handler { return a.guard.Middleware(h) }
	for _, p := range listPaths {
		a.mux.Handle("GET "+p, guarded(t.list))
	}
	cfg := t.config(a.anon)
	if cfg.CreateRow != nil {
		a.mux.Handle("POST "+t.base, guarded(t.create))
	}
	if cfg.UpdateRow != nil {
		a.mux.Handle("GET "+t.base+"/{id}/edit", guarded(t.edit))
		a.mux.Handle("POST "+t.base+"/{id}", guarded(t.update))
	}
	if cfg.DeleteRow != nil {
		a.mux.Handle("POST "+t.base+"/{id}/delete", guarded(t.rowAction(deleteRow[R, C, U])))
	}
}

func (t tablePage[R, C, U]) open(c *call, state url.Values) *crud.Table[R, C, U] {
	cfg := t.config(c.client)
	cfg.DefaultPageSize = t.api.opts.DefaultPageSize
	tbl := crud.New(cfg, t.base,
		crud.WithLogger(t.api.log),
		crud.WithSearchDebounce(t.api.opts.SearchDebounce))
	tbl.Restore(crud.ParseState(state, cfg.SearchColumn, cfg.DefaultPageSize))
	return tbl
}

func (t tablePage[R, C, U]) show(c *call, tbl *crud.Table[R, C, U], status int) {
	if c.redirected(nil) {
		return
	}
	snap := tbl.Snapshot()
	renderer := form.Renderer{Prefix: snap.Resource}
	if t.roleOptions {
		renderer.Options = resources.RoleOptions(c.client)
	}
	t.api.page(c, status, t.title, t.active, snap.Notifications, view.Table(view.TableProps[R]{
		Title:          t.title,
		Snapshot:       snap,
		Fields:         renderer,
		SearchDebounce: t.api.opts.SearchDebounce,
	}))
}

func (t tablePage[R, C, U]) list(w http.ResponseWriter, r *http.Request) {
	c, err := t.api.begin(w, r)
	if err != nil {
		t.api.internalError(w, r, err)
		return
	}
	q := r.URL.Query()
	tbl := t.open(c, q)
	defer tbl.Close()

	err = tbl.Refresh(c.r.Context())
	if c.redirected(err) {
		return
	}
	if q.Get("create") == "1" {
		tbl.ShowCreate()
	}
	t.show(c, tbl, http.StatusOK)
}

// edit opens the edit modal over the page the operator came from.
func (t tablePage[R, C, U]) edit(w http.ResponseWriter, r *http.Request) {
	c, err := t.api.begin(w, r)
	if err != nil {
		t.api.internalError(w, r, err)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	state := refererState(r, t.base)
	tbl := t.open(c, state)
	defer tbl.Close()

	err = tbl.Refresh(c.r.Context())
	if c.redirected(err) {
		return
	}
	status := statusOf(err)
	if err == nil {
		if err := tbl.ShowEdit(id); errors.Is(err, crud.ErrRowNotFound) {
			tbl.Notify(crud.Failure(rowNotFound))
			status = http.StatusNotFound
		}
	}
	c.canonical = withState(t.base, state)
	t.show(c, tbl, status)
}

func (t tablePage[R, C, U]) create(w http.ResponseWriter, r *http.Request) {
	c, tbl, state, ok := t.openPost(w, r)
	if !ok {
		return
	}
	defer tbl.Close()

	err := tbl.Create(c.r.Context(), form.Values(r.PostForm, tbl.Fields()))
	t.finish(c, tbl, state, err)
}

func (t tablePage[R, C, U]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, tbl, state, ok := t.openPost(w, r)
	if !ok {
		return
	}
	defer tbl.Close()

	// The row must be on the operator's page before anything is sent.
	if err := tbl.Refresh(c.r.Context()); err != nil {
		t.finish(c, tbl, state, err)
		return
	}
	err := tbl.Update(c.r.Context(), id, form.Values(r.PostForm, tbl.Fields()))
	if errors.Is(err, crud.ErrRowNotFound) {
		tbl.Notify(crud.Failure(rowNotFound))
	}
	t.finish(c, tbl, state, err)
}

type rowActionFunc[R crud.Row, C any, U any] func(ctx context.Context, c *call, tbl *crud.Table[R, C, U], id int) error

// rowAction serves a POST on /base/{id}/... that mutates one row.
func (t tablePage[R, C, U]) rowAction(fn rowActionFunc[R, C, U]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			http.NotFound(w, r)
			return
		}
		c, tbl, state, ok := t.openPost(w, r)
		if !ok {
			return
		}
		defer tbl.Close()
		err := fn(c.r.Context(), c, tbl, id)
		t.finish(c, tbl, state, err)
	}
}

func deleteRow[R crud.Row, C any, U any](ctx context.Context, _ *call, tbl *crud.Table[R, C, U], id int) error {
	return tbl.Delete(ctx, id)
}

func resetServiceAccountToken(ctx context.Context, c *call, tbl *crud.Table[apiclient.ServiceAccount, apiclient.CreateServiceAccountBody, apiclient.UpdateServiceAccountBody], id int) error {
	sa, err := c.client.ResetServiceAccountToken(ctx, id)
	if err != nil {
		if !errors.Is(err, apiclient.ErrRedirected) {
			tbl.Notify(crud.Failure(resetTokenError))
		}
		return err
	}
	tbl.Notify(resources.TokenNotification(resetTokenSuccess, sa.Token))
	return tbl.Refresh(ctx)
}

func (t tablePage[R, C, U]) openPost(w http.ResponseWriter, r *http.Request) (*call, *crud.Table[R, C, U], url.Values, bool) {
	c, err := t.api.begin(w, r)
	if err != nil {
		t.api.internalError(w, r, err)
		return nil, nil, nil, false
	}
	if err := parseForm(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, nil, false
	}
	state, _ := url.ParseQuery(r.PostForm.Get(view.StateField))
	return c, t.open(c, state), state, true
}

// finish renders the table after a mutation. A failed mutation left the
// rows unloaded, so they are fetched for the page behind the modal.
func (t tablePage[R, C, U]) finish(c *call, tbl *crud.Table[R, C, U], state url.Values, err error) {
	if c.redirected(err) {
		return
	}
	if err != nil && !tbl.Loaded() {
		if c.redirected(tbl.Refresh(c.r.Context())) {
			return
		}
	}
	c.canonical = withState(t.base, state)
	t.show(c, tbl, statusOf(err))
}

// refererState recovers the table state from the page that linked here.
func refererState(r *http.Request, base string) url.Values {
	if q := r.URL.Query(); len(q) > 0 {
		return q
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path != base {
		return url.Values{}
	}
	return ref.Query()
}

func withState(base string, state url.Values) string {
	if len(state) == 0 {
		return base
	}
	return base + "?" + state.Encode()
}
