package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/resources"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/view"
)

const metadataUpdated = "Metadata updated successfully"

func (a *API) mountUsers() {
	a.mux.Handle("GET /users/{id}", a.guard.Middleware(http.HandlerFunc(a.user)))
	a.mux.Handle("POST /users/{id}", a.guard.Middleware(http.HandlerFunc(a.user)))
	a.mux.Handle("GET /users/{id}/metadata", a.guard.Middleware(http.HandlerFunc(a.metadata)))
	a.mux.Handle("POST /users/{id}/metadata", a.guard.Middleware(http.HandlerFunc(a.metadata)))
}

// loadUser resolves /users/{id}. It reports false after writing the
// response itself.
func (a *API) loadUser(w http.ResponseWriter, r *http.Request) (*call, apiclient.User, bool) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return nil, apiclient.User{}, false
	}
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return nil, apiclient.User{}, false
	}
	u, err := c.client.GetUser(r.Context(), id)
	if c.redirected(err) {
		return nil, apiclient.User{}, false
	}
	if err != nil {
		a.page(c, statusOf(err), "User", resources.UsersRoute, []crud.Notification{crud.Failure(apiclient.Message(err))}, templ.NopComponent)
		return nil, apiclient.User{}, false
	}
	return c, u, true
}

// user is the administrator's page of one account.
func (a *API) user(w http.ResponseWriter, r *http.Request) {
	c, u, ok := a.loadUser(w, r)
	if !ok {
		return
	}
	base := fmt.Sprintf("/users/%d", u.ID)

	o := outcome{user: u, status: http.StatusOK}
	if r.Method == http.MethodPost {
		o = a.submitAccount(c, account{
			user: u,
			update: func(ctx context.Context, body apiclient.UpdateProfileBody) (apiclient.User, error) {
				return c.client.UpdateUser(ctx, u.ID, apiclient.UpdateUserBody{
					Email:     body.Email,
					Username:  body.Username,
					FirstName: body.FirstName,
					LastName:  body.LastName,
				})
			},
			setMetadata: func(ctx context.Context, m map[string]any) (apiclient.User, error) {
				return c.client.SetUserMetadata(ctx, u.ID, m)
			},
		})
		if o.done {
			return
		}
		c.canonical = base
	}
	a.page(c, o.status, view.DisplayName(o.user), "/", o.notes, view.UserDetail(view.AccountProps{
		User:      o.user,
		Action:    base,
		Forms:     o.forms,
		AssetBase: a.opts.BackendURL,
		MaxUpload: a.maxUpload(),
		Roles:     resources.RoleOptions(c.client),
	}))
}

// metadata edits the user's metadata as raw JSON.
func (a *API) metadata(w http.ResponseWriter, r *http.Request) {
	c, u, ok := a.loadUser(w, r)
	if !ok {
		return
	}
	props := view.MetadataProps{User: u}
	status := http.StatusOK
	var notes []crud.Notification

	if r.Method == http.MethodPost {
		c.canonical = fmt.Sprintf("/users/%d/metadata", u.ID)
		err := parseForm(r)
		if err == nil {
			props.Raw = r.PostForm.Get("metadata")
			var m map[string]any
			if m, err = resources.ParseMetadata(props.Raw); err == nil {
				var updated apiclient.User
				updated, err = c.client.SetUserMetadata(r.Context(), u.ID, m)
				if c.redirected(err) {
					return
				}
				if err == nil {
					props = view.MetadataProps{User: updated}
					notes = append(notes, crud.Success(metadataUpdated))
					a.auditAccount(r.Context(), account{user: u}, "metadata")
				}
			}
		}
		if err != nil {
			status = statusOf(err)
			var ve *schema.ValidationError
			if errors.As(err, &ve) {
				props.Error = ve.Field("metadata")
				if props.Error == "" {
					props.Error = resources.InvalidJSONMessage
				}
			} else {
				notes = append(notes, crud.Failure(apiclient.Message(err)))
			}
		}
	}
	a.page(c, status, view.DisplayName(props.User), "/", notes, view.Metadata(props))
}
