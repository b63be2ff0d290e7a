package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/resources"
	"github.com/mad-auth/console/internal/view"
)

const (
	profileRoute = "/profile"
	devicesRoute = "/profile/devices"

	revokeError = "Could not sign the device out"
)

func (a *API) mountProfile() {
	a.mux.Handle("GET "+profileRoute, a.guard.Middleware(http.HandlerFunc(a.profile)))
	a.mux.Handle("POST "+profileRoute, a.guard.Middleware(http.HandlerFunc(a.profile)))
	a.mux.Handle("GET "+devicesRoute, a.guard.Middleware(http.HandlerFunc(a.devices)))
	a.mux.Handle("POST "+devicesRoute+"/{id}/revoke", a.guard.Middleware(http.HandlerFunc(a.revokeDevice)))
}

// profile shows the settings of the signed-in user and applies the posted
// section form.
func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	me, err := c.client.Profile(r.Context())
	if c.redirected(err) {
		return
	}
	if err != nil {
		a.page(c, statusOf(err), "Settings", profileRoute, []crud.Notification{crud.Failure(apiclient.Message(err))}, templ.NopComponent)
		return
	}

	o := outcome{user: me, status: http.StatusOK}
	if r.Method == http.MethodPost {
		o = a.submitAccount(c, account{
			self: true,
			user: me,
			update: func(ctx context.Context, body apiclient.UpdateProfileBody) (apiclient.User, error) {
				return c.client.UpdateProfile(ctx, me.ID, body)
			},
			setMetadata: func(ctx context.Context, m map[string]any) (apiclient.User, error) {
				return c.client.SetUserMetadata(ctx, me.ID, m)
			},
		})
		if o.done {
			return
		}
		c.canonical = profileRoute
	}
	a.page(c, o.status, "Settings", profileRoute, o.notes, view.Profile(view.AccountProps{
		User:      o.user,
		Action:    profileRoute,
		Forms:     o.forms,
		AssetBase: a.opts.BackendURL,
		MaxUpload: a.maxUpload(),
		Self:      true,
	}))
}

func (a *API) devices(w http.ResponseWriter, r *http.Request) {
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	a.showDevices(c, http.StatusOK, nil)
}

func (a *API) showDevices(c *call, status int, notes []crud.Notification) {
	// a user holds a handful of tokens; one page covers them
	tokens, err := c.client.ListTokens(c.r.Context(), apiclient.Query{Page: 1, Limit: 100})
	if c.redirected(err) {
		return
	}
	if err != nil {
		notes = append(notes, crud.Failure(apiclient.Message(err)))
		if status == http.StatusOK {
			status = statusOf(err)
		}
	}
	a.page(c, status, "Devices", profileRoute, notes, view.Devices(view.DevicesProps{
		Tokens: tokens.Data,
		Now:    time.Now(),
	}))
}

func (a *API) revokeDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	err = c.client.RevokeToken(r.Context(), id)
	if c.redirected(err) {
		return
	}
	c.canonical = devicesRoute
	if err != nil {
		a.showDevices(c, statusOf(err), []crud.Notification{crud.Failure(revokeError)})
		return
	}
	a.auditAccount(r.Context(), account{self: true, user: apiclient.User{ID: id}}, "revoke")
	a.showDevices(c, http.StatusOK, []crud.Notification{crud.Success(resources.TokenRevoked)})
}
