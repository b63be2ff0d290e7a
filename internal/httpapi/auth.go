package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/guard"
	"github.com/mad-auth/console/internal/resources"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/session"
	"github.com/mad-auth/console/internal/view"
)

const (
	loginFailed      = "Login failed"
	initializeFailed = "Could not create the account"
)

func (a *API) authRoutes() {
	limited := func(h http.Handler) http.Handler {
		return RateLimit(h, a.opts.LoginRateBurst, a.opts.LoginRatePerSecond)
	}
	a.mux.Handle("GET "+guard.LoginRoute, a.guard.LoginLayout(http.HandlerFunc(a.loginPage)))
	a.mux.Handle("POST "+guard.LoginRoute, limited(a.guard.LoginLayout(http.HandlerFunc(a.login))))
	a.mux.Handle("GET "+guard.InitializeRoute, a.guard.InitializeLayout(http.HandlerFunc(a.initializePage)))
	a.mux.Handle("POST "+guard.InitializeRoute, limited(a.guard.InitializeLayout(http.HandlerFunc(a.initialize))))
	a.mux.HandleFunc("POST /auth/logout", a.logout)
}

func (a *API) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, view.AuthLayout("Login", nil, view.Login(view.FormProps{})))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	values := map[string]any{}
	if err = parseForm(r); err == nil {
		values = form.Values(r.PostForm, resources.LoginFields)
		var body apiclient.LoginBody
		if err = schema.Decode(values, &body); err == nil {
			_, err = c.client.Login(r.Context(), body)
		}
	}
	if err != nil {
		// never echo the password
		delete(values, "password")
		var notes []crud.Notification
		if statusOf(err) != http.StatusUnprocessableEntity {
			notes = append(notes, crud.Failure(loginFailed))
		}
		a.render(w, r, statusOf(err), view.AuthLayout("Login", notes,
			view.Login(view.FormProps{Values: values, Errors: formErrors(err)})))
		return
	}
	a.signedIn(w, r, c.sess, "auth.login")
}

func (a *API) initializePage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, view.AuthLayout("Initialize", nil, view.Initialize(view.FormProps{})))
}

// initialize registers the first administrator and signs them in.
func (a *API) initialize(w http.ResponseWriter, r *http.Request) {
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	values := map[string]any{}
	if err = parseForm(r); err == nil {
		values = form.Values(r.PostForm, resources.RegisterFields)
		var f resources.RegisterForm
		if err = schema.Decode(values, &f); err == nil {
			_, err = c.client.RegisterFirstUser(r.Context(), f.Body())
		}
	}
	if err != nil {
		delete(values, "password")
		delete(values, "confirmPassword")
		var notes []crud.Notification
		if statusOf(err) != http.StatusUnprocessableEntity {
			notes = append(notes, crud.Failure(initializeFailed))
		}
		a.render(w, r, statusOf(err), view.AuthLayout("Initialize", notes,
			view.Initialize(view.FormProps{Values: values, Errors: formErrors(err)})))
		return
	}
	a.signedIn(w, r, c.sess, "auth.initialize")
}

func (a *API) signedIn(w http.ResponseWriter, r *http.Request, sess *session.Session, event string) {
	ctx := r.Context()
	if claims, err := session.Decode(sess.AccessToken()); err == nil {
		name := claims.Username
		if name == "" {
			name = claims.Subject
		}
		ctx = audit.WithActor(ctx, name)
	}
	if err := audit.LogEvent(ctx, event, nil); err != nil {
		a.log.Warn("audit event", zap.String("event", event), zap.Error(err))
	}
	http.Redirect(w, r, guard.HomeRoute, http.StatusSeeOther)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	c, err := a.begin(w, r)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	ctx := c.r.Context()
	// logout is not behind Middleware; name the actor when the session is live
	if claims, err := a.guard.Require(ctx); err == nil {
		ctx = audit.WithActor(ctx, claims.Username)
	}
	if err := audit.LogEvent(ctx, "auth.logout", nil); err != nil {
		a.log.Warn("audit event", zap.String("event", "auth.logout"), zap.Error(err))
	}
	c.client.Logout()
	http.Redirect(w, r, guard.LoginRoute, http.StatusSeeOther)
}
