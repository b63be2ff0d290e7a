package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/guard"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/session"
	"github.com/mad-auth/console/internal/view"
)

// navigation records where the client asked the browser to go.
type navigation struct {
	mu sync.Mutex
	to string
}

func (n *navigation) Navigate(route string) {
	n.mu.Lock()
	n.to = route
	n.mu.Unlock()
}

func (n *navigation) target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.to
}

// call is the per-request state: a session bound to the request cookies and
// a client acting for it.
type call struct {
	w      http.ResponseWriter
	r      *http.Request
	sess   *session.Session
	client *apiclient.Client
	nav    *navigation
	// canonical is the GET address of the rendered page after a POST.
	canonical string
}

func (a *API) begin(w http.ResponseWriter, r *http.Request) (*call, error) {
	sess, r := a.guard.Session(w, r)
	nav := &navigation{}
	c, err := apiclient.New(a.opts.BackendURL, sess,
		apiclient.WithHTTPClient(a.opts.HTTPClient),
		apiclient.WithRefresher(a.refresher),
		apiclient.WithNavigator(nav),
		apiclient.WithLogger(a.log.With(zap.String("request_id", requestIDFrom(r.Context())))))
	if err != nil {
		return nil, err
	}
	return &call{w: w, r: r, sess: sess, client: c, nav: nav}, nil
}

// redirected sends the browser to the login page after the backend
// rejected the session. It reports whether it did.
func (c *call) redirected(err error) bool {
	if !errors.Is(err, apiclient.ErrRedirected) && c.nav.target() == "" {
		return false
	}
	to := c.nav.target()
	if to == "" {
		to = apiclient.LoginRoute
	}
	c.sess.RemoveTokens()
	http.Redirect(c.w, c.r, to, http.StatusSeeOther)
	return true
}

func (a *API) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// page renders body inside the authenticated layout.
func (a *API) page(c *call, status int, title, active string, notes []crud.Notification, body templ.Component) {
	claims, _ := guard.ClaimsFromContext(c.r.Context())
	a.render(c.w, c.r, status, view.Layout(view.Page{
		Title:         title,
		Active:        active,
		User:          claims,
		Notifications: notes,
		Body:          body,
		URL:           c.canonical,
	}))
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error) {
	a.log.Error("request failed",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// statusOf maps an operation error onto the page status.
func statusOf(err error) int {
	var ve *schema.ValidationError
	var apiErr *apiclient.Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, crud.ErrRowNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}

// formErrors turns err into per-field messages; anything but a validation
// error becomes the form-level message.
func formErrors(err error) map[string]string {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields()
	}
	return map[string]string{"": apiclient.Message(err)}
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil && id > 0
}

func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return &schema.ValidationError{Issues: []schema.FieldError{{Message: "Malformed form submission"}}}
	}
	return nil
}
