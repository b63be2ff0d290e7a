package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/guard"
	"github.com/mad-auth/console/internal/obs"
)

// Pinger is satisfied by the audit store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyCheck checks the audit database, when configured, and the identity
// backend.
type ReadyCheck struct {
	DB      Pinger
	Backend guard.InitChecker
}

func (rp ReadyCheck) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if rp.DB != nil {
		if err := rp.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if rp.Backend != nil {
		if _, err := rp.Backend.Initialized(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Options configure the console server.
type Options struct {
	BackendURL    string
	HTTPClient    *http.Client
	SecureCookies bool

	DefaultPageSize int
	SearchDebounce  time.Duration
	MaxUploadBytes  int64

	LoginRatePerSecond int
	LoginRateBurst     int

	Ready   ReadyCheck
	Version string
	Logger  *zap.Logger
}

// API is the console HTTP layer.
type API struct {
	mux       *http.ServeMux
	opts      Options
	log       *zap.Logger
	refresher *apiclient.Refresher
	guard     *guard.Guard
	// anon answers readiness checks and inspects resource configs at
	// mount time; it never holds a session.
	anon *apiclient.Client
}

func New(opts Options) (*API, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = obs.Logger()
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.LoginRatePerSecond <= 0 {
		opts.LoginRatePerSecond = 1
	}
	if opts.LoginRateBurst <= 0 {
		opts.LoginRateBurst = 5
	}
	// validates the base URL once at startup
	anon, err := apiclient.New(opts.BackendURL, nil, apiclient.WithHTTPClient(opts.HTTPClient), apiclient.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	if opts.Ready.Backend == nil {
		opts.Ready.Backend = anon
	}

	a := &API{
		mux:       http.NewServeMux(),
		opts:      opts,
		log:       opts.Logger,
		refresher: apiclient.NewRefresher(opts.BackendURL, opts.HTTPClient),
		anon:      anon,
	}
	a.guard = guard.New(a.refresher,
		guard.WithInitChecker(guard.InitCheckerFunc(a.initialized)),
		guard.WithSecureCookies(opts.SecureCookies),
		guard.WithLogger(opts.Logger))
	a.routes()
	return a, nil
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.authRoutes()

	a.mountTables()
	a.mountProfile()
	a.mountUsers()

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

// Handler wraps the mux with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBody())
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) maxBody() int64 {
	// room for the multipart envelope around an upload
	return a.maxUpload() + 1<<20
}

func (a *API) maxUpload() int64 {
	if a.opts.MaxUploadBytes > 0 {
		return a.opts.MaxUploadBytes
	}
	return 5 << 20
}

// initialized asks the backend with a throwaway client: the check runs
// before any session exists.
func (a *API) initialized(ctx context.Context) (bool, error) {
	c, err := apiclient.New(a.opts.BackendURL, nil,
		apiclient.WithHTTPClient(a.opts.HTTPClient),
		apiclient.WithRefresher(a.refresher),
		apiclient.WithLogger(a.log))
	if err != nil {
		return false, err
	}
	return c.Initialized(ctx)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mad-console",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Ready.Check(r.Context()); err != nil {
		msg := err.Error()
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  msg,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
