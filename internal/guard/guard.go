// Package guard decides whether a request may see an authenticated page.
// The decision is taken from the access-token claims; an expired token gets
// exactly one refresh attempt.
package guard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/obs"
	"github.com/mad-auth/console/internal/session"
)

const (
	LoginRoute      = apiclient.LoginRoute
	InitializeRoute = "/auth/initialize"
	HomeRoute       = "/"
)

var ErrUnauthenticated = errors.New("guard: unauthenticated")

// InitChecker reports whether the backend already has its first user.
type InitChecker interface {
	Initialized(ctx context.Context) (bool, error)
}

type InitCheckerFunc func(ctx context.Context) (bool, error)

func (f InitCheckerFunc) Initialized(ctx context.Context) (bool, error) { return f(ctx) }

// TokenRefresher rotates an expired pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, access, refresh string) (session.Tokens, error)
}

type Guard struct {
	refresher TokenRefresher
	init      InitChecker
	secure    bool
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Guard)

func WithInitChecker(c InitChecker) Option { return func(g *Guard) { g.init = c } }

// WithSecureCookies marks the cookies it creates Secure.
func WithSecureCookies(secure bool) Option { return func(g *Guard) { g.secure = secure } }

func WithLogger(l *zap.Logger) Option { return func(g *Guard) { g.log = l } }

func WithClock(now func() time.Time) Option { return func(g *Guard) { g.now = now } }

func New(refresher TokenRefresher, opts ...Option) *Guard {
	g := &Guard{refresher: refresher, log: obs.Logger(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*session.Claims)
	return c, ok && c != nil
}

// Session returns the request's session, binding a cookie-backed one when
// no earlier middleware did.
func (g *Guard) Session(w http.ResponseWriter, r *http.Request) (*session.Session, *http.Request) {
	if s, ok := session.FromContext(r.Context()); ok {
		return s, r
	}
	s := session.New(session.NewCookieStorage(w, r, g.secure))
	return s, r.WithContext(session.ContextWithSession(r.Context(), s))
}

// Check evaluates the session. An expired access token is refreshed once;
// on success the new pair is written through to the storage.
func (g *Guard) Check(ctx context.Context, s *session.Session) (*session.Claims, error) {
	tokens := s.Tokens()
	claims, err := session.Decode(tokens.AccessToken)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			g.log.Info("undecodable access token", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}
	if !claims.IsExpired(g.now()) {
		return claims, nil
	}
	if tokens.RefreshToken == "" || g.refresher == nil {
		return nil, ErrUnauthenticated
	}
	fresh, err := g.refresher.Refresh(ctx, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		g.log.Info("session refresh failed", zap.Error(err))
		return nil, ErrUnauthenticated
	}
	s.SetTokens(fresh)
	claims, err = session.Decode(fresh.AccessToken)
	if err != nil || claims.IsExpired(g.now()) {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Require is the component-level check for handlers that render without
// Middleware in front of them.
func (g *Guard) Require(ctx context.Context) (*session.Claims, error) {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c, nil
	}
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return g.Check(ctx, s)
}

// Middleware lets authenticated requests through and sends everything else
// to the login page.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, r := g.Session(w, r)
		claims, err := g.Check(r.Context(), s)
		if err != nil {
			s.RemoveTokens()
			http.Redirect(w, r, LoginRoute, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = audit.WithActor(ctx, actor(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginLayout guards the login page the other way round: an uninitialized
// backend goes to the first-user form, a live session goes home.
func (g *Guard) LoginLayout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, r := g.Session(w, r)
		if g.init != nil {
			ok, err := g.init.Initialized(r.Context())
			if err != nil {
				g.log.Warn("initialization check failed", zap.Error(err))
			} else if !ok {
				http.Redirect(w, r, InitializeRoute, http.StatusSeeOther)
				return
			}
		}
		if _, err := g.Check(r.Context(), s); err == nil {
			http.Redirect(w, r, HomeRoute, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InitializeLayout only serves the first-user form while the backend has
// no user.
func (g *Guard) InitializeLayout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, r = g.Session(w, r)
		if g.init != nil {
			ok, err := g.init.Initialized(r.Context())
			if err != nil {
				g.log.Warn("initialization check failed", zap.Error(err))
			} else if ok {
				http.Redirect(w, r, LoginRoute, http.StatusSeeOther)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func actor(c *session.Claims) string {
	switch {
	case c.Username != "":
		return c.Username
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}
