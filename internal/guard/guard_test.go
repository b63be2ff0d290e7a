package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/session"
	"github.com/mad-auth/console/internal/session/sessiontest"
)

type fakeRefresher struct {
	calls  atomic.Int32
	tokens session.Tokens
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, _, _ string) (session.Tokens, error) {
	f.calls.Add(1)
	return f.tokens, f.err
}

func requestWith(tokens session.Tokens) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/roles", nil)
	if tokens.AccessToken != "" {
		r.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: tokens.AccessToken})
	}
	if tokens.RefreshToken != "" {
		r.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: tokens.RefreshToken})
	}
	return r
}

func okHandler(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestMiddlewareRedirectsWithoutSession(t *testing.T) {
	g := New(&fakeRefresher{})
	var reached bool
	rec := httptest.NewRecorder()
	g.Middleware(okHandler(&reached)).ServeHTTP(rec, requestWith(session.Tokens{}))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginRoute, rec.Header().Get("Location"))
}

func TestMiddlewarePassesValidSession(t *testing.T) {
	ref := &fakeRefresher{}
	g := New(ref)
	tokens := sessiontest.Pair("groot", time.Now().Add(time.Hour))

	var (
		gotActor string
		claims   *session.Claims
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = audit.Actor(r.Context())
		claims, _ = ClaimsFromContext(r.Context())
	})
	rec := httptest.NewRecorder()
	g.Middleware(h).ServeHTTP(rec, requestWith(tokens))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "groot", gotActor)
	require.NotNil(t, claims)
	assert.Equal(t, "groot", claims.Subject)
	assert.Zero(t, ref.calls.Load())
}

func TestExpiredTokenTriggersOneRefresh(t *testing.T) {
	fresh := sessiontest.Pair("groot", time.Now().Add(time.Hour))
	ref := &fakeRefresher{tokens: fresh}
	g := New(ref)

	var reached bool
	rec := httptest.NewRecorder()
	g.Middleware(okHandler(&reached)).ServeHTTP(rec, requestWith(sessiontest.Pair("groot", time.Now().Add(-time.Minute))))

	assert.True(t, reached)
	assert.EqualValues(t, 1, ref.calls.Load())
	v, ok := cookieValue(rec, session.AccessCookie)
	require.True(t, ok)
	assert.Equal(t, fresh.AccessToken, v)
	v, ok = cookieValue(rec, session.RefreshCookie)
	require.True(t, ok)
	assert.Equal(t, fresh.RefreshToken, v)
}

func TestFailedRefreshRedirects(t *testing.T) {
	ref := &fakeRefresher{err: errors.New("refresh token revoked")}
	g := New(ref)

	var reached bool
	rec := httptest.NewRecorder()
	g.Middleware(okHandler(&reached)).ServeHTTP(rec, requestWith(sessiontest.Pair("groot", time.Now().Add(-time.Minute))))

	assert.False(t, reached)
	assert.EqualValues(t, 1, ref.calls.Load())
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginRoute, rec.Header().Get("Location"))
}

func TestExpiredWithoutRefreshTokenSkipsRefresh(t *testing.T) {
	ref := &fakeRefresher{}
	g := New(ref)
	tokens := session.Tokens{AccessToken: sessiontest.AccessToken("groot", time.Now().Add(-time.Minute))}

	var reached bool
	rec := httptest.NewRecorder()
	g.Middleware(okHandler(&reached)).ServeHTTP(rec, requestWith(tokens))

	assert.False(t, reached)
	assert.Zero(t, ref.calls.Load())
}

func TestRequire(t *testing.T) {
	g := New(&fakeRefresher{})

	_, err := g.Require(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	s := session.New(session.NewMemoryStorage())
	s.SetTokens(sessiontest.Pair("groot", time.Now().Add(time.Hour)))
	claims, err := g.Require(session.ContextWithSession(context.Background(), s))
	require.NoError(t, err)
	assert.Equal(t, "groot", claims.Username)
}

func TestLoginLayout(t *testing.T) {
	cases := []struct {
		name        string
		initialized bool
		tokens      session.Tokens
		location    string
	}{
		{"not initialized", false, session.Tokens{}, InitializeRoute},
		{"authenticated", true, sessiontest.Pair("groot", time.Now().Add(time.Hour)), HomeRoute},
		{"anonymous", true, session.Tokens{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(&fakeRefresher{}, WithInitChecker(InitCheckerFunc(func(context.Context) (bool, error) {
				return tc.initialized, nil
			})))
			var reached bool
			rec := httptest.NewRecorder()
			g.LoginLayout(okHandler(&reached)).ServeHTTP(rec, requestWith(tc.tokens))

			if tc.location == "" {
				assert.True(t, reached)
				return
			}
			assert.False(t, reached)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}

func TestInitializeLayout(t *testing.T) {
	initialized := true
	g := New(nil, WithInitChecker(InitCheckerFunc(func(context.Context) (bool, error) {
		return initialized, nil
	})))

	var reached bool
	rec := httptest.NewRecorder()
	g.InitializeLayout(okHandler(&reached)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, InitializeRoute, nil))
	assert.False(t, reached)
	assert.Equal(t, LoginRoute, rec.Header().Get("Location"))

	initialized = false
	rec = httptest.NewRecorder()
	g.InitializeLayout(okHandler(&reached)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, InitializeRoute, nil))
	assert.True(t, reached)
}

func TestInitCheckErrorFallsThrough(t *testing.T) {
	g := New(nil, WithInitChecker(InitCheckerFunc(func(context.Context) (bool, error) {
		return false, errors.New("backend down")
	})))
	var reached bool
	rec := httptest.NewRecorder()
	g.LoginLayout(okHandler(&reached)).ServeHTTP(rec, requestWith(session.Tokens{}))
	assert.True(t, reached)
}
