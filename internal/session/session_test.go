package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLoadsFromCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "access-1"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-1"})
	rr := httptest.NewRecorder()

	s := New(NewCookieStorage(rr, req, false))
	assert.Equal(t, Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, s.Tokens())
	assert.Empty(t, rr.Result().Cookies(), "reading must not write cookies")
}

func TestSetTokensWritesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "old"})
	rr := httptest.NewRecorder()
	store := NewCookieStorage(rr, req, true)

	s := New(store)
	s.SetTokens(Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"})

	assert.Equal(t, "new-access", s.AccessToken())
	got, ok := store.Get(AccessCookie)
	require.True(t, ok)
	assert.Equal(t, "new-access", got)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, int(CookieMaxAge/time.Second), c.MaxAge)
		assert.True(t, c.Secure)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	}
}

func TestRemoveTokensClearsCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "a"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "r"})
	rr := httptest.NewRecorder()
	store := NewCookieStorage(rr, req, false)

	s := New(store)
	s.RemoveTokens()

	assert.Equal(t, Tokens{}, s.Tokens())
	_, ok := store.Get(AccessCookie)
	assert.False(t, ok)
	for _, c := range rr.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := New(NewMemoryStorage())
	assert.Empty(t, s.AccessToken())

	s.SetTokens(Tokens{AccessToken: "a", RefreshToken: "r"})
	assert.Equal(t, "r", s.RefreshToken())
}

func TestContextRoundTrip(t *testing.T) {
	s := New(NewMemoryStorage())
	ctx := ContextWithSession(context.Background(), s)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
