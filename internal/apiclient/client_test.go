package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/session"
)

func newTestClient(t *testing.T, srv *httptest.Server, tokens session.Tokens, opts ...Option) *Client {
	t.Helper()
	sess := session.New(session.NewMemoryStorage())
	if tokens.AccessToken != "" {
		sess.SetTokens(tokens)
	}
	c, err := New(srv.URL, sess, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rolePage(roles ...Role) Page[Role] {
	return Page[Role]{
		Meta: Meta{ItemsPerPage: 10, TotalItems: len(roles), CurrentPage: 1, TotalPages: 1},
		Data: roles,
	}
}

func TestErrorBodyNormalization(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string error", http.StatusBadRequest, `{"statusCode":400,"error":"X"}`, "X"},
		{"message list", http.StatusBadRequest, `{"error":{"statusCode":400,"message":["A","B"],"error":"Bad Request"}}`, "A, B"},
		{"message string", http.StatusConflict, `{"error":{"statusCode":409,"message":"Role already exists","error":"Conflict"}}`, "Role already exists"},
		{"nested error", http.StatusForbidden, `{"error":{"statusCode":403,"error":"Forbidden"}}`, "Forbidden"},
		{"not json", http.StatusBadGateway, `<html>upstream</html>`, "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, session.Tokens{})
			_, err := c.ListRoles(context.Background(), Query{Page: 1, Limit: 10})

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.want, err.Error())
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.want, Message(err))
		})
	}
}

func TestMessageFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, UnknownErrorMessage, Message(errors.New("dial tcp: refused")))
}

func TestUnauthorizedNavigatesToLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
	}))
	defer srv.Close()

	var routes []string
	nav := NavigatorFunc(func(route string) { routes = append(routes, route) })
	c := newTestClient(t, srv, session.Tokens{}, WithNavigator(nav))

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrRedirected)
	assert.Equal(t, []string{"/auth/login"}, routes)
}

func TestUnauthorizedLoginIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
	}))
	defer srv.Close()

	navigated := false
	c := newTestClient(t, srv, session.Tokens{}, WithNavigator(NavigatorFunc(func(string) { navigated = true })))

	_, err := c.Login(context.Background(), LoginBody{Username: "groot", Password: "Iam-Gr00t!"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.False(t, navigated)
}

func TestRefreshRunsBeforeEachCall(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RefreshPath:
			refreshes.Add(1)
			assert.Equal(t, "Bearer old-access", r.Header.Get("Authorization"))
			assert.Equal(t, "old-refresh", r.Header.Get("X-Refresh-Token"))
			writeJSON(w, http.StatusOK, TokensResponse{Tokens: session.Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"}})
		case "/roles":
			assert.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			writeJSON(w, http.StatusOK, rolePage(Role{ID: 1, Name: "admin"}))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{AccessToken: "old-access", RefreshToken: "old-refresh"})
	page, err := c.ListRoles(context.Background(), Query{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, session.Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"}, c.Session().Tokens())
}

func TestRefreshFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
			return
		}
		assert.Equal(t, "Bearer cached", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, rolePage())
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{AccessToken: "cached", RefreshToken: "r"})
	_, err := c.ListRoles(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "cached", c.Session().AccessToken())
}

func TestConcurrentRefreshesShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(w, http.StatusOK, TokensResponse{Tokens: session.Tokens{AccessToken: "a2", RefreshToken: "r2"}})
	}))
	defer srv.Close()

	ref := NewRefresher(srv.URL, srv.Client())
	const callers = 8
	var wg sync.WaitGroup
	results := make([]session.Tokens, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ref.Refresh(context.Background(), "a1", "r1")
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "a2", results[i].AccessToken)
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	ref := NewRefresher("http://127.0.0.1:1", nil)
	_, err := ref.Refresh(context.Background(), "a", "")
	require.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRevokeTokenSkipsRefresh(t *testing.T) {
	var refreshes atomic.Int32
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			refreshes.Add(1)
			writeJSON(w, http.StatusOK, TokensResponse{Tokens: session.Tokens{AccessToken: "x", RefreshToken: "y"}})
			return
		}
		deleted = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{AccessToken: "a", RefreshToken: "r"})
	require.NoError(t, c.RevokeToken(context.Background(), 7))
	assert.Equal(t, "DELETE /auth/tokens/7", deleted)
	assert.Zero(t, refreshes.Load())
}

func TestInvalidBodyNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.CreateRole(context.Background(), CreateRoleBody{Name: "Ops Team", DisplayName: "Ops"})

	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, schema.SlugRuleMessage, ve.Field("name"))
	assert.Zero(t, hits.Load())
}

func TestPageInvariantRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Page[Role]{
			Meta: Meta{ItemsPerPage: 1, TotalItems: 2, CurrentPage: 3, TotalPages: 2},
			Data: []Role{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.ListRoles(context.Background(), Query{})

	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Field("data"))
	assert.NotEmpty(t, ve.Field("meta.currentPage"))
}

func TestEmptyPageNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"meta":{"itemsPerPage":10,"totalItems":0,"currentPage":1,"totalPages":0},"links":{},"data":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	page, err := c.ListProjects(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Meta.TotalPages)
	assert.Empty(t, page.Data)
}

func TestQueryValues(t *testing.T) {
	q := Query{
		Page:    2,
		Limit:   25,
		Filters: []Filter{{ID: "name", Value: "op"}, {ID: "email", Value: ""}},
		Sorting: []Sort{{ID: "name", Desc: true}, {ID: "id"}},
	}
	v := q.Values()
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "25", v.Get("limit"))
	assert.Equal(t, "$ilike:op", v.Get("filter.name"))
	assert.NotContains(t, v, "filter.email")
	assert.Equal(t, []string{"name:DESC", "id:ASC"}, v["sortBy"])

	assert.Equal(t, "1", Query{}.Values().Get("page"))
}

func TestUploadFileIsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/upload", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "avatar.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(b))
		writeJSON(w, http.StatusCreated, map[string]any{"file": map[string]any{"path": "/uploads/abc.png"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	out, err := c.UploadFile(context.Background(), "avatar.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/abc.png", out.File.Path)
}

func TestLoginStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body LoginBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "groot", body.Username)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, TokensResponse{Tokens: session.Tokens{AccessToken: "a", RefreshToken: "r"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.Login(context.Background(), LoginBody{Username: "groot", Password: "Iam-Gr00t!"})
	require.NoError(t, err)
	assert.Equal(t, session.Tokens{AccessToken: "a", RefreshToken: "r"}, c.Session().Tokens())

	c.Logout()
	assert.Equal(t, session.Tokens{}, c.Session().Tokens())
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api", nil)
	require.Error(t, err)
}

func TestSetUserRolesSendsEmptyList(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/users/5", r.URL.Path)
		writeJSON(w, http.StatusOK, User{ID: 5, Username: "groot"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.SetUserRoles(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":[]}`, body)
}

func TestSetUserMetadataSendsEmptyObject(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		assert.Equal(t, "/users/5", r.URL.Path)
		writeJSON(w, http.StatusOK, User{ID: 5, Username: "groot"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.SetUserMetadata(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{}}`, body)
}

func TestUpdateBodiesSendClearedFields(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		writeJSON(w, http.StatusOK, Role{ID: 5, Name: "ops"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, session.Tokens{})
	_, err := c.UpdateRole(context.Background(), 5, UpdateRoleBody{Name: "ops", DisplayName: "Ops", Color: "#000000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ops","displayName":"Ops","description":"","color":"#000000"}`, body)

	_, err = c.UpdateServiceAccount(context.Background(), 5, UpdateServiceAccountBody{Name: "ci"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ci","description":""}`, body)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// maintenance answers every request with a bare 503 carrying a custom
// reason phrase.
func maintenance(r *http.Request) (*http.Response, error) {
	return &http.Response{
		Status:     "503 Backend Maintenance",
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    r,
	}, nil
}

func TestStatusLineIsTheFallbackMessage(t *testing.T) {
	h := &http.Client{Transport: roundTripFunc(maintenance)}

	sess := session.New(session.NewMemoryStorage())
	c, err := New("http://backend.test", sess, WithHTTPClient(h))
	require.NoError(t, err)
	err = c.Do(context.Background(), Request{Path: "/roles"}, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Backend Maintenance", apiErr.Message)

	_, err = NewRefresher("http://backend.test", h).Refresh(context.Background(), "a", "r")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, RefreshPath, apiErr.Path)
	assert.Equal(t, "Backend Maintenance", apiErr.Message)
}
