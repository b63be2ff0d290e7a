// Package apiclient is the schema-typed client of the identity backend.
// Every call runs through Client.Do: proactive token refresh, bearer and
// content-type injection, error normalization and response validation.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/obs"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/session"
)

// LoginPath is the backend login endpoint; a 401 there is a bad credential,
// not an expired session.
const LoginPath = "/auth/login"

// LoginRoute is where a 401 sends the browser.
const LoginRoute = "/auth/login"

// Navigator moves the browser to another console route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Upload is a single multipart file part.
type Upload struct {
	Field    string
	FileName string
	Content  io.Reader
}

// Request describes one backend call. The zero values of NoRefresh and
// NoContentType keep refresh and JSON content type enabled.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded after validation.
	Body   any
	Upload *Upload

	NoRefresh     bool
	NoContentType bool
}

// Client is bound to one browser session.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	sess      *session.Session
	nav       Navigator
	refresher *Refresher
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.nav = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRefresher shares one Refresher (and its single-flight group) between
// clients.
func WithRefresher(r *Refresher) Option {
	return func(c *Client) {
		if r != nil {
			c.refresher = r
		}
	}
}

// New returns a client for baseURL acting on behalf of sess.
func New(baseURL string, sess *session.Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must be absolute", baseURL)
	}
	if sess == nil {
		sess = session.New(session.NewMemoryStorage())
	}
	c := &Client{
		baseURL: u,
		http:    http.DefaultClient,
		sess:    sess,
		logger:  obs.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refresher == nil {
		c.refresher = NewRefresher(baseURL, c.http)
	}
	return c, nil
}

// Session returns the session the client acts for.
func (c *Client) Session() *session.Session { return c.sess }

// Do performs req and decodes a 2xx JSON body into out (when non-nil),
// then validates it.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Body != nil {
		if err := schema.Validate(req.Body); err != nil {
			return err
		}
	}
	if !req.NoRefresh {
		c.refreshSession(ctx)
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		obs.ObserveBackendCall(httpReq.Method, 0, time.Since(start))
		c.logger.Error("backend call failed",
			zap.String("method", httpReq.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return fmt.Errorf("apiclient: %s %s: %w", httpReq.Method, req.Path, err)
	}
	defer resp.Body.Close()
	obs.ObserveBackendCall(httpReq.Method, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read %s: %w", req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(req.Path, resp, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &schema.ValidationError{Issues: []schema.FieldError{{
			Message: fmt.Sprintf("decode %s response: %v", req.Path, err),
		}}}
	}
	if n, ok := out.(normalizer); ok {
		n.Normalize()
	}
	return schema.Validate(out)
}

func (c *Client) fail(path string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusUnauthorized && path != LoginPath {
		c.logger.Info("backend rejected session, redirecting to login", zap.String("path", path))
		if c.nav != nil {
			c.nav.Navigate(LoginRoute)
		}
		return ErrRedirected
	}
	apiErr := responseError(path, resp, body)
	c.logger.Warn("backend error",
		zap.Int("status", apiErr.Status),
		zap.String("path", path),
		zap.String("message", apiErr.Message))
	return apiErr
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType = "application/json"
	)
	switch {
	case req.Upload != nil:
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		field := req.Upload.Field
		if field == "" {
			field = "file"
		}
		part, err := mw.CreateFormFile(field, req.Upload.FileName)
		if err != nil {
			return nil, fmt.Errorf("apiclient: multipart: %w", err)
		}
		if _, err := io.Copy(part, req.Upload.Content); err != nil {
			return nil, fmt.Errorf("apiclient: multipart: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("apiclient: multipart: %w", err)
		}
		body = buf
		contentType = mw.FormDataContentType()
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s body: %w", req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Authorization") == "" {
		if access := c.sess.AccessToken(); access != "" {
			httpReq.Header.Set("Authorization", "Bearer "+access)
		}
	}
	if req.Upload != nil {
		// the boundary is part of the multipart content type
		httpReq.Header.Set("Content-Type", contentType)
	} else if !req.NoContentType && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// refreshSession rotates the token pair before a call. Failures are logged
// and the call proceeds with the cached token.
func (c *Client) refreshSession(ctx context.Context) {
	t := c.sess.Tokens()
	if t.AccessToken == "" || t.RefreshToken == "" {
		return
	}
	fresh, err := c.refresher.Refresh(ctx, t.AccessToken, t.RefreshToken)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("token refresh failed", zap.Error(err))
		}
		return
	}
	c.sess.SetTokens(fresh)
}
