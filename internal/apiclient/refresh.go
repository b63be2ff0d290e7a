package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/mad-auth/console/internal/obs"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/session"
)

// RefreshPath is the backend token rotation endpoint.
const RefreshPath = "/auth/refresh"

// Refresher rotates token pairs. Concurrent refreshes of the same refresh
// token share a single backend call.
type Refresher struct {
	endpoint string
	http     *http.Client
	group    singleflight.Group
}

// NewRefresher returns a Refresher posting to baseURL + RefreshPath.
func NewRefresher(baseURL string, h *http.Client) *Refresher {
	if h == nil {
		h = http.DefaultClient
	}
	return &Refresher{
		endpoint: strings.TrimRight(baseURL, "/") + RefreshPath,
		http:     h,
	}
}

// Refresh exchanges the pair for a fresh one. The caller persists the
// result.
func (r *Refresher) Refresh(ctx context.Context, access, refresh string) (session.Tokens, error) {
	if refresh == "" {
		return session.Tokens{}, ErrNoRefreshToken
	}
	// The shared call must outlive any single waiter.
	callCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(refresh, func() (any, error) {
		return r.do(callCtx, access, refresh)
	})
	select {
	case <-ctx.Done():
		return session.Tokens{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			obs.ObserveRefresh("error")
			return session.Tokens{}, res.Err
		}
		if res.Shared {
			obs.ObserveRefresh("shared")
		} else {
			obs.ObserveRefresh("ok")
		}
		return res.Val.(session.Tokens), nil
	}
}

func (r *Refresher) do(ctx context.Context, access, refresh string) (session.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, http.NoBody)
	if err != nil {
		return session.Tokens{}, fmt.Errorf("refresh: build request: %w", err)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	req.Header.Set("X-Refresh-Token", refresh)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return session.Tokens{}, fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.Tokens{}, fmt.Errorf("refresh: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return session.Tokens{}, responseError(RefreshPath, resp, body)
	}

	var out TokensResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&out); err != nil {
		return session.Tokens{}, fmt.Errorf("refresh: decode: %w", err)
	}
	if err := schema.Validate(&out); err != nil {
		return session.Tokens{}, err
	}
	return out.Tokens, nil
}
