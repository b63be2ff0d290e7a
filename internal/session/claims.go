package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when there is no access token to decode.
var ErrNoSession = errors.New("session: no access token")

// Claims is the access-token payload the console reads. The signature is
// never verified here; the backend remains the authority.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses the token payload without verifying its signature.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoSession
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return claims, nil
}

// IsExpired reports whether exp lies before now. A token without exp never
// expires from the console's point of view.
func (c *Claims) IsExpired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}

// HasRole reports whether the token lists role (case-insensitive).
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
