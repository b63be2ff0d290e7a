// Package sessiontest mints access tokens for tests.
package sessiontest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mad-auth/console/internal/session"
)

var signingKey = []byte("sessiontest")

// AccessToken returns an HS256 JWT for subject expiring at exp.
func AccessToken(subject string, exp time.Time) string {
	now := time.Now().UTC()
	claims := session.Claims{
		Username: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// Pair returns a token pair whose access token expires at exp.
func Pair(subject string, exp time.Time) session.Tokens {
	return session.Tokens{
		AccessToken:  AccessToken(subject, exp),
		RefreshToken: "refresh-" + uuid.NewString(),
	}
}
