package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/session"
	"github.com/mad-auth/console/internal/session/sessiontest"
)

func TestDecodeExpiredToken(t *testing.T) {
	token := sessiontest.AccessToken("groot", time.Now().Add(-time.Minute))

	claims, err := session.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "groot", claims.Subject)
	assert.True(t, claims.IsExpired(time.Now()))
}

func TestDecodeLiveToken(t *testing.T) {
	token := sessiontest.AccessToken("groot", time.Now().Add(time.Hour))

	claims, err := session.Decode(token)
	require.NoError(t, err)
	assert.False(t, claims.IsExpired(time.Now()))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := session.Decode("not-a-jwt")
	require.Error(t, err)

	_, err = session.Decode("  ")
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestClaimsWithoutExpiryNeverExpire(t *testing.T) {
	var c session.Claims
	assert.False(t, c.IsExpired(time.Now()))
}
