package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mad-auth/console/internal/obs"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Record(_ context.Context, e Event) error {
	s.events = append(s.events, e)
	return s.err
}

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer obs.SetLogger(zap.New(core))()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithActor(ctx, "groot")

	require.NoError(t, LogEvent(ctx, "roles.create", map[string]any{"id": 7}))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "audit", fields["type"])
	assert.Equal(t, "roles.create", fields["event"])
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "groot", fields["actor"])
	assert.Equal(t, map[string]any{"id": 7}, fields["fields"])
}

func TestLogEventRequiresName(t *testing.T) {
	require.Error(t, LogEvent(context.Background(), "  ", nil))
}

func TestLogEventSink(t *testing.T) {
	s := &recordingSink{}
	defer SetSink(s)()

	ctx := WithActor(context.Background(), "groot")
	require.NoError(t, LogEvent(ctx, "users.delete", map[string]any{"id": 3}))
	require.Len(t, s.events, 1)
	assert.Equal(t, "users.delete", s.events[0].Name)
	assert.Equal(t, "groot", s.events[0].Actor)
	assert.False(t, s.events[0].Time.IsZero())

	s.err = errors.New("db down")
	err := LogEvent(ctx, "users.delete", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestEmptyContextValues(t *testing.T) {
	ctx := WithRequestID(WithActor(context.Background(), " "), "")
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Actor(ctx))
}
