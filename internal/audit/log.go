// Package audit records console mutations: one structured log line per
// event, plus an optional durable sink.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorKey     ctxKey = "audit_actor"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor attaches the operator (token subject) to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// RequestID returns the request id attached by WithRequestID.
func RequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// Actor returns the operator attached by WithActor.
func Actor(ctx context.Context) string { return stringValue(ctx, actorKey) }

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Event is one audited action.
type Event struct {
	Time      time.Time
	Name      string
	RequestID string
	Actor     string
	Fields    map[string]any
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

var (
	sinkMu sync.RWMutex
	sink   Sink
)

// SetSink installs the durable sink and returns a function restoring the
// previous one. nil disables persistence.
func SetSink(s Sink) (restore func()) {
	sinkMu.Lock()
	prev := sink
	sink = s
	sinkMu.Unlock()
	return func() {
		sinkMu.Lock()
		sink = prev
		sinkMu.Unlock()
	}
}

func currentSink() Sink {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// LogEvent writes an audit log entry enriched with request and operator
// context, then hands it to the sink when one is installed.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	e := Event{
		Time:      time.Now().UTC(),
		Name:      event,
		RequestID: RequestID(ctx),
		Actor:     Actor(ctx),
		Fields:    make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		e.Fields[k] = v
	}

	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", e.Name),
		zap.Any("fields", e.Fields),
	}
	if e.RequestID != "" {
		zf = append(zf, zap.String("request_id", e.RequestID))
	}
	if e.Actor != "" {
		zf = append(zf, zap.String("actor", e.Actor))
	}
	obs.Logger().Info("audit", zf...)

	if s := currentSink(); s != nil {
		if err := s.Record(ctx, e); err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
	}
	return nil
}
