// Package pg persists console audit events in PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mad-auth/console/internal/audit"
)

type Store struct {
	db *sql.DB
}

var _ audit.Sink = (*Store)(nil)

// Open connects through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// the console writes a handful of rows per mutation
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the connection; used by /readyz.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Record inserts one audit event.
func (s *Store) Record(ctx context.Context, e audit.Event) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("encode audit fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into console_audit(occurred_at, event, request_id, actor, fields)
		values ($1, $2, $3, $4, $5)`,
		e.Time, e.Name, nullString(e.RequestID), nullString(e.Actor), fields)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		select occurred_at, event, coalesce(request_id, ''), coalesce(actor, ''), fields
		from console_audit
		order by occurred_at desc, id desc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e   audit.Event
			raw []byte
		)
		if err := rows.Scan(&e.Time, &e.Name, &e.RequestID, &e.Actor, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Fields); err != nil {
				return nil, fmt.Errorf("decode audit fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
