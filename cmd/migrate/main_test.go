package main

import (
	"bytes"
	"context"
	"flag"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/migrate"
)

func TestListNeedsNoDatabase(t *testing.T) {
	var out bytes.Buffer
	err := dispatch(context.Background(), migrate.NewEmbedded(nil), "list", &out)
	require.NoError(t, err)
	assert.Equal(t, "0001_console_audit.up.sql\n0002_console_audit_event_idx.up.sql\n", out.String())
}

func TestUpAppliesEmbeddedMigrationsToCustomTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists audit_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from audit_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_console_audit.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("create index if not exists console_audit_event_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into audit_migrations").
		WithArgs("0002_console_audit_event_idx.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	var out bytes.Buffer
	mgr := migrate.NewEmbedded(db, migrate.WithMigrationsTable("audit_migrations"))
	require.NoError(t, dispatch(context.Background(), mgr, "up", &out))
	assert.Equal(t, "applied 0002_console_audit_event_idx.up.sql\n", out.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithEmptyHistoryIsNotAFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists console_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), migrate.NewEmbedded(db), "down", &out))
	assert.Equal(t, "nothing to roll back\n", out.String())
}

func TestUnknownCommand(t *testing.T) {
	err := dispatch(context.Background(), migrate.NewEmbedded(nil), "seed", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "seed"`)
	assert.Contains(t, err.Error(), "up, down, status, list")
}

func TestUsageDescribesEmbeddedMigrations(t *testing.T) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.String("config", "", "path to the console YAML config")
	fs.Duration("timeout", 0, "deadline for the whole command")

	var out bytes.Buffer
	usage(&out, fs)
	text := out.String()
	assert.Contains(t, text, "Usage: migrate [flags] <command>")
	assert.Contains(t, text, "embedded in the binary")
	for _, name := range commandOrder {
		assert.Contains(t, text, "  "+name+" ")
	}
	assert.Contains(t, text, "-timeout")
	assert.NotContains(t, text, "-migrations")
}
