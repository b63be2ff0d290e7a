package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/0001_a.up.sql":   {Data: []byte("create table a (x text default 'a;b');\ncreate index a_x on a (x);")},
		"m/0001_a.down.sql": {Data: []byte("drop table a;")},
		"m/0002_b.up.sql":   {Data: []byte("create table b (y int);")},
		"m/notes.txt":       {Data: []byte("ignored")},
	}
}

func TestUpAppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists console_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from console_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("create table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into console_schema_migrations").
		WithArgs("0002_b.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	applied, err := NewManager(db, testFS(), "m").Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRollsBackLast(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists audit_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from audit_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("delete from audit_migrations").WithArgs("0001_a.up.sql").WillReturnResult(sqlmock.NewResult(0, 1))

	name, err := NewManager(db, testFS(), "m", WithMigrationsTable("audit_migrations")).Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0001_a.up.sql", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithoutHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table if not exists").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = NewManager(db, testFS(), "m").Down(context.Background())
	require.ErrorIs(t, err, ErrNothingApplied)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("create table a (x text default 'a;b');\ncreate index a_x on a (x);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "'a;b'")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := NewEmbedded(nil).collect(".up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_console_audit.up.sql", "0002_console_audit_event_idx.up.sql"}, files)
}

func TestAvailableListsUpMigrations(t *testing.T) {
	names, err := NewManager(nil, testFS(), "m").Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, names)

	names, err = NewManager(nil, testFS(), "missing").Available()
	require.NoError(t, err)
	assert.Empty(t, names)
}
