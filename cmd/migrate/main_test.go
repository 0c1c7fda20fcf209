package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)
}

func TestApply_RecordsInSameTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "001_init.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE t (id INT);"), 0o644))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE t`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("001_init.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, apply(context.Background(), db, path, "001_init.sql"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "002_bad.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABL oops;"), 0o644))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABL oops`).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	assert.Error(t, apply(context.Background(), db, path, "002_bad.sql"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
