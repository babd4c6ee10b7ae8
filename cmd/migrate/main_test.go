package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "001_a.sql"), filepath.Join(dir, "002_b.sql")}, files)
}

func TestApplyRollsBackOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001_bad.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE broken ("), 0644))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	assert.ErrorIs(t, apply(db, path), assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "001_ok.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE ok (id int);"), 0644))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE ok").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, apply(db, path))
	assert.NoError(t, mock.ExpectationsWereMet())
}
