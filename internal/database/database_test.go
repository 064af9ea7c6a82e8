package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_NilLogger(t *testing.T) {
	db, err := NewDB(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ready(context.Background()))
}

func TestCreateTablesIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.createTables())
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("FindMember", func(t *testing.T) {
		m, err := db.FindMember(ctx, "M-1")
		assert.Error(t, err)
		assert.Nil(t, m)
	})

	t.Run("ReferenceExists", func(t *testing.T) {
		_, err := db.ReferenceExists(ctx, "AV/000001")
		assert.Error(t, err)
	})

	t.Run("GetStates", func(t *testing.T) {
		_, err := db.GetStates(ctx)
		assert.Error(t, err)
	})

	t.Run("Ready", func(t *testing.T) {
		assert.Error(t, db.Ready(ctx))
	})
}
