package db

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh SQLite database with the schema applied. The
// database lives in a file under t.TempDir() so that concurrent tests get
// real connection pooling and locking.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(string(DialectSQLite), filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(database); err != nil {
		database.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { database.Close() })

	return database
}
