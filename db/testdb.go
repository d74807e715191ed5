package db

import (
	"database/sql"
	"testing"
)

// NewTestDB opens a fresh in-memory database with the schema applied and
// closes it when the test finishes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := EnsureSchema(conn); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return conn
}
