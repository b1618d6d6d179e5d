package store

import "testing"

// NewTestDB opens a migrated in-memory database that closes with the test.
func NewTestDB(tb testing.TB) *DB {
	tb.Helper()
	db, err := OpenMemory()
	if err != nil {
		tb.Fatalf("opening test store: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}
