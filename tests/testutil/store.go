// Package testutil holds shared helpers for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/avion00/buy2rent-vendormail/internal/store"
)

// NewTestStore creates a SQLiteStore backed by a throwaway database file
// with all migrations applied. The store is closed when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
