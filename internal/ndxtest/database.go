// Package ndxtest provides shared fixtures for NDX package tests.
package ndxtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ndx-io/NDX/db"
)

// OpenTestDB opens a fully migrated session database under the test's
// temp directory. Cleanup is registered via t.Cleanup.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "ndx.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
