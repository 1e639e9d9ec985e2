package db

import (
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// ErrDatabaseClosed is returned for operations on a closed database. It shows
// up during shutdown when the connection closes before the watcher and sync
// goroutines drain.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether an error means the connection is gone. It
// matches both wrapped ErrDatabaseClosed and the raw driver message, since
// the sql package returns its own error values we cannot wrap at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
