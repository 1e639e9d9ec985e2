package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// SQLiteBusyTimeoutMS is how long a connection waits on a locked database
// before giving up. Session databases are shared between the CLI and the
// serve daemon, so contention is normal.
const SQLiteBusyTimeoutMS = 5000

// Open opens the SQLite database at path with the settings every NDX store
// expects: WAL journaling for concurrent readers, enforced foreign keys, and
// a busy timeout. A nil logger opens silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path, "symbol", sym.DB)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "%s", pragma)
		}
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"symbol", sym.DB,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}
	return conn, nil
}

// OpenWithMigrations opens the database and brings its schema up to date in
// one step. This is what session bootstrap uses.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, logger); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return conn, nil
}
