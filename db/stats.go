package db

import (
	"database/sql"

	"github.com/ndx-io/NDX/errors"
)

// Stats summarizes a session database for status output.
type Stats struct {
	SizeBytes    int64 `json:"size_bytes"`
	Documents    int   `json:"documents"`
	Dependencies int   `json:"dependencies"`
	Files        int   `json:"files"`
	Migrations   int   `json:"migrations"`
}

// CollectStats reads row counts and the page-accounted database size.
func CollectStats(conn *sql.DB) (*Stats, error) {
	s := &Stats{}

	var pageCount, pageSize int64
	if err := conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, errors.Wrap(err, "page_count")
	}
	if err := conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, errors.Wrap(err, "page_size")
	}
	s.SizeBytes = pageCount * pageSize

	counts := []struct {
		table string
		dest  *int
	}{
		{"documents", &s.Documents},
		{"document_depends", &s.Dependencies},
		{"document_files", &s.Files},
		{"schema_migrations", &s.Migrations},
	}
	for _, c := range counts {
		if err := conn.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest); err != nil {
			return nil, errors.Wrapf(err, "count %s", c.table)
		}
	}
	return s, nil
}
