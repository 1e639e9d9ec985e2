package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// Query constants shared by store operations.
const (
	documentColumns = "id, session_id, type, schema_version, created_at, updated_at, properties"

	documentInsertQuery = `
		INSERT INTO documents (id, session_id, type, schema_version, created_at, updated_at, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	documentUpdateQuery = `
		UPDATE documents
		SET type = ?, schema_version = ?, updated_at = ?, properties = ?
		WHERE id = ?`

	documentExistsQuery = `SELECT EXISTS(SELECT 1 FROM documents WHERE id = ?)`

	dependencyInsertQuery = `
		INSERT INTO document_depends (document_id, name, depends_on)
		VALUES (?, ?, ?)`

	fileInsertQuery = `
		INSERT INTO document_files (document_id, name, byte_size, uploaded)
		VALUES (?, ?, ?, ?)`
)

// maxSQLParams stays under SQLite's bound-parameter limit when expanding IN
// clauses.
const maxSQLParams = 500

// Store reads and writes documents in a session database.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore wraps an open session database. A nil logger disables logging.
func NewStore(conn *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: conn, logger: logger}
}

// Add inserts a new document with its dependency edges and file refs.
// Adding an existing ID returns ErrAlreadyExists.
func (s *Store) Add(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, documentExistsQuery, doc.ID).Scan(&exists); err != nil {
		return errors.Wrap(err, "check document existence")
	}
	if exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "document %s", doc.ID)
	}

	props, err := json.Marshal(doc.Properties)
	if err != nil {
		return errors.Wrapf(err, "marshal properties of %s", doc.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, documentInsertQuery,
		doc.ID, doc.SessionID, doc.Type, doc.SchemaVersion,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(), string(props),
	); err != nil {
		return errors.Wrapf(err, "insert document %s", doc.ID)
	}
	if err := insertLinks(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}

	s.logger.Debugw("Document stored",
		"symbol", sym.Doc,
		"doc_id", doc.ID,
		"doc_type", doc.Type,
		"session_id", doc.SessionID,
	)
	return nil
}

// Update replaces a stored document's mutable fields and relinks its
// dependencies and files. UpdatedAt is stamped here. Updating an unknown ID
// returns ErrNotFound.
func (s *Store) Update(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()

	props, err := json.Marshal(doc.Properties)
	if err != nil {
		return errors.Wrapf(err, "marshal properties of %s", doc.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, documentUpdateQuery,
		doc.Type, doc.SchemaVersion, doc.UpdatedAt, string(props), doc.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "update document %s", doc.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "document %s", doc.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_depends WHERE document_id = ?", doc.ID); err != nil {
		return errors.Wrapf(err, "clear dependencies of %s", doc.ID)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM document_files WHERE document_id = ?", doc.ID); err != nil {
		return errors.Wrapf(err, "clear files of %s", doc.ID)
	}
	if err := insertLinks(ctx, tx, doc); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func insertLinks(ctx context.Context, tx *sql.Tx, doc *Document) error {
	for _, dep := range doc.DependsOn {
		if _, err := tx.ExecContext(ctx, dependencyInsertQuery, doc.ID, dep.Name, dep.DocumentID); err != nil {
			return errors.Wrapf(err, "insert dependency %s of %s", dep.DocumentID, doc.ID)
		}
	}
	for _, f := range doc.Files {
		if _, err := tx.ExecContext(ctx, fileInsertQuery, doc.ID, f.Name, f.ByteSize, f.Uploaded); err != nil {
			return errors.Wrapf(err, "insert file %s of %s", f.Name, doc.ID)
		}
	}
	return nil
}

// Get loads one document by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "document %s", id)
		}
		return nil, err
	}
	if err := s.attachLinks(ctx, []*Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// Remove deletes a document and, recursively, every document depending on
// it. It returns how many documents were deleted. Removing an unknown ID
// returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, id string) (int, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, documentExistsQuery, id).Scan(&exists); err != nil {
		return 0, errors.Wrap(err, "check document existence")
	}
	if !exists {
		return 0, errors.Wrapf(errors.ErrNotFound, "document %s", id)
	}

	// Breadth-first walk of reverse dependency edges.
	doomed := []string{id}
	seen := map[string]struct{}{id: {}}
	for i := 0; i < len(doomed); i++ {
		rows, err := s.db.QueryContext(ctx,
			"SELECT document_id FROM document_depends WHERE depends_on = ?", doomed[i])
		if err != nil {
			return 0, errors.Wrap(err, "walk dependents")
		}
		for rows.Next() {
			var dependent string
			if err := rows.Scan(&dependent); err != nil {
				rows.Close()
				return 0, errors.Wrap(err, "scan dependent")
			}
			if _, ok := seen[dependent]; !ok {
				seen[dependent] = struct{}{}
				doomed = append(doomed, dependent)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "walk dependents")
		}
		rows.Close()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()
	for _, chunk := range chunkStrings(doomed, maxSQLParams) {
		query := "DELETE FROM documents WHERE id IN (" + placeholders(len(chunk)) + ")"
		if _, err := tx.ExecContext(ctx, query, stringArgs(chunk)...); err != nil {
			return 0, errors.Wrap(err, "delete documents")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}

	s.logger.Infow("Documents removed",
		"symbol", sym.Doc,
		"doc_id", id,
		"count", len(doomed),
	)
	return len(doomed), nil
}

// All returns every document of a session, oldest first.
func (s *Store) All(ctx context.Context, sessionID string) ([]*Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE session_id = ? ORDER BY created_at, id",
		sessionID)
}

// Count returns the number of documents in a session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE session_id = ?", sessionID).Scan(&n)
	return n, errors.Wrap(err, "count documents")
}

// IDs returns every document ID of a session, oldest first. Sync planning
// works on these.
func (s *Store) IDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM documents WHERE session_id = ? ORDER BY created_at, id", sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "query ids")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate ids")
}

// Search returns the session documents matching a query, oldest first.
// Operators SQLite can evaluate run as SQL; anything else falls back to
// loading the session and matching in memory, so both paths agree with
// Query.Matches.
func (s *Store) Search(ctx context.Context, sessionID string, q *Query) ([]*Document, error) {
	if q.Empty() {
		return s.All(ctx, sessionID)
	}

	where, args, ok := compileQuery(q)
	if !ok {
		docs, err := s.All(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		matched := docs[:0]
		for _, doc := range docs {
			if q.Matches(doc) {
				matched = append(matched, doc)
			}
		}
		return matched, nil
	}

	query := "SELECT " + documentColumns + " FROM documents WHERE session_id = ? AND " + where +
		" ORDER BY created_at, id"
	return s.queryDocuments(ctx, query, append([]any{sessionID}, args...)...)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query documents")
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate documents")
	}
	if err := s.attachLinks(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var props string
	err := row.Scan(&doc.ID, &doc.SessionID, &doc.Type, &doc.SchemaVersion,
		&doc.CreatedAt, &doc.UpdatedAt, &props)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan document")
	}
	if err := json.Unmarshal([]byte(props), &doc.Properties); err != nil {
		return nil, errors.Wrapf(err, "unmarshal properties of %s", doc.ID)
	}
	return &doc, nil
}

// attachLinks bulk-loads dependency edges and file refs for a document set.
func (s *Store) attachLinks(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[string]*Document, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
		ids = append(ids, doc.ID)
	}

	for _, chunk := range chunkStrings(ids, maxSQLParams) {
		ph := placeholders(len(chunk))
		rows, err := s.db.QueryContext(ctx,
			"SELECT document_id, name, depends_on FROM document_depends WHERE document_id IN ("+ph+") ORDER BY document_id, name, depends_on",
			stringArgs(chunk)...)
		if err != nil {
			return errors.Wrap(err, "query dependencies")
		}
		for rows.Next() {
			var docID, name, target string
			if err := rows.Scan(&docID, &name, &target); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan dependency")
			}
			byID[docID].DependsOn = append(byID[docID].DependsOn, Dependency{Name: name, DocumentID: target})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return errors.Wrap(err, "iterate dependencies")
		}
		rows.Close()

		rows, err = s.db.QueryContext(ctx,
			"SELECT document_id, name, byte_size, uploaded FROM document_files WHERE document_id IN ("+ph+") ORDER BY document_id, name",
			stringArgs(chunk)...)
		if err != nil {
			return errors.Wrap(err, "query files")
		}
		for rows.Next() {
			var docID string
			var ref FileRef
			if err := rows.Scan(&docID, &ref.Name, &ref.ByteSize, &ref.Uploaded); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan file")
			}
			byID[docID].Files = append(byID[docID].Files, ref)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return errors.Wrap(err, "iterate files")
		}
		rows.Close()
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func chunkStrings(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
