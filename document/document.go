// Package document implements the session document store. Documents are the
// unit of record in NDX: every epoch, probe, sync edge, and analysis result
// is a document with typed JSON properties, dependency edges to other
// documents, and optional file attachments.
package document

import (
	"time"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/ido"
)

// Well-known document types. Packages register their own types freely; these
// are the ones NDX itself reads.
const (
	TypeSession  = "session"
	TypeEpoch    = "daq/epoch"
	TypeSyncEdge = "sync/edge"
	TypeSyncRule = "sync/rule"
)

// Dependency is a named edge to another document, e.g. an epoch document
// depending on its session document under the name "session_id".
type Dependency struct {
	Name       string `json:"name"`
	DocumentID string `json:"document_id"`
}

// FileRef records a binary file attached to a document. The bytes live
// outside the database; Uploaded tracks whether the cloud copy exists.
type FileRef struct {
	Name     string `json:"name"`
	ByteSize int64  `json:"byte_size,omitempty"`
	Uploaded bool   `json:"uploaded,omitempty"`
}

// Document is one record of a session.
type Document struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	Type          string         `json:"type"`
	SchemaVersion string         `json:"schema_version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Properties    map[string]any `json:"properties"`
	DependsOn     []Dependency   `json:"depends_on,omitempty"`
	Files         []FileRef      `json:"files,omitempty"`
}

// New mints a document of the given type bound to a session, with a fresh
// time-sortable ID and the current schema version.
func New(sessionID, docType string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:            ido.New(),
		SessionID:     sessionID,
		Type:          docType,
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		Properties:    make(map[string]any),
	}
}

// Validate checks the fields every stored document must carry.
func (d *Document) Validate() error {
	if d == nil {
		return errors.NewInvalidRequestError("document is nil")
	}
	if !ido.IsValid(d.ID) {
		return errors.NewInvalidRequestError("document id %q is not a valid identifier", d.ID)
	}
	if d.SessionID == "" {
		return errors.NewInvalidRequestError("document %s has no session id", d.ID)
	}
	if d.Type == "" {
		return errors.NewInvalidRequestError("document %s has no type", d.ID)
	}
	if err := CheckSchemaVersion(d.SchemaVersion); err != nil {
		return err
	}
	return nil
}

// Property reads a possibly nested property by dotted path, e.g.
// "epoch.device_id".
func (d *Document) Property(path string) (any, bool) {
	return lookupPath(d.Properties, path)
}

// SetProperty writes a top-level property and bumps UpdatedAt.
func (d *Document) SetProperty(key string, value any) {
	if d.Properties == nil {
		d.Properties = make(map[string]any)
	}
	d.Properties[key] = value
	d.UpdatedAt = time.Now().UTC()
}

// AddDependency appends a named dependency edge, ignoring exact duplicates.
func (d *Document) AddDependency(name, documentID string) {
	for _, dep := range d.DependsOn {
		if dep.Name == name && dep.DocumentID == documentID {
			return
		}
	}
	d.DependsOn = append(d.DependsOn, Dependency{Name: name, DocumentID: documentID})
}

// DependsOnDocument reports whether any dependency edge targets the given
// document.
func (d *Document) DependsOnDocument(id string) bool {
	for _, dep := range d.DependsOn {
		if dep.DocumentID == id {
			return true
		}
	}
	return false
}

// AddFile attaches a file reference, replacing an entry with the same name.
func (d *Document) AddFile(ref FileRef) {
	for i, f := range d.Files {
		if f.Name == ref.Name {
			d.Files[i] = ref
			return
		}
	}
	d.Files = append(d.Files, ref)
}

// IsA reports whether the document's type equals t or lives underneath it in
// the slash-separated type hierarchy: a "daq/epoch" document IsA "daq".
func (d *Document) IsA(t string) bool {
	if d.Type == t {
		return true
	}
	return len(d.Type) > len(t) && d.Type[:len(t)] == t && d.Type[len(t)] == '/'
}
