package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ndx-io/NDX/errors"
)

// TableEntry is one known session.
type TableEntry struct {
	Ref string `json:"ref"`
	Dir string `json:"dir"`
}

// Table is the machine-wide registry mapping session references to their
// directories, stored as a JSON file. A reference points at exactly one
// directory.
type Table struct {
	mu   sync.Mutex
	path string
}

// DefaultTablePath returns ~/.ndx/sessions.json, or "" when the home
// directory cannot be determined.
func DefaultTablePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DotDir, "sessions.json")
}

// NewTable opens the session table at path. The file is created on the
// first write.
func NewTable(path string) (*Table, error) {
	if path == "" {
		return nil, errors.NewInvalidRequestError("session table path is empty")
	}
	return &Table{path: path}, nil
}

// Path returns the table file's location.
func (t *Table) Path() string { return t.path }

// Add records ref as living in dir. Re-adding the same pair is a no-op;
// pointing an existing ref at a different directory is ErrAlreadyExists.
func (t *Table) Add(ref, dir string) error {
	if ref == "" {
		return errors.NewInvalidRequestError("session reference is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", dir)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load()
	if err != nil {
		return err
	}
	if existing, ok := entries[ref]; ok {
		if existing == abs {
			return nil
		}
		return errors.Wrapf(errors.ErrAlreadyExists,
			"session %q already registered at %s", ref, existing)
	}
	entries[ref] = abs
	return t.save(entries)
}

// Lookup returns the directory registered for ref.
func (t *Table) Lookup(ref string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load()
	if err != nil {
		return "", err
	}
	dir, ok := entries[ref]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "session %q", ref)
	}
	return dir, nil
}

// Remove drops ref from the table. Removing an unknown ref is ErrNotFound.
func (t *Table) Remove(ref string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load()
	if err != nil {
		return err
	}
	if _, ok := entries[ref]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "session %q", ref)
	}
	delete(entries, ref)
	return t.save(entries)
}

// List returns every known session sorted by reference.
func (t *Table) List() ([]TableEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load()
	if err != nil {
		return nil, err
	}
	list := make([]TableEntry, 0, len(entries))
	for ref, dir := range entries {
		list = append(list, TableEntry{Ref: ref, Dir: dir})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Ref < list[j].Ref })
	return list, nil
}

func (t *Table) load() (map[string]string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, errors.Wrapf(err, "read %s", t.path)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "parse %s", t.path)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries, nil
}

func (t *Table) save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o750); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(t.path))
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal session table")
	}
	return errors.Wrapf(os.WriteFile(t.path, data, 0o644), "write %s", t.path)
}
