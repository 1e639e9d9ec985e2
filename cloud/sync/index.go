package sync

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ndx-io/NDX/errors"
)

// Index records what the last completed sync saw on each side. Deltas
// against it distinguish "added here" from "deleted there", which is what
// makes deletion propagation and conflict detection possible.
type Index struct {
	LocalIDs  []string          `json:"local_doc_ids_last_sync"`
	RemoteIDs []string          `json:"remote_doc_ids_last_sync"`
	LastSync  time.Time         `json:"last_sync_timestamp"`
	Digests   map[string]string `json:"doc_digests_last_sync,omitempty"`
}

// IndexPath returns the sync index location inside a session directory.
func IndexPath(sessionDir string) string {
	return filepath.Join(sessionDir, ".ndx", "sync", "index.json")
}

// ReadIndex loads an index, returning an empty one when none exists yet.
func ReadIndex(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, nil
		}
		return Index{}, errors.Wrapf(err, "read sync index %s", path)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, errors.Wrapf(err, "parse sync index %s", path)
	}
	return idx, nil
}

// Write persists the index, creating parent directories as needed.
func (idx Index) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create sync index directory for %s", path)
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sync index")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write sync index %s", path)
	}
	return nil
}

// Update replaces both ID sets and the digest map and stamps the sync
// time. The ID lists are stored sorted.
func (idx *Index) Update(localIDs, remoteIDs []string, digests map[string]string) {
	idx.LocalIDs = sortedCopy(localIDs)
	idx.RemoteIDs = sortedCopy(remoteIDs)
	idx.Digests = digests
	idx.LastSync = time.Now().UTC()
}

// DigestOf returns the content hash recorded for a document at the last
// sync, when one was recorded.
func (idx Index) DigestOf(id string) (Hash, bool) {
	hexDigest, ok := idx.Digests[id]
	if !ok {
		return Hash{}, false
	}
	raw, err := hex.DecodeString(hexDigest)
	if err != nil || len(raw) != len(Hash{}) {
		return Hash{}, false
	}
	var h Hash
	copy(h[:], raw)
	return h, true
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
