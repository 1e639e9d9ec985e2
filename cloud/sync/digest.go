package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	gosync "sync"

	"github.com/ndx-io/NDX/errors"
)

// Hash is a SHA-256 digest of a document's canonical JSON.
type Hash = [32]byte

// HashDocument digests a document body independent of JSON key order. The
// body is decoded and re-encoded so the same content hashes the same
// whether it came from the local store or from the cloud.
func HashDocument(raw []byte) (Hash, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Hash{}, errors.Wrap(err, "parse document")
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return Hash{}, errors.Wrap(err, "canonicalize document")
	}
	return sha256.Sum256(canonical), nil
}

// HexHash returns the hex form of a hash, as stored in the sync index.
func HexHash(h Hash) string {
	return hex.EncodeToString(h[:])
}

// Tree is a two-level digest tree over a document set.
//
// Structure:
//
//	Root
//	└── Group (document type)
//	    └── Leaf (document id → content hash)
//
// Group hashes let a sync run discard whole document types whose content
// matches on both sides without comparing individual documents.
type Tree struct {
	mu     gosync.RWMutex
	groups map[string]*group // keyed by document type
	dirty  bool              // root needs recomputation
	root   Hash
}

// group is one document-type bucket in the tree.
type group struct {
	docType string
	leaves  map[string]Hash // document id → content hash
	dirty   bool
	hash    Hash
}

// NewTree creates an empty digest tree.
func NewTree() *Tree {
	return &Tree{
		groups: make(map[string]*group),
	}
}

// Insert records a document's content hash under its type, replacing any
// hash already held for that document. The root is lazily recomputed on
// the next call to Root().
func (t *Tree) Insert(docType, docID string, contentHash Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[docType]
	if !ok {
		g = &group{
			docType: docType,
			leaves:  make(map[string]Hash),
		}
		t.groups[docType] = g
	}

	if existing, ok := g.leaves[docID]; ok && existing == contentHash {
		return
	}

	g.leaves[docID] = contentHash
	g.dirty = true
	t.dirty = true
}

// Remove drops a document from the tree. An emptied group is removed.
func (t *Tree) Remove(docType, docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[docType]
	if !ok {
		return
	}
	if _, ok := g.leaves[docID]; !ok {
		return
	}

	delete(g.leaves, docID)
	g.dirty = true
	t.dirty = true

	if len(g.leaves) == 0 {
		delete(t.groups, docType)
	}
}

// Root returns the current root hash, recomputing lazily when dirty. An
// empty tree has a zero hash.
func (t *Tree) Root() Hash {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return t.root
	}

	t.recompute()
	return t.root
}

// GroupHashes returns the hash of every document-type group. Two sides of
// a sync exchange these to find divergent types without comparing
// individual documents.
func (t *Tree) GroupHashes() map[string]Hash {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make(map[string]Hash, len(t.groups))
	for docType, g := range t.groups {
		if g.dirty {
			g.recomputeHash()
		}
		result[docType] = g.hash
	}
	return result
}

// GroupLeaves returns a copy of one type's document hashes, or nil when
// the type holds no documents.
func (t *Tree) GroupLeaves(docType string) map[string]Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.groups[docType]
	if !ok {
		return nil
	}
	leaves := make(map[string]Hash, len(g.leaves))
	for id, h := range g.leaves {
		leaves[id] = h
	}
	return leaves
}

// Leaves returns every document hash in the tree, flattened across types.
func (t *Tree) Leaves() map[string]Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaves := make(map[string]Hash)
	for _, g := range t.groups {
		for id, h := range g.leaves {
			leaves[id] = h
		}
	}
	return leaves
}

// Size returns the number of documents in the tree.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, g := range t.groups {
		n += len(g.leaves)
	}
	return n
}

// GroupCount returns the number of document types in the tree.
func (t *Tree) GroupCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.groups)
}

// Diff compares this tree's group hashes against another side's and
// returns, sorted, the types only present here, the types only present
// there, and the types present on both sides with different hashes.
func (t *Tree) Diff(remoteGroups map[string]Hash) (localOnly, remoteOnly, divergent []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for docType, g := range t.groups {
		if g.dirty {
			g.recomputeHash()
		}
		remoteHash, exists := remoteGroups[docType]
		switch {
		case !exists:
			localOnly = append(localOnly, docType)
		case remoteHash != g.hash:
			divergent = append(divergent, docType)
		}
	}
	for docType := range remoteGroups {
		if _, exists := t.groups[docType]; !exists {
			remoteOnly = append(remoteOnly, docType)
		}
	}

	sort.Strings(localOnly)
	sort.Strings(remoteOnly)
	sort.Strings(divergent)
	return
}

// recompute recalculates the root hash from group hashes.
// Caller must hold t.mu.
func (t *Tree) recompute() {
	if len(t.groups) == 0 {
		t.root = Hash{}
		t.dirty = false
		return
	}

	types := make([]string, 0, len(t.groups))
	for docType := range t.groups {
		types = append(types, docType)
	}
	sort.Strings(types)

	h := sha256.New()
	h.Write([]byte("root:"))
	for _, docType := range types {
		g := t.groups[docType]
		if g.dirty {
			g.recomputeHash()
		}
		h.Write(g.hash[:])
	}
	h.Sum(t.root[:0])
	t.dirty = false
}

// recomputeHash recalculates the group hash from its document hashes.
func (g *group) recomputeHash() {
	if len(g.leaves) == 0 {
		g.hash = Hash{}
		g.dirty = false
		return
	}

	ids := make([]string, 0, len(g.leaves))
	for id := range g.leaves {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hasher := sha256.New()
	hasher.Write([]byte("grp:"))
	// Include the type so identical document sets under different types
	// produce different group hashes.
	hasher.Write([]byte(g.docType))
	hasher.Write([]byte("\x00"))
	for _, id := range ids {
		h := g.leaves[id]
		hasher.Write([]byte(id))
		hasher.Write([]byte("\x00"))
		hasher.Write(h[:])
	}
	hasher.Sum(g.hash[:0])
	g.dirty = false
}
