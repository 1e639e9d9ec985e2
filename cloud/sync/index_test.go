package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexPath(t *testing.T) {
	p := IndexPath("/data/exp_a")
	assert.Equal(t, filepath.Join("/data/exp_a", ".ndx", "sync", "index.json"), p)
}

func TestReadIndex_Missing(t *testing.T) {
	idx, err := ReadIndex(filepath.Join(t.TempDir(), "nope", "index.json"))
	require.NoError(t, err)
	assert.Empty(t, idx.LocalIDs)
	assert.Empty(t, idx.RemoteIDs)
	assert.True(t, idx.LastSync.IsZero())
}

func TestIndex_WriteReadRoundTrip(t *testing.T) {
	path := IndexPath(t.TempDir())
	h := mustHash(t, `{"v":1}`)

	var idx Index
	idx.Update(
		[]string{"doc_b", "doc_a"},
		[]string{"doc_c"},
		map[string]string{"doc_a": HexHash(h)},
	)
	require.NoError(t, idx.Write(path))

	got, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_a", "doc_b"}, got.LocalIDs, "ids are stored sorted")
	assert.Equal(t, []string{"doc_c"}, got.RemoteIDs)
	assert.False(t, got.LastSync.IsZero())

	digest, ok := got.DigestOf("doc_a")
	require.True(t, ok)
	assert.Equal(t, h, digest)
}

func TestIndex_DigestOf(t *testing.T) {
	idx := Index{Digests: map[string]string{
		"doc_a": HexHash(mustHash(t, `{"v":1}`)),
		"doc_b": "zzzz",
		"doc_c": "abcd",
	}}

	_, ok := idx.DigestOf("doc_a")
	assert.True(t, ok)
	_, ok = idx.DigestOf("missing")
	assert.False(t, ok)
	_, ok = idx.DigestOf("doc_b")
	assert.False(t, ok, "invalid hex")
	_, ok = idx.DigestOf("doc_c")
	assert.False(t, ok, "wrong length")
}

func TestReadIndex_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := ReadIndex(path)
	assert.Error(t, err)
}
