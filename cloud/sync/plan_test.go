package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndx-io/NDX/errors"
)

type leaf struct {
	typ, id, content string
}

func buildTree(t *testing.T, leaves ...leaf) *Tree {
	t.Helper()
	tree := NewTree()
	for _, l := range leaves {
		tree.Insert(l.typ, l.id, mustHash(t, l.content))
	}
	return tree
}

func mustPlan(t *testing.T, mode Mode, local, remote *Tree, idx Index) Plan {
	t.Helper()
	p, err := ComputePlan(mode, local, remote, idx)
	require.NoError(t, err)
	return p
}

func TestComputePlan_UploadNew(t *testing.T) {
	local := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":1}`},
		leaf{"epoch", "doc_b", `{"v":2}`},
	)
	remote := buildTree(t,
		leaf{"epoch", "doc_b", `{"v":"remote edit"}`},
	)

	p := mustPlan(t, UploadNew, local, remote, Index{})
	assert.Equal(t, []string{"doc_a"}, p.Uploads)
	assert.Empty(t, p.Downloads)
	assert.Empty(t, p.DeleteRemote)
	assert.Empty(t, p.UpdateRemote, "upload_new never rewrites existing documents")
	assert.Equal(t, 1, p.Actions())
	assert.False(t, p.Empty())
}

func TestComputePlan_DownloadNew(t *testing.T) {
	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})
	remote := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":"remote edit"}`},
		leaf{"epoch", "doc_b", `{"v":2}`},
	)

	p := mustPlan(t, DownloadNew, local, remote, Index{})
	assert.Equal(t, []string{"doc_b"}, p.Downloads)
	assert.Empty(t, p.Uploads)
	assert.Empty(t, p.UpdateLocal)
}

func TestComputePlan_MirrorToRemote(t *testing.T) {
	local := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":1}`},
		leaf{"epoch", "doc_b", `{"v":2}`},
		leaf{"probe", "doc_d", `{"v":4}`},
	)
	remote := buildTree(t,
		leaf{"epoch", "doc_b", `{"v":"stale"}`},
		leaf{"epoch", "doc_c", `{"v":3}`},
		leaf{"probe", "doc_d", `{"v":4}`},
	)

	p := mustPlan(t, MirrorToRemote, local, remote, Index{})
	assert.Equal(t, []string{"doc_a"}, p.Uploads)
	assert.Equal(t, []string{"doc_c"}, p.DeleteRemote)
	assert.Equal(t, []string{"doc_b"}, p.UpdateRemote, "divergent content is overwritten, local wins")
	assert.Empty(t, p.DeleteLocal)
	assert.Empty(t, p.Downloads)
	assert.Equal(t, []string{"probe"}, p.SkippedTypes, "matching type digests skip comparison")
}

func TestComputePlan_MirrorFromRemote(t *testing.T) {
	local := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":1}`},
		leaf{"epoch", "doc_b", `{"v":"stale"}`},
	)
	remote := buildTree(t,
		leaf{"epoch", "doc_b", `{"v":2}`},
		leaf{"epoch", "doc_c", `{"v":3}`},
	)

	p := mustPlan(t, MirrorFromRemote, local, remote, Index{})
	assert.Equal(t, []string{"doc_c"}, p.Downloads)
	assert.Equal(t, []string{"doc_a"}, p.DeleteLocal)
	assert.Equal(t, []string{"doc_b"}, p.UpdateLocal)
	assert.Empty(t, p.Uploads)
	assert.Empty(t, p.DeleteRemote)
}

func TestComputePlan_TwoWay_FirstSync(t *testing.T) {
	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})
	remote := buildTree(t, leaf{"epoch", "doc_b", `{"v":2}`})

	p := mustPlan(t, TwoWay, local, remote, Index{})
	assert.Equal(t, []string{"doc_a"}, p.Uploads)
	assert.Equal(t, []string{"doc_b"}, p.Downloads)
	assert.Empty(t, p.DeleteLocal)
	assert.Empty(t, p.DeleteRemote)
	assert.Empty(t, p.Conflicts)
}

func TestComputePlan_TwoWay_AddAddConflict(t *testing.T) {
	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":"local"}`})
	remote := buildTree(t, leaf{"epoch", "doc_a", `{"v":"remote"}`})

	p := mustPlan(t, TwoWay, local, remote, Index{})
	assert.Equal(t, []string{"doc_a"}, p.Conflicts)
	assert.True(t, p.Empty(), "conflicted documents are not transferred")
}

func TestComputePlan_TwoWay_AddAddSameContentConverges(t *testing.T) {
	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})
	remote := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})

	p := mustPlan(t, TwoWay, local, remote, Index{})
	assert.Empty(t, p.Conflicts, "identical content added on both sides is convergence")
	assert.True(t, p.Empty())
}

func TestComputePlan_TwoWay_DeletionPropagatesToRemote(t *testing.T) {
	// Both sides had doc_a and doc_b at last sync; doc_b was deleted
	// locally since.
	var idx Index
	idx.Update([]string{"doc_a", "doc_b"}, []string{"doc_a", "doc_b"}, nil)

	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})
	remote := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":1}`},
		leaf{"epoch", "doc_b", `{"v":2}`},
	)

	p := mustPlan(t, TwoWay, local, remote, idx)
	assert.Equal(t, []string{"doc_b"}, p.DeleteRemote)
	assert.Empty(t, p.Downloads, "a locally deleted document is not downloaded back")
	assert.Empty(t, p.Uploads)
}

func TestComputePlan_TwoWay_DeletionPropagatesToLocal(t *testing.T) {
	var idx Index
	idx.Update([]string{"doc_a", "doc_b"}, []string{"doc_a", "doc_b"}, nil)

	local := buildTree(t,
		leaf{"epoch", "doc_a", `{"v":1}`},
		leaf{"epoch", "doc_b", `{"v":2}`},
	)
	remote := buildTree(t, leaf{"epoch", "doc_a", `{"v":1}`})

	p := mustPlan(t, TwoWay, local, remote, idx)
	assert.Equal(t, []string{"doc_b"}, p.DeleteLocal)
	assert.Empty(t, p.Uploads, "a remotely deleted document is not uploaded back")
}

func TestComputePlan_TwoWay_ReAddBeatsDeletion(t *testing.T) {
	// doc_a was deleted remotely, but the local side added it again
	// since the last sync: the re-add wins.
	var idx Index
	idx.Update(nil, []string{"doc_a"}, nil)

	local := buildTree(t, leaf{"epoch", "doc_a", `{"v":"fresh"}`})
	remote := buildTree(t)

	p := mustPlan(t, TwoWay, local, remote, idx)
	assert.Equal(t, []string{"doc_a"}, p.Uploads)
	assert.Empty(t, p.DeleteLocal)
}

func TestComputePlan_TwoWay_ContentAttribution(t *testing.T) {
	baseLocalChanged := mustHash(t, `{"v":"base1"}`)
	baseRemoteChanged := mustHash(t, `{"v":"base2"}`)
	baseBothChanged := mustHash(t, `{"v":"base3"}`)

	ids := []string{"doc_local", "doc_remote", "doc_both", "doc_nobase"}
	var idx Index
	idx.Update(ids, ids, map[string]string{
		"doc_local":  HexHash(baseLocalChanged),
		"doc_remote": HexHash(baseRemoteChanged),
		"doc_both":   HexHash(baseBothChanged),
	})

	local := buildTree(t,
		leaf{"epoch", "doc_local", `{"v":"edited locally"}`},
		leaf{"epoch", "doc_remote", `{"v":"base2"}`},
		leaf{"epoch", "doc_both", `{"v":"local edit"}`},
		leaf{"epoch", "doc_nobase", `{"v":"left"}`},
	)
	remote := buildTree(t,
		leaf{"epoch", "doc_local", `{"v":"base1"}`},
		leaf{"epoch", "doc_remote", `{"v":"edited remotely"}`},
		leaf{"epoch", "doc_both", `{"v":"remote edit"}`},
		leaf{"epoch", "doc_nobase", `{"v":"right"}`},
	)

	p := mustPlan(t, TwoWay, local, remote, idx)
	assert.Equal(t, []string{"doc_local"}, p.UpdateRemote)
	assert.Equal(t, []string{"doc_remote"}, p.UpdateLocal)
	assert.ElementsMatch(t, []string{"doc_both", "doc_nobase"}, p.Conflicts,
		"changes on both sides, or without a recorded baseline, cannot be attributed")
}

func TestComputePlan_TwoWay_SkipsUnchangedTypes(t *testing.T) {
	shared := []leaf{
		{"epoch", "doc_a", `{"v":1}`},
		{"epoch", "doc_b", `{"v":2}`},
	}
	local := buildTree(t, append(shared, leaf{"probe", "doc_c", `{"v":"local"}`})...)
	remote := buildTree(t, append(shared, leaf{"probe", "doc_c", `{"v":"remote"}`})...)

	ids := []string{"doc_a", "doc_b", "doc_c"}
	var idx Index
	idx.Update(ids, ids, nil)

	p := mustPlan(t, TwoWay, local, remote, idx)
	assert.Equal(t, []string{"epoch"}, p.SkippedTypes)
	assert.Equal(t, []string{"doc_c"}, p.Conflicts)
}

func TestComputePlan_UnknownMode(t *testing.T) {
	_, err := ComputePlan(Mode("sideways"), NewTree(), NewTree(), Index{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = ComputePlan(TwoWay, nil, NewTree(), Index{})
	assert.Error(t, err)
}
