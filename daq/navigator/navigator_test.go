package navigator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndx-io/NDX/timesync"
)

// writeSessionTree lays out a two-epoch session directory:
//
//	root/
//	  t0001/ raw.dat, trigger.log, epoch.yaml, probemap.yaml
//	  t0002/ video.avi              (no sidecars)
//	  analysis/                     (not an epoch)
//	  readme.txt
func writeSessionTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	ep1 := filepath.Join(root, "t0001")
	require.NoError(t, os.MkdirAll(ep1, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ep1, "raw.dat"), make([]byte, 64), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ep1, "trigger.log"), []byte("trig"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ep1, SidecarName), []byte(`
clocks:
  - type: dev_local_time
    t0: 0
    t1: 300.5
  - type: utc
    t0: 1700000000
    t1: 1700000300.5
files:
  raw.dat:
    origin: 0.0
  trigger.log:
    origin: 12.5
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ep1, ProbeMapName), []byte(`
probes:
  - name: electrode1
    reference: 1
    type: n-trode
    devicestring: "intan:ai:1-4"
`), 0o644))

	ep2 := filepath.Join(root, "t0002")
	require.NoError(t, os.MkdirAll(ep2, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ep2, "video.avi"), make([]byte, 128), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "analysis"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644))
	return root
}

func testNavigator(t *testing.T, root string) *Navigator {
	t.Helper()
	nav, err := New(Options{Root: root, DeviceID: "intan", SessionID: "sess1"})
	require.NoError(t, err)
	return nav
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{DeviceID: "intan"})
	assert.Error(t, err, "missing root")

	_, err = New(Options{Root: t.TempDir()})
	assert.Error(t, err, "missing device id")

	_, err = New(Options{Root: t.TempDir(), DeviceID: "intan", Pattern: "["})
	assert.Error(t, err, "malformed glob")
}

func TestNavigator_Scan(t *testing.T) {
	root := writeSessionTree(t)
	nav := testNavigator(t, root)

	epochs, err := nav.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, epochs, 2, "analysis/ and readme.txt are not epochs")

	first := epochs[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "t0001", first.ID)
	assert.Equal(t, "sess1", first.SessionID)
	assert.Equal(t, "intan", first.DeviceID)
	assert.Equal(t, []timesync.ClockType{timesync.DevLocalTime, timesync.UTC}, first.Clocks)

	r, ok := first.TimeRange(timesync.DevLocalTime)
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 300.5}, r)

	require.Len(t, first.Files, 2, "sidecars are metadata, not data files")
	byName := map[string]int{}
	for i, f := range first.Files {
		byName[f.Name] = i
	}
	raw := first.Files[byName["raw.dat"]]
	assert.Equal(t, int64(64), raw.ByteSize)
	require.NotNil(t, raw.Origin)
	assert.Equal(t, 0.0, *raw.Origin)
	trig := first.Files[byName["trigger.log"]]
	require.NotNil(t, trig.Origin)
	assert.Equal(t, 12.5, *trig.Origin)

	require.Len(t, first.ProbeMap, 1)
	assert.Equal(t, "electrode1", first.ProbeMap[0].Name)

	second := epochs[1]
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, "t0002", second.ID)
	assert.Equal(t, []timesync.ClockType{timesync.NoTime}, second.Clocks,
		"no sidecar means the device declared nothing about time")
	require.Len(t, second.Files, 1)
	assert.Nil(t, second.Files[0].Origin)
}

func TestNavigator_Scan_BadSidecar(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "t0001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SidecarName), []byte(`
clocks:
  - type: atomic
    t0: 0
    t1: 1
`), 0o644))

	nav := testNavigator(t, root)
	_, err := nav.Scan(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, timesync.ErrUnrecognizedClockType)
}

func TestNavigator_Scan_Cancelled(t *testing.T) {
	root := writeSessionTree(t)
	nav := testNavigator(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := nav.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNavigator_Matches(t *testing.T) {
	nav := testNavigator(t, t.TempDir())

	assert.True(t, nav.Matches("t0001"))
	assert.True(t, nav.Matches("trial_7"))
	assert.False(t, nav.Matches("analysis"))
	assert.False(t, nav.Matches(".ndx"))
}
