package daq

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndx-io/NDX/daq/navigator"
	"github.com/ndx-io/NDX/epoch"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/timesync"
)

func writeEpochDir(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.dat"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, navigator.SidecarName), []byte(`
clocks:
  - type: dev_local_time
    t0: 0
    t1: 100
`), 0o644))
}

func testSystem(t *testing.T, root string, reader Reader) *System {
	t.Helper()
	nav, err := navigator.New(navigator.Options{Root: root, DeviceID: "intan", SessionID: "sess1"})
	require.NoError(t, err)
	sys, err := NewSystem("rig1", nav, reader, nil)
	require.NoError(t, err)
	return sys
}

func TestNewSystem_Defaults(t *testing.T) {
	nav, err := navigator.New(navigator.Options{Root: t.TempDir(), DeviceID: "intan"})
	require.NoError(t, err)

	sys, err := NewSystem("", nav, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "intan", sys.Name(), "name defaults to the device id")
	assert.Equal(t, "intan", sys.DeviceID())

	_, err = NewSystem("rig1", nil, nil, nil)
	assert.Error(t, err, "navigator is required")
}

func TestSystem_Epochs_CachesScan(t *testing.T) {
	root := t.TempDir()
	writeEpochDir(t, root, "t0001")
	sys := testSystem(t, root, nil)
	ctx := context.Background()

	epochs, err := sys.Epochs(ctx)
	require.NoError(t, err)
	require.Len(t, epochs, 1)
	assert.Equal(t, "t0001", epochs[0].ID)

	// A new directory is invisible until invalidation.
	writeEpochDir(t, root, "t0002")
	epochs, err = sys.Epochs(ctx)
	require.NoError(t, err)
	assert.Len(t, epochs, 1, "cached table survives disk changes")

	sys.Invalidate()
	epochs, err = sys.Epochs(ctx)
	require.NoError(t, err)
	assert.Len(t, epochs, 2, "invalidation forces a rescan")
}

func TestSystem_Epochs_CopiesTable(t *testing.T) {
	root := t.TempDir()
	writeEpochDir(t, root, "t0001")
	sys := testSystem(t, root, nil)

	first, err := sys.Epochs(context.Background())
	require.NoError(t, err)
	first[0].ID = "mutated"

	second, err := sys.Epochs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t0001", second[0].ID, "callers must not see each other's mutations")
}

// clockReader adds a UTC clock to every epoch, standing in for a reader
// that derives extra timing from device metadata.
type clockReader struct{}

func (clockReader) Name() string { return "clock" }

func (clockReader) ReadEpoch(_ context.Context, ep epoch.Epoch) (epoch.Epoch, error) {
	ep.Clocks = append(append([]timesync.ClockType(nil), ep.Clocks...), timesync.UTC)
	ep.Ranges = append(append([][2]float64(nil), ep.Ranges...), [2]float64{1700000000, 1700000100})
	return ep, nil
}

func TestSystem_Epochs_AppliesReader(t *testing.T) {
	root := t.TempDir()
	writeEpochDir(t, root, "t0001")
	sys := testSystem(t, root, clockReader{})

	epochs, err := sys.Epochs(context.Background())
	require.NoError(t, err)
	require.Len(t, epochs, 1)
	assert.True(t, epochs[0].HasClock(timesync.UTC))
	assert.True(t, epochs[0].HasClock(timesync.DevLocalTime))
}

// badReader breaks the clock/range pairing to show reader output is
// validated.
type badReader struct{}

func (badReader) Name() string { return "bad" }

func (badReader) ReadEpoch(_ context.Context, ep epoch.Epoch) (epoch.Epoch, error) {
	ep.Ranges = nil
	return ep, nil
}

func TestSystem_Epochs_ValidatesReaderOutput(t *testing.T) {
	root := t.TempDir()
	writeEpochDir(t, root, "t0001")
	sys := testSystem(t, root, badReader{})

	_, err := sys.Epochs(context.Background())
	assert.Error(t, err)
}

func TestSystem_EpochByID(t *testing.T) {
	root := t.TempDir()
	writeEpochDir(t, root, "t0001")
	writeEpochDir(t, root, "t0002")
	sys := testSystem(t, root, nil)
	ctx := context.Background()

	ep, err := sys.EpochByID(ctx, "t0002")
	require.NoError(t, err)
	assert.Equal(t, 2, ep.Number)

	_, err = sys.EpochByID(ctx, "t9999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
