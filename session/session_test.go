package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ndx-io/NDX/daq"
	"github.com/ndx-io/NDX/daq/navigator"
	"github.com/ndx-io/NDX/document"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/ido"
	"github.com/ndx-io/NDX/timesync"
)

func newTestSession(t *testing.T, ref string) *Session {
	t.Helper()
	s, err := New(ref, t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// writeRig lays out one epoch directory holding a data file whose sidecar
// declares a device-local clock and the file's start origin on it.
func writeRig(t *testing.T, root, fileName, sidecar string) {
	t.Helper()
	dir := filepath.Join(root, "t0001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, navigator.SidecarName), []byte(sidecar), 0o644))
}

func testSystem(t *testing.T, s *Session, name, deviceID, root string) *daq.System {
	t.Helper()
	nav, err := navigator.New(navigator.Options{
		Root:      root,
		DeviceID:  deviceID,
		SessionID: s.ID(),
		Logger:    zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)
	sys, err := daq.NewSystem(name, nav, nil, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return sys
}

func TestNew_CreatesSessionFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New("exp_2026_08_24", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "exp_2026_08_24", s.Ref())
	assert.Equal(t, dir, s.Dir())
	assert.True(t, ido.IsValid(s.ID()))

	assert.FileExists(t, filepath.Join(dir, DotDir, "session.json"))
	assert.FileExists(t, filepath.Join(dir, DotDir, "ndx.db"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", t.TempDir(), nil)
	require.Error(t, err)

	_, err = New("ref", "", nil)
	require.Error(t, err)
}

func TestNew_ReopenKeepsIdentity(t *testing.T) {
	dir := t.TempDir()
	s1, err := New("chronic_01", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	id := s1.ID()
	require.NoError(t, s1.Close())

	s2, err := New("chronic_01", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, id, s2.ID())
}

func TestNew_RefMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := New("exp_a", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New("exp_b", dir, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), "exp_a")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s1, err := New("roundtrip", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	id := s1.ID()
	require.NoError(t, s1.Close())

	s2, err := Open(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, "roundtrip", s2.Ref())
	assert.Equal(t, id, s2.ID())
}

func TestOpen_NotASession(t *testing.T) {
	_, err := Open(t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSession_AddDAQSystem(t *testing.T) {
	s := newTestSession(t, "rig_test")

	sysA := testSystem(t, s, "intan_rig", "intan", t.TempDir())
	sysB := testSystem(t, s, "camera_rig", "cam", t.TempDir())

	require.NoError(t, s.AddDAQSystem(sysA))
	require.NoError(t, s.AddDAQSystem(sysB))

	err := s.AddDAQSystem(sysA)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

	got, ok := s.DAQSystem("intan_rig")
	require.True(t, ok)
	assert.Same(t, sysA, got)

	_, ok = s.DAQSystem("missing")
	assert.False(t, ok)

	systems := s.DAQSystems()
	require.Len(t, systems, 2)
	assert.Equal(t, "intan_rig", systems[0].Name())
	assert.Equal(t, "camera_rig", systems[1].Name())
}

func TestSession_AddDAQSystem_RegistersRules(t *testing.T) {
	s := newTestSession(t, "rig_rules")
	sys := testSystem(t, s, "intan_rig", "intan", t.TempDir())

	rule, err := timesync.NewFileMatchRule(timesync.FileMatchOptions{})
	require.NoError(t, err)
	require.NoError(t, s.AddDAQSystem(sys, rule))

	rules := s.Graph().Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, timesync.RuleKindFileMatch, rules[0].Name())
}

const rigASidecar = `clocks:
  - type: dev_local_time
    t0: 0
    t1: 100
files:
  rec.dat:
    origin: 10.0
`

const rigBSidecar = `clocks:
  - type: dev_local_time
    t0: 0
    t1: 200
files:
  rec.csv:
    origin: 4.5
`

// twoRigSession builds a session with two acquisition systems that recorded
// the same file stem, plus the file-match rule that links them.
func twoRigSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t, "dual_rig")

	rootA, rootB := t.TempDir(), t.TempDir()
	writeRig(t, rootA, "rec.dat", rigASidecar)
	writeRig(t, rootB, "rec.csv", rigBSidecar)

	rule, err := timesync.NewFileMatchRule(timesync.FileMatchOptions{})
	require.NoError(t, err)

	require.NoError(t, s.AddDAQSystem(testSystem(t, s, "rig_a", "intan", rootA), rule))
	require.NoError(t, s.AddDAQSystem(testSystem(t, s, "rig_b", "nlx", rootB)))
	return s
}

func TestSession_BuildSyncGraph(t *testing.T) {
	s := twoRigSession(t)
	ctx := context.Background()

	require.NoError(t, s.BuildSyncGraph(ctx))

	g := s.Graph()
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	source := timesync.EpochClockID{Device: "intan", Epoch: "t0001", Clock: timesync.DevLocalTime}
	target := timesync.EpochClockID{Device: "nlx", Epoch: "t0001", Clock: timesync.DevLocalTime}

	m, err := g.Mapping(source, target)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Scale, 1e-12)
	assert.InDelta(t, -5.5, m.Offset, 1e-12)

	ref, err := timesync.NewTimeReference(source, 20)
	require.NoError(t, err)
	out, err := g.Convert(ref, target)
	require.NoError(t, err)
	assert.InDelta(t, 14.5, out.Time, 1e-9)
}

func TestSession_BuildSyncGraph_Rebuildable(t *testing.T) {
	s := twoRigSession(t)
	ctx := context.Background()

	require.NoError(t, s.BuildSyncGraph(ctx))
	first := s.Graph().Records()

	// Rebuilding over the same epochs must not conflict with the edges
	// already present.
	require.NoError(t, s.BuildSyncGraph(ctx))
	assert.Equal(t, first, s.Graph().Records())
}

func TestSession_BuildSyncGraph_Cancelled(t *testing.T) {
	s := twoRigSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.BuildSyncGraph(ctx)
	require.Error(t, err)
}

func TestSession_SaveLoadSyncGraph(t *testing.T) {
	dir := t.TempDir()
	s, err := New("persisted", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	rootA, rootB := t.TempDir(), t.TempDir()
	writeRig(t, rootA, "rec.dat", rigASidecar)
	writeRig(t, rootB, "rec.csv", rigBSidecar)

	rule, err := timesync.NewFileMatchRule(timesync.FileMatchOptions{})
	require.NoError(t, err)
	require.NoError(t, s.AddDAQSystem(testSystem(t, s, "rig_a", "intan", rootA), rule))
	require.NoError(t, s.AddDAQSystem(testSystem(t, s, "rig_b", "nlx", rootB)))

	ctx := context.Background()
	require.NoError(t, s.BuildSyncGraph(ctx))
	require.NoError(t, s.SaveSyncGraph(ctx))

	ruleDocs, err := s.Store().Search(ctx, s.ID(), document.NewQuery().IsA(TypeSyncRule))
	require.NoError(t, err)
	assert.Len(t, ruleDocs, 1)
	edgeDocs, err := s.Store().Search(ctx, s.ID(), document.NewQuery().IsA(TypeSyncEdge))
	require.NoError(t, err)
	assert.Len(t, edgeDocs, 2)

	records := s.Graph().Records()
	require.NoError(t, s.Close())

	// A fresh handle on the same directory starts with an empty graph and
	// rebuilds it from the stored documents alone.
	s2, err := Open(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, 0, s2.Graph().NodeCount())
	require.NoError(t, s2.LoadSyncGraph(ctx))

	assert.Equal(t, records, s2.Graph().Records())
	rules := s2.Graph().Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, timesync.RuleKindFileMatch, rules[0].Name())

	source := timesync.EpochClockID{Device: "intan", Epoch: "t0001", Clock: timesync.DevLocalTime}
	target := timesync.EpochClockID{Device: "nlx", Epoch: "t0001", Clock: timesync.DevLocalTime}
	m, err := s2.Graph().Mapping(source, target)
	require.NoError(t, err)
	assert.InDelta(t, -5.5, m.Offset, 1e-12)
}

func TestSession_SaveSyncGraph_ReplacesExisting(t *testing.T) {
	s := twoRigSession(t)
	ctx := context.Background()

	require.NoError(t, s.BuildSyncGraph(ctx))
	require.NoError(t, s.SaveSyncGraph(ctx))
	require.NoError(t, s.SaveSyncGraph(ctx))

	docs, err := s.Store().Search(ctx, s.ID(), document.NewQuery().IsA("sync"))
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestSession_LoadSyncGraph_UnknownRuleKind(t *testing.T) {
	s := newTestSession(t, "bad_rule")
	ctx := context.Background()

	doc := document.New(s.ID(), TypeSyncRule)
	doc.Properties = map[string]any{"kind": "nonsense", "index": 0}
	require.NoError(t, s.Store().Add(ctx, doc))

	err := s.LoadSyncGraph(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonsense")
}

func TestSession_InvalidateEpoch(t *testing.T) {
	s := twoRigSession(t)
	ctx := context.Background()
	require.NoError(t, s.BuildSyncGraph(ctx))
	require.Equal(t, 2, s.Graph().NodeCount())

	s.InvalidateEpoch("rig_a", "t0001")

	assert.Equal(t, 1, s.Graph().NodeCount())
	assert.Equal(t, 0, s.Graph().EdgeCount())

	// Unknown systems are ignored.
	s.InvalidateEpoch("missing", "t0001")
	assert.Equal(t, 1, s.Graph().NodeCount())
}

func TestSession_WatchDAQSystem(t *testing.T) {
	s := newTestSession(t, "watched")
	root := t.TempDir()
	writeRig(t, root, "rec.dat", rigASidecar)

	sys := testSystem(t, s, "rig_a", "intan", root)
	require.NoError(t, s.AddDAQSystem(sys))

	ctx := context.Background()
	epochs, err := sys.Epochs(ctx)
	require.NoError(t, err)
	require.Len(t, epochs, 1)

	require.NoError(t, s.WatchDAQSystem("rig_a"))

	err = s.WatchDAQSystem("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// A new epoch directory must invalidate the cached table once the
	// watcher's debounce window closes.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "t0002"), 0o755))
	assert.Eventually(t, func() bool {
		epochs, err := sys.Epochs(ctx)
		return err == nil && len(epochs) == 2
	}, 5*time.Second, 100*time.Millisecond)
}

func TestSession_CloseStopsWatchers(t *testing.T) {
	dir := t.TempDir()
	s, err := New("closing", dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	root := t.TempDir()
	writeRig(t, root, "rec.dat", rigASidecar)
	require.NoError(t, s.AddDAQSystem(testSystem(t, s, "rig_a", "intan", root)))
	require.NoError(t, s.WatchDAQSystem("rig_a"))

	require.NoError(t, s.Close())
}
