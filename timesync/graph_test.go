package timesync

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ndx-io/NDX/errors"
)

func mustAddEdge(t *testing.T, g *Graph, source, target EpochClockID, scale, offset float64) {
	t.Helper()
	m := mustMapping(t, source, target, scale, offset)
	if err := g.AddEdge(m, "manual"); err != nil {
		t.Fatalf("AddEdge(%s): %v", m, err)
	}
}

func mustConvert(t *testing.T, g *Graph, id EpochClockID, at float64, target EpochClockID) float64 {
	t.Helper()
	out, err := g.Convert(TimeReference{ID: id, Time: at}, target)
	if err != nil {
		t.Fatalf("Convert(%g@%s -> %s): %v", at, id, target, err)
	}
	if out.ID != target {
		t.Fatalf("converted reference bound to %s, want %s", out.ID, target)
	}
	return out.Time
}

func TestGraph_SelfConversionOnEmptyGraph(t *testing.T) {
	g := NewGraph(nil, nil)
	id := ecid("devA", "t0001", DevLocalTime)
	if got := mustConvert(t, g, id, 42.5, id); got != 42.5 {
		t.Fatalf("self conversion = %g, want 42.5", got)
	}
}

func TestGraph_ConvertAcrossEdge(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 1, 500)

	if got := mustConvert(t, g, a, 10, b); got != 510 {
		t.Fatalf("forward = %g, want 510", got)
	}
	// The inverse edge is stored alongside, no explicit registration needed.
	if got := mustConvert(t, g, b, 510, a); got != 10 {
		t.Fatalf("inverse = %g, want 10", got)
	}
}

func TestGraph_ConvertChain(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	c := ecid("devC", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 2, 0)
	mustAddEdge(t, g, b, c, 1, 100)

	if got := mustConvert(t, g, a, 5, c); got != 110 {
		t.Fatalf("chained = %g, want 110", got)
	}
	if got := mustConvert(t, g, c, 110, a); got != 5 {
		t.Fatalf("chained inverse = %g, want 5", got)
	}
}

func TestGraph_NoPath(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	if err := g.AddNode(a); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(b); err != nil {
		t.Fatal(err)
	}

	_, err := g.Convert(TimeReference{ID: a, Time: 1}, b)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("err = %v, want ErrNoPathFound", err)
	}

	// Unknown nodes are unreachable too, not a distinct failure.
	_, err = g.Convert(TimeReference{ID: a, Time: 1}, ecid("ghost", "t9", UTC))
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("unknown target err = %v, want ErrNoPathFound", err)
	}
}

func TestGraph_ShortestPathWins(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	c := ecid("devC", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 1, 10)
	mustAddEdge(t, g, b, c, 1, 20)
	mustAddEdge(t, g, a, c, 1, 5)

	// The direct edge beats the two-hop composition.
	if got := mustConvert(t, g, a, 0, c); got != 5 {
		t.Fatalf("direct = %g, want 5", got)
	}
}

func TestGraph_EqualLengthTieBreakIsStable(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b1 := ecid("devB1", "t0001", DevLocalTime)
	b2 := ecid("devB2", "t0001", DevLocalTime)
	c := ecid("devC", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b1, 1, 1)
	mustAddEdge(t, g, b1, c, 1, 1)
	mustAddEdge(t, g, a, b2, 1, 10)
	mustAddEdge(t, g, b2, c, 1, 10)

	// Both paths have two edges; the earlier-registered one wins, every time.
	for i := 0; i < 50; i++ {
		if got := mustConvert(t, g, a, 0, c); got != 2 {
			t.Fatalf("iteration %d: converted to %g, want 2", i, got)
		}
	}
}

func TestGraph_ConflictKeepsFirstMapping(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 1, 5)

	m7 := mustMapping(t, a, b, 1, 7)
	err := g.AddEdge(m7, "manual")
	if !errors.Is(err, ErrConflictingMapping) {
		t.Fatalf("err = %v, want ErrConflictingMapping", err)
	}
	var conflict *ConflictingMappingError
	if !errors.As(err, &conflict) {
		t.Fatalf("err %T is not *ConflictingMappingError", err)
	}
	if conflict.Existing.Offset != 5 || conflict.Proposed.Offset != 7 {
		t.Fatalf("conflict carries (existing=%g, proposed=%g), want (5, 7)", conflict.Existing.Offset, conflict.Proposed.Offset)
	}

	// The graph still answers with the first mapping.
	if got := mustConvert(t, g, a, 0, b); got != 5 {
		t.Fatalf("converted = %g, want 5", got)
	}
}

func TestGraph_ConflictDetectedAcrossOrientation(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 1, 5)

	// b->a with offset -9 contradicts the stored inverse (offset -5).
	m := mustMapping(t, b, a, 1, -9)
	err := g.AddEdge(m, "manual")
	if !errors.Is(err, ErrConflictingMapping) {
		t.Fatalf("err = %v, want ErrConflictingMapping", err)
	}

	// A b->a edge agreeing with the stored inverse is a no-op.
	agree := mustMapping(t, b, a, 1, -5)
	if err := g.AddEdge(agree, "manual"); err != nil {
		t.Fatalf("agreeing inverse rejected: %v", err)
	}
}

func TestGraph_EquivalentReAddIsNoop(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	mustAddEdge(t, g, a, b, 1, 500)
	before := g.EdgeCount()

	mustAddEdge(t, g, a, b, 1, 500)
	if g.EdgeCount() != before {
		t.Fatalf("edge count changed on equivalent re-add: %d -> %d", before, g.EdgeCount())
	}
}

func TestGraph_AutoLinksComparableClocks(t *testing.T) {
	g := NewGraph(nil, nil)
	utcA := ecid("devA", "t0001", UTC)
	utcB := ecid("devB", "t0042", UTC)
	if err := g.AddNode(utcA); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(utcB); err != nil {
		t.Fatal(err)
	}

	// UTC is UTC everywhere; the graph links the nodes by itself.
	if got := mustConvert(t, g, utcA, 1234.5, utcB); got != 1234.5 {
		t.Fatalf("utc bridge = %g, want 1234.5", got)
	}
	_, rule, ok := g.Edge(utcA, utcB)
	if !ok || rule != DiscoveredByClockLink {
		t.Fatalf("auto edge rule = %q (ok=%v), want %q", rule, ok, DiscoveredByClockLink)
	}
}

func TestGraph_AutoLinksDevGlobalAcrossEpochs(t *testing.T) {
	g := NewGraph(nil, nil)
	e1 := ecid("daq", "t0001", DevGlobalTime)
	e2 := ecid("daq", "t0002", DevGlobalTime)
	other := ecid("other", "t0001", DevGlobalTime)
	for _, id := range []EpochClockID{e1, e2, other} {
		if err := g.AddNode(id); err != nil {
			t.Fatal(err)
		}
	}

	if got := mustConvert(t, g, e1, 77, e2); got != 77 {
		t.Fatalf("device-global bridge = %g, want 77", got)
	}
	// A different device's global clock stays unlinked.
	if _, err := g.Convert(TimeReference{ID: e1, Time: 1}, other); !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("cross-device err = %v, want ErrNoPathFound", err)
	}
}

func TestGraph_DevLocalEpochsStayUnlinked(t *testing.T) {
	g := NewGraph(nil, nil)
	e1 := ecid("daq", "t0001", DevLocalTime)
	e2 := ecid("daq", "t0002", DevLocalTime)
	if err := g.AddNode(e1); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(e2); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Convert(TimeReference{ID: e1, Time: 0}, e2); !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("err = %v, want ErrNoPathFound", err)
	}
}

// utcBridgeGraph wires two devices' local clocks to their UTC clocks; the UTC
// nodes auto-link, so local time on one device reaches local time on the
// other through three edges.
func utcBridgeGraph(t *testing.T) (*Graph, EpochClockID, EpochClockID) {
	t.Helper()
	g := NewGraph(nil, nil)
	localA := ecid("devA", "t0001", DevLocalTime)
	utcA := ecid("devA", "t0001", UTC)
	localB := ecid("devB", "t0001", DevLocalTime)
	utcB := ecid("devB", "t0001", UTC)
	mustAddEdge(t, g, localA, utcA, 1, 100)
	mustAddEdge(t, g, localB, utcB, 1, 40)
	return g, localA, localB
}

func TestGraph_ConvertAcrossUTCBridge(t *testing.T) {
	g, localA, localB := utcBridgeGraph(t)
	if got := mustConvert(t, g, localA, 10, localB); got != 70 {
		t.Fatalf("bridge conversion = %g, want 70", got)
	}
}

func TestGraph_InvalidateNode(t *testing.T) {
	g, localA, localB := utcBridgeGraph(t)

	// Warm the path cache, then cut the bridge.
	if got := mustConvert(t, g, localA, 10, localB); got != 70 {
		t.Fatalf("warm-up = %g, want 70", got)
	}
	nodesBefore := g.NodeCount()
	edgesBefore := g.EdgeCount()

	g.InvalidateNode(ecid("devA", "t0001", UTC))

	if g.NodeCount() != nodesBefore-1 {
		t.Fatalf("node count = %d, want %d", g.NodeCount(), nodesBefore-1)
	}
	if g.EdgeCount() != edgesBefore-4 {
		t.Fatalf("edge count = %d, want %d", g.EdgeCount(), edgesBefore-4)
	}
	if _, err := g.Convert(TimeReference{ID: localA, Time: 10}, localB); !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("err after invalidation = %v, want ErrNoPathFound", err)
	}

	// Unknown node is a no-op.
	g.InvalidateNode(ecid("ghost", "t9", UTC))

	// Re-learning the cut edge restores the path.
	mustAddEdge(t, g, localA, ecid("devA", "t0001", UTC), 1, 100)
	if got := mustConvert(t, g, localA, 10, localB); got != 70 {
		t.Fatalf("restored = %g, want 70", got)
	}
}

func TestGraph_Clear(t *testing.T) {
	g, localA, localB := utcBridgeGraph(t)
	g.Clear()

	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Fatalf("counts after clear = (%d, %d), want (0, 0)", g.NodeCount(), g.EdgeCount())
	}
	if _, err := g.Convert(TimeReference{ID: localA, Time: 10}, localB); !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("err = %v, want ErrNoPathFound", err)
	}
	// Self-conversion survives a cleared graph.
	if got := mustConvert(t, g, localA, 3, localA); got != 3 {
		t.Fatalf("self = %g, want 3", got)
	}
}

func TestGraph_RecordsRoundTrip(t *testing.T) {
	g, localA, localB := utcBridgeGraph(t)
	records := g.Records()
	if len(records) != g.EdgeCount() {
		t.Fatalf("records = %d, edges = %d", len(records), g.EdgeCount())
	}
	for i := 1; i < len(records); i++ {
		prev := records[i-1].Source.String() + "|" + records[i-1].Target.String()
		cur := records[i].Source.String() + "|" + records[i].Target.String()
		if prev >= cur {
			t.Fatalf("records out of order at %d: %s >= %s", i, prev, cur)
		}
	}

	// Through JSON, as persisted edges travel.
	raw, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []EdgeRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fresh := NewGraph(nil, nil)
	if err := fresh.LoadRecords(decoded); err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if fresh.EdgeCount() != g.EdgeCount() {
		t.Fatalf("edge count after load = %d, want %d", fresh.EdgeCount(), g.EdgeCount())
	}
	if got := mustConvert(t, fresh, localA, 10, localB); got != 70 {
		t.Fatalf("reloaded conversion = %g, want 70", got)
	}

	// Rule attribution survives the trip.
	_, rule, ok := fresh.Edge(ecid("devA", "t0001", UTC), ecid("devB", "t0001", UTC))
	if !ok || rule != DiscoveredByClockLink {
		t.Fatalf("auto edge rule after load = %q (ok=%v)", rule, ok)
	}
	_, rule, ok = fresh.Edge(localA, ecid("devA", "t0001", UTC))
	if !ok || rule != "manual" {
		t.Fatalf("manual edge rule after load = %q (ok=%v)", rule, ok)
	}
}

func TestGraph_LoadRecordsConflict(t *testing.T) {
	g := NewGraph(nil, nil)
	a := ecid("devA", "t0001", DevLocalTime)
	b := ecid("devB", "t0001", DevLocalTime)
	records := []EdgeRecord{
		{Source: a, Target: b, Kind: KindLinear, Scale: 1, Offset: 5, DiscoveredBy: "manual"},
		{Source: a, Target: b, Kind: KindLinear, Scale: 1, Offset: 7, DiscoveredBy: "manual"},
	}
	if err := g.LoadRecords(records); !errors.Is(err, ErrConflictingMapping) {
		t.Fatalf("err = %v, want ErrConflictingMapping", err)
	}
}

func TestGraph_LoadRecordsRejectsMalformed(t *testing.T) {
	g := NewGraph(nil, nil)
	bad := []EdgeRecord{{
		Source: ecid("devA", "t0001", DevLocalTime),
		Target: ecid("devB", "t0001", DevLocalTime),
		Kind:   KindLinear,
		Scale:  0,
	}}
	if err := g.LoadRecords(bad); !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("err = %v, want ErrInvalidMapping", err)
	}
}

func TestGraph_DiscoverFileMatch(t *testing.T) {
	rule, err := NewFileMatchRule(FileMatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	g := NewGraph([]Rule{rule}, nil)

	a := epochWithFiles("daq", "t0001", FileInfo{Name: "rec_001.ncs", Origin: origin(0)})
	b := epochWithFiles("cam", "t0001", FileInfo{Name: "rec_001.avi", Origin: origin(1000)})

	m, by, err := g.Discover(a, b)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if by != RuleKindFileMatch {
		t.Fatalf("discovered by %q, want %q", by, RuleKindFileMatch)
	}
	if m.Offset != 1000 {
		t.Fatalf("offset = %g, want 1000", m.Offset)
	}

	// The edge landed in the graph.
	if got := mustConvert(t, g, ecid("daq", "t0001", DevLocalTime), 5, ecid("cam", "t0001", DevLocalTime)); got != 1005 {
		t.Fatalf("converted = %g, want 1005", got)
	}

	// Re-discovery of the same evidence is idempotent.
	if _, _, err := g.Discover(a, b); err != nil {
		t.Fatalf("second Discover: %v", err)
	}
}

func TestGraph_DiscoverNoMatch(t *testing.T) {
	rule, _ := NewFileMatchRule(FileMatchOptions{})
	g := NewGraph([]Rule{rule}, nil)

	a := epochWithFiles("daq", "t0001", FileInfo{Name: "rec_001.ncs", Origin: origin(0)})
	b := epochWithFiles("cam", "t0001", FileInfo{Name: "other.avi", Origin: origin(1000)})

	m, by, err := g.Discover(a, b)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if by != "" || m != (TimeMapping{}) {
		t.Fatalf("no-match should return zero values, got (%v, %q)", m, by)
	}
}

func TestGraph_DiscoverFirstMatchWins(t *testing.T) {
	filematch, _ := NewFileMatchRule(FileMatchOptions{})
	filefind, _ := NewFileFindRule(FileFindOptions{Patterns: []string{"trig.bin"}})

	a := epochWithFiles("daq", "t0001",
		FileInfo{Name: "trig.bin"},
		FileInfo{Name: "rec_001.ncs", Origin: origin(0)},
	)
	b := epochWithFiles("cam", "t0001",
		FileInfo{Name: "trig.bin"},
		FileInfo{Name: "rec_001.avi", Origin: origin(1000)},
	)

	g1 := NewGraph([]Rule{filefind, filematch}, nil)
	_, by, err := g1.Discover(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if by != RuleKindFileFind {
		t.Fatalf("first registered rule should win, got %q", by)
	}

	g2 := NewGraph([]Rule{filematch, filefind}, nil)
	_, by, err = g2.Discover(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if by != RuleKindFileMatch {
		t.Fatalf("first registered rule should win, got %q", by)
	}
}

func TestGraph_AddEpochSkipsUnsyncableClocks(t *testing.T) {
	g := NewGraph(nil, nil)
	meta := EpochMeta{
		DeviceID: "daq",
		EpochID:  "t0001",
		Clocks:   []ClockType{DevLocalTime, NoTime, Inherited},
	}
	if err := g.AddEpoch(meta); err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 1 {
		t.Fatalf("node count = %d, want 1", g.NodeCount())
	}
	if !g.HasNode(ecid("daq", "t0001", DevLocalTime)) {
		t.Fatal("dev_local_time node missing")
	}
}

func TestGraph_RejectsInvalidInput(t *testing.T) {
	g := NewGraph(nil, nil)

	if err := g.AddNode(EpochClockID{}); err == nil {
		t.Error("zero node should be rejected")
	}
	if err := g.AddEdge(TimeMapping{}, "manual"); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("zero mapping err = %v, want ErrInvalidMapping", err)
	}
	bad := TimeMapping{
		Source: ecid("devA", "t0001", DevLocalTime),
		Target: ecid("devB", "t0001", DevLocalTime),
		Kind:   KindLinear,
		Scale:  0,
	}
	if err := g.AddEdge(bad, "manual"); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("zero scale err = %v, want ErrInvalidMapping", err)
	}
}

func TestGraph_ConcurrentUse(t *testing.T) {
	g := NewGraph(nil, nil)
	utcA := ecid("devA", "t0001", UTC)
	utcB := ecid("devB", "t0001", UTC)
	if err := g.AddNode(utcA); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(utcB); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := g.Convert(TimeReference{ID: utcA, Time: float64(j)}, utcB)
				if err != nil {
					t.Errorf("Convert: %v", err)
					return
				}
				if out.Time != float64(j) {
					t.Errorf("Convert = %g, want %d", out.Time, j)
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			local := ecid(fmt.Sprintf("dev%d", n), "t0001", DevLocalTime)
			m, err := NewMapping(local, utcA, 1, float64(n))
			if err != nil {
				t.Errorf("NewMapping: %v", err)
				return
			}
			if err := g.AddEdge(m, "manual"); err != nil {
				t.Errorf("AddEdge: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if g.NodeCount() != 6 {
		t.Fatalf("node count = %d, want 6", g.NodeCount())
	}
}

func TestGraph_AddRuleDeduplicates(t *testing.T) {
	g := NewGraph(nil, nil)
	if len(g.Rules()) != 0 {
		t.Fatalf("new graph carries %d rules", len(g.Rules()))
	}

	find, err := NewFileFindRule(FileFindOptions{Patterns: []string{"trig.bin"}})
	if err != nil {
		t.Fatal(err)
	}
	g.AddRule(find)
	g.AddRule(find)

	again, err := NewFileFindRule(FileFindOptions{Patterns: []string{"trig.bin"}})
	if err != nil {
		t.Fatal(err)
	}
	g.AddRule(again)
	if n := len(g.Rules()); n != 1 {
		t.Fatalf("equal rules must collapse, have %d", n)
	}

	other, err := NewFileFindRule(FileFindOptions{Patterns: []string{"sync.dat"}})
	if err != nil {
		t.Fatal(err)
	}
	g.AddRule(other)
	g.AddRule(nil)
	if n := len(g.Rules()); n != 2 {
		t.Fatalf("rule count = %d, want 2", n)
	}
}
