// Package timesync converts timestamps between the unsynchronized clocks of
// acquisition devices.
//
// # Overview
//
// Every device in an experimental rig keeps its own notion of time. Some
// clocks are absolute (UTC from a GPS-disciplined host), some span a whole
// recording device (a DAQ counter that never resets), and some are local to a
// single recording epoch (a counter that restarts at zero for every file).
// timesync models each (device, epoch, clock) identity as a node in a
// directed graph and each known conversion as a linear mapping between two
// nodes:
//
//	t_target = Scale*t_source + Offset
//
// Mappings are discovered by rules that inspect epoch metadata, most commonly
// by spotting files that two devices recorded simultaneously. Once edges
// exist, any timestamp can be carried across the graph by composing the
// mappings along the shortest path:
//
//	(deviceA, t0001, dev_local_time) --filematch--> (deviceB, t0001, dev_local_time)
//	        |                                               |
//	    clocktype                                       clocktype
//	        v                                               v
//	(deviceA, t0001, utc) <------------------------ (deviceB, t0001, utc)
//
// # Core Concepts
//
//   - ClockType: closed vocabulary describing what a clock's values mean
//     (utc, dev_global_time, dev_local_time, ...).
//   - EpochClockID: the graph node, a (device, epoch, clock) triple.
//   - TimeMapping: a directed linear edge with Scale and Offset.
//   - Rule: pluggable discovery strategy (FileMatchRule, FileFindRule).
//   - Graph: the sync graph itself, with BFS conversion, conflict
//     detection, and a JSON-serializable edge record form.
//
// # Usage Example
//
//	rules := []timesync.Rule{filematch}
//	g := timesync.NewGraph(rules, logger)
//
//	// Feed epoch metadata pairwise; matching rules add edges.
//	g.Discover(epochA, epochB)
//
//	// Carry a timestamp from one device's clock to another's.
//	ref := timesync.TimeReference{ID: nodeA, Time: 5.0}
//	out, err := g.Convert(ref, nodeB)
//
// Conversions are deterministic: repeated calls on an unchanged graph return
// identical results, and among equal-length paths the earliest-registered
// edges win.
package timesync
