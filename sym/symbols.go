// Package sym defines canonical glyphs for NDX subsystem markers.
// These symbols are stable across logs, CLI output, and documentation;
// log consumers filter by the "symbol" structured field.
package sym

// Subsystem glyphs.
const (
	Session = "⌂" // session — root object for one experiment directory
	DB      = "⊔" // database/storage layer
	Doc     = "▤" // document store operations
	Time    = "⧖" // time synchronization core
	Map     = "↦" // time mapping construction and composition
	Epoch   = "✦" // epoch discovery and metadata
	DAQ     = "≋" // acquisition systems and file navigation
	Watch   = "⌖" // filesystem watcher events
	Cloud   = "⟳" // cloud API and dataset sync
	Feed    = "⇌" // live graph feed (websocket)
	Config  = "≡" // configuration cascade
)

// Names maps each glyph to its subsystem name.
var Names = map[string]string{
	Session: "session",
	DB:      "db",
	Doc:     "document",
	Time:    "timesync",
	Map:     "mapping",
	Epoch:   "epoch",
	DAQ:     "daq",
	Watch:   "watcher",
	Cloud:   "cloud",
	Feed:    "feed",
	Config:  "config",
}

// Descriptions provides human-readable explanations for help output.
var Descriptions = map[string]string{
	Session: "Session — root object for one experiment directory",
	DB:      "Database — SQLite storage layer",
	Doc:     "Document — metadata document store",
	Time:    "Timesync — clock conversion core",
	Map:     "Mapping — linear time mappings",
	Epoch:   "Epoch — recording epoch metadata",
	DAQ:     "DAQ — acquisition system access",
	Watch:   "Watcher — filesystem change events",
	Cloud:   "Cloud — dataset upload/download/sync",
	Feed:    "Feed — live sync-graph streaming",
	Config:  "Config — layered configuration",
}

// Order defines the canonical listing order for status output.
var Order = []string{Session, DB, Doc, Time, Map, Epoch, DAQ, Watch, Cloud, Feed, Config}

// Name returns the subsystem name for a glyph, or "" when unknown.
func Name(glyph string) string {
	return Names[glyph]
}
