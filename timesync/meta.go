package timesync

import "time"

// FileInfo describes one file recorded during an epoch, as far as sync rules
// care about it. Origin, when known, is the file's start time in seconds on
// the clock the rule is configured for; files without a known origin can
// still witness simultaneity but cannot produce an offset.
type FileInfo struct {
	Name      string    `json:"name"`
	ByteSize  int64     `json:"byte_size,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Origin    *float64  `json:"origin,omitempty"`
}

// EpochMeta is the device-neutral view of one recording epoch that rules
// evaluate. Acquisition packages adapt their richer epoch types into this
// form.
type EpochMeta struct {
	DeviceID string      `json:"device_id"`
	EpochID  string      `json:"epoch_id"`
	Clocks   []ClockType `json:"clocks"`
	Files    []FileInfo  `json:"files,omitempty"`
}

// HasClock reports whether the epoch carries the given clock type.
func (e EpochMeta) HasClock(c ClockType) bool {
	for _, ct := range e.Clocks {
		if ct == c {
			return true
		}
	}
	return false
}

// NodeIDs returns the graph node identities this epoch contributes, one per
// clock. NoTime carries no values and Inherited resolves to another device's
// clock, so neither produces a node.
func (e EpochMeta) NodeIDs() []EpochClockID {
	ids := make([]EpochClockID, 0, len(e.Clocks))
	for _, ct := range e.Clocks {
		if ct == NoTime || ct == Inherited {
			continue
		}
		ids = append(ids, EpochClockID{Device: e.DeviceID, Epoch: e.EpochID, Clock: ct})
	}
	return ids
}
