// Package epoch models recording epochs: contiguous acquisition periods
// with their clocks, time ranges, files, and probe wiring. Acquisition
// packages produce epochs; the session feeds them to the sync graph through
// the SyncMeta adapter.
package epoch

import (
	"context"
	"time"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/timesync"
)

// FileDescriptor is one file recorded during an epoch. Origin, when known,
// is the file's start time in seconds on the device's native clock.
type FileDescriptor struct {
	Name      string    `json:"name" yaml:"name"`
	ByteSize  int64     `json:"byte_size" yaml:"byte_size"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Origin    *float64  `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Epoch is one contiguous recording period of a DAQ system. Build it fully,
// validate it, and treat it as immutable afterwards; the epoch table caches
// and the sync graph both assume epochs never change in place.
type Epoch struct {
	Number    int                  `json:"number"`
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	DeviceID  string               `json:"device_id"`
	Clocks    []timesync.ClockType `json:"clocks"`
	// Ranges holds the [t0, t1] recorded interval per clock, parallel to
	// Clocks.
	Ranges   [][2]float64     `json:"ranges"`
	Files    []FileDescriptor `json:"files,omitempty"`
	ProbeMap []ProbeMapEntry  `json:"probe_map,omitempty"`
}

// Validate checks internal consistency.
func (e Epoch) Validate() error {
	if e.ID == "" {
		return errors.NewInvalidRequestError("epoch has no id")
	}
	if e.DeviceID == "" {
		return errors.NewInvalidRequestError("epoch %s has no device id", e.ID)
	}
	if len(e.Ranges) != len(e.Clocks) {
		return errors.NewInvalidRequestError(
			"epoch %s has %d clocks but %d time ranges", e.ID, len(e.Clocks), len(e.Ranges))
	}
	for _, ct := range e.Clocks {
		if !ct.Valid() {
			return errors.Wrapf(timesync.ErrUnrecognizedClockType, "epoch %s clock %q", e.ID, ct)
		}
	}
	for i, r := range e.Ranges {
		if r[1] < r[0] {
			return errors.NewInvalidRequestError(
				"epoch %s range %d ends before it starts: [%v, %v]", e.ID, i, r[0], r[1])
		}
	}
	for _, p := range e.ProbeMap {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "epoch %s", e.ID)
		}
	}
	return nil
}

// HasClock reports whether the epoch records on the given clock.
func (e Epoch) HasClock(c timesync.ClockType) bool {
	for _, ct := range e.Clocks {
		if ct == c {
			return true
		}
	}
	return false
}

// TimeRange returns the [t0, t1] interval recorded on a clock.
func (e Epoch) TimeRange(c timesync.ClockType) ([2]float64, bool) {
	for i, ct := range e.Clocks {
		if ct == c {
			return e.Ranges[i], true
		}
	}
	return [2]float64{}, false
}

// SyncMeta adapts the epoch into the shape sync rules evaluate.
func (e Epoch) SyncMeta() timesync.EpochMeta {
	meta := timesync.EpochMeta{
		DeviceID: e.DeviceID,
		EpochID:  e.ID,
		Clocks:   append([]timesync.ClockType(nil), e.Clocks...),
	}
	for _, f := range e.Files {
		meta.Files = append(meta.Files, timesync.FileInfo{
			Name:      f.Name,
			ByteSize:  f.ByteSize,
			CreatedAt: f.CreatedAt,
			Origin:    f.Origin,
		})
	}
	return meta
}

// Set is the epoch source a DAQ system exposes to the session.
type Set interface {
	// DeviceID identifies the device all returned epochs belong to.
	DeviceID() string
	// Epochs returns the current epoch table, ordered by epoch number.
	Epochs(ctx context.Context) ([]Epoch, error)
}
