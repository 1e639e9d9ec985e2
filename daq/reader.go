package daq

import (
	"context"

	"github.com/ndx-io/NDX/epoch"
)

// Reader refines epochs the navigator discovered with whatever the device's
// own metadata knows: extra clocks, corrected ranges, per-file origins.
// Readers work at the metadata level only; parsing vendor sample formats is
// out of scope.
type Reader interface {
	// Name identifies the reader implementation in logs and errors.
	Name() string
	// ReadEpoch returns the refined epoch. Returning the input unchanged
	// is valid.
	ReadEpoch(ctx context.Context, ep epoch.Epoch) (epoch.Epoch, error)
}

// SidecarReader is the built-in reader: it trusts the epoch.yaml sidecar
// the navigator already parsed and changes nothing.
type SidecarReader struct{}

// Name implements Reader.
func (SidecarReader) Name() string { return "sidecar" }

// ReadEpoch implements Reader.
func (SidecarReader) ReadEpoch(_ context.Context, ep epoch.Epoch) (epoch.Epoch, error) {
	return ep, nil
}
