// Package daq ties together the pieces of one data acquisition device: a
// file navigator that discovers epochs on disk and a reader that refines
// them from device metadata. A System implements epoch.Set, which is all
// the session needs to feed the sync graph.
package daq

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ndx-io/NDX/daq/navigator"
	"github.com/ndx-io/NDX/epoch"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// System is one acquisition device in a session. The epoch table is cached
// after the first scan; Invalidate drops the cache when the watcher reports
// directory changes.
type System struct {
	name   string
	nav    *navigator.Navigator
	reader Reader
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	cached []epoch.Epoch
	valid  bool
}

// NewSystem builds a System around a navigator. An empty name defaults to
// the navigator's device ID; a nil reader defaults to SidecarReader.
func NewSystem(name string, nav *navigator.Navigator, reader Reader, logger *zap.SugaredLogger) (*System, error) {
	if nav == nil {
		return nil, errors.NewInvalidRequestError("daq system needs a navigator")
	}
	if name == "" {
		name = nav.DeviceID()
	}
	if reader == nil {
		reader = SidecarReader{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &System{name: name, nav: nav, reader: reader, logger: logger}, nil
}

// Name returns the system's session-unique name.
func (s *System) Name() string { return s.name }

// DeviceID identifies the device all epochs belong to.
func (s *System) DeviceID() string { return s.nav.DeviceID() }

// Navigator returns the underlying file navigator.
func (s *System) Navigator() *navigator.Navigator { return s.nav }

// Epochs returns the epoch table, scanning and passing each epoch through
// the reader on a cache miss.
func (s *System) Epochs(ctx context.Context) ([]epoch.Epoch, error) {
	s.mu.RLock()
	if s.valid {
		epochs := append([]epoch.Epoch(nil), s.cached...)
		s.mu.RUnlock()
		return epochs, nil
	}
	s.mu.RUnlock()

	scanned, err := s.nav.Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "daq system %s", s.name)
	}
	epochs := make([]epoch.Epoch, 0, len(scanned))
	for _, ep := range scanned {
		refined, err := s.reader.ReadEpoch(ctx, ep)
		if err != nil {
			return nil, errors.Wrapf(err, "daq system %s epoch %s", s.name, ep.ID)
		}
		if err := refined.Validate(); err != nil {
			return nil, errors.Wrapf(err, "daq system %s reader %s", s.name, s.reader.Name())
		}
		epochs = append(epochs, refined)
	}

	s.mu.Lock()
	s.cached = epochs
	s.valid = true
	s.mu.Unlock()

	s.logger.Debugw("Epoch table built",
		"symbol", sym.Epoch,
		"system", s.name,
		"epochs", len(epochs),
	)
	return append([]epoch.Epoch(nil), epochs...), nil
}

// EpochByID returns one epoch from the table.
func (s *System) EpochByID(ctx context.Context, id string) (epoch.Epoch, error) {
	epochs, err := s.Epochs(ctx)
	if err != nil {
		return epoch.Epoch{}, err
	}
	for _, ep := range epochs {
		if ep.ID == id {
			return ep, nil
		}
	}
	return epoch.Epoch{}, errors.Wrapf(errors.ErrNotFound, "epoch %s in system %s", id, s.name)
}

// Invalidate drops the cached epoch table. The next Epochs call rescans.
func (s *System) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.valid = false
	s.mu.Unlock()
}
