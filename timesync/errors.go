package timesync

import (
	"fmt"

	"github.com/ndx-io/NDX/errors"
)

// Sentinel errors for the sync domain. Callers match them with errors.Is.
var (
	// ErrUnrecognizedClockType is returned when a label is not part of the
	// closed ClockType vocabulary.
	ErrUnrecognizedClockType = errors.New("unrecognized clock type")

	// ErrInvalidMapping is returned for mappings that could never convert a
	// timestamp: non-finite or zero scale, non-finite offset, or an
	// incomplete endpoint identity.
	ErrInvalidMapping = errors.New("invalid time mapping")

	// ErrIncompatibleMapping is returned when two mappings are composed but
	// the first one's target is not the second one's source.
	ErrIncompatibleMapping = errors.New("incompatible time mappings")

	// ErrConflictingMapping is returned when an edge is added between two
	// nodes that already carry a materially different mapping. The concrete
	// error is always a *ConflictingMappingError.
	ErrConflictingMapping = errors.New("conflicting time mapping")

	// ErrNoPathFound is returned by Convert when the graph holds no chain of
	// mappings between the requested nodes.
	ErrNoPathFound = errors.New("no conversion path found")
)

// ConflictingMappingError reports a rejected edge. The existing mapping stays
// in the graph untouched; the proposed one is carried so callers can log or
// surface the disagreement.
type ConflictingMappingError struct {
	Existing TimeMapping
	Proposed TimeMapping
}

func (e *ConflictingMappingError) Error() string {
	return fmt.Sprintf("conflicting time mapping for %s -> %s: existing (scale=%g offset=%g) vs proposed (scale=%g offset=%g)",
		e.Existing.Source, e.Existing.Target,
		e.Existing.Scale, e.Existing.Offset,
		e.Proposed.Scale, e.Proposed.Offset)
}

// Is lets errors.Is(err, ErrConflictingMapping) match the concrete type.
func (e *ConflictingMappingError) Is(target error) bool {
	return target == ErrConflictingMapping
}
