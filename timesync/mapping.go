package timesync

import (
	"fmt"
	"math"

	"github.com/ndx-io/NDX/errors"
)

// Tolerance is the absolute slack used when comparing scales and offsets,
// both for mapping equivalence and for agreement between independently
// derived offsets.
const Tolerance = 1e-9

// KindLinear is the only mapping kind currently defined. The Kind field
// exists so serialized edges stay readable if other forms are ever added.
const KindLinear = "linear"

// TimeMapping is a directed edge of the sync graph: it converts timestamps
// from the Source clock identity to the Target one as
//
//	t_target = Scale*t_source + Offset
//
// Construct mappings with NewMapping or IdentityMapping; the graph rejects
// mappings that fail Validate.
type TimeMapping struct {
	Source EpochClockID `json:"source"`
	Target EpochClockID `json:"target"`
	Kind   string       `json:"kind"`
	Scale  float64      `json:"scale"`
	Offset float64      `json:"offset"`
}

// NewMapping builds a validated linear mapping.
func NewMapping(source, target EpochClockID, scale, offset float64) (TimeMapping, error) {
	m := TimeMapping{Source: source, Target: target, Kind: KindLinear, Scale: scale, Offset: offset}
	if err := m.Validate(); err != nil {
		return TimeMapping{}, err
	}
	return m, nil
}

// IdentityMapping builds the mapping that reads a clock's values unchanged on
// another identity of the same frame.
func IdentityMapping(source, target EpochClockID) (TimeMapping, error) {
	return NewMapping(source, target, 1, 0)
}

// Validate checks the mapping can convert and invert: finite non-zero scale,
// finite offset, fully populated endpoints. A self-mapping is only valid when
// it is the identity.
func (m TimeMapping) Validate() error {
	if err := m.Source.Validate(); err != nil {
		return err
	}
	if err := m.Target.Validate(); err != nil {
		return err
	}
	if m.Kind != KindLinear {
		return errors.Wrapf(ErrInvalidMapping, "unknown kind %q", m.Kind)
	}
	if m.Scale == 0 || math.IsNaN(m.Scale) || math.IsInf(m.Scale, 0) {
		return errors.Wrapf(ErrInvalidMapping, "scale %v", m.Scale)
	}
	if math.IsNaN(m.Offset) || math.IsInf(m.Offset, 0) {
		return errors.Wrapf(ErrInvalidMapping, "offset %v", m.Offset)
	}
	if m.Source == m.Target && !m.Identity() {
		return errors.Wrapf(ErrInvalidMapping, "non-identity self-mapping on %s", m.Source)
	}
	return nil
}

// Apply converts a source-clock timestamp to the target clock.
func (m TimeMapping) Apply(t float64) float64 {
	return m.Scale*t + m.Offset
}

// Invert returns the reverse mapping, converting target-clock timestamps
// back to the source clock.
func (m TimeMapping) Invert() (TimeMapping, error) {
	if err := m.Validate(); err != nil {
		return TimeMapping{}, err
	}
	return TimeMapping{
		Source: m.Target,
		Target: m.Source,
		Kind:   KindLinear,
		Scale:  1 / m.Scale,
		Offset: -m.Offset / m.Scale,
	}, nil
}

// Compose chains two mappings into one converting from m.Source to
// next.Target. It requires m.Target == next.Source and returns
// ErrIncompatibleMapping otherwise.
func (m TimeMapping) Compose(next TimeMapping) (TimeMapping, error) {
	if err := m.Validate(); err != nil {
		return TimeMapping{}, err
	}
	if err := next.Validate(); err != nil {
		return TimeMapping{}, err
	}
	if m.Target != next.Source {
		return TimeMapping{}, errors.Wrapf(ErrIncompatibleMapping,
			"%s does not feed %s", m.Target, next.Source)
	}
	return TimeMapping{
		Source: m.Source,
		Target: next.Target,
		Kind:   KindLinear,
		Scale:  m.Scale * next.Scale,
		Offset: next.Scale*m.Offset + next.Offset,
	}, nil
}

// Identity reports whether the mapping leaves timestamps unchanged.
func (m TimeMapping) Identity() bool {
	return math.Abs(m.Scale-1) <= Tolerance && math.Abs(m.Offset) <= Tolerance
}

// Equivalent reports whether two mappings connect the same endpoints with the
// same transform, within Tolerance.
func (m TimeMapping) Equivalent(o TimeMapping) bool {
	return m.Source == o.Source &&
		m.Target == o.Target &&
		math.Abs(m.Scale-o.Scale) <= Tolerance &&
		math.Abs(m.Offset-o.Offset) <= Tolerance
}

func (m TimeMapping) String() string {
	return fmt.Sprintf("%s -> %s (scale=%g offset=%g)", m.Source, m.Target, m.Scale, m.Offset)
}
