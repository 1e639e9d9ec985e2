package timesync

import (
	"fmt"
	"math"
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// EpochClockID identifies one clock of one epoch of one device. It is the
// node identity of the sync graph. All three fields are required; a zero
// value is invalid.
type EpochClockID struct {
	Device string    `json:"device"`
	Epoch  string    `json:"epoch"`
	Clock  ClockType `json:"clock"`
}

// Validate checks that every field is populated and the clock is part of the
// vocabulary.
func (id EpochClockID) Validate() error {
	if id.Device == "" {
		return errors.Wrap(ErrInvalidMapping, "epoch clock id missing device")
	}
	if id.Epoch == "" {
		return errors.Wrap(ErrInvalidMapping, "epoch clock id missing epoch")
	}
	if !id.Clock.Valid() {
		return errors.Wrapf(ErrUnrecognizedClockType, "%q", string(id.Clock))
	}
	return nil
}

// String renders the identity as "device:epoch:clock".
func (id EpochClockID) String() string {
	return id.Device + ":" + id.Epoch + ":" + string(id.Clock)
}

// ParseEpochClockID parses the "device:epoch:clock" form produced by String.
// Device and epoch labels must not themselves contain a colon.
func ParseEpochClockID(s string) (EpochClockID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return EpochClockID{}, errors.Newf("malformed epoch clock id %q: want device:epoch:clock", s)
	}
	clock, err := ParseClockType(parts[2])
	if err != nil {
		return EpochClockID{}, err
	}
	id := EpochClockID{Device: parts[0], Epoch: parts[1], Clock: clock}
	if err := id.Validate(); err != nil {
		return EpochClockID{}, err
	}
	return id, nil
}

// Comparable reports whether two node identities denote the same time frame,
// meaning an identity mapping between them is always correct:
//
//   - Global clocks of the same family are comparable regardless of device
//     or epoch (UTC on one rig is UTC on another).
//   - Device-global clocks are comparable across epochs of the same device
//     (the counter never reset between them).
//   - Device-local clocks are never comparable to anything but themselves.
func (id EpochClockID) Comparable(o EpochClockID) bool {
	if id == o {
		return true
	}
	c, d := id.Clock, o.Clock
	if !c.Valid() || !d.Valid() {
		return false
	}
	if c == NoTime || d == NoTime || c == Inherited || d == Inherited {
		return false
	}
	if c.Global() && d.Global() {
		return c.Comparable(d)
	}
	if id.Device != o.Device {
		return false
	}
	if c == DevLocalTime || d == DevLocalTime {
		return false
	}
	devGlobal := func(ct ClockType) bool {
		return ct == DevGlobalTime || ct == ApproxDevGlobalTime
	}
	return devGlobal(c) && devGlobal(d)
}

// TimeReference is a timestamp bound to the clock identity it was measured
// on. Times are seconds as float64.
type TimeReference struct {
	ID   EpochClockID `json:"id"`
	Time float64      `json:"time"`
}

// NewTimeReference builds a validated TimeReference. The time must be finite.
func NewTimeReference(id EpochClockID, t float64) (TimeReference, error) {
	if err := id.Validate(); err != nil {
		return TimeReference{}, err
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return TimeReference{}, errors.Newf("time reference for %s is not finite: %v", id, t)
	}
	return TimeReference{ID: id, Time: t}, nil
}

func (r TimeReference) String() string {
	return fmt.Sprintf("%.9g@%s", r.Time, r.ID)
}
