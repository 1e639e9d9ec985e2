package timesync

import (
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// ClockType labels what a clock's values mean. The vocabulary is closed:
// labels outside this set are rejected by ParseClockType and never enter the
// graph.
type ClockType string

const (
	// UTC is absolute wall-clock time, trusted.
	UTC ClockType = "utc"
	// ApproxUTC is wall-clock time from an undisciplined source, accurate to
	// roughly a second.
	ApproxUTC ClockType = "approx_utc"
	// ExpGlobalTime counts seconds on a clock shared by the whole experiment.
	ExpGlobalTime ClockType = "exp_global_time"
	// ApproxExpGlobalTime is ExpGlobalTime with loose accuracy.
	ApproxExpGlobalTime ClockType = "approx_exp_global_time"
	// DevGlobalTime counts seconds on a clock that spans all epochs of one
	// device, e.g. a DAQ counter that never resets.
	DevGlobalTime ClockType = "dev_global_time"
	// ApproxDevGlobalTime is DevGlobalTime with loose accuracy.
	ApproxDevGlobalTime ClockType = "approx_dev_global_time"
	// DevLocalTime counts seconds on a clock valid within a single epoch of a
	// single device, restarting for the next epoch.
	DevLocalTime ClockType = "dev_local_time"
	// NoTime marks a device with no usable clock at all.
	NoTime ClockType = "no_time"
	// Inherited marks a clock that delegates to an underlying device's clock.
	Inherited ClockType = "inherited"
)

// clockTypes is the closed vocabulary in canonical order.
var clockTypes = []ClockType{
	UTC,
	ApproxUTC,
	ExpGlobalTime,
	ApproxExpGlobalTime,
	DevGlobalTime,
	ApproxDevGlobalTime,
	DevLocalTime,
	NoTime,
	Inherited,
}

// ParseClockType normalizes a label (trimmed, lowercased) and returns the
// matching ClockType. Unknown labels return ErrUnrecognizedClockType.
func ParseClockType(label string) (ClockType, error) {
	normalized := ClockType(strings.ToLower(strings.TrimSpace(label)))
	for _, ct := range clockTypes {
		if normalized == ct {
			return ct, nil
		}
	}
	return "", errors.Wrapf(ErrUnrecognizedClockType, "%q", label)
}

// ClockTypes returns the full vocabulary in canonical order.
func ClockTypes() []ClockType {
	out := make([]ClockType, len(clockTypes))
	copy(out, clockTypes)
	return out
}

// Valid reports whether c is part of the vocabulary.
func (c ClockType) Valid() bool {
	for _, ct := range clockTypes {
		if c == ct {
			return true
		}
	}
	return false
}

func (c ClockType) String() string { return string(c) }

// NeedsEpoch reports whether values of this clock are only meaningful
// relative to a specific epoch.
func (c ClockType) NeedsEpoch() bool {
	return c == DevLocalTime
}

// Global reports whether the clock is shared beyond a single device.
func (c ClockType) Global() bool {
	switch c {
	case UTC, ApproxUTC, ExpGlobalTime, ApproxExpGlobalTime:
		return true
	}
	return false
}

// DeviceScoped reports whether the clock belongs to one device.
func (c ClockType) DeviceScoped() bool {
	switch c {
	case DevGlobalTime, ApproxDevGlobalTime, DevLocalTime:
		return true
	}
	return false
}

// Approximate reports whether the clock carries loose accuracy.
func (c ClockType) Approximate() bool {
	switch c {
	case ApproxUTC, ApproxExpGlobalTime, ApproxDevGlobalTime:
		return true
	}
	return false
}

// Comparable reports whether two clock types denote the same time frame, so
// that values on one can be read directly on the other. Only global clocks
// are comparable at the type level; device-scoped clocks additionally depend
// on which device (and epoch) owns them, which EpochClockID.Comparable
// accounts for.
func (c ClockType) Comparable(o ClockType) bool {
	if !c.Global() || !o.Global() {
		return false
	}
	if c == o {
		return true
	}
	switch {
	case c == UTC && o == ApproxUTC, c == ApproxUTC && o == UTC:
		return true
	case c == ExpGlobalTime && o == ApproxExpGlobalTime,
		c == ApproxExpGlobalTime && o == ExpGlobalTime:
		return true
	}
	return false
}
