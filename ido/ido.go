// Package ido generates and validates NDX identifiers.
//
// An identifier is a hexadecimal string built from the current time and
// a random component: {time_hex}_{random_hex}. Sorting identifiers
// alphabetically also sorts them by creation time, which keeps document
// listings chronological without a separate timestamp index.
//
// UUIDs are accepted as valid identifiers for interoperability with
// datasets produced by other tools.
package ido

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ndx-io/NDX/errors"
)

// ndxPattern matches the native identifier form: hexstring_hexstring.
var ndxPattern = regexp.MustCompile(`(?i)^[0-9a-f]+_[0-9a-f]+$`)

// New generates a new unique identifier.
//
// The identifier is constructed from the current time in microseconds
// (time-sortable prefix) and 48 random bits (uniqueness for identifiers
// minted in the same microsecond).
func New() string {
	timeUS := time.Now().UnixMicro()

	var buf [8]byte
	if _, err := crand.Read(buf[2:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back
		// to the nanosecond clock rather than returning an error from
		// every identifier mint.
		binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	}
	random48 := binary.BigEndian.Uint64(buf[:]) & 0xffffffffffff

	return fmt.Sprintf("%x_%012x", timeUS, random48)
}

// IsValid reports whether id is a recognized identifier: either the
// native {time_hex}_{random_hex} form or a UUID.
func IsValid(id string) bool {
	if ndxPattern.MatchString(id) {
		return true
	}
	if _, err := uuid.Parse(id); err == nil {
		return true
	}
	return false
}

// Timestamp extracts the creation time from a native identifier.
// UUIDs carry no usable creation time and are rejected.
func Timestamp(id string) (time.Time, error) {
	if !ndxPattern.MatchString(id) {
		return time.Time{}, errors.Newf("identifier %q has no time prefix", id)
	}
	var timeHex string
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			timeHex = id[:i]
			break
		}
	}
	us, err := strconv.ParseInt(timeHex, 16, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "identifier %q time prefix", id)
	}
	return time.UnixMicro(us), nil
}
