package sync

import (
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// Mode selects a sync strategy.
type Mode string

const (
	// DownloadNew fetches documents present remotely but not locally.
	DownloadNew Mode = "download_new"
	// UploadNew pushes documents present locally but not remotely.
	UploadNew Mode = "upload_new"
	// MirrorToRemote makes the remote match the local state.
	MirrorToRemote Mode = "mirror_to_remote"
	// MirrorFromRemote makes the local state match the remote.
	MirrorFromRemote Mode = "mirror_from_remote"
	// TwoWay merges both sides, propagating deletions and flagging
	// documents added on both sides as conflicts.
	TwoWay Mode = "two_way"
)

// Modes lists every sync mode.
func Modes() []Mode {
	return []Mode{DownloadNew, UploadNew, MirrorToRemote, MirrorFromRemote, TwoWay}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes() {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode validates a mode string, typically from a CLI flag.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		names := make([]string, 0, len(Modes()))
		for _, known := range Modes() {
			names = append(names, string(known))
		}
		return "", errors.NewInvalidRequestError("unknown sync mode %q (valid: %s)", s, strings.Join(names, ", "))
	}
	return m, nil
}
