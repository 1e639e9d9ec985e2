package timesync

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// RuleKindFileMatch is the registry kind of FileMatchRule.
const RuleKindFileMatch = "filematch"

// FileKeyMode selects how a file name is reduced to a match key.
type FileKeyMode string

const (
	// FileKeyStem strips directory and extension: "sub/rec_001.ncs" -> "rec_001".
	FileKeyStem FileKeyMode = "stem"
	// FileKeyBase strips the directory only: "sub/rec_001.ncs" -> "rec_001.ncs".
	FileKeyBase FileKeyMode = "base"
	// FileKeyFull keeps the whole name.
	FileKeyFull FileKeyMode = "full"
)

// FileMatchOptions configures a FileMatchRule. Zero values select the
// defaults: stem keys on the device-local clock.
type FileMatchOptions struct {
	Key   FileKeyMode
	Clock ClockType
}

// FileMatchRule links two epochs that recorded the same file. When exactly
// one file on each side reduces to the same key, the files are taken to be
// two devices' views of the same simultaneous recording, and the difference
// of their start origins becomes the offset of a scale-1 mapping between the
// configured clocks. A key matched by several files on either side is
// ambiguous and makes the rule decline outright; several distinct matched
// keys are accepted only when their offsets agree within Tolerance.
type FileMatchRule struct {
	key   FileKeyMode
	clock ClockType
}

// NewFileMatchRule validates options and builds the rule.
func NewFileMatchRule(opts FileMatchOptions) (*FileMatchRule, error) {
	if opts.Key == "" {
		opts.Key = FileKeyStem
	}
	switch opts.Key {
	case FileKeyStem, FileKeyBase, FileKeyFull:
	default:
		return nil, errors.NewInvalidRequestError("unknown file key mode %q", string(opts.Key))
	}
	if opts.Clock == "" {
		opts.Clock = DevLocalTime
	}
	if !opts.Clock.Valid() {
		return nil, errors.Wrapf(ErrUnrecognizedClockType, "%q", string(opts.Clock))
	}
	return &FileMatchRule{key: opts.Key, clock: opts.Clock}, nil
}

func buildFileMatchRule(params map[string]any) (Rule, error) {
	key, err := stringParam(params, "key", string(FileKeyStem))
	if err != nil {
		return nil, err
	}
	clock, err := clockParam(params, "clock", DevLocalTime)
	if err != nil {
		return nil, err
	}
	return NewFileMatchRule(FileMatchOptions{Key: FileKeyMode(key), Clock: clock})
}

func (r *FileMatchRule) Name() string { return RuleKindFileMatch }

// Spec returns the storable form of the rule.
func (r *FileMatchRule) Spec() RuleSpec {
	return RuleSpec{
		Kind: RuleKindFileMatch,
		Params: map[string]any{
			"key":   string(r.key),
			"clock": string(r.clock),
		},
	}
}

// Eligible requires files on both sides, the configured clock on both sides,
// and two distinct epoch identities.
func (r *FileMatchRule) Eligible(a, b EpochMeta) bool {
	if len(a.Files) == 0 || len(b.Files) == 0 {
		return false
	}
	if !a.HasClock(r.clock) || !b.HasClock(r.clock) {
		return false
	}
	return a.DeviceID != b.DeviceID || a.EpochID != b.EpochID
}

// Evaluate looks for shared file keys and derives the offset between the two
// epochs' clocks from the matched files' origins.
func (r *FileMatchRule) Evaluate(a, b EpochMeta) (TimeMapping, bool) {
	keysA := r.index(a.Files)
	keysB := r.index(b.Files)

	var offsets []float64
	for key, filesA := range keysA {
		filesB, ok := keysB[key]
		if !ok {
			continue
		}
		if len(filesA) != 1 || len(filesB) != 1 {
			// Several files share the key on one side; there is no way to
			// tell which pair was simultaneous.
			return TimeMapping{}, false
		}
		if filesA[0].Origin == nil || filesB[0].Origin == nil {
			continue
		}
		// The same physical instant reads Origin(a) on a's clock and
		// Origin(b) on b's, so t_b = t_a + (Origin(b) - Origin(a)).
		offsets = append(offsets, *filesB[0].Origin-*filesA[0].Origin)
	}
	if len(offsets) == 0 {
		return TimeMapping{}, false
	}
	offset := offsets[0]
	for _, o := range offsets[1:] {
		if math.Abs(o-offset) > Tolerance {
			return TimeMapping{}, false
		}
	}

	source := EpochClockID{Device: a.DeviceID, Epoch: a.EpochID, Clock: r.clock}
	target := EpochClockID{Device: b.DeviceID, Epoch: b.EpochID, Clock: r.clock}
	m, err := NewMapping(source, target, 1, offset)
	if err != nil {
		return TimeMapping{}, false
	}
	return m, true
}

// index groups files by match key.
func (r *FileMatchRule) index(files []FileInfo) map[string][]FileInfo {
	keyed := make(map[string][]FileInfo, len(files))
	for _, f := range files {
		k := r.fileKey(f.Name)
		if k == "" {
			continue
		}
		keyed[k] = append(keyed[k], f)
	}
	return keyed
}

func (r *FileMatchRule) fileKey(name string) string {
	switch r.key {
	case FileKeyFull:
		return filepath.ToSlash(name)
	case FileKeyBase:
		return filepath.Base(name)
	default:
		base := filepath.Base(name)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}
