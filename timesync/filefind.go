package timesync

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ndx-io/NDX/errors"
)

// RuleKindFileFind is the registry kind of FileFindRule.
const RuleKindFileFind = "filefind"

// FileMatchType selects how FileFindRule patterns are applied to file names.
type FileMatchType string

const (
	// MatchExact compares the pattern against the file base name.
	MatchExact FileMatchType = "exact"
	// MatchContains looks for the pattern as a substring of the full name.
	MatchContains FileMatchType = "contains"
	// MatchGlob applies shell-style glob syntax to the base name.
	MatchGlob FileMatchType = "glob"
	// MatchRegexp applies a regular expression to the full name.
	MatchRegexp FileMatchType = "regexp"
)

// FileFindOptions configures a FileFindRule.
type FileFindOptions struct {
	Patterns []string
	Match    FileMatchType
	Clock    ClockType
}

// FileFindRule asserts that two epochs are already on a shared clock when
// both contain a marker file for every configured pattern. Hardware setups
// that distribute one trigger signal to all devices leave such markers; the
// rule then emits an identity mapping between the configured clocks. No
// origins are read, so the clocks must genuinely agree.
type FileFindRule struct {
	patterns []string
	match    FileMatchType
	clock    ClockType
	regexps  []*regexp.Regexp
}

// NewFileFindRule validates options, compiling regexp patterns eagerly so
// malformed rules fail at construction rather than first use.
func NewFileFindRule(opts FileFindOptions) (*FileFindRule, error) {
	if len(opts.Patterns) == 0 {
		return nil, errors.NewInvalidRequestError("filefind rule needs at least one pattern")
	}
	if opts.Match == "" {
		opts.Match = MatchExact
	}
	if opts.Clock == "" {
		opts.Clock = DevLocalTime
	}
	if !opts.Clock.Valid() {
		return nil, errors.Wrapf(ErrUnrecognizedClockType, "%q", string(opts.Clock))
	}
	r := &FileFindRule{
		patterns: append([]string(nil), opts.Patterns...),
		match:    opts.Match,
		clock:    opts.Clock,
	}
	switch opts.Match {
	case MatchExact, MatchContains:
	case MatchGlob:
		for _, p := range r.patterns {
			if _, err := filepath.Match(p, "probe"); err != nil {
				return nil, errors.Wrapf(err, "glob pattern %q", p)
			}
		}
	case MatchRegexp:
		r.regexps = make([]*regexp.Regexp, 0, len(r.patterns))
		for _, p := range r.patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, errors.Wrapf(err, "regexp pattern %q", p)
			}
			r.regexps = append(r.regexps, re)
		}
	default:
		return nil, errors.NewInvalidRequestError("unknown match type %q", string(opts.Match))
	}
	return r, nil
}

func buildFileFindRule(params map[string]any) (Rule, error) {
	patterns, err := stringsParam(params, "patterns")
	if err != nil {
		return nil, err
	}
	match, err := stringParam(params, "match", string(MatchExact))
	if err != nil {
		return nil, err
	}
	clock, err := clockParam(params, "clock", DevLocalTime)
	if err != nil {
		return nil, err
	}
	return NewFileFindRule(FileFindOptions{
		Patterns: patterns,
		Match:    FileMatchType(match),
		Clock:    clock,
	})
}

func (r *FileFindRule) Name() string { return RuleKindFileFind }

// Spec returns the storable form of the rule.
func (r *FileFindRule) Spec() RuleSpec {
	return RuleSpec{
		Kind: RuleKindFileFind,
		Params: map[string]any{
			"patterns": append([]string(nil), r.patterns...),
			"match":    string(r.match),
			"clock":    string(r.clock),
		},
	}
}

// Eligible requires files on both sides, the configured clock on both sides,
// and two distinct epoch identities.
func (r *FileFindRule) Eligible(a, b EpochMeta) bool {
	if len(a.Files) == 0 || len(b.Files) == 0 {
		return false
	}
	if !a.HasClock(r.clock) || !b.HasClock(r.clock) {
		return false
	}
	return a.DeviceID != b.DeviceID || a.EpochID != b.EpochID
}

// Evaluate emits an identity mapping when every pattern finds a marker file
// in both epochs.
func (r *FileFindRule) Evaluate(a, b EpochMeta) (TimeMapping, bool) {
	if !r.allPatternsPresent(a.Files) || !r.allPatternsPresent(b.Files) {
		return TimeMapping{}, false
	}
	source := EpochClockID{Device: a.DeviceID, Epoch: a.EpochID, Clock: r.clock}
	target := EpochClockID{Device: b.DeviceID, Epoch: b.EpochID, Clock: r.clock}
	m, err := IdentityMapping(source, target)
	if err != nil {
		return TimeMapping{}, false
	}
	return m, true
}

func (r *FileFindRule) allPatternsPresent(files []FileInfo) bool {
	for i, p := range r.patterns {
		found := false
		for _, f := range files {
			if r.matches(i, p, f.Name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *FileFindRule) matches(idx int, pattern, name string) bool {
	switch r.match {
	case MatchContains:
		return strings.Contains(filepath.ToSlash(name), pattern)
	case MatchGlob:
		ok, err := filepath.Match(pattern, filepath.Base(name))
		return err == nil && ok
	case MatchRegexp:
		return r.regexps[idx].MatchString(filepath.ToSlash(name))
	default:
		return filepath.Base(name) == pattern
	}
}
