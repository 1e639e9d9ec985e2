package timesync

import (
	"sort"

	"github.com/ndx-io/NDX/errors"
)

// Rule discovers time mappings between pairs of epochs. Implementations must
// be safe for concurrent use; the graph may evaluate rules from multiple
// goroutines.
type Rule interface {
	// Name identifies the rule in logs and edge records.
	Name() string

	// Eligible is a cheap gate: it reports whether the pair is worth
	// evaluating at all (right clocks present, files available, distinct
	// epochs). Evaluate is only called when Eligible returns true.
	Eligible(a, b EpochMeta) bool

	// Evaluate inspects the two epochs and either produces a mapping from a
	// clock of the first to a clock of the second, or declines. Declining is
	// not an error; it simply means this rule found no evidence.
	Evaluate(a, b EpochMeta) (TimeMapping, bool)

	// Spec returns the serializable description the rule was built from, so
	// rule sets survive a round trip through storage.
	Spec() RuleSpec
}

// RuleSpec is the declarative, storable form of a rule: a factory kind plus
// its parameters.
type RuleSpec struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// RuleFactory builds a rule from decoded parameters.
type RuleFactory func(params map[string]any) (Rule, error)

// Registry maps rule kinds to factories. A fresh registry already knows the
// built-in kinds ("filematch", "filefind"); callers register additional kinds
// before building rule sets from stored specs.
type Registry struct {
	factories map[string]RuleFactory
}

// NewRegistry returns a registry with the built-in rule kinds installed.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]RuleFactory)}
	r.factories[RuleKindFileMatch] = buildFileMatchRule
	r.factories[RuleKindFileFind] = buildFileFindRule
	return r
}

// Register installs a factory for a new kind. Registering an existing kind
// returns ErrAlreadyExists.
func (r *Registry) Register(kind string, factory RuleFactory) error {
	if kind == "" {
		return errors.NewInvalidRequestError("rule kind must not be empty")
	}
	if factory == nil {
		return errors.NewInvalidRequestError("rule factory must not be nil")
	}
	if _, ok := r.factories[kind]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "rule kind %q", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Build instantiates a rule from its spec. Unknown kinds return ErrNotFound.
func (r *Registry) Build(spec RuleSpec) (Rule, error) {
	factory, ok := r.factories[spec.Kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "rule kind %q", spec.Kind)
	}
	rule, err := factory(spec.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "building %q rule", spec.Kind)
	}
	return rule, nil
}

// BuildAll instantiates a whole rule set, preserving order.
func (r *Registry) BuildAll(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := r.Build(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// stringParam reads an optional string parameter.
func stringParam(params map[string]any, key, fallback string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewInvalidRequestError("parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

// stringsParam reads an optional list-of-strings parameter, accepting both
// []string and the []any that JSON decoding produces.
func stringsParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewInvalidRequestError("parameter %q must contain strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.NewInvalidRequestError("parameter %q must be a list of strings, got %T", key, v)
	}
}

// clockParam reads an optional clock type parameter.
func clockParam(params map[string]any, key string, fallback ClockType) (ClockType, error) {
	s, err := stringParam(params, key, string(fallback))
	if err != nil {
		return "", err
	}
	return ParseClockType(s)
}
