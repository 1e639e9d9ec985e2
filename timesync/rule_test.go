package timesync

import (
	"testing"

	"github.com/ndx-io/NDX/errors"
)

func TestRegistry_BuiltinKinds(t *testing.T) {
	reg := NewRegistry()
	kinds := reg.Kinds()
	if len(kinds) != 2 || kinds[0] != RuleKindFileFind || kinds[1] != RuleKindFileMatch {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestRegistry_BuildFileMatch(t *testing.T) {
	reg := NewRegistry()
	rule, err := reg.Build(RuleSpec{
		Kind:   RuleKindFileMatch,
		Params: map[string]any{"key": "base", "clock": "dev_local_time"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rule.Name() != RuleKindFileMatch {
		t.Fatalf("name = %q", rule.Name())
	}
}

func TestRegistry_BuildFileFindFromJSONParams(t *testing.T) {
	// Params decoded from JSON arrive as []any, not []string.
	reg := NewRegistry()
	rule, err := reg.Build(RuleSpec{
		Kind: RuleKindFileFind,
		Params: map[string]any{
			"patterns": []any{"trig.bin", "sync.dat"},
			"match":    "exact",
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ff := rule.(*FileFindRule)
	if len(ff.patterns) != 2 {
		t.Fatalf("patterns = %v", ff.patterns)
	}
}

func TestRegistry_BuildErrors(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Build(RuleSpec{Kind: "telepathy"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown kind err = %v, want ErrNotFound", err)
	}

	_, err := reg.Build(RuleSpec{
		Kind:   RuleKindFileMatch,
		Params: map[string]any{"clock": "gps"},
	})
	if !errors.Is(err, ErrUnrecognizedClockType) {
		t.Errorf("bad clock err = %v, want ErrUnrecognizedClockType", err)
	}

	_, err = reg.Build(RuleSpec{
		Kind:   RuleKindFileFind,
		Params: map[string]any{"patterns": []any{7}},
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad patterns err = %v, want ErrInvalidRequest", err)
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	custom := func(params map[string]any) (Rule, error) {
		return NewFileMatchRule(FileMatchOptions{})
	}

	if err := reg.Register("custom", custom); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Build(RuleSpec{Kind: "custom"}); err != nil {
		t.Fatalf("Build custom: %v", err)
	}

	if err := reg.Register("custom", custom); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("duplicate register err = %v, want ErrAlreadyExists", err)
	}
	if err := reg.Register("", custom); err == nil {
		t.Error("empty kind should be rejected")
	}
	if err := reg.Register("other", nil); err == nil {
		t.Error("nil factory should be rejected")
	}
}

func TestRegistry_BuildAllPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	rules, err := reg.BuildAll([]RuleSpec{
		{Kind: RuleKindFileFind, Params: map[string]any{"patterns": []any{"trig.bin"}}},
		{Kind: RuleKindFileMatch},
	})
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("built %d rules, want 2", len(rules))
	}
	if rules[0].Name() != RuleKindFileFind || rules[1].Name() != RuleKindFileMatch {
		t.Fatalf("order = [%s, %s]", rules[0].Name(), rules[1].Name())
	}

	if _, err := reg.BuildAll([]RuleSpec{{Kind: "telepathy"}}); err == nil {
		t.Error("BuildAll should surface unknown kinds")
	}
}
