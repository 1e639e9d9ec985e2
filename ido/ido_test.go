package ido

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestNewIsValid(t *testing.T) {
	id := New()
	if !IsValid(id) {
		t.Errorf("New() produced invalid identifier %q", id)
	}
	if !strings.Contains(id, "_") {
		t.Errorf("identifier %q missing separator", id)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate identifier %q after %d mints", id, i)
		}
		seen[id] = true
	}
}

func TestIdentifiersSortByCreationTime(t *testing.T) {
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, New())
		time.Sleep(2 * time.Millisecond)
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("identifiers not time-ordered: minted %v, sorted %v", ids, sorted)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1a2b3c4d5e6f_7a8b9c0d1e2f", true},
		{"ABCDEF_012345", true},
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", true}, // UUID form
		{"", false},
		{"no-separator", false},
		{"xyz_123", false}, // non-hex prefix
		{"123_ghi", false}, // non-hex suffix
		{"_", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.id); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp(%q) error = %v", id, err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp(%q) = %v, want within [%v, %v]", id, ts, before, after)
	}

	if _, err := Timestamp("f47ac10b-58cc-4372-a567-0e02b2c3d479"); err == nil {
		t.Error("Timestamp should reject UUID identifiers")
	}
}
