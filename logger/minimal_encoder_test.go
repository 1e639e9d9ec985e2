package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

func encodeEntry(t *testing.T, ent zapcore.Entry, fields []zapcore.Field) string {
	t.Helper()
	enc := newMinimalEncoder()
	buf, err := enc.EncodeEntry(ent, fields)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}
	defer buf.Free()
	return stripANSI(buf.String())
}

// TestMinimalEncoderNeverDiscardsFields ensures the minimal encoder never
// silently drops a log field: unknown keys fall through to key=value.
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing field preservation",
	}

	tests := []struct {
		field    zapcore.Field
		mustFind string
	}{
		{zap.String("random_field_xyz", "important_data"), "random_field_xyz=important_data"},
		{zap.Int("critical_count", 999), "critical_count=999"},
		{zap.Bool("dry_run", true), "dry_run=true"},
		{zap.String("field_with_underscores", "test"), "field_with_underscores=test"},
		{zap.Int32("int32_field", 42), "int32_field=42"},
	}

	for _, tt := range tests {
		out := encodeEntry(t, entry, []zapcore.Field{tt.field})
		if !strings.Contains(out, tt.mustFind) {
			t.Errorf("encoder dropped field: output %q does not contain %q", out, tt.mustFind)
		}
	}
}

func TestMinimalEncoderKnownFields(t *testing.T) {
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Date(2026, 3, 14, 13, 4, 35, 0, time.UTC),
		LoggerName: "timesync",
		Message:    "Graph rebuilt",
	}
	fields := []zapcore.Field{
		zap.String(FieldSessionID, "ses_abc123"),
		zap.Int("nodes", 12),
		zap.Int("edges", 30),
		zap.Int64(FieldDurationMS, 42),
	}

	out := encodeEntry(t, entry, fields)

	if !strings.Contains(out, "13:04:35") {
		t.Errorf("missing timestamp in %q", out)
	}
	if !strings.Contains(out, "ses_abc123") {
		t.Errorf("missing session id in %q", out)
	}
	if !strings.Contains(out, "(12 nodes, 30 edges)") {
		t.Errorf("missing node/edge pair formatting in %q", out)
	}
	if !strings.Contains(out, "42ms") {
		t.Errorf("missing duration in %q", out)
	}
}

func TestMinimalEncoderLevelMarkers(t *testing.T) {
	base := zapcore.Entry{
		Time:       time.Now(),
		LoggerName: "daq",
		Message:    "message",
	}

	infoEntry := base
	infoEntry.Level = zapcore.InfoLevel
	if out := encodeEntry(t, infoEntry, nil); strings.Contains(out, "INFO") {
		t.Errorf("info output should not carry a level marker: %q", out)
	}

	warnEntry := base
	warnEntry.Level = zapcore.WarnLevel
	if out := encodeEntry(t, warnEntry, nil); !strings.Contains(out, "WARN") {
		t.Errorf("warn output should carry WARN marker: %q", out)
	}

	errEntry := base
	errEntry.Level = zapcore.ErrorLevel
	if out := encodeEntry(t, errEntry, nil); !strings.Contains(out, "ERROR") {
		t.Errorf("error output should carry ERROR marker: %q", out)
	}
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"session", "session"},
		{"daq.navigator", "d.navigator"},
		{"cloud.sync", "c.sync"},
		{"graph.builder", "g.builder"},
	}
	for _, tt := range tests {
		if got := abbreviateName(tt.in); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorizeMessageBrackets(t *testing.T) {
	out := stripANSI(colorizeMessage("Discovered mapping [epoch:t0001] via filematch"))
	if out != "Discovered mapping [epoch:t0001] via filematch" {
		t.Errorf("colorizeMessage altered text: %q", out)
	}
}
