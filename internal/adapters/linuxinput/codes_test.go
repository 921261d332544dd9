package linuxinput

import (
	"fmt"
	"testing"

	"gestured/internal/core/gesture"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprint(append([]any{msg}, args...)...))
}
func (l *recordingLogger) Error(string, ...any) {}

var _ gesture.Logger = (*recordingLogger)(nil)

func TestParseCode(t *testing.T) {
	tests := []struct {
		raw      string
		expected uint16
	}{
		{raw: "KEY_LEFTMETA", expected: gesture.KeyLeftMeta},
		{raw: " key_leftctrl ", expected: gesture.KeyLeftCtrl},
		{raw: "BTN_LEFT", expected: gesture.LeftButtonCode},
		{raw: "BTN_RIGHT", expected: gesture.RightButtonCode},
		{raw: "leftmeta", expected: gesture.KeyLeftMeta},
		{raw: "125", expected: gesture.KeyLeftMeta},
		{raw: "0x110", expected: gesture.LeftButtonCode},
	}

	for _, tc := range tests {
		got, err := ParseCode(tc.raw)
		if err != nil {
			t.Fatalf("ParseCode(%q) returned error: %v", tc.raw, err)
		}
		if got != tc.expected {
			t.Fatalf("ParseCode(%q)=%d, want %d", tc.raw, got, tc.expected)
		}
	}
}

func TestParseCodeRejectsInvalidNames(t *testing.T) {
	for _, raw := range []string{"", "   ", "KEY_NOPE", "-1", "99999", "0x300"} {
		if code, err := ParseCode(raw); err == nil {
			t.Fatalf("ParseCode(%q)=%d, want error", raw, code)
		}
	}
}

func TestResolveKeyFallsBackWithWarning(t *testing.T) {
	logger := &recordingLogger{}
	if got := ResolveKey("modifier_key", "KEY_SUPER_DUPER", "KEY_LEFTCTRL", logger); got != gesture.KeyLeftCtrl {
		t.Fatalf("ResolveKey fallback=%d, want %d", got, gesture.KeyLeftCtrl)
	}
	if len(logger.warnings) != 1 {
		t.Fatalf("warnings=%d, want 1", len(logger.warnings))
	}

	logger = &recordingLogger{}
	if got := ResolveKey("trigger_key", "KEY_RIGHTMETA", "KEY_LEFTMETA", logger); got == gesture.KeyLeftMeta {
		t.Fatalf("ResolveKey ignored a valid value")
	}
	if len(logger.warnings) != 0 {
		t.Fatalf("valid value logged warnings: %v", logger.warnings)
	}
}

func TestFormatCodeName(t *testing.T) {
	if name := FormatCodeName(gesture.KeyLeftMeta); name != "KEY_LEFTMETA" {
		t.Fatalf("FormatCodeName(125)=%q, want KEY_LEFTMETA", name)
	}
	if name := FormatCodeName(0x2fe); name != "766" {
		t.Fatalf("FormatCodeName(0x2fe)=%q, want 766", name)
	}
}
