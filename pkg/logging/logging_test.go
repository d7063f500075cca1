package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"Info":    LevelInfo,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"eRRor":   LevelError,
		"":        LevelInfo,
		"trace":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"Json", FormatJSON},
		{"text", FormatText},
		{"TEXT", FormatText},
		{"", FormatText},
		{"yaml", FormatText}, // unrecognized defaults to text
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseFormat(tt.input)
			if result != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCheckLevelAndFormat(t *testing.T) {
	for _, ok := range []string{"", "debug", "Warn", "ERROR"} {
		if err := CheckLevel(ok); err != nil {
			t.Errorf("CheckLevel(%q) = %v, want nil", ok, err)
		}
	}
	if err := CheckLevel("trace"); err == nil {
		t.Error("CheckLevel(trace) should fail")
	}

	for _, ok := range []string{"", "text", "JSON"} {
		if err := CheckFormat(ok); err != nil {
			t.Errorf("CheckFormat(%q) = %v, want nil", ok, err)
		}
	}
	if err := CheckFormat("yaml"); err == nil {
		t.Error("CheckFormat(yaml) should fail")
	}
}

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	log.Info("hidden")
	log.Warn("shown", "set", "Orders")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["set"] != "Orders" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_Tee(t *testing.T) {
	var out, tee bytes.Buffer
	log := New(Config{Level: LevelInfo, Format: FormatText, Output: &out, Tee: &tee})

	log.With("component", "server").Info("listening", "port", 8080)

	if !strings.Contains(out.String(), "msg=listening") {
		t.Errorf("text output missing record: %q", out.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(tee.Bytes(), &rec); err != nil {
		t.Fatalf("tee output is not JSON: %v", err)
	}
	if rec["component"] != "server" {
		t.Errorf("tee lost attributes: %v", rec)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestNew_TeeSurvivesOutputFailure(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: failingWriter{}, Tee: &buf})

	log.Info("still written")

	if !strings.Contains(buf.String(), "still written") {
		t.Errorf("second handler skipped after first failed: %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error("discarded")
	if log.Enabled(context.Background(), LevelDebug) {
		t.Error("Nop logger should not enable debug")
	}
}
