package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("output below level = %q; want empty", buf.String())
	}

	l.Warn("warn %d", 3)
	l.Error("error %d", 4)
	out := buf.String()
	for _, want := range []string{"warn 3", "error 4", "hl7v2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)
	l.SetLevel(LevelDebug)
	if l.Level() != LevelDebug {
		t.Errorf("Level() = %v; want %v", l.Level(), LevelDebug)
	}
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("output = %q; want debug message", buf.String())
	}

	l.SetLevel(LevelNone)
	buf.Reset()
	l.Error("hidden")
	if buf.Len() != 0 {
		t.Errorf("output with LevelNone = %q; want empty", buf.String())
	}
}

func TestLogger_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New(&first, LevelInfo)
	l.SetOutput(&second)
	l.Info("moved")
	if first.Len() != 0 || !strings.Contains(second.String(), "moved") {
		t.Errorf("first = %q, second = %q", first.String(), second.String())
	}
}

func TestLogger_Entry(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	if e := l.Entry(LevelDebug); e != nil {
		t.Error("Entry(LevelDebug) should be nil below level")
	}
	// A nil entry must be safe to use.
	l.Entry(LevelDebug).Str("k", "v").Msg("dropped")

	l.Entry(LevelWarn).Str("rule", "pid-sex").Err(errors.New("boom")).Msg("rule evaluation failed")
	out := buf.String()
	for _, want := range []string{"pid-sex", "boom", "rule evaluation failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
	if strings.Contains(out, "dropped") {
		t.Errorf("output %q contains a dropped entry", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"off", LevelNone, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_String(t *testing.T) {
	if LevelWarn.String() != "WARN" || LevelNone.String() != "" {
		t.Errorf("String() = %q, %q", LevelWarn.String(), LevelNone.String())
	}
}
