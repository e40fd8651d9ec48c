package hl7v2

import (
	"testing"
)

func TestVersion_String(t *testing.T) {
	tests := []struct {
		version Version
		want    string
	}{
		{V23, "2.3"},
		{V25, "2.5"},
		{V251, "2.5.1"},
	}

	for _, tt := range tests {
		if got := tt.version.String(); got != tt.want {
			t.Errorf("%v.String() = %q; want %q", tt.version, got, tt.want)
		}
	}
}

func TestVersion_IsValid(t *testing.T) {
	tests := []struct {
		version Version
		want    bool
	}{
		{V23, true},
		{V25, true},
		{V28, true},
		{"2.0", false},
		{"R4", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.version.IsValid(); got != tt.want {
			t.Errorf("%v.IsValid() = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in     string
		want   Version
		wantOK bool
	}{
		{"2.5", V25, true},
		{" 2.5.1 ", V251, true},
		{"2.4^USA", V24, true},
		{"9.9", "9.9", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseVersion(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseVersion(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestVersion_SchemaVersion(t *testing.T) {
	tests := []struct {
		version Version
		want    Version
	}{
		{V231, V23},
		{V24, V25},
		{V28, V25},
		{"9.9", DefaultVersion},
	}

	for _, tt := range tests {
		if got := tt.version.SchemaVersion(); got != tt.want {
			t.Errorf("%v.SchemaVersion() = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestGetVersionConfig(t *testing.T) {
	cfg, ok := getVersionConfig(V26)
	if !ok {
		t.Fatal("getVersionConfig(V26) returned false")
	}
	if cfg.TimestampType != "DTM" {
		t.Errorf("TimestampType = %q; want %q", cfg.TimestampType, "DTM")
	}

	if _, ok := getVersionConfig("1.0"); ok {
		t.Error("getVersionConfig(1.0) should return false")
	}
}

func TestVersion_TimestampType(t *testing.T) {
	if got := V25.TimestampType(); got != "TS" {
		t.Errorf("V25.TimestampType() = %q; want TS", got)
	}
	if got := V27.TimestampType(); got != "DTM" {
		t.Errorf("V27.TimestampType() = %q; want DTM", got)
	}
}
