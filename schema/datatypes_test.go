package schema

import (
	"testing"

	"github.com/gofhir/hl7v2/message"
)

func TestCheckPrimitive(t *testing.T) {
	tests := []struct {
		typ  string
		in   string
		want bool
	}{
		{"ST", "anything at all", true},
		{"NM", "42", true},
		{"NM", "-3.14", true},
		{"NM", "+.5", true},
		{"NM", "1.2.3", false},
		{"NM", "abc", false},
		{"NM", "-", false},
		{"SI", "0", true},
		{"SI", "12", true},
		{"SI", "-1", false},
		{"DT", "2024", true},
		{"DT", "202401", true},
		{"DT", "20240131", true},
		{"DT", "20240132", false},
		{"DT", "2024013", false},
		{"DT", "202401011200", false},
		{"DTM", "20240115103000", true},
		{"DTM", "20240115103000.1234+0100", true},
		{"DTM", "2024-01-15", false},
		{"TM", "1030", true},
		{"TM", "103045.12", true},
		{"TM", "103045-0500", true},
		{"TM", "2500", false},
		{"TM", "10304", false},
		{"ID", "F", true},
		{"ID", " F", false},
		{"IS", "A ", false},
		{"NM", "", true},
		{"UNKNOWN", "x", true},
	}
	for _, tt := range tests {
		if got := CheckPrimitive(tt.typ, tt.in); got != tt.want {
			t.Errorf("CheckPrimitive(%q, %q) = %v; want %v", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestIsPrimitive(t *testing.T) {
	if !IsPrimitive("ST") || !IsPrimitive("DTM") {
		t.Error("ST and DTM should be primitive")
	}
	if IsPrimitive("CX") || IsPrimitive(Varies) {
		t.Error("CX and varies should not be primitive")
	}
}

func TestCheckValue(t *testing.T) {
	s, err := LoadEmbedded("2.5")
	if err != nil {
		t.Fatal(err)
	}
	d := message.DefaultDelimiters

	tests := []struct {
		name     string
		typ      string
		raw      string
		wantComp []int
	}{
		{"primitive ok", "NM", "12", nil},
		{"primitive bad", "NM", "twelve", []int{0}},
		{"composite ok", "CX", "12345^^^HOSP^MR", nil},
		{"scalar composite checks first component", "TS", "20240115", nil},
		{"bad timestamp", "TS", "yesterday", []int{1}},
		{"nested composite", "CX", "1^^^HOSP&1.2.3&ISO^MR", nil},
		{"bad component", "CQ", "ten^mL", []int{1}},
		{"extra component", "PT", "P^T^X", []int{3}},
		{"composite for primitive", "NM", "1^2", []int{0}},
		{"empty", "NM", "", nil},
		{"unknown type", "ZZ", "whatever^x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.CheckValue(tt.typ, message.ParseValue(tt.raw, d), d)
			if len(got) != len(tt.wantComp) {
				t.Fatalf("CheckValue(%q, %q) = %+v; want %d violations", tt.typ, tt.raw, got, len(tt.wantComp))
			}
			for i, v := range got {
				if v.Component != tt.wantComp[i] {
					t.Errorf("violation %d component = %d; want %d", i, v.Component, tt.wantComp[i])
				}
				if v.Reason == "" {
					t.Errorf("violation %d has no reason", i)
				}
			}
		})
	}
}

func TestCheckValue_Subcomponent(t *testing.T) {
	s, err := LoadEmbedded("2.5")
	if err != nil {
		t.Fatal(err)
	}
	d := message.DefaultDelimiters

	// TQ.4 is a TS; its first subcomponent must be a DTM.
	got := s.CheckValue("TQ", message.ParseValue("^^^notatime&S", d), d)
	if len(got) != 1 {
		t.Fatalf("CheckValue() = %+v; want 1 violation", got)
	}
	if got[0].Component != 4 || got[0].Subcomponent != 1 || got[0].DataType != "DTM" {
		t.Errorf("violation = %+v; want component 4, subcomponent 1, DTM", got[0])
	}
}
