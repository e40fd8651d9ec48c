package schema

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadEmbedded(t *testing.T) {
	for _, version := range []string{"2.5", "2.3"} {
		t.Run(version, func(t *testing.T) {
			s, err := LoadEmbedded(version)
			if err != nil {
				t.Fatalf("LoadEmbedded(%q) error = %v", version, err)
			}
			if s.Version != version {
				t.Errorf("Version = %q; want %q", s.Version, version)
			}
			for _, tag := range []string{"MSH", "EVN", "PID", "PV1", "OBR", "OBX", "MSA", "ERR"} {
				if _, ok := s.Segment(tag); !ok {
					t.Errorf("Segment(%q) not found", tag)
				}
			}
		})
	}
}

func TestLoadEmbedded_Unknown(t *testing.T) {
	if _, err := LoadEmbedded("9.9"); err == nil {
		t.Error("LoadEmbedded(9.9) expected error")
	}
}

func TestEmbeddedVersions(t *testing.T) {
	versions, err := EmbeddedVersions()
	if err != nil {
		t.Fatalf("EmbeddedVersions() error = %v", err)
	}
	if strings.Join(versions, ",") != "2.3,2.5" {
		t.Errorf("EmbeddedVersions() = %v; want [2.3 2.5]", versions)
	}
}

func TestMSHDefinition(t *testing.T) {
	s, err := LoadEmbedded("2.5")
	if err != nil {
		t.Fatal(err)
	}
	msh, _ := s.Segment("MSH")

	f, ok := msh.Field(9)
	if !ok {
		t.Fatal("MSH.9 not defined")
	}
	if f.Name != "Message Type" || f.DataType != "MSG" || !f.Required {
		t.Errorf("MSH.9 = %+v", f)
	}

	var required []int
	for _, f := range msh.RequiredFields() {
		required = append(required, f.Position)
	}
	want := []int{1, 2, 7, 9, 10, 11, 12}
	if len(required) != len(want) {
		t.Fatalf("RequiredFields() = %v; want %v", required, want)
	}
	for i := range want {
		if required[i] != want[i] {
			t.Errorf("RequiredFields()[%d] = %d; want %d", i, required[i], want[i])
		}
	}

	if _, ok := msh.Field(0); ok {
		t.Error("Field(0) should not exist")
	}
	if _, ok := msh.Field(99); ok {
		t.Error("Field(99) should not exist")
	}
}

func TestExtendsOverlay(t *testing.T) {
	v23, err := LoadEmbedded("2.3")
	if err != nil {
		t.Fatal(err)
	}
	v25, err := LoadEmbedded("2.5")
	if err != nil {
		t.Fatal(err)
	}

	// MSH.7 is optional in 2.3 and required in 2.5.
	f23, _ := mustSegment(t, v23, "MSH").Field(7)
	f25, _ := mustSegment(t, v25, "MSH").Field(7)
	if f23.Required || !f25.Required {
		t.Errorf("MSH.7 required: 2.3 = %v, 2.5 = %v; want false, true", f23.Required, f25.Required)
	}

	// MSH.21 only exists from 2.4 on.
	if _, ok := mustSegment(t, v23, "MSH").Field(21); ok {
		t.Error("2.3 MSH.21 should not be defined")
	}

	// PID is inherited unchanged.
	pid, _ := mustSegment(t, v23, "PID").Field(8)
	if pid.Table != "0001" {
		t.Errorf("2.3 PID.8 table = %q; want 0001", pid.Table)
	}

	// Tables are inherited.
	if _, ok := v23.Table("0104"); !ok {
		t.Error("2.3 table 0104 not inherited")
	}
}

func TestTables(t *testing.T) {
	s, err := LoadEmbedded("2.5")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		table string
		code  string
		want  bool
	}{
		{"0001", "F", true},
		{"0001", "X", false},
		{"0008", "AA", true},
		{"0104", "2.5.1", true},
		{"0104", "3.0", false},
		{"0136", "N", true},
		{"0078", "<", true},
	}
	for _, tt := range tests {
		tbl, ok := s.Table(tt.table)
		if !ok {
			t.Fatalf("Table(%q) not found", tt.table)
		}
		if tbl.ID != tt.table {
			t.Errorf("Table(%q).ID = %q", tt.table, tbl.ID)
		}
		if got := tbl.Has(tt.code); got != tt.want {
			t.Errorf("Table(%q).Has(%q) = %v; want %v", tt.table, tt.code, got, tt.want)
		}
	}
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no version", "segments: {}"},
		{"unknown key", "version: \"9\"\nsegmnts: {}"},
		{"unknown field attribute", "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 1, type: ST, requird: true}"},
		{"not yaml", "version: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDocument([]byte(tt.doc)); err == nil {
				t.Error("ParseDocument() expected error")
			}
		})
	}
}

func TestCompile_LinkErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown type",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 1, name: A, type: NOPE}",
			want: "unknown data type",
		},
		{
			name: "unknown table",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 1, name: A, type: ID, table: \"0999\"}",
			want: "unknown table",
		},
		{
			name: "duplicate position",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 1, name: A, type: ST}\n      - {position: 1, name: B, type: ST}",
			want: "defined twice",
		},
		{
			name: "zero position",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 0, name: A, type: ST}",
			want: "position must be",
		},
		{
			name: "negative position",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: -1, name: A, type: ST}",
			want: "position must be",
		},
		{
			name: "negative among valid",
			doc:  "version: \"9\"\nsegments:\n  ZZZ:\n    fields:\n      - {position: 2, name: A, type: ST}\n      - {position: -3, name: B, type: ST}",
			want: "position must be",
		},
		{
			name: "component type",
			doc:  "version: \"9\"\ndatatypes:\n  XX:\n    components:\n      - {name: A, type: NOPE}",
			want: "unknown data type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ParseDocument() error = %v", err)
			}
			_, err = Compile(doc)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Compile() error = %v; want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"defs/base.yaml": {Data: []byte(`
version: "1"
segments:
  ZPI:
    name: Custom Patient Info
    fields:
      - {position: 1, name: Flag, type: ID, table: "9001", closed: true}
tables:
  "9001":
    name: Flags
    values: {"Y": "Yes", "N": "No"}
`)},
		"defs/child.yaml": {Data: []byte(`
version: "2"
extends: "1"
segments:
  ZPV:
    fields:
      - {position: 2, name: Note, type: ST, length: 10}
`)},
		"defs/README.txt": {Data: []byte("ignored")},
	}

	s, err := LoadFS(fsys, "defs", "2")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if got := strings.Join(s.SegmentTags(), ","); got != "ZPI,ZPV" {
		t.Errorf("SegmentTags() = %q; want ZPI,ZPV", got)
	}
	zpv := mustSegment(t, s, "ZPV")
	if _, ok := zpv.Field(1); ok {
		t.Error("ZPV.1 should be a gap")
	}
	if f, ok := zpv.Field(2); !ok || f.MaxLength != 10 {
		t.Errorf("ZPV.2 = %+v, %v", f, ok)
	}
}

func TestLoadFS_ExtendsCycle(t *testing.T) {
	fsys := fstest.MapFS{
		"d/a.yaml": {Data: []byte("version: \"a\"\nextends: \"b\"\n")},
		"d/b.yaml": {Data: []byte("version: \"b\"\nextends: \"a\"\n")},
	}
	if _, err := LoadFS(fsys, "d", "a"); err == nil {
		t.Error("LoadFS() expected error for extends cycle")
	}
}

func TestLoadFS_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"d/a.yaml": {Data: []byte("version: \"1\"\n")},
		"d/b.yaml": {Data: []byte("version: \"1\"\n")},
	}
	if _, err := LoadFS(fsys, "d", "1"); err == nil {
		t.Error("LoadFS() expected error for duplicate version")
	}
}

func mustSegment(t *testing.T, s *Schema, tag string) *SegmentDef {
	t.Helper()
	def, ok := s.Segment(tag)
	if !ok {
		t.Fatalf("Segment(%q) not found", tag)
	}
	return def
}
