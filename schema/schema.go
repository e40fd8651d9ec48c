// Package schema holds the static, versioned HL7 v2 definitions used by
// the validation phases: segments and their fields, data types and coded
// value tables.
//
// Definitions ship as YAML documents embedded in the binary (see v2/). A
// document may extend another version and only restate what differs. A
// loaded *Schema is immutable and shared by every validation.
package schema

import (
	"sort"
)

// Schema is the compiled definition set for one HL7 version.
type Schema struct {
	Version   string
	segments  map[string]*SegmentDef
	dataTypes map[string]*DataType
	tables    map[string]*Table
}

// SegmentDef describes one segment.
type SegmentDef struct {
	Tag    string     `yaml:"-" json:"tag"`
	Name   string     `yaml:"name" json:"name"`
	Fields []FieldDef `yaml:"fields" json:"fields"`

	byPos []*FieldDef
}

// FieldDef describes one field of a segment.
type FieldDef struct {
	Position   int    `yaml:"position" json:"position"`
	Name       string `yaml:"name" json:"name"`
	DataType   string `yaml:"type" json:"type"`
	Required   bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Repeating  bool   `yaml:"repeating,omitempty" json:"repeating,omitempty"`
	MaxRepeats int    `yaml:"maxRepeats,omitempty" json:"maxRepeats,omitempty"`
	MaxLength  int    `yaml:"length,omitempty" json:"length,omitempty"`
	Table      string `yaml:"table,omitempty" json:"table,omitempty"`
	Closed     bool   `yaml:"closed,omitempty" json:"closed,omitempty"`

	// TypeFrom names a field of the same segment whose value is the data
	// type of this one, as OBX.2 does for OBX.5. Used with type "varies".
	TypeFrom int `yaml:"typeFrom,omitempty" json:"typeFrom,omitempty"`
}

// Varies is the data type of fields whose type is chosen per message.
const Varies = "varies"

// RepeatLimit returns the maximum number of repetitions, 0 for unbounded.
func (f *FieldDef) RepeatLimit() int {
	if !f.Repeating {
		return 1
	}
	return f.MaxRepeats
}

// DataType describes a composite or primitive type. Primitives have no
// components and are checked by shape (see CheckPrimitive).
type DataType struct {
	Name        string         `yaml:"-" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Components  []ComponentDef `yaml:"components,omitempty" json:"components,omitempty"`
}

// IsComposite reports whether the type has components.
func (t *DataType) IsComposite() bool {
	return len(t.Components) > 0
}

// ComponentDef describes one component of a composite type.
type ComponentDef struct {
	Name      string `yaml:"name" json:"name"`
	DataType  string `yaml:"type" json:"type"`
	MaxLength int    `yaml:"length,omitempty" json:"length,omitempty"`
	Table     string `yaml:"table,omitempty" json:"table,omitempty"`
	Closed    bool   `yaml:"closed,omitempty" json:"closed,omitempty"`
}

// Table is an HL7 coded value table.
type Table struct {
	ID     string            `yaml:"-" json:"id"`
	Name   string            `yaml:"name" json:"name"`
	Values map[string]string `yaml:"values" json:"values"`
}

// Has reports whether code is a member of the table.
func (t *Table) Has(code string) bool {
	_, ok := t.Values[code]
	return ok
}

// Segment returns the definition for tag.
func (s *Schema) Segment(tag string) (*SegmentDef, bool) {
	def, ok := s.segments[tag]
	return def, ok
}

// DataType returns the definition of a named data type.
func (s *Schema) DataType(name string) (*DataType, bool) {
	dt, ok := s.dataTypes[name]
	return dt, ok
}

// Table returns the table with the given id, e.g. "0001".
func (s *Schema) Table(id string) (*Table, bool) {
	t, ok := s.tables[id]
	return t, ok
}

// SegmentTags returns the defined segment tags in sorted order.
func (s *Schema) SegmentTags() []string {
	tags := make([]string, 0, len(s.segments))
	for tag := range s.segments {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Field returns the definition at a 1-based position.
func (d *SegmentDef) Field(pos int) (*FieldDef, bool) {
	if pos < 1 || pos > len(d.byPos) || d.byPos[pos-1] == nil {
		return nil, false
	}
	return d.byPos[pos-1], true
}

// RequiredFields returns the required field definitions in position order.
func (d *SegmentDef) RequiredFields() []*FieldDef {
	var out []*FieldDef
	for _, f := range d.byPos {
		if f != nil && f.Required {
			out = append(out, f)
		}
	}
	return out
}
