package message

// HeaderTag is the tag of the message header segment.
const HeaderTag = "MSH"

// Segment is one line of a message: a tag plus ordered fields.
//
// Fields use HL7 numbering: Field(1) is the first value after the tag. For
// MSH, Field(1) is the field separator and Field(2) the encoding
// characters, both as Text. Field(0) returns the tag.
type Segment struct {
	tag    string
	fields []Value
	line   int
}

// NewSegment builds a segment from its tag and fields, field 1 first.
func NewSegment(tag string, fields ...Value) Segment {
	return Segment{tag: tag, fields: fields}
}

// NewHeader builds an MSH segment for d. fields start at MSH.3.
func NewHeader(d Delimiters, fields ...Value) Segment {
	all := make([]Value, 0, len(fields)+2)
	all = append(all, TextValue(string(d.Field)), TextValue(d.EncodingCharacters()))
	all = append(all, fields...)
	return Segment{tag: HeaderTag, fields: all}
}

func (s Segment) Tag() string { return s.tag }

// Line returns the 1-based source line the segment was parsed from, or 0.
func (s Segment) Line() int { return s.line }

// Len returns the number of fields, i.e. the highest field number present.
func (s Segment) Len() int { return len(s.fields) }

// IsHeader reports whether s is an MSH segment.
func (s Segment) IsHeader() bool { return s.tag == HeaderTag }

// Field returns field n. Field 0 is the tag.
func (s Segment) Field(n int) (Value, bool) {
	if n == 0 {
		return TextValue(s.tag), true
	}
	if n < 0 || n > len(s.fields) {
		return Value{}, false
	}
	return s.fields[n-1], true
}

// Fields returns a copy of the fields, field 1 first.
func (s Segment) Fields() []Value {
	out := make([]Value, len(s.fields))
	copy(out, s.fields)
	return out
}

// WithField returns a copy of s with field n set to v, padding with empty
// fields as needed.
func (s Segment) WithField(n int, v Value) Segment {
	if n < 1 {
		return s
	}
	size := len(s.fields)
	if n > size {
		size = n
	}
	fields := make([]Value, size)
	copy(fields, s.fields)
	fields[n-1] = v
	return Segment{tag: s.tag, fields: fields, line: s.line}
}

// Encode returns the segment as delimited text.
func (s Segment) Encode(d Delimiters) string {
	buf := appendSegment(nil, s, d)
	return string(buf)
}

// appendSegment writes MSH.1 as d.Field; Generate rejects headers whose
// MSH.1 disagrees.
func appendSegment(buf []byte, s Segment, d Delimiters) []byte {
	buf = append(buf, s.tag...)
	if s.IsHeader() {
		buf = append(buf, d.Field)
		if len(s.fields) > 1 {
			buf = append(buf, s.fields[1].Encode(d)...)
		}
		for i := 2; i < len(s.fields); i++ {
			buf = append(buf, d.Field)
			buf = append(buf, s.fields[i].Encode(d)...)
		}
		return buf
	}
	for _, f := range s.fields {
		buf = append(buf, d.Field)
		buf = append(buf, f.Encode(d)...)
	}
	return buf
}

// Equal reports whether s and o have the same tag and fields. Source lines
// are ignored.
func (s Segment) Equal(o Segment) bool {
	if s.tag != o.tag || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(o.fields[i]) {
			return false
		}
	}
	return true
}

// Message is an ordered list of segments plus the delimiters they were
// parsed with. Messages are never modified in place; the With* methods
// return new messages that share unchanged segments.
type Message struct {
	delims   Delimiters
	segments []Segment
}

// New builds a message from a segment tree.
func New(d Delimiters, segments ...Segment) *Message {
	return &Message{delims: d, segments: segments}
}

// Delimiters returns the separators carried by the message.
func (m *Message) Delimiters() Delimiters { return m.delims }

// Len returns the number of segments.
func (m *Message) Len() int { return len(m.segments) }

// Segment returns the i-th (0-based) segment.
func (m *Message) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(m.segments) {
		return Segment{}, false
	}
	return m.segments[i], true
}

// Segments returns a copy of the segment list.
func (m *Message) Segments() []Segment {
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Header returns the MSH segment when it is the first segment.
func (m *Message) Header() (Segment, bool) {
	if len(m.segments) == 0 || !m.segments[0].IsHeader() {
		return Segment{}, false
	}
	return m.segments[0], true
}

// First returns the first segment with the given tag.
func (m *Message) First(tag string) (Segment, bool) {
	for _, s := range m.segments {
		if s.tag == tag {
			return s, true
		}
	}
	return Segment{}, false
}

// All returns every segment with the given tag, in message order.
func (m *Message) All(tag string) []Segment {
	var out []Segment
	for _, s := range m.segments {
		if s.tag == tag {
			out = append(out, s)
		}
	}
	return out
}

// WithSegment returns a new message with seg appended.
func (m *Message) WithSegment(seg Segment) *Message {
	segs := make([]Segment, len(m.segments), len(m.segments)+1)
	copy(segs, m.segments)
	return &Message{delims: m.delims, segments: append(segs, seg)}
}

// ReplaceSegment returns a new message with segment i replaced by seg.
func (m *Message) ReplaceSegment(i int, seg Segment) (*Message, bool) {
	if i < 0 || i >= len(m.segments) {
		return m, false
	}
	segs := m.Segments()
	segs[i] = seg
	return &Message{delims: m.delims, segments: segs}, true
}

// Equal reports whether both messages have the same delimiters and
// segments, ignoring source lines.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.delims != o.delims || len(m.segments) != len(o.segments) {
		return false
	}
	for i := range m.segments {
		if !m.segments[i].Equal(o.segments[i]) {
			return false
		}
	}
	return true
}
