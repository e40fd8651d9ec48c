package walker

import (
	"github.com/gofhir/hl7v2/message"
)

// Entry is one segment of an indexed message.
type Entry struct {
	Segment message.Segment
	// Position is the 0-based position of the segment in the message.
	Position int
	// Occurrence is the 1-based count of this tag up to and including it.
	Occurrence int
}

// Index provides O(1) lookup of segments by tag and occurrence.
type Index struct {
	msg     *message.Message
	entries []Entry
	byTag   map[string][]int
	tags    []string
}

// NewIndex indexes msg. A nil message gives an empty index.
func NewIndex(msg *message.Message) *Index {
	idx := &Index{
		msg:   msg,
		byTag: make(map[string][]int, 16),
	}
	if msg == nil {
		return idx
	}

	idx.entries = make([]Entry, 0, msg.Len())
	for i, seg := range msg.Segments() {
		tag := seg.Tag()
		if _, seen := idx.byTag[tag]; !seen {
			idx.tags = append(idx.tags, tag)
		}
		idx.byTag[tag] = append(idx.byTag[tag], len(idx.entries))
		idx.entries = append(idx.entries, Entry{
			Segment:    seg,
			Position:   i,
			Occurrence: len(idx.byTag[tag]),
		})
	}
	return idx
}

// Message returns the indexed message.
func (x *Index) Message() *message.Message { return x.msg }

// Entries returns every segment in message order. The slice must not be
// modified.
func (x *Index) Entries() []Entry { return x.entries }

// Tags returns the distinct segment tags in order of first appearance.
func (x *Index) Tags() []string { return x.tags }

// Count returns how many segments carry tag.
func (x *Index) Count(tag string) int { return len(x.byTag[tag]) }

// Has reports whether any segment carries tag.
func (x *Index) Has(tag string) bool { return len(x.byTag[tag]) > 0 }

// Segment returns the occ-th (1-based) segment with tag. occ 0 means the
// first one.
func (x *Index) Segment(tag string, occ int) (Entry, bool) {
	positions := x.byTag[tag]
	if occ == 0 {
		occ = 1
	}
	if occ < 1 || occ > len(positions) {
		return Entry{}, false
	}
	return x.entries[positions[occ-1]], true
}

// All returns every entry with tag in message order.
func (x *Index) All(tag string) []Entry {
	positions := x.byTag[tag]
	out := make([]Entry, len(positions))
	for i, p := range positions {
		out[i] = x.entries[p]
	}
	return out
}

// Resolve returns the value p points to. ok is false when any level of the
// path is absent from the message.
//
// A segment path resolves to the whole segment text. A field path without
// repetition or component resolves to the whole field, every repetition
// included; naming a component selects the first repetition unless one is
// given.
func (x *Index) Resolve(p Path) (message.Value, bool) {
	e, ok := x.Segment(p.Segment, p.Occurrence)
	if !ok {
		return message.Value{}, false
	}
	if p.Field == 0 {
		return message.TextValue(e.Segment.Encode(x.msg.Delimiters())), true
	}

	v, ok := e.Segment.Field(p.Field)
	if !ok {
		return message.Value{}, false
	}
	if p.Repetition == 0 && p.Component == 0 {
		return v, true
	}

	rep := p.Repetition
	if rep == 0 {
		rep = 1
	}
	if v, ok = v.Repetition(rep); !ok {
		return message.Value{}, false
	}
	if p.Component == 0 {
		return v, true
	}
	if v, ok = v.Component(p.Component); !ok {
		return message.Value{}, false
	}
	if p.Subcomponent == 0 {
		return v, true
	}
	return v.Subcomponent(p.Subcomponent)
}

// Lookup parses path and returns the delimited text it points to.
func (x *Index) Lookup(path string) (string, bool, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", false, err
	}
	v, ok := x.Resolve(p)
	if !ok {
		return "", false, nil
	}
	return v.Encode(x.msg.Delimiters()), true, nil
}
