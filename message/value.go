package message

import "strings"

// Kind tells which variant a Value holds.
type Kind uint8

const (
	// Text is a scalar string, escape sequences kept verbatim.
	Text Kind = iota
	// Repeated is an ordered list of field repetitions.
	Repeated
	// Composite is an ordered list of components or subcomponents.
	Composite
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Repeated:
		return "repeated"
	case Composite:
		return "composite"
	default:
		return "unknown"
	}
}

// Level is the separator a Composite was split on.
type Level uint8

const (
	LevelNone Level = iota
	LevelComponent
	LevelSubcomponent
)

// Value is the recursive field value: Text, Repeated or Composite.
//
// A level only exists when its separator occurs in the source, so "DOE"
// is Text, "DOE^JOHN" a two item Composite and "A&B" a Composite at
// subcomponent level. The zero Value is an empty Text.
type Value struct {
	kind  Kind
	level Level
	text  string
	items []Value
}

// TextValue returns a scalar value.
func TextValue(s string) Value {
	return Value{kind: Text, text: s}
}

// RepeatedValue returns a field with the given repetitions.
func RepeatedValue(reps ...Value) Value {
	return Value{kind: Repeated, items: reps}
}

// CompositeValue returns a value made of components.
func CompositeValue(components ...Value) Value {
	return Value{kind: Composite, level: LevelComponent, items: components}
}

// SubcompositeValue returns a value made of subcomponents.
func SubcompositeValue(subs ...Value) Value {
	return Value{kind: Composite, level: LevelSubcomponent, items: subs}
}

// Texts is shorthand for a component Composite of scalar values,
// e.g. Texts("DOE", "JOHN") for DOE^JOHN.
func Texts(components ...string) Value {
	items := make([]Value, len(components))
	for i, c := range components {
		items[i] = TextValue(c)
	}
	return CompositeValue(items...)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) Level() Level { return v.level }

// Text returns the scalar string of a Text value and "" for the others.
// Use Encode to get the delimited form of any value.
func (v Value) Text() string {
	if v.kind == Text {
		return v.text
	}
	return ""
}

// Len returns the number of repetitions or components, 1 for Text.
func (v Value) Len() int {
	if v.kind == Text {
		return 1
	}
	return len(v.items)
}

// Item returns the i-th (0-based) child of a Repeated or Composite value.
func (v Value) Item(i int) (Value, bool) {
	if v.kind == Text || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Repetitions returns the field repetitions; a non repeated value is its
// own single repetition.
func (v Value) Repetitions() []Value {
	if v.kind == Repeated {
		return v.items
	}
	return []Value{v}
}

// Repetition returns the n-th (1-based) repetition.
func (v Value) Repetition(n int) (Value, bool) {
	reps := v.Repetitions()
	if n < 1 || n > len(reps) {
		return Value{}, false
	}
	return reps[n-1], true
}

// Component returns the n-th (1-based) component. Values without a
// component level are their own first component.
func (v Value) Component(n int) (Value, bool) {
	if v.kind == Composite && v.level == LevelComponent {
		return v.Item(n - 1)
	}
	if n == 1 && v.kind != Repeated {
		return v, true
	}
	return Value{}, false
}

// Subcomponent returns the n-th (1-based) subcomponent.
func (v Value) Subcomponent(n int) (Value, bool) {
	if v.kind == Composite && v.level == LevelSubcomponent {
		return v.Item(n - 1)
	}
	if n == 1 && v.kind == Text {
		return v, true
	}
	return Value{}, false
}

// IsEmpty reports whether v encodes to the empty string.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case Text:
		return v.text == ""
	case Composite:
		return len(v.items) == 0
	default:
		return len(v.items) == 0 || (len(v.items) == 1 && v.items[0].IsEmpty())
	}
}

// HasContent reports whether any leaf of v is non empty. "^^" has no
// content while still encoding to a non empty string.
func (v Value) HasContent() bool {
	if v.kind == Text {
		return v.text != ""
	}
	for _, it := range v.items {
		if it.HasContent() {
			return true
		}
	}
	return false
}

// Encode joins v back into delimited text using d.
func (v Value) Encode(d Delimiters) string {
	if v.kind == Text {
		return v.text
	}
	var b strings.Builder
	v.encode(&b, d)
	return b.String()
}

func (v Value) encode(b *strings.Builder, d Delimiters) {
	switch v.kind {
	case Text:
		b.WriteString(v.text)
	case Repeated:
		for i, it := range v.items {
			if i > 0 {
				b.WriteByte(d.Repetition)
			}
			it.encode(b, d)
		}
	case Composite:
		sep := d.separator(v.level)
		for i, it := range v.items {
			if i > 0 {
				b.WriteByte(sep)
			}
			it.encode(b, d)
		}
	}
}

// String encodes v with the default delimiters.
func (v Value) String() string {
	return v.Encode(DefaultDelimiters)
}

// Equal reports whether v and o have the same shape and text.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.level != o.level || v.text != o.text || len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}
