package message

import "fmt"

// Delimiters holds the five separator characters of one message.
// It is a value type and never changes after resolution.
type Delimiters struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// DefaultDelimiters are the separators used by virtually every HL7 feed:
// MSH|^~\&
var DefaultDelimiters = Delimiters{
	Field:        '|',
	Component:    '^',
	Repetition:   '~',
	Escape:       '\\',
	Subcomponent: '&',
}

// EncodingCharacters returns the MSH.2 form of d: component, repetition,
// escape and subcomponent separators in that order.
func (d Delimiters) EncodingCharacters() string {
	return string([]byte{d.Component, d.Repetition, d.Escape, d.Subcomponent})
}

// String returns the header prefix d would produce, e.g. `|^~\&`.
func (d Delimiters) String() string {
	return string(d.Field) + d.EncodingCharacters()
}

// Validate reports whether the five separators are usable: pairwise
// distinct, printable and not line terminators.
func (d Delimiters) Validate() error {
	chars := [5]byte{d.Field, d.Component, d.Repetition, d.Escape, d.Subcomponent}
	names := [5]string{"field", "component", "repetition", "escape", "subcomponent"}

	for i, c := range chars {
		if c == 0 || c == '\r' || c == '\n' {
			return fmt.Errorf("%s separator %q is not allowed", names[i], c)
		}
		if isAlnum(c) {
			return fmt.Errorf("%s separator %q must not be alphanumeric", names[i], c)
		}
		for j := i + 1; j < len(chars); j++ {
			if c == chars[j] {
				return fmt.Errorf("%s and %s separators are both %q", names[i], names[j], c)
			}
		}
	}
	return nil
}

// ResolveDelimiters reads the separators from an MSH header line.
//
// The field separator is the fourth character and the encoding characters
// run up to the next field separator. Encoding positions the header leaves
// out take their default.
func ResolveDelimiters(header string) (Delimiters, error) {
	if len(header) < 8 {
		return Delimiters{}, &MalformedHeaderError{Header: header, Reason: "header shorter than 8 characters"}
	}
	if header[:3] != "MSH" {
		return Delimiters{}, &MalformedHeaderError{Header: header, Reason: "segment tag is not MSH"}
	}

	d := DefaultDelimiters
	d.Field = header[3]

	enc := encodingCharacters(header)
	slots := [4]*byte{&d.Component, &d.Repetition, &d.Escape, &d.Subcomponent}
	for i, slot := range slots {
		if i < len(enc) {
			*slot = enc[i]
		}
	}

	if err := d.Validate(); err != nil {
		return Delimiters{}, &MalformedHeaderError{Header: header, Reason: err.Error()}
	}
	return d, nil
}

// encodingCharacters returns the raw MSH.2 text of an MSH line whose field
// separator is line[3].
func encodingCharacters(line string) string {
	rest := line[4:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == line[3] {
			return rest[:i]
		}
	}
	return rest
}

// separator returns the byte that splits values at the given level.
func (d Delimiters) separator(l Level) byte {
	if l == LevelSubcomponent {
		return d.Subcomponent
	}
	return d.Component
}

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
