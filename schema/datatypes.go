package schema

import (
	"strings"

	"github.com/gofhir/hl7v2/message"
)

// primitives maps primitive type names to their shape check.
var primitives = map[string]func(string) bool{
	"ST":  anyText,
	"TX":  anyText,
	"FT":  anyText,
	"GTS": anyText,
	"ID":  isCode,
	"IS":  isCode,
	"NM":  isNumeric,
	"SI":  isSequenceID,
	"DT":  isDate,
	"TM":  isTime,
	"DTM": isDateTime,
}

// IsPrimitive reports whether name is a known primitive type.
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// CheckPrimitive reports whether s has the shape of primitive type name.
// Empty values and unknown types always pass.
func CheckPrimitive(name, s string) bool {
	check, ok := primitives[name]
	if !ok || s == "" {
		return true
	}
	return check(s)
}

func anyText(string) bool { return true }

func isCode(s string) bool {
	return strings.TrimSpace(s) == s
}

func isNumeric(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func isSequenceID(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isDate(s string) bool {
	if len(s) != 4 && len(s) != 6 && len(s) != 8 {
		return false
	}
	t, _ := message.ParseTimestamp(s)
	return t != nil
}

func isDateTime(s string) bool {
	t, _ := message.ParseTimestamp(s)
	return t != nil
}

// isTime accepts HH[MM[SS[.S[S[S[S]]]]]][+/-ZZZZ].
func isTime(s string) bool {
	if i := strings.IndexAny(s, "+-"); i >= 0 {
		zone := s[i+1:]
		if len(zone) != 4 || !isSequenceID(zone) {
			return false
		}
		s = s[:i]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if len(frac) == 0 || len(frac) > 4 || !isSequenceID(frac) || i != 6 {
			return false
		}
		s = s[:i]
	}
	if len(s) != 2 && len(s) != 4 && len(s) != 6 {
		return false
	}
	if !isSequenceID(s) {
		return false
	}
	limits := []int{23, 59, 59}
	for i := 0; i < len(s); i += 2 {
		n := int(s[i]-'0')*10 + int(s[i+1]-'0')
		if n > limits[i/2] {
			return false
		}
	}
	return true
}

// Violation is one data type problem inside a field repetition.
type Violation struct {
	// Component and Subcomponent are 1-based, 0 when the whole value is meant.
	Component    int
	Subcomponent int
	DataType     string
	Value        string
	Reason       string
}

// CheckValue checks one field repetition against a data type. Composite
// types are checked component by component, one level of nesting deep.
func (s *Schema) CheckValue(typeName string, v message.Value, d message.Delimiters) []Violation {
	dt, ok := s.dataTypes[typeName]
	if !ok || !dt.IsComposite() {
		return checkScalar(typeName, v, d, 0, 0)
	}

	var out []Violation
	for i, comp := range dt.Components {
		cv, ok := v.Component(i + 1)
		if !ok || !cv.HasContent() {
			continue
		}
		if inner, ok := s.dataTypes[comp.DataType]; ok && inner.IsComposite() {
			for j, sub := range inner.Components {
				sv, ok := cv.Subcomponent(j + 1)
				if !ok {
					continue
				}
				out = append(out, checkScalar(sub.DataType, sv, d, i+1, j+1)...)
			}
			continue
		}
		out = append(out, checkScalar(comp.DataType, cv, d, i+1, 0)...)
	}
	if v.Kind() == message.Composite && v.Level() == message.LevelComponent {
		for i := len(dt.Components); i < v.Len(); i++ {
			extra, _ := v.Item(i)
			if !extra.HasContent() {
				continue
			}
			out = append(out, Violation{
				Component: i + 1,
				DataType:  typeName,
				Value:     extra.Encode(d),
				Reason:    "more components than " + typeName + " defines",
			})
			break
		}
	}
	return out
}

func checkScalar(typeName string, v message.Value, d message.Delimiters, comp, sub int) []Violation {
	if v.Kind() != message.Text {
		if !IsPrimitive(typeName) || !v.HasContent() {
			return nil
		}
		return []Violation{{
			Component:    comp,
			Subcomponent: sub,
			DataType:     typeName,
			Value:        v.Encode(d),
			Reason:       "expected a single " + typeName + " value",
		}}
	}
	if CheckPrimitive(typeName, v.Text()) {
		return nil
	}
	return []Violation{{
		Component:    comp,
		Subcomponent: sub,
		DataType:     typeName,
		Value:        v.Text(),
		Reason:       "value is not a valid " + typeName,
	}}
}
