package message

// splitEscaped splits s on sep, treating text between a pair of escape
// characters as data. The closing escape must come before the next field
// separator, since an escape sequence never spans fields; otherwise the
// escape character is taken literally.
func splitEscaped(s string, sep byte, d Delimiters) []string {
	parts := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case d.Escape:
			if end := closingEscape(s, i+1, d); end > 0 {
				i = end
			}
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// containsUnescaped reports whether sep occurs in s outside escape sequences.
func containsUnescaped(s string, sep byte, d Delimiters) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case d.Escape:
			if end := closingEscape(s, i+1, d); end > 0 {
				i = end
			}
		case sep:
			return true
		}
	}
	return false
}

// closingEscape returns the index of the escape character closing a
// sequence opened before from, or -1 if a field separator or the end of s
// comes first.
func closingEscape(s string, from int, d Delimiters) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case d.Escape:
			return i
		case d.Field:
			return -1
		}
	}
	return -1
}

// ParseValue splits raw field text into a Value using d. Levels are only
// introduced where their separator is present, so ParseValue(v.Encode(d), d)
// equals v for every value it returns.
func ParseValue(raw string, d Delimiters) Value {
	if !containsUnescaped(raw, d.Repetition, d) {
		return parseComponents(raw, d)
	}
	parts := splitEscaped(raw, d.Repetition, d)
	reps := make([]Value, len(parts))
	for i, p := range parts {
		reps[i] = parseComponents(p, d)
	}
	return RepeatedValue(reps...)
}

func parseComponents(raw string, d Delimiters) Value {
	if !containsUnescaped(raw, d.Component, d) {
		return parseSubcomponents(raw, d)
	}
	parts := splitEscaped(raw, d.Component, d)
	comps := make([]Value, len(parts))
	for i, p := range parts {
		comps[i] = parseSubcomponents(p, d)
	}
	return CompositeValue(comps...)
}

func parseSubcomponents(raw string, d Delimiters) Value {
	if !containsUnescaped(raw, d.Subcomponent, d) {
		return TextValue(raw)
	}
	parts := splitEscaped(raw, d.Subcomponent, d)
	subs := make([]Value, len(parts))
	for i, p := range parts {
		subs[i] = TextValue(p)
	}
	return SubcompositeValue(subs...)
}
