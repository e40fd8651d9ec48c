package message

import (
	"encoding/hex"
	"strings"
)

// Unescape decodes the HL7 escape sequences in s:
//
//	\F\ field separator     \S\ component separator
//	\T\ subcomponent        \R\ repetition separator
//	\E\ escape character    \Xhh..\ hex encoded bytes
//	\.br\ line break
//
// Formatting and character set sequences (\H\, \N\, \C..\, \M..\, \Z..\)
// are left as they are, as is an escape character without a partner.
func Unescape(s string, d Delimiters) string {
	if strings.IndexByte(s, d.Escape) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != d.Escape {
			b.WriteByte(c)
			continue
		}
		end := closingEscape(s, i+1, d)
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		seq := s[i+1 : end]
		if decoded, ok := decodeEscape(seq, d); ok {
			b.WriteString(decoded)
		} else {
			b.WriteString(s[i : end+1])
		}
		i = end
	}
	return b.String()
}

func decodeEscape(seq string, d Delimiters) (string, bool) {
	switch seq {
	case "F":
		return string(d.Field), true
	case "S":
		return string(d.Component), true
	case "T":
		return string(d.Subcomponent), true
	case "R":
		return string(d.Repetition), true
	case "E":
		return string(d.Escape), true
	case ".br":
		return "\n", true
	}
	if len(seq) > 1 && seq[0] == 'X' {
		raw, err := hex.DecodeString(seq[1:])
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
	return "", false
}

// Escape encodes the delimiter characters and line breaks in s so it can be
// stored as a single Text value. Unescape(Escape(s, d), d) == s.
func Escape(s string, d Delimiters) string {
	if !strings.ContainsAny(s, string([]byte{d.Field, d.Component, d.Repetition, d.Escape, d.Subcomponent, '\r', '\n'})) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	esc := func(code string) {
		b.WriteByte(d.Escape)
		b.WriteString(code)
		b.WriteByte(d.Escape)
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case d.Field:
			esc("F")
		case d.Component:
			esc("S")
		case d.Subcomponent:
			esc("T")
		case d.Repetition:
			esc("R")
		case d.Escape:
			esc("E")
		case '\n':
			esc(".br")
		case '\r':
			esc("X0D")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
