package message

import (
	"fmt"
	"strings"
)

// MLLP framing bytes.
const (
	StartBlock = 0x0b
	EndBlock   = 0x1c
)

// Parse converts raw HL7 text into a Message.
//
// An MLLP frame around the text is removed. Segments may be terminated by
// "\r", "\n" or "\r\n" and blank lines are skipped. The first segment must
// be MSH; its header supplies the delimiters for the rest of the message.
// Escape sequences are kept verbatim. See Unescape.
func Parse(raw string) (*Message, error) {
	lines := Lines(StripMLLP(raw))

	var (
		d    Delimiters
		segs = make([]Segment, 0, len(lines))
	)
	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(segs) == 0 {
			if !strings.HasPrefix(line, HeaderTag) {
				return nil, &InvalidMessageStructureError{
					Line:   lineNo,
					Reason: fmt.Sprintf("first segment must be MSH, got %q", truncate(line, 10)),
				}
			}
			var err error
			if d, err = ResolveDelimiters(line); err != nil {
				return nil, err
			}
		}

		seg, err := parseSegment(line, d)
		if err != nil {
			return nil, &InvalidMessageStructureError{Line: lineNo, Reason: err.Error()}
		}
		seg.line = lineNo
		segs = append(segs, seg)
	}

	if len(segs) == 0 {
		return nil, &InvalidMessageStructureError{Reason: "message is empty"}
	}
	return &Message{delims: d, segments: segs}, nil
}

// ParseBytes is Parse for a byte slice.
func ParseBytes(raw []byte) (*Message, error) {
	return Parse(string(raw))
}

// StripMLLP removes an MLLP start block and end block/carriage return
// trailer when present.
func StripMLLP(raw string) string {
	if len(raw) > 0 && raw[0] == StartBlock {
		raw = raw[1:]
	}
	if i := strings.LastIndexByte(raw, EndBlock); i >= 0 && strings.TrimRight(raw[i+1:], "\r\n") == "" {
		raw = raw[:i]
	}
	return raw
}

// Lines splits text on "\r\n", "\r" or "\n". Blank lines are kept so the
// slice index + 1 is the source line number.
func Lines(raw string) []string {
	lines := make([]string, 0, strings.Count(raw, "\r")+strings.Count(raw, "\n")+1)
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\r':
			lines = append(lines, raw[start:i])
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			lines = append(lines, raw[start:i])
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, raw[start:])
	}
	return lines
}

func parseSegment(line string, d Delimiters) (Segment, error) {
	end := strings.IndexByte(line, d.Field)
	if end < 0 {
		end = len(line)
	}
	tag := line[:end]
	if !ValidTag(tag) {
		return Segment{}, fmt.Errorf("invalid segment tag %q", truncate(tag, 10))
	}

	if tag == HeaderTag {
		return parseHeader(line, d)
	}
	if end == len(line) {
		return Segment{tag: tag}, nil
	}

	parts := splitEscaped(line[end+1:], d.Field, d)
	fields := make([]Value, len(parts))
	for i, p := range parts {
		fields[i] = ParseValue(p, d)
	}
	return Segment{tag: tag, fields: fields}, nil
}

// parseHeader handles the MSH layout: MSH.1 is the separator itself and
// MSH.2 the encoding characters, which are never split.
func parseHeader(line string, d Delimiters) (Segment, error) {
	if len(line) < 4 || line[3] != d.Field {
		return Segment{}, fmt.Errorf("MSH segment does not use field separator %q", d.Field)
	}
	enc := encodingCharacters(line)
	fields := []Value{TextValue(string(d.Field)), TextValue(enc)}

	rest := line[4+len(enc):]
	if rest == "" {
		return Segment{tag: HeaderTag, fields: fields}, nil
	}
	for _, p := range splitEscaped(rest[1:], d.Field, d) {
		fields = append(fields, ParseValue(p, d))
	}
	return Segment{tag: HeaderTag, fields: fields}, nil
}

// ValidTag reports whether tag is three characters, an upper case letter
// followed by upper case letters or digits.
func ValidTag(tag string) bool {
	if len(tag) != 3 || tag[0] < 'A' || tag[0] > 'Z' {
		return false
	}
	for i := 1; i < 3; i++ {
		c := tag[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
