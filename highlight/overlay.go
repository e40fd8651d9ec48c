package highlight

import (
	"sort"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
)

// Span marks the source range an issue refers to.
type Span struct {
	Start    int              `json:"start"` // byte offset, inclusive
	End      int              `json:"end"`   // byte offset, exclusive
	Line     int              `json:"line"`
	Severity hv.IssueSeverity `json:"severity"`
	Issue    int              `json:"issue"` // index into the issues passed to Overlay
}

// Text returns the source text covered by s.
func (s Span) Text(raw string) string {
	if s.Start < 0 || s.End > len(raw) || s.Start > s.End {
		return ""
	}
	return raw[s.Start:s.End]
}

// Overlay maps issues onto raw. An issue with a Line and Field covers that
// field; a field past the end of the segment, or an issue without a Field,
// covers the whole line. Issues without a Line, or with a Line outside raw,
// produce no span. Spans are ordered by position, then by issue index.
func Overlay(raw string, issues []hv.Issue) []Span {
	lines := lineRanges(raw)
	d := delimitersOf(raw, lines)

	var spans []Span
	for i, issue := range issues {
		if issue.Line < 1 || issue.Line > len(lines) {
			continue
		}
		lr := lines[issue.Line-1]
		start, end := lr[0], lr[1]
		if issue.Field > 0 {
			if fs, fe, ok := fieldRange(raw[start:end], issue.Field, d); ok {
				start, end = start+fs, start+fe
			}
		}
		spans = append(spans, Span{
			Start:    start,
			End:      end,
			Line:     issue.Line,
			Severity: issue.Severity,
			Issue:    i,
		})
	}

	sort.SliceStable(spans, func(a, b int) bool {
		if spans[a].Start != spans[b].Start {
			return spans[a].Start < spans[b].Start
		}
		return spans[a].Issue < spans[b].Issue
	})
	return spans
}

// lineRanges returns [start, end) offsets of each line, without its break
// and without MLLP framing bytes.
func lineRanges(raw string) [][2]int {
	var out [][2]int
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\r':
			out = append(out, trimFrame(raw, start, i))
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			out = append(out, trimFrame(raw, start, i))
			start = i + 1
		}
	}
	if start < len(raw) {
		out = append(out, trimFrame(raw, start, len(raw)))
	}
	return out
}

func trimFrame(raw string, start, end int) [2]int {
	if start < end && raw[start] == message.StartBlock {
		start++
	}
	for end > start && raw[end-1] == message.EndBlock {
		end--
	}
	return [2]int{start, end}
}

func delimitersOf(raw string, lines [][2]int) message.Delimiters {
	if len(lines) > 0 {
		if d, err := message.ResolveDelimiters(raw[lines[0][0]:lines[0][1]]); err == nil {
			return d
		}
	}
	return message.DefaultDelimiters
}

// fieldRange finds field n of one segment line. MSH counts its field
// separator as field 1 and its encoding characters as field 2.
func fieldRange(line string, n int, d message.Delimiters) (start, end int, ok bool) {
	if len(line) < 3 {
		return 0, 0, false
	}

	// i sits on the separator before field 1 of an ordinary segment.
	i := 3
	if line[:3] == message.HeaderTag {
		if len(line) < 4 {
			return 0, 0, false
		}
		enc := 4
		for enc < len(line) && line[enc] != d.Field {
			enc++
		}
		switch n {
		case 1:
			return 3, 4, true
		case 2:
			return 4, enc, true
		}
		i, n = enc, n-2
	}

	for skipped := 1; skipped < n; skipped++ {
		i = nextField(line, i+1, d)
		if i >= len(line) {
			return 0, 0, false
		}
	}
	if i >= len(line) {
		return 0, 0, false
	}
	return i + 1, nextField(line, i+1, d), true
}

// nextField returns the index of the next field separator at or after
// from, or len(line).
func nextField(line string, from int, d message.Delimiters) int {
	for i := from; i < len(line); i++ {
		switch line[i] {
		case d.Field:
			return i
		case d.Escape:
			if j := closingEscape(line, i+1, d); j > 0 {
				i = j
			}
		}
	}
	return len(line)
}
