package walker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/pool"
)

// ErrInvalidPath is matched by every *PathError.
var ErrInvalidPath = errors.New("invalid path")

// PathError describes a path that cannot be parsed.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidPath, e.Path, e.Reason)
}

func (e *PathError) Unwrap() error {
	return ErrInvalidPath
}

// Path addresses a value inside a message. Zero numbers mean "not given":
// a path without Field selects the segment, one without Component the whole
// field.
type Path struct {
	Segment      string
	Occurrence   int
	Field        int
	Repetition   int
	Component    int
	Subcomponent int
}

// ParsePath parses SEG[occ].field[rep].component.subcomponent.
func ParsePath(s string) (Path, error) {
	var p Path
	raw := strings.TrimSpace(s)
	if raw == "" {
		return p, &PathError{Path: s, Reason: "empty path"}
	}

	head, rest, _ := cutAny(raw, ".-")
	tag, occ, err := splitIndex(head)
	if err != nil {
		return p, &PathError{Path: s, Reason: err.Error()}
	}
	if !message.ValidTag(tag) {
		return p, &PathError{Path: s, Reason: fmt.Sprintf("invalid segment tag %q", tag)}
	}
	p.Segment, p.Occurrence = tag, occ
	if rest == "" {
		if strings.ContainsAny(raw[len(head):], ".-") {
			return p, &PathError{Path: s, Reason: "missing field number"}
		}
		return p, nil
	}

	parts := strings.Split(rest, ".")
	if len(parts) > 3 {
		return p, &PathError{Path: s, Reason: "too many levels"}
	}

	field, rep, err := splitIndex(parts[0])
	if err != nil {
		return p, &PathError{Path: s, Reason: err.Error()}
	}
	if p.Field, err = number(field); err != nil {
		return p, &PathError{Path: s, Reason: "field: " + err.Error()}
	}
	p.Repetition = rep

	if len(parts) > 1 {
		if p.Component, err = number(parts[1]); err != nil {
			return p, &PathError{Path: s, Reason: "component: " + err.Error()}
		}
	}
	if len(parts) > 2 {
		if p.Subcomponent, err = number(parts[2]); err != nil {
			return p, &PathError{Path: s, Reason: "subcomponent: " + err.Error()}
		}
	}
	return p, nil
}

// MustParsePath is ParsePath that panics on error. For static paths only.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical form of p, e.g. "PID[1].3[2].1".
func (p Path) String() string {
	return pool.BuildPath(func(b *pool.PathBuilder) {
		b.Segment(p.Segment)
		if p.Occurrence > 0 {
			b.Index(p.Occurrence)
		}
		if p.Field == 0 {
			return
		}
		b.Position(p.Field)
		if p.Repetition > 0 {
			b.Index(p.Repetition)
		}
		if p.Component > 0 {
			b.Position(p.Component)
		}
		if p.Subcomponent > 0 {
			b.Position(p.Subcomponent)
		}
	})
}

// splitIndex splits "NAME[n]" into NAME and n. A missing index is 0.
func splitIndex(s string) (string, int, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if strings.IndexByte(s, ']') >= 0 {
			return "", 0, fmt.Errorf("unbalanced ']' in %q", s)
		}
		return s, 0, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", 0, fmt.Errorf("unterminated index in %q", s)
	}
	n, err := number(s[open+1 : len(s)-1])
	if err != nil {
		return "", 0, fmt.Errorf("index in %q: %w", s, err)
	}
	return s[:open], n, nil
}

func number(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not a 1-based position", n)
	}
	return n, nil
}

func cutAny(s, seps string) (before, after string, found bool) {
	if i := strings.IndexAny(s, seps); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
