package message

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedHeader      = errors.New("malformed MSH header")
	ErrInvalidStructure     = errors.New("invalid message structure")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrGeneration           = errors.New("cannot generate message")
)

// MalformedHeaderError is returned when delimiters cannot be resolved from
// the MSH header line.
type MalformedHeaderError struct {
	Header string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	h := e.Header
	if len(h) > 20 {
		h = h[:20] + "..."
	}
	return fmt.Sprintf("%s: %s (header %q)", ErrMalformedHeader, e.Reason, h)
}

func (e *MalformedHeaderError) Unwrap() error {
	return ErrMalformedHeader
}

// InvalidMessageStructureError is returned when the raw text is not a
// sequence of well formed segments starting with MSH.
type InvalidMessageStructureError struct {
	// Line is the 1-based source line, 0 when the problem is not tied to one.
	Line   int
	Reason string
}

func (e *InvalidMessageStructureError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", ErrInvalidStructure, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidStructure, e.Reason)
}

func (e *InvalidMessageStructureError) Unwrap() error {
	return ErrInvalidStructure
}

// MissingRequiredFieldError reports header fields that metadata extraction
// needs but the message does not carry. The metadata returned alongside it
// is still usable.
type MissingRequiredFieldError struct {
	Fields []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredField, strings.Join(e.Fields, ", "))
}

func (e *MissingRequiredFieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// GenerationError is returned when a message cannot be serialized.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrGeneration, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrGeneration, e.Reason)
}

// Is lets errors.Is match both ErrGeneration and the wrapped cause.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
