// Package highlight splits raw HL7 text into typed tokens for syntax
// highlighting and maps validation issues back onto byte ranges of the
// source.
//
// Line numbers follow the parser: "\r", "\n" and "\r\n" each end one line,
// and blank lines count.
package highlight

import (
	"strings"

	"github.com/gofhir/hl7v2/message"
)

// Kind classifies a token.
type Kind uint8

const (
	KindText Kind = iota
	KindSegment
	KindFieldSeparator
	KindComponentSeparator
	KindRepetitionSeparator
	KindSubcomponentSeparator
	KindEncodingCharacters
	KindEscape
	KindLineBreak
	KindFrame
)

var kindNames = [...]string{
	KindText:                  "text",
	KindSegment:               "segment",
	KindFieldSeparator:        "field-separator",
	KindComponentSeparator:    "component-separator",
	KindRepetitionSeparator:   "repetition-separator",
	KindSubcomponentSeparator: "subcomponent-separator",
	KindEncodingCharacters:    "encoding-characters",
	KindEscape:                "escape",
	KindLineBreak:             "line-break",
	KindFrame:                 "frame",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText lets tokens serialize their kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Token is a run of source text of one kind.
type Token struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Offset int    `json:"offset"` // byte offset in the source
	Line   int    `json:"line"`   // 1-based
	Column int    `json:"column"` // 1-based byte column
}

// Tokenize splits raw into tokens using the delimiters declared by its MSH
// header. Concatenating the token texts gives back raw. An error is
// returned when the header is missing or malformed.
func Tokenize(raw string) ([]Token, error) {
	body := raw
	if len(body) > 0 && body[0] == message.StartBlock {
		body = body[1:]
	}
	header := body
	if i := strings.IndexAny(header, "\r\n"); i >= 0 {
		header = header[:i]
	}
	d, err := message.ResolveDelimiters(header)
	if err != nil {
		return nil, err
	}

	t := &tokenizer{src: raw, d: d, line: 1, lineStart: 0}
	t.run()
	return t.out, nil
}

type tokenizer struct {
	src       string
	d         message.Delimiters
	out       []Token
	line      int
	lineStart int
}

func (t *tokenizer) emit(kind Kind, start, end int) {
	if end <= start {
		return
	}
	// Merge adjacent text runs
	if n := len(t.out); n > 0 && kind == KindText && t.out[n-1].Kind == KindText && t.out[n-1].Offset+len(t.out[n-1].Text) == start {
		t.out[n-1].Text = t.src[t.out[n-1].Offset:end]
		return
	}
	t.out = append(t.out, Token{
		Kind:   kind,
		Text:   t.src[start:end],
		Offset: start,
		Line:   t.line,
		Column: start - t.lineStart + 1,
	})
}

func (t *tokenizer) run() {
	src := t.src
	i := 0
	atLineStart := true
	for i < len(src) {
		c := src[i]
		switch {
		case c == message.StartBlock || c == message.EndBlock:
			t.emit(KindFrame, i, i+1)
			i++
			continue
		case c == '\r' || c == '\n':
			end := i + 1
			if c == '\r' && end < len(src) && src[end] == '\n' {
				end++
			}
			t.emit(KindLineBreak, i, end)
			t.line++
			t.lineStart = end
			i = end
			atLineStart = true
			continue
		}

		if atLineStart {
			atLineStart = false
			i = t.segmentStart(i)
			continue
		}
		i = t.value(i)
	}
}

// segmentStart tokenizes the tag and, for MSH, the separator and encoding
// characters that follow it.
func (t *tokenizer) segmentStart(i int) int {
	src := t.src
	end := i
	for end < len(src) && src[end] != t.d.Field && src[end] != '\r' && src[end] != '\n' && src[end] != message.EndBlock {
		end++
	}
	t.emit(KindSegment, i, end)
	if src[i:end] != message.HeaderTag || end >= len(src) || src[end] != t.d.Field {
		return end
	}

	t.emit(KindFieldSeparator, end, end+1)
	encStart := end + 1
	encEnd := encStart
	for encEnd < len(src) && src[encEnd] != t.d.Field && src[encEnd] != '\r' && src[encEnd] != '\n' {
		encEnd++
	}
	t.emit(KindEncodingCharacters, encStart, encEnd)
	return encEnd
}

// value tokenizes one token of field content starting at i.
func (t *tokenizer) value(i int) int {
	src := t.src
	c := src[i]
	switch c {
	case t.d.Field:
		t.emit(KindFieldSeparator, i, i+1)
		return i + 1
	case t.d.Component:
		t.emit(KindComponentSeparator, i, i+1)
		return i + 1
	case t.d.Repetition:
		t.emit(KindRepetitionSeparator, i, i+1)
		return i + 1
	case t.d.Subcomponent:
		t.emit(KindSubcomponentSeparator, i, i+1)
		return i + 1
	case t.d.Escape:
		if end := closingEscape(src, i+1, t.d); end > 0 {
			t.emit(KindEscape, i, end+1)
			return end + 1
		}
		t.emit(KindText, i, i+1)
		return i + 1
	}

	end := i + 1
	for end < len(src) && !t.special(src[end]) {
		end++
	}
	t.emit(KindText, i, end)
	return end
}

func (t *tokenizer) special(c byte) bool {
	switch c {
	case t.d.Field, t.d.Component, t.d.Repetition, t.d.Subcomponent, t.d.Escape,
		'\r', '\n', message.StartBlock, message.EndBlock:
		return true
	}
	return false
}

// closingEscape finds the escape character closing a sequence within the
// same field, or -1.
func closingEscape(s string, from int, d message.Delimiters) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case d.Escape:
			return i
		case d.Field, '\r', '\n':
			return -1
		}
	}
	return -1
}
