package message

import (
	"github.com/gofhir/hl7v2/pool"
)

// GenerateOption configures Generate.
type GenerateOption func(*generateConfig)

type generateConfig struct {
	terminator string
	trailing   bool
	mllp       bool
}

// WithSegmentTerminator sets the text written between segments. The
// default is "\n"; HL7 on the wire uses "\r".
func WithSegmentTerminator(term string) GenerateOption {
	return func(c *generateConfig) {
		if term != "" {
			c.terminator = term
		}
	}
}

// WithTrailingTerminator also writes the terminator after the last segment.
func WithTrailingTerminator(enable bool) GenerateOption {
	return func(c *generateConfig) {
		c.trailing = enable
	}
}

// WithMLLPFrame wraps the output in an MLLP start and end block.
func WithMLLPFrame(enable bool) GenerateOption {
	return func(c *generateConfig) {
		c.mllp = enable
	}
}

// Generate serializes msg using the delimiters it carries.
//
// Values are written exactly as held, so escape sequences pass through
// unchanged and Parse(Generate(m)) equals m.
func Generate(msg *Message, opts ...GenerateOption) (string, error) {
	cfg := generateConfig{terminator: "\n"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkGeneratable(msg); err != nil {
		return "", err
	}

	buf := pool.AcquireBuffer()
	defer pool.ReleaseBuffer(buf)

	b := *buf
	if cfg.mllp {
		b = append(b, StartBlock)
	}
	for i, seg := range msg.segments {
		if i > 0 {
			b = append(b, cfg.terminator...)
		}
		b = appendSegment(b, seg, msg.delims)
	}
	if cfg.trailing || cfg.mllp {
		b = append(b, cfg.terminator...)
	}
	if cfg.mllp {
		b = append(b, EndBlock, '\r')
	}
	*buf = b
	return string(b), nil
}

func checkGeneratable(msg *Message) error {
	if msg == nil || len(msg.segments) == 0 {
		return &GenerationError{Reason: "message has no segments"}
	}
	if err := msg.delims.Validate(); err != nil {
		return &GenerationError{Reason: "invalid delimiters", Err: err}
	}

	head := msg.segments[0]
	if !head.IsHeader() {
		return &GenerationError{Reason: "first segment must be MSH, got " + head.tag}
	}
	if sep, ok := head.Field(1); ok && (sep.Kind() != Text || sep.Text() != string(msg.delims.Field)) {
		return &GenerationError{Reason: "MSH.1 " + sep.String() + " does not match field separator " + string(msg.delims.Field)}
	}
	if enc, ok := head.Field(2); ok && !encodingMatches(enc, msg.delims) {
		return &GenerationError{Reason: "MSH.2 " + enc.String() + " does not match message delimiters " + msg.delims.String()}
	}
	for _, seg := range msg.segments {
		if !ValidTag(seg.tag) {
			return &GenerationError{Reason: "invalid segment tag " + seg.tag}
		}
	}
	return nil
}

// encodingMatches reports whether an MSH.2 value resolves to d. A header
// that disagrees with the message delimiters would not parse back to the
// same message.
func encodingMatches(enc Value, d Delimiters) bool {
	if enc.Kind() != Text {
		return false
	}
	s := enc.Text()
	want := d.EncodingCharacters()
	defaults := DefaultDelimiters.EncodingCharacters()
	for i := 0; i < len(want); i++ {
		if i < len(s) {
			if s[i] != want[i] {
				return false
			}
		} else if want[i] != defaults[i] {
			return false
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == d.Field {
			return false
		}
	}
	return true
}
