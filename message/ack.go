package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AckCode is the MSA.1 acknowledgment code.
type AckCode string

const (
	AckAccept       AckCode = "AA"
	AckError        AckCode = "AE"
	AckReject       AckCode = "AR"
	AckCommitAccept AckCode = "CA"
	AckCommitError  AckCode = "CE"
	AckCommitReject AckCode = "CR"
)

const (
	maxControlIDLength = 20
	timestampLayout    = "20060102150405-0700"
)

// AckOption configures NewACK.
type AckOption func(*ackConfig)

type ackConfig struct {
	text      string
	controlID string
	now       func() time.Time
}

// WithAckText sets MSA.3, the text message.
func WithAckText(text string) AckOption {
	return func(c *ackConfig) { c.text = text }
}

// WithAckControlID sets MSH.10 of the acknowledgment. By default a random
// id derived from a UUID is used.
func WithAckControlID(id string) AckOption {
	return func(c *ackConfig) { c.controlID = id }
}

// WithAckClock sets the clock used for MSH.7.
func WithAckClock(now func() time.Time) AckOption {
	return func(c *ackConfig) { c.now = now }
}

// NewACK builds the acknowledgment for orig: sender and receiver swapped,
// MSH.9 = ACK^<trigger>^ACK and an MSA segment echoing orig's control id.
func NewACK(orig *Message, code AckCode, opts ...AckOption) (*Message, error) {
	cfg := ackConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.controlID == "" {
		cfg.controlID = newControlID()
	}

	md, err := ExtractMetadata(orig)
	if err != nil && md.ControlID == "" {
		return nil, err
	}
	msh, _ := orig.Header()
	d := orig.Delimiters()

	field := func(n int) Value {
		v, _ := msh.Field(n)
		return v
	}

	// MSH.3-6 swap sender and receiver
	header := NewHeader(d,
		field(5),
		field(6),
		field(3),
		field(4),
		TextValue(cfg.now().Format(timestampLayout)),
		TextValue(""),
		Texts("ACK", md.MessageType.TriggerEvent, "ACK"),
		TextValue(cfg.controlID),
		field(11),
		field(12),
	)

	msa := NewSegment("MSA", TextValue(string(code)), TextValue(md.ControlID))
	if cfg.text != "" {
		msa = msa.WithField(3, TextValue(Escape(cfg.text, d)))
	}
	return New(d, header, msa), nil
}

func newControlID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:maxControlIDLength])
}
