package message

import (
	"strconv"
	"strings"
	"time"
)

// MessageType is MSH.9 split into its components.
type MessageType struct {
	Code         string `json:"code"`
	TriggerEvent string `json:"triggerEvent,omitempty"`
	Structure    string `json:"structure,omitempty"`
}

// String returns "CODE^TRIGGER", or just the code when there is no trigger.
func (t MessageType) String() string {
	if t.TriggerEvent == "" {
		return t.Code
	}
	return t.Code + "^" + t.TriggerEvent
}

// Precision is the finest unit present in an HL7 timestamp.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
	PrecisionFraction
)

// Metadata summarizes the MSH segment of a message.
type Metadata struct {
	MessageType          MessageType `json:"messageType"`
	VersionID            string      `json:"versionId,omitempty"`
	SendingApplication   string      `json:"sendingApplication,omitempty"`
	SendingFacility      string      `json:"sendingFacility,omitempty"`
	ReceivingApplication string      `json:"receivingApplication,omitempty"`
	ReceivingFacility    string      `json:"receivingFacility,omitempty"`
	ControlID            string      `json:"controlId,omitempty"`
	ProcessingID         string      `json:"processingId,omitempty"`
	Timestamp            *time.Time  `json:"timestamp,omitempty"`
	Precision            Precision   `json:"-"`
}

// ExtractMetadata reads the header fields of msg.
//
// When MSH.9 or MSH.12 is missing the partially filled Metadata is returned
// together with a *MissingRequiredFieldError. A timestamp that cannot be
// parsed leaves Timestamp nil and is not an error.
func ExtractMetadata(msg *Message) (Metadata, error) {
	var md Metadata
	if msg == nil {
		return md, &InvalidMessageStructureError{Reason: "message is nil"}
	}
	msh, ok := msg.Header()
	if !ok {
		return md, &InvalidMessageStructureError{Reason: "message has no MSH segment"}
	}

	text := func(field, component int) string {
		v, ok := msh.Field(field)
		if !ok {
			return ""
		}
		if v, ok = v.Repetition(1); !ok {
			return ""
		}
		if v, ok = v.Component(component); !ok {
			return ""
		}
		if v.Kind() == Composite {
			return v.Encode(msg.delims)
		}
		return v.Text()
	}

	md.SendingApplication = text(3, 1)
	md.SendingFacility = text(4, 1)
	md.ReceivingApplication = text(5, 1)
	md.ReceivingFacility = text(6, 1)
	md.Timestamp, md.Precision = ParseTimestamp(text(7, 1))
	md.MessageType = MessageType{
		Code:         text(9, 1),
		TriggerEvent: text(9, 2),
		Structure:    text(9, 3),
	}
	md.ControlID = text(10, 1)
	md.ProcessingID = text(11, 1)
	md.VersionID = text(12, 1)

	var missing []string
	if md.MessageType.Code == "" {
		missing = append(missing, "MSH.9")
	}
	if md.VersionID == "" {
		missing = append(missing, "MSH.12")
	}
	if len(missing) > 0 {
		return md, &MissingRequiredFieldError{Fields: missing}
	}
	return md, nil
}

// ParseTimestamp parses an HL7 date/time: YYYY[MM[DD[HH[MM[SS[.S[S[S[S]]]]]]]]]
// followed by an optional +/-ZZZZ offset. Without an offset the time is UTC.
// Anything else yields nil and PrecisionNone.
func ParseTimestamp(s string) (*time.Time, Precision) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, PrecisionNone
	}

	loc := time.UTC
	if i := strings.IndexAny(s, "+-"); i >= 0 {
		zone := s[i:]
		if len(zone) != 5 || !isDigits(zone[1:]) {
			return nil, PrecisionNone
		}
		hh, _ := strconv.Atoi(zone[1:3])
		mm, _ := strconv.Atoi(zone[3:5])
		if hh > 23 || mm > 59 {
			return nil, PrecisionNone
		}
		offset := hh*3600 + mm*60
		if zone[0] == '-' {
			offset = -offset
		}
		loc = time.FixedZone(zone, offset)
		s = s[:i]
	}

	var frac string
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac = s[i+1:]
		s = s[:i]
		if len(frac) == 0 || len(frac) > 4 || !isDigits(frac) || len(s) != 14 {
			return nil, PrecisionNone
		}
	}
	if !isDigits(s) {
		return nil, PrecisionNone
	}

	var prec Precision
	switch len(s) {
	case 4:
		prec = PrecisionYear
	case 6:
		prec = PrecisionMonth
	case 8:
		prec = PrecisionDay
	case 10:
		prec = PrecisionHour
	case 12:
		prec = PrecisionMinute
	case 14:
		prec = PrecisionSecond
	default:
		return nil, PrecisionNone
	}

	num := func(from, to, def int) int {
		if len(s) < to {
			return def
		}
		n, _ := strconv.Atoi(s[from:to])
		return n
	}
	year, month, day := num(0, 4, 0), num(4, 6, 1), num(6, 8, 1)
	hour, minute, sec := num(8, 10, 0), num(10, 12, 0), num(12, 14, 0)
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || sec > 59 {
		return nil, PrecisionNone
	}

	nsec := 0
	if frac != "" {
		prec = PrecisionFraction
		n, _ := strconv.Atoi(frac)
		for i := len(frac); i < 9; i++ {
			n *= 10
		}
		nsec = n
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, loc)
	if t.Day() != day {
		// Feb 30 and friends normalize into the next month
		return nil, PrecisionNone
	}
	return &t, prec
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
