package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/gofhir/hl7v2/message"
)

// Batch envelope segment tags.
const (
	FileHeader   = "FHS"
	FileTrailer  = "FTS"
	BatchHeader  = "BHS"
	BatchTrailer = "BTS"
)

// maxSegment bounds a single segment line; large OBX payloads fit.
const maxSegment = 16 << 20

// Message is one message cut from a stream.
type Message struct {
	// ID identifies the message; results carry it as their JobID.
	ID string

	// Index is the 0-based position of the message in the stream.
	Index int

	// Batch is the ID of the enclosing BHS or FHS envelope, if any.
	Batch string

	// Line is the stream line the message starts on, 1-based.
	Line int

	// Raw holds the message segments terminated by "\r".
	Raw []byte
}

// Batch describes one FHS or BHS envelope seen in the stream.
type Batch struct {
	ID        string
	Header    string // FHS or BHS
	ControlID string // FHS.11 or BHS.11
	Line      int

	// Declared is the count from the trailer (FTS.1 or BTS.1), -1 when the
	// trailer is missing or carries no count.
	Declared int

	// Count is the number of batches in a file or messages in a batch.
	Count int
}

// Balanced reports whether the trailer count matches what was seen.
func (b *Batch) Balanced() bool {
	return b.Declared < 0 || b.Declared == b.Count
}

// BatchCountError reports a trailer count that differs from the content.
type BatchCountError struct {
	Batch Batch
}

func (e *BatchCountError) Error() string {
	return fmt.Sprintf("%s at line %d declares %d but contains %d",
		e.Batch.Header, e.Batch.Line, e.Batch.Declared, e.Batch.Count)
}

// Splitter cuts a stream into messages.
//
// Messages may be MLLP framed, separated only by their MSH segments, or
// wrapped in FHS/BHS/BTS/FTS batch envelopes. Segments may end with "\r",
// "\n" or "\r\n". Segments found before the first MSH form a message of
// their own, which then fails to parse.
type Splitter struct {
	scanner *bufio.Scanner
	line    int
	index   int

	cur      [][]byte
	curLine  int
	ready    []*Message
	file     *Batch
	batch    *Batch
	batches  []*Batch
	finished bool
}

// NewSplitter returns a splitter reading from r.
func NewSplitter(r io.Reader) *Splitter {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxSegment)
	sc.Split(scanSegments)
	return &Splitter{scanner: sc}
}

// scanSegments splits on "\r", "\n" or "\r\n".
func scanSegments(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next returns the next message, or io.EOF when the stream is exhausted.
func (s *Splitter) Next() (*Message, error) {
	for len(s.ready) == 0 {
		if s.finished {
			return nil, io.EOF
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read line %d: %w", s.line+1, err)
			}
			s.flush()
			s.finished = true
			continue
		}
		s.line++
		s.feed(s.scanner.Bytes())
	}

	m := s.ready[0]
	s.ready = s.ready[1:]
	return m, nil
}

// Batches returns the envelopes seen so far, in stream order.
func (s *Splitter) Batches() []Batch {
	out := make([]Batch, len(s.batches))
	for i, b := range s.batches {
		out[i] = *b
	}
	return out
}

func (s *Splitter) feed(line []byte) {
	if len(line) > 0 && line[0] == message.StartBlock {
		s.flush()
		line = line[1:]
	}
	endFrame := false
	if i := bytes.IndexByte(line, message.EndBlock); i >= 0 {
		line, endFrame = line[:i], true
	}

	if len(bytes.TrimSpace(line)) > 0 {
		s.segment(line)
	}
	if endFrame {
		s.flush()
	}
}

func (s *Splitter) segment(line []byte) {
	tag := ""
	if len(line) >= 3 {
		tag = string(line[:3])
	}

	switch tag {
	case message.HeaderTag:
		s.flush()
	case FileHeader:
		s.flush()
		s.file = s.open(FileHeader, line)
		return
	case BatchHeader:
		s.flush()
		s.batch = s.open(BatchHeader, line)
		if s.file != nil {
			s.file.Count++
		}
		return
	case BatchTrailer:
		s.flush()
		s.close(s.batch, line)
		s.batch = nil
		return
	case FileTrailer:
		s.flush()
		s.close(s.file, line)
		s.file = nil
		return
	}

	if len(s.cur) == 0 {
		s.curLine = s.line
	}
	s.cur = append(s.cur, append([]byte(nil), line...))
}

func (s *Splitter) flush() {
	if len(s.cur) == 0 {
		return
	}

	m := &Message{
		ID:    uuid.NewString(),
		Index: s.index,
		Line:  s.curLine,
		Raw:   append(bytes.Join(s.cur, []byte{'\r'}), '\r'),
	}
	switch {
	case s.batch != nil:
		m.Batch = s.batch.ID
		s.batch.Count++
	case s.file != nil:
		m.Batch = s.file.ID
		s.file.Count++
	}

	s.index++
	s.cur = s.cur[:0]
	s.ready = append(s.ready, m)
}

func (s *Splitter) open(header string, line []byte) *Batch {
	b := &Batch{
		ID:        uuid.NewString(),
		Header:    header,
		ControlID: headerField(line, 11),
		Line:      s.line,
		Declared:  -1,
	}
	s.batches = append(s.batches, b)
	return b
}

func (s *Splitter) close(b *Batch, line []byte) {
	if b == nil {
		return
	}
	if n, err := strconv.Atoi(trailerField(line, 1)); err == nil {
		b.Declared = n
	}
}

// headerField returns field n of an FHS or BHS segment, counted like MSH
// where field 1 is the separator itself.
func headerField(line []byte, n int) string {
	if len(line) < 4 || n < 2 {
		return ""
	}
	parts := bytes.Split(line[4:], line[3:4])
	if n-2 >= len(parts) {
		return ""
	}
	return string(bytes.TrimSpace(componentOne(parts[n-2], line)))
}

// trailerField returns field n of a BTS or FTS segment.
func trailerField(line []byte, n int) string {
	if len(line) < 4 {
		return ""
	}
	parts := bytes.Split(line[4:], line[3:4])
	if n-1 >= len(parts) {
		return ""
	}
	return string(bytes.TrimSpace(parts[n-1]))
}

// componentOne cuts a header field at the header's component separator.
func componentOne(field, header []byte) []byte {
	if len(header) < 5 {
		return field
	}
	if i := bytes.IndexByte(field, header[4]); i >= 0 {
		return field[:i]
	}
	return field
}
