// Package stream validates HL7 message streams: MLLP framed feeds, files
// of concatenated messages and FHS/BHS batch files.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	hv "github.com/gofhir/hl7v2"
)

// ValidateFunc validates one raw message.
type ValidateFunc func(ctx context.Context, raw []byte) (*hv.Result, error)

// MessageResult is the validation outcome for one message of the stream.
type MessageResult struct {
	// Index is the position of the message in the stream, -1 for errors
	// that concern the stream itself.
	Index int

	// ID is the message ID, also set as Result.JobID.
	ID string

	// Batch is the ID of the enclosing envelope, if any.
	Batch string

	// Line is the stream line the message starts on.
	Line int

	// Raw is the message text as cut from the stream.
	Raw []byte

	// Result contains the validation issues for this message
	Result *hv.Result

	// Error is set if the message could not be validated
	Error error
}

// Validator validates the messages of a stream concurrently.
type Validator struct {
	validate    ValidateFunc
	bufferSize  int
	workerCount int
}

// NewValidator creates a stream validator around fn.
func NewValidator(fn ValidateFunc) *Validator {
	return &Validator{
		validate:    fn,
		bufferSize:  100,
		workerCount: 4,
	}
}

// WithBufferSize sets the channel buffer size.
func (v *Validator) WithBufferSize(size int) *Validator {
	if size > 0 {
		v.bufferSize = size
	}
	return v
}

// WithWorkerCount sets the number of parallel workers.
func (v *Validator) WithWorkerCount(count int) *Validator {
	if count > 0 {
		v.workerCount = count
	}
	return v
}

// ValidateStream splits r into messages and validates them, emitting
// results in stream order. Read failures and unbalanced batch trailers are
// reported last, as results with Index -1.
func (v *Validator) ValidateStream(ctx context.Context, r io.Reader) <-chan *MessageResult {
	results := make(chan *MessageResult, v.bufferSize)

	go func() {
		defer close(results)

		splitter := NewSplitter(r)
		work := make(chan *Message, v.bufferSize)
		done := make(chan *MessageResult, v.bufferSize)

		var wg sync.WaitGroup
		for i := 0; i < v.workerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for m := range work {
					done <- v.process(ctx, m)
				}
			}()
		}

		var tail []*MessageResult
		go func() {
			defer func() {
				close(work)
				wg.Wait()
				close(done)
			}()
			for {
				m, err := splitter.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					tail = append(tail, &MessageResult{Index: -1, Error: err})
					return
				}
				select {
				case work <- m:
				case <-ctx.Done():
					tail = append(tail, &MessageResult{Index: -1, Error: ctx.Err()})
					return
				}
			}
			for _, b := range splitter.Batches() {
				if !b.Balanced() {
					tail = append(tail, &MessageResult{Index: -1, Batch: b.ID, Line: b.Line, Error: &BatchCountError{Batch: b}})
				}
			}
		}()

		// Reorder
		pending := make(map[int]*MessageResult)
		next := 0
		for res := range done {
			pending[res.Index] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				results <- r
				delete(pending, next)
				next++
			}
		}
		for _, r := range tail {
			results <- r
		}
	}()

	return results
}

func (v *Validator) process(ctx context.Context, m *Message) *MessageResult {
	res := &MessageResult{
		Index: m.Index,
		ID:    m.ID,
		Batch: m.Batch,
		Line:  m.Line,
		Raw:   m.Raw,
	}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	res.Result, res.Error = v.validate(ctx, m.Raw)
	if res.Result != nil {
		res.Result.JobID = m.ID
	}
	return res
}

// StreamResult aggregates results from streaming validation.
type StreamResult struct {
	// TotalMessages is the number of messages processed
	TotalMessages int

	// MessagesWithErrors is the count of messages that had errors
	MessagesWithErrors int

	// MessagesWithWarnings is the count of messages that had warnings (but no errors)
	MessagesWithWarnings int

	// TotalIssues is the total number of issues found
	TotalIssues int

	// ProcessingErrors are errors that occurred during processing (not validation errors)
	ProcessingErrors []error

	// Issues holds the issues of each message, keyed by stream index
	Issues map[int][]hv.Issue
}

// Aggregate collects all results from a streaming validation. Results are
// released to the pool once counted.
func Aggregate(results <-chan *MessageResult) *StreamResult {
	agg := &StreamResult{
		Issues: make(map[int][]hv.Issue),
	}

	for result := range results {
		if result.Error != nil {
			agg.ProcessingErrors = append(agg.ProcessingErrors, result.Error)
			continue
		}

		if result.Index < 0 {
			continue
		}

		agg.TotalMessages++

		if result.Result == nil {
			continue
		}

		issues := result.Result.Issues
		if len(issues) > 0 {
			agg.Issues[result.Index] = append([]hv.Issue(nil), issues...)
			agg.TotalIssues += len(issues)

			switch {
			case result.Result.HasErrors():
				agg.MessagesWithErrors++
			case result.Result.HasWarnings():
				agg.MessagesWithWarnings++
			}
		}

		result.Result.Release()
	}

	return agg
}

// HasErrors returns true if any message had validation errors.
func (r *StreamResult) HasErrors() bool {
	return r.MessagesWithErrors > 0 || len(r.ProcessingErrors) > 0
}
