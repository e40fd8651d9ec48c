package worker

import (
	"context"
	"runtime"
	"sync"
	"time"

	hv "github.com/gofhir/hl7v2"
)

// BatchValidator provides a simple interface for batch validation.
type BatchValidator struct {
	validator BatchValidatorFunc
	workers   int
}

// BatchValidatorFunc is the function signature for validating a single message.
type BatchValidatorFunc func(ctx context.Context, raw []byte) (*hv.Result, error)

// NewBatchValidator creates a new batch validator.
func NewBatchValidator(validateFunc BatchValidatorFunc, workers int) *BatchValidator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchValidator{
		validator: validateFunc,
		workers:   workers,
	}
}

// ValidateBatch validates multiple messages in parallel. Results keep the
// input order.
func (bv *BatchValidator) ValidateBatch(ctx context.Context, messages [][]byte) *BatchResult {
	if len(messages) == 0 {
		return &BatchResult{
			ID:      newJobID(),
			Results: make([]*JobResult, 0),
		}
	}

	// For small batches, don't use parallelism
	if len(messages) <= 2 {
		return bv.validateSequential(ctx, messages)
	}

	return bv.validateParallel(ctx, messages)
}

func (bv *BatchValidator) validateSequential(ctx context.Context, messages [][]byte) *BatchResult {
	batch := &BatchResult{
		ID:        newJobID(),
		Results:   make([]*JobResult, 0, len(messages)),
		TotalJobs: len(messages),
	}

	for _, raw := range messages {
		select {
		case <-ctx.Done():
			batch.CompletedJobs = len(batch.Results)
			return batch
		default:
		}

		jr := bv.run(ctx, raw)
		batch.Results = append(batch.Results, jr)
		batch.TotalDuration += jr.Duration
		if jr.Error != nil {
			batch.FailedJobs++
		}
	}

	batch.CompletedJobs = len(batch.Results)
	return batch
}

func (bv *BatchValidator) validateParallel(ctx context.Context, messages [][]byte) *BatchResult {
	numWorkers := bv.workers
	if numWorkers > len(messages) {
		numWorkers = len(messages)
	}

	jobs := make(chan indexedMessage, len(messages))
	resultsChan := make(chan *indexedResult, len(messages))

	// Start workers
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				resultsChan <- &indexedResult{
					index:  job.index,
					result: bv.run(ctx, job.raw),
				}
			}
		}()
	}

	// Submit jobs
	go func() {
		defer close(jobs)
		for i, raw := range messages {
			select {
			case <-ctx.Done():
				return
			case jobs <- indexedMessage{index: i, raw: raw}:
			}
		}
	}()

	// Wait for workers and close results channel
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results in order
	batch := &BatchResult{
		ID:        newJobID(),
		Results:   make([]*JobResult, len(messages)),
		TotalJobs: len(messages),
	}
	for ir := range resultsChan {
		batch.Results[ir.index] = ir.result
		batch.CompletedJobs++
		batch.TotalDuration += ir.result.Duration
		if ir.result.Error != nil {
			batch.FailedJobs++
		}
	}

	return batch
}

// run validates one message and tags the result with a fresh job ID.
func (bv *BatchValidator) run(ctx context.Context, raw []byte) *JobResult {
	start := time.Now()
	jr := &JobResult{ID: newJobID()}

	jr.Result, jr.Error = bv.validator(ctx, raw)
	if jr.Result != nil {
		jr.Result.JobID = jr.ID
	}
	jr.Duration = time.Since(start).Nanoseconds()
	return jr
}

type indexedMessage struct {
	index int
	raw   []byte
}

type indexedResult struct {
	index  int
	result *JobResult
}

// ValidateBatchSimple is a convenience function for batch validation.
func ValidateBatchSimple(ctx context.Context, validateFunc BatchValidatorFunc, messages [][]byte) *BatchResult {
	bv := NewBatchValidator(validateFunc, runtime.NumCPU())
	return bv.ValidateBatch(ctx, messages)
}
