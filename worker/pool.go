package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/rules"
)

// Validator is the interface that the pool uses to validate messages.
// *engine.Engine implements it.
type Validator interface {
	ValidateBytes(ctx context.Context, raw []byte, rs *rules.RuleSet) (*hv.Result, error)
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets how many jobs and results may wait in the pool's
// channels. The default is twice the worker count.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithDefaultRuleSet applies rs to jobs submitted without a rule set.
func WithDefaultRuleSet(rs *rules.RuleSet) PoolOption {
	return func(p *Pool) {
		p.ruleSet = rs
	}
}

// WithJobTimeout bounds the validation of a single message.
func WithJobTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.jobTimeout = d
	}
}

// Pool validates messages on a fixed set of worker goroutines.
type Pool struct {
	workers    int
	queueSize  int
	ruleSet    *rules.RuleSet
	jobTimeout time.Duration

	jobs      chan Job
	results   chan *JobResult
	validator Validator
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	invalid   atomic.Uint64
	busyNanos atomic.Uint64
}

// NewPool starts workers goroutines validating with validator. If
// workers <= 0, it defaults to runtime.NumCPU().
func NewPool(validator Validator, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		workers:   workers,
		queueSize: workers * 2,
		validator: validator,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.jobs = make(chan Job, p.queueSize)
	p.results = make(chan *JobResult, p.queueSize)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues a job, blocking while the queue is full. It returns false
// once the pool is closed.
func (p *Pool) Submit(job Job) bool {
	return p.enqueue(job, true)
}

// SubmitAsync queues a job without blocking. It returns false if the queue
// is full or the pool is closed.
func (p *Pool) SubmitAsync(job Job) bool {
	return p.enqueue(job, false)
}

func (p *Pool) enqueue(job Job, block bool) bool {
	if p.closed.Load() {
		return false
	}
	if job.ID == "" {
		job.ID = newJobID()
	}
	if job.RuleSet == nil {
		job.RuleSet = p.ruleSet
	}

	if block {
		select {
		case <-p.ctx.Done():
			return false
		case p.jobs <- job:
		}
	} else {
		select {
		case <-p.ctx.Done():
			return false
		case p.jobs <- job:
		default:
			return false
		}
	}
	p.submitted.Add(1)
	return true
}

// Results returns the channel for receiving job results.
func (p *Pool) Results() <-chan *JobResult {
	return p.results
}

// Close stops the workers. Queued jobs and unread results are discarded;
// use CloseAndWait to collect them.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.cancel()
	close(p.jobs)

	// Workers may be blocked sending a result
	drained := make(chan struct{})
	go func() {
		for range p.results {
		}
		close(drained)
	}()

	p.wg.Wait()
	close(p.results)
	<-drained
}

// CloseAndWait stops accepting jobs, waits for the queued ones to finish
// and returns every result not yet read from Results().
func (p *Pool) CloseAndWait() *BatchResult {
	if p.closed.Swap(true) {
		return &BatchResult{}
	}
	close(p.jobs)

	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	var results []*JobResult
	for r := range p.results {
		results = append(results, r)
	}
	p.cancel()

	return &BatchResult{
		ID:            newJobID(),
		Results:       results,
		TotalJobs:     int(p.submitted.Load()),
		CompletedJobs: int(p.completed.Load()),
		FailedJobs:    int(p.failed.Load()),
		TotalDuration: int64(p.busyNanos.Load()), //nolint:gosec // nanoseconds within int64 range
	}
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	// JobsFailed counts jobs that ended with an error instead of a result.
	JobsFailed uint64
	// InvalidMessages counts results with at least one error issue.
	InvalidMessages uint64
	AvgDuration     time.Duration
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		Workers:         p.workers,
		JobsSubmitted:   p.submitted.Load(),
		JobsCompleted:   p.completed.Load(),
		JobsFailed:      p.failed.Load(),
		InvalidMessages: p.invalid.Load(),
	}
	if s.JobsCompleted > 0 {
		s.AvgDuration = time.Duration(p.busyNanos.Load() / s.JobsCompleted) //nolint:gosec // nanoseconds within int64 range
	}
	return s
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		if p.ctx.Err() != nil {
			return
		}

		result := p.process(job)
		p.completed.Add(1)
		p.busyNanos.Add(uint64(result.Duration)) //nolint:gosec // durations are non negative
		switch {
		case result.Error != nil:
			p.failed.Add(1)
		case result.Result != nil && !result.Result.Valid:
			p.invalid.Add(1)
		}

		select {
		case <-p.ctx.Done():
			return
		case p.results <- result:
		}
	}
}

func (p *Pool) process(job Job) *JobResult {
	start := time.Now()
	result := &JobResult{ID: job.ID}
	defer func() { result.Duration = time.Since(start).Nanoseconds() }()

	if p.validator == nil {
		result.Error = ErrNoValidator
		return result
	}

	ctx := p.ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	result.Result, result.Error = p.validator.ValidateBytes(ctx, job.Message, job.RuleSet)
	if result.Result != nil {
		result.Result.JobID = job.ID
	}
	return result
}

// ErrNoValidator is returned when the pool has no validator configured.
var ErrNoValidator = poolError("no validator configured")

type poolError string

func (e poolError) Error() string {
	return string(e)
}
