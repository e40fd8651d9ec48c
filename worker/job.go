package worker

import (
	"github.com/google/uuid"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/rules"
)

// Job represents a validation job to be processed by a worker.
type Job struct {
	// ID is a unique identifier for this job. Empty IDs are assigned a UUID
	// on submission.
	ID string

	// Message is the raw HL7 message text.
	Message []byte

	// RuleSet is an optional set of custom rules to apply.
	RuleSet *rules.RuleSet
}

// newJobID returns a fresh job identifier.
func newJobID() string {
	return uuid.NewString()
}

// JobResult represents the result of a validation job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Result contains the validation result. Its JobID is set to ID.
	Result *hv.Result

	// Error contains any error that occurred during validation.
	Error error

	// Duration is the time taken to validate (in nanoseconds).
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// ID identifies the batch.
	ID string

	// Results contains all job results.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that failed with an error.
	FailedJobs int

	// TotalDuration is the total time for all validations (in nanoseconds).
	TotalDuration int64
}

// HasErrors returns true if any job result has validation errors.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			return true
		}
		if r.Result != nil && r.Result.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorCount returns the total number of validation errors across all results.
func (br *BatchResult) ErrorCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Result != nil {
			count += r.Result.ErrorCount()
		}
	}
	return count
}

// ValidCount returns the number of jobs whose message is valid.
func (br *BatchResult) ValidCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Error == nil && r.Result != nil && r.Result.Valid {
			count++
		}
	}
	return count
}
