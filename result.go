package hl7v2

import (
	"fmt"
	"sync"
)

// Result contains the outcome of validating an HL7 message.
// Use Release() to return it to the pool when done for better performance.
type Result struct {
	// Valid is true if no errors were found (warnings are allowed)
	Valid bool `json:"valid"`

	// Issues contains all validation issues found, in the order produced
	Issues []Issue `json:"issues,omitempty"`

	// JobID is set when using batch validation to correlate results
	JobID string `json:"jobId,omitempty"`

	// MessageType is the MSH.9 code and trigger of the validated message (e.g. "ADT^A01")
	MessageType string `json:"messageType,omitempty"`

	// ControlID is the MSH.10 control id of the validated message
	ControlID string `json:"controlId,omitempty"`

	// RuleSet is the name of the custom rule set applied, if any
	RuleSet string `json:"ruleSet,omitempty"`

	// mu protects concurrent access to Issues
	mu sync.Mutex
}

// resultPool holds reusable Result instances.
var resultPool = sync.Pool{
	New: func() any {
		return &Result{
			Issues: make([]Issue, 0, 32),
		}
	},
}

// AcquireResult gets a Result from the pool.
// The result starts as valid with no issues.
func AcquireResult() *Result {
	r := resultPool.Get().(*Result)
	r.Reset()
	return r
}

// Release returns the Result to the pool.
// After calling Release, the Result should not be used.
func (r *Result) Release() {
	if r == nil {
		return
	}
	if cap(r.Issues) <= 1024 {
		resultPool.Put(r)
	}
}

// Reset clears the result for reuse.
func (r *Result) Reset() {
	r.Valid = true
	r.Issues = r.Issues[:0]
	r.JobID = ""
	r.MessageType = ""
	r.ControlID = ""
	r.RuleSet = ""
}

// AddIssue adds a validation issue to the result.
// This method is thread-safe.
func (r *Result) AddIssue(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issue)
	if issue.IsError() {
		r.Valid = false
	}
}

// AddIssues adds multiple issues to the result.
// This method is thread-safe.
func (r *Result) AddIssues(issues []Issue) {
	if len(issues) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issues...)
	for _, issue := range issues {
		if issue.IsError() {
			r.Valid = false
			break
		}
	}
}

// AddError is a convenience method to add a schema error issue.
func (r *Result) AddError(code IssueType, diagnostics, segment string, field int) {
	r.AddIssue(Error(code).Diagnostics(diagnostics).At(segment, field).Build())
}

// AddWarning is a convenience method to add a schema warning issue.
func (r *Result) AddWarning(code IssueType, diagnostics, segment string, field int) {
	r.AddIssue(Warning(code).Diagnostics(diagnostics).At(segment, field).Build())
}

// HasErrors returns true if there are any error issues.
func (r *Result) HasErrors() bool {
	return r.count(SeverityError) > 0
}

// HasWarnings returns true if there are any warning issues.
func (r *Result) HasWarnings() bool {
	return r.count(SeverityWarning) > 0
}

// ErrorCount returns the number of error issues.
func (r *Result) ErrorCount() int {
	return r.count(SeverityError)
}

// WarningCount returns the number of warning issues.
func (r *Result) WarningCount() int {
	return r.count(SeverityWarning)
}

// InfoCount returns the number of informational issues.
func (r *Result) InfoCount() int {
	return r.count(SeverityInfo)
}

func (r *Result) count(severity IssueSeverity) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Errors returns all error issues.
func (r *Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns all warning issues.
func (r *Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// Infos returns all informational issues.
func (r *Result) Infos() []Issue {
	return r.filter(SeverityInfo)
}

// BySource returns the issues produced by the given source.
func (r *Result) BySource(source IssueSource) []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Issue
	for _, issue := range r.Issues {
		if issue.Source == source {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Result) filter(severity IssueSeverity) []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// Summary returns a one-line description of the result,
// e.g. "invalid: 2 errors, 1 warning".
func (r *Result) Summary() string {
	errs, warns, infos := r.ErrorCount(), r.WarningCount(), r.InfoCount()

	state := "valid"
	if errs > 0 {
		state = "invalid"
	}
	s := fmt.Sprintf("%s: %s, %s", state, plural(errs, "error"), plural(warns, "warning"))
	if infos > 0 {
		s += ", " + plural(infos, "info")
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 || word == "info" {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// PromoteWarnings turns every warning into an error. Used by strict mode.
func (r *Result) PromoteWarnings() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.Issues {
		if r.Issues[i].Severity == SeverityWarning {
			r.Issues[i].Severity = SeverityError
			r.Valid = false
		}
	}
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	other.mu.Lock()
	issues := make([]Issue, len(other.Issues))
	copy(issues, other.Issues)
	other.mu.Unlock()

	r.AddIssues(issues)
}

// Clone creates a copy of the result (not pooled).
func (r *Result) Clone() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := &Result{
		Valid:       r.Valid,
		Issues:      make([]Issue, len(r.Issues)),
		JobID:       r.JobID,
		MessageType: r.MessageType,
		ControlID:   r.ControlID,
		RuleSet:     r.RuleSet,
	}
	copy(clone.Issues, r.Issues)
	return clone
}

// NewResult creates a new (non-pooled) result.
// Prefer AcquireResult() for better performance.
func NewResult() *Result {
	return &Result{
		Valid:  true,
		Issues: make([]Issue, 0, 8),
	}
}
