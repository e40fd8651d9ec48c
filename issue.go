package hl7v2

import "strconv"

// IssueSeverity represents the severity of a validation issue.
type IssueSeverity string

const (
	// SeverityError indicates a finding that makes the message invalid.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInfo indicates informational feedback.
	SeverityInfo IssueSeverity = "info"
)

// ParseSeverity converts a severity name to an IssueSeverity.
// Unknown names report false.
func ParseSeverity(s string) (IssueSeverity, bool) {
	switch IssueSeverity(s) {
	case SeverityError, SeverityWarning, SeverityInfo:
		return IssueSeverity(s), true
	case "information":
		return SeverityInfo, true
	default:
		return "", false
	}
}

// IssueSource tells which validator produced an issue.
type IssueSource string

const (
	// SourceSchema marks issues produced by the built-in schema checks.
	SourceSchema IssueSource = "schema"
	// SourceCustom marks issues produced by user-defined rule sets.
	SourceCustom IssueSource = "custom"
)

// IssueType represents the type of validation issue.
type IssueType string

const (
	// IssueTypeInvalid indicates the content is invalid.
	IssueTypeInvalid IssueType = "invalid"
	// IssueTypeStructure indicates a structural issue (segment order, unknown segment).
	IssueTypeStructure IssueType = "structure"
	// IssueTypeRequired indicates a required field is missing or empty.
	IssueTypeRequired IssueType = "required"
	// IssueTypeCardinality indicates a field repeats more often than allowed.
	IssueTypeCardinality IssueType = "cardinality"
	// IssueTypeValue indicates a value that does not match its data type.
	IssueTypeValue IssueType = "value"
	// IssueTypeTooLong indicates a value longer than its declared maximum length.
	IssueTypeTooLong IssueType = "too-long"
	// IssueTypeCodeInvalid indicates a coded value that is not in its table.
	IssueTypeCodeInvalid IssueType = "code-invalid"
	// IssueTypeBusinessRule indicates a custom rule violation.
	IssueTypeBusinessRule IssueType = "business-rule"
	// IssueTypeProcessing indicates a check that could not be evaluated.
	IssueTypeProcessing IssueType = "processing"
	// IssueTypeNotSupported indicates a segment the schema does not describe.
	IssueTypeNotSupported IssueType = "not-supported"
	// IssueTypeTimeout indicates validation was cancelled or timed out.
	IssueTypeTimeout IssueType = "timeout"
)

// Issue represents a single validation finding.
type Issue struct {
	// Severity of the issue (error, warning, info)
	Severity IssueSeverity `json:"severity"`

	// Code identifying the type of issue
	Code IssueType `json:"code"`

	// Diagnostics contains human-readable details about the issue
	Diagnostics string `json:"diagnostics,omitempty"`

	// Segment is the segment tag the issue refers to (e.g. "PID")
	Segment string `json:"segment,omitempty"`

	// Field is the 1-based field number within the segment, 0 for segment level issues
	Field int `json:"field,omitempty"`

	// Expression is the path of the element in error (e.g. "PID.5.1")
	Expression string `json:"expression,omitempty"`

	// Line is the source line of the segment (1-based, 0 when unknown)
	Line int `json:"line,omitempty"`

	// Source is the validator that produced the issue
	Source IssueSource `json:"source"`

	// RuleName is the custom rule that produced the issue
	RuleName string `json:"ruleName,omitempty"`

	// Phase is the validation phase that generated this issue
	Phase string `json:"phase,omitempty"`
}

// IsError returns true if this is an error issue.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}

// IsWarning returns true if this is a warning.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// IsInfo returns true if this is an informational issue.
func (i Issue) IsInfo() bool {
	return i.Severity == SeverityInfo
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	loc := i.Expression
	if loc == "" && i.Segment != "" {
		loc = i.Segment
		if i.Field > 0 {
			loc += "." + strconv.Itoa(i.Field)
		}
	}
	if loc != "" {
		return string(i.Severity) + ": " + i.Diagnostics + " at " + loc
	}
	return string(i.Severity) + ": " + i.Diagnostics
}

// IssueBuilder provides a fluent API for building issues.
type IssueBuilder struct {
	issue Issue
}

// NewIssue creates a new IssueBuilder. Issues default to the schema source.
func NewIssue(severity IssueSeverity, code IssueType) *IssueBuilder {
	return &IssueBuilder{
		issue: Issue{
			Severity: severity,
			Code:     code,
			Source:   SourceSchema,
		},
	}
}

// Error creates an error issue.
func Error(code IssueType) *IssueBuilder {
	return NewIssue(SeverityError, code)
}

// Warning creates a warning issue.
func Warning(code IssueType) *IssueBuilder {
	return NewIssue(SeverityWarning, code)
}

// Info creates an informational issue.
func Info(code IssueType) *IssueBuilder {
	return NewIssue(SeverityInfo, code)
}

// Diagnostics sets the diagnostic message.
func (b *IssueBuilder) Diagnostics(msg string) *IssueBuilder {
	b.issue.Diagnostics = msg
	return b
}

// At sets the segment and field the issue refers to.
func (b *IssueBuilder) At(segment string, field int) *IssueBuilder {
	b.issue.Segment = segment
	b.issue.Field = field
	return b
}

// Path sets the element path.
func (b *IssueBuilder) Path(path string) *IssueBuilder {
	b.issue.Expression = path
	return b
}

// Line sets the source line of the segment.
func (b *IssueBuilder) Line(line int) *IssueBuilder {
	b.issue.Line = line
	return b
}

// Phase sets the validation phase.
func (b *IssueBuilder) Phase(phase string) *IssueBuilder {
	b.issue.Phase = phase
	return b
}

// Custom marks the issue as produced by the named custom rule.
func (b *IssueBuilder) Custom(ruleName string) *IssueBuilder {
	b.issue.Source = SourceCustom
	b.issue.RuleName = ruleName
	return b
}

// Build returns the constructed issue.
func (b *IssueBuilder) Build() Issue {
	return b.issue
}
