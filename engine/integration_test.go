package engine

import (
	"context"
	"strings"
	"testing"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/rules"
	"github.com/gofhir/hl7v2/stream"
	"github.com/gofhir/hl7v2/worker"
)

// Integration tests that run parse, schema checks, custom rules and
// generation together.

const labMessage = "MSH|^~\\&|LAB|HOSP|EMR|HOSP|20240115110000||ORU^R01^ORU_R01|LAB0001|P|2.5\r" +
	"PID|1||55555^^^HOSP^MR||ROE^JANE||19700202|F\r" +
	"OBR|1|ORD1|FIL1|GLU^Glucose^L|||20240115100000\r" +
	"OBX|1|NM|GLU^Glucose^L||105|mg/dL^mg/dL^UCUM|70-100|H|||F"

const labRules = `
name: lab-results
description: Result feed checks
rules:
  - name: final-results-only
    targetPath: OBX.11
    condition: equals
    value: F
    severity: error
    message: only final results are accepted
  - name: glucose-units
    targetPath: OBX.6.1
    condition: equals
    value: mg/dL
    severity: warning
  - name: numeric-mrn
    targetPath: PID.3.1
    condition: matchesRegex
    value: "^[0-9]+$"
  - name: no-legacy-segment
    targetPath: ZPI.1
    condition: not_exists
`

func loadLabRules(t testing.TB) *rules.RuleSet {
	t.Helper()
	rs, err := rules.LoadYAML([]byte(labRules))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	return rs
}

func TestIntegration_FullValidationFlow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, hv.WithSegmentTerminator("\r"))
	rs := loadLabRules(t)

	t.Run("valid lab result", func(t *testing.T) {
		parsed, err := e.Parse(labMessage)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if got := parsed.Metadata.MessageType.String(); got != "ORU^R01" {
			t.Errorf("MessageType = %q; want ORU^R01", got)
		}

		result := e.ValidateWithRuleSet(ctx, parsed.Message, rs)
		if !result.Valid || len(result.Issues) != 0 {
			t.Fatalf("expected no issues, got %v", result.Issues)
		}
		if result.RuleSet != "lab-results" || result.ControlID != "LAB0001" {
			t.Errorf("RuleSet, ControlID = %q, %q", result.RuleSet, result.ControlID)
		}

		out, err := e.Generate(parsed.Message)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if out != labMessage {
			t.Errorf("Generate() = %q; want %q", out, labMessage)
		}
	})

	t.Run("preliminary result breaks a rule", func(t *testing.T) {
		raw := strings.Replace(labMessage, "|||F", "|||P", 1)
		result, err := e.ValidateBytes(ctx, []byte(raw), rs)
		if err != nil {
			t.Fatalf("ValidateBytes failed: %v", err)
		}
		if result.Valid {
			t.Error("expected invalid result")
		}

		custom := result.BySource(hv.SourceCustom)
		if len(custom) != 1 {
			t.Fatalf("custom issues = %v; want 1", custom)
		}
		if custom[0].RuleName != "final-results-only" {
			t.Errorf("RuleName = %q; want final-results-only", custom[0].RuleName)
		}
		if custom[0].Diagnostics != "only final results are accepted" {
			t.Errorf("Diagnostics = %q", custom[0].Diagnostics)
		}
		if len(result.BySource(hv.SourceSchema)) != 0 {
			t.Errorf("unexpected schema issues: %v", result.BySource(hv.SourceSchema))
		}
	})

	t.Run("alphanumeric MRN and other units", func(t *testing.T) {
		raw := strings.Replace(labMessage, "55555^", "A5555^", 1)
		raw = strings.Replace(raw, "|mg/dL^mg/dL^UCUM|", "|mmol/L^mmol/L^UCUM|", 1)
		result, err := e.ValidateBytes(ctx, []byte(raw), rs)
		if err != nil {
			t.Fatalf("ValidateBytes failed: %v", err)
		}
		if result.ErrorCount() != 1 || result.WarningCount() != 1 {
			t.Errorf("errors, warnings = %d, %d; want 1, 1: %v",
				result.ErrorCount(), result.WarningCount(), result.Issues)
		}
	})

	t.Run("legacy segment present", func(t *testing.T) {
		raw := labMessage + "\rZPI|legacy"
		result, err := e.ValidateBytes(ctx, []byte(raw), rs)
		if err != nil {
			t.Fatalf("ValidateBytes failed: %v", err)
		}
		var ruleHit, segmentWarn bool
		for _, issue := range result.Issues {
			switch {
			case issue.RuleName == "no-legacy-segment":
				ruleHit = true
			case issue.Code == hv.IssueTypeNotSupported && issue.Segment == "ZPI":
				segmentWarn = true
			}
		}
		if !ruleHit || !segmentWarn {
			t.Errorf("rule hit = %v, segment warning = %v; want both: %v", ruleHit, segmentWarn, result.Issues)
		}
	})
}

func TestIntegration_RuleSetFormats(t *testing.T) {
	jsonRules := `{
  "name": "lab-results",
  "rules": [
    {"name": "final-results-only", "targetPath": "OBX.11", "condition": "equals", "value": "F"}
  ]
}`
	fromJSON, err := rules.LoadString(jsonRules, "json")
	if err != nil {
		t.Fatalf("LoadString(json) failed: %v", err)
	}

	e := newEngine(t)
	raw := []byte(strings.Replace(labMessage, "|||F", "|||C", 1))

	yamlResult, _ := e.ValidateBytes(context.Background(), raw, loadLabRules(t))
	jsonResult, _ := e.ValidateBytes(context.Background(), raw, fromJSON)

	if yamlResult.ErrorCount() != 1 || jsonResult.ErrorCount() != 1 {
		t.Errorf("ErrorCount yaml, json = %d, %d; want 1, 1", yamlResult.ErrorCount(), jsonResult.ErrorCount())
	}
}

func TestIntegration_BatchValidation(t *testing.T) {
	e := newEngine(t, hv.WithWorkerCount(4))
	rs := loadLabRules(t)

	messages := [][]byte{
		[]byte(labMessage),
		[]byte(admitMessage),
		[]byte(strings.Replace(labMessage, "|||F", "|||Q", 1)),
		[]byte("not a message"),
	}

	t.Run("worker pool", func(t *testing.T) {
		pool := worker.NewPool(e, 2)
		for i, raw := range messages {
			if !pool.Submit(worker.Job{Message: raw, RuleSet: rs}) {
				t.Fatalf("Submit(%d) failed", i)
			}
		}

		batch := pool.CloseAndWait()
		if batch.TotalJobs != 4 || len(batch.Results) != 4 {
			t.Fatalf("TotalJobs = %d, results = %d; want 4", batch.TotalJobs, len(batch.Results))
		}
		if batch.FailedJobs != 0 {
			t.Errorf("FailedJobs = %d; want 0", batch.FailedJobs)
		}
		if batch.ValidCount() != 1 {
			t.Errorf("ValidCount() = %d; want 1", batch.ValidCount())
		}
		for _, jr := range batch.Results {
			if jr.Result.JobID != jr.ID {
				t.Errorf("JobID = %q; want %q", jr.Result.JobID, jr.ID)
			}
		}
	})

	t.Run("batch validator", func(t *testing.T) {
		bv := worker.NewBatchValidator(func(ctx context.Context, raw []byte) (*hv.Result, error) {
			return e.ValidateBytes(ctx, raw, nil)
		}, 3)

		batch := bv.ValidateBatch(context.Background(), messages)
		want := []bool{true, true, false, false}
		for i, jr := range batch.Results {
			if jr.Result.Valid != want[i] {
				t.Errorf("Results[%d].Valid = %v; want %v", i, jr.Result.Valid, want[i])
			}
		}
	})

	t.Run("engine batch", func(t *testing.T) {
		results := e.ValidateBatch(context.Background(), messages, rs)
		if len(results) != 4 {
			t.Fatalf("len(results) = %d; want 4", len(results))
		}
		if results[1].MessageType != "ADT^A01" {
			t.Errorf("results[1].MessageType = %q; want ADT^A01", results[1].MessageType)
		}
		if results[3].Valid {
			t.Error("unparseable message should be invalid")
		}
	})
}

func TestIntegration_ContextCancellation(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.ValidateBytes(ctx, []byte(labMessage), nil); err != context.Canceled {
		t.Errorf("ValidateBytes error = %v; want context.Canceled", err)
	}

	result := e.Validate(ctx, mustParse(t, e, labMessage))
	if len(result.Issues) != 1 || result.Issues[0].Code != hv.IssueTypeTimeout {
		t.Fatalf("Issues = %v; want one timeout warning", result.Issues)
	}
	if !result.Valid {
		t.Error("a cancelled run only warns")
	}

	results := e.ValidateBatch(ctx, [][]byte{[]byte(labMessage)}, nil)
	if results[0].Valid || results[0].Issues[0].Code != hv.IssueTypeTimeout {
		t.Errorf("batch result = %v; want timeout error", results[0].Issues)
	}
}

func TestIntegration_ErrorAggregation(t *testing.T) {
	e := newEngine(t, hv.WithParallelPhases(false))

	raw := "MSH|^~\\&|LAB|HOSP|EMR|HOSP|20240115110000||ORU^R01^ORU_R01|LAB0002|P|2.5\r" +
		"PID|1||55555^^^HOSP^MR||||yesterday|X\r" +
		"OBX|1|NM|GLU^Glucose^L||high|||||||Q"

	result, err := e.ValidateBytes(context.Background(), []byte(raw), nil)
	if err != nil {
		t.Fatalf("ValidateBytes failed: %v", err)
	}

	want := []struct {
		code     hv.IssueType
		segment  string
		field    int
		severity hv.IssueSeverity
	}{
		{hv.IssueTypeRequired, "PID", 5, hv.SeverityError},
		{hv.IssueTypeValue, "PID", 7, hv.SeverityWarning},
		{hv.IssueTypeValue, "OBX", 5, hv.SeverityWarning},
		{hv.IssueTypeCodeInvalid, "PID", 8, hv.SeverityWarning},
		{hv.IssueTypeCodeInvalid, "OBX", 11, hv.SeverityError},
	}
	if len(result.Issues) != len(want) {
		t.Fatalf("Issues = %v; want %d", result.Issues, len(want))
	}
	for i, w := range want {
		got := result.Issues[i]
		if got.Code != w.code || got.Segment != w.segment || got.Field != w.field || got.Severity != w.severity {
			t.Errorf("Issues[%d] = %s %s %s.%d; want %s %s %s.%d", i,
				got.Severity, got.Code, got.Segment, got.Field,
				w.severity, w.code, w.segment, w.field)
		}
	}
	if got := result.Summary(); got != "invalid: 2 errors, 3 warnings" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestIntegration_ValidateStream(t *testing.T) {
	e := newEngine(t, hv.WithWorkerCount(3))
	rs := loadLabRules(t)

	input := strings.Join([]string{
		"BHS|^~\\&|LAB|HOSP|EMR|HOSP|20240115||||BATCH01",
		labMessage,
		strings.Replace(labMessage, "|||F", "|||P", 1),
		labMessage,
		"BTS|3",
	}, "\n")

	agg := stream.Aggregate(e.ValidateStream(context.Background(), strings.NewReader(input), rs))
	if agg.TotalMessages != 3 {
		t.Fatalf("TotalMessages = %d; want 3", agg.TotalMessages)
	}
	if agg.MessagesWithErrors != 1 || len(agg.Issues[1]) != 1 {
		t.Errorf("MessagesWithErrors = %d, Issues = %v; want message 1 only", agg.MessagesWithErrors, agg.Issues)
	}
	if len(agg.ProcessingErrors) != 0 {
		t.Errorf("ProcessingErrors = %v", agg.ProcessingErrors)
	}
}
