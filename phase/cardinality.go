package phase

import (
	"context"
	"fmt"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/pipeline"
	"github.com/gofhir/hl7v2/schema"
	"github.com/gofhir/hl7v2/walker"
)

// CardinalityPhase validates field presence and repetition counts.
// It checks that:
// - Required fields are present and not empty
// - Fields don't repeat more often than their definition allows
type CardinalityPhase struct{}

// NewCardinalityPhase creates a new cardinality validation phase.
func NewCardinalityPhase() *CardinalityPhase {
	return &CardinalityPhase{}
}

// Name returns the phase name.
func (p *CardinalityPhase) Name() string {
	return "cardinality"
}

// Validate performs cardinality validation.
func (p *CardinalityPhase) Validate(ctx context.Context, pctx *pipeline.Context) []hv.Issue {
	var issues []hv.Issue

	if cancelled(ctx) || !ready(pctx) {
		return issues
	}

	for _, e := range pctx.Index.Entries() {
		if cancelled(ctx) || pctx.ShouldStop() {
			return issues
		}
		def, ok := pctx.Schema.Segment(e.Segment.Tag())
		if !ok {
			continue
		}
		issues = append(issues, p.validateRequired(e, def)...)
		issues = append(issues, p.validateRepeats(e, def)...)
	}

	return issues
}

// validateRequired checks that required fields carry content. A field made
// only of separators ("^^") counts as missing.
func (p *CardinalityPhase) validateRequired(e walker.Entry, def *schema.SegmentDef) []hv.Issue {
	var issues []hv.Issue

	for _, f := range def.RequiredFields() {
		v, ok := e.Segment.Field(f.Position)
		if ok && v.HasContent() {
			continue
		}
		issues = append(issues, ErrorIssue(
			hv.IssueTypeRequired,
			"required field missing: "+label(e.Segment.Tag(), f),
			Location{Entry: e, Field: f.Position},
			p.Name(),
		))
	}

	return issues
}

// validateRepeats checks repetition counts against the field definition.
func (p *CardinalityPhase) validateRepeats(e walker.Entry, def *schema.SegmentDef) []hv.Issue {
	var issues []hv.Issue

	for pos := 1; pos <= e.Segment.Len(); pos++ {
		v, _ := e.Segment.Field(pos)
		if v.Kind() != message.Repeated {
			continue
		}
		f, ok := def.Field(pos)
		if !ok {
			continue
		}
		limit := f.RepeatLimit()
		if n := v.Len(); limit > 0 && n > limit {
			issues = append(issues, ErrorIssue(
				hv.IssueTypeCardinality,
				fmt.Sprintf("%s repeats %d times but at most %d allowed", label(e.Segment.Tag(), f), n, limit),
				Location{Entry: e, Field: pos},
				p.Name(),
			))
		}
	}

	return issues
}
