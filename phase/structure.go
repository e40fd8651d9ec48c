package phase

import (
	"context"
	"fmt"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/pipeline"
	"github.com/gofhir/hl7v2/walker"
)

// StructurePhase validates the segment layout of a message.
// It checks that:
// - The message has at least one segment and the first one is MSH
// - Every segment is defined by the schema (warning only)
type StructurePhase struct{}

// NewStructurePhase creates a new structure validation phase.
func NewStructurePhase() *StructurePhase {
	return &StructurePhase{}
}

// Name returns the phase name.
func (p *StructurePhase) Name() string {
	return "structure"
}

// Validate performs structure validation.
func (p *StructurePhase) Validate(ctx context.Context, pctx *pipeline.Context) []hv.Issue {
	var issues []hv.Issue

	if cancelled(ctx) || pctx.Index == nil {
		return issues
	}

	entries := pctx.Index.Entries()
	if len(entries) == 0 {
		return append(issues, hv.Error(hv.IssueTypeStructure).
			Diagnostics("message has no segments").
			Phase(p.Name()).
			Build())
	}

	if first := entries[0]; first.Segment.Tag() != message.HeaderTag {
		issues = append(issues, ErrorIssue(
			hv.IssueTypeStructure,
			fmt.Sprintf("first segment must be MSH, found %s", first.Segment.Tag()),
			Location{Entry: first},
			p.Name(),
		))
	}

	if pctx.Schema == nil || !options(pctx).ReportUnknownSegments {
		return issues
	}
	return append(issues, p.unknownSegments(ctx, pctx, entries)...)
}

// unknownSegments warns once per tag the schema does not define.
// Z segments are site specific and get the same warning.
func (p *StructurePhase) unknownSegments(ctx context.Context, pctx *pipeline.Context, entries []walker.Entry) []hv.Issue {
	var issues []hv.Issue
	seen := make(map[string]bool)

	for _, e := range entries {
		if cancelled(ctx) {
			return issues
		}
		tag := e.Segment.Tag()
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if _, ok := pctx.Schema.Segment(tag); ok {
			continue
		}

		diag := fmt.Sprintf("segment %s is not defined for HL7 v%s", tag, pctx.Schema.Version)
		if tag[0] == 'Z' {
			diag = fmt.Sprintf("site-defined segment %s is not checked", tag)
		}
		issues = append(issues, WarningIssue(hv.IssueTypeNotSupported, diag, Location{Entry: e}, p.Name()))
	}
	return issues
}
