package phase

import (
	"context"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/pipeline"
	"github.com/gofhir/hl7v2/pool"
	"github.com/gofhir/hl7v2/schema"
	"github.com/gofhir/hl7v2/walker"
)

// Location points at a segment, or a field, repetition, component or
// subcomponent inside it. Zero numbers are left out of the path.
type Location struct {
	Entry        walker.Entry
	Field        int
	Repetition   int
	Component    int
	Subcomponent int
}

// Path returns the location as a rule-style path, e.g. "PID.3[2].1".
// The occurrence and repetition are only written when greater than one.
func (l Location) Path() string {
	return pool.BuildPath(func(b *pool.PathBuilder) {
		b.Segment(l.Entry.Segment.Tag())
		if l.Entry.Occurrence > 1 {
			b.Index(l.Entry.Occurrence)
		}
		if l.Field == 0 {
			return
		}
		b.Position(l.Field)
		if l.Repetition > 1 {
			b.Index(l.Repetition)
		}
		if l.Component > 0 {
			b.Position(l.Component)
		}
		if l.Subcomponent > 0 {
			b.Position(l.Subcomponent)
		}
	})
}

// BaseIssue creates an issue with its location fields set.
func BaseIssue(severity hv.IssueSeverity, code hv.IssueType, diagnostics string, loc Location, phase string) hv.Issue {
	return hv.NewIssue(severity, code).
		Diagnostics(diagnostics).
		At(loc.Entry.Segment.Tag(), loc.Field).
		Path(loc.Path()).
		Line(loc.Entry.Segment.Line()).
		Phase(phase).
		Build()
}

// ErrorIssue creates an error issue.
func ErrorIssue(code hv.IssueType, diagnostics string, loc Location, phase string) hv.Issue {
	return BaseIssue(hv.SeverityError, code, diagnostics, loc, phase)
}

// WarningIssue creates a warning issue.
func WarningIssue(code hv.IssueType, diagnostics string, loc Location, phase string) hv.Issue {
	return BaseIssue(hv.SeverityWarning, code, diagnostics, loc, phase)
}

// defaults stands in for a context without options.
var defaults = hv.DefaultOptions()

func options(pctx *pipeline.Context) *hv.Options {
	if pctx.Options == nil {
		return defaults
	}
	return pctx.Options
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// ready reports whether pctx carries what the schema phases need.
func ready(pctx *pipeline.Context) bool {
	return pctx.Message != nil && pctx.Index != nil && pctx.Schema != nil
}

// FieldVisitor is called for every populated field with a definition.
// Return false to stop walking.
type FieldVisitor func(e walker.Entry, def *schema.FieldDef, v message.Value) bool

// WalkFields visits every field of every defined segment that has a
// definition and some content, in message order. It stops early when ctx
// is cancelled or the error limit is reached.
func WalkFields(ctx context.Context, pctx *pipeline.Context, fn FieldVisitor) {
	for _, e := range pctx.Index.Entries() {
		if cancelled(ctx) || pctx.ShouldStop() {
			return
		}
		segDef, ok := pctx.Schema.Segment(e.Segment.Tag())
		if !ok {
			continue
		}
		for pos := 1; pos <= e.Segment.Len(); pos++ {
			def, ok := segDef.Field(pos)
			if !ok {
				continue
			}
			v, ok := e.Segment.Field(pos)
			if !ok || !v.HasContent() {
				continue
			}
			if !fn(e, def, v) {
				return
			}
		}
	}
}

// label returns "PID.8 (Administrative Sex)" style field names.
func label(tag string, def *schema.FieldDef) string {
	p := pool.FieldPath(tag, def.Position)
	if def.Name == "" {
		return p
	}
	return p + " (" + def.Name + ")"
}

// firstText returns the first leaf text of v: component 1, subcomponent 1.
func firstText(v message.Value) string {
	if c, ok := v.Component(1); ok {
		v = c
	}
	if s, ok := v.Subcomponent(1); ok {
		return s.Text()
	}
	return ""
}
