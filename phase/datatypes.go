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

// DataTypesPhase validates field values against their data types.
// It checks that:
// - Primitive values have the right shape (NM, SI, DT, TM, DTM, ID, IS)
// - Components of composite types do too, one level of nesting deep
// - Fields and components fit their maximum length
//
// Problems found here are warnings; strict mode turns them into errors.
type DataTypesPhase struct{}

// NewDataTypesPhase creates a new data type validation phase.
func NewDataTypesPhase() *DataTypesPhase {
	return &DataTypesPhase{}
}

// Name returns the phase name.
func (p *DataTypesPhase) Name() string {
	return "datatypes"
}

// Validate performs data type and length validation.
func (p *DataTypesPhase) Validate(ctx context.Context, pctx *pipeline.Context) []hv.Issue {
	var issues []hv.Issue

	if cancelled(ctx) || !ready(pctx) {
		return issues
	}
	opts := options(pctx)
	if !opts.ValidateDataTypes && !opts.ValidateLengths {
		return issues
	}
	d := pctx.Delimiters()

	WalkFields(ctx, pctx, func(e walker.Entry, def *schema.FieldDef, v message.Value) bool {
		typeName := p.resolveType(pctx.Schema, e, def)
		for i, rep := range v.Repetitions() {
			if !rep.HasContent() {
				continue
			}
			loc := Location{Entry: e, Field: def.Position, Repetition: i + 1}
			if opts.ValidateDataTypes && typeName != "" {
				issues = append(issues, p.validateValue(pctx.Schema, typeName, rep, d, loc)...)
			}
			if opts.ValidateLengths {
				issues = append(issues, p.validateLength(pctx.Schema, def, typeName, rep, d, loc)...)
			}
		}
		return true
	})

	return issues
}

// resolveType returns the data type to check def against. Fields of type
// "varies" take it from their TypeFrom field; "" means unknown.
func (p *DataTypesPhase) resolveType(s *schema.Schema, e walker.Entry, def *schema.FieldDef) string {
	if def.DataType != schema.Varies {
		return def.DataType
	}
	if def.TypeFrom == 0 {
		return ""
	}
	v, ok := e.Segment.Field(def.TypeFrom)
	if !ok {
		return ""
	}
	name := firstText(v)
	if _, ok := s.DataType(name); ok || schema.IsPrimitive(name) {
		return name
	}
	return ""
}

func (p *DataTypesPhase) validateValue(s *schema.Schema, typeName string, v message.Value, d message.Delimiters, loc Location) []hv.Issue {
	var issues []hv.Issue

	for _, viol := range s.CheckValue(typeName, v, d) {
		at := loc
		at.Component = viol.Component
		at.Subcomponent = viol.Subcomponent
		issues = append(issues, WarningIssue(
			hv.IssueTypeValue,
			fmt.Sprintf("%s: %s (%q)", at.Path(), viol.Reason, viol.Value),
			at,
			p.Name(),
		))
	}

	return issues
}

// validateLength checks the encoded length of the repetition and of each
// component that declares a maximum.
func (p *DataTypesPhase) validateLength(s *schema.Schema, def *schema.FieldDef, typeName string, v message.Value, d message.Delimiters, loc Location) []hv.Issue {
	var issues []hv.Issue

	if def.MaxLength > 0 {
		if n := len(v.Encode(d)); n > def.MaxLength {
			issues = append(issues, WarningIssue(
				hv.IssueTypeTooLong,
				fmt.Sprintf("%s is %d characters long; maximum is %d", loc.Path(), n, def.MaxLength),
				loc,
				p.Name(),
			))
		}
	}

	dt, ok := s.DataType(typeName)
	if !ok || !dt.IsComposite() {
		return issues
	}
	for i, comp := range dt.Components {
		if comp.MaxLength == 0 {
			continue
		}
		cv, ok := v.Component(i + 1)
		if !ok {
			continue
		}
		if n := len(cv.Encode(d)); n > comp.MaxLength {
			at := loc
			at.Component = i + 1
			issues = append(issues, WarningIssue(
				hv.IssueTypeTooLong,
				fmt.Sprintf("%s (%s) is %d characters long; maximum is %d", at.Path(), comp.Name, n, comp.MaxLength),
				at,
				p.Name(),
			))
		}
	}

	return issues
}
