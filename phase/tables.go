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

// TablesPhase validates coded values against HL7 tables.
//
// A field bound to a table is checked through its first component. The
// component tables of a composite data type, such as the message code and
// trigger event of MSG, are checked too. Codes outside an open table give a
// warning, outside a closed one an error.
type TablesPhase struct{}

// NewTablesPhase creates a new table validation phase.
func NewTablesPhase() *TablesPhase {
	return &TablesPhase{}
}

// Name returns the phase name.
func (p *TablesPhase) Name() string {
	return "tables"
}

// Validate performs table validation.
func (p *TablesPhase) Validate(ctx context.Context, pctx *pipeline.Context) []hv.Issue {
	var issues []hv.Issue

	if cancelled(ctx) || !ready(pctx) || !options(pctx).ValidateTables {
		return issues
	}

	WalkFields(ctx, pctx, func(e walker.Entry, def *schema.FieldDef, v message.Value) bool {
		dt, _ := pctx.Schema.DataType(def.DataType)
		for i, rep := range v.Repetitions() {
			loc := Location{Entry: e, Field: def.Position, Repetition: i + 1}
			if def.Table != "" {
				if issue, bad := p.check(pctx.Schema, def.Table, def.Closed, firstText(rep), loc); bad {
					issues = append(issues, issue)
				}
			}
			if dt != nil && dt.IsComposite() {
				issues = append(issues, p.validateComponents(pctx.Schema, def, dt, rep, loc)...)
			}
		}
		return true
	})

	return issues
}

func (p *TablesPhase) validateComponents(s *schema.Schema, def *schema.FieldDef, dt *schema.DataType, v message.Value, loc Location) []hv.Issue {
	var issues []hv.Issue

	for i, comp := range dt.Components {
		// Component 1 was already checked against the field table.
		if comp.Table == "" || (i == 0 && def.Table != "") {
			continue
		}
		cv, ok := v.Component(i + 1)
		if !ok {
			continue
		}
		at := loc
		at.Component = i + 1
		if issue, bad := p.check(s, comp.Table, comp.Closed, firstText(cv), at); bad {
			issues = append(issues, issue)
		}
	}

	return issues
}

// check looks code up in table id. Empty codes and unknown tables pass.
func (p *TablesPhase) check(s *schema.Schema, id string, closed bool, code string, loc Location) (hv.Issue, bool) {
	if code == "" {
		return hv.Issue{}, false
	}
	table, ok := s.Table(id)
	if !ok || table.Has(code) {
		return hv.Issue{}, false
	}

	name := id
	if table.Name != "" {
		name = id + " (" + table.Name + ")"
	}
	diag := fmt.Sprintf("%s: code %q is not in table %s", loc.Path(), code, name)
	if closed {
		return ErrorIssue(hv.IssueTypeCodeInvalid, diag, loc, p.Name()), true
	}
	return WarningIssue(hv.IssueTypeCodeInvalid, diag, loc, p.Name()), true
}
