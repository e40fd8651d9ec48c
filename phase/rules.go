package phase

import (
	"context"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/pipeline"
	"github.com/gofhir/hl7v2/rules"
)

// RulesPhase evaluates the context's custom rule set.
type RulesPhase struct {
	engine *rules.Engine
}

// NewRulesPhase creates a rule phase backed by engine. A nil engine uses
// a fresh default one.
func NewRulesPhase(engine *rules.Engine) *RulesPhase {
	if engine == nil {
		engine = rules.NewEngine()
	}
	return &RulesPhase{engine: engine}
}

// Name returns the phase name.
func (p *RulesPhase) Name() string {
	return rules.PhaseName
}

// Validate evaluates every active rule of pctx.RuleSet.
func (p *RulesPhase) Validate(ctx context.Context, pctx *pipeline.Context) []hv.Issue {
	if cancelled(ctx) || pctx.RuleSet == nil || pctx.Message == nil {
		return nil
	}
	return p.engine.Evaluate(pctx.Message, pctx.Index, pctx.RuleSet)
}

// HasRuleSet is the condition under which the rules phase runs.
func HasRuleSet(pctx *pipeline.Context) bool {
	return pctx.RuleSet != nil && pctx.RuleSet.ActiveCount() > 0
}
