package rules

import (
	"errors"
	"fmt"
)

// ErrRuleEvaluation matches every *RuleEvaluationError.
var ErrRuleEvaluation = errors.New("rule evaluation failed")

// RuleEvaluationError records why a rule could not be evaluated. It is
// logged and turned into a warning issue; Evaluate never returns it.
type RuleEvaluationError struct {
	Rule string
	Path string
	Err  error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %q at %s: %v", e.Rule, e.Path, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRuleEvaluation) true.
func (e *RuleEvaluationError) Is(target error) bool {
	return target == ErrRuleEvaluation
}
