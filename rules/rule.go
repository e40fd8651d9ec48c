// Package rules evaluates user-defined validation rules against parsed HL7
// messages.
//
// A RuleSet is an ordered list of rules. Each rule names a target path
// (see package walker), a condition and an optional comparison value:
//
//	name: adt-rules
//	rules:
//	  - name: sex-present
//	    targetPath: PID.8
//	    condition: exists
//	    severity: error
//	  - name: facility-prefix
//	    targetPath: MSH.4.1
//	    condition: startsWith
//	    value: HOSP
//	    severity: warning
//
// Rules are independent: they never see each other's results and one rule
// failing to evaluate never stops the others.
package rules

import (
	"errors"
	"fmt"

	hv "github.com/gofhir/hl7v2"
)

// Condition is the predicate a rule applies to its target value.
type Condition string

// Supported conditions.
const (
	Exists       Condition = "exists"
	NotExists    Condition = "not_exists"
	Equals       Condition = "equals"
	NotEquals    Condition = "not_equals"
	StartsWith   Condition = "startsWith"
	EndsWith     Condition = "endsWith"
	Contains     Condition = "contains"
	MatchesRegex Condition = "matchesRegex"
)

// Conditions returns every supported condition in documentation order.
func Conditions() []Condition {
	return []Condition{Exists, NotExists, Equals, NotEquals, StartsWith, EndsWith, Contains, MatchesRegex}
}

// Valid reports whether c is a supported condition.
func (c Condition) Valid() bool {
	_, ok := predicates[c]
	return ok
}

// needsValue reports whether the condition is meaningless without Rule.Value.
func (c Condition) needsValue() bool {
	switch c {
	case StartsWith, EndsWith, Contains, MatchesRegex:
		return true
	}
	return false
}

// Rule is one custom check.
type Rule struct {
	Name       string           `json:"name" yaml:"name"`
	TargetPath string           `json:"targetPath" yaml:"targetPath"`
	Condition  Condition        `json:"condition" yaml:"condition"`
	Value      string           `json:"value,omitempty" yaml:"value,omitempty"`
	Severity   hv.IssueSeverity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Active     *bool            `json:"active,omitempty" yaml:"active,omitempty"`
	Message    string           `json:"message,omitempty" yaml:"message,omitempty"`
}

// IsActive reports whether the rule takes part in evaluation. Rules are
// active unless explicitly switched off.
func (r *Rule) IsActive() bool {
	return r.Active == nil || *r.Active
}

// IssueSeverity returns the severity of a violation, error when unset.
func (r *Rule) IssueSeverity() hv.IssueSeverity {
	if s, ok := hv.ParseSeverity(string(r.Severity)); ok {
		return s
	}
	return hv.SeverityError
}

// RuleSet is a named, ordered list of rules. It is read-only once built.
type RuleSet struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []Rule `json:"rules" yaml:"rules"`
}

// ActiveCount returns the number of active rules.
func (rs *RuleSet) ActiveCount() int {
	n := 0
	for i := range rs.Rules {
		if rs.Rules[i].IsActive() {
			n++
		}
	}
	return n
}

// ErrInvalidRuleSet is returned by Validate and the loaders for malformed
// rule sets.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// Validate checks the rule set for unnamed rules, duplicate names, unknown
// conditions and severities, and missing comparison values. Target paths are
// checked at evaluation time.
func (rs *RuleSet) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		r := &rs.Rules[i]
		where := fmt.Sprintf("rule %d", i+1)
		if r.Name != "" {
			where = fmt.Sprintf("rule %q", r.Name)
		}

		switch {
		case r.Name == "":
			errs = append(errs, fmt.Errorf("%s: missing name", where))
		case seen[r.Name]:
			errs = append(errs, fmt.Errorf("%s: duplicate name", where))
		}
		seen[r.Name] = true

		if r.TargetPath == "" {
			errs = append(errs, fmt.Errorf("%s: missing targetPath", where))
		}
		if !r.Condition.Valid() {
			errs = append(errs, fmt.Errorf("%s: unknown condition %q", where, r.Condition))
		} else if r.Condition.needsValue() && r.Value == "" {
			errs = append(errs, fmt.Errorf("%s: condition %s needs a value", where, r.Condition))
		}
		if r.Severity != "" {
			if _, ok := hv.ParseSeverity(string(r.Severity)); !ok {
				errs = append(errs, fmt.Errorf("%s: unknown severity %q", where, r.Severity))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidRuleSet, rs.Name, errors.Join(errs...))
	}
	return nil
}
