package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	hv "github.com/gofhir/hl7v2"
)

const yamlRules = `
name: adt-checks
description: Admission checks
rules:
  - name: sex-present
    targetPath: PID.8
    condition: exists
    severity: error
  - name: version
    targetPath: MSH.12
    condition: equals
    value: 2.5
    severity: warning
  - name: legacy
    targetPath: ZPI.1
    condition: not_exists
    active: false
`

const jsonRules = `{
  "name": "lab-checks",
  "rules": [
    {"name": "glucose-units", "targetPath": "OBX.6.1", "condition": "equals", "value": "mg/dL", "severity": "warning"},
    {"name": "mrn", "targetPath": "PID.3.1", "condition": "matchesRegex", "value": "^[0-9]+$"}
  ]
}`

func TestLoadYAML(t *testing.T) {
	rs, err := LoadYAML([]byte(yamlRules))
	if err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}
	if rs.Name != "adt-checks" || rs.Description != "Admission checks" {
		t.Errorf("Name, Description = %q, %q", rs.Name, rs.Description)
	}
	if len(rs.Rules) != 3 {
		t.Fatalf("len(Rules) = %d; want 3", len(rs.Rules))
	}
	if rs.Rules[1].Value != "2.5" {
		t.Errorf("numeric value = %q; want 2.5", rs.Rules[1].Value)
	}
	if rs.Rules[1].IssueSeverity() != hv.SeverityWarning {
		t.Errorf("severity = %v; want warning", rs.Rules[1].IssueSeverity())
	}
	if rs.Rules[2].IsActive() {
		t.Error("legacy rule should be inactive")
	}
	if rs.Rules[0].IssueSeverity() != hv.SeverityError {
		t.Errorf("severity = %v; want error", rs.Rules[0].IssueSeverity())
	}
}

func TestLoadJSON(t *testing.T) {
	rs, err := LoadJSON([]byte(jsonRules))
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if rs.Name != "lab-checks" || len(rs.Rules) != 2 {
		t.Fatalf("rule set = %+v", rs)
	}
	if rs.Rules[1].Condition != MatchesRegex || rs.Rules[1].Value != "^[0-9]+$" {
		t.Errorf("rule = %+v", rs.Rules[1])
	}
	if !rs.Rules[1].IsActive() {
		t.Error("rules are active by default")
	}
}

func TestLoadString(t *testing.T) {
	if _, err := LoadString(yamlRules, "yml"); err != nil {
		t.Errorf("LoadString(yml) error = %v", err)
	}
	if _, err := LoadString(jsonRules, "JSON"); err != nil {
		t.Errorf("LoadString(JSON) error = %v", err)
	}
	if _, err := LoadString(jsonRules, "xml"); err == nil {
		t.Error("LoadString(xml) expected error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "admissions.yaml")
	if err := os.WriteFile(yamlPath, []byte("rules:\n  - {name: a, targetPath: PID.8, condition: exists}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rs, err := LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile(yaml) error = %v", err)
	}
	if rs.Name != "admissions" {
		t.Errorf("Name = %q; want file name fallback admissions", rs.Name)
	}

	jsonPath := filepath.Join(dir, "lab.json")
	if err := os.WriteFile(jsonPath, []byte(jsonRules), 0o600); err != nil {
		t.Fatal(err)
	}
	if rs, err := LoadFile(jsonPath); err != nil || rs.Name != "lab-checks" {
		t.Errorf("LoadFile(json) = %v, %v", rs, err)
	}

	if _, err := LoadFile(filepath.Join(dir, "rules.toml")); err == nil {
		t.Error("LoadFile(toml) expected error")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) expected error")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing name", "rules:\n  - {targetPath: PID.8, condition: exists}", "missing name"},
		{"duplicate name", "rules:\n  - {name: a, targetPath: PID.8, condition: exists}\n  - {name: a, targetPath: PID.7, condition: exists}", "duplicate name"},
		{"unknown condition", "rules:\n  - {name: a, targetPath: PID.8, condition: greaterThan}", "unknown condition"},
		{"missing path", "rules:\n  - {name: a, condition: exists}", "missing targetPath"},
		{"missing value", "rules:\n  - {name: a, targetPath: PID.8, condition: startsWith}", "needs a value"},
		{"bad severity", "rules:\n  - {name: a, targetPath: PID.8, condition: exists, severity: fatal}", "unknown severity"},
		{"not yaml", "rules: [", "decode rule set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadYAML() error = %v; want containing %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ErrInvalidRuleSet(t *testing.T) {
	rs := &RuleSet{Name: "x", Rules: []Rule{{Name: "a", Condition: Exists}}}
	if err := rs.Validate(); !errors.Is(err, ErrInvalidRuleSet) {
		t.Errorf("Validate() error = %v; want ErrInvalidRuleSet", err)
	}
}

func TestConditions(t *testing.T) {
	for _, c := range Conditions() {
		if !c.Valid() {
			t.Errorf("%q.Valid() = false", c)
		}
	}
	if Condition("greaterThan").Valid() {
		t.Error("greaterThan should not be valid")
	}
}
