// Package hl7v2 provides parsing, generation and validation of HL7 v2.x
// pipe-delimited messages.
//
// The root package holds the findings model shared by every subpackage:
// Issue, Result, Options, Metrics and Version. The engine package is the
// usual entry point.
//
// # Quick Start
//
//	import (
//	    hv "github.com/gofhir/hl7v2"
//	    "github.com/gofhir/hl7v2/engine"
//	)
//
//	eng, err := engine.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	parsed, err := eng.Parse(raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := eng.ValidateWithRuleSet(ctx, parsed.Message, ruleSet)
//	if result.HasErrors() {
//	    for _, issue := range result.Errors() {
//	        fmt.Println(issue)
//	    }
//	}
//
// # Functional Options
//
//	eng, err := engine.New(
//	    hv.WithStrictMode(true),
//	    hv.WithParallelPhases(true),
//	    hv.WithParseCache(1024),
//	)
//
// # Validation Phases
//
// Schema validation runs as a pipeline of phases:
//
//   - Structure: MSH first, unknown segments
//   - Cardinality: required fields and repetition limits
//   - DataTypes: primitive shapes and maximum lengths
//   - Tables: coded values against HL7 tables
//   - Rules: user-defined rule sets (only with ValidateWithRuleSet)
//
// Issues are merged in phase order, so a given message and rule set always
// produce the same Result.
//
// # Field Numbering
//
// Fields use HL7's 1-based numbering in every segment. For MSH, field 1 is
// the field separator and field 2 the encoding characters, so MSH.9 is the
// message type and MSH.12 the version id.
package hl7v2
