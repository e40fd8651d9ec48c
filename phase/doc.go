// Package phase provides the concrete validation phases run by the pipeline.
//
// Each phase checks one aspect of an HL7 v2 message:
//   - structure: MSH comes first, segments are known to the schema
//   - cardinality: required fields are present, repeats stay within limits
//   - datatypes: values have the shape of their data type and fit their length
//   - tables: coded values belong to their HL7 table
//   - rules: user-defined rule sets
//
// Phases implement the pipeline.Phase interface and can be registered
// with a Pipeline for execution. They read everything from the
// pipeline.Context and never modify the message.
package phase
