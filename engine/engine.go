// Package engine provides the main HL7 v2 processing engine: parsing,
// generation and validation behind one configured value.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgraph-io/ristretto"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/phase"
	"github.com/gofhir/hl7v2/pipeline"
	"github.com/gofhir/hl7v2/pkg/logger"
	"github.com/gofhir/hl7v2/rules"
	"github.com/gofhir/hl7v2/schema"
	"github.com/gofhir/hl7v2/stream"
)

// Engine parses, generates and validates HL7 v2 messages.
// It is safe for concurrent use once configured.
type Engine struct {
	// Configuration
	options *hv.Options

	// Services
	schemas *schema.Registry
	rules   *rules.Engine
	log     *logger.Logger

	// Pipeline
	pipe *pipeline.Pipeline

	// Metrics
	metrics *hv.Metrics

	// parsed caches parse results by raw text; nil when disabled
	parsed *ristretto.Cache

	// Worker pool for batch validation
	workerPool     chan struct{}
	workerPoolOnce sync.Once
}

// ParseResult is the outcome of Engine.Parse.
type ParseResult struct {
	Message  *message.Message
	Metadata message.Metadata

	// MetadataErr is a *message.MissingRequiredFieldError when MSH.9 or
	// MSH.12 is empty. Message and the partial Metadata are still usable
	// and validation reports the missing fields.
	MetadataErr error
}

// New creates a new Engine with the given options.
func New(opts ...hv.Option) (*Engine, error) {
	// Apply options
	options := hv.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{
		options: options,
		schemas: schema.Default(),
		log:     logger.Default(),
		metrics: hv.NewMetrics(),
	}

	if options.ParseCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: int64(options.ParseCacheSize * 10),
			MaxCost:     int64(options.ParseCacheSize),
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: parse cache: %w", err)
		}
		e.parsed = cache
	}

	e.buildRules()
	e.buildPipeline()

	return e, nil
}

func (e *Engine) buildRules() {
	e.rules = rules.NewEngine(
		rules.WithRegexCacheSize(e.options.RegexCacheSize),
		rules.WithMetrics(e.metrics),
		rules.WithLogger(e.log),
	)
}

// buildPipeline constructs the validation pipeline based on options.
func (e *Engine) buildPipeline() {
	e.pipe = pipeline.NewPipeline(pipeline.OptionsFrom(e.options))
	e.pipe.SetMetrics(e.metrics)

	// Structure validation (always enabled)
	e.pipe.Register(pipeline.PhaseIDStructure, phase.NewStructurePhase(),
		pipeline.WithStandardPriority(pipeline.PhaseIDStructure),
		pipeline.WithRequired(true))

	// Cardinality validation (always enabled)
	e.pipe.Register(pipeline.PhaseIDCardinality, phase.NewCardinalityPhase(),
		pipeline.WithStandardPriority(pipeline.PhaseIDCardinality),
		pipeline.WithRequired(true))

	// Data type and length validation
	if e.options.ValidateDataTypes || e.options.ValidateLengths {
		e.pipe.Register(pipeline.PhaseIDDataTypes, phase.NewDataTypesPhase(),
			pipeline.WithStandardPriority(pipeline.PhaseIDDataTypes))
	}

	// Table validation
	if e.options.ValidateTables {
		e.pipe.Register(pipeline.PhaseIDTables, phase.NewTablesPhase(),
			pipeline.WithStandardPriority(pipeline.PhaseIDTables))
	}

	// Custom rules (only when a rule set is attached)
	e.pipe.Register(pipeline.PhaseIDRules,
		pipeline.NewConditionalPhase(phase.NewRulesPhase(e.rules), phase.HasRuleSet),
		pipeline.WithStandardPriority(pipeline.PhaseIDRules))
}

// SetSchemaRegistry sets the registry schemas are looked up in.
func (e *Engine) SetSchemaRegistry(r *schema.Registry) {
	if r != nil {
		e.schemas = r
	}
}

// SetLogger sets the logger and rebuilds the rule engine to use it.
func (e *Engine) SetLogger(l *logger.Logger) {
	if l == nil {
		return
	}
	e.log = l
	e.buildRules()
	e.buildPipeline()
}

// Parse parses raw text into a message and its header metadata.
// Structural failures (*message.MalformedHeaderError,
// *message.InvalidMessageStructureError) are returned as errors.
func (e *Engine) Parse(raw string) (*ParseResult, error) {
	if e.parsed != nil {
		if v, ok := e.parsed.Get(raw); ok {
			e.metrics.RecordCacheHit()
			return v.(*ParseResult), nil
		}
		e.metrics.RecordCacheMiss()
	}

	msg, err := message.Parse(raw)
	e.metrics.RecordParse(err == nil)
	if err != nil {
		e.log.Entry(logger.LevelDebug).Err(err).Msg("parse failed")
		return nil, err
	}

	md, mdErr := message.ExtractMetadata(msg)
	if mdErr != nil && !errors.Is(mdErr, message.ErrMissingRequiredField) {
		return nil, mdErr
	}

	res := &ParseResult{Message: msg, Metadata: md, MetadataErr: mdErr}
	if e.parsed != nil {
		e.parsed.Set(raw, res, 1)
		e.parsed.Wait()
	}
	return res, nil
}

// Generate serializes msg with the configured segment terminator.
func (e *Engine) Generate(msg *message.Message) (string, error) {
	return message.Generate(msg, message.WithSegmentTerminator(e.options.SegmentTerminator))
}

// Validate checks msg against the schema of its version.
func (e *Engine) Validate(ctx context.Context, msg *message.Message) *hv.Result {
	return e.validate(ctx, msg, nil)
}

// ValidateWithRuleSet checks msg against its schema and then rs. Schema
// issues come first, then custom rule issues in rule order.
func (e *Engine) ValidateWithRuleSet(ctx context.Context, msg *message.Message, rs *rules.RuleSet) *hv.Result {
	return e.validate(ctx, msg, rs)
}

// ValidateBytes parses raw and validates it, with rs when non-nil. A
// message that cannot be parsed yields an invalid result, not an error;
// the error is only set when ctx is done before validation starts.
func (e *Engine) ValidateBytes(ctx context.Context, raw []byte, rs *rules.RuleSet) (*hv.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := e.Parse(string(raw))
	if err != nil {
		result := e.newResult()
		result.AddIssue(parseIssue(err))
		if rs != nil {
			result.RuleSet = rs.Name
		}
		e.metrics.RecordValidation(0, false)
		return result, nil
	}
	return e.validate(ctx, parsed.Message, rs), nil
}

// parseIssue converts a parse error to an issue.
func parseIssue(err error) hv.Issue {
	b := hv.Error(hv.IssueTypeStructure).
		Diagnostics("parse failed: " + err.Error()).
		Phase("parse")

	var mhe *message.MalformedHeaderError
	var ise *message.InvalidMessageStructureError
	switch {
	case errors.As(err, &mhe):
		b.At(message.HeaderTag, 2).Line(1)
	case errors.As(err, &ise):
		b.Line(ise.Line)
	}
	return b.Build()
}

func (e *Engine) validate(ctx context.Context, msg *message.Message, rs *rules.RuleSet) *hv.Result {
	if msg == nil {
		result := e.newResult()
		result.AddError(hv.IssueTypeStructure, "message is nil", "", 0)
		e.metrics.RecordValidation(0, false)
		return result
	}

	// Create pipeline context
	pctx := pipeline.AcquireContext()
	pctx.Bind(msg)
	pctx.RuleSet = rs
	pctx.Options = e.options
	pctx.Result = e.newResult()

	s, err := e.schemaFor(pctx.Metadata.VersionID)
	if err != nil {
		pctx.Result.AddIssue(hv.Warning(hv.IssueTypeProcessing).
			Diagnostics("schema unavailable: " + err.Error()).
			Build())
		e.log.Entry(logger.LevelWarn).Str("version", pctx.Metadata.VersionID).Err(err).Msg("schema unavailable")
	}
	pctx.Schema = s

	// Run the pipeline
	result := e.pipe.Execute(ctx, pctx)
	result.MessageType = pctx.Metadata.MessageType.String()
	result.ControlID = pctx.Metadata.ControlID
	if rs != nil {
		result.RuleSet = rs.Name
	}

	pctx.Result = nil // Don't release the result with the context
	pipeline.ReleaseContext(pctx)

	return result
}

// schemaFor picks the configured schema version, or the message's own.
func (e *Engine) schemaFor(version string) (*schema.Schema, error) {
	if e.options.SchemaVersion != "" {
		version = string(e.options.SchemaVersion)
	}
	return e.schemas.ForVersion(version)
}

func (e *Engine) newResult() *hv.Result {
	if e.options.EnablePooling {
		return hv.AcquireResult()
	}
	return hv.NewResult()
}

// ValidateBatch validates multiple raw messages in parallel. Results are
// returned in input order.
func (e *Engine) ValidateBatch(ctx context.Context, raws [][]byte, rs *rules.RuleSet) []*hv.Result {
	results := make([]*hv.Result, len(raws))

	// Initialize worker pool if needed
	e.workerPoolOnce.Do(func() {
		workers := e.options.WorkerCount
		if workers <= 0 {
			workers = 4
		}
		e.workerPool = make(chan struct{}, workers)
	})

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(idx int, raw []byte) {
			defer wg.Done()

			// Acquire worker slot
			e.workerPool <- struct{}{}
			defer func() { <-e.workerPool }()

			result, err := e.ValidateBytes(ctx, raw, rs)
			if err != nil {
				result = e.newResult()
				result.AddIssue(hv.Error(hv.IssueTypeTimeout).Diagnostics(err.Error()).Build())
			}
			results[idx] = result
		}(i, raw)
	}

	wg.Wait()
	return results
}

// ValidateStream validates every message read from r: MLLP frames,
// concatenated messages or FHS/BHS batch files. Results arrive in stream
// order; see stream.Validator.
func (e *Engine) ValidateStream(ctx context.Context, r io.Reader, rs *rules.RuleSet) <-chan *stream.MessageResult {
	v := stream.NewValidator(func(ctx context.Context, raw []byte) (*hv.Result, error) {
		return e.ValidateBytes(ctx, raw, rs)
	}).WithWorkerCount(e.options.WorkerCount)
	return v.ValidateStream(ctx, r)
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *hv.Metrics {
	return e.metrics
}

// Options returns the engine's options.
func (e *Engine) Options() *hv.Options {
	return e.options
}

// Rules returns the rule engine used for custom rule sets.
func (e *Engine) Rules() *rules.Engine {
	return e.rules
}

// Plan returns the validation phases in execution order.
func (e *Engine) Plan() *pipeline.ExecutionPlan {
	return e.pipe.Plan()
}

// Close releases resources held by the engine.
func (e *Engine) Close() error {
	if e.parsed != nil {
		e.parsed.Close()
	}
	return nil
}
