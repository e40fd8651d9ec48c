package rules

import (
	"fmt"
	"regexp"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/cache"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/pkg/logger"
	"github.com/gofhir/hl7v2/walker"
)

// PhaseName is the phase recorded on issues produced by rules.
const PhaseName = "rules"

// DefaultRegexCacheSize is the number of compiled patterns kept by an
// Engine unless configured otherwise.
const DefaultRegexCacheSize = 256

// Engine evaluates rule sets. It is safe for concurrent use; compiled
// regular expressions are shared through an LRU cache.
type Engine struct {
	regexes *cache.LRU[string, *regexp.Regexp]
	metrics *hv.Metrics
	log     *logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegexCacheSize sets the capacity of the compiled pattern cache.
func WithRegexCacheSize(size int) EngineOption {
	return func(e *Engine) {
		if size > 0 {
			e.regexes = cache.New[string, *regexp.Regexp](size)
		}
	}
}

// WithMetrics records rule evaluation failures in m.
func WithMetrics(m *hv.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger evaluation failures are written to.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates a rule engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		regexes: cache.New[string, *regexp.Regexp](DefaultRegexCacheSize),
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Evaluate runs rs against msg with a shared default engine. idx may be nil,
// in which case msg is indexed first.
func Evaluate(msg *message.Message, idx *walker.Index, rs *RuleSet) []hv.Issue {
	return defaultEngine.Evaluate(msg, idx, rs)
}

// RegexCacheStats reports the compiled pattern cache usage.
func (e *Engine) RegexCacheStats() cache.Stats {
	return e.regexes.Stats()
}

// regex returns the compiled pattern, or nil when it does not compile.
// Invalid patterns are cached too so they are compiled once.
func (e *Engine) regex(pattern string) *regexp.Regexp {
	return e.regexes.GetOrSet(pattern, func() *regexp.Regexp {
		return compileRegex(pattern)
	})
}

// Evaluate runs every active rule of rs in order and returns one issue per
// violated rule and per rule that could not be evaluated.
func (e *Engine) Evaluate(msg *message.Message, idx *walker.Index, rs *RuleSet) []hv.Issue {
	if rs == nil || len(rs.Rules) == 0 {
		return nil
	}
	if idx == nil {
		idx = walker.NewIndex(msg)
	}

	var issues []hv.Issue
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !r.IsActive() {
			continue
		}

		issue, violated, err := e.evaluate(idx, r)
		if err != nil {
			issues = append(issues, e.failure(rs, r, err))
			continue
		}
		if violated {
			issues = append(issues, issue)
		}
	}
	return issues
}

// evaluate checks one rule. Panics from unexpected message shapes are
// turned into a *RuleEvaluationError.
func (e *Engine) evaluate(idx *walker.Index, r *Rule) (issue hv.Issue, violated bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RuleEvaluationError{Rule: r.Name, Path: r.TargetPath, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	pred, ok := predicates[r.Condition]
	if !ok {
		return issue, false, &RuleEvaluationError{
			Rule: r.Name,
			Path: r.TargetPath,
			Err:  fmt.Errorf("unknown condition %q", r.Condition),
		}
	}

	p, err := walker.ParsePath(r.TargetPath)
	if err != nil {
		return issue, false, &RuleEvaluationError{Rule: r.Name, Path: r.TargetPath, Err: err}
	}

	v := resolve(idx, p)
	if !pred(e, v, r.Value) {
		return issue, false, nil
	}

	line := 0
	if entry, ok := idx.Segment(p.Segment, p.Occurrence); ok {
		line = entry.Segment.Line()
	}
	issue = hv.NewIssue(r.IssueSeverity(), hv.IssueTypeBusinessRule).
		Diagnostics(violationMessage(r)).
		At(p.Segment, p.Field).
		Path(r.TargetPath).
		Line(line).
		Phase(PhaseName).
		Custom(r.Name).
		Build()
	return issue, true, nil
}

// failure logs err and converts it to a warning issue.
func (e *Engine) failure(rs *RuleSet, r *Rule, err error) hv.Issue {
	if e.metrics != nil {
		e.metrics.RecordRuleFailure()
	}
	e.log.Entry(logger.LevelWarn).
		Str("ruleSet", rs.Name).
		Str("rule", r.Name).
		Str("path", r.TargetPath).
		Err(err).
		Msg("rule evaluation failed")

	return hv.Warning(hv.IssueTypeProcessing).
		Diagnostics("rule evaluation failed: " + err.Error()).
		Path(r.TargetPath).
		Phase(PhaseName).
		Custom(r.Name).
		Build()
}

func resolve(idx *walker.Index, p walker.Path) target {
	v, ok := idx.Resolve(p)
	if !ok {
		return target{}
	}
	t := target{defined: true, content: v.HasContent()}
	if v.Kind() == message.Text {
		t.scalar = true
		t.text = v.Text()
		if msg := idx.Message(); msg != nil {
			t.text = message.Unescape(t.text, msg.Delimiters())
		}
	}
	return t
}

func violationMessage(r *Rule) string {
	if r.Message != "" {
		return r.Message
	}
	switch r.Condition {
	case Exists:
		return r.TargetPath + " must be present"
	case NotExists:
		return r.TargetPath + " must be absent"
	case Equals:
		return fmt.Sprintf("%s must equal %q", r.TargetPath, r.Value)
	case NotEquals:
		return fmt.Sprintf("%s must not equal %q", r.TargetPath, r.Value)
	case StartsWith:
		return fmt.Sprintf("%s must start with %q", r.TargetPath, r.Value)
	case EndsWith:
		return fmt.Sprintf("%s must end with %q", r.TargetPath, r.Value)
	case Contains:
		return fmt.Sprintf("%s must contain %q", r.TargetPath, r.Value)
	default:
		return fmt.Sprintf("%s must match %q", r.TargetPath, r.Value)
	}
}
