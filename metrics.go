package hl7v2

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts parses, validations and their findings. Counters are
// atomic; the per phase, per message type and per rule tables use sync.Map.
// All methods are safe for concurrent use.
type Metrics struct {
	parses        atomic.Uint64
	parseFailures atomic.Uint64
	ruleFailures  atomic.Uint64

	validations      timing
	validationsValid atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	errors   atomic.Uint64
	warnings atomic.Uint64
	infos    atomic.Uint64

	phases       sync.Map // phase name -> *phaseCounters
	messageTypes sync.Map // "ADT^A01" -> *typeCounters
	rules        sync.Map // rule name -> *atomic.Uint64
}

// timing accumulates durations. min starts at the maximum uint64 so the
// first sample replaces it.
type timing struct {
	count atomic.Uint64
	total atomic.Uint64 // nanoseconds
	min   atomic.Uint64
	max   atomic.Uint64
}

func (t *timing) reset() {
	t.count.Store(0)
	t.total.Store(0)
	t.min.Store(^uint64(0))
	t.max.Store(0)
}

func (t *timing) add(d time.Duration) {
	ns := uint64(max(d, 0)) //nolint:gosec // clamped to non negative
	t.count.Add(1)
	t.total.Add(ns)
	for old := t.min.Load(); ns < old && !t.min.CompareAndSwap(old, ns); old = t.min.Load() {
	}
	for old := t.max.Load(); ns > old && !t.max.CompareAndSwap(old, ns); old = t.max.Load() {
	}
}

func (t *timing) average() time.Duration {
	n := t.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(t.total.Load() / n) //nolint:gosec // nanoseconds within int64 range
}

func (t *timing) minimum() time.Duration {
	v := t.min.Load()
	if v == ^uint64(0) {
		return 0
	}
	return time.Duration(v) //nolint:gosec // nanoseconds within int64 range
}

type phaseCounters struct {
	timing
	issues atomic.Uint64
}

type typeCounters struct {
	messages atomic.Uint64
	invalid  atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.validations.reset()
	return m
}

func loadOrStore[T any](m *sync.Map, key string) *T {
	if v, ok := m.Load(key); ok {
		return v.(*T)
	}
	v, _ := m.LoadOrStore(key, new(T))
	return v.(*T)
}

// --- Recording ---

// RecordParse records a parse attempt.
func (m *Metrics) RecordParse(ok bool) {
	m.parses.Add(1)
	if !ok {
		m.parseFailures.Add(1)
	}
}

// RecordValidation records a completed validation.
func (m *Metrics) RecordValidation(duration time.Duration, valid bool) {
	m.validations.add(duration)
	if valid {
		m.validationsValid.Add(1)
	}
}

// RecordMessage tallies a validated message by type and counts the issues
// of r by severity and, for custom issues, by rule.
func (m *Metrics) RecordMessage(messageType string, r *Result) {
	if messageType == "" {
		messageType = "unknown"
	}
	tc := loadOrStore[typeCounters](&m.messageTypes, messageType)
	tc.messages.Add(1)
	if r == nil {
		return
	}
	if !r.Valid {
		tc.invalid.Add(1)
	}
	for i := range r.Issues {
		m.RecordIssue(r.Issues[i].Severity)
		if name := r.Issues[i].RuleName; name != "" {
			loadOrStore[atomic.Uint64](&m.rules, name).Add(1)
		}
	}
}

// RecordRuleFailure records a custom rule that could not be evaluated.
func (m *Metrics) RecordRuleFailure() {
	m.ruleFailures.Add(1)
}

// RecordCacheHit records a parse cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a parse cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordError records an error issue.
func (m *Metrics) RecordError() { m.errors.Add(1) }

// RecordWarning records a warning issue.
func (m *Metrics) RecordWarning() { m.warnings.Add(1) }

// RecordInfo records an informational issue.
func (m *Metrics) RecordInfo() { m.infos.Add(1) }

// RecordIssue records an issue based on severity.
func (m *Metrics) RecordIssue(severity IssueSeverity) {
	switch severity {
	case SeverityError:
		m.RecordError()
	case SeverityWarning:
		m.RecordWarning()
	case SeverityInfo:
		m.RecordInfo()
	}
}

// RecordPhase records one run of a validation phase.
func (m *Metrics) RecordPhase(phaseName string, duration time.Duration, issuesFound int) {
	pc := m.phase(phaseName)
	pc.add(duration)
	pc.issues.Add(uint64(max(issuesFound, 0))) //nolint:gosec // clamped to non negative
}

func (m *Metrics) phase(name string) *phaseCounters {
	if v, ok := m.phases.Load(name); ok {
		return v.(*phaseCounters)
	}
	pc := &phaseCounters{}
	pc.reset()
	v, _ := m.phases.LoadOrStore(name, pc)
	return v.(*phaseCounters)
}

// --- Queries ---

// ParsesTotal returns the number of parse attempts.
func (m *Metrics) ParsesTotal() uint64 { return m.parses.Load() }

// ParseFailures returns the number of parses that failed with a structural error.
func (m *Metrics) ParseFailures() uint64 { return m.parseFailures.Load() }

// RuleFailures returns the number of custom rules that could not be evaluated.
func (m *Metrics) RuleFailures() uint64 { return m.ruleFailures.Load() }

// ValidationsTotal returns the number of validations performed.
func (m *Metrics) ValidationsTotal() uint64 { return m.validations.count.Load() }

// ValidationsValid returns the number of validations without errors.
func (m *Metrics) ValidationsValid() uint64 { return m.validationsValid.Load() }

// ValidationRate returns the share of valid validations (0.0 to 1.0).
func (m *Metrics) ValidationRate() float64 {
	return ratio(m.validationsValid.Load(), m.validations.count.Load())
}

// AverageValidationTime returns the average validation duration.
func (m *Metrics) AverageValidationTime() time.Duration { return m.validations.average() }

// MinValidationTime returns the shortest validation duration.
func (m *Metrics) MinValidationTime() time.Duration { return m.validations.minimum() }

// MaxValidationTime returns the longest validation duration.
func (m *Metrics) MaxValidationTime() time.Duration {
	return time.Duration(m.validations.max.Load()) //nolint:gosec // nanoseconds within int64 range
}

// CacheHits returns the parse cache hits.
func (m *Metrics) CacheHits() uint64 { return m.cacheHits.Load() }

// CacheMisses returns the parse cache misses.
func (m *Metrics) CacheMisses() uint64 { return m.cacheMisses.Load() }

// CacheHitRate returns the parse cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	return ratio(hits, hits+m.cacheMisses.Load())
}

// ErrorsTotal returns the error issues recorded.
func (m *Metrics) ErrorsTotal() uint64 { return m.errors.Load() }

// WarningsTotal returns the warning issues recorded.
func (m *Metrics) WarningsTotal() uint64 { return m.warnings.Load() }

// InfosTotal returns the informational issues recorded.
func (m *Metrics) InfosTotal() uint64 { return m.infos.Load() }

func ratio(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// PhaseStats summarizes the runs of one phase.
type PhaseStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time_ns"`
	AvgTime     time.Duration `json:"avg_time_ns"`
	IssuesFound uint64        `json:"issues_found"`
}

func (pc *phaseCounters) stats(name string) PhaseStats {
	return PhaseStats{
		Name:        name,
		Invocations: pc.count.Load(),
		TotalTime:   time.Duration(pc.total.Load()), //nolint:gosec // nanoseconds within int64 range
		AvgTime:     pc.average(),
		IssuesFound: pc.issues.Load(),
	}
}

// PhaseStats returns the statistics of one phase.
func (m *Metrics) PhaseStats(phaseName string) (PhaseStats, bool) {
	v, ok := m.phases.Load(phaseName)
	if !ok {
		return PhaseStats{Name: phaseName}, false
	}
	return v.(*phaseCounters).stats(phaseName), true
}

// AllPhaseStats returns the statistics of every phase, sorted by name.
func (m *Metrics) AllPhaseStats() []PhaseStats {
	var out []PhaseStats
	m.phases.Range(func(k, v any) bool {
		out = append(out, v.(*phaseCounters).stats(k.(string)))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MessageTypeStats counts the messages seen for one MSH.9 type.
type MessageTypeStats struct {
	MessageType string `json:"message_type"`
	Messages    uint64 `json:"messages"`
	Invalid     uint64 `json:"invalid"`
}

// MessageTypes returns the per type tallies, sorted by type.
func (m *Metrics) MessageTypes() []MessageTypeStats {
	var out []MessageTypeStats
	m.messageTypes.Range(func(k, v any) bool {
		tc := v.(*typeCounters)
		out = append(out, MessageTypeStats{
			MessageType: k.(string),
			Messages:    tc.messages.Load(),
			Invalid:     tc.invalid.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].MessageType < out[j].MessageType })
	return out
}

// RuleViolations returns how often each custom rule reported an issue.
func (m *Metrics) RuleViolations() map[string]uint64 {
	out := make(map[string]uint64)
	m.rules.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	return out
}

// --- Export ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ParsesTotal   uint64 `json:"parses_total"`
	ParseFailures uint64 `json:"parse_failures"`
	RuleFailures  uint64 `json:"rule_failures"`

	ValidationsTotal    uint64  `json:"validations_total"`
	ValidationsValid    uint64  `json:"validations_valid"`
	ValidationRate      float64 `json:"validation_rate"`
	AvgValidationTimeNs uint64  `json:"avg_validation_time_ns"`
	MinValidationTimeNs uint64  `json:"min_validation_time_ns"`
	MaxValidationTimeNs uint64  `json:"max_validation_time_ns"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Phases         []PhaseStats       `json:"phases,omitempty"`
	MessageTypes   []MessageTypeStats `json:"message_types,omitempty"`
	RuleViolations map[string]uint64  `json:"rule_violations,omitempty"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		ParsesTotal:         m.ParsesTotal(),
		ParseFailures:       m.ParseFailures(),
		RuleFailures:        m.RuleFailures(),
		ValidationsTotal:    m.ValidationsTotal(),
		ValidationsValid:    m.ValidationsValid(),
		ValidationRate:      m.ValidationRate(),
		AvgValidationTimeNs: uint64(m.AverageValidationTime()), //nolint:gosec // non negative
		MinValidationTimeNs: uint64(m.MinValidationTime()),     //nolint:gosec // non negative
		MaxValidationTimeNs: m.validations.max.Load(),
		CacheHits:           m.CacheHits(),
		CacheMisses:         m.CacheMisses(),
		CacheHitRate:        m.CacheHitRate(),
		ErrorsTotal:         m.ErrorsTotal(),
		WarningsTotal:       m.WarningsTotal(),
		InfosTotal:          m.InfosTotal(),
		Phases:              m.AllPhaseStats(),
		MessageTypes:        m.MessageTypes(),
		RuleViolations:      m.RuleViolations(),
	}
}

// Export flattens the scalar metrics into a map for external collectors.
func (m *Metrics) Export() map[string]any {
	s := m.Snapshot()
	return map[string]any{
		"parses_total":           s.ParsesTotal,
		"parse_failures":         s.ParseFailures,
		"rule_failures":          s.RuleFailures,
		"validations_total":      s.ValidationsTotal,
		"validations_valid":      s.ValidationsValid,
		"validation_rate":        s.ValidationRate,
		"avg_validation_time_ns": s.AvgValidationTimeNs,
		"min_validation_time_ns": s.MinValidationTimeNs,
		"max_validation_time_ns": s.MaxValidationTimeNs,
		"cache_hits":             s.CacheHits,
		"cache_misses":           s.CacheMisses,
		"cache_hit_rate":         s.CacheHitRate,
		"errors_total":           s.ErrorsTotal,
		"warnings_total":         s.WarningsTotal,
		"infos_total":            s.InfosTotal,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.parses, &m.parseFailures, &m.ruleFailures, &m.validationsValid,
		&m.cacheHits, &m.cacheMisses, &m.errors, &m.warnings, &m.infos,
	} {
		c.Store(0)
	}
	m.validations.reset()
	for _, tbl := range []*sync.Map{&m.phases, &m.messageTypes, &m.rules} {
		tbl.Range(func(k, _ any) bool {
			tbl.Delete(k)
			return true
		})
	}
}
