package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	hv "github.com/gofhir/hl7v2"
)

// Pipeline orchestrates the execution of validation phases.
// It supports both sequential and parallel execution of phases,
// with configurable timeouts and early termination on max errors.
//
// Issues are merged in group order and, inside a group, in registration
// order, so the result does not depend on goroutine scheduling.
type Pipeline struct {
	// registry holds all registered phases
	registry *PhaseRegistry

	// groups holds phases organized by execution group
	groups []*PhaseGroup

	// metrics tracks execution metrics
	metrics *hv.Metrics

	// options holds pipeline configuration
	options *PipelineOptions

	// mu protects concurrent access
	mu sync.RWMutex
}

// PipelineOptions configures pipeline behavior.
type PipelineOptions struct {
	// ParallelExecution enables running independent phases in parallel
	ParallelExecution bool

	// PhaseTimeout is the maximum time for a single phase
	PhaseTimeout time.Duration

	// MaxErrors stops validation after this many errors (0 = unlimited)
	MaxErrors int

	// CollectMetrics enables performance metric collection
	CollectMetrics bool

	// FailFast stops at the first error
	FailFast bool

	// StrictMode promotes warnings to errors once all phases have run
	StrictMode bool
}

// DefaultPipelineOptions returns sensible defaults.
func DefaultPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		ParallelExecution: true,
		PhaseTimeout:      0, // no timeout
		MaxErrors:         0, // unlimited
		CollectMetrics:    true,
		FailFast:          false,
	}
}

// OptionsFrom derives pipeline options from engine options.
func OptionsFrom(o *hv.Options) *PipelineOptions {
	if o == nil {
		return DefaultPipelineOptions()
	}
	return &PipelineOptions{
		ParallelExecution: o.ParallelPhases,
		PhaseTimeout:      o.PhaseTimeout,
		MaxErrors:         o.MaxErrors,
		CollectMetrics:    true,
		StrictMode:        o.StrictMode,
	}
}

// NewPipeline creates a new validation pipeline.
func NewPipeline(opts *PipelineOptions) *Pipeline {
	if opts == nil {
		opts = DefaultPipelineOptions()
	}

	return &Pipeline{
		registry: NewPhaseRegistry(),
		groups:   make([]*PhaseGroup, 0, 4),
		metrics:  hv.NewMetrics(),
		options:  opts,
	}
}

// Register adds a phase to the pipeline.
func (p *Pipeline) Register(id PhaseID, phase Phase, opts ...PhaseOption) {
	config := &PhaseConfig{
		Phase:    phase,
		Priority: PriorityNormal,
		Parallel: true,
		Required: false,
		Enabled:  true,
	}

	for _, opt := range opts {
		opt(config)
	}

	p.RegisterConfig(id, config)
}

// RegisterConfig adds a pre-configured phase to the pipeline.
func (p *Pipeline) RegisterConfig(id PhaseID, config *PhaseConfig) {
	if config == nil {
		return
	}

	p.mu.Lock()
	p.registry.Register(id, config)
	p.mu.Unlock()

	p.rebuildGroups()
}

// PhaseOption configures a phase registration.
type PhaseOption func(*PhaseConfig)

// WithPriority sets the phase priority.
func WithPriority(priority PhasePriority) PhaseOption {
	return func(c *PhaseConfig) {
		c.Priority = priority
	}
}

// WithParallel sets whether the phase can run in parallel.
func WithParallel(parallel bool) PhaseOption {
	return func(c *PhaseConfig) {
		c.Parallel = parallel
	}
}

// WithRequired marks the phase as required.
func WithRequired(required bool) PhaseOption {
	return func(c *PhaseConfig) {
		c.Required = required
	}
}

// WithStandardPriority places the phase in its StandardGroups group.
func WithStandardPriority(id PhaseID) PhaseOption {
	return func(c *PhaseConfig) {
		c.Priority, c.Parallel = StandardPriority(id)
	}
}

// Enable enables a phase by ID.
func (p *Pipeline) Enable(id PhaseID) {
	p.mu.Lock()
	p.registry.Enable(id)
	p.mu.Unlock()
	p.rebuildGroups()
}

// Disable disables a phase by ID.
func (p *Pipeline) Disable(id PhaseID) {
	p.mu.Lock()
	p.registry.Disable(id)
	p.mu.Unlock()
	p.rebuildGroups()
}

// rebuildGroups organizes phases into execution groups.
func (p *Pipeline) rebuildGroups() {
	p.mu.Lock()
	defer p.mu.Unlock()

	enabled := p.registry.GetEnabled()
	if len(enabled) == 0 {
		p.groups = nil
		return
	}

	// Stable so that registration order survives inside a priority.
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	p.groups = make([]*PhaseGroup, 0, 4)
	for _, cfg := range enabled {
		n := len(p.groups)
		if n == 0 || p.groups[n-1].Priority != cfg.Priority {
			p.groups = append(p.groups, &PhaseGroup{
				Priority: cfg.Priority,
				Parallel: p.options.ParallelExecution,
			})
			n++
		}
		g := p.groups[n-1]
		g.Phases = append(g.Phases, cfg)
		if !cfg.Parallel {
			g.Parallel = false
		}
	}
}

// Plan returns the current execution plan.
func (p *Pipeline) Plan() *ExecutionPlan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewExecutionPlan(p.groups)
}

// Execute runs the validation pipeline.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) *hv.Result {
	start := time.Now()

	// Initialize result if not set
	if pctx.Result == nil {
		pctx.Result = hv.AcquireResult()
	}

	p.mu.RLock()
	groups := p.groups
	p.mu.RUnlock()

	for _, group := range groups {
		select {
		case <-ctx.Done():
			pctx.Result.AddIssue(hv.Warning(hv.IssueTypeTimeout).
				Diagnostics("validation cancelled: " + ctx.Err().Error()).
				Build())
			return p.finish(pctx, start)
		default:
		}

		if p.stop(pctx) {
			break
		}

		p.executeGroup(ctx, pctx, group)
	}

	return p.finish(pctx, start)
}

func (p *Pipeline) finish(pctx *Context, start time.Time) *hv.Result {
	if p.options.StrictMode {
		pctx.Result.PromoteWarnings()
	}
	if p.options.CollectMetrics && p.metrics != nil {
		p.metrics.RecordValidation(time.Since(start), pctx.Result.Valid)
		p.metrics.RecordMessage(pctx.Metadata.MessageType.String(), pctx.Result)
	}
	return pctx.Result
}

// stop reports whether MaxErrors or FailFast end the run.
func (p *Pipeline) stop(pctx *Context) bool {
	errs := pctx.Result.ErrorCount()
	if p.options.MaxErrors > 0 && errs >= p.options.MaxErrors {
		return true
	}
	return p.options.FailFast && errs > 0
}

// executeGroup executes a single phase group.
func (p *Pipeline) executeGroup(ctx context.Context, pctx *Context, group *PhaseGroup) {
	if group.Parallel && len(group.Phases) > 1 {
		p.executeParallel(ctx, pctx, group)
	} else {
		p.executeSequential(ctx, pctx, group)
	}
}

// executeSequential runs phases one at a time.
func (p *Pipeline) executeSequential(ctx context.Context, pctx *Context, group *PhaseGroup) {
	for _, cfg := range group.Phases {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.stop(pctx) {
			return
		}

		pctx.Result.AddIssues(p.runPhase(ctx, pctx, cfg))
	}
}

// executeParallel runs phases concurrently and merges their issues in
// registration order.
func (p *Pipeline) executeParallel(ctx context.Context, pctx *Context, group *PhaseGroup) {
	var wg sync.WaitGroup
	results := make([][]hv.Issue, len(group.Phases))

	for i, cfg := range group.Phases {
		wg.Add(1)
		go func(i int, cfg *PhaseConfig) {
			defer wg.Done()
			results[i] = p.runPhase(ctx, pctx, cfg)
		}(i, cfg)
	}
	wg.Wait()

	for _, issues := range results {
		pctx.Result.AddIssues(issues)
	}
}

// runPhase runs a single phase with timing and the configured timeout.
func (p *Pipeline) runPhase(ctx context.Context, pctx *Context, cfg *PhaseConfig) []hv.Issue {
	phaseCtx := ctx
	if p.options.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, p.options.PhaseTimeout)
		defer cancel()
	}

	start := time.Now()
	issues := cfg.Phase.Validate(phaseCtx, pctx)
	duration := time.Since(start)

	if p.options.CollectMetrics && p.metrics != nil {
		p.metrics.RecordPhase(cfg.Phase.Name(), duration, len(issues))
	}
	return issues
}

// Metrics returns the pipeline metrics.
func (p *Pipeline) Metrics() *hv.Metrics {
	return p.metrics
}

// SetMetrics sets the metrics collector.
func (p *Pipeline) SetMetrics(m *hv.Metrics) {
	p.metrics = m
}

// Registry returns the phase registry.
func (p *Pipeline) Registry() *PhaseRegistry {
	return p.registry
}

// PhaseCount returns the number of enabled phases.
func (p *Pipeline) PhaseCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registry.GetEnabled())
}

// GroupCount returns the number of phase groups.
func (p *Pipeline) GroupCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.groups)
}
