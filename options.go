package hl7v2

import (
	"runtime"
	"time"
)

// Option configures the Engine.
type Option func(*Options)

// Options holds all configuration for the Engine.
type Options struct {
	// Schema checks
	ValidateDataTypes     bool
	ValidateTables        bool
	ValidateLengths       bool
	ReportUnknownSegments bool
	StrictMode            bool

	// SchemaVersion pins the schema used for every message.
	// Empty means "pick from MSH.12".
	SchemaVersion Version

	// Performance
	MaxErrors      int
	ParallelPhases bool
	WorkerCount    int
	PhaseTimeout   time.Duration
	EnablePooling  bool

	// Cache sizes
	RegexCacheSize int
	ParseCacheSize int

	// SegmentTerminator is written between segments by Generate.
	SegmentTerminator string
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		ValidateDataTypes:     true,
		ValidateTables:        true,
		ValidateLengths:       true,
		ReportUnknownSegments: true,
		StrictMode:            false,

		MaxErrors:      0, // unlimited
		ParallelPhases: true,
		WorkerCount:    runtime.NumCPU(),
		PhaseTimeout:   0, // no timeout
		EnablePooling:  true,

		RegexCacheSize: 256,
		ParseCacheSize: 0, // disabled

		SegmentTerminator: "\n",
	}
}

// --- Validation Options ---

// WithDataTypes enables data type shape checks.
func WithDataTypes(enable bool) Option {
	return func(o *Options) {
		o.ValidateDataTypes = enable
	}
}

// WithTables enables coded value checks against HL7 tables.
func WithTables(enable bool) Option {
	return func(o *Options) {
		o.ValidateTables = enable
	}
}

// WithLengths enables maximum length checks.
func WithLengths(enable bool) Option {
	return func(o *Options) {
		o.ValidateLengths = enable
	}
}

// WithUnknownSegments enables warnings for segments the schema does not define.
func WithUnknownSegments(enable bool) Option {
	return func(o *Options) {
		o.ReportUnknownSegments = enable
	}
}

// WithStrictMode treats warnings as errors.
func WithStrictMode(enable bool) Option {
	return func(o *Options) {
		o.StrictMode = enable
	}
}

// WithSchemaVersion validates every message against the given HL7 version,
// ignoring MSH.12.
func WithSchemaVersion(v Version) Option {
	return func(o *Options) {
		o.SchemaVersion = v
	}
}

// --- Performance Options ---

// WithMaxErrors sets the maximum number of errors before stopping validation.
// Use 0 for unlimited.
func WithMaxErrors(max int) Option {
	return func(o *Options) {
		o.MaxErrors = max
	}
}

// WithParallelPhases enables parallel execution of independent validation phases.
func WithParallelPhases(enable bool) Option {
	return func(o *Options) {
		o.ParallelPhases = enable
	}
}

// WithWorkerCount sets the number of workers for batch validation.
// Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithPhaseTimeout sets a timeout for each validation phase.
// Use 0 for no timeout.
func WithPhaseTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.PhaseTimeout = timeout
	}
}

// WithPooling enables or disables object pooling.
// Pooling reduces GC pressure but requires calling Release() on results.
func WithPooling(enable bool) Option {
	return func(o *Options) {
		o.EnablePooling = enable
	}
}

// --- Cache Options ---

// WithRegexCache sets the size of the compiled regular expression cache
// used by custom rules.
func WithRegexCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.RegexCacheSize = size
		}
	}
}

// WithParseCache enables caching of parse results keyed by raw message text.
// Use 0 to disable.
func WithParseCache(size int) Option {
	return func(o *Options) {
		if size >= 0 {
			o.ParseCacheSize = size
		}
	}
}

// --- Output Options ---

// WithSegmentTerminator sets the separator written between segments by
// Generate. HL7 on the wire uses "\r".
func WithSegmentTerminator(term string) Option {
	return func(o *Options) {
		if term != "" {
			o.SegmentTerminator = term
		}
	}
}

// --- Presets ---

// FastOptions returns options optimized for speed.
// Only required fields, cardinality and custom rules are checked.
func FastOptions() []Option {
	return []Option{
		WithDataTypes(false),
		WithTables(false),
		WithLengths(false),
		WithParallelPhases(true),
		WithParseCache(1024),
		WithPooling(true),
	}
}

// StrictOptions returns options for strict validation.
// Enables all checks and treats warnings as errors.
func StrictOptions() []Option {
	return []Option{
		WithDataTypes(true),
		WithTables(true),
		WithLengths(true),
		WithUnknownSegments(true),
		WithStrictMode(true),
	}
}

// DebugOptions returns options useful for debugging.
// Phases run sequentially and pooling is disabled.
func DebugOptions() []Option {
	return []Option{
		WithParallelPhases(false),
		WithPooling(false),
		WithMaxErrors(100),
	}
}
