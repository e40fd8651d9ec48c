package hl7v2

import (
	"runtime"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.ValidateDataTypes {
		t.Error("ValidateDataTypes should be true by default")
	}
	if !opts.ValidateTables {
		t.Error("ValidateTables should be true by default")
	}
	if !opts.ValidateLengths {
		t.Error("ValidateLengths should be true by default")
	}
	if !opts.ReportUnknownSegments {
		t.Error("ReportUnknownSegments should be true by default")
	}
	if opts.StrictMode {
		t.Error("StrictMode should be false by default")
	}
	if opts.SchemaVersion != "" {
		t.Errorf("SchemaVersion = %q; want empty", opts.SchemaVersion)
	}

	if opts.MaxErrors != 0 {
		t.Errorf("MaxErrors = %d; want 0", opts.MaxErrors)
	}
	if !opts.ParallelPhases {
		t.Error("ParallelPhases should be true by default")
	}
	if opts.WorkerCount != runtime.NumCPU() {
		t.Errorf("WorkerCount = %d; want %d", opts.WorkerCount, runtime.NumCPU())
	}
	if opts.RegexCacheSize != 256 {
		t.Errorf("RegexCacheSize = %d; want 256", opts.RegexCacheSize)
	}
	if opts.ParseCacheSize != 0 {
		t.Errorf("ParseCacheSize = %d; want 0", opts.ParseCacheSize)
	}
	if opts.SegmentTerminator != "\n" {
		t.Errorf("SegmentTerminator = %q; want %q", opts.SegmentTerminator, "\n")
	}
}

func TestOptions_Apply(t *testing.T) {
	opts := DefaultOptions()
	for _, opt := range []Option{
		WithDataTypes(false),
		WithTables(false),
		WithStrictMode(true),
		WithSchemaVersion(V251),
		WithMaxErrors(10),
		WithWorkerCount(3),
		WithPhaseTimeout(time.Second),
		WithRegexCache(64),
		WithParseCache(128),
		WithSegmentTerminator("\r"),
	} {
		opt(opts)
	}

	if opts.ValidateDataTypes || opts.ValidateTables {
		t.Error("data type and table checks should be disabled")
	}
	if !opts.StrictMode {
		t.Error("StrictMode should be enabled")
	}
	if opts.SchemaVersion != V251 {
		t.Errorf("SchemaVersion = %q; want %q", opts.SchemaVersion, V251)
	}
	if opts.MaxErrors != 10 {
		t.Errorf("MaxErrors = %d; want 10", opts.MaxErrors)
	}
	if opts.WorkerCount != 3 {
		t.Errorf("WorkerCount = %d; want 3", opts.WorkerCount)
	}
	if opts.PhaseTimeout != time.Second {
		t.Errorf("PhaseTimeout = %v; want 1s", opts.PhaseTimeout)
	}
	if opts.RegexCacheSize != 64 || opts.ParseCacheSize != 128 {
		t.Errorf("cache sizes = %d/%d; want 64/128", opts.RegexCacheSize, opts.ParseCacheSize)
	}
	if opts.SegmentTerminator != "\r" {
		t.Errorf("SegmentTerminator = %q; want %q", opts.SegmentTerminator, "\r")
	}
}

func TestOptions_IgnoreInvalid(t *testing.T) {
	opts := DefaultOptions()
	WithWorkerCount(0)(opts)
	WithRegexCache(-1)(opts)
	WithSegmentTerminator("")(opts)

	if opts.WorkerCount != runtime.NumCPU() {
		t.Errorf("WorkerCount = %d; want %d", opts.WorkerCount, runtime.NumCPU())
	}
	if opts.RegexCacheSize != 256 {
		t.Errorf("RegexCacheSize = %d; want 256", opts.RegexCacheSize)
	}
	if opts.SegmentTerminator != "\n" {
		t.Errorf("SegmentTerminator = %q; want %q", opts.SegmentTerminator, "\n")
	}
}

func TestPresets(t *testing.T) {
	fast := DefaultOptions()
	for _, opt := range FastOptions() {
		opt(fast)
	}
	if fast.ValidateDataTypes || fast.ValidateTables {
		t.Error("FastOptions should disable data type and table checks")
	}
	if fast.ParseCacheSize == 0 {
		t.Error("FastOptions should enable the parse cache")
	}

	strict := DefaultOptions()
	for _, opt := range StrictOptions() {
		opt(strict)
	}
	if !strict.StrictMode {
		t.Error("StrictOptions should enable strict mode")
	}

	debug := DefaultOptions()
	for _, opt := range DebugOptions() {
		opt(debug)
	}
	if debug.ParallelPhases || debug.EnablePooling {
		t.Error("DebugOptions should disable parallel phases and pooling")
	}
}
