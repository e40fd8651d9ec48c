// Package pipeline provides the validation pipeline infrastructure.
package pipeline

import (
	"sync"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/message"
	"github.com/gofhir/hl7v2/rules"
	"github.com/gofhir/hl7v2/schema"
	"github.com/gofhir/hl7v2/walker"
)

// Context holds all state needed during validation of a single message.
// It is passed through all validation phases and provides shared access to
// the message, its index, the schema and the accumulated result.
//
// Context instances are pooled for efficiency. Use AcquireContext() and
// Release() to manage them properly.
type Context struct {
	// Message is the parsed message being validated
	Message *message.Message

	// Metadata is the header summary of Message
	Metadata message.Metadata

	// Index provides segment lookup by tag and occurrence
	Index *walker.Index

	// Schema is the definition set the message is checked against
	Schema *schema.Schema

	// RuleSet holds the custom rules, nil for schema-only validation
	RuleSet *rules.RuleSet

	// Result accumulates validation issues
	Result *hv.Result

	// Options holds validation options
	Options *hv.Options

	// mu protects values during parallel phase execution
	mu sync.RWMutex

	// values is scratch space shared between phases
	values map[string]any
}

// contextPool holds reusable Context instances.
var contextPool = sync.Pool{
	New: func() any {
		return NewContext()
	},
}

// AcquireContext gets a Context from the pool.
// Call Release() when done to return it to the pool.
func AcquireContext() *Context {
	ctx := contextPool.Get().(*Context)
	ctx.Reset()
	return ctx
}

// Release returns the Context to the pool.
// After calling Release, the Context should not be used.
func (c *Context) Release() {
	if c == nil {
		return
	}
	if len(c.values) <= 64 {
		contextPool.Put(c)
	}
}

// Reset clears the context for reuse.
func (c *Context) Reset() {
	c.Message = nil
	c.Metadata = message.Metadata{}
	c.Index = nil
	c.Schema = nil
	c.RuleSet = nil
	c.Result = nil
	c.Options = nil
	for k := range c.values {
		delete(c.values, k)
	}
}

// Bind attaches msg to the context and derives its index and metadata.
// Missing header fields leave the metadata partially filled; reporting them
// is the job of the validation phases.
func (c *Context) Bind(msg *message.Message) {
	c.Message = msg
	c.Index = walker.NewIndex(msg)
	c.Metadata, _ = message.ExtractMetadata(msg)
}

// Delimiters returns the delimiters of the bound message.
func (c *Context) Delimiters() message.Delimiters {
	if c.Message == nil {
		return message.DefaultDelimiters
	}
	return c.Message.Delimiters()
}

// SetValue stores a value shared between phases.
// Thread-safe for use during parallel phase execution.
func (c *Context) SetValue(key string, value any) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Value retrieves a value stored with SetValue.
// Thread-safe for use during parallel phase execution.
func (c *Context) Value(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	return v, ok
}

// AddIssue adds a validation issue to the result.
// Thread-safe for use during parallel phase execution.
func (c *Context) AddIssue(issue hv.Issue) {
	if c.Result != nil {
		c.Result.AddIssue(issue)
	}
}

// AddError is a convenience method to add an error issue.
func (c *Context) AddError(code hv.IssueType, diagnostics, segment string, field int) {
	if c.Result != nil {
		c.Result.AddError(code, diagnostics, segment, field)
	}
}

// AddWarning is a convenience method to add a warning issue.
func (c *Context) AddWarning(code hv.IssueType, diagnostics, segment string, field int) {
	if c.Result != nil {
		c.Result.AddWarning(code, diagnostics, segment, field)
	}
}

// ShouldStop returns true if validation should stop (max errors reached).
func (c *Context) ShouldStop() bool {
	if c.Options == nil || c.Options.MaxErrors <= 0 {
		return false
	}
	if c.Result == nil {
		return false
	}
	return c.Result.ErrorCount() >= c.Options.MaxErrors
}

// Clone creates a shallow copy of the context.
// The new context shares the message, schema and rules but has no result.
func (c *Context) Clone() *Context {
	clone := AcquireContext()
	clone.Message = c.Message
	clone.Metadata = c.Metadata
	clone.Index = c.Index
	clone.Schema = c.Schema
	clone.RuleSet = c.RuleSet
	clone.Options = c.Options
	return clone
}

// NewContext creates a new Context (non-pooled).
// Prefer AcquireContext() for better performance.
func NewContext() *Context {
	return &Context{
		values: make(map[string]any, 8),
	}
}

// ReleaseContext returns a Context to the pool.
// This is a convenience function equivalent to ctx.Release().
func ReleaseContext(ctx *Context) {
	if ctx != nil {
		ctx.Release()
	}
}
