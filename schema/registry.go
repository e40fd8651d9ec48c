package schema

import (
	"fmt"
	"sync"

	hv "github.com/gofhir/hl7v2"
)

// Registry hands out compiled schemas by message version. Each schema is
// compiled once on first use and shared afterwards.
type Registry struct {
	mu      sync.Mutex
	load    func(version string) (*Schema, error)
	schemas map[string]*Schema
}

// NewRegistry creates a registry over the embedded schema documents.
func NewRegistry() *Registry {
	return NewRegistryWithLoader(LoadEmbedded)
}

// NewRegistryWithLoader creates a registry that compiles schemas with load.
func NewRegistryWithLoader(load func(version string) (*Schema, error)) *Registry {
	return &Registry{
		load:    load,
		schemas: make(map[string]*Schema),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry of embedded schemas.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// ForVersion returns the schema for a message version string such as
// "2.5.1". Unknown or empty versions use the default schema.
func (r *Registry) ForVersion(version string) (*Schema, error) {
	v, _ := hv.ParseVersion(version)
	return r.Get(string(v.SchemaVersion()))
}

// Get returns the schema compiled for a base version.
func (r *Registry) Get(base string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schemas[base]; ok {
		return s, nil
	}
	s, err := r.load(base)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", base, err)
	}
	r.schemas[base] = s
	return s, nil
}

// Put registers a schema under its version, replacing any cached one.
func (r *Registry) Put(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Version] = s
}
