// Package model maps architecture tags to attention-source factories.
// Registration is explicit: construct a Registry, register factories,
// look them up. No package-level state, no init-time registration.
package model

import (
	"fmt"
	"sort"
	"strings"

	"circuitscope/domain/core"
	"circuitscope/ports"
)

// SourceFactory builds an attention source for one architecture
type SourceFactory func() (ports.AttentionSource, error)

// Registry maps architecture tags to their attention-source factories
type Registry struct {
	factories map[core.ModelKind]SourceFactory
}

// NewRegistry creates an empty architecture registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.ModelKind]SourceFactory),
	}
}

// Register adds a factory for an architecture tag. Registering the same
// tag twice is an error rather than a silent overwrite.
func (r *Registry) Register(kind core.ModelKind, factory SourceFactory) error {
	if strings.TrimSpace(string(kind)) == "" {
		return fmt.Errorf("%w: empty architecture tag", core.ErrUnsupportedModelKind)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for architecture %q", kind)
	}
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: architecture %q", core.ErrDuplicateRegistration, kind)
	}
	r.factories[kind] = factory
	return nil
}

// Lookup resolves an architecture tag to its factory
func (r *Registry) Lookup(kind core.ModelKind) (SourceFactory, error) {
	factory, exists := r.factories[kind]
	if !exists {
		return nil, core.NewUnsupportedModelError(string(kind))
	}
	return factory, nil
}

// Open resolves a tag and builds its attention source in one step
func (r *Registry) Open(kind core.ModelKind) (ports.AttentionSource, error) {
	factory, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	src, err := factory()
	if err != nil {
		return nil, fmt.Errorf("building attention source for %q: %w", kind, err)
	}
	return src, nil
}

// Tags returns all registered architecture tags, sorted
func (r *Registry) Tags() []core.ModelKind {
	tags := make([]core.ModelKind, 0, len(r.factories))
	for kind := range r.factories {
		tags = append(tags, kind)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
