// Package provider chooses where a file's outline symbols come from.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/outline/internal/symbol"
)

// ErrProviderNotFound is returned when a requested provider doesn't exist.
var ErrProviderNotFound = errors.New("provider not found")

// ErrNoProvider is returned when no registered provider handles a file.
var ErrNoProvider = errors.New("no provider handles file")

// Auto is the provider name that picks by file type.
const Auto = "auto"

// Source is a named symbol provider.
type Source interface {
	symbol.Provider

	// Name returns the provider's identifier.
	Name() string

	// Handles reports whether the provider should be picked for path when
	// no provider is named.
	Handles(path string) bool
}

// Registry holds available providers in auto-selection order.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// Register adds s. Re-registering a name replaces the source but keeps its
// place in the auto order.
func (r *Registry) Register(s Source) {
	if _, ok := r.sources[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.sources[s.Name()] = s
}

// Get returns the provider registered as name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return s, nil
}

// List returns all registered provider names in auto-selection order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Resolve returns the named provider, or with "" or Auto the first provider
// in registration order that handles path.
func (r *Registry) Resolve(name, path string) (Source, error) {
	if name != "" && name != Auto {
		return r.Get(name)
	}
	for _, n := range r.order {
		if s := r.sources[n]; s.Handles(path) {
			log.Debug().Str("file", path).Str("provider", n).Msg("provider: selected")
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvider, path)
}

// Provider returns a symbol.Provider that resolves name for every path it is
// asked about.
func (r *Registry) Provider(name string) symbol.Provider {
	return symbol.ProviderFunc(func(ctx context.Context, path string) ([]symbol.Symbol, error) {
		s, err := r.Resolve(name, path)
		if err != nil {
			return nil, err
		}
		return s.FetchSymbols(ctx, path)
	})
}
