// Package registry maps source kinds to runner factories. A runner pairs a
// source with the transport tables of its type system, so callers that only
// know the kind at run time (the command line, a YAML file) can start a
// transfer without naming the source's type system.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/config"
	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// Runner runs one transfer. *pipeline.Dispatcher satisfies it for every
// source type system.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// SourceFactory creates a runner for a source kind from the transfer
// configuration and the dispatcher settings derived from it.
type SourceFactory func(cfg *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error)

// Registry manages source registration and runner creation
type Registry struct {
	sources map[string]SourceFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		logger:  logger.Get().With(zap.String("component", "source_registry")),
	}
}

// RegisterSource registers a source factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return nebulaerrors.New(nebulaerrors.ErrorTypeConfig, fmt.Sprintf("source %s already registered", name))
	}

	r.sources[name] = factory
	r.logger.Debug("source registered", zap.String("name", name))
	return nil
}

// CreateRunner creates a runner for cfg.Source.Kind
func (r *Registry) CreateRunner(cfg *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
	name := cfg.Source.Kind

	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, fmt.Sprintf("source %s not found", name)).
			WithDetail("available", r.ListSources())
	}

	runner, err := factory(cfg, run, log)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, fmt.Sprintf("failed to create source %s", name))
	}
	return runner, nil
}

// ListSources returns the registered source kinds in sorted order
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// HasSource checks if a source kind is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// Clear removes all registered sources (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = make(map[string]SourceFactory)
}

// Global registry functions

// RegisterSource registers a source in the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// CreateRunner creates a runner from the global registry
func CreateRunner(cfg *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
	return globalRegistry.CreateRunner(cfg, run, log)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// HasSource checks if a source is registered in the global registry
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
