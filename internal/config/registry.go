package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visagelabs/visage/pkg/recog"
)

// ErrEngineNotRegistered is returned by [Registry.CreateEngine] when no
// factory has been registered under the requested engine kind.
var ErrEngineNotRegistered = errors.New("config: engine not registered")

// EngineFactory constructs a recognition engine from the recognition section
// of the config.
type EngineFactory func(RecognitionConfig) (recog.Engine, error)

// Registry maps engine kinds to their constructor functions. main registers
// the built-in engines here and tests register doubles. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[EngineKind]EngineFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[EngineKind]EngineFactory),
	}
}

// RegisterEngine registers an engine factory under kind. Subsequent calls
// with the same kind overwrite the previous registration.
func (r *Registry) RegisterEngine(kind EngineKind, factory EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[kind] = factory
}

// CreateEngine instantiates the recognition engine selected by rc.Engine.
// Returns [ErrEngineNotRegistered] if no factory has been registered for
// that kind.
func (r *Registry) CreateEngine(rc RecognitionConfig) (recog.Engine, error) {
	kind := rc.Engine
	if kind == "" {
		kind = EngineScript
	}

	r.mu.RLock()
	factory, ok := r.engines[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotRegistered, kind)
	}
	return factory(rc)
}
