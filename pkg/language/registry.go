package language

import (
	"fmt"
	"sort"

	"github.com/shaneholloman/prek/pkg/toolchain"
)

// Registry holds the closed set of language backends.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry wires every supported backend. Backends that can download
// toolchains share one Downloader.
func NewRegistry(d *toolchain.Downloader) *Registry {
	r := &Registry{backends: make(map[string]Backend)}

	python := newPythonBackend(d)
	r.register(python)
	r.backends["python3"] = python // alias, shares the backend instance

	r.register(newNodeBackend(d))
	r.register(newGoBackend(d))
	r.register(newRustBackend(d))
	r.register(newRubyBackend())
	r.register(newLuaBackend())

	r.register(newDockerBackend())
	r.register(newDockerImageBackend())

	r.register(newSystemBackend())
	r.register(newScriptBackend())
	r.register(newFailBackend())
	r.register(newPygrepBackend())

	return r
}

func (r *Registry) register(b Backend) {
	r.backends[b.Name()] = b
}

// NewRegistryForTesting builds a registry from an explicit backend map so
// tests can exercise managers without real toolchains.
func NewRegistryForTesting(backends map[string]Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for name, b := range backends {
		r.backends[name] = b
	}
	return r
}

// Get returns the backend for a language name.
func (r *Registry) Get(language string) (Backend, error) {
	b, ok := r.backends[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	return b, nil
}

// Supported returns every accepted language name, sorted.
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
