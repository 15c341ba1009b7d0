// Package providers maps provider names to their adapters.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
)

// Factory builds the adapter for one provider. It runs at most once per
// registry; the result is cached.
type Factory func() (reservation.Adapter, error)

// ScopedFactory builds the adapter for one provider account, named by a
// credential reference. An empty ref is the provider's default account.
type ScopedFactory func(ref string) (reservation.Adapter, error)

type entry struct {
	build  ScopedFactory
	scoped bool
}

type adapterKey struct{ name, ref string }

// Registry is a thread-safe registry of provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]entry
	adapters  map[adapterKey]reservation.Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]entry{},
		adapters:  map[adapterKey]reservation.Adapter{},
	}
}

// Register adds a provider factory. Registering a name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("provider registration needs a name and a factory")
	}
	return r.add(name, entry{build: func(string) (reservation.Adapter, error) { return factory() }})
}

// RegisterScoped adds a provider whose adapters are built per credential
// reference, one cached adapter per reference.
func (r *Registry) RegisterScoped(name string, factory ScopedFactory) error {
	if factory == nil {
		return fmt.Errorf("provider registration needs a name and a factory")
	}
	return r.add(name, entry{build: factory, scoped: true})
}

// MustRegisterScoped is RegisterScoped that panics on error.
func (r *Registry) MustRegisterScoped(name string, factory ScopedFactory) {
	if err := r.RegisterScoped(name, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) add(name string, e entry) error {
	if name == "" {
		return fmt.Errorf("provider registration needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("provider %s is already registered", name)
	}
	r.factories[name] = e
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// RegisterAdapter registers an already constructed adapter under its name.
func (r *Registry) RegisterAdapter(a reservation.Adapter) error {
	return r.Register(a.Name(), func() (reservation.Adapter, error) { return a, nil })
}

// Resolve returns the adapter registered under name. There is no fallback:
// an unknown name is an UnknownProvider error listing the registered names.
func (r *Registry) Resolve(name string) (reservation.Adapter, error) {
	return r.ResolveFor(name, "")
}

// ResolveFor returns the adapter of name bound to the credential reference
// ref. Providers registered without scope ignore ref.
func (r *Registry) ResolveFor(name, ref string) (reservation.Adapter, error) {
	r.mu.RLock()
	e, ok := r.factories[name]
	key := adapterKey{name: name}
	if ok && e.scoped {
		key.ref = ref
	}
	a, cached := r.adapters[key]
	r.mu.RUnlock()
	if cached {
		return a, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		return nil, internaltypes.UnknownProvider(name, r.namesLocked())
	}
	if a, ok := r.adapters[key]; ok {
		return a, nil
	}
	a, err := e.build(key.ref)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	r.adapters[key] = a
	return a, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
