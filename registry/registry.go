// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry holds the server-side type table and the per-connection
// instance tables that dispatch remote calls.
//
// Types are registered once at startup and the Registry is then sealed.
// Each connection gets its own Session; instance ids and handle lifetimes
// never cross sessions.
package registry

import (
	"reflect"
	"slices"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/luxfi/objrpc/iface"
	"github.com/luxfi/objrpc/objerr"
)

// entry is one registered type.
type entry struct {
	name    string
	binding *iface.Binding
	factory func() any

	// Set for singletons. The shared object is guarded by lock across all
	// sessions unless it is reentrant.
	singleton any
	lock      *sync.RWMutex
}

func (e *entry) desc() *iface.Descriptor { return e.binding.Descriptor() }

// Registry maps type names to factories. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sealed  bool
	entries map[string]*entry
	order   []string
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a type whose instances are created by factory. T must
// implement desc (see iface.Bind).
func Register[T any](r *Registry, desc *iface.Descriptor, factory func() T) error {
	if factory == nil {
		return objerr.New(objerr.ConfigurationError, "%s: nil factory", desc.Name())
	}
	b, err := iface.Bind(desc, reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	return r.add(&entry{binding: b, factory: func() any { return factory() }})
}

// RegisterSingleton adds a type served by one shared object. Every session
// that constructs it gets its own handle to obj; releasing the handle never
// destroys obj.
func RegisterSingleton[T any](r *Registry, desc *iface.Descriptor, obj T) error {
	b, err := iface.Bind(desc, reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	return r.add(&entry{binding: b, singleton: obj, lock: new(sync.RWMutex)})
}

// MustRegister is Register for static setup where a ConfigurationError
// should abort initialization.
func MustRegister[T any](r *Registry, desc *iface.Descriptor, factory func() T) {
	if err := Register(r, desc, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) add(e *entry) error {
	e.name = norm.NFC.String(e.desc().Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return objerr.New(objerr.ConfigurationError, "registry is sealed, cannot register %q", e.name)
	}
	if _, dup := r.entries[e.name]; dup {
		return objerr.New(objerr.ConfigurationError, "type %q already registered", e.name)
	}
	r.entries[e.name] = e
	r.order = append(r.order, e.name)
	return nil
}

// Seal stops further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) lookup(name string) (*entry, error) {
	key := norm.NFC.String(name)
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, objerr.New(objerr.UnknownType, "unknown type %q", name)
	}
	return e, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*iface.Descriptor, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.desc(), nil
}

// Types returns the registered names in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// IsSingleton reports whether name is served by a shared object.
func (r *Registry) IsSingleton(name string) bool {
	e, err := r.lookup(name)
	return err == nil && e.factory == nil
}
