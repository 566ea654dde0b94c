// Package di provides a minimal service container with typed tokens.
// Modules register lazy factories at wiring time; instances are built on
// first resolution and memoized for the life of the process.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry provides read access to registered services.
type ServiceRegistry interface {
	Get(name string) any
}

// Container accepts service registrations by name. Factories receive the
// registry so they can resolve their own dependencies.
type Container interface {
	ServiceRegistry
	Register(name string, svc any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

// Token is a typed handle for a service registered in the container.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token with a unique service name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the service name the token resolves.
func (t Token[T]) Name() string { return t.name }

// RegisterToken registers a typed factory under the token's name.
func RegisterToken[T any](c Container, tok Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(tok.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token from the registry. A missing or mistyped
// registration is a wiring bug, surfaced as a panic at startup.
func GetToken[T any](sr ServiceRegistry, tok Token[T]) T {
	svc, ok := sr.Get(tok.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q missing or wrong type", tok.name))
	}
	return svc
}

type container struct {
	mu        sync.RWMutex
	instances map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		instances: make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(name string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[name] = svc
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// Get returns the instance registered under name, building it from its
// factory on first use. Factories may resolve other services recursively,
// so the factory runs without the container lock held.
func (c *container) Get(name string) any {
	c.mu.RLock()
	svc, ok := c.instances[name]
	c.mu.RUnlock()
	if ok {
		return svc
	}

	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	svc = factory(c)

	c.mu.Lock()
	if existing, ok := c.instances[name]; ok {
		svc = existing
	} else {
		c.instances[name] = svc
	}
	c.mu.Unlock()

	return svc
}
