package bootstrap

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotRegistered is returned when resolving an unknown name
	ErrNotRegistered = errors.New("not registered")

	// ErrAlreadyRegistered is returned when a name is taken
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrDependencyCycle is returned when factories resolve each other
	ErrDependencyCycle = errors.New("dependency cycle")
)

// binding is one name in the container: a factory, a built instance, or
// both once the factory has run.
type binding struct {
	factory  ServiceFactory
	instance interface{}
	built    bool
}

// DefaultContainer holds the instances services publish while running
// and lazily builds the ones registered as factories. Factories may
// resolve other names.
type DefaultContainer struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	building singleflight.Group
}

// NewContainer returns an empty container.
func NewContainer() Container {
	return &DefaultContainer{bindings: make(map[string]*binding)}
}

// Register binds name to a factory run on first Resolve.
func (c *DefaultContainer) Register(name string, factory ServiceFactory) error {
	if factory == nil {
		return fmt.Errorf("service %s: nil factory", name)
	}
	return c.bind(name, &binding{factory: factory})
}

// RegisterInstance binds name to an already built value.
func (c *DefaultContainer) RegisterInstance(name string, instance interface{}) error {
	if instance == nil {
		return fmt.Errorf("service %s: nil instance", name)
	}
	return c.bind(name, &binding{instance: instance, built: true})
}

func (c *DefaultContainer) bind(name string, b *binding) error {
	if name == "" {
		return errors.New("service name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.bindings[name]; ok {
		return fmt.Errorf("service %s: %w", name, ErrAlreadyRegistered)
	}
	c.bindings[name] = b
	return nil
}

// Remove unbinds name. A service calls it from Stop so that a later
// Start can publish a fresh instance.
func (c *DefaultContainer) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bindings, name)
}

// Resolve returns the instance bound to name, running its factory once.
func (c *DefaultContainer) Resolve(name string) (interface{}, error) {
	return c.resolve(name, nil)
}

func (c *DefaultContainer) resolve(name string, chain []string) (interface{}, error) {
	if slices.Contains(chain, name) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, strings.Join(chain, " -> "), name)
	}

	c.mu.RLock()
	b, ok := c.bindings[name]
	var instance interface{}
	built := ok && b.built
	if built {
		instance = b.instance
	}
	c.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("service %s: %w", name, ErrNotRegistered)
	case built:
		return instance, nil
	}

	// Concurrent first resolves share one factory call. The factory runs
	// without the lock held so it can resolve its own dependencies.
	instance, err, _ := c.building.Do(name, func() (interface{}, error) {
		c.mu.RLock()
		done, instance := b.built, b.instance
		c.mu.RUnlock()
		if done {
			return instance, nil
		}

		built, err := b.factory(&scope{c: c, chain: append(slices.Clone(chain), name)})
		if err != nil {
			return nil, fmt.Errorf("build service %s: %w", name, err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.bindings[name] != b {
			return nil, fmt.Errorf("service %s: removed while building", name)
		}
		if !b.built {
			b.instance, b.built = built, true
		}
		return b.instance, nil
	})
	return instance, err
}

// Has reports whether name is bound.
func (c *DefaultContainer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[name]
	return ok
}

// Names returns the bound names in order.
func (c *DefaultContainer) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.bindings))
	for name := range c.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scope is the Container a factory sees. It remembers which names are
// being built so a cycle fails instead of deadlocking.
type scope struct {
	c     *DefaultContainer
	chain []string
}

func (s *scope) Register(name string, factory ServiceFactory) error {
	return s.c.Register(name, factory)
}

func (s *scope) RegisterInstance(name string, instance interface{}) error {
	return s.c.RegisterInstance(name, instance)
}

func (s *scope) Remove(name string) { s.c.Remove(name) }

func (s *scope) Resolve(name string) (interface{}, error) { return s.c.resolve(name, s.chain) }

func (s *scope) Has(name string) bool { return s.c.Has(name) }

func (s *scope) Names() []string { return s.c.Names() }

// ResolveAs resolves name from c and asserts it to T.
func ResolveAs[T any](c Container, name string) (T, error) {
	var zero T
	instance, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service %s is a %T, not a %T", name, instance, zero)
	}
	return typed, nil
}
