// ABOUTME: Factory catalog mapping plugin identities to constructors.
// ABOUTME: Plugins register their factories in init() functions.

package core

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh, unbound plugin value.
type Factory func() Plugin

// Catalog maps plugin identities to factories
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory under id. It panics if id is already taken.
func (c *Catalog) Register(id string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[id]; exists {
		panic(fmt.Sprintf("plugin %q already registered", id))
	}
	c.factories[id] = f
}

// Lookup retrieves the factory registered under id.
func (c *Catalog) Lookup(id string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[id]
	return f, ok
}

// Names returns all registered identities in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog used by Register.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Register adds a factory to the default catalog.
func Register(id string, f Factory) {
	defaultCatalog.Register(id, f)
}

// Lookup retrieves a factory from the default catalog.
func Lookup(id string) (Factory, bool) {
	return defaultCatalog.Lookup(id)
}

// Names returns the identities registered in the default catalog.
func Names() []string {
	return defaultCatalog.Names()
}
