// ABOUTME: Core plugin contract for the plughub plugin system.
// ABOUTME: Base carries metadata, on-disk state and hook dispatch shared by every plugin.

package core

import (
	"fmt"
	"os"
	"slices"
	"time"
)

// DefaultVersion is assigned to plugins that do not declare a version.
const DefaultVersion = "v1.0"

// Plugin is implemented by every type that embeds Base.
type Plugin interface {
	// Identity and metadata
	ID() string
	Location() string
	Attribute(key string) any
	SetAttribute(key string, value any) error
	Fill(attrs *Attributes) error

	// State
	IsEnabled() bool
	IsDisabled() bool
	Enable() error
	Disable() error
	Toggle() error

	// Dispatch
	HasHook(name string) bool
	HookNames() []string
	Execute(name string, args ...any) ExecutionResult

	base() *Base
}

// HookFunc is a named, optional plugin entry point.
type HookFunc func(args ...any) (any, error)

// Hooks maps hook names to their implementation.
type Hooks map[string]HookFunc

// HookProvider is implemented by plugins that expose hooks to dispatch.
type HookProvider interface {
	Hooks() Hooks
}

// EnableCallback is called before a plugin is enabled.
// Returning an error aborts the transition.
type EnableCallback interface {
	OnEnable() error
}

// DisableCallback is called before a plugin is disabled.
// Returning an error aborts the transition.
type DisableCallback interface {
	OnDisable() error
}

// ExecutionResult describes one hook invocation on one plugin
type ExecutionResult struct {
	Enabled bool
	Success bool
	Plugin  Plugin
	Hook    string
	Args    []any
	Return  any
	Err     error
	Elapsed time.Duration
}

// Base holds the state shared by all plugins. Concrete plugins embed it and
// are attached to it with Bind.
type Base struct {
	Name         string
	Title        string
	Description  string
	Version      string
	Author       string
	Dependencies []string

	id       string
	location string
	self     Plugin
}

// Bind attaches p to its embedded Base, records its backing file and fills
// identity defaults. The loader calls it for every plugin it builds.
func Bind(p Plugin, id, location string) Plugin {
	b := p.base()
	b.self = p
	b.id = id
	b.location = location
	if b.Version == "" {
		b.Version = DefaultVersion
	}
	if b.Name == "" {
		b.Name = id
	}
	if b.Title == "" {
		b.Title = b.Name
	}
	return p
}

func (b *Base) base() *Base { return b }

func (b *Base) outer() Plugin {
	if b.self != nil {
		return b.self
	}
	return b
}

// ID returns the identity the plugin was loaded under.
func (b *Base) ID() string { return b.id }

// Location returns the current backing file.
func (b *Base) Location() string { return b.location }

// IsEnabled reports whether the enabled encoding of the backing file exists.
func (b *Base) IsEnabled() bool {
	if b.location == "" {
		return false
	}
	_, err := os.Stat(EnabledPath(b.location))
	return err == nil
}

// IsDisabled is the negation of IsEnabled.
func (b *Base) IsDisabled() bool {
	return !b.IsEnabled()
}

// Enable runs the enable callback and renames the backing file to its enabled
// encoding when the plugin is currently disabled.
func (b *Base) Enable() error {
	if b.location == "" {
		return ErrNoLocation
	}
	if cb, ok := b.outer().(EnableCallback); ok {
		if err := cb.OnEnable(); err != nil {
			return fmt.Errorf("enable %s: %w", b.id, err)
		}
	}

	target := EnabledPath(b.location)
	if b.IsDisabled() {
		if err := os.Rename(DisabledPath(b.location), target); err != nil {
			return fmt.Errorf("enable %s: %w", b.id, err)
		}
	}
	b.location = target
	return nil
}

// Disable runs the disable callback and renames the backing file to its
// disabled encoding when the plugin is currently enabled.
func (b *Base) Disable() error {
	if b.location == "" {
		return ErrNoLocation
	}
	if cb, ok := b.outer().(DisableCallback); ok {
		if err := cb.OnDisable(); err != nil {
			return fmt.Errorf("disable %s: %w", b.id, err)
		}
	}

	target := DisabledPath(b.location)
	if b.IsEnabled() {
		if err := os.Rename(EnabledPath(b.location), target); err != nil {
			return fmt.Errorf("disable %s: %w", b.id, err)
		}
	}
	b.location = target
	return nil
}

// Toggle flips the enabled state.
func (b *Base) Toggle() error {
	if b.IsEnabled() {
		return b.Disable()
	}
	return b.Enable()
}

func (b *Base) hook(name string) HookFunc {
	hp, ok := b.outer().(HookProvider)
	if !ok {
		return nil
	}
	return hp.Hooks()[name]
}

// HasHook reports whether the plugin exposes a hook with the given name.
func (b *Base) HasHook(name string) bool {
	return b.hook(name) != nil
}

// HookNames lists the plugin's hooks in sorted order.
func (b *Base) HookNames() []string {
	hp, ok := b.outer().(HookProvider)
	if !ok {
		return nil
	}
	var names []string
	for name, fn := range hp.Hooks() {
		if fn != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Execute invokes the named hook and reports how it went. A missing hook
// yields an unsuccessful result rather than an error.
func (b *Base) Execute(name string, args ...any) (result ExecutionResult) {
	result = ExecutionResult{
		Enabled: b.IsEnabled(),
		Plugin:  b.outer(),
		Hook:    name,
		Args:    args,
	}

	fn := b.hook(name)
	if fn == nil {
		return result
	}

	start := time.Now()
	defer func() {
		result.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			result.Success = false
			result.Return = nil
			result.Err = fmt.Errorf("hook %s panicked: %v", name, r)
		}
	}()

	ret, err := fn(args...)
	result.Return = ret
	result.Err = err
	result.Success = err == nil
	return result
}
