// ABOUTME: Registry holds an ordered collection of loaded plugins.
// ABOUTME: It discovers plugin files, delegates state changes and dispatches hooks across enabled plugins.

package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Recorder receives the results of every dispatch.
type Recorder interface {
	Record(runID string, results []ExecutionResult) error
}

// Registry is an in-memory plugin collection. It is not safe for concurrent use.
type Registry struct {
	dir      string
	nested   bool
	ext      string
	suffix   string
	loader   *Loader
	recorder Recorder
	plugins  []Plugin
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader sets the loader used during discovery.
func WithLoader(l *Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// WithRecorder sets a recorder that receives dispatch results.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithExtension sets the plugin file extension, including the leading dot.
func WithExtension(ext string) Option {
	return func(r *Registry) { r.ext = ext }
}

// WithSuffix sets the base-name suffix that marks plugin files.
func WithSuffix(suffix string) Option {
	return func(r *Registry) { r.suffix = suffix }
}

// NewRegistry creates an empty registry rooted at dir.
func NewRegistry(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:    dir,
		nested: true,
		ext:    DefaultExtension,
		suffix: DefaultSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = NewLoader(nil)
	}
	return r
}

// Dir returns the discovery root.
func (r *Registry) Dir() string { return r.dir }

// Add appends p. Duplicates are allowed.
func (r *Registry) Add(p Plugin) *Registry {
	r.plugins = append(r.plugins, p)
	return r
}

// Remove drops every occurrence of p.
func (r *Registry) Remove(p Plugin) *Registry {
	kept := r.plugins[:0]
	for _, existing := range r.plugins {
		if existing != p {
			kept = append(kept, existing)
		}
	}
	for i := len(kept); i < len(r.plugins); i++ {
		r.plugins[i] = nil
	}
	r.plugins = kept
	return r
}

// Plugins returns the collection in registry order.
func (r *Registry) Plugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}

// EnabledPlugins returns the plugins whose enabled file currently exists.
func (r *Registry) EnabledPlugins() []Plugin {
	enabled, _ := r.partition()
	return enabled
}

// DisabledPlugins returns the plugins that are not enabled.
func (r *Registry) DisabledPlugins() []Plugin {
	_, disabled := r.partition()
	return disabled
}

func (r *Registry) partition() (enabled, disabled []Plugin) {
	for _, p := range r.plugins {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		} else {
			disabled = append(disabled, p)
		}
	}
	return enabled, disabled
}

// Find returns every plugin loaded under id.
func (r *Registry) Find(id string) []Plugin {
	var found []Plugin
	for _, p := range r.plugins {
		if p.ID() == id {
			found = append(found, p)
		}
	}
	return found
}

func (r *Registry) contains(p Plugin) bool {
	for _, existing := range r.plugins {
		if existing == p {
			return true
		}
	}
	return false
}

// Enable enables p, which must be held by the registry.
func (r *Registry) Enable(p Plugin) error {
	if !r.contains(p) {
		return ErrPluginNotFound
	}
	return p.Enable()
}

// Disable disables p, which must be held by the registry.
func (r *Registry) Disable(p Plugin) error {
	if !r.contains(p) {
		return ErrPluginNotFound
	}
	return p.Disable()
}

// Toggle toggles p, which must be held by the registry.
func (r *Registry) Toggle(p Plugin) error {
	if !r.contains(p) {
		return ErrPluginNotFound
	}
	return p.Toggle()
}

// IsEnabled reports p's state.
func (r *Registry) IsEnabled(p Plugin) bool { return p.IsEnabled() }

// IsDisabled reports p's state.
func (r *Registry) IsDisabled(p Plugin) bool { return p.IsDisabled() }

// Load loads a single plugin file without adding it to the registry.
func (r *Registry) Load(path string, attrs *Attributes) (Plugin, error) {
	return r.loader.Load(path, attrs)
}

// Autoload sets the discovery root when dir is non-empty and loads every
// plugin file below it. With nested false only the root itself is scanned.
// Nothing is added unless the whole walk succeeds.
func (r *Registry) Autoload(dir string, nested bool) error {
	if dir != "" {
		r.dir = dir
	}
	r.nested = nested

	var found []Plugin
	if err := r.autoloadDirectory(r.dir, &found); err != nil {
		return err
	}
	r.plugins = append(r.plugins, found...)
	return nil
}

// Reload discovers the plugins below the current root again and replaces
// the collection. On error the previous collection is kept.
func (r *Registry) Reload() error {
	var found []Plugin
	if err := r.autoloadDirectory(r.dir, &found); err != nil {
		return err
	}
	r.plugins = found
	return nil
}

func (r *Registry) autoloadDirectory(dir string, found *[]Plugin) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read plugin directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if !r.nested {
				continue
			}
			if err := r.autoloadDirectory(path, found); err != nil {
				return err
			}
			continue
		}

		if !r.isCandidate(name) {
			continue
		}
		p, err := r.loader.Load(path, nil)
		if err != nil {
			return err
		}
		*found = append(*found, p)
	}
	return nil
}

func (r *Registry) isCandidate(name string) bool {
	if !strings.HasSuffix(name, r.ext) {
		return false
	}
	return strings.HasSuffix(stripEncoding(name, r.ext), r.suffix)
}

// Dispatch executes hook on every enabled plugin in registry order and
// returns the individual results.
func (r *Registry) Dispatch(hook string, args ...any) []ExecutionResult {
	var results []ExecutionResult
	for _, p := range r.plugins {
		if !r.IsEnabled(p) {
			continue
		}
		results = append(results, p.Execute(hook, args...))
	}

	if r.recorder != nil {
		runID := uuid.NewString()
		if err := r.recorder.Record(runID, results); err != nil {
			log.Printf("Failed to record dispatch %s of %q: %v", runID, hook, err)
		}
	}
	return results
}

// Execute dispatches hook and reports whether every enabled plugin
// executed it successfully. A plugin without the hook counts as a failure.
func (r *Registry) Execute(hook string, args ...any) bool {
	return Succeeded(r.Dispatch(hook, args...))
}

// Succeeded reports whether every result in a dispatch succeeded. An empty
// dispatch counts as success.
func Succeeded(results []ExecutionResult) bool {
	success := true
	for _, result := range results {
		if !result.Success {
			success = false
		}
	}
	return success
}
