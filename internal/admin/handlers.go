// ABOUTME: Admin HTTP surface for a plugin registry.
// ABOUTME: Serializes registry access and wires the JSON API and HTML pages onto a chi router.

package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/2389/plughub/internal/store"
	"github.com/2389/plughub/plugins/core"
	"github.com/go-chi/chi/v5"
)

// Handlers exposes a registry over HTTP. The registry is not safe for
// concurrent use, so every access goes through mu.
type Handlers struct {
	mu       sync.Mutex
	registry *core.Registry
	store    *store.Store
}

// NewHandlers creates admin handlers. s may be nil, in which case the
// history endpoints report that history is unavailable.
func NewHandlers(reg *core.Registry, s *store.Store) *Handlers {
	return &Handlers{registry: reg, store: s}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/plugins", h.listPlugins)
	r.Route("/plugins/{id}", func(r chi.Router) {
		r.Get("/", h.getPlugin)
		r.Post("/enable", h.enablePlugin)
		r.Post("/disable", h.disablePlugin)
		r.Post("/toggle", h.togglePlugin)
	})
	r.Post("/hooks/{hook}", h.executeHook)
	r.Get("/executions", h.listExecutions)
	r.Get("/executions/stats", h.executionStats)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.dashboard)
		r.Post("/plugins/{id}/toggle", h.dashboardToggle)
		r.Get("/executions", h.executionsPage)
		r.Get("/logs", h.logsPage)
	})
}

// Reload rediscovers every plugin from the registry root.
func (h *Handlers) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.registry.Reload(); err != nil {
		log.Printf("Plugin reload failed, keeping %d plugins: %v", len(h.registry.Plugins()), err)
		return err
	}
	log.Printf("Reloaded %d plugins from %s", len(h.registry.Plugins()), h.registry.Dir())
	return nil
}

// PluginView is the JSON and template representation of a plugin.
type PluginView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Version      string   `json:"version"`
	Author       string   `json:"author,omitempty"`
	Dependencies []string `json:"dependencies"`
	Location     string   `json:"location"`
	Enabled      bool     `json:"enabled"`
	Hooks        []string `json:"hooks"`
}

func viewOf(p core.Plugin) PluginView {
	deps, _ := p.Attribute("dependencies").([]string)
	if deps == nil {
		deps = []string{}
	}
	hooks := p.HookNames()
	if hooks == nil {
		hooks = []string{}
	}
	return PluginView{
		ID:           p.ID(),
		Name:         attrString(p, "name"),
		Title:        attrString(p, "title"),
		Description:  attrString(p, "description"),
		Version:      attrString(p, "version"),
		Author:       attrString(p, "author"),
		Dependencies: deps,
		Location:     p.Location(),
		Enabled:      p.IsEnabled(),
		Hooks:        hooks,
	}
}

func viewsOf(plugins []core.Plugin) []PluginView {
	views := make([]PluginView, 0, len(plugins))
	for _, p := range plugins {
		views = append(views, viewOf(p))
	}
	return views
}

func attrString(p core.Plugin, key string) string {
	s, _ := p.Attribute(key).(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
