// ABOUTME: JSON API handlers for plugin state, hook dispatch and execution history.
// ABOUTME: Plugin errors are reported through the shared error envelope.

package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/2389/plughub/internal/auth"
	apperrors "github.com/2389/plughub/internal/errors"
	"github.com/2389/plughub/internal/store"
	"github.com/2389/plughub/plugins/core"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	var plugins []core.Plugin
	switch r.URL.Query().Get("state") {
	case "enabled":
		plugins = h.registry.EnabledPlugins()
	case "disabled":
		plugins = h.registry.DisabledPlugins()
	case "":
		plugins = h.registry.Plugins()
	default:
		h.mu.Unlock()
		apperrors.WriteErrorWithField(w, http.StatusBadRequest, apperrors.ErrInvalidRequest, "state must be enabled or disabled", "state")
		return
	}
	views := viewsOf(plugins)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) getPlugin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	matches := h.registry.Find(id)
	views := viewsOf(matches)
	h.mu.Unlock()

	if len(matches) == 0 {
		apperrors.WritePluginError(w, fmt.Sprintf("No plugin named %s", id), core.ErrPluginNotFound)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) enablePlugin(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, "enable", func([]core.Plugin) func(core.Plugin) error {
		return h.registry.Enable
	})
}

func (h *Handlers) disablePlugin(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, "disable", func([]core.Plugin) func(core.Plugin) error {
		return h.registry.Disable
	})
}

// togglePlugin moves every plugin loaded under the id to the state opposite
// of the first one, so duplicates sharing a file do not flip it back.
func (h *Handlers) togglePlugin(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, "toggle", h.toggleTarget)
}

func (h *Handlers) toggleTarget(matches []core.Plugin) func(core.Plugin) error {
	if h.registry.IsEnabled(matches[0]) {
		return h.registry.Disable
	}
	return h.registry.Enable
}

func (h *Handlers) changeState(w http.ResponseWriter, r *http.Request, action string, pick func([]core.Plugin) func(core.Plugin) error) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	matches, err := h.applyState(id, auth.ActorFromContext(r.Context()), pick)
	if err != nil {
		apperrors.WritePluginError(w, fmt.Sprintf("Failed to %s plugin %s", action, id), err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(matches))
}

// applyState must be called with mu held.
func (h *Handlers) applyState(id, actor string, pick func([]core.Plugin) func(core.Plugin) error) ([]core.Plugin, error) {
	matches := h.registry.Find(id)
	if len(matches) == 0 {
		return nil, core.ErrPluginNotFound
	}
	apply := pick(matches)
	for _, p := range matches {
		if err := apply(p); err != nil {
			return matches, err
		}
		log.Printf("Plugin %s is now %s at %s (by %s)", p.ID(), stateName(p), p.Location(), actor)
	}
	return matches, nil
}

func stateName(p core.Plugin) string {
	if p.IsEnabled() {
		return "enabled"
	}
	return "disabled"
}

type hookRequest struct {
	Args []any `json:"args"`
}

// ResultView is one plugin's outcome in a dispatch response.
type ResultView struct {
	Plugin    string `json:"plugin"`
	Location  string `json:"location"`
	Enabled   bool   `json:"enabled"`
	Success   bool   `json:"success"`
	Return    any    `json:"return,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedUs int64  `json:"elapsed_us"`
}

// DispatchResponse is returned by POST /hooks/{hook}.
type DispatchResponse struct {
	Hook    string       `json:"hook"`
	Success bool         `json:"success"`
	Results []ResultView `json:"results"`
}

func (h *Handlers) executeHook(w http.ResponseWriter, r *http.Request) {
	hook := chi.URLParam(r, "hook")

	var req hookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apperrors.WriteErrorWithDetails(w, http.StatusBadRequest, apperrors.ErrInvalidBody, "Request body must be {\"args\": [...]}", err.Error())
		return
	}

	h.mu.Lock()
	results := h.registry.Dispatch(hook, req.Args...)
	resp := DispatchResponse{
		Hook:    hook,
		Success: core.Succeeded(results),
		Results: make([]ResultView, 0, len(results)),
	}
	for _, res := range results {
		view := ResultView{
			Plugin:    res.Plugin.ID(),
			Location:  res.Plugin.Location(),
			Enabled:   res.Enabled,
			Success:   res.Success,
			Return:    encodable(res.Return),
			ElapsedUs: res.Elapsed.Microseconds(),
		}
		if res.Err != nil {
			view.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, view)
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// encodable replaces values encoding/json cannot handle with their
// printed form.
func encodable(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func (h *Handlers) listExecutions(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	q, field, err := parseExecutionQuery(r)
	if err != nil {
		apperrors.WriteErrorWithField(w, http.StatusBadRequest, apperrors.ErrInvalidRequest, err.Error(), field)
		return
	}

	executions, err := h.store.GetExecutions(q)
	if err != nil {
		apperrors.WriteErrorWithDetails(w, http.StatusInternalServerError, apperrors.ErrDatabaseError, "Failed to query executions", err.Error())
		return
	}
	if executions == nil {
		executions = []*store.Execution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

func (h *Handlers) executionStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	stats, err := h.store.GetExecutionStats()
	if err != nil {
		apperrors.WriteErrorWithDetails(w, http.StatusInternalServerError, apperrors.ErrDatabaseError, "Failed to compute execution stats", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		apperrors.WriteError(w, http.StatusServiceUnavailable, apperrors.ErrServiceUnavailable, "Execution history is disabled")
		return false
	}
	return true
}

// parseExecutionQuery reads history filters from the query string. On
// failure it returns the offending parameter name.
func parseExecutionQuery(r *http.Request) (*store.ExecutionQuery, string, error) {
	values := r.URL.Query()
	q := &store.ExecutionQuery{
		Hook:     values.Get("hook"),
		PluginID: values.Get("plugin"),
		RunID:    values.Get("run"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, p.name, fmt.Errorf("%s must be a non-negative integer", p.name)
		}
		*p.dst = n
	}

	if raw := values.Get("failed"); raw != "" {
		failed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, "failed", fmt.Errorf("failed must be a boolean")
		}
		q.FailedOnly = failed
	}

	return q, "", nil
}
