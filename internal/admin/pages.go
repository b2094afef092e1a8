// ABOUTME: HTML admin pages for plugins, execution history and request logs.
// ABOUTME: The dashboard toggles plugins in place through htmx partials.

package admin

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/2389/plughub/internal/auth"
	"github.com/2389/plughub/internal/store"
	"github.com/2389/plughub/plugins/core"
	"github.com/go-chi/chi/v5"
)

// dashboardRow is one plugin line on the dashboard
type dashboardRow struct {
	PluginView
	Requests int
}

// dashboardRows must be called with mu held.
func (h *Handlers) dashboardRows() []dashboardRow {
	yesterday := time.Now().Add(-24 * time.Hour)

	var rows []dashboardRow
	for _, p := range h.registry.Plugins() {
		row := dashboardRow{PluginView: viewOf(p)}
		if h.store != nil {
			count, err := h.store.GetPluginRequestCount(p.ID(), yesterday)
			if err != nil {
				log.Printf("Error counting requests for %s: %v", p.ID(), err)
			}
			row.Requests = count
		}
		rows = append(rows, row)
	}
	return rows
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	rows := h.dashboardRows()
	enabled := len(h.registry.EnabledPlugins())
	dir := h.registry.Dir()
	h.mu.Unlock()

	var stats *store.ExecutionStats
	if h.store != nil {
		var err error
		if stats, err = h.store.GetExecutionStats(); err != nil {
			log.Printf("Error loading execution stats: %v", err)
		}
	}

	w.Header().Set("Content-Type", "text/html")
	h.render(w, "dashboard", map[string]any{
		"Dir":      dir,
		"Plugins":  rows,
		"Enabled":  enabled,
		"Disabled": len(rows) - enabled,
		"Catalog":  core.Names(),
		"Stats":    stats,
	})
}

func (h *Handlers) dashboardToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	_, err := h.applyState(id, auth.ActorFromContext(r.Context()), h.toggleTarget)
	rows := h.dashboardRows()
	h.mu.Unlock()

	if err != nil {
		log.Printf("Dashboard toggle of %s failed: %v", id, err)
		w.Header().Set("HX-Trigger", fmt.Sprintf(`{"showError": %q}`, err.Error()))
	}

	w.Header().Set("Content-Type", "text/html")
	if err := renderPartial(w, "plugin-rows", rows); err != nil {
		log.Printf("Error rendering plugin rows: %v", err)
	}
}

func (h *Handlers) executionsPage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Execution history is disabled", http.StatusServiceUnavailable)
		return
	}

	q, _, err := parseExecutionQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}

	executions, err := h.store.GetExecutions(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	h.render(w, "executions", map[string]any{
		"Executions": executions,
		"Hook":       q.Hook,
		"Plugin":     q.PluginID,
		"FailedOnly": q.FailedOnly,
	})
}

func (h *Handlers) logsPage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Request log is disabled", http.StatusServiceUnavailable)
		return
	}

	pluginID := r.URL.Query().Get("plugin")
	method := r.URL.Query().Get("method")
	statusCode := 0
	if sc := r.URL.Query().Get("status"); sc != "" {
		fmt.Sscanf(sc, "%d", &statusCode)
	}

	logs, err := h.store.GetRequestLogs(&store.RequestLogQuery{
		Limit:      100,
		PluginID:   pluginID,
		Method:     method,
		PathPrefix: r.URL.Query().Get("path"),
		StatusCode: statusCode,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, l := range logs {
		l.RequestBody = prettyJSON(l.RequestBody)
		l.ResponseBody = prettyJSON(l.ResponseBody)
	}

	w.Header().Set("Content-Type", "text/html")
	h.render(w, "logs", map[string]any{
		"Logs":           logs,
		"SelectedPlugin": pluginID,
	})
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	if err := renderPage(w, page, data); err != nil {
		log.Printf("Error rendering %s page: %v", page, err)
	}
}

// prettyJSON formats JSON with indentation, or returns original string if not valid JSON
func prettyJSON(s string) string {
	if s == "" {
		return s
	}
	var obj any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return s
	}
	formatted, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return s
	}
	return string(formatted)
}
