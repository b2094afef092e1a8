// ABOUTME: End-to-end integration tests for the plughub server.
// ABOUTME: Drives the full router over HTTP against a real plugin directory and database.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/plughub/internal/admin"
	"github.com/2389/plughub/internal/config"
	"github.com/2389/plughub/internal/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, *app, env) {
	t.Helper()
	e := newEnv(t)
	e.write(t, "AssistantPlugin.disabled.yaml", "attributes:\n  persona: terse\n")

	cfg := config.DefaultConfig()
	cfg.Plugins.Dir = e.dir
	cfg.DBPath = e.db

	a, err := newApp(cfg, true)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	srv := httptest.NewServer(newServer(admin.NewHandlers(a.registry, a.store), a.store))
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv, a, e
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer user:harper")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return resp
}

func TestE2E_PluginLifecycle(t *testing.T) {
	srv, _, e := setupTestServer(t)

	// Only the greeter is enabled at start
	resp, err := srv.Client().Get(srv.URL + "/plugins?state=enabled")
	if err != nil {
		t.Fatalf("GET /plugins error = %v", err)
	}
	var enabled []admin.PluginView
	json.NewDecoder(resp.Body).Decode(&enabled)
	resp.Body.Close()
	if len(enabled) != 1 || enabled[0].ID != "GreeterPlugin" {
		t.Fatalf("enabled plugins = %+v, want only GreeterPlugin", enabled)
	}

	// Enable the assistant; without an API key it answers from templates
	resp = post(t, srv, "/plugins/AssistantPlugin/enable", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "AssistantPlugin.yaml")); err != nil {
		t.Errorf("AssistantPlugin.yaml missing after enable: %v", err)
	}

	resp = post(t, srv, "/hooks/onMessage", `{"args": ["harper"]}`)
	var dispatch admin.DispatchResponse
	json.NewDecoder(resp.Body).Decode(&dispatch)
	resp.Body.Close()

	if !dispatch.Success {
		t.Errorf("dispatch success = false, results = %+v", dispatch.Results)
	}
	if len(dispatch.Results) != 2 {
		t.Fatalf("dispatch results = %d, want 2", len(dispatch.Results))
	}
	// Discovery is in file-name order, so the assistant runs first
	if dispatch.Results[0].Plugin != "AssistantPlugin" || dispatch.Results[1].Plugin != "GreeterPlugin" {
		t.Errorf("dispatch order = %s, %s", dispatch.Results[0].Plugin, dispatch.Results[1].Plugin)
	}
	if dispatch.Results[1].Return != "Hi, harper!" {
		t.Errorf("greeter return = %v, want %q", dispatch.Results[1].Return, "Hi, harper!")
	}

	// onStop exists on neither plugin, so the aggregate fails
	resp = post(t, srv, "/hooks/onStop", "")
	json.NewDecoder(resp.Body).Decode(&dispatch)
	resp.Body.Close()
	if dispatch.Success {
		t.Error("dispatch of a missing hook reported success")
	}

	// History holds both dispatches
	resp, err = srv.Client().Get(srv.URL + "/executions/stats")
	if err != nil {
		t.Fatalf("GET /executions/stats error = %v", err)
	}
	var stats store.ExecutionStats
	json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if stats.TotalRuns != 2 || stats.TotalExecutions != 4 || stats.Failures != 2 {
		t.Errorf("stats = %+v, want 2 runs, 4 executions, 2 failures", stats)
	}
}

func TestE2E_RequestLogging(t *testing.T) {
	srv, a, _ := setupTestServer(t)

	resp := post(t, srv, "/plugins/GreeterPlugin/disable", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Request logs are written asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		logs, err := a.store.GetRequestLogs(&store.RequestLogQuery{PluginID: "GreeterPlugin"})
		if err != nil {
			t.Fatalf("GetRequestLogs() error = %v", err)
		}
		if len(logs) == 1 {
			if logs[0].Method != "POST" || logs[0].StatusCode != http.StatusOK {
				t.Errorf("log = %+v, want POST with status 200", logs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("request logs = %d after waiting, want 1", len(logs))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_AdminUI(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	for _, path := range []string{"/admin", "/admin/executions", "/admin/logs"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q, want text/html", path, ct)
		}
	}
}
