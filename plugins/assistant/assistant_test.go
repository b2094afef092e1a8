// ABOUTME: Tests for the assistant example plugin.
// ABOUTME: Uses a fake completer and an httptest OpenAI endpoint instead of the real API.

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/2389/plughub/plugins/core"
	"github.com/sashabaranov/go-openai"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastModel  string
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.lastModel = model
	f.lastPrompt = prompt
	return f.reply, f.err
}

func bind(p *AssistantPlugin) core.Plugin {
	return core.Bind(p, "AssistantPlugin", "")
}

func TestRegisteredInDefaultCatalog(t *testing.T) {
	if _, ok := core.Lookup("AssistantPlugin"); !ok {
		t.Fatal("AssistantPlugin is not registered")
	}
}

func TestNewWithoutAPIKeyUsesTemplates(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")

	a := New()
	p := bind(a)

	result := p.Execute("onMessage", "is the deploy done?")
	if !result.Success {
		t.Fatalf("Execute failed: %v", result.Err)
	}
	reply, _ := result.Return.(string)
	if !slices.Contains(a.templates, reply) {
		t.Errorf("reply %q is not a canned template", reply)
	}
	if got := p.Execute("onStart").Return; got != "assistant ready (canned replies)" {
		t.Errorf("onStart = %v", got)
	}
}

func TestNewReadsModelFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-test")

	a := New()
	if a.Model != "gpt-test" {
		t.Errorf("Model = %q, want gpt-test", a.Model)
	}
	if a.completer == nil {
		t.Error("completer not configured with an API key")
	}
}

func TestConfigureOverridesEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "gpt-env")
	Configure(Settings{APIKey: "sk-file", Model: "gpt-file"})
	t.Cleanup(func() { Configure(Settings{}) })

	a := New()
	if a.completer == nil {
		t.Error("completer = nil with a configured API key")
	}
	if a.Model != "gpt-file" {
		t.Errorf("Model = %q, want gpt-file", a.Model)
	}
}

func TestConfigureEmptyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "gpt-env")
	Configure(Settings{})

	a := New()
	if a.completer != nil {
		t.Error("completer set without any API key")
	}
	if a.Model != "gpt-env" {
		t.Errorf("Model = %q, want gpt-env", a.Model)
	}
}

func TestManifestModelBeatsConfigure(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	Configure(Settings{Model: "gpt-file"})
	t.Cleanup(func() { Configure(Settings{}) })

	dir := t.TempDir()
	path := filepath.Join(dir, "AssistantPlugin.yaml")
	if err := os.WriteFile(path, []byte("attributes:\n  model: gpt-manifest\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p, err := core.NewLoader(nil).Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := p.Attribute("model"); got != "gpt-manifest" {
		t.Errorf("model = %v, want gpt-manifest", got)
	}
}

func TestCompleterReply(t *testing.T) {
	fc := &fakeCompleter{reply: "Deploy finished at noon."}
	a := NewWithCompleter(fc)
	p := bind(a)
	if err := p.SetAttribute("model", "gpt-custom"); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}

	result := p.Execute("onMessage", "is the deploy done?", "harper")
	if result.Return != "Deploy finished at noon." {
		t.Errorf("Return = %v", result.Return)
	}
	if fc.lastModel != "gpt-custom" {
		t.Errorf("model = %q, want gpt-custom", fc.lastModel)
	}
	if !strings.Contains(fc.lastPrompt, "harper") || !strings.Contains(fc.lastPrompt, "is the deploy done?") {
		t.Errorf("prompt missing sender or message: %q", fc.lastPrompt)
	}
}

func TestCompleterFailureFallsBack(t *testing.T) {
	a := NewWithCompleter(&fakeCompleter{err: errors.New("rate limited")})

	result := bind(a).Execute("onMessage", "hello")
	if !result.Success {
		t.Fatalf("Execute failed: %v", result.Err)
	}
	if !slices.Contains(a.templates, result.Return.(string)) {
		t.Errorf("reply %v is not a canned template", result.Return)
	}
}

func TestMessageRequired(t *testing.T) {
	result := bind(NewWithCompleter(nil)).Execute("onMessage")
	if result.Success {
		t.Error("Success = true without a message")
	}
}

func TestFieldTypes(t *testing.T) {
	p := bind(NewWithCompleter(nil))

	if err := p.SetAttribute("persona", "a pirate"); err != nil {
		t.Fatalf("SetAttribute(persona) error = %v", err)
	}
	if got := p.Attribute("persona"); got != "a pirate" {
		t.Errorf("persona = %v", got)
	}
	if err := p.SetAttribute("model", 4); !errors.Is(err, core.ErrInvalidAttribute) {
		t.Errorf("SetAttribute(model, 4) error = %v, want ErrInvalidAttribute", err)
	}
}

func TestOpenAICompleter(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "On it."}},
			},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	c := &openAICompleter{client: openai.NewClientWithConfig(cfg)}

	reply, err := c.Complete(context.Background(), "gpt-test", "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "On it." {
		t.Errorf("reply = %q, want %q", reply, "On it.")
	}
	if gotModel != "gpt-test" {
		t.Errorf("model = %q, want gpt-test", gotModel)
	}
}
