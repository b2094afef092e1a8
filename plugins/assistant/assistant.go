// ABOUTME: Assistant plugin that answers onMessage with an OpenAI chat completion.
// ABOUTME: Falls back to canned replies when no API key is configured or the request fails.

package assistant

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/2389/plughub/plugins/core"
	"github.com/sashabaranov/go-openai"
)

func init() {
	core.Register("AssistantPlugin", func() core.Plugin { return New() })
}

// Completer produces a reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// AssistantPlugin replies to messages, optionally through OpenAI.
type AssistantPlugin struct {
	core.Base

	Model   string
	Persona string

	completer Completer
	timeout   time.Duration
	templates []string
}

// Settings are the OpenAI credentials used by assistants built through the
// catalog. Empty fields fall back to OPENAI_API_KEY and OPENAI_MODEL.
type Settings struct {
	APIKey string
	Model  string
}

var (
	settingsMu sync.RWMutex
	settings   Settings
)

// Configure sets the Settings used by every later call to New, including
// the ones made when plugins are reloaded.
func Configure(s Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settings = s
}

func currentSettings() Settings {
	settingsMu.RLock()
	s := settings
	settingsMu.RUnlock()

	if s.APIKey == "" {
		s.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if s.Model == "" {
		s.Model = os.Getenv("OPENAI_MODEL")
	}
	return s
}

// New builds an assistant from the configured Settings. Without a key it
// only uses canned replies. A model attribute in the manifest still wins.
func New() *AssistantPlugin {
	s := currentSettings()

	var c Completer
	if s.APIKey != "" {
		c = &openAICompleter{client: openai.NewClient(s.APIKey)}
	}
	p := NewWithCompleter(c)
	if s.Model != "" {
		p.Model = s.Model
	}
	return p
}

// NewWithCompleter builds an assistant around c, which may be nil.
func NewWithCompleter(c Completer) *AssistantPlugin {
	return &AssistantPlugin{
		Base: core.Base{
			Title:       "Assistant",
			Description: "Answers messages with a short generated reply",
			Author:      "plughub",
		},
		Model:     openai.GPT4oMini,
		Persona:   "a concise, friendly operations assistant",
		completer: c,
		timeout:   30 * time.Second,
		templates: []string{
			"Thanks for your message! I'll get back to you shortly.",
			"Got it, I'll take a look at this.",
			"Sounds good, let's sync up soon.",
			"Received, thanks! I'll get this taken care of.",
		},
	}
}

func (p *AssistantPlugin) Hooks() core.Hooks {
	return core.Hooks{
		"onStart":   p.onStart,
		"onMessage": p.onMessage,
	}
}

func (p *AssistantPlugin) onStart(args ...any) (any, error) {
	if p.completer == nil {
		return "assistant ready (canned replies)", nil
	}
	return fmt.Sprintf("assistant ready (%s)", p.Model), nil
}

// onMessage takes the message text and an optional sender.
func (p *AssistantPlugin) onMessage(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("onMessage needs a message")
	}
	message := fmt.Sprint(args[0])
	sender := "someone"
	if len(args) > 1 {
		sender = fmt.Sprint(args[1])
	}

	if p.completer == nil {
		return p.randomTemplate(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	reply, err := p.completer.Complete(ctx, p.Model, p.prompt(sender, message))
	if err != nil {
		log.Printf("OpenAI generation failed, using template: %v", err)
		return p.randomTemplate(), nil
	}
	return reply, nil
}

func (p *AssistantPlugin) prompt(sender, message string) string {
	return fmt.Sprintf(`You are %s.
You received a message from %s:
%s

Reply in 1-3 sentences. Reply text only, no greeting or signature:`, p.Persona, sender, message)
}

func (p *AssistantPlugin) randomTemplate() string {
	return p.templates[rand.Intn(len(p.templates))]
}

func (p *AssistantPlugin) OnEnable() error {
	if p.completer == nil {
		log.Println("Assistant enabled without OPENAI_API_KEY, using canned replies")
	} else {
		log.Printf("Assistant enabled with model %s", p.Model)
	}
	return nil
}

// Field exposes model and persona as attributes.
func (p *AssistantPlugin) Field(key string) (any, bool) {
	switch key {
	case "model":
		return p.Model, true
	case "persona":
		return p.Persona, true
	}
	return nil, false
}

func (p *AssistantPlugin) SetField(key string, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("set %q: %w: want string, got %T", key, core.ErrInvalidAttribute, value)
	}
	switch key {
	case "model":
		p.Model = s
	case "persona":
		p.Persona = s
	default:
		return fmt.Errorf("set %q: %w", key, core.ErrAttributeNotFound)
	}
	return nil
}

type openAICompleter struct {
	client *openai.Client
}

func (c *openAICompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
