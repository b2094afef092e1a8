// ABOUTME: Greeter plugin, a small example of hooks, callbacks and plugin-defined attributes.
// ABOUTME: Registers itself as GreeterPlugin in the default catalog.

package greeter

import (
	"fmt"
	"log"
	"strings"

	"github.com/2389/plughub/plugins/core"
)

func init() {
	core.Register("GreeterPlugin", func() core.Plugin { return New() })
}

// GreeterPlugin answers onStart and onMessage with a configurable greeting.
type GreeterPlugin struct {
	core.Base

	Greeting string
	Shout    bool
}

// New returns a greeter with its default metadata.
func New() *GreeterPlugin {
	return &GreeterPlugin{
		Base: core.Base{
			Title:       "Greeter",
			Description: "Greets whoever starts the hub or sends it a message",
			Author:      "plughub",
		},
		Greeting: "Hello",
	}
}

func (p *GreeterPlugin) Hooks() core.Hooks {
	return core.Hooks{
		"onStart":   p.onStart,
		"onMessage": p.onMessage,
	}
}

func (p *GreeterPlugin) onStart(args ...any) (any, error) {
	return p.format(fmt.Sprintf("%s from %s", p.Greeting, p.Attribute("title"))), nil
}

// onMessage expects the recipient as its first argument.
func (p *GreeterPlugin) onMessage(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("onMessage needs a recipient")
	}
	return p.format(fmt.Sprintf("%s, %v!", p.Greeting, args[0])), nil
}

func (p *GreeterPlugin) format(s string) string {
	if p.Shout {
		return strings.ToUpper(s)
	}
	return s
}

func (p *GreeterPlugin) OnEnable() error {
	log.Printf("Greeter %s enabled", p.ID())
	return nil
}

func (p *GreeterPlugin) OnDisable() error {
	log.Printf("Greeter %s disabled", p.ID())
	return nil
}

// Field exposes greeting and shout as attributes.
func (p *GreeterPlugin) Field(key string) (any, bool) {
	switch key {
	case "greeting":
		return p.Greeting, true
	case "shout":
		return p.Shout, true
	}
	return nil, false
}

func (p *GreeterPlugin) SetField(key string, value any) error {
	switch key {
	case "greeting":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("set %q: %w: want string, got %T", key, core.ErrInvalidAttribute, value)
		}
		p.Greeting = s
	case "shout":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("set %q: %w: want bool, got %T", key, core.ErrInvalidAttribute, value)
		}
		p.Shout = b
	default:
		return fmt.Errorf("set %q: %w", key, core.ErrAttributeNotFound)
	}
	return nil
}
