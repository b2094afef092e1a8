// ABOUTME: Shared fixtures for plugin core tests.
// ABOUTME: Provides test plugin types, catalogs and helpers that lay out plugin files on disk.

package core

import (
	"os"
	"path/filepath"
	"testing"
)

// testPlugin implements hooks, callbacks and one plugin-defined field
type testPlugin struct {
	Base
	hooks        Hooks
	enableCalls  int
	disableCalls int
	enableErr    error
	channel      string
	setOrder     []string
}

func (p *testPlugin) Hooks() Hooks { return p.hooks }

func (p *testPlugin) OnEnable() error {
	p.enableCalls++
	return p.enableErr
}

func (p *testPlugin) OnDisable() error {
	p.disableCalls++
	return nil
}

func (p *testPlugin) Field(key string) (any, bool) {
	switch key {
	case "channel":
		return p.channel, true
	case "order_a", "order_b", "order_c":
		return nil, true
	}
	return nil, false
}

func (p *testPlugin) SetField(key string, value any) error {
	p.setOrder = append(p.setOrder, key)
	if key == "channel" {
		s, ok := value.(string)
		if !ok {
			return ErrInvalidAttribute
		}
		p.channel = s
	}
	return nil
}

// bareTestPlugin has no hooks and no callbacks
type bareTestPlugin struct {
	Base
}

// writeFile creates path with content, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newBoundPlugin writes an empty manifest for id in dir and binds p to it.
func newBoundPlugin(t *testing.T, p Plugin, dir, id string, enabled bool) Plugin {
	t.Helper()
	path := filepath.Join(dir, id+DefaultExtension)
	if !enabled {
		path = filepath.Join(dir, id+DisabledMarker+DefaultExtension)
	}
	writeFile(t, path, "")
	return Bind(p, id, path)
}

// counterHook returns a hook that counts its calls and echoes its arguments.
func counterHook(calls *int) HookFunc {
	return func(args ...any) (any, error) {
		*calls++
		return args, nil
	}
}

// testCatalog registers factories for the identities used across tests.
func testCatalog() *Catalog {
	c := NewCatalog()
	c.Register("FooPlugin", func() Plugin { return &testPlugin{} })
	c.Register("BarPlugin", func() Plugin { return &testPlugin{} })
	c.Register("BazPlugin", func() Plugin { return &bareTestPlugin{} })
	return c
}
