// ABOUTME: Loader turns a plugin manifest on disk into a bound Plugin instance.
// ABOUTME: Identity comes from the manifest, else from the file name with the disabled marker stripped.

package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML document stored in a plugin file.
type Manifest struct {
	// Plugin is an explicit identity; empty means derive it from the file name.
	Plugin     string    `yaml:"plugin"`
	Attributes yaml.Node `yaml:"attributes"`
}

// Loader resolves plugin files against a factory catalog.
type Loader struct {
	catalog *Catalog
}

// NewLoader creates a loader backed by catalog, or the default catalog when nil.
func NewLoader(catalog *Catalog) *Loader {
	if catalog == nil {
		catalog = defaultCatalog
	}
	return &Loader{catalog: catalog}
}

// Load reads the manifest at path, constructs the plugin registered under
// the resolved identity and applies the manifest attributes followed by attrs.
func (l *Loader) Load(path string, attrs *Attributes) (Plugin, error) {
	manifest, err := readManifest(path)
	if err != nil {
		return nil, err
	}

	id := ResolveIdentity(path, manifest.Plugin)
	factory, ok := l.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("load %s: %w: %q", path, ErrUnknownPlugin, id)
	}

	p := Bind(factory(), id, path)

	initial, err := manifestAttributes(&manifest.Attributes)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := p.Fill(initial); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := p.Fill(attrs); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// ResolveIdentity returns declared when it is non-empty, otherwise the base
// name of path without its extension. For disabled files only the part before
// the first dot is kept so the identity survives enable/disable.
func ResolveIdentity(path, declared string) string {
	id := declared
	if id == "" {
		name := filepath.Base(path)
		id = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if IsDisabledPath(path) {
		if i := strings.Index(id, "."); i >= 0 {
			id = id[:i]
		}
	}
	return id
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// manifestAttributes converts the attributes mapping into an ordered bag,
// keeping the order the keys appear in the file.
func manifestAttributes(node *yaml.Node) (*Attributes, error) {
	attrs := NewAttributes()
	if node.Kind == 0 || node.Tag == "!!null" {
		return attrs, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("attributes must be a mapping, got %s", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("decode attribute %q: %w", node.Content[i].Value, err)
		}
		attrs.Set(node.Content[i].Value, value)
	}
	return attrs, nil
}
