// ABOUTME: Scaffolder writes starter manifests for plugins compiled into the binary.
// ABOUTME: Existing plugin files are never overwritten, whichever state they encode.

package seed

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/2389/plughub/plugins/core"
	"gopkg.in/yaml.v3"
)

// Scaffolder creates plugin files in a directory.
type Scaffolder struct {
	dir     string
	ext     string
	catalog *core.Catalog
}

// NewScaffolder creates a scaffolder for dir. A nil catalog means the
// default one.
func NewScaffolder(dir, ext string, catalog *core.Catalog) *Scaffolder {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if ext == "" {
		ext = core.DefaultExtension
	}
	return &Scaffolder{dir: dir, ext: ext, catalog: catalog}
}

type manifestAttributes struct {
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	Author      string `yaml:"author,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

type manifest struct {
	Plugin     string             `yaml:"plugin"`
	Attributes manifestAttributes `yaml:"attributes"`
}

// Scaffold writes a manifest for each id, or for every registered identity
// when ids is empty. New files are enabled only when enabled is set. It
// returns the paths that were written.
func (s *Scaffolder) Scaffold(ids []string, enabled bool) ([]string, error) {
	if len(ids) == 0 {
		ids = s.catalog.Names()
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}

	var written []string
	for _, id := range ids {
		factory, ok := s.catalog.Lookup(id)
		if !ok {
			return written, fmt.Errorf("scaffold %s: %w", id, core.ErrUnknownPlugin)
		}

		enabledPath := filepath.Join(s.dir, id+s.ext)
		disabledPath := core.DisabledPath(enabledPath)
		if fileExists(enabledPath) || fileExists(disabledPath) {
			log.Printf("Skipping %s, a plugin file already exists", id)
			continue
		}

		path := disabledPath
		if enabled {
			path = enabledPath
		}

		data, err := yaml.Marshal(manifestFor(id, core.Bind(factory(), id, "")))
		if err != nil {
			return written, fmt.Errorf("encode %s manifest: %w", id, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func manifestFor(id string, p core.Plugin) manifest {
	text := func(key string) string {
		s, _ := p.Attribute(key).(string)
		return s
	}
	return manifest{
		Plugin: id,
		Attributes: manifestAttributes{
			Title:       text("title"),
			Description: text("description"),
			Author:      text("author"),
			Version:     text("version"),
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
