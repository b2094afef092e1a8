// ABOUTME: Runtime configuration for plughub, layered from defaults, a YAML file and the environment.
// ABOUTME: Also resolves the default execution history database path.

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level plughub configuration.
type Config struct {
	Plugins PluginsConfig `yaml:"plugins"`
	Server  ServerConfig  `yaml:"server"`
	DBPath  string        `yaml:"db_path"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

// PluginsConfig controls plugin discovery.
type PluginsConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"` // including the leading dot
	Suffix    string `yaml:"suffix"`
	Nested    bool   `yaml:"nested"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port          string        `yaml:"port"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// OpenAIConfig is handed to the assistant plugin before discovery.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// DefaultConfig returns a config with sensible defaults. DBPath is left
// empty and filled by DefaultDBPath when nothing else sets it.
func DefaultConfig() *Config {
	return &Config{
		Plugins: PluginsConfig{
			Dir:       "./plugins.d",
			Extension: ".yaml",
			Suffix:    "Plugin",
			Nested:    true,
		},
		Server: ServerConfig{
			Port:          "9000",
			WatchDebounce: 500 * time.Millisecond,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve builds the effective configuration. It loads .env files, reads
// the YAML file at path (or $PLUGHUB_CONFIG) when one is named, applies
// environment overrides and finally picks a database path.
func Resolve(path string) (*Config, error) {
	LoadDotEnv()

	if path == "" {
		path = os.Getenv("PLUGHUB_CONFIG")
	}

	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return cfg, nil
}

// LoadDotEnv loads the first .env found in the current or parent
// directories, then the one in the home directory. Variables already set
// in the environment are never overwritten.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}
}

// ApplyEnv overrides fields from PLUGHUB_* and OPENAI_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PLUGHUB_DIR"); v != "" {
		c.Plugins.Dir = v
	}
	if v := os.Getenv("PLUGHUB_EXT"); v != "" {
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		c.Plugins.Extension = v
	}
	if v := os.Getenv("PLUGHUB_NESTED"); v != "" {
		if nested, err := strconv.ParseBool(v); err == nil {
			c.Plugins.Nested = nested
		} else {
			log.Printf("Warning: ignoring invalid PLUGHUB_NESTED %q", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("PLUGHUB_DB_PATH")); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("PLUGHUB_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
}

// DefaultDBPath returns ./plughub.db when it already exists, otherwise a
// file under the platform data directory. It falls back to ./plughub.db
// when that directory cannot be created or written.
func DefaultDBPath() string {
	cwdPath := "./plughub.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			log.Printf("Warning: Could not determine valid home directory (%q): %v, using %s", homeDir, err, cwdPath)
			return cwdPath
		}

		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "plughub")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory %s: %v, using %s", dataDir, err, cwdPath)
		return cwdPath
	}

	probe := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(probe)
	if err != nil {
		log.Printf("Warning: Cannot write to data directory %s: %v, using %s", dataDir, err, cwdPath)
		return cwdPath
	}
	f.Close()
	os.Remove(probe)

	return filepath.Join(dataDir, "plughub.db")
}

// ValidateDBPath cleans path and rejects locations that should never hold
// the history database.
func ValidateDBPath(path string) (string, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))

	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range []string{".git", ".svn", "node_modules", ".env", "credentials", "secret"} {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}
