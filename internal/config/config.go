// Package config loads immo's settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/schema"
	"github.com/evcraddock/immo/internal/transaction"
)

// ErrMissingCredentials means the remote store URL or key is absent or
// still set to a placeholder.
var ErrMissingCredentials = errors.New("missing remote store credentials")

// Placeholders shipped in sample configurations.
const (
	PlaceholderURL = "REMPLACER_PAR_VOTRE_URL_SUPABASE"
	PlaceholderKey = "REMPLACER_PAR_VOTRE_KEY_SUPABASE"
)

// DefaultTimeout bounds a single remote request.
const DefaultTimeout = 30 * time.Second

// Config is the complete runtime configuration.
type Config struct {
	Remote       Remote         `yaml:"remote"`
	Schema       schema.Mapping `yaml:"schema"`
	Directory    Directory      `yaml:"directory"`
	Transactions Transactions   `yaml:"transactions"`
	Mirror       Mirror         `yaml:"mirror"`
	Server       Server         `yaml:"server"`

	// ContextColumns overrides schema.context_columns when set.
	ContextColumns []string `yaml:"context_columns,omitempty"`

	DevMode bool `yaml:"dev_mode"`
}

// Remote locates the PostgREST endpoint.
type Remote struct {
	URL     string        `yaml:"url"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Directory tunes the commune directory loader.
type Directory struct {
	PageSize int           `yaml:"page_size"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Transactions tunes the sales fetcher.
type Transactions struct {
	MaxRows int `yaml:"max_rows"`
}

// Mirror locates the local SQLite snapshot.
type Mirror struct {
	Path string `yaml:"path"`
}

// Server configures the JSON API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote:       Remote{Timeout: DefaultTimeout},
		Schema:       schema.Default(),
		Directory:    Directory{PageSize: commune.DefaultPageSize, CacheTTL: commune.DefaultCacheTTL},
		Transactions: Transactions{MaxRows: transaction.DefaultMaxRows},
		Server:       Server{Addr: ":8080"},
	}
}

// Dir returns the configuration directory, ~/.config/immo.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "immo"), nil
}

// DefaultPath returns the path of the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path (DefaultPath if empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Config{}, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if len(cfg.ContextColumns) > 0 {
		cfg.Schema.ContextColumns = cfg.ContextColumns
	}
	if cfg.Mirror.Path == "" {
		dir, err := Dir()
		if err != nil {
			return Config{}, err
		}
		cfg.Mirror.Path = filepath.Join(dir, "mirror.db")
	}

	if err := cfg.Schema.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("SUPABASE_KEY"); v != "" {
		c.Remote.Key = v
	}
	if v := os.Getenv("IMMO_MIRROR_PATH"); v != "" {
		c.Mirror.Path = v
	}
	if v := os.Getenv("IMMO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if os.Getenv("IMMO_DEV_MODE") == "true" {
		c.DevMode = true
	}
}

// CheckCredentials returns ErrMissingCredentials unless both the remote URL
// and key are set to real values.
func (c Config) CheckCredentials() error {
	var missing []string
	if isPlaceholder(c.Remote.URL, PlaceholderURL) {
		missing = append(missing, "SUPABASE_URL")
	}
	if isPlaceholder(c.Remote.Key, PlaceholderKey) {
		missing = append(missing, "SUPABASE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s in the environment or in remote.url/remote.key",
			ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return nil
}

func isPlaceholder(v, placeholder string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == placeholder || strings.HasPrefix(v, "REMPLACER_PAR_")
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
