// Package config loads per-user gitlet settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Environment variables consulted by Load and Identity.
const (
	EnvConfig      = "GITLET_CONFIG"
	EnvAuthorName  = "GITLET_AUTHOR_NAME"
	EnvAuthorEmail = "GITLET_AUTHOR_EMAIL"
)

// Config is the decoded config.toml.
type Config struct {
	User    UserConfig    `toml:"user"`
	HTTP    HTTPConfig    `toml:"http"`
	Storage StorageConfig `toml:"storage"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type HTTPConfig struct {
	Timeout     Duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
	UserAgent   string   `toml:"user_agent"`
}

type StorageConfig struct {
	// Backend is "loose" or "pebble".
	Backend string `toml:"backend"`
}

// Duration decodes TOML strings such as "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		HTTP:    HTTPConfig{Timeout: Duration{60 * time.Second}, MaxAttempts: 1},
		Storage: StorageConfig{Backend: "loose"},
	}
}

// DefaultPath resolves the config file location: $GITLET_CONFIG, then
// $XDG_CONFIG_HOME/gitlet/config.toml, then ~/.config/gitlet/config.toml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "gitlet", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config path: %w", err)
	}
	return filepath.Join(home, ".config", "gitlet", "config.toml"), nil
}

// Load reads the config at DefaultPath.
func Load() (*Config, error) {
	p, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(p)
}

// LoadFile reads path over the defaults. A missing file yields Default().
// Unknown keys are rejected so typos surface.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "", "loose", "pebble":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.HTTP.MaxAttempts < 0 {
		return fmt.Errorf("http.max_attempts: must not be negative")
	}
	if c.HTTP.Timeout.Duration < 0 {
		return fmt.Errorf("http.timeout: must not be negative")
	}
	return nil
}

// Identity returns the commit identity: environment overrides first, then
// [user], then $USER with a localhost email.
func (c *Config) Identity() object.Identity {
	id := object.Identity{Name: c.User.Name, Email: c.User.Email}
	if v := strings.TrimSpace(os.Getenv(EnvAuthorName)); v != "" {
		id.Name = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthorEmail)); v != "" {
		id.Email = v
	}
	if strings.TrimSpace(id.Name) == "" {
		id.Name = strings.TrimSpace(os.Getenv("USER"))
		if id.Name == "" {
			id.Name = "unknown"
		}
	}
	if strings.TrimSpace(id.Email) == "" {
		id.Email = strings.ReplaceAll(strings.ToLower(id.Name), " ", ".") + "@localhost"
	}
	return id
}

// Write encodes c to path, creating parent directories.
func Write(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("write config: encode: %w", err)
	}
	return f.Close()
}
