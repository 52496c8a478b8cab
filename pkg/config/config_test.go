package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultPathPrecedence(t *testing.T) {
	t.Setenv(EnvConfig, "/tmp/explicit.toml")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if p, _ := DefaultPath(); p != "/tmp/explicit.toml" {
		t.Fatalf("with GITLET_CONFIG: %q", p)
	}

	t.Setenv(EnvConfig, "")
	if p, _ := DefaultPath(); p != filepath.Join("/tmp/xdg", "gitlet", "config.toml") {
		t.Fatalf("with XDG_CONFIG_HOME: %q", p)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/tmp/home")
	if p, _ := DefaultPath(); p != filepath.Join("/tmp/home", ".config", "gitlet", "config.toml") {
		t.Fatalf("with HOME: %q", p)
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Timeout.Duration != 60*time.Second || cfg.HTTP.MaxAttempts != 1 || cfg.Storage.Backend != "loose" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[user]
name = "A U Thor"
email = "author@example.com"

[http]
timeout = "5s"
max_attempts = 7
user_agent = "custom/1"

[storage]
backend = "pebble"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.User.Name != "A U Thor" || cfg.HTTP.Timeout.Duration != 5*time.Second ||
		cfg.HTTP.MaxAttempts != 7 || cfg.HTTP.UserAgent != "custom/1" || cfg.Storage.Backend != "pebble" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadFileRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "[user]\nnick = \"x\"\n", "unknown key"},
		{"bad duration", "[http]\ntimeout = \"soon\"\n", "soon"},
		{"bad backend", "[storage]\nbackend = \"sqlite\"\n", "storage.backend"},
		{"negative attempts", "[http]\nmax_attempts = -1\n", "max_attempts"},
		{"syntax", "[user\n", "load config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	t.Setenv(EnvAuthorName, "")
	t.Setenv(EnvAuthorEmail, "")
	t.Setenv("USER", "jdoe")

	cfg := Default()
	if id := cfg.Identity(); id.Name != "jdoe" || id.Email != "jdoe@localhost" {
		t.Fatalf("fallback identity = %+v", id)
	}

	cfg.User = UserConfig{Name: "A U Thor", Email: "author@example.com"}
	if id := cfg.Identity(); id.String() != "A U Thor <author@example.com>" {
		t.Fatalf("configured identity = %s", id)
	}

	t.Setenv(EnvAuthorName, "Env Name")
	if id := cfg.Identity(); id.Name != "Env Name" || id.Email != "author@example.com" {
		t.Fatalf("env identity = %+v", id)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.User.Name = "A U Thor"
	cfg.HTTP.Timeout = Duration{90 * time.Second}
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.User.Name != "A U Thor" || got.HTTP.Timeout.Duration != 90*time.Second {
		t.Fatalf("round trip = %+v", got)
	}
}
