package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

const configObjectBackend = "gitlet.objectbackend"

// Config is the repository-local .git/config file. Keys are addressed
// git-style: "section.key" or "section.subsection.key", where the
// subsection maps to a [section "subsection"] header.
type Config struct {
	file *ini.File
}

var configLoadOptions = ini.LoadOptions{
	InsensitiveKeys:    true,
	KeyValueDelimiters: "=",
}

func newConfig() *Config {
	return &Config{file: ini.Empty(configLoadOptions)}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GitDir, "config")
}

// ReadConfig reads .git/config. A missing config yields an empty one.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return newConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := ini.LoadSources(configLoadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("read config: parse: %w", err)
	}
	return &Config{file: f}, nil
}

// WriteConfig atomically writes .git/config.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = newConfig()
	}
	var buf bytes.Buffer
	if _, err := cfg.file.WriteTo(&buf); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(r.configPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// splitConfigKey maps "a.b.c" to section `a "b"` and key "c".
func splitConfigKey(key string) (section, name string, err error) {
	first := strings.IndexByte(key, '.')
	last := strings.LastIndexByte(key, '.')
	if first <= 0 || last == len(key)-1 {
		return "", "", fmt.Errorf("invalid config key %q", key)
	}
	section = strings.ToLower(key[:first])
	name = strings.ToLower(key[last+1:])
	if first != last {
		section = fmt.Sprintf("%s %q", section, key[first+1:last])
	}
	return section, name, nil
}

// Get returns the value stored under key.
func (c *Config) Get(key string) (string, bool) {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return "", false
	}
	sec, err := c.file.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return "", false
	}
	return sec.Key(name).String(), true
}

// Set stores value under key, creating the section as needed.
func (c *Config) Set(key, value string) error {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	c.file.Section(section).Key(name).SetValue(value)
	return nil
}

// Unset removes key. Removing the last key of a section drops the section.
func (c *Config) Unset(key string) {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return
	}
	sec, err := c.file.GetSection(section)
	if err != nil {
		return
	}
	sec.DeleteKey(name)
	if len(sec.Keys()) == 0 {
		c.file.DeleteSection(section)
	}
}

// Entries returns every "key=value" pair in git's flattened form, sorted.
func (c *Config) Entries() []string {
	var out []string
	for _, sec := range c.file.Sections() {
		prefix := sec.Name()
		if prefix == ini.DefaultSection {
			continue
		}
		if name, sub, ok := strings.Cut(prefix, " "); ok {
			prefix = name + "." + strings.Trim(sub, `"`)
		}
		for _, k := range sec.Keys() {
			out = append(out, prefix+"."+k.Name()+"="+k.Value())
		}
	}
	sort.Strings(out)
	return out
}

// SetRemote records a named remote URL together with its default fetch
// refspec.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	remoteURL = strings.TrimSpace(remoteURL)
	if name == "" || strings.ContainsAny(name, "\" .") {
		return fmt.Errorf("set remote: invalid remote name %q", name)
	}
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	_ = cfg.Set("remote."+name+".url", remoteURL)
	_ = cfg.Set("remote."+name+".fetch", fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))
	return r.WriteConfig(cfg)
}

// RemoteURL returns the URL of a configured remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	u, ok := cfg.Get("remote." + name + ".url")
	if !ok || u == "" {
		return "", fmt.Errorf("remote %q not configured", name)
	}
	return u, nil
}

// SetBranchUpstream records that branch tracks remote's branch of the
// same name.
func (r *Repo) SetBranchUpstream(branch, remoteName string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	_ = cfg.Set("branch."+branch+".remote", remoteName)
	_ = cfg.Set("branch."+branch+".merge", "refs/heads/"+branch)
	return r.WriteConfig(cfg)
}
