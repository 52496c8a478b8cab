package repo

import (
	"os"
	"strings"
	"testing"
)

func TestConfigRemoteRoundTrip(t *testing.T) {
	r := newTestRepo(t)

	if err := r.SetRemote("origin", "https://example.com/alice/repo.git"); err != nil {
		t.Fatalf("SetRemote: %v", err)
	}
	url, err := r.RemoteURL("origin")
	if err != nil {
		t.Fatalf("RemoteURL: %v", err)
	}
	if url != "https://example.com/alice/repo.git" {
		t.Fatalf("remote URL = %q", url)
	}
	if _, err := r.RemoteURL("upstream"); err == nil {
		t.Fatal("RemoteURL(upstream) should fail")
	}
	if err := r.SetRemote("bad name", "https://x"); err == nil {
		t.Fatal("SetRemote with space in name should fail")
	}

	data, err := os.ReadFile(r.configPath())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`[remote "origin"]`, "+refs/heads/*:refs/remotes/origin/*", "[core]"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("config missing %q:\n%s", want, data)
		}
	}
}

func TestConfigReadsGitWrittenFile(t *testing.T) {
	r := newTestRepo(t)
	gitConfig := "[core]\n\trepositoryformatversion = 0\n\tbare = false\n" +
		"[remote \"origin\"]\n\turl = https://example.com/proj.git\n\tfetch = +refs/heads/*:refs/remotes/origin/*\n" +
		"[branch \"main\"]\n\tremote = origin\n\tmerge = refs/heads/main\n"
	if err := os.WriteFile(r.configPath(), []byte(gitConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	tests := map[string]string{
		"core.bare":          "false",
		"remote.origin.url":  "https://example.com/proj.git",
		"branch.main.merge":  "refs/heads/main",
		"branch.main.remote": "origin",
		"Remote.origin.URL":  "https://example.com/proj.git",
	}
	for key, want := range tests {
		got, ok := cfg.Get(key)
		if !ok || got != want {
			t.Fatalf("Get(%q) = %q, %v; want %q", key, got, ok, want)
		}
	}
	if _, ok := cfg.Get("remote.upstream.url"); ok {
		t.Fatal("Get(remote.upstream.url) should miss")
	}
}

func TestConfigSetUnsetEntries(t *testing.T) {
	r := newTestRepo(t)
	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("user.name", "A U Thor"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cfg.Set("nodot", "x"); err == nil {
		t.Fatal("Set(nodot) should fail")
	}
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	cfg, err = r.ReadConfig()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range cfg.Entries() {
		if e == "user.name=A U Thor" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Entries = %v", cfg.Entries())
	}

	cfg.Unset("user.name")
	if _, ok := cfg.Get("user.name"); ok {
		t.Fatal("user.name still set after Unset")
	}
}

func TestSetBranchUpstream(t *testing.T) {
	r := newTestRepo(t)
	if err := r.SetBranchUpstream("main", "origin"); err != nil {
		t.Fatalf("SetBranchUpstream: %v", err)
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := cfg.Get("branch.main.merge"); v != "refs/heads/main" {
		t.Fatalf("branch.main.merge = %q", v)
	}
	// Existing keys survive.
	if v, _ := cfg.Get("gitlet.objectbackend"); v != BackendLoose {
		t.Fatalf("gitlet.objectbackend = %q", v)
	}
}
