package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

const (
	helloBlob = "ce013625030ba8dba906f756967f9e9ca394464a"
	helloTree = "aaa96ced2d9a1c8e72c56b253a0e2fe78393feb7"
)

// isolateEnv points user config at a missing file and fixes the identity.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITLET_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("GITLET_AUTHOR_NAME", "A U Thor")
	t.Setenv("GITLET_AUTHOR_EMAIL", "author@example.com")
}

func runGitlet(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runGitlet(t, args...)
	if err != nil {
		t.Fatalf("gitlet %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func initRepoDir(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	mustRun(t, "init", dir)
	t.Chdir(dir)
	return dir
}

func TestInitCmd(t *testing.T) {
	isolateEnv(t)
	dir := filepath.Join(t.TempDir(), "fresh")
	out := mustRun(t, "init", dir)
	if !strings.Contains(out, "Initialized empty repository in") {
		t.Fatalf("init output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "HEAD")); err != nil {
		t.Fatalf("HEAD: %v", err)
	}
	if _, err := runGitlet(t, "init", dir); err == nil {
		t.Fatal("second init should fail")
	}
}

func TestPlumbingRoundTrip(t *testing.T) {
	dir := initRepoDir(t)
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if out := mustRun(t, "hash-object", "hello.txt"); strings.TrimSpace(out) != helloBlob {
		t.Fatalf("hash-object = %q", out)
	}
	if _, err := runGitlet(t, "cat-file", "-t", helloBlob); err == nil {
		t.Fatal("cat-file on an unwritten blob should fail")
	}
	mustRun(t, "hash-object", "-w", "hello.txt")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"cat-file", "-t", helloBlob}, "blob\n"},
		{[]string{"cat-file", "-s", helloBlob}, "6\n"},
		{[]string{"cat-file", "-p", helloBlob}, "hello\n"},
		{[]string{"write-tree"}, helloTree + "\n"},
		{[]string{"cat-file", "-p", helloTree}, "100644 blob " + helloBlob + "\thello.txt\n"},
		{[]string{"ls-tree", "--name-only", helloTree}, "hello.txt\n"},
		{[]string{"ls-tree", helloTree, "missing.txt"}, ""},
	}
	for _, tc := range tests {
		if got := mustRun(t, tc.args...); got != tc.want {
			t.Fatalf("gitlet %s = %q, want %q", strings.Join(tc.args, " "), got, tc.want)
		}
	}

	if _, err := runGitlet(t, "cat-file", helloBlob); err == nil {
		t.Fatal("cat-file without a mode flag should fail")
	}
}

func TestCommitTreeAndLog(t *testing.T) {
	dir := initRepoDir(t)
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tree := strings.TrimSpace(mustRun(t, "write-tree"))

	first := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-m", "first"))
	second := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-p", first, "-m", "second"))

	body := mustRun(t, "cat-file", "-p", first)
	if strings.Contains(body, "parent ") || !strings.Contains(body, "author A U Thor <author@example.com> ") {
		t.Fatalf("first commit:\n%s", body)
	}
	if body := mustRun(t, "cat-file", "-p", second); !strings.Contains(body, "parent "+first+"\n") {
		t.Fatalf("second commit:\n%s", body)
	}

	out := mustRun(t, "log", "--oneline", second)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], " second") || !strings.HasSuffix(lines[1], " first") {
		t.Fatalf("log = %q", out)
	}
	if out := mustRun(t, "ls-tree", second+"^{tree}"); !strings.Contains(out, "hello.txt") {
		t.Fatalf("ls-tree commit^{tree} = %q", out)
	}
	if out := mustRun(t, "verify", second); !strings.Contains(out, "ok: verified 4 object(s)") {
		t.Fatalf("verify = %q", out)
	}

	if _, err := runGitlet(t, "commit-tree", tree); err == nil {
		t.Fatal("commit-tree without -m should fail")
	}
	if _, err := runGitlet(t, "commit-tree", tree, "-p", helloBlob, "-m", "x"); err == nil {
		t.Fatal("commit-tree with a missing parent should fail")
	}
}

func writeTestSSHKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "test")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSignedCommit(t *testing.T) {
	dir := initRepoDir(t)
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tree := strings.TrimSpace(mustRun(t, "write-tree"))
	key := writeTestSSHKey(t)

	signed := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-m", "signed", "--sign-key", key))
	if body := mustRun(t, "cat-file", "-p", signed); !strings.Contains(body, "gpgsig sshsig-v1:ssh-ed25519:") {
		t.Fatalf("signed commit:\n%s", body)
	}
	if out := mustRun(t, "verify-commit", signed); !strings.Contains(out, "Good signature") {
		t.Fatalf("verify-commit = %q", out)
	}

	unsigned := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-m", "plain"))
	if _, err := runGitlet(t, "verify-commit", unsigned); err == nil {
		t.Fatal("verify-commit on an unsigned commit should fail")
	}
}

func TestConfigCmd(t *testing.T) {
	initRepoDir(t)
	mustRun(t, "config", "remote.origin.url", "https://example.com/p.git")
	if out := mustRun(t, "config", "remote.origin.url"); out != "https://example.com/p.git\n" {
		t.Fatalf("config get = %q", out)
	}
	if out := mustRun(t, "config", "--list"); !strings.Contains(out, "remote.origin.url=https://example.com/p.git\n") {
		t.Fatalf("config --list = %q", out)
	}
	mustRun(t, "config", "--unset", "remote.origin.url")
	if _, err := runGitlet(t, "config", "remote.origin.url"); err == nil {
		t.Fatal("unset key should not be found")
	}
}

func TestBadUserConfigFailsRepoCommands(t *testing.T) {
	initRepoDir(t)
	bad := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(bad, []byte("[http]\ntimeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITLET_CONFIG", bad)

	for _, args := range [][]string{{"config", "--list"}, {"write-tree"}, {"reflog"}} {
		if _, err := runGitlet(t, args...); err == nil {
			t.Fatalf("gitlet %s with a malformed config should fail", strings.Join(args, " "))
		}
	}
}

func TestVersionCmd(t *testing.T) {
	if out := mustRun(t, "version"); !strings.HasPrefix(out, "gitlet ") {
		t.Fatalf("version = %q", out)
	}
}

func TestUpdateRefAndReflog(t *testing.T) {
	dir := initRepoDir(t)
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tree := strings.TrimSpace(mustRun(t, "write-tree"))
	first := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-m", "first"))
	second := strings.TrimSpace(mustRun(t, "commit-tree", tree, "-p", first, "-m", "second"))

	zero := strings.Repeat("0", 40)
	mustRun(t, "update-ref", "refs/heads/main", first, zero)
	if _, err := runGitlet(t, "update-ref", "refs/heads/main", second, zero); err == nil {
		t.Fatal("create-only update of an existing ref should fail")
	}
	if _, err := runGitlet(t, "update-ref", "refs/heads/main", second, second); err == nil {
		t.Fatal("update with a stale old value should fail")
	}
	mustRun(t, "update-ref", "-m", "advance", "refs/heads/main", second, first)

	out := mustRun(t, "reflog")
	want := second[:7] + " refs/heads/main@{0}: advance\n" +
		first[:7] + " refs/heads/main@{1}: update-ref\n"
	if out != want {
		t.Fatalf("reflog = %q, want %q", out, want)
	}
	if out := mustRun(t, "log", "--oneline"); len(strings.Split(strings.TrimSpace(out), "\n")) != 2 {
		t.Fatalf("log from HEAD = %q", out)
	}
}
