package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
)

// InitOptions configures a new repository.
type InitOptions struct {
	// DefaultBranch is the branch HEAD points at (default "main").
	DefaultBranch string
	// ObjectBackend is BackendLoose (default) or BackendPebble.
	ObjectBackend string
}

// Init creates a new repository at path with default options.
func Init(path string) (*Repo, error) {
	return InitWithOptions(path, InitOptions{})
}

// InitWithOptions creates the .git/ directory structure at path: HEAD,
// config, objects/ and refs/. It fails with ErrRepoExists if .git/ is
// already present.
func InitWithOptions(path string, opts InitOptions) (*Repo, error) {
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	if opts.ObjectBackend == "" {
		opts.ObjectBackend = BackendLoose
	}
	if opts.ObjectBackend != BackendLoose && opts.ObjectBackend != BackendPebble {
		return nil, fmt.Errorf("init: unknown object backend %q", opts.ObjectBackend)
	}
	head := "refs/heads/" + opts.DefaultBranch
	if err := checkRefName(head); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	gitDir := filepath.Join(abs, GitDirName)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrRepoExists, gitDir)
	}

	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: "+head+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{RootDir: abs, GitDir: gitDir, Work: osfs.New(abs)}
	cfg := newConfig()
	cfg.Set("core.repositoryformatversion", "0")
	cfg.Set("core.filemode", "false")
	cfg.Set("core.bare", "false")
	cfg.Set(configObjectBackend, opts.ObjectBackend)
	if err := r.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	store, err := openStore(gitDir, opts.ObjectBackend)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.Store = store
	return r, nil
}

// Open searches upward from path for a .git/ directory and opens the
// repository with the object backend recorded in its config.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gitDir := filepath.Join(cur, GitDirName)
		info, err := os.Stat(gitDir)
		if err == nil && info.IsDir() {
			return openAt(cur, gitDir)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w (or any parent up to /)", ErrNotRepository)
		}
		cur = parent
	}
}

func openAt(root, gitDir string) (*Repo, error) {
	r := &Repo{RootDir: root, GitDir: gitDir, Work: osfs.New(root)}
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	backend, _ := cfg.Get(configObjectBackend)
	store, err := openStore(gitDir, backend)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	r.Store = store
	return r, nil
}
