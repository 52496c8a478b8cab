package repo

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/object"
)

// GitDirName is the metadata directory inside a working tree.
const GitDirName = ".git"

// Object backends selectable at init.
const (
	BackendLoose  = "loose"
	BackendPebble = "pebble"
)

var (
	ErrRepoExists     = errors.New("repository already exists")
	ErrNotRepository  = errors.New("not a gitlet repository")
	ErrRefNotFound    = errors.New("ref not found")
	ErrInvalidRefName = errors.New("invalid ref name")
)

// Repo represents an opened repository.
type Repo struct {
	RootDir string           // working directory root
	GitDir  string           // .git/ directory
	Store   *object.Store    // content-addressed object store
	Work    billy.Filesystem // working tree rooted at RootDir
	// Identity is recorded in reflog entries.
	Identity object.Identity
}

// Close releases the object store.
func (r *Repo) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

func openStore(gitDir, backend string) (*object.Store, error) {
	switch backend {
	case "", BackendLoose:
		return object.NewStore(gitDir), nil
	case BackendPebble:
		b, err := object.OpenPebbleBackend(filepath.Join(gitDir, "objects", "pebble"))
		if err != nil {
			return nil, err
		}
		return object.NewStoreWithBackend(b), nil
	default:
		return nil, fmt.Errorf("unknown object backend %q", backend)
	}
}
