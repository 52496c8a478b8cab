package repo

import (
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/odvcencio/gitlet/pkg/object"
)

// Render materializes tree h into dir on fs. Entries are written in stored
// order; subtrees become directories and 100644 entries become files with
// the blob's bytes. Any other mode fails with object.ErrUnsupportedMode.
// A failure leaves whatever was already written in place.
func Render(store *object.Store, fs billy.Filesystem, dir string, h object.Hash) error {
	typ, data, err := store.Read(h)
	if err != nil {
		return fmt.Errorf("render %s: %w", h, err)
	}
	if typ != object.TypeTree {
		return fmt.Errorf("render %s: %w: expected tree, got %s", h, object.ErrCorruptObject, typ)
	}
	if dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: mkdir %q: %w", dir, err)
		}
	}

	for e, err := range object.TreeEntries(data) {
		if err != nil {
			return fmt.Errorf("render %s: %w", h, err)
		}
		if e.Name == GitDirName {
			return fmt.Errorf("render %s: %w: refusing to write %q", h, object.ErrCorruptObject, e.Name)
		}
		target := path.Join(dir, e.Name)

		if e.IsDir() {
			if err := Render(store, fs, target, e.Hash); err != nil {
				return err
			}
			continue
		}

		perm, err := filePermFromMode(e.Mode)
		if err != nil {
			return fmt.Errorf("render %q: %w", target, err)
		}
		blob, err := store.ReadBlob(e.Hash)
		if err != nil {
			return fmt.Errorf("render %q: %w", target, err)
		}
		if err := util.WriteFile(fs, target, blob.Data, perm); err != nil {
			return fmt.Errorf("render %q: %w", target, err)
		}
	}
	return nil
}

// Checkout renders tree h into the worktree root of r.
func (r *Repo) Checkout(h object.Hash) error {
	return Render(r.Store, r.Work, "", h)
}
