package repo

import (
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/object"
)

// WriteTree hashes the worktree of r into blob and tree objects and
// returns the root tree id.
func (r *Repo) WriteTree() (object.Hash, error) {
	return WriteTree(r.Store, r.Work, NewIgnoreChecker(r.Work))
}

// WriteTree walks fs from its root and writes a canonical tree for every
// directory. Regular files become 100644 blobs; other file types are
// skipped, as are ignored paths and directories with nothing to record.
func WriteTree(store *object.Store, fs billy.Filesystem, ignore *IgnoreChecker) (object.Hash, error) {
	if ignore == nil {
		ignore = &IgnoreChecker{}
	}
	h, _, err := writeTreeDir(store, fs, ignore, "")
	if err != nil {
		return "", err
	}
	if h == "" {
		// An empty worktree still has a (well-known) empty tree.
		return store.WriteTree(&object.TreeObj{})
	}
	return h, nil
}

// writeTreeDir returns "" for a directory with no recordable entries.
func writeTreeDir(store *object.Store, fs billy.Filesystem, ignore *IgnoreChecker, dir string) (object.Hash, int, error) {
	infos, err := fs.ReadDir(dirOrRoot(dir))
	if err != nil {
		return "", 0, fmt.Errorf("write tree: read dir %q: %w", dir, err)
	}

	var entries []object.TreeEntry
	for _, info := range infos {
		rel := path.Join(dir, info.Name())
		mode, ok := treeModeFor(info)
		if !ok || ignore.IsIgnored(rel, info.IsDir()) {
			continue
		}

		if mode == object.TreeModeDir {
			sub, _, err := writeTreeDir(store, fs, ignore, rel)
			if err != nil {
				return "", 0, err
			}
			if sub != "" {
				entries = append(entries, object.TreeEntry{Mode: mode, Name: info.Name(), Hash: sub})
			}
			continue
		}

		data, err := readWorktreeFile(fs, rel)
		if err != nil {
			return "", 0, fmt.Errorf("write tree: %w", err)
		}
		h, err := store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return "", 0, fmt.Errorf("write tree: blob %q: %w", rel, err)
		}
		entries = append(entries, object.TreeEntry{Mode: mode, Name: info.Name(), Hash: h})
	}
	if len(entries) == 0 {
		return "", 0, nil
	}

	object.SortTreeEntries(entries)
	h, err := store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", 0, fmt.Errorf("write tree %q: %w", dir, err)
	}
	return h, len(entries), nil
}

func readWorktreeFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func dirOrRoot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// LsTreeOptions filters a tree listing.
type LsTreeOptions struct {
	// Recursive descends into subtrees instead of listing them.
	Recursive bool
	// Names restricts top-level output to these entry names. The listing
	// stops as soon as every name has been seen.
	Names []string
}

// LsTree lists the entries of tree h in git's display order, calling fn
// with each entry's path. Returning false from fn stops the listing.
func LsTree(store *object.Store, h object.Hash, opts LsTreeOptions, fn func(path string, e object.TreeEntry) bool) error {
	_, err := lsTree(store, h, "", opts, fn)
	return err
}

func lsTree(store *object.Store, h object.Hash, prefix string, opts LsTreeOptions, fn func(string, object.TreeEntry) bool) (bool, error) {
	typ, data, err := store.Read(h)
	if err != nil {
		return false, fmt.Errorf("ls-tree: read %s: %w", h, err)
	}
	if typ != object.TypeTree {
		return false, fmt.Errorf("ls-tree: %s is a %s, not a tree: %w", h, typ, object.ErrCorruptObject)
	}

	var want map[string]bool
	if prefix == "" && len(opts.Names) > 0 {
		want = make(map[string]bool, len(opts.Names))
		for _, n := range opts.Names {
			want[n] = true
		}
	}

	var entries []object.TreeEntry
	for e, err := range object.TreeEntries(data) {
		if err != nil {
			return false, fmt.Errorf("ls-tree %s: %w", h, err)
		}
		if want != nil {
			if !want[e.Name] {
				continue
			}
			delete(want, e.Name)
			entries = append(entries, e)
			if len(want) == 0 {
				break
			}
			continue
		}
		entries = append(entries, e)
	}
	object.SortTreeEntries(entries)

	for _, e := range entries {
		p := path.Join(prefix, e.Name)
		if opts.Recursive && e.IsDir() {
			cont, err := lsTree(store, e.Hash, p, opts, fn)
			if err != nil || !cont {
				return cont, err
			}
			continue
		}
		if !fn(p, e) {
			return false, nil
		}
	}
	return true, nil
}
