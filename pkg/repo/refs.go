package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
)

var (
	ErrRefCASMismatch                  = errors.New("ref compare-and-swap mismatch")
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error { return e.Err }

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Ref is a named reference and the object it points at.
type Ref struct {
	Name string
	Hash object.Hash
}

func checkRefName(name string) error {
	if name == "HEAD" {
		return nil
	}
	if !strings.HasPrefix(name, "refs/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.ContainsAny(name, " ~^:?*[\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidRefName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." || strings.HasPrefix(part, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidRefName, name)
		}
	}
	return nil
}

// Head reads .git/HEAD. If HEAD is symbolic it returns the target ref
// (e.g. "refs/heads/main"); otherwise it returns the detached hash.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		return strings.TrimSpace(target), nil
	}
	return content, nil
}

// SetSymbolicHead points HEAD at ref.
func (r *Repo) SetSymbolicHead(ref string) error {
	if err := checkRefName(ref); err != nil || ref == "HEAD" {
		return fmt.Errorf("set HEAD: %w: %q", ErrInvalidRefName, ref)
	}
	return writeFileAtomic(filepath.Join(r.GitDir, "HEAD"), []byte("ref: "+ref+"\n"))
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. "HEAD" follows a symbolic HEAD to its target.
//  2. Names starting with "refs/" are read as-is.
//  3. Otherwise "refs/heads/<name>", then "refs/tags/<name>",
//     then "refs/remotes/<name>".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		return parseRefContent(name, head)
	}

	candidates := []string{name}
	if !strings.HasPrefix(name, "refs/") {
		candidates = []string{"refs/heads/" + name, "refs/tags/" + name, "refs/remotes/" + name}
	}
	for _, c := range candidates {
		if err := checkRefName(c); err != nil {
			return "", fmt.Errorf("resolve ref: %w", err)
		}
		h, err := readRefHash(filepath.Join(r.GitDir, filepath.FromSlash(c)))
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		if h != "" {
			return parseRefContent(c, string(h))
		}
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
}

func parseRefContent(name, content string) (object.Hash, error) {
	h, err := object.ParseHash(content)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return h, nil
}

// UpdateRef writes h to the named ref. Parent directories are created as
// needed and reason is recorded in the reflog.
func (r *Repo) UpdateRef(name string, h object.Hash, reason string) error {
	return r.updateRef(name, h, reason, nil)
}

// UpdateRefCAS is UpdateRef that only succeeds while the ref still holds
// expectedOld. An empty expectedOld requires the ref to be absent.
func (r *Repo) UpdateRefCAS(name string, h, expectedOld object.Hash, reason string) error {
	return r.updateRef(name, h, reason, &expectedOld)
}

// updateRef uses lockfile + rename semantics. The reflog is appended after
// the rename; if that fails the ref update stays committed and a
// RefUpdateReflogError is returned.
func (r *Repo) updateRef(name string, h object.Hash, reason string, expectedOld *object.Hash) error {
	if err := checkRefName(name); err != nil || name == "HEAD" {
		return fmt.Errorf("update ref: %w: %q", ErrInvalidRefName, name)
	}
	if _, err := object.ParseHash(string(h)); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	refPath := filepath.Join(r.GitDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if expectedOld != nil && oldHash != *expectedOld {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, *expectedOld, oldHash)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
		}
		time.Sleep(refLockRetryDelay)
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// ListRefs lists references under .git/refs/<prefix>, sorted by name.
// Names are full ref names, e.g. "refs/heads/main".
func (r *Repo) ListRefs(prefix string) ([]Ref, error) {
	dir := filepath.Join(r.GitDir, "refs")
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		dir = filepath.Join(dir, filepath.FromSlash(p))
	}

	var refs []Ref
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.GitDir, path)
		if err != nil {
			return err
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		refs = append(refs, Ref{Name: filepath.ToSlash(rel), Hash: h})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// SetDetachedHead points HEAD directly at h.
func (r *Repo) SetDetachedHead(h object.Hash) error {
	if _, err := object.ParseHash(string(h)); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return writeFileAtomic(filepath.Join(r.GitDir, "HEAD"), []byte(string(h)+"\n"))
}
