package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
)

// Backend persists compressed object bytes keyed by id. Implementations must
// make WriteRaw atomic (readers never observe a partial object) and
// idempotent, and must report absent ids from ReadRaw as ErrObjectNotFound.
type Backend interface {
	Has(h Hash) (bool, error)
	ReadRaw(h Hash) ([]byte, error)
	WriteRaw(h Hash, compressed []byte) error
	Close() error
}

// Store is a content-addressed object store. Objects are stored as the
// zlib-compressed envelope "type len\0content" and addressed by the SHA-1 of
// that envelope.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the loose-object layout rooted at gitDir:
// gitDir/objects/ab/cdef0123...
func NewStore(gitDir string) *Store {
	return &Store{backend: NewLooseBackend(filepath.Join(gitDir, "objects"))}
}

// NewStoreWithBackend creates a Store over an arbitrary backend.
func NewStoreWithBackend(b Backend) *Store {
	return &Store{backend: b}
}

// Close releases backend resources.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Has reports whether the store contains an object with the given hash. It
// does not decompress or verify the object.
func (s *Store) Has(h Hash) bool {
	ok, err := s.backend.Has(h)
	return err == nil && ok
}

// Write stores an object and returns its content hash. Writing an object
// that already exists is a no-op.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if !objType.Valid() {
		return "", fmt.Errorf("object write: unknown type %q", objType)
	}
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	compressed, err := compressObject(Encode(objType, data))
	if err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", h, err)
	}
	if err := s.backend.WriteRaw(h, compressed); err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content. It
// fails with ErrObjectNotFound for absent ids and ErrCorruptObject when the
// stored bytes do not inflate, do not parse, or do not hash back to h.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	compressed, err := s.backend.ReadRaw(h)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	raw, err := decompressObject(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w: inflate: %v", h, ErrCorruptObject, err)
	}
	obj, err := Decode(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}
	if actual := HashObject(obj.Type, obj.Data); actual != h {
		return "", nil, fmt.Errorf("object read %s: %w: hash mismatch (computed %s)", h, ErrCorruptObject, actual)
	}
	return obj.Type, obj.Data, nil
}

func compressObject(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressObject(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, err
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}
	return raw, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Loose backend
// ---------------------------------------------------------------------------

// LooseBackend stores each object in its own file with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type LooseBackend struct {
	root string
}

// NewLooseBackend creates a backend rooted at the objects directory. Fan-out
// directories are created lazily on first write.
func NewLooseBackend(objectsDir string) *LooseBackend {
	return &LooseBackend{root: objectsDir}
}

// objectPath returns the filesystem path for a given hash.
func (b *LooseBackend) objectPath(h Hash) (string, error) {
	if len(h) != HashHexSize {
		return "", fmt.Errorf("invalid object id %q", h)
	}
	return filepath.Join(b.root, string(h[:2]), string(h[2:])), nil
}

func (b *LooseBackend) Has(h Hash) (bool, error) {
	p, err := b.objectPath(h)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *LooseBackend) ReadRaw(h Hash) ([]byte, error) {
	p, err := b.objectPath(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

// WriteRaw writes the object atomically: data goes to a temp file in the
// fan-out directory and is then renamed into place.
func (b *LooseBackend) WriteRaw(h Hash, compressed []byte) error {
	dest, err := b.objectPath(h)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	// Loose objects are read-only, like git's.
	_ = os.Chmod(tmpName, 0o444)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (b *LooseBackend) Close() error {
	return nil
}
