package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello\n")

	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if h != HashObject(TypeBlob, data) {
		t.Fatalf("Write returned %s, want %s", h, HashObject(TypeBlob, data))
	}
	if !s.Has(h) {
		t.Fatal("Has returned false after Write")
	}

	typ, got, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != TypeBlob {
		t.Errorf("type = %q, want %q", typ, TypeBlob)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %q, want %q", got, data)
	}
}

func TestStoreLooseLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	h, err := s.Write(TypeBlob, []byte("hello\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := filepath.Join(dir, "objects", "ce", "013625030ba8dba906f756967f9e9ca394464a")
	compressed, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("object file missing at %s: %v", p, err)
	}
	raw, err := decompressObject(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(raw) != "blob 6\x00hello\n" {
		t.Fatalf("stored bytes = %q", raw)
	}
	if h != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Fatalf("id = %s", h)
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	s := tempStore(t)
	h1, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("ids differ: %s vs %s", h1, h2)
	}
}

func TestStoreWriteRejectsUnknownType(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Write(ObjectType("widget"), []byte("x")); err == nil {
		t.Fatal("Write with unknown type should fail")
	}
}

func TestStoreReadNotFound(t *testing.T) {
	s := tempStore(t)
	_, _, err := s.Read(HashObject(TypeBlob, []byte("absent")))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Read error = %v, want ErrObjectNotFound", err)
	}
	if s.Has(HashObject(TypeBlob, []byte("absent"))) {
		t.Fatal("Has returned true for absent object")
	}
}

func overwriteLoose(t *testing.T, dir string, h Hash, data []byte) {
	t.Helper()
	p := filepath.Join(dir, "objects", string(h[:2]), string(h[2:]))
	if err := os.Remove(p); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStoreReadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	h, err := s.Write(TypeBlob, []byte("original"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	t.Run("not zlib", func(t *testing.T) {
		overwriteLoose(t, dir, h, []byte("garbage"))
		if _, _, err := s.Read(h); !errors.Is(err, ErrCorruptObject) {
			t.Fatalf("Read error = %v, want ErrCorruptObject", err)
		}
	})

	t.Run("bad header", func(t *testing.T) {
		compressed, err := compressObject([]byte("blob 99\x00original"))
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		overwriteLoose(t, dir, h, compressed)
		if _, _, err := s.Read(h); !errors.Is(err, ErrCorruptObject) {
			t.Fatalf("Read error = %v, want ErrCorruptObject", err)
		}
	})

	t.Run("digest mismatch", func(t *testing.T) {
		compressed, err := compressObject(Encode(TypeBlob, []byte("tampered")))
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		overwriteLoose(t, dir, h, compressed)
		if _, _, err := s.Read(h); !errors.Is(err, ErrCorruptObject) {
			t.Fatalf("Read error = %v, want ErrCorruptObject", err)
		}
	})
}

func TestStoreTypedHelpers(t *testing.T) {
	s := tempStore(t)

	blobHash, err := s.WriteBlob(&Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeHash, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{{Mode: TreeModeFile, Name: "hello.txt", Hash: blobHash}}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := s.WriteCommit(&CommitObj{TreeHash: treeHash, Author: "A <a@example.com>", Timestamp: 1, Message: "m\n"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	c, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	tr, err := s.ReadTree(c.TreeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tr.Entries) != 1 || tr.Entries[0].Name != "hello.txt" {
		t.Fatalf("tree entries = %+v", tr.Entries)
	}
	b, err := s.ReadBlob(tr.Entries[0].Hash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(b.Data) != "hello\n" {
		t.Fatalf("blob = %q", b.Data)
	}

	if _, err := s.ReadTree(blobHash); err == nil {
		t.Fatal("ReadTree on a blob should fail")
	}
}

func TestStoreNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	for i := 0; i < 5; i++ {
		if _, err := s.Write(TypeBlob, []byte{byte(i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	matches, err := filepath.Glob(filepath.Join(dir, "objects", "*", ".tmp-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestPebbleBackendStore(t *testing.T) {
	backend, err := OpenPebbleBackend(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatalf("OpenPebbleBackend: %v", err)
	}
	s := NewStoreWithBackend(backend)
	defer s.Close()

	h, err := s.Write(TypeBlob, []byte("hello\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(h) {
		t.Fatal("Has returned false after Write")
	}
	typ, data, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != TypeBlob || string(data) != "hello\n" {
		t.Fatalf("Read = %s %q", typ, data)
	}
	if _, _, err := s.Read(HashObject(TypeBlob, []byte("absent"))); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Read absent error = %v, want ErrObjectNotFound", err)
	}
}
