package repo

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/odvcencio/gitlet/pkg/object"
)

func TestRenderSingleFile(t *testing.T) {
	store := newTestStore(t)
	blob, err := store.WriteBlob(&object.Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatal(err)
	}
	tree, err := store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
		{Mode: object.TreeModeFile, Name: "hello.txt", Hash: blob},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if tree != helloTree {
		t.Fatalf("tree = %s, want %s", tree, helloTree)
	}

	fs := memfs.New()
	if err := Render(store, fs, "", tree); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, err := util.ReadFile(fs, "hello.txt")
	if err != nil {
		t.Fatalf("read hello.txt: %v", err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("hello.txt = %q", got)
	}
}

func TestRenderRoundTripsWriteTree(t *testing.T) {
	store := newTestStore(t)
	src := memfs.New()
	writeFiles(t, src, map[string]string{
		"README.md":           "# readme\n",
		"cmd/tool/main.go":    "package main\n",
		"pkg/lib/lib.go":      "package lib\n",
		"pkg/lib/lib_test.go": "package lib\n",
	})
	tree, err := WriteTree(store, src, nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	dst := memfs.New()
	if err := Render(store, dst, "checkout", tree); err != nil {
		t.Fatalf("Render: %v", err)
	}
	sub, err := dst.Chroot("checkout")
	if err != nil {
		t.Fatal(err)
	}
	again, err := WriteTree(store, sub, nil)
	if err != nil {
		t.Fatalf("WriteTree(rendered): %v", err)
	}
	if again != tree {
		t.Fatalf("rendered tree = %s, want %s", again, tree)
	}
}

func TestRenderRejectsUnsupportedModes(t *testing.T) {
	store := newTestStore(t)
	blob, err := store.WriteBlob(&object.Blob{Data: []byte("#!/bin/sh\n")})
	if err != nil {
		t.Fatal(err)
	}
	for _, mode := range []string{object.TreeModeExecutable, object.TreeModeSymlink, object.TreeModeGitlink} {
		t.Run(mode, func(t *testing.T) {
			tree, err := store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
				{Mode: mode, Name: "run", Hash: blob},
			}})
			if err != nil {
				t.Fatal(err)
			}
			err = Render(store, memfs.New(), "", tree)
			if !errors.Is(err, object.ErrUnsupportedMode) {
				t.Fatalf("Render error = %v, want ErrUnsupportedMode", err)
			}
		})
	}
}

func TestRenderMissingObjects(t *testing.T) {
	store := newTestStore(t)
	missing := object.HashObject(object.TypeBlob, []byte("never stored"))
	tree, err := store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
		{Mode: object.TreeModeFile, Name: "gone.txt", Hash: missing},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := Render(store, memfs.New(), "", tree); !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("Render error = %v, want ErrObjectNotFound", err)
	}
	if err := Render(store, memfs.New(), "", missing); !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("Render(missing tree) error = %v, want ErrObjectNotFound", err)
	}
}

func TestRenderRejectsGitDirEntry(t *testing.T) {
	store := newTestStore(t)
	blob, err := store.WriteBlob(&object.Blob{Data: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	tree, err := store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
		{Mode: object.TreeModeFile, Name: ".git", Hash: blob},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := Render(store, memfs.New(), "", tree); !errors.Is(err, object.ErrCorruptObject) {
		t.Fatalf("Render error = %v, want ErrCorruptObject", err)
	}
}
