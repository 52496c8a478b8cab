package repo

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
)

var testAuthor = object.Identity{Name: "A U Thor", Email: "author@example.com"}

func writeHelloTree(t *testing.T, store *object.Store) object.Hash {
	t.Helper()
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
	return tree
}

func TestCommitTreeDeterministic(t *testing.T) {
	store := newTestStore(t)
	tree := writeHelloTree(t, store)

	h, err := CommitTree(store, CommitTreeOptions{
		Tree:    tree,
		Author:  testAuthor,
		When:    time.Unix(1700000000, 0).UTC(),
		Message: "initial",
	})
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	if h != "91e296066e54b1080fcd3bee892880098880dbb1" {
		t.Fatalf("commit = %s", h)
	}

	_, data, err := store.Read(h)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "parent ") {
		t.Fatalf("root commit has a parent line:\n%s", data)
	}
}

func TestCommitTreeParentsAndValidation(t *testing.T) {
	store := newTestStore(t)
	tree := writeHelloTree(t, store)
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("", -7*3600))

	root, err := CommitTree(store, CommitTreeOptions{Tree: tree, Author: testAuthor, When: when, Message: "root\n"})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	child, err := CommitTree(store, CommitTreeOptions{Tree: tree, Parents: []object.Hash{root}, Author: testAuthor, When: when, Message: "child"})
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	c, err := store.ReadCommit(child)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != root {
		t.Fatalf("parents = %v", c.Parents)
	}
	if c.AuthorTimezone != "-0700" || c.Message != "child\n" {
		t.Fatalf("commit = %+v", c)
	}

	tests := []struct {
		name string
		opts CommitTreeOptions
	}{
		{"missing tree", CommitTreeOptions{Tree: object.HashObject(object.TypeTree, []byte("x")), Author: testAuthor}},
		{"tree is a commit", CommitTreeOptions{Tree: root, Author: testAuthor}},
		{"parent is a tree", CommitTreeOptions{Tree: tree, Parents: []object.Hash{tree}, Author: testAuthor}},
		{"invalid parent", CommitTreeOptions{Tree: tree, Parents: []object.Hash{"HEAD"}, Author: testAuthor}},
		{"no author", CommitTreeOptions{Tree: tree}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CommitTree(store, tc.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCommitTreeSigner(t *testing.T) {
	store := newTestStore(t)
	tree := writeHelloTree(t, store)

	var signed []byte
	h, err := CommitTree(store, CommitTreeOptions{
		Tree:    tree,
		Author:  testAuthor,
		When:    time.Unix(1700000000, 0).UTC(),
		Message: "signed\n",
		Signer: func(payload []byte) (string, error) {
			signed = append([]byte(nil), payload...)
			return "test-signature\nsecond line", nil
		},
	})
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	c, err := store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if c.Signature() != "test-signature\nsecond line" {
		t.Fatalf("signature = %q", c.Signature())
	}
	if string(object.CommitSigningPayload(c)) != string(signed) {
		t.Fatal("signing payload changed after storing the signature")
	}

	_, err = CommitTree(store, CommitTreeOptions{
		Tree:   tree,
		Author: testAuthor,
		Signer: func([]byte) (string, error) { return "", errors.New("no key") },
	})
	if err == nil || !strings.Contains(err.Error(), "no key") {
		t.Fatalf("signer error = %v", err)
	}
}

func TestLog(t *testing.T) {
	r := newTestRepo(t)
	tree := writeHelloTree(t, r.Store)

	var parents []object.Hash
	var ids []object.Hash
	for i := 0; i < 3; i++ {
		h, err := r.CommitTree(CommitTreeOptions{
			Tree:    tree,
			Parents: parents,
			Author:  testAuthor,
			When:    time.Unix(int64(1700000000+i), 0),
			Message: "commit",
		})
		if err != nil {
			t.Fatalf("CommitTree: %v", err)
		}
		ids = append(ids, h)
		parents = []object.Hash{h}
	}

	entries, err := r.Log(ids[2], 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 3 || entries[0].Hash != ids[2] || entries[2].Hash != ids[0] {
		t.Fatalf("Log = %+v", entries)
	}
	limited, err := r.Log(ids[2], 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("Log(limit 2) = %d entries, %v", len(limited), err)
	}
	if _, err := r.Log(object.HashObject(object.TypeCommit, []byte("nope")), 0); !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("Log(missing) error = %v", err)
	}
}
