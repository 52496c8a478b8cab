package repo

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/odvcencio/gitlet/pkg/object"
)

const helloTree = object.Hash("aaa96ced2d9a1c8e72c56b253a0e2fe78393feb7")

func newTestStore(t *testing.T) *object.Store {
	t.Helper()
	s := object.NewStore(t.TempDir())
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFiles(t *testing.T, fs billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, data := range files {
		if err := util.WriteFile(fs, name, []byte(data), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestWriteTreeSingleFile(t *testing.T) {
	store := newTestStore(t)
	fs := memfs.New()
	writeFiles(t, fs, map[string]string{"hello.txt": "hello\n"})

	h, err := WriteTree(store, fs, nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h != helloTree {
		t.Fatalf("tree = %s, want %s", h, helloTree)
	}
}

func TestWriteTreeEmpty(t *testing.T) {
	h, err := WriteTree(newTestStore(t), memfs.New(), nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("empty tree = %s", h)
	}
}

func TestWriteTreeNestedAndIgnored(t *testing.T) {
	store := newTestStore(t)
	fs := memfs.New()
	writeFiles(t, fs, map[string]string{
		".gitignore":        "*.log\nbuild/\n!keep.log\n/root-only.txt\n",
		"a.txt":             "a\n",
		"a-b.txt":           "ab\n",
		"a/x.txt":           "x\n",
		"debug.log":         "noise\n",
		"keep.log":          "kept\n",
		"build/out.bin":     "bin\n",
		"root-only.txt":     "r\n",
		"sub/root-only.txt": "s\n",
		".git/HEAD":         "ref: refs/heads/main\n",
	})
	if err := fs.MkdirAll("empty/deeper", 0o755); err != nil {
		t.Fatal(err)
	}

	h, err := WriteTree(store, fs, NewIgnoreChecker(fs))
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	var got []string
	err = LsTree(store, h, LsTreeOptions{Recursive: true}, func(p string, _ object.TreeEntry) bool {
		got = append(got, p)
		return true
	})
	if err != nil {
		t.Fatalf("LsTree: %v", err)
	}
	want := []string{".gitignore", "a-b.txt", "a.txt", "a/x.txt", "keep.log", "sub/root-only.txt"}
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("paths = %v, want %v", got, want)
		}
	}

	// Canonical order puts "a-b.txt" before "a.txt" before the "a" subtree.
	tr, err := store.ReadTree(h)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range tr.Entries {
		names = append(names, e.Name)
	}
	if names[1] != "a-b.txt" || names[2] != "a.txt" || names[3] != "a" {
		t.Fatalf("stored order = %v", names)
	}
}

func TestLsTree(t *testing.T) {
	store := newTestStore(t)
	fs := memfs.New()
	writeFiles(t, fs, map[string]string{
		"b.txt":     "b\n",
		"a.txt":     "a\n",
		"dir/c.txt": "c\n",
		"dir/d.txt": "d\n",
	})
	root, err := WriteTree(store, fs, nil)
	if err != nil {
		t.Fatal(err)
	}

	collect := func(opts LsTreeOptions, max int) []string {
		t.Helper()
		var out []string
		err := LsTree(store, root, opts, func(p string, e object.TreeEntry) bool {
			out = append(out, e.Mode+" "+p)
			return max <= 0 || len(out) < max
		})
		if err != nil {
			t.Fatalf("LsTree: %v", err)
		}
		return out
	}

	tests := []struct {
		name string
		opts LsTreeOptions
		max  int
		want []string
	}{
		{"top level", LsTreeOptions{}, 0, []string{"100644 a.txt", "100644 b.txt", "40000 dir"}},
		{"recursive", LsTreeOptions{Recursive: true}, 0, []string{"100644 a.txt", "100644 b.txt", "100644 dir/c.txt", "100644 dir/d.txt"}},
		{"names", LsTreeOptions{Names: []string{"dir", "b.txt", "zzz"}}, 0, []string{"100644 b.txt", "40000 dir"}},
		{"early stop", LsTreeOptions{Recursive: true}, 3, []string{"100644 a.txt", "100644 b.txt", "100644 dir/c.txt"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := collect(tc.opts, tc.max)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestLsTreeRejectsNonTree(t *testing.T) {
	store := newTestStore(t)
	blob, err := store.WriteBlob(&object.Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatal(err)
	}
	err = LsTree(store, blob, LsTreeOptions{}, func(string, object.TreeEntry) bool { return true })
	if err == nil {
		t.Fatal("LsTree on a blob should fail")
	}
}

func TestRepoWriteTreeUsesWorktree(t *testing.T) {
	r := newTestRepo(t)
	if err := os.WriteFile(r.RootDir+"/hello.txt", []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := r.WriteTree()
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h != helloTree {
		t.Fatalf("tree = %s, want %s", h, helloTree)
	}
}
