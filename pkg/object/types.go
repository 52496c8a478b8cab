package object

import (
	"fmt"
	"strings"
	"time"
)

// Hash is a 40-character lowercase hex-encoded SHA-1 object id.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// Valid reports whether t is one of the four git object kinds.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return true
	default:
		return false
	}
}

const (
	// Tree mode constants in git's canonical (unpadded) form.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeGitlink    = "160000"
)

// Object is a decoded object: its kind and raw payload (without envelope).
type Object struct {
	Type ObjectType
	Data []byte
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds tree entries in stored order.
type TreeObj struct {
	Entries []TreeEntry
}

// Identity is the name and email recorded in commit author/committer lines.
type Identity struct {
	Name  string
	Email string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s <%s>", strings.TrimSpace(id.Name), strings.TrimSpace(id.Email))
}

// CommitHeader is a header line that has no dedicated CommitObj field, such
// as gpgsig or encoding. Multi-line values keep their embedded newlines.
type CommitHeader struct {
	Key   string
	Value string
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash           Hash
	Parents            []Hash
	Author             string // "Name <email>"
	Timestamp          int64
	AuthorTimezone     string // "+0000"
	Committer          string
	CommitterTimestamp int64
	CommitterTimezone  string
	ExtraHeaders       []CommitHeader
	Message            string
}

// Signature returns the value of the gpgsig header, if any.
func (c *CommitObj) Signature() string {
	for _, h := range c.ExtraHeaders {
		if h.Key == SignatureHeader {
			return h.Value
		}
	}
	return ""
}

// FormatTimezone renders the offset of t the way commit headers do (+hhmm).
func FormatTimezone(t time.Time) string {
	return t.Format("-0700")
}
