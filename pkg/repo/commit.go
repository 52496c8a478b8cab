package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns the
// encoded signature stored in the commit's signature header.
type CommitSigner func(payload []byte) (string, error)

// CommitTreeOptions describes a commit to construct.
type CommitTreeOptions struct {
	Tree    object.Hash
	Parents []object.Hash
	Author  object.Identity
	// Committer defaults to Author.
	Committer *object.Identity
	// When defaults to time.Now().
	When    time.Time
	Message string
	Signer  CommitSigner
}

// CommitTree writes a commit object for an existing tree and returns its
// id. Parents are optional; a commit without parents has no parent line.
// The message gets a trailing newline if it lacks one.
func CommitTree(store *object.Store, opts CommitTreeOptions) (object.Hash, error) {
	if err := checkTyped(store, opts.Tree, object.TypeTree); err != nil {
		return "", fmt.Errorf("commit-tree: tree: %w", err)
	}
	for _, p := range opts.Parents {
		if err := checkTyped(store, p, object.TypeCommit); err != nil {
			return "", fmt.Errorf("commit-tree: parent: %w", err)
		}
	}
	if strings.TrimSpace(opts.Author.Name) == "" || strings.TrimSpace(opts.Author.Email) == "" {
		return "", errors.New("commit-tree: author identity is required")
	}
	committer := opts.Author
	if opts.Committer != nil {
		committer = *opts.Committer
	}
	when := opts.When
	if when.IsZero() {
		when = time.Now()
	}
	msg := opts.Message
	if msg != "" && !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	c := &object.CommitObj{
		TreeHash:           opts.Tree,
		Parents:            opts.Parents,
		Author:             opts.Author.String(),
		Timestamp:          when.Unix(),
		AuthorTimezone:     object.FormatTimezone(when),
		Committer:          committer.String(),
		CommitterTimestamp: when.Unix(),
		CommitterTimezone:  object.FormatTimezone(when),
		Message:            msg,
	}
	if opts.Signer != nil {
		sig, err := opts.Signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("commit-tree: sign commit: %w", err)
		}
		c.SetSignature(sig)
	}

	h, err := store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("commit-tree: write commit: %w", err)
	}
	return h, nil
}

// CommitTree writes a commit into the repository's store.
func (r *Repo) CommitTree(opts CommitTreeOptions) (object.Hash, error) {
	return CommitTree(r.Store, opts)
}

func checkTyped(store *object.Store, h object.Hash, want object.ObjectType) error {
	if _, err := object.ParseHash(string(h)); err != nil {
		return err
	}
	typ, _, err := store.Read(h)
	if err != nil {
		return err
	}
	if typ != want {
		return fmt.Errorf("%s is a %s, not a %s", h, typ, want)
	}
	return nil
}

// LogEntry is one commit visited by Log.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks history from start following first-parent links and returns
// up to limit commits, newest first. A limit <= 0 means no limit. The walk
// stops quietly at a parent that is not in the store (shallow history).
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	current := start
	for limit <= 0 || len(out) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrObjectNotFound) && len(out) > 0 {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		out = append(out, LogEntry{Hash: current, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return out, nil
}
