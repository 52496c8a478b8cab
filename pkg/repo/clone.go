package repo

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/remote"
)

// DefaultRemote is the remote name clone records.
const DefaultRemote = "origin"

// CloneOptions configures Clone.
type CloneOptions struct {
	URL string
	// Dir defaults to the last path segment of URL without ".git".
	Dir string
	// Branch overrides the remote's default branch.
	Branch string
	// Progress receives human-readable progress; nil discards it.
	Progress      io.Writer
	ObjectBackend string
	Client        remote.ClientOptions
	// Identity is recorded in reflog entries.
	Identity object.Identity
}

// CloneResult summarizes a finished clone.
type CloneResult struct {
	Repo *Repo
	// Ref is the remote ref that was cloned, e.g. "refs/heads/main".
	Ref     string
	Commit  object.Hash
	Objects int
	Deltas  int
}

// Clone fetches the selected branch of a smart-HTTP remote into a new
// repository and renders its tree into the worktree. On failure any
// partially written objects and files are left in place.
func Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error) {
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	client, err := remote.NewClientWithOptions(opts.URL, opts.Client)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	ep := client.Endpoint()
	dir := opts.Dir
	if strings.TrimSpace(dir) == "" {
		dir = ep.Name
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	r, err := InitWithOptions(dir, InitOptions{ObjectBackend: opts.ObjectBackend})
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	r.Identity = opts.Identity
	res, err := cloneInto(ctx, r, client, opts.Branch, progress)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("clone: %w", err)
	}
	return res, nil
}

func cloneInto(ctx context.Context, r *Repo, client *remote.Client, branch string, progress io.Writer) (*CloneResult, error) {
	ep := client.Endpoint()
	fmt.Fprintf(progress, "Cloning %s into %s\n", ep.BaseURL, r.RootDir)

	adv, err := client.Discover(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := adv.SelectBranch(branch)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(progress, "Downloading %s (%s)\n", ref.Name, ref.Hash)

	packData, err := client.FetchPack(ctx, ref.Hash, func(s string) {
		fmt.Fprint(progress, s)
	})
	if err != nil {
		return nil, err
	}
	pack, err := object.ReadPack(packData)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(progress, "Processing %d objects\n", len(pack.Entries))

	resolved, err := object.ResolvePack(r.Store, pack.Entries)
	if err != nil {
		return nil, err
	}

	commit, err := peelToCommit(r.Store, ref.Hash)
	if err != nil {
		return nil, err
	}
	if _, err := r.Store.CheckConnectivity([]object.Hash{commit}); err != nil {
		return nil, fmt.Errorf("connectivity check: %w", err)
	}

	if err := r.SetRemote(DefaultRemote, ep.BaseURL); err != nil {
		return nil, err
	}
	reason := "clone: from " + ep.BaseURL
	if short, ok := strings.CutPrefix(ref.Name, "refs/heads/"); ok {
		if err := r.UpdateRef(ref.Name, commit, reason); err != nil {
			return nil, err
		}
		if err := r.UpdateRef("refs/remotes/"+DefaultRemote+"/"+short, commit, reason); err != nil {
			return nil, err
		}
		if err := r.SetSymbolicHead(ref.Name); err != nil {
			return nil, err
		}
		if err := r.SetBranchUpstream(short, DefaultRemote); err != nil {
			return nil, err
		}
	} else if err := r.SetDetachedHead(commit); err != nil {
		return nil, err
	}

	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return nil, err
	}
	if err := r.Checkout(c.TreeHash); err != nil {
		return nil, err
	}

	return &CloneResult{
		Repo:    r,
		Ref:     ref.Name,
		Commit:  commit,
		Objects: len(resolved.Entries),
		Deltas:  resolved.Deltas,
	}, nil
}

// peelToCommit follows annotated tags until it reaches a commit.
func peelToCommit(store *object.Store, h object.Hash) (object.Hash, error) {
	for range 16 {
		typ, data, err := store.Read(h)
		if err != nil {
			return "", fmt.Errorf("fetched object %s: %w", h, err)
		}
		switch typ {
		case object.TypeCommit:
			return h, nil
		case object.TypeTag:
			target, _, err := object.TagTarget(data)
			if err != nil {
				return "", fmt.Errorf("tag %s: %w", h, err)
			}
			h = target
		default:
			return "", fmt.Errorf("%s is a %s, not a commit: %w", h, typ, object.ErrCorruptObject)
		}
	}
	return "", fmt.Errorf("tag chain at %s too deep: %w", h, object.ErrCorruptObject)
}
