package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/config"
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/remote"
	"github.com/odvcencio/gitlet/pkg/repo"
)

func openRepo() (*repo.Repo, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	r, err := repo.Open(".")
	if err != nil {
		return nil, err
	}
	r.Identity = cfg.Identity()
	return r, nil
}

func clientOptions(cfg *config.Config) remote.ClientOptions {
	return remote.ClientOptions{
		Timeout:     cfg.HTTP.Timeout.Duration,
		MaxAttempts: cfg.HTTP.MaxAttempts,
		UserAgent:   cfg.HTTP.UserAgent,
	}
}

// resolveRevision accepts a full object id or a ref name, optionally
// suffixed with ^{tree} or ^{commit}.
func resolveRevision(r *repo.Repo, rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return "", fmt.Errorf("empty revision")
	}
	var peel object.ObjectType
	for _, kind := range []object.ObjectType{object.TypeTree, object.TypeCommit} {
		if base, ok := strings.CutSuffix(rev, "^{"+string(kind)+"}"); ok {
			rev, peel = base, kind
			break
		}
	}

	h, err := object.ParseHash(rev)
	if err != nil {
		if h, err = r.ResolveRef(rev); err != nil {
			return "", fmt.Errorf("unknown revision %q: %w", rev, err)
		}
	}
	if peel == "" {
		return h, nil
	}
	return peelTo(r.Store, h, peel)
}

// peelTo follows tags and commits until an object of kind want is reached.
func peelTo(store *object.Store, h object.Hash, want object.ObjectType) (object.Hash, error) {
	for range 16 {
		typ, data, err := store.Read(h)
		if err != nil {
			return "", err
		}
		if typ == want {
			return h, nil
		}
		switch typ {
		case object.TypeTag:
			if h, _, err = object.TagTarget(data); err != nil {
				return "", err
			}
		case object.TypeCommit:
			c, err := object.UnmarshalCommit(data)
			if err != nil {
				return "", err
			}
			h = c.TreeHash
		default:
			return "", fmt.Errorf("%s is a %s, cannot peel to %s", h, typ, want)
		}
	}
	return "", fmt.Errorf("%s: too many levels to peel", h)
}
