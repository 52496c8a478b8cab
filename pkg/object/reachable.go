package object

import (
	"fmt"
	"sort"
	"strings"
)

// CheckConnectivity walks everything reachable from roots and fails with
// ErrObjectNotFound on the first missing object. It returns the number of
// distinct objects visited. Gitlink entries name commits in other
// repositories and are not followed.
func (s *Store) CheckConnectivity(roots []Hash) (int, error) {
	n := 0
	err := s.walk(roots, func(Hash, ObjectType, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Verify re-reads every object reachable from roots. Store.Read checks that
// each object hashes back to its id, so any stored object that does not
// surfaces as ErrCorruptObject.
func (s *Store) Verify(roots []Hash) (int, error) {
	return s.CheckConnectivity(roots)
}

func (s *Store) walk(roots []Hash, visit func(Hash, ObjectType, []byte) error) error {
	roots = uniqueNormalizedHashes(roots)
	seen := make(map[Hash]struct{}, len(roots))

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}

		objType, data, err := s.Read(h)
		if err != nil {
			return fmt.Errorf("reachable read %s: %w", h, err)
		}
		if err := visit(h, objType, data); err != nil {
			return err
		}
		refs, err := referencedHashes(objType, data)
		if err != nil {
			return fmt.Errorf("reachable parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}
	return nil
}

func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeTag:
		target, _, err := TagTarget(data)
		if err != nil {
			return nil, err
		}
		return []Hash{target}, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		var refs []Hash
		for e, err := range TreeEntries(data) {
			if err != nil {
				return nil, err
			}
			if e.Mode == TreeModeGitlink {
				continue
			}
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.ToLower(strings.TrimSpace(string(h))))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
