package object

import (
	"errors"
	"fmt"
)

// ResolvedEntry records the object a pack entry turned into.
type ResolvedEntry struct {
	Hash Hash
	Type ObjectType
}

// ResolveResult summarizes a resolved pack. Entries is aligned with the
// input entry slice.
type ResolveResult struct {
	Entries []ResolvedEntry
	Deltas  int
}

// Hashes returns the resolved ids in pack order.
func (r *ResolveResult) Hashes() []Hash {
	out := make([]Hash, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Hash
	}
	return out
}

type resolveState uint8

const (
	stateUnresolved resolveState = iota
	stateInProgress
	stateDone
)

type resolvedObject struct {
	typ  ObjectType
	data []byte
}

// deltaFailure remembers why a delta could not be resolved, so later
// searches skip it until something new has been resolved.
type deltaFailure struct {
	progress int // value of packResolver.progress at the failure
	cycle    bool
}

// packResolver is an arena over the entries of one pack. Each entry carries
// a state; objects maps every digest produced so far to its content and
// literals maps the digest of every literal entry to its index.
type packResolver struct {
	store    *Store
	entries  []PackEntry
	state    []resolveState
	failed   []*deltaFailure
	out      []ResolvedEntry
	objects  map[Hash]resolvedObject
	literals map[Hash]int

	progress int // successful resolutions so far
	deltas   int
}

// ResolvePack stores every entry of a parsed pack in s, in pack order.
// Literal entries are stored as-is. A ref-delta is applied to its base, which
// may be an object already in the store or any other entry of the pack, in
// any position. Bases that appear later in the pack are resolved first, on
// demand.
//
// A delta whose base cannot be located fails with ErrObjectNotFound. When
// the only entry that could produce the base is one already being resolved
// further up the chain, the failure is ErrDeltaCycle instead.
func ResolvePack(s *Store, entries []PackEntry) (*ResolveResult, error) {
	r := &packResolver{
		store:    s,
		entries:  entries,
		state:    make([]resolveState, len(entries)),
		failed:   make([]*deltaFailure, len(entries)),
		out:      make([]ResolvedEntry, len(entries)),
		objects:  make(map[Hash]resolvedObject, len(entries)),
		literals: make(map[Hash]int),
	}

	for i := range entries {
		e := &entries[i]
		if e.Type == PackRefDelta {
			continue
		}
		objType, ok := e.Type.ObjectType()
		if !ok {
			return nil, &PackError{Entry: i, Offset: int(e.Offset), Err: fmt.Errorf("%w: cannot resolve entry of type %s", ErrUnsupportedDelta, e.Type)}
		}
		h := HashObject(objType, e.Data)
		if _, dup := r.literals[h]; !dup {
			r.literals[h] = i
		}
	}

	for i := range entries {
		if err := r.resolve(i); err != nil {
			var pe *PackError
			if errors.As(err, &pe) {
				return nil, err
			}
			return nil, &PackError{Entry: i, Offset: int(entries[i].Offset), Err: err}
		}
	}

	return &ResolveResult{Entries: r.out, Deltas: r.deltas}, nil
}

func (r *packResolver) commit(i int, objType ObjectType, data []byte) error {
	h, err := r.store.Write(objType, data)
	if err != nil {
		return &PackError{Entry: i, Offset: int(r.entries[i].Offset), Err: fmt.Errorf("store %s: %w", objType, err)}
	}
	r.objects[h] = resolvedObject{typ: objType, data: data}
	r.out[i] = ResolvedEntry{Hash: h, Type: objType}
	r.state[i] = stateDone
	r.progress++
	return nil
}

func (r *packResolver) resolve(i int) error {
	switch r.state[i] {
	case stateDone:
		return nil
	case stateInProgress:
		return fmt.Errorf("%w: entry %d depends on itself", ErrDeltaCycle, i)
	}

	e := &r.entries[i]
	if e.Type != PackRefDelta {
		objType, _ := e.Type.ObjectType()
		return r.commit(i, objType, e.Data)
	}

	baseSize, _, err := deltaSizes(e.Data)
	if err != nil {
		return &PackError{Entry: i, Offset: int(e.Offset), Err: err}
	}

	r.state[i] = stateInProgress
	base, err := r.lookupBase(i, e.BaseHash, baseSize)
	if err != nil {
		r.state[i] = stateUnresolved
		r.failed[i] = &deltaFailure{progress: r.progress, cycle: errors.Is(err, ErrDeltaCycle)}
		return err
	}

	data, err := ApplyDelta(base.data, e.Data)
	if err != nil {
		r.state[i] = stateUnresolved
		return &PackError{Entry: i, Offset: int(e.Offset), Err: fmt.Errorf("apply delta on %s: %w", e.BaseHash, err)}
	}
	r.deltas++
	r.failed[i] = nil
	return r.commit(i, base.typ, data)
}

// available returns the content for h if it was produced by this pack or
// already lives in the store.
func (r *packResolver) available(h Hash) (resolvedObject, bool, error) {
	if obj, ok := r.objects[h]; ok {
		return obj, true, nil
	}
	if !r.store.Has(h) {
		return resolvedObject{}, false, nil
	}
	objType, data, err := r.store.Read(h)
	if err != nil {
		return resolvedObject{}, false, err
	}
	obj := resolvedObject{typ: objType, data: data}
	r.objects[h] = obj
	return obj, true, nil
}

// lookupBase finds the base for entry i. A literal with digest want is
// stored ahead of its turn. Otherwise pending deltas whose declared result
// size equals baseSize are resolved in pack order until one produces want.
// A candidate that is already in progress is a cycle; deltas that failed
// with nothing resolved since are not retried.
func (r *packResolver) lookupBase(i int, want Hash, baseSize uint64) (resolvedObject, error) {
	if obj, ok, err := r.available(want); err != nil || ok {
		return obj, err
	}
	if j, ok := r.literals[want]; ok {
		if err := r.resolve(j); err != nil {
			return resolvedObject{}, err
		}
		obj, _, err := r.available(want)
		return obj, err
	}

	cycle := false
	for j := range r.entries {
		e := &r.entries[j]
		if j == i || e.Type != PackRefDelta || r.state[j] == stateDone {
			continue
		}
		if _, size, err := deltaSizes(e.Data); err != nil || size != baseSize {
			continue
		}
		if r.state[j] == stateInProgress {
			cycle = true
			continue
		}
		if f := r.failed[j]; f != nil && f.progress == r.progress {
			cycle = cycle || f.cycle
			continue
		}
		if err := r.resolve(j); err != nil {
			switch {
			case errors.Is(err, ErrDeltaCycle):
				cycle = true
			case !errors.Is(err, ErrObjectNotFound):
				return resolvedObject{}, err
			}
			continue
		}
		if obj, ok, err := r.available(want); err != nil || ok {
			return obj, err
		}
	}

	if cycle {
		return resolvedObject{}, fmt.Errorf("%w: base %s of entry %d waits on an entry that waits on it", ErrDeltaCycle, want, i)
	}
	return resolvedObject{}, fmt.Errorf("%w: delta base %s of entry %d is not in the pack or the store", ErrObjectNotFound, want, i)
}
