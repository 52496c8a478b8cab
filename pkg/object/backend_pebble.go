package object

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend keeps compressed objects in a pebble key-value store, keyed
// by the raw 20-byte id.
type PebbleBackend struct {
	db *pebble.DB
}

// OpenPebbleBackend opens (or creates) a pebble database at dir.
func OpenPebbleBackend(dir string) (*PebbleBackend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble object db %s: %w", dir, err)
	}
	return &PebbleBackend{db: db}, nil
}

func pebbleKey(h Hash) ([]byte, error) {
	raw, err := h.Raw()
	if err != nil {
		return nil, fmt.Errorf("invalid object id %q: %w", h, err)
	}
	return raw, nil
}

func (b *PebbleBackend) Has(h Hash) (bool, error) {
	key, err := pebbleKey(h)
	if err != nil {
		return false, err
	}
	_, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (b *PebbleBackend) ReadRaw(h Hash) ([]byte, error) {
	key, err := pebbleKey(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	value, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The value is only valid until closer.Close.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// WriteRaw commits the object with a synced single-key write, which pebble
// applies atomically.
func (b *PebbleBackend) WriteRaw(h Hash, compressed []byte) error {
	key, err := pebbleKey(h)
	if err != nil {
		return err
	}
	return b.db.Set(key, compressed, pebble.Sync)
}

func (b *PebbleBackend) Close() error {
	return b.db.Close()
}
