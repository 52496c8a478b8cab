package object

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrCorruptObject   = errors.New("corrupt object")
	ErrMalformedObject = errors.New("malformed object")
	ErrUnsupportedMode = errors.New("unsupported tree entry mode")

	ErrUnsupportedDelta = errors.New("unsupported delta type")
	ErrCorruptDelta     = errors.New("corrupt delta")
	ErrDeltaCycle       = errors.New("delta cycle")

	// ErrCorruptPack classifies pack framing failures; it is also an
	// ErrCorruptObject.
	ErrCorruptPack = fmt.Errorf("%w: corrupt pack", ErrCorruptObject)
)

// PackError locates a failure inside a pack stream.
type PackError struct {
	Entry  int // zero-based entry index, -1 for header/trailer
	Offset int // byte offset from the start of the pack
	Err    error
}

func (e *PackError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("pack offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("pack entry %d at offset %d: %v", e.Entry, e.Offset, e.Err)
}

func (e *PackError) Unwrap() error {
	return e.Err
}
