package object

import (
	"encoding/binary"
	"fmt"
)

const (
	packHeaderSize = 12
	packVersion    = 2
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// PackObjectType is the Git pack object type encoding used in object entry
// headers. Values match the canonical Git wire/storage format.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

func (t PackObjectType) String() string {
	switch t {
	case PackCommit:
		return "commit"
	case PackTree:
		return "tree"
	case PackBlob:
		return "blob"
	case PackTag:
		return "tag"
	case PackOfsDelta:
		return "ofs-delta"
	case PackRefDelta:
		return "ref-delta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsLiteral reports whether entries of this type carry a full object payload.
func (t PackObjectType) IsLiteral() bool {
	_, ok := t.ObjectType()
	return ok
}

// ObjectType maps a literal pack type to its object kind.
func (t PackObjectType) ObjectType() (ObjectType, bool) {
	switch t {
	case PackCommit:
		return TypeCommit, true
	case PackTree:
		return TypeTree, true
	case PackBlob:
		return TypeBlob, true
	case PackTag:
		return TypeTag, true
	default:
		return "", false
	}
}

// PackTypeFor maps an object kind to its literal pack type.
func PackTypeFor(t ObjectType) (PackObjectType, bool) {
	switch t {
	case TypeCommit:
		return PackCommit, true
	case TypeTree:
		return PackTree, true
	case TypeBlob:
		return PackBlob, true
	case TypeTag:
		return PackTag, true
	default:
		return 0, false
	}
}

// PackHeader is the fixed-size Git pack header.
//
// Bytes:
//   - 0..3:  "PACK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of objects (big-endian)
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// Marshal serializes the header to the canonical 12-byte pack header.
func (h PackHeader) Marshal() []byte {
	buf := make([]byte, packHeaderSize)
	copy(buf[:4], packMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumObjects)
	return buf
}

// UnmarshalPackHeader parses a pack header. The version field is recorded
// but not checked.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("%w: header too short: got %d bytes", ErrCorruptPack, len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, fmt.Errorf("%w: invalid pack magic %q", ErrCorruptPack, data[:4])
	}
	return &PackHeader{
		Version:    binary.BigEndian.Uint32(data[4:8]),
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// encodePackEntryHeader encodes the variable-length object entry header used in
// Git pack files.
func encodePackEntryHeader(objType PackObjectType, size uint64) []byte {
	b := byte((objType & 0x7) << 4)
	b |= byte(size & 0x0f)
	size >>= 4

	out := make([]byte, 0, 10)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)

	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}

	return out
}
