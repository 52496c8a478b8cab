package object

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pjbgf/sha1cd"
)

var errPackTruncated = errors.New("unexpected end of pack data")

// PackEntry represents one object entry in a pack stream, before delta
// resolution. Data holds the inflated literal payload, or the inflated delta
// instruction stream for ref-delta entries.
type PackEntry struct {
	Type     PackObjectType
	Size     uint64 // declared inflated size; advisory
	Data     []byte
	BaseHash Hash // ref-delta only
	Offset   uint64
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash // empty when the stream carried no trailer
}

// packCursor is a read position over an in-memory pack. Every read is bounds
// checked and reports errPackTruncated instead of panicking.
type packCursor struct {
	data []byte
	pos  int
}

func (c *packCursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *packCursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, errPackTruncated
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *packCursor) readN(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, errPackTruncated
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// inflate decompresses the zlib stream starting at the cursor and advances
// the cursor to the first byte after it. The pack carries no length for the
// compressed block, so the position comes from how many bytes the inflater
// consumed; bytes.Reader is an io.ByteReader, so zlib never reads ahead.
func (c *packCursor) inflate(sizeHint uint64) ([]byte, error) {
	if c.remaining() == 0 {
		return nil, errPackTruncated
	}
	sub := bytes.NewReader(c.data[c.pos:])
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}

	var out bytes.Buffer
	if sizeHint > 0 && sizeHint < 1<<30 {
		out.Grow(int(sizeHint))
	}
	if _, err := io.Copy(&out, zr); err != nil {
		_ = zr.Close()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("decompress: %w", errPackTruncated)
		}
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("close zlib stream: %w", err)
	}

	c.pos += c.remaining() - sub.Len()
	return out.Bytes(), nil
}

// readEntryHeader decodes the type/size varint that starts every entry: the
// first byte carries the type in bits 4-6 and the low four size bits, each
// continuation byte adds seven more size bits.
func (c *packCursor) readEntryHeader() (PackObjectType, uint64, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, 0, fmt.Errorf("entry header: %w", err)
	}
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)

	for b&0x80 != 0 {
		b, err = c.readByte()
		if err != nil {
			return 0, 0, fmt.Errorf("entry header: %w", err)
		}
		if shift > 57 {
			return 0, 0, fmt.Errorf("entry header: size varint too long")
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}
	return objType, size, nil
}

// ReadPack parses a full pack byte slice into its entries. The pack is read
// sequentially: the 12-byte header, exactly NumObjects entries, and then an
// optional 20-byte SHA-1 trailer which is verified when present.
func ReadPack(data []byte) (*PackFile, error) {
	header, err := UnmarshalPackHeader(data)
	if err != nil {
		return nil, &PackError{Entry: -1, Offset: 0, Err: err}
	}

	cur := &packCursor{data: data, pos: packHeaderSize}
	entries := make([]PackEntry, 0, min(header.NumObjects, 1<<16))
	for i := 0; i < int(header.NumObjects); i++ {
		start := cur.pos
		entry, err := readPackEntry(cur)
		if err != nil {
			return nil, &PackError{Entry: i, Offset: start, Err: classifyPackErr(err)}
		}
		entry.Offset = uint64(start)
		entries = append(entries, entry)
	}

	pf := &PackFile{Header: *header, Entries: entries}
	switch rest := cur.remaining(); {
	case rest == 0:
		// No trailer.
	case rest == HashSize:
		h := sha1cd.New()
		h.Write(data[:cur.pos])
		sum := h.Sum(nil)
		if !bytes.Equal(sum, data[cur.pos:]) {
			return nil, &PackError{Entry: -1, Offset: cur.pos, Err: fmt.Errorf("%w: checksum mismatch", ErrCorruptPack)}
		}
		pf.Checksum = Hash(hex.EncodeToString(sum))
	default:
		return nil, &PackError{Entry: -1, Offset: cur.pos, Err: fmt.Errorf("%w: %d trailing bytes after last entry", ErrCorruptPack, rest)}
	}
	return pf, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

func readPackEntry(cur *packCursor) (PackEntry, error) {
	objType, size, err := cur.readEntryHeader()
	if err != nil {
		return PackEntry{}, err
	}

	switch {
	case objType.IsLiteral():
		data, err := cur.inflate(size)
		if err != nil {
			return PackEntry{}, err
		}
		return PackEntry{Type: objType, Size: size, Data: data}, nil

	case objType == PackRefDelta:
		raw, err := cur.readN(HashSize)
		if err != nil {
			return PackEntry{}, fmt.Errorf("ref-delta base id: %w", err)
		}
		base, _ := HashFromRaw(raw)
		delta, err := cur.inflate(size)
		if err != nil {
			return PackEntry{}, err
		}
		return PackEntry{Type: objType, Size: size, Data: delta, BaseHash: base}, nil

	case objType == PackOfsDelta:
		return PackEntry{}, fmt.Errorf("%w: offset-delta entries are not supported", ErrUnsupportedDelta)

	default:
		return PackEntry{}, fmt.Errorf("%w: invalid object type %d", ErrCorruptPack, objType)
	}
}

func classifyPackErr(err error) error {
	if errors.Is(err, ErrUnsupportedDelta) || errors.Is(err, ErrCorruptObject) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCorruptPack, err)
}
