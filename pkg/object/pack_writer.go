package object

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// PackWriter writes version 2 pack streams with zlib-compressed entries. The
// trailer is the SHA-1 of every byte before it.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1cd.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{Version: packVersion, NumObjects: numObjects}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the byte offset of the next entry.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.n
}

func (p *PackWriter) checkWritable() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

// writeParts writes an entry header, an optional base reference and the
// compressed payload as one entry.
func (p *PackWriter) writeParts(objType PackObjectType, base, payload []byte) error {
	compressed, err := compressObject(payload)
	if err != nil {
		return fmt.Errorf("compress %s entry: %w", objType, err)
	}
	if _, err := p.hashedW.Write(encodePackEntryHeader(objType, uint64(len(payload)))); err != nil {
		return fmt.Errorf("write %s header: %w", objType, err)
	}
	if len(base) > 0 {
		if _, err := p.hashedW.Write(base); err != nil {
			return fmt.Errorf("write %s base: %w", objType, err)
		}
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write %s payload: %w", objType, err)
	}
	p.written++
	return nil
}

// WriteEntry appends one literal object entry.
func (p *PackWriter) WriteEntry(objType PackObjectType, data []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	if !objType.IsLiteral() {
		return fmt.Errorf("write entry: %s is not a literal type", objType)
	}
	return p.writeParts(objType, nil, data)
}

// WriteObject appends a literal entry for an object kind.
func (p *PackWriter) WriteObject(objType ObjectType, data []byte) error {
	pt, ok := PackTypeFor(objType)
	if !ok {
		return fmt.Errorf("write object: unknown type %q", objType)
	}
	return p.WriteEntry(pt, data)
}

// WriteRefDelta appends a REF_DELTA entry that rebuilds target from the
// object base.
func (p *PackWriter) WriteRefDelta(base Hash, baseData, targetData []byte) error {
	return p.WriteRefDeltaRaw(base, BuildDelta(baseData, targetData))
}

// WriteRefDeltaRaw appends a REF_DELTA entry with a caller-built delta
// stream, which is written as given.
func (p *PackWriter) WriteRefDeltaRaw(base Hash, delta []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	raw, err := base.Raw()
	if err != nil {
		return fmt.Errorf("ref-delta base: %w", err)
	}
	return p.writeParts(PackRefDelta, raw, delta)
}

// WriteOfsDelta appends an OFS_DELTA entry whose base starts at baseOffset.
func (p *PackWriter) WriteOfsDelta(baseOffset uint64, baseData, targetData []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}
	return p.writeParts(PackOfsDelta, encodeOfsDeltaDistance(current-baseOffset), BuildDelta(baseData, targetData))
}

// Finish validates the object count, writes the trailing checksum, and
// returns it as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}
	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
