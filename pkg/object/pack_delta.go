package object

import (
	"bytes"
	"fmt"
)

// DeltaOp distinguishes the two delta instruction kinds.
type DeltaOp uint8

const (
	DeltaCopy DeltaOp = iota + 1
	DeltaInsert
)

// DeltaInstruction is one step of a delta stream: copy Length bytes from the
// base at Offset, or insert Data verbatim.
type DeltaInstruction struct {
	Op     DeltaOp
	Offset uint64
	Length uint64
	Data   []byte
}

// Delta is a parsed delta stream. BaseSize and ResultSize come from the two
// leading varints and are used for validation only.
type Delta struct {
	BaseSize     uint64
	ResultSize   uint64
	Instructions []DeltaInstruction
}

func encodeDeltaVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func decodeDeltaVarint(cur *packCursor) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := cur.readByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// deltaSizes reads the base and result sizes that open a delta stream.
func deltaSizes(delta []byte) (base, result uint64, err error) {
	cur := &packCursor{data: delta}
	if base, err = decodeDeltaVarint(cur); err != nil {
		return 0, 0, fmt.Errorf("%w: read base size: %v", ErrCorruptDelta, err)
	}
	if result, err = decodeDeltaVarint(cur); err != nil {
		return 0, 0, fmt.Errorf("%w: read result size: %v", ErrCorruptDelta, err)
	}
	return base, result, nil
}

// ParseDelta decodes a delta stream into its instructions.
func ParseDelta(delta []byte) (*Delta, error) {
	cur := &packCursor{data: delta}

	baseSize, err := decodeDeltaVarint(cur)
	if err != nil {
		return nil, fmt.Errorf("%w: read base size: %v", ErrCorruptDelta, err)
	}
	resultSize, err := decodeDeltaVarint(cur)
	if err != nil {
		return nil, fmt.Errorf("%w: read result size: %v", ErrCorruptDelta, err)
	}

	d := &Delta{BaseSize: baseSize, ResultSize: resultSize}
	for cur.remaining() > 0 {
		cmd, _ := cur.readByte()
		if cmd&0x80 != 0 {
			// Bits 0-3 flag which offset bytes follow, bits 4-6 which size
			// bytes; absent bytes are zero and never appear in the stream.
			var offset, size uint64
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) == 0 {
					continue
				}
				b, err := cur.readByte()
				if err != nil {
					return nil, fmt.Errorf("%w: copy offset byte %d: %v", ErrCorruptDelta, i, err)
				}
				offset |= uint64(b) << (8 * i)
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(0x10<<i) == 0 {
					continue
				}
				b, err := cur.readByte()
				if err != nil {
					return nil, fmt.Errorf("%w: copy size byte %d: %v", ErrCorruptDelta, i, err)
				}
				size |= uint64(b) << (8 * i)
			}
			if size == 0 {
				size = 0x10000
			}
			d.Instructions = append(d.Instructions, DeltaInstruction{Op: DeltaCopy, Offset: offset, Length: size})
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("%w: reserved instruction 0", ErrCorruptDelta)
		}
		lit, err := cur.readN(int(cmd))
		if err != nil {
			return nil, fmt.Errorf("%w: insert of %d bytes: %v", ErrCorruptDelta, cmd, err)
		}
		d.Instructions = append(d.Instructions, DeltaInstruction{Op: DeltaInsert, Length: uint64(cmd), Data: lit})
	}
	return d, nil
}

// Apply runs the instructions against base. A copy that reaches past the end
// of base, or an output whose length differs from ResultSize, is
// ErrCorruptDelta.
func (d *Delta) Apply(base []byte) ([]byte, error) {
	if d.BaseSize != uint64(len(base)) {
		return nil, fmt.Errorf("%w: base size mismatch: delta expects %d, base has %d", ErrCorruptDelta, d.BaseSize, len(base))
	}

	out := make([]byte, 0, min(d.ResultSize, 1<<24))
	for _, ins := range d.Instructions {
		switch ins.Op {
		case DeltaCopy:
			end := ins.Offset + ins.Length
			if end < ins.Offset || end > uint64(len(base)) {
				return nil, fmt.Errorf("%w: copy [%d,%d) exceeds base length %d", ErrCorruptDelta, ins.Offset, end, len(base))
			}
			out = append(out, base[ins.Offset:end]...)
		case DeltaInsert:
			out = append(out, ins.Data...)
		}
		if uint64(len(out)) > d.ResultSize {
			return nil, fmt.Errorf("%w: output exceeds declared result size %d", ErrCorruptDelta, d.ResultSize)
		}
	}

	if uint64(len(out)) != d.ResultSize {
		return nil, fmt.Errorf("%w: result size mismatch: got %d, declared %d", ErrCorruptDelta, len(out), d.ResultSize)
	}
	return out, nil
}

// ApplyDelta parses delta and applies it to base.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	d, err := ParseDelta(delta)
	if err != nil {
		return nil, err
	}
	return d.Apply(base)
}

// MarshalDelta encodes a delta stream from its instructions.
func MarshalDelta(d *Delta) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(d.BaseSize))
	out.Write(encodeDeltaVarint(d.ResultSize))
	for _, ins := range d.Instructions {
		switch ins.Op {
		case DeltaCopy:
			writeDeltaCopy(&out, ins.Offset, ins.Length)
		case DeltaInsert:
			writeDeltaInsert(&out, ins.Data)
		}
	}
	return out.Bytes()
}

func writeDeltaCopy(out *bytes.Buffer, offset, length uint64) {
	for length > 0 {
		chunk := min(length, 0xffffff)
		cmd := byte(0x80)
		var args []byte
		for i := uint(0); i < 4; i++ {
			if b := byte(offset >> (8 * i)); b != 0 {
				cmd |= 1 << i
				args = append(args, b)
			}
		}
		for i := uint(0); i < 3; i++ {
			if b := byte(chunk >> (8 * i)); b != 0 {
				cmd |= 0x10 << i
				args = append(args, b)
			}
		}
		out.WriteByte(cmd)
		out.Write(args)
		offset += chunk
		length -= chunk
	}
}

func writeDeltaInsert(out *bytes.Buffer, data []byte) {
	for len(data) > 0 {
		chunk := min(len(data), 127)
		out.WriteByte(byte(chunk))
		out.Write(data[:chunk])
		data = data[chunk:]
	}
}

// BuildDelta returns a delta that turns base into target. It copies the
// longest common prefix and suffix from base and inserts the middle.
func BuildDelta(base, target []byte) []byte {
	prefix := 0
	for prefix < len(base) && prefix < len(target) && base[prefix] == target[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(base)-prefix && suffix < len(target)-prefix &&
		base[len(base)-1-suffix] == target[len(target)-1-suffix] {
		suffix++
	}

	d := &Delta{BaseSize: uint64(len(base)), ResultSize: uint64(len(target))}
	if prefix > 0 {
		d.Instructions = append(d.Instructions, DeltaInstruction{Op: DeltaCopy, Offset: 0, Length: uint64(prefix)})
	}
	if mid := target[prefix : len(target)-suffix]; len(mid) > 0 {
		d.Instructions = append(d.Instructions, DeltaInstruction{Op: DeltaInsert, Length: uint64(len(mid)), Data: mid})
	}
	if suffix > 0 {
		d.Instructions = append(d.Instructions, DeltaInstruction{
			Op:     DeltaCopy,
			Offset: uint64(len(base) - suffix),
			Length: uint64(suffix),
		})
	}
	return MarshalDelta(d)
}

// encodeOfsDeltaDistance encodes a backward distance for OFS_DELTA entries.
func encodeOfsDeltaDistance(distance uint64) []byte {
	if distance == 0 {
		return []byte{0}
	}
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}
