package remote

import (
	"fmt"
	"io"
)

const (
	pktLenSize = 4

	// MaxPktLen is the largest total pkt-line length, prefix included.
	MaxPktLen = 65520
	// MaxPayloadLen is the largest payload a single pkt-line can carry.
	MaxPayloadLen = MaxPktLen - pktLenSize
)

// PacketKind distinguishes data lines from the special zero-payload packets.
type PacketKind int

const (
	PacketData        PacketKind = iota
	PacketFlush                  // 0000
	PacketDelim                  // 0001
	PacketResponseEnd            // 0002
)

func (k PacketKind) String() string {
	switch k {
	case PacketData:
		return "data"
	case PacketFlush:
		return "flush"
	case PacketDelim:
		return "delim"
	case PacketResponseEnd:
		return "response-end"
	default:
		return fmt.Sprintf("packet(%d)", int(k))
	}
}

// Packet is one decoded pkt-line. Payload is nil for special packets.
type Packet struct {
	Kind    PacketKind
	Payload []byte
}

// IsData reports whether p carries a payload line.
func (p Packet) IsData() bool {
	return p.Kind == PacketData
}

var (
	flushPkt       = []byte("0000")
	delimPkt       = []byte("0001")
	responseEndPkt = []byte("0002")
)

const hexDigits = "0123456789abcdef"

// EncodeLine frames payload with its 4-hex-digit total length.
func EncodeLine(payload []byte) ([]byte, error) {
	return AppendLine(nil, payload)
}

// AppendLine appends the framed form of payload to dst.
func AppendLine(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return dst, fmt.Errorf("%w: pkt-line payload %d bytes exceeds %d", ErrProtocol, len(payload), MaxPayloadLen)
	}
	n := len(payload) + pktLenSize
	dst = append(dst, hexDigits[n>>12&0xf], hexDigits[n>>8&0xf], hexDigits[n>>4&0xf], hexDigits[n&0xf])
	return append(dst, payload...), nil
}

// DecodeLine reads one pkt-line from the front of buf and returns it along
// with the unconsumed remainder.
func DecodeLine(buf []byte) (Packet, []byte, error) {
	if len(buf) < pktLenSize {
		return Packet{}, buf, fmt.Errorf("%w: truncated pkt-line length (%d bytes)", ErrProtocol, len(buf))
	}
	n, err := parsePktLen(buf[:pktLenSize])
	if err != nil {
		return Packet{}, buf, err
	}
	rest := buf[pktLenSize:]
	switch n {
	case 0:
		return Packet{Kind: PacketFlush}, rest, nil
	case 1:
		return Packet{Kind: PacketDelim}, rest, nil
	case 2:
		return Packet{Kind: PacketResponseEnd}, rest, nil
	case 3:
		return Packet{}, buf, fmt.Errorf("%w: invalid pkt-line length 0003", ErrProtocol)
	}
	size := n - pktLenSize
	if size > len(rest) {
		return Packet{}, buf, fmt.Errorf("%w: pkt-line declares %d bytes, %d remain", ErrProtocol, size, len(rest))
	}
	return Packet{Kind: PacketData, Payload: rest[:size:size]}, rest[size:], nil
}

func parsePktLen(b []byte) (int, error) {
	n := 0
	for _, c := range b {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, fmt.Errorf("%w: invalid pkt-line length %q", ErrProtocol, b)
		}
		n = n<<4 | int(v)
	}
	return n, nil
}

// Encoder writes pkt-line records to an underlying writer.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes payload as a single pkt-line.
func (e *Encoder) Encode(payload []byte) error {
	var err error
	e.buf, err = AppendLine(e.buf[:0], payload)
	if err != nil {
		return err
	}
	_, err = e.w.Write(e.buf)
	return err
}

// EncodeString writes s as a single pkt-line.
func (e *Encoder) EncodeString(s string) error {
	return e.Encode([]byte(s))
}

// Encodef formats according to format and writes the result as one pkt-line.
func (e *Encoder) Encodef(format string, args ...any) error {
	return e.EncodeString(fmt.Sprintf(format, args...))
}

// Flush writes a flush-pkt.
func (e *Encoder) Flush() error {
	_, err := e.w.Write(flushPkt)
	return err
}

// Delim writes a delim-pkt.
func (e *Encoder) Delim() error {
	_, err := e.w.Write(delimPkt)
	return err
}

// ResponseEnd writes a response-end-pkt.
func (e *Encoder) ResponseEnd() error {
	_, err := e.w.Write(responseEndPkt)
	return err
}

// Decoder reads pkt-line records from an underlying reader.
type Decoder struct {
	r   io.Reader
	hdr [pktLenSize]byte
	buf []byte
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next returns the next packet. It returns io.EOF only when the stream ends
// cleanly on a packet boundary. The returned payload is valid until the
// following call to Next.
func (d *Decoder) Next() (Packet, error) {
	if _, err := io.ReadFull(d.r, d.hdr[:]); err != nil {
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("%w: read pkt-line length: %v", ErrProtocol, err)
	}
	n, err := parsePktLen(d.hdr[:])
	if err != nil {
		return Packet{}, err
	}
	switch n {
	case 0:
		return Packet{Kind: PacketFlush}, nil
	case 1:
		return Packet{Kind: PacketDelim}, nil
	case 2:
		return Packet{Kind: PacketResponseEnd}, nil
	case 3:
		return Packet{}, fmt.Errorf("%w: invalid pkt-line length 0003", ErrProtocol)
	}
	size := n - pktLenSize
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	d.buf = d.buf[:size]
	if _, err := io.ReadFull(d.r, d.buf); err != nil {
		return Packet{}, fmt.Errorf("%w: pkt-line declares %d bytes: %v", ErrProtocol, size, err)
	}
	return Packet{Kind: PacketData, Payload: d.buf}, nil
}
