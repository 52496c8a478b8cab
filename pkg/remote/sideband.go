package remote

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sideband channel identifiers.
const (
	SidebandData     byte = 0x01
	SidebandProgress byte = 0x02
	SidebandError    byte = 0x03
)

// maxSidebandPayload leaves room for the band byte inside one pkt-line.
const maxSidebandPayload = MaxPayloadLen - 1

// SidebandWriter writes band-prefixed pkt-lines.
// Frame format: [4 hex length][1 byte channel][payload]
type SidebandWriter struct {
	enc *Encoder
	buf []byte
}

func NewSidebandWriter(w io.Writer) *SidebandWriter {
	return &SidebandWriter{enc: NewEncoder(w)}
}

func (sw *SidebandWriter) writeFrames(channel byte, data []byte) error {
	for {
		n := min(len(data), maxSidebandPayload)
		sw.buf = append(sw.buf[:0], channel)
		sw.buf = append(sw.buf, data[:n]...)
		if err := sw.enc.Encode(sw.buf); err != nil {
			return fmt.Errorf("write sideband frame: %w", err)
		}
		data = data[n:]
		if len(data) == 0 {
			return nil
		}
	}
}

// WriteData sends data on band 1, split across as many frames as needed.
func (sw *SidebandWriter) WriteData(data []byte) error {
	return sw.writeFrames(SidebandData, data)
}

func (sw *SidebandWriter) WriteProgress(msg string) error {
	return sw.writeFrames(SidebandProgress, []byte(msg))
}

func (sw *SidebandWriter) WriteError(msg string) error {
	return sw.writeFrames(SidebandError, []byte(msg))
}

// Flush ends the sideband stream.
func (sw *SidebandWriter) Flush() error {
	return sw.enc.Flush()
}

// SidebandDataReader presents band 1 payloads as a sequential io.Reader,
// discarding progress frames (or forwarding them to a callback). The stream
// ends at a flush or response-end packet.
type SidebandDataReader struct {
	dec        *Decoder
	onProgress func(string)
	buf        []byte
	done       bool
}

func NewSidebandDataReader(dec *Decoder, onProgress func(string)) *SidebandDataReader {
	return &SidebandDataReader{
		dec:        dec,
		onProgress: onProgress,
	}
}

func (dr *SidebandDataReader) Read(p []byte) (int, error) {
	for len(dr.buf) == 0 {
		if dr.done {
			return 0, io.EOF
		}
		pkt, err := dr.dec.Next()
		if err == io.EOF {
			dr.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if !pkt.IsData() {
			dr.done = true
			return 0, io.EOF
		}
		if len(pkt.Payload) == 0 {
			return 0, fmt.Errorf("%w: empty sideband frame", ErrProtocol)
		}
		channel, payload := pkt.Payload[0], pkt.Payload[1:]
		switch channel {
		case SidebandData:
			dr.buf = payload
		case SidebandProgress:
			if dr.onProgress != nil {
				dr.onProgress(string(payload))
			}
		case SidebandError:
			return 0, &RemoteError{Message: strings.TrimSpace(string(payload))}
		default:
			return 0, fmt.Errorf("%w: unknown sideband channel %d", ErrProtocol, channel)
		}
	}

	n := copy(p, dr.buf)
	dr.buf = dr.buf[n:]
	return n, nil
}

// fetchSections are the v2 fetch response section headers that precede the
// packfile section and carry no pack data.
var fetchSections = map[string]bool{
	"acknowledgments": true,
	"shallow-info":    true,
	"wanted-refs":     true,
}

func readFetchResponse(dec *Decoder, onProgress func(string)) ([]byte, error) {
	for {
		pkt, err := dec.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: fetch response ended before pack data", ErrProtocol)
		}
		if err != nil {
			return nil, err
		}
		if !pkt.IsData() {
			continue
		}
		line := strings.TrimSuffix(string(pkt.Payload), "\n")
		switch {
		case line == "packfile":
			return readSidebandPack(dec, onProgress)
		case fetchSections[line]:
			if err := skipSection(dec); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "ERR "):
			return nil, &RemoteError{Message: strings.TrimPrefix(line, "ERR ")}
		default:
			// No section header: the first line is a status marker.
			return readSidebandPack(dec, onProgress)
		}
	}
}

func skipSection(dec *Decoder) error {
	for {
		pkt, err := dec.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: fetch response ended inside a section", ErrProtocol)
		}
		if err != nil {
			return err
		}
		if !pkt.IsData() {
			return nil
		}
	}
}

func readSidebandPack(dec *Decoder, onProgress func(string)) ([]byte, error) {
	data, err := io.ReadAll(NewSidebandDataReader(dec, onProgress))
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, fmt.Errorf("read pack data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: fetch response carried no pack data", ErrProtocol)
	}
	return data, nil
}
