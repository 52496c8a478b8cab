package object

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

const (
	// HashSize is the length of a raw SHA-1 digest.
	HashSize = 20
	// HashHexSize is the length of a hex-encoded digest.
	HashHexSize = 2 * HashSize
)

// ZeroHash is the all-zero id git uses for "no object".
const ZeroHash = Hash("0000000000000000000000000000000000000000")

// HashObject computes the SHA-1 of the envelope "type len\0content". The id
// of an object is always the digest of this envelope, never of the payload.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1cd.New()
	h.Write(envelopeHeader(objType, len(data)))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

func envelopeHeader(objType ObjectType, n int) []byte {
	header := make([]byte, 0, len(objType)+12)
	header = append(header, objType...)
	header = append(header, ' ')
	header = strconv.AppendInt(header, int64(n), 10)
	return append(header, 0)
}

// ParseHash validates a 40-character hex id and returns it lowercased.
func ParseHash(s string) (Hash, error) {
	if len(s) != HashHexSize {
		return "", fmt.Errorf("hash length %d, expected %d", len(s), HashHexSize)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("hash contains non-hex characters: %w", err)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// HashFromRaw converts a 20-byte binary digest into a Hash.
func HashFromRaw(raw []byte) (Hash, error) {
	if len(raw) != HashSize {
		return "", fmt.Errorf("raw hash length %d, expected %d", len(raw), HashSize)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// Raw returns the 20-byte binary form of h.
func (h Hash) Raw() ([]byte, error) {
	if len(h) != HashHexSize {
		return nil, fmt.Errorf("hash length %d, expected %d", len(h), HashHexSize)
	}
	return hex.DecodeString(string(h))
}

// Short returns the 7-character abbreviation of h.
func (h Hash) Short() string {
	if len(h) > 7 {
		return string(h[:7])
	}
	return string(h)
}
