package object

import (
	"bytes"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Encode returns the stored representation "type len\0payload".
func Encode(objType ObjectType, data []byte) []byte {
	header := envelopeHeader(objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	return append(out, data...)
}

// Decode parses a stored representation back into an Object. It fails with
// ErrMalformedObject if the header terminator is missing, the header is not
// "type len", or the declared length disagrees with the payload.
func Decode(raw []byte) (*Object, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return nil, fmt.Errorf("%w: missing header terminator", ErrMalformedObject)
	}
	header := string(raw[:nul])
	content := raw[nul+1:]

	kind, size, ok := strings.Cut(header, " ")
	if !ok {
		return nil, fmt.Errorf("%w: invalid header %q", ErrMalformedObject, header)
	}
	objType := ObjectType(kind)
	if !objType.Valid() {
		return nil, fmt.Errorf("%w: unknown object type %q", ErrMalformedObject, kind)
	}
	length, err := strconv.Atoi(size)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: invalid length %q", ErrMalformedObject, size)
	}
	if len(content) != length {
		return nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrMalformedObject, length, len(content))
	}
	return &Object{Type: objType, Data: content}, nil
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj in the order the entries are given. Each
// entry is "mode name\0" followed by the 20 raw digest bytes. Callers that
// want a canonical tree sort with SortTreeEntries first.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range tr.Entries {
		if err := validateTreeMode(e.Mode); err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		if err := validateTreeName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree entry: %w", err)
		}
		raw, err := e.Hash.Raw()
		if err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		buf.WriteString(e.Mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses every entry of a tree payload, preserving stored order.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for e, err := range TreeEntries(data) {
		if err != nil {
			return nil, err
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, nil
}

// TreeEntries lazily decodes a tree payload. Iteration stops at the first
// malformed entry, which is yielded as an error. Ranging again restarts from
// the first entry.
func TreeEntries(data []byte) iter.Seq2[TreeEntry, error] {
	return func(yield func(TreeEntry, error) bool) {
		rest := data
		for len(rest) > 0 {
			e, n, err := parseTreeEntry(rest)
			if err != nil {
				yield(TreeEntry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
			rest = rest[n:]
		}
	}
}

func parseTreeEntry(data []byte) (TreeEntry, int, error) {
	sp := bytes.IndexByte(data, ' ')
	if sp <= 0 {
		return TreeEntry{}, 0, fmt.Errorf("%w: tree entry missing mode", ErrMalformedObject)
	}
	nul := bytes.IndexByte(data[sp+1:], 0)
	if nul < 0 {
		return TreeEntry{}, 0, fmt.Errorf("%w: tree entry missing name terminator", ErrMalformedObject)
	}
	nul += sp + 1
	end := nul + 1 + HashSize
	if end > len(data) {
		return TreeEntry{}, 0, fmt.Errorf("%w: tree entry truncated digest", ErrMalformedObject)
	}

	mode := string(data[:sp])
	if err := validateTreeMode(mode); err != nil {
		return TreeEntry{}, 0, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	name := string(data[sp+1 : nul])
	if err := validateTreeName(name); err != nil {
		return TreeEntry{}, 0, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	h, _ := HashFromRaw(data[nul+1 : end])
	return TreeEntry{Mode: mode, Name: name, Hash: h}, end, nil
}

func validateTreeMode(mode string) error {
	if mode == "" || len(mode) > 6 {
		return fmt.Errorf("invalid mode %q", mode)
	}
	for i := 0; i < len(mode); i++ {
		if mode[i] < '0' || mode[i] > '7' {
			return fmt.Errorf("invalid mode %q", mode)
		}
	}
	return nil
}

func validateTreeName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

// SortTreeEntries orders entries the way git does for canonical trees:
// byte-wise by name, with directory names compared as if they ended in "/".
func SortTreeEntries(entries []TreeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H            (zero or more)
//	author A T Z
//	committer C T Z
//	<extra headers>     (continuation lines start with a space)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s %d %s\n", c.Author, c.Timestamp, timezoneOrUTC(c.AuthorTimezone))
	committer, ts, tz := c.Committer, c.CommitterTimestamp, c.CommitterTimezone
	if committer == "" {
		committer, ts, tz = c.Author, c.Timestamp, c.AuthorTimezone
	}
	fmt.Fprintf(&buf, "committer %s %d %s\n", committer, ts, timezoneOrUTC(tz))
	for _, h := range c.ExtraHeaders {
		buf.WriteString(h.Key)
		buf.WriteByte(' ')
		buf.WriteString(strings.ReplaceAll(h.Value, "\n", "\n "))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func timezoneOrUTC(tz string) string {
	if strings.TrimSpace(tz) == "" {
		return "+0000"
	}
	return tz
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	var header, message string
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		header = string(data[:idx])
		message = string(data[idx+2:])
	} else {
		header = strings.TrimSuffix(string(data), "\n")
	}

	c := &CommitObj{Message: message}
	var lines []CommitHeader
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, " ") {
			if len(lines) == 0 {
				return nil, fmt.Errorf("%w: commit continuation line without header", ErrMalformedObject)
			}
			lines[len(lines)-1].Value += "\n" + line[1:]
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed commit header line %q", ErrMalformedObject, line)
		}
		lines = append(lines, CommitHeader{Key: key, Value: val})
	}

	for _, h := range lines {
		var err error
		switch h.Key {
		case "tree":
			c.TreeHash, err = ParseHash(h.Value)
		case "parent":
			var p Hash
			p, err = ParseHash(h.Value)
			c.Parents = append(c.Parents, p)
		case "author":
			c.Author, c.Timestamp, c.AuthorTimezone, err = parseSignatureLine(h.Value)
		case "committer":
			c.Committer, c.CommitterTimestamp, c.CommitterTimezone, err = parseSignatureLine(h.Value)
		default:
			c.ExtraHeaders = append(c.ExtraHeaders, h)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: commit %s header: %v", ErrMalformedObject, h.Key, err)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("%w: commit missing tree header", ErrMalformedObject)
	}
	return c, nil
}

// parseSignatureLine splits "Name <email> 1700000000 +0100".
func parseSignatureLine(v string) (string, int64, string, error) {
	gt := strings.LastIndexByte(v, '>')
	if gt < 0 {
		return "", 0, "", fmt.Errorf("missing identity in %q", v)
	}
	ident := v[:gt+1]
	fields := strings.Fields(v[gt+1:])
	if len(fields) != 2 {
		return "", 0, "", fmt.Errorf("missing timestamp/timezone in %q", v)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("bad timestamp %q", fields[0])
	}
	return ident, ts, fields[1], nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// TagTarget returns the object an annotated tag payload points at.
func TagTarget(data []byte) (Hash, ObjectType, error) {
	var target Hash
	var targetType ObjectType
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			break
		}
		key, val, _ := strings.Cut(line, " ")
		switch key {
		case "object":
			h, err := ParseHash(val)
			if err != nil {
				return "", "", fmt.Errorf("%w: tag object header: %v", ErrMalformedObject, err)
			}
			target = h
		case "type":
			targetType = ObjectType(val)
		}
	}
	if target == "" {
		return "", "", fmt.Errorf("%w: tag missing object header", ErrMalformedObject)
	}
	return target, targetType, nil
}
