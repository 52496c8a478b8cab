package remote

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
)

const (
	// ServiceUploadPack is the smart-HTTP service used for fetch and clone.
	ServiceUploadPack = "git-upload-pack"

	// DefaultBranch is assumed when the server does not advertise HEAD's target.
	DefaultBranch = "refs/heads/main"

	headerProtocol = "Git-Protocol"
	protocolV2     = "version=2"

	contentTypeUploadRequest = "application/x-git-upload-pack-request"
	contentTypeUploadResult  = "application/x-git-upload-pack-result"
	contentTypeAdvertisement = "application/x-git-upload-pack-advertisement"
)

// Capabilities is the set of capability tokens a server advertised.
// Tokens of the form key=value keep every value in advertisement order.
type Capabilities struct {
	set map[string][]string
}

// ParseCapabilities parses a space-separated capability list.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string][]string)}
	for _, tok := range strings.Fields(raw) {
		key, value, hasValue := strings.Cut(tok, "=")
		if !hasValue {
			if _, ok := caps.set[key]; !ok {
				caps.set[key] = nil
			}
			continue
		}
		caps.set[key] = append(caps.set[key], value)
	}
	return caps
}

// Has returns true if the capability is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Value returns the first value of a key=value capability.
func (c Capabilities) Value(name string) (string, bool) {
	vals := c.set[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Symref returns the target of a symref=<src>:<dst> capability for src.
func (c Capabilities) Symref(src string) (string, bool) {
	for _, v := range c.set["symref"] {
		from, to, ok := strings.Cut(v, ":")
		if ok && from == src {
			return to, true
		}
	}
	return "", false
}

// Len returns the number of distinct capability names.
func (c Capabilities) Len() int {
	return len(c.set)
}

// String returns the capabilities sorted and space-separated.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k := range c.set {
		names = append(names, k)
	}
	sort.Strings(names)
	var toks []string
	for _, k := range names {
		if len(c.set[k]) == 0 {
			toks = append(toks, k)
			continue
		}
		for _, v := range c.set[k] {
			toks = append(toks, k+"="+v)
		}
	}
	return strings.Join(toks, " ")
}

// Ref is one advertised reference.
type Ref struct {
	Name string
	Hash object.Hash
	// Peeled marks a "<tag>^{}" line naming the object an annotated tag points at.
	Peeled bool
}

// Advertisement is the parsed result of ref discovery.
type Advertisement struct {
	Caps Capabilities
	// Refs lists advertised refs in server order, HEAD excluded.
	Refs []Ref
	// Head is the id HEAD points at, empty if HEAD was not advertised.
	Head object.Hash
	// DefaultBranch is HEAD's symref target, or DefaultBranch if none was sent.
	DefaultBranch string
}

// Lookup returns the advertised ref with the given full name.
func (a *Advertisement) Lookup(name string) (Ref, bool) {
	for _, r := range a.Refs {
		if r.Name == name && !r.Peeled {
			return r, true
		}
	}
	return Ref{}, false
}

// SelectBranch picks the ref to clone. An empty branch selects the
// advertised default; a short name is expanded under refs/heads/.
func (a *Advertisement) SelectBranch(branch string) (Ref, error) {
	name := strings.TrimSpace(branch)
	if name == "" {
		name = a.DefaultBranch
	} else if !strings.HasPrefix(name, "refs/") {
		name = "refs/heads/" + name
	}
	ref, ok := a.Lookup(name)
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	return ref, nil
}

// ParseAdvertisement parses a smart-HTTP info/refs response body. The
// optional "# service=" announcement and its flush are skipped; the first
// ref line carries the capability list after a NUL byte.
func ParseAdvertisement(body []byte) (*Advertisement, error) {
	adv := &Advertisement{}
	rest := body
	first := true
	sawCaps := false

	for len(rest) > 0 {
		pkt, next, err := DecodeLine(rest)
		if err != nil {
			return nil, fmt.Errorf("parse ref advertisement: %w", err)
		}
		rest = next

		if !pkt.IsData() {
			if sawCaps {
				break
			}
			continue
		}
		line := bytes.TrimSuffix(pkt.Payload, []byte("\n"))

		if first {
			first = false
			if bytes.HasPrefix(line, []byte("# service=")) {
				continue
			}
		}
		if bytes.HasPrefix(line, []byte("ERR ")) {
			return nil, &RemoteError{Message: string(line[4:])}
		}
		if bytes.Equal(line, []byte("version 1")) {
			continue
		}
		if bytes.Equal(line, []byte("version 2")) {
			return nil, fmt.Errorf("%w: server answered discovery with protocol v2", ErrProtocol)
		}

		if !sawCaps {
			sawCaps = true
			var capList []byte
			line, capList, _ = bytes.Cut(line, []byte{0})
			adv.Caps = ParseCapabilities(string(capList))
		}
		ref, err := parseRefLine(line)
		if err != nil {
			return nil, err
		}
		switch {
		case ref.Name == "capabilities^{}":
			// Empty repository.
		case ref.Name == "HEAD":
			adv.Head = ref.Hash
		default:
			adv.Refs = append(adv.Refs, ref)
		}
	}
	if !sawCaps {
		return nil, fmt.Errorf("%w: empty ref advertisement", ErrProtocol)
	}

	adv.DefaultBranch = DefaultBranch
	if target, ok := adv.Caps.Symref("HEAD"); ok && target != "" {
		adv.DefaultBranch = target
	}
	return adv, nil
}

func parseRefLine(line []byte) (Ref, error) {
	id, name, ok := bytes.Cut(line, []byte{' '})
	if !ok || len(name) == 0 {
		return Ref{}, fmt.Errorf("%w: malformed ref line %q", ErrProtocol, line)
	}
	h, err := object.ParseHash(string(id))
	if err != nil {
		return Ref{}, fmt.Errorf("%w: ref line %q: %v", ErrProtocol, line, err)
	}
	ref := Ref{Name: string(name), Hash: h}
	if base, peeled := strings.CutSuffix(ref.Name, "^{}"); peeled && ref.Name != "capabilities^{}" {
		ref.Name = base
		ref.Peeled = true
	}
	return ref, nil
}

// BuildFetchRequest returns the protocol v2 fetch body asking for want
// with no haves: command, delimiter, no-progress, want, done, flush.
func BuildFetchRequest(want object.Hash) ([]byte, error) {
	if _, err := object.ParseHash(string(want)); err != nil {
		return nil, fmt.Errorf("fetch want: %w", err)
	}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.EncodeString("command=fetch"); err != nil {
		return nil, err
	}
	if err := enc.Delim(); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("no-progress"); err != nil {
		return nil, err
	}
	if err := enc.Encodef("want %s\n", want); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("done\n"); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseFetchResponse extracts the raw pack stream from a protocol v2 fetch
// response body. Lines after the "packfile" section header are sideband
// framed; band 2 text goes to onProgress and band 3 aborts with a
// *RemoteError. A response without a "packfile" header is handled by
// dropping its first line and demultiplexing the rest.
func ParseFetchResponse(body []byte, onProgress func(string)) ([]byte, error) {
	return readFetchResponse(NewDecoder(bytes.NewReader(body)), onProgress)
}
