// Package remotetest runs an in-process smart-HTTP upload-pack server for
// tests. It answers ref discovery and protocol v2 fetch requests from a
// fixed set of objects.
package remotetest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/remote"
)

// Object is one object served in every pack.
type Object struct {
	Type object.ObjectType
	Data []byte
}

// Hash returns the object's id.
func (o Object) Hash() object.Hash {
	return object.HashObject(o.Type, o.Data)
}

// Repo is the content and behavior of a fake remote.
type Repo struct {
	Refs []remote.Ref
	// HeadTarget is advertised as symref=HEAD:<target> when non-empty.
	HeadTarget string
	Objects    []Object
	// Pack, when non-nil, is sent verbatim instead of a pack built from Objects.
	Pack []byte
	// RefDeltas encodes each object after the first of its kind as a
	// ref-delta against the previous object of that kind.
	RefDeltas bool
	// Progress lines are sent on band 2 before the pack data.
	Progress []string
	// FetchError, when set, is sent on band 3 instead of pack data.
	FetchError string
	// Encoding is the Content-Encoding applied to every response body.
	Encoding string
	// FailFirst answers the first N requests with 503.
	FailFirst int
	// NoPackfileHeader replaces the "packfile" section header with "NAK".
	NoPackfileHeader bool
	// ChunkSize bounds band 1 frames; zero means the largest frame.
	ChunkSize int
	// Username and Password, when set, are required via basic auth.
	Username string
	Password string
}

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Server is a running fake remote.
type Server struct {
	*httptest.Server
	Repo *Repo

	mu       sync.Mutex
	requests []RecordedRequest
	failed   int
}

// NewServer starts a server for repo and closes it when the test ends.
func NewServer(t testing.TB, repo *Repo) *Server {
	t.Helper()
	s := &Server{Repo: repo}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// RepoURL returns the clone URL for a repository named name.
func (s *Server) RepoURL(name string) string {
	return s.URL + "/" + name
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	fail := s.failed < s.Repo.FailFirst
	if fail {
		s.failed++
	}
	s.mu.Unlock()

	if fail {
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	if s.Repo.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Repo.Username || pass != s.Repo.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="gitlet"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
	}

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/info/refs"):
		s.advertiseRefs(w, r)
	case r.Method == http.MethodPost && path.Base(r.URL.Path) == remote.ServiceUploadPack:
		s.uploadPack(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) advertiseRefs(w http.ResponseWriter, r *http.Request) {
	service := r.FormValue("service")
	if service != remote.ServiceUploadPack {
		http.Error(w, "unsupported service", http.StatusForbidden)
		return
	}

	var buf bytes.Buffer
	enc := remote.NewEncoder(&buf)
	_ = enc.Encodef("# service=%s\n", service)
	_ = enc.Flush()

	caps := "multi_ack thin-pack side-band side-band-64k ofs-delta shallow no-progress include-tag allow-tip-sha1-in-want"
	if s.Repo.HeadTarget != "" {
		caps = "symref=HEAD:" + s.Repo.HeadTarget + " " + caps
	}
	caps += " agent=remotetest"

	head, hasHead := s.lookup(s.Repo.HeadTarget)
	switch {
	case hasHead:
		_ = enc.Encodef("%s HEAD\x00%s\n", head, caps)
		for _, ref := range s.Repo.Refs {
			_ = enc.Encodef("%s\n", refLine(ref))
		}
	case len(s.Repo.Refs) > 0:
		_ = enc.Encodef("%s\x00%s\n", refLine(s.Repo.Refs[0]), caps)
		for _, ref := range s.Repo.Refs[1:] {
			_ = enc.Encodef("%s\n", refLine(ref))
		}
	default:
		_ = enc.Encodef("%s capabilities^{}\x00%s\n", object.ZeroHash, caps)
	}
	_ = enc.Flush()

	w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
	w.Header().Set("Cache-Control", "no-cache")
	s.writeBody(w, buf.Bytes())
}

func refLine(ref remote.Ref) string {
	if ref.Peeled {
		return fmt.Sprintf("%s %s^{}", ref.Hash, ref.Name)
	}
	return fmt.Sprintf("%s %s", ref.Hash, ref.Name)
}

func (s *Server) lookup(name string) (object.Hash, bool) {
	for _, ref := range s.Repo.Refs {
		if ref.Name == name && !ref.Peeled {
			return ref.Hash, true
		}
	}
	return "", false
}

func (s *Server) uploadPack(w http.ResponseWriter, r *http.Request, body []byte) {
	if r.Header.Get("Git-Protocol") != "version=2" {
		http.Error(w, "protocol v2 required", http.StatusBadRequest)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "application/x-git-upload-pack-request" {
		http.Error(w, "unexpected content type "+ct, http.StatusUnsupportedMediaType)
		return
	}
	wants, err := parseFetch(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, want := range wants {
		if !s.hasObject(want) {
			http.Error(w, "not our ref "+string(want), http.StatusBadRequest)
			return
		}
	}

	pack := s.Repo.Pack
	if pack == nil {
		pack, err = BuildPack(s.Repo.Objects, s.Repo.RefDeltas)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	var buf bytes.Buffer
	enc := remote.NewEncoder(&buf)
	if s.Repo.NoPackfileHeader {
		_ = enc.EncodeString("NAK\n")
	} else {
		_ = enc.EncodeString("packfile\n")
	}
	sw := remote.NewSidebandWriter(&buf)
	for _, msg := range s.Repo.Progress {
		_ = sw.WriteProgress(msg)
	}
	if s.Repo.FetchError != "" {
		_ = sw.WriteError(s.Repo.FetchError)
	} else {
		chunk := s.Repo.ChunkSize
		if chunk <= 0 {
			chunk = len(pack)
		}
		for len(pack) > 0 {
			n := min(chunk, len(pack))
			_ = sw.WriteData(pack[:n])
			pack = pack[n:]
		}
	}
	_ = sw.Flush()

	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	w.Header().Set("Cache-Control", "no-cache")
	s.writeBody(w, buf.Bytes())
}

func (s *Server) hasObject(h object.Hash) bool {
	for _, o := range s.Repo.Objects {
		if o.Hash() == h {
			return true
		}
	}
	for _, ref := range s.Repo.Refs {
		if ref.Hash == h {
			return true
		}
	}
	return false
}

func (s *Server) writeBody(w http.ResponseWriter, data []byte) {
	encoded, err := remote.EncodeBody(s.Repo.Encoding, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.Repo.Encoding != "" {
		w.Header().Set("Content-Encoding", s.Repo.Encoding)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// parseFetch reads a v2 fetch request and returns its wants.
func parseFetch(body []byte) ([]object.Hash, error) {
	dec := remote.NewDecoder(bytes.NewReader(body))
	pkt, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if !pkt.IsData() || strings.TrimSpace(string(pkt.Payload)) != "command=fetch" {
		return nil, fmt.Errorf("expected command=fetch, got %s %q", pkt.Kind, pkt.Payload)
	}
	for {
		pkt, err = dec.Next()
		if err != nil {
			return nil, err
		}
		if pkt.Kind == remote.PacketDelim {
			break
		}
		if pkt.Kind == remote.PacketFlush {
			return nil, fmt.Errorf("fetch request has no arguments")
		}
	}

	var wants []object.Hash
	done := false
	for {
		pkt, err = dec.Next()
		if err != nil {
			return nil, err
		}
		if pkt.Kind == remote.PacketFlush {
			break
		}
		if !pkt.IsData() {
			return nil, fmt.Errorf("unexpected %s in fetch arguments", pkt.Kind)
		}
		arg := strings.TrimSuffix(string(pkt.Payload), "\n")
		switch {
		case strings.HasPrefix(arg, "want "):
			h, err := object.ParseHash(strings.TrimPrefix(arg, "want "))
			if err != nil {
				return nil, err
			}
			wants = append(wants, h)
		case arg == "done":
			done = true
		case arg == "no-progress", arg == "thin-pack", arg == "ofs-delta":
		default:
			return nil, fmt.Errorf("unsupported fetch argument %q", arg)
		}
	}
	if len(wants) == 0 {
		return nil, fmt.Errorf("fetch request has no wants")
	}
	if !done {
		return nil, fmt.Errorf("fetch request must end negotiation with done")
	}
	return wants, nil
}

// BuildPack writes objs into a pack, optionally as a chain of ref-deltas
// per object kind.
func BuildPack(objs []Object, refDeltas bool) ([]byte, error) {
	var buf bytes.Buffer
	pw, err := object.NewPackWriter(&buf, uint32(len(objs)))
	if err != nil {
		return nil, err
	}
	prev := make(map[object.ObjectType]Object)
	for _, o := range objs {
		base, ok := prev[o.Type]
		if refDeltas && ok {
			err = pw.WriteRefDelta(base.Hash(), base.Data, o.Data)
		} else {
			err = pw.WriteObject(o.Type, o.Data)
		}
		if err != nil {
			return nil, err
		}
		prev[o.Type] = o
	}
	if _, err := pw.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// File is one path in a repository built by NewCommitRepo.
type File struct {
	Path string
	Data string
}

// Author is the identity recorded in commits built by NewCommitRepo.
var Author = object.Identity{Name: "Remote Tester", Email: "remote@example.com"}

// NewCommitRepo builds a single-commit repository holding files, with
// refs/heads/<branch> and HEAD pointing at it. It returns the repo and the
// commit id.
func NewCommitRepo(branch string, files []File) (*Repo, object.Hash, error) {
	var objs []Object
	treeHash, err := buildTree(&objs, files)
	if err != nil {
		return nil, "", err
	}
	commit := &object.CommitObj{
		TreeHash:       treeHash,
		Author:         Author.String(),
		Timestamp:      1700000000,
		AuthorTimezone: "+0000",
		Message:        "initial commit\n",
	}
	c := Object{Type: object.TypeCommit, Data: object.MarshalCommit(commit)}
	objs = append([]Object{c}, objs...)

	ref := "refs/heads/" + branch
	return &Repo{
		Refs:       []remote.Ref{{Name: ref, Hash: c.Hash()}},
		HeadTarget: ref,
		Objects:    objs,
	}, c.Hash(), nil
}

func buildTree(objs *[]Object, files []File) (object.Hash, error) {
	var entries []object.TreeEntry
	subdirs := make(map[string][]File)
	var dirOrder []string
	for _, f := range files {
		dir, rest, nested := strings.Cut(f.Path, "/")
		if nested {
			if _, seen := subdirs[dir]; !seen {
				dirOrder = append(dirOrder, dir)
			}
			subdirs[dir] = append(subdirs[dir], File{Path: rest, Data: f.Data})
			continue
		}
		blob := Object{Type: object.TypeBlob, Data: []byte(f.Data)}
		*objs = append(*objs, blob)
		entries = append(entries, object.TreeEntry{Mode: object.TreeModeFile, Name: f.Path, Hash: blob.Hash()})
	}
	sort.Strings(dirOrder)
	for _, dir := range dirOrder {
		h, err := buildTree(objs, subdirs[dir])
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Mode: object.TreeModeDir, Name: dir, Hash: h})
	}
	object.SortTreeEntries(entries)
	data, err := object.MarshalTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", err
	}
	tree := Object{Type: object.TypeTree, Data: data}
	*objs = append(*objs, tree)
	return tree.Hash(), nil
}
