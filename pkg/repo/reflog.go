package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
)

var defaultReflogIdentity = object.Identity{Name: "gitlet", Email: "gitlet@localhost"}

// ReflogEntry is one line of .git/logs/<ref>.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Identity  string
	Timestamp int64
	Timezone  string
	Reason    string
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	reason = strings.Join(strings.Fields(reason), " ")
	if reason == "" {
		reason = "update"
	}
	ident := r.Identity
	if strings.TrimSpace(ident.Name) == "" {
		ident = defaultReflogIdentity
	}

	logPath := filepath.Join(r.GitDir, "logs", filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	old := oldHash
	if old == "" {
		old = object.ZeroHash
	}
	now := time.Now()
	line := fmt.Sprintf("%s %s %s %d %s\t%s\n", old, newHash, ident, now.Unix(), object.FormatTimezone(now), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the reflog of ref, newest first. A limit <= 0 returns
// every entry. A ref without a reflog yields no entries.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName := r.resolveReflogRefName(ref)

	f, err := os.Open(filepath.Join(r.GitDir, "logs", filepath.FromSlash(refName)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if e, ok := parseReflogLine(refName, scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// parseReflogLine reads "<old> <new> <name> <email> <ts> <tz>\t<reason>".
func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	head, reason, _ := strings.Cut(line, "\t")
	if len(head) < 2*object.HashHexSize+2 {
		return ReflogEntry{}, false
	}
	oldHash := object.Hash(head[:object.HashHexSize])
	newHash := object.Hash(head[object.HashHexSize+1 : 2*object.HashHexSize+1])
	rest := head[2*object.HashHexSize+2:]

	gt := strings.LastIndexByte(rest, '>')
	if gt < 0 {
		return ReflogEntry{}, false
	}
	fields := strings.Fields(rest[gt+1:])
	if len(fields) != 2 {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   oldHash,
		NewHash:   newHash,
		Identity:  rest[:gt+1],
		Timestamp: ts,
		Timezone:  fields[1],
		Reason:    reason,
	}, true
}

func (r *Repo) resolveReflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" {
		if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/") {
			return head
		}
		return "HEAD"
	}
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}
