package repo

import (
	"bufio"
	"path"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// IgnoreFile is the per-worktree ignore list read from the root.
const IgnoreFile = ".gitignore"

// IgnoreChecker determines if a worktree path should be skipped when
// building trees.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // match against the full path instead of the base name
	regex    *regexp.Regexp
}

// NewIgnoreChecker reads .gitignore from the root of fs. The .git
// directory is always ignored; a missing .gitignore is not an error.
func NewIgnoreChecker(fs billy.Filesystem) *IgnoreChecker {
	ic := &IgnoreChecker{}
	if fs == nil {
		return ic
	}
	f, err := fs.Open(IgnoreFile)
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseIgnoreLine returns nil for blank lines and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.hasSlash = strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}
	p.pattern = line

	re, err := regexp.Compile(globToRegex(line))
	if err != nil {
		return nil
	}
	p.regex = re
	return p
}

// IsIgnored reports whether the slash-separated path, relative to the
// worktree root, is ignored. The last matching pattern wins. Callers skip
// ignored directories, so ancestors are not consulted.
func (ic *IgnoreChecker) IsIgnored(rel string, isDir bool) bool {
	rel = strings.Trim(rel, "/")
	base := path.Base(rel)
	if base == GitDirName {
		return true
	}

	ignored := false
	for _, p := range ic.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := base
		if p.hasSlash {
			target = rel
		}
		if p.regex.MatchString(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				// "**/" matches zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		case ch == '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			if strings.ContainsRune(`.+()|{}^$\`, rune(ch)) {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
