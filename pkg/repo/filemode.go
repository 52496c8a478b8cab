package repo

import (
	"fmt"
	"os"

	"github.com/odvcencio/gitlet/pkg/object"
)

// treeModeFor maps a worktree entry to the tree mode recorded for it.
// Only directories and regular files are representable.
func treeModeFor(info os.FileInfo) (string, bool) {
	switch {
	case info.IsDir():
		return object.TreeModeDir, true
	case info.Mode().IsRegular():
		return object.TreeModeFile, true
	default:
		return "", false
	}
}

func filePermFromMode(mode string) (os.FileMode, error) {
	if mode != object.TreeModeFile {
		return 0, fmt.Errorf("%w: %s", object.ErrUnsupportedMode, mode)
	}
	return 0o644, nil
}
