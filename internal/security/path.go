package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes the validator's root.
var ErrOutsideRoot = errors.New("path is outside the permitted directory")

// PathValidator confines file access to a single root directory. Both the
// rule store and the MCP document reader go through one.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// have to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Join resolves name relative to the root and rejects results that leave it.
func (v *PathValidator) Join(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if name == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	return v.Resolve(filepath.Join(v.root, name))
}

// Resolve makes path absolute (relative paths are taken from the root) and
// checks it stays inside the root, following symlinks on either side.
func (v *PathValidator) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	clean := filepath.Clean(path)

	if !within(clean, v.root) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	realRoot := v.root
	if resolved, err := evalExisting(v.root); err == nil {
		realRoot = resolved
	}

	resolved, err := evalExisting(clean)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink: %w", err)
	}
	if !within(resolved, v.root) && !within(resolved, realRoot) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return clean, nil
}

// evalExisting resolves symlinks in the longest existing prefix of path and
// appends the rest unchanged, so links in any directory component count.
func evalExisting(path string) (string, error) {
	var rest []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			// Dangling link: a write through it would land wherever it points.
			return "", fmt.Errorf("dangling symlink: %s", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
