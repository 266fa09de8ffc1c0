package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func IsWindows() bool { return runtime.GOOS == "windows" }

// maxSymlinkHops bounds symlink chains followed by Canonical.
const maxSymlinkHops = 40

// Canonical returns p as an absolute, clean path with symlinks resolved.
// Missing trailing components are kept as given after resolving the
// longest existing prefix, so the result is stable for files that do not
// exist yet. Dangling symlinks are followed to their target.
func Canonical(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("empty path")
	}
	if strings.ContainsRune(p, '\x00') {
		return "", errors.New("path contains NUL byte")
	}

	abs, err := filepath.Abs(filepath.Clean(filepath.FromSlash(p)))
	if err != nil {
		return "", err
	}
	hops := maxSymlinkHops
	return resolve(abs, &hops)
}

func resolve(abs string, hops *int) (string, error) {
	var tail []string
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return joinTail(resolved, tail), nil
		}
		if fi, err := os.Lstat(cur); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			if *hops <= 0 {
				return "", fmt.Errorf("too many levels of symbolic links: %q", abs)
			}
			*hops--
			target, err := os.Readlink(cur)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				parent, err := resolve(filepath.Dir(cur), hops)
				if err != nil {
					return "", err
				}
				target = filepath.Join(parent, target)
			}
			return resolve(joinTail(filepath.Clean(target), tail), hops)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// joinTail appends tail, collected leaf first, back onto base.
func joinTail(base string, tail []string) string {
	for i := len(tail) - 1; i >= 0; i-- {
		base = filepath.Join(base, tail[i])
	}
	return base
}

// CanonicalDir is Canonical for a path that must be an existing directory.
func CanonicalDir(p string) (string, error) {
	c, err := Canonical(p)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(c)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("not a directory: %q", p)
	}
	return c, nil
}

// WithinRoot reports whether p is root or a descendant of it.
// Both paths should already be canonical.
func WithinRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return true
	}
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}

// RelPOSIX returns p relative to root using forward slashes.
func RelPOSIX(root, p string) (string, error) {
	if !WithinRoot(root, p) {
		return "", fmt.Errorf("path %q is not under %q", p, root)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
