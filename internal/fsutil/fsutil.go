package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrEscape is returned when a path leaves the served root.
	ErrEscape = errors.New("path escape")
	// ErrInvalid is returned for paths that cannot name a file (NUL bytes).
	ErrInvalid = errors.New("invalid path")
)

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and returns a
// safe, slash-based, no-leading-slash relative path ("" means root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot returns an absolute filesystem path under root for a given rel
// path. It rejects lexical escapes; symlinks are not consulted.
func JoinWithinRoot(rootAbs string, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", ErrInvalid
	}
	rel = CleanRelPath(rel)
	if rel == "" {
		return filepath.Clean(rootAbs), nil
	}
	abs := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
	if !within(abs, filepath.Clean(rootAbs)) {
		return "", ErrEscape
	}
	return abs, nil
}

// ResolveRoot makes root absolute and resolves its symlinks. The result is
// the form every other function here expects.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return real, nil
}

// IsSafe reports whether candidate, after resolving symlinks, is root or a
// descendant of it. Any resolution failure counts as unsafe.
func IsSafe(candidate, root string) bool {
	c, err := realPath(candidate)
	if err != nil {
		return false
	}
	r, err := realPath(root)
	if err != nil {
		return false
	}
	return within(c, r)
}

// IsSafeParent is IsSafe for a path that may not exist yet: its directory
// must be safe and the leaf must be a single plain name.
func IsSafeParent(candidate, root string) bool {
	leaf := filepath.Base(candidate)
	if leaf == "." || leaf == ".." || leaf == string(filepath.Separator) {
		return false
	}
	return IsSafe(filepath.Dir(candidate), root)
}

// Resolve maps a request path onto the filesystem below root (which must
// already be resolved, see ResolveRoot). Errors wrap ErrEscape, ErrInvalid
// or fs.ErrNotExist.
func Resolve(root, requestPath string) (string, error) {
	p, err := JoinWithinRoot(root, requestPath)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %q: %w", requestPath, fs.ErrNotExist)
		}
		return "", fmt.Errorf("resolve %q: %w", requestPath, ErrEscape)
	}
	if !within(real, root) {
		return "", ErrEscape
	}
	return p, nil
}

// RelURL returns the slash path of abs relative to root, with a leading
// slash, suitable for building links.
func RelURL(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func within(p, root string) bool {
	if p == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(p, root)
}
