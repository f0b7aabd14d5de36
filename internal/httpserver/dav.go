package httpserver

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"golang.org/x/net/webdav"

	"vortex/internal/fsutil"
	"vortex/internal/logger"
)

func (s *Server) davHandler() http.Handler {
	return &webdav.Handler{
		Prefix: davPrefix,
		FileSystem: &guardedFS{
			root:     s.root,
			dir:      webdav.Dir(s.root),
			readOnly: s.cfg.Upload.ReadOnly,
		},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Debug("WebDAV %s %s: %v", r.Method, r.URL.Path, err)
			}
		},
	}
}

// guardedFS is webdav.Dir with every name checked against the root after
// resolving symlinks, and writes refused in read-only mode.
type guardedFS struct {
	root     string
	dir      webdav.Dir
	readOnly bool
}

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

// check returns nil when name may be accessed. A missing name is allowed
// only when create is set and its parent is inside the root.
func (g *guardedFS) check(name string, create bool) error {
	p, err := fsutil.JoinWithinRoot(g.root, name)
	if err != nil {
		return os.ErrPermission
	}
	if _, err := os.Lstat(p); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if !create {
			return os.ErrNotExist
		}
		if !fsutil.IsSafeParent(p, g.root) {
			return os.ErrPermission
		}
		return nil
	}
	if !fsutil.IsSafe(p, g.root) {
		return os.ErrPermission
	}
	return nil
}

func (g *guardedFS) writable() error {
	if g.readOnly {
		return os.ErrPermission
	}
	return nil
}

func (g *guardedFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	if err := g.writable(); err != nil {
		return err
	}
	if err := g.check(name, true); err != nil {
		return err
	}
	return g.dir.Mkdir(ctx, name, perm)
}

func (g *guardedFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	create := flag&writeFlags != 0
	if create {
		if err := g.writable(); err != nil {
			return nil, err
		}
	}
	if err := g.check(name, create); err != nil {
		return nil, err
	}
	return g.dir.OpenFile(ctx, name, flag, perm)
}

func (g *guardedFS) RemoveAll(ctx context.Context, name string) error {
	if err := g.writable(); err != nil {
		return err
	}
	if err := g.check(name, false); err != nil {
		return err
	}
	return g.dir.RemoveAll(ctx, name)
}

func (g *guardedFS) Rename(ctx context.Context, oldName, newName string) error {
	if err := g.writable(); err != nil {
		return err
	}
	if err := g.check(oldName, false); err != nil {
		return err
	}
	if err := g.check(newName, true); err != nil {
		return err
	}
	return g.dir.Rename(ctx, oldName, newName)
}

func (g *guardedFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	if err := g.check(name, false); err != nil {
		return nil, err
	}
	return g.dir.Stat(ctx, name)
}
