package httpserver

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vortex/internal/byterange"
	"vortex/internal/logger"
	"vortex/internal/mimetypes"
	"vortex/internal/netutil"
	"vortex/internal/transfer"
)

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.resolve(w, r)
	if !ok {
		return
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logger.Info("Stat %s: %v", p, err)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	switch {
	case st.IsDir():
		s.serveDirectory(w, r, p)
	case !st.Mode().IsRegular():
		http.Error(w, "Not found", http.StatusNotFound)
	case r.URL.Query().Get("thumb") == "1" && s.thumbs != nil && mimetypes.IsImage(st.Name()):
		s.serveThumb(w, r, p, st)
	default:
		s.serveFile(w, r, p, st)
	}
}

// ETag identifies one version of a file: its path, size and mtime.
func ETag(path string, st os.FileInfo) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%d", path, st.Size(), st.ModTime().UnixNano())))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, p string, st os.FileInfo) {
	h := w.Header()
	etag := ETag(p, st)
	lastModified := st.ModTime().UTC().Format(http.TimeFormat)
	h.Set("ETag", etag)
	h.Set("Last-Modified", lastModified)

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	size := st.Size()
	rng := byterange.Full(size)
	status := http.StatusOK
	if v := r.Header.Get("Range"); v != "" {
		parsed, err := byterange.Parse(v, size)
		if err != nil {
			logger.Debug("Unsatisfiable range %q for %s (%d bytes)", v, st.Name(), size)
			h.Set("Content-Range", byterange.Unsatisfied(size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		rng = parsed
		status = http.StatusPartialContent
		h.Set("Content-Range", rng.ContentRange(size))
	}

	h.Set("Content-Type", mimetypes.Lookup(st.Name()))
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "public, max-age=3600")
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", st.Name()))
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)

	if r.Method == http.MethodHead || rng.Length() == 0 {
		return
	}
	if err := transfer.Stream(w, p, rng); err != nil {
		s.metrics.RecordUnexpectedError("stream")
	}
}

func (s *Server) serveDirectory(w http.ResponseWriter, r *http.Request, dir string) {
	// Entries are linked relative to the directory URL.
	if !strings.HasSuffix(r.URL.Path, "/") {
		target := escapePath(r.URL.Path + "/")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	if r.URL.Query().Get("download") == "zip" {
		s.serveZip(w, r, dir)
		return
	}

	page, err := s.renderer.Render(s.root, dir, r.URL.EscapedPath())
	if err != nil {
		logger.Info("Listing %s failed: %v", dir, err)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(page)))
	h.Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, page)
}

func (s *Server) serveZip(w http.ResponseWriter, r *http.Request, dir string) {
	archive, err := transfer.BuildZip(dir)
	if err != nil {
		logger.Error("Building archive of %s: %v", dir, err)
		s.metrics.RecordUnexpectedError("zip")
		http.Error(w, "Failed to create archive", http.StatusInternalServerError)
		return
	}
	if archive.Entries() == 0 {
		http.Error(w, "No files to download", http.StatusNotFound)
		return
	}

	name := filepath.Base(dir)
	if dir == s.root {
		name = "download"
	}
	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Length", strconv.FormatInt(archive.Size(), 10))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	h.Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := archive.WriteTo(w); err != nil {
		if netutil.IsDisconnect(err) {
			logger.Debug("Client went away during %s.zip: %v", name, err)
			return
		}
		logger.Warn("Sending %s.zip: %v", name, err)
	}
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
