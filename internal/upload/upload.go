// Package upload stores browser file uploads by streaming a
// multipart/form-data body straight to disk.
//
// The body is never buffered whole: the part headers are read in small
// steps under a fixed ceiling, and the file payload is copied in ChunkSize
// chunks through a sliding window that only holds back enough bytes to
// recognize the closing delimiter. Data lands in a hidden staging file in
// the destination directory and is renamed into place once complete, so an
// interrupted upload never leaves a partial file under its public name.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"vortex/internal/fsutil"
	"vortex/internal/netutil"
)

const (
	// MaxHeaderSize bounds the preamble and part headers.
	MaxHeaderSize = 8 * 1024
	// ChunkSize is the payload copy unit.
	ChunkSize = 64 * 1024

	scanStep      = 1024
	stagingPrefix = ".upload_"
	drainLimit    = 16 * ChunkSize
)

var (
	ErrHeadersTooLarge = errors.New("headers too large")
	ErrNoBoundary      = errors.New("no boundary found")
	ErrMalformed       = errors.New("malformed multipart data")
	ErrNoFileField     = errors.New("no file field found")
	ErrNoFilename      = errors.New("no filename in upload")
	ErrTooLarge        = errors.New("upload too large")
	// ErrIncomplete means the client stopped sending before Content-Length
	// bytes arrived. It wraps io.ErrUnexpectedEOF.
	ErrIncomplete = fmt.Errorf("upload incomplete: %w", io.ErrUnexpectedEOF)
)

var (
	nameParam     = regexp.MustCompile(`(?i)(?:^|[;\s])name="([^"]*)"`)
	filenameParam = regexp.MustCompile(`(?i)(?:^|[;\s])filename="([^"]+)"`)
)

// Result describes the outcome of one upload.
type Result struct {
	Success bool
	Err     error

	// Set on success.
	Filename string
	Path     string
	Size     int64
	SHA256   string
}

// Message is the text reported to the client for a failed upload.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Disconnected reports whether the upload failed because the client went
// away, in which case there is nobody to send a response to.
func (r Result) Disconnected() bool {
	return !r.Success && netutil.IsDisconnect(r.Err)
}

func failed(err error) Result {
	return Result{Err: err}
}

// Parser writes uploads into a destination directory.
type Parser struct {
	// MaxSize rejects bodies whose declared length exceeds it. Zero means
	// no limit.
	MaxSize int64
}

// Parse reads a multipart body of contentLength bytes from body, extracts
// the part named "file" and stores it in destDir under its sanitized
// filename. Any existing file of that name is replaced; a directory of
// that name is left alone and the upload fails.
func (p *Parser) Parse(ctx context.Context, body io.Reader, contentLength int64, boundary, destDir string) Result {
	if boundary == "" {
		return failed(ErrNoBoundary)
	}
	if p.MaxSize > 0 && contentLength > p.MaxSize {
		return failed(ErrTooLarge)
	}

	br := &bodyReader{r: body, remaining: contentLength, buf: make([]byte, ChunkSize)}
	open := []byte("--" + boundary)

	head, err := br.scanUntil(nil, open)
	if err != nil {
		return failed(err)
	}
	i := bytes.Index(head, open)
	if i < 0 {
		return failed(ErrNoBoundary)
	}
	head = bytes.TrimLeft(head[i+len(open):], "\r\n")

	head, err = br.scanUntil(head, []byte("\r\n\r\n"))
	if err != nil {
		return failed(err)
	}
	j := bytes.Index(head, []byte("\r\n\r\n"))
	if j < 0 {
		return failed(ErrMalformed)
	}
	partHeaders := head[:j]
	data := head[j+4:]

	filename, err := fileName(partHeaders)
	if err != nil {
		return failed(err)
	}

	st, err := newStaging(destDir)
	if err != nil {
		return failed(fmt.Errorf("failed to save file: %w", err))
	}
	defer st.discard()

	// An empty payload whose closing delimiter arrived without its leading
	// CRLF. Only a body that ends right after that delimiter qualifies.
	found := false
	if br.remaining+int64(len(data)) <= int64(len(open)+4) {
		if data, err = br.rest(data); err != nil {
			return failed(err)
		}
		found = bareClose(data, open)
	}
	win := newWindow([]byte("\r\n--"+boundary), ChunkSize)
	if !found {
		found, err = win.push(data, st)
		if err != nil {
			return failed(fmt.Errorf("failed to save file: %w", err))
		}
	}
	for !found {
		if err := ctx.Err(); err != nil {
			return failed(err)
		}
		chunk, err := br.next(ChunkSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return failed(err)
		}
		if found, err = win.push(chunk, st); err != nil {
			return failed(fmt.Errorf("failed to save file: %w", err))
		}
	}
	if !found {
		// Body ended without a closing delimiter; keep what looks like data.
		rest := bytes.TrimSuffix(win.held(), []byte("\r\n"))
		rest = bytes.TrimSuffix(rest, []byte("--"))
		if _, err := st.Write(rest); err != nil {
			return failed(fmt.Errorf("failed to save file: %w", err))
		}
	} else {
		br.drain(drainLimit)
	}

	dest := filepath.Join(destDir, filename)
	if err := st.commit(dest); err != nil {
		return failed(fmt.Errorf("failed to save file: %w", err))
	}
	return Result{
		Success:  true,
		Filename: filename,
		Path:     dest,
		Size:     st.size,
		SHA256:   hex.EncodeToString(st.sum.Sum(nil)),
	}
}

// fileName pulls the sanitized filename out of the part headers. The part
// must be the form field named "file".
func fileName(headers []byte) (string, error) {
	m := nameParam.FindSubmatch(headers)
	if m == nil || string(m[1]) != "file" {
		return "", ErrNoFileField
	}
	f := filenameParam.FindSubmatch(headers)
	if f == nil {
		return "", ErrNoFilename
	}
	return fsutil.SanitizeFilename(fsutil.BaseName(string(f[1]))), nil
}

// bodyReader reads at most remaining bytes from r. Reaching the declared
// length yields io.EOF; the client hanging up early yields ErrIncomplete.
type bodyReader struct {
	r         io.Reader
	remaining int64
	buf       []byte
	err       error
}

// next returns up to max bytes. The slice is reused by the following call.
func (b *bodyReader) next(max int) ([]byte, error) {
	for {
		if b.remaining <= 0 {
			return nil, io.EOF
		}
		if b.err != nil {
			return nil, b.err
		}
		if int64(max) > b.remaining {
			max = int(b.remaining)
		}
		n, err := b.r.Read(b.buf[:max])
		b.remaining -= int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrIncomplete
			}
			b.err = err
		}
		if n > 0 {
			return b.buf[:n], nil
		}
	}
}

// scanUntil appends scanStep-sized reads to buf until it contains pattern,
// the body is exhausted, or buf outgrows MaxHeaderSize.
func (b *bodyReader) scanUntil(buf, pattern []byte) ([]byte, error) {
	for !bytes.Contains(buf, pattern) {
		chunk, err := b.next(scanStep)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > MaxHeaderSize {
			return nil, ErrHeadersTooLarge
		}
	}
	return buf, nil
}

// rest appends everything left of the declared body to buf.
func (b *bodyReader) rest(buf []byte) ([]byte, error) {
	for {
		chunk, err := b.next(scanStep)
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
}

// bareClose reports whether data is exactly a closing delimiter.
func bareClose(data, open []byte) bool {
	if !bytes.HasPrefix(data, open) {
		return false
	}
	switch string(data[len(open):]) {
	case "--", "--\r\n":
		return true
	}
	return false
}

// drain discards the closing delimiter and any epilogue so the connection
// can carry another request.
func (b *bodyReader) drain(limit int64) {
	for limit > 0 {
		chunk, err := b.next(ChunkSize)
		if err != nil {
			return
		}
		limit -= int64(len(chunk))
	}
}

// staging is the hidden file an upload is written to before it is renamed
// to its public name.
type staging struct {
	f    *os.File
	path string
	sum  hash.Hash
	size int64
	done bool
}

func newStaging(dir string) (*staging, error) {
	path := filepath.Join(dir, stagingPrefix+uuid.NewString())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &staging{f: f, path: path, sum: sha256.New()}, nil
}

func (s *staging) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.sum.Write(p[:n])
	s.size += int64(n)
	return n, err
}

func (s *staging) commit(dest string) error {
	if err := s.f.Sync(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	if fi, err := os.Lstat(dest); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", filepath.Base(dest))
		}
		if err := os.Remove(dest); err != nil {
			return err
		}
	}
	if err := os.Rename(s.path, dest); err != nil {
		return err
	}
	s.done = true
	return nil
}

// discard removes the staging file unless it was committed. Safe to call
// more than once.
func (s *staging) discard() {
	if s.done {
		return
	}
	s.done = true
	_ = s.f.Close()
	_ = os.Remove(s.path)
}

// IsStagingName reports whether name is an in-progress upload, which
// listings and archives leave out.
func IsStagingName(name string) bool {
	return len(name) > len(stagingPrefix) && name[:len(stagingPrefix)] == stagingPrefix
}
