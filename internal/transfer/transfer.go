// Package transfer moves file contents to clients: byte ranges of a single
// file, or a directory packed as a ZIP archive.
package transfer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"vortex/internal/byterange"
	"vortex/internal/logger"
	"vortex/internal/netutil"
	"vortex/internal/upload"
)

// ChunkSize is the unit files are read and written in.
const ChunkSize = 64 * 1024

// StreamFile copies r's bytes of the file at path to w in ChunkSize
// chunks. It stops early at end of file, so a file that shrank underneath
// a request yields fewer bytes rather than an error. The file is always
// closed.
func StreamFile(w io.Writer, path string, r byterange.Range) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(r.Start, io.SeekStart); err != nil {
		return 0, err
	}
	buf := make([]byte, ChunkSize)
	var sent int64
	remaining := r.Length()
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		got, rerr := f.Read(buf[:n])
		if got > 0 {
			wrote, werr := w.Write(buf[:got])
			sent += int64(wrote)
			remaining -= int64(wrote)
			if werr != nil {
				return sent, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sent, rerr
		}
	}
	return sent, nil
}

// Stream is StreamFile with its failure logged. A client that goes away
// mid-transfer is routine: it is logged at debug level and Stream returns
// nil. Any other failure is returned.
func Stream(w io.Writer, path string, r byterange.Range) error {
	n, err := StreamFile(w, path, r)
	if err == nil {
		return nil
	}
	if netutil.IsDisconnect(err) {
		logger.Debug("Client went away after %d of %d bytes of %s", n, r.Length(), filepath.Base(path))
		return nil
	}
	logger.Warn("Streaming %s stopped after %d bytes: %v", filepath.Base(path), n, err)
	return err
}

// Archive is a ZIP file built in memory.
type Archive struct {
	data    []byte
	entries int
}

// Entries is the number of files in the archive.
func (a *Archive) Entries() int { return a.entries }

// Size is the encoded size in bytes.
func (a *Archive) Size() int64 { return int64(len(a.data)) }

// WriteTo writes the archive to w in ChunkSize chunks.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	var sent int64
	for off := 0; off < len(a.data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(a.data) {
			end = len(a.data)
		}
		n, err := w.Write(a.data[off:end])
		sent += int64(n)
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// BuildZip packs the regular files directly inside dir, deflated, under
// their base names. Subdirectories are not descended into. Files that
// cannot be read are left out. The whole archive is held in memory so its
// length is known before sending.
func BuildZip(dir string) (*Archive, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	count := 0
	for _, e := range ents {
		if !e.Type().IsRegular() || upload.IsStagingName(e.Name()) {
			continue
		}
		ok, err := addFile(zw, filepath.Join(dir, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			count++
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip: %w", err)
	}
	return &Archive{data: buf.Bytes(), entries: count}, nil
}

// addFile copies one file into zw. Problems with the source file are not
// errors (the file is skipped); only failures of the archive itself are.
//
// The file is read fully before its entry header is written, so a read
// failure partway through never leaves a truncated entry behind.
func addFile(zw *zip.Writer, path, name string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug("Skipping %s in archive: %v", name, err)
		return false, nil
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		return false, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		logger.Debug("Skipping %s in archive: %v", name, err)
		return false, nil
	}

	hdr, err := zip.FileInfoHeader(st)
	if err != nil {
		return false, nil
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return false, fmt.Errorf("zip header %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return false, fmt.Errorf("zip write %s: %w", name, err)
	}
	return true, nil
}
