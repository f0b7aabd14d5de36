package upload

import (
	"bytes"
	"io"
)

// window scans a byte stream for a delimiter that may straddle chunk
// boundaries. It holds back the last len(delim) bytes of everything pushed
// into it, since those could be the start of a delimiter still in flight,
// and forwards the rest to the destination.
type window struct {
	delim []byte
	buf   []byte
}

func newWindow(delim []byte, chunk int) *window {
	return &window{
		delim: delim,
		buf:   make([]byte, 0, chunk+len(delim)),
	}
}

// push appends p and writes every byte that can no longer be part of a
// delimiter to dst. found reports that the delimiter was seen; in that
// case exactly the bytes before it have been written and the window is
// empty.
func (w *window) push(p []byte, dst io.Writer) (found bool, err error) {
	w.buf = append(w.buf, p...)
	if i := bytes.Index(w.buf, w.delim); i >= 0 {
		_, err = dst.Write(w.buf[:i])
		w.buf = w.buf[:0]
		return true, err
	}
	safe := len(w.buf) - len(w.delim)
	if safe <= 0 {
		return false, nil
	}
	if _, err := dst.Write(w.buf[:safe]); err != nil {
		return false, err
	}
	n := copy(w.buf, w.buf[safe:])
	w.buf = w.buf[:n]
	return false, nil
}

// held returns the bytes still held back.
func (w *window) held() []byte {
	return w.buf
}
