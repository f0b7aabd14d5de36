package dispatch

import (
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"vortex/internal/logger"
	"vortex/internal/netutil"
)

// instrument records request metrics and keeps handler panics inside the
// connection. A panic other than http.ErrAbortHandler is an unexpected
// error: it is logged with its stack and counted, then the connection is
// dropped the way net/http drops it for ErrAbortHandler.
func (d *Dispatcher) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		body := &countingReader{ReadCloser: r.Body}
		mw := &meteredWriter{ResponseWriter: w}

		// The server inspects its own *Request after the handler returns,
		// so only a copy carries the counting body.
		r2 := new(http.Request)
		*r2 = *r
		r2.Body = body

		defer func() {
			p := recover()
			d.record(r, mw, body, start)
			if p == nil {
				return
			}
			if p != http.ErrAbortHandler {
				logger.Error("Panic serving %s %s from %s: %v\n%s",
					r.Method, r.URL.Path, r.RemoteAddr, p, debug.Stack())
				d.metrics.RecordUnexpectedError("dispatch")
			} else {
				logger.Debug("Aborted %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			}
			panic(http.ErrAbortHandler)
		}()
		next.ServeHTTP(mw, r2)
	})
}

func (d *Dispatcher) record(r *http.Request, mw *meteredWriter, body *countingReader, start time.Time) {
	d.metrics.RecordRequest(r.Method, mw.code(), time.Since(start))
	d.metrics.RecordBytesTransferred("in", body.n)
	d.metrics.RecordBytesTransferred("out", mw.written)

	if err := mw.err; err != nil && !netutil.IsDisconnect(err) {
		logger.Error("Writing response to %s: %v", r.RemoteAddr, err)
		d.metrics.RecordUnexpectedError("dispatch")
	}
}

type countingReader struct {
	io.ReadCloser
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.n += int64(n)
	return n, err
}

// meteredWriter counts response bytes and keeps the first write error.
type meteredWriter struct {
	http.ResponseWriter
	status  int
	written int64
	err     error
}

func (w *meteredWriter) WriteHeader(code int) {
	if w.status == 0 && code >= 200 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *meteredWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}

func (w *meteredWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *meteredWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *meteredWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
