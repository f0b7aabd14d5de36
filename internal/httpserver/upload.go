package httpserver

import (
	"net/http"
	"os"
	"path"

	"vortex/internal/logger"
	"vortex/internal/upload"
)

// handleUpload stores one multipart file in the directory named by the
// request path and redirects back to it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Upload.ReadOnly {
		s.metrics.RecordUpload("rejected", 0)
		http.Error(w, "Uploads are disabled", http.StatusForbidden)
		return
	}

	ct := r.Header.Get("Content-Type")
	if !upload.IsMultipart(ct) {
		s.rejectUpload(w, r, "Expected multipart/form-data")
		return
	}
	boundary := upload.ExtractBoundary(ct)
	if boundary == "" {
		s.rejectUpload(w, r, "Missing boundary in Content-Type")
		return
	}
	if r.ContentLength <= 0 {
		s.rejectUpload(w, r, "Invalid Content-Length")
		return
	}

	dir, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		http.Error(w, "Upload target is not a directory", http.StatusNotFound)
		return
	}

	res := s.parser.Parse(r.Context(), r.Body, r.ContentLength, boundary, dir)
	switch {
	case res.Success:
		s.metrics.RecordUpload("stored", res.Size)
		logger.Info("Stored %s (%d bytes, sha256 %s) from %s",
			path.Join(s.dirURL(dir), res.Filename), res.Size, res.SHA256, r.RemoteAddr)
		w.Header().Set("X-Content-SHA256", res.SHA256)
		http.Redirect(w, r, s.dirURL(dir), http.StatusSeeOther)
	case res.Disconnected():
		s.metrics.RecordUpload("aborted", 0)
		logger.Debug("Upload from %s aborted: %v", r.RemoteAddr, res.Err)
		// Nobody is left to answer.
		panic(http.ErrAbortHandler)
	default:
		s.rejectUpload(w, r, res.Message())
	}
}

func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, msg string) {
	s.metrics.RecordUpload("rejected", 0)
	logger.Info("Rejected upload from %s: %s", r.RemoteAddr, msg)
	http.Error(w, msg, http.StatusBadRequest)
}
