package upload

import (
	"mime"
	"strings"
)

// IsMultipart reports whether contentType announces a form upload.
func IsMultipart(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "multipart/form-data")
}

// ExtractBoundary returns the boundary parameter of a multipart
// Content-Type, or "" when there is none.
func ExtractBoundary(contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if b := params["boundary"]; b != "" {
			return b
		}
	}
	// Lenient fallback for headers ParseMediaType rejects.
	i := strings.Index(contentType, "boundary=")
	if i < 0 {
		return ""
	}
	b := contentType[i+len("boundary="):]
	if j := strings.IndexByte(b, ';'); j >= 0 {
		b = b[:j]
	}
	b = strings.TrimSpace(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	return b
}
