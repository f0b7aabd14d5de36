package fsutil

import (
	"path"
	"strings"
)

// DefaultFilename is used when sanitizing leaves nothing behind.
const DefaultFilename = "uploaded_file"

var unsafeChars = strings.NewReplacer(
	"\\", "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFilename turns a client supplied filename into a single safe path
// component. Reserved characters become '_', and leading or trailing spaces
// and dots are stripped.
func SanitizeFilename(name string) string {
	name = unsafeChars.Replace(name)
	name = strings.Trim(name, " .")
	if name == "" {
		return DefaultFilename
	}
	return name
}

// BaseName strips any directory part a client put in a filename, accepting
// both slash styles.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	b := path.Base(name)
	if b == "/" || b == "." {
		return ""
	}
	return b
}
