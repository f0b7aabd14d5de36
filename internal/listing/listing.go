// Package listing renders the HTML directory page: entries, a parent link,
// the "Download All" archive link and the upload form.
package listing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"vortex/internal/mimetypes"
	"vortex/internal/upload"
)

//go:embed templates/listing.html.tmpl
var templateFS embed.FS

// Renderer produces the page for dir, which lies inside root and was
// requested as requestPath (URL-escaped, as sent by the client).
type Renderer interface {
	Render(root, dir, requestPath string) (string, error)
}

type Options struct {
	// ReadOnly hides the upload form.
	ReadOnly bool
	// Thumbnails shows an inline preview next to images.
	Thumbnails bool
}

// HTML is the default Renderer.
type HTML struct {
	opts Options
	tmpl *template.Template
}

// Entry is one row of the listing.
type Entry struct {
	Name  string
	Href  string
	IsDir bool
	Size  string
	Thumb string
}

type page struct {
	RootName  string
	Root      string
	Path      string
	Parent    bool
	Entries   []Entry
	FileCount int
	ReadOnly  bool
}

func NewHTML(opts Options) (*HTML, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/listing.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse listing template: %w", err)
	}
	return &HTML{opts: opts, tmpl: tmpl}, nil
}

// Render lists dir. An unreadable directory is an error; unreadable
// entries are shown with an unknown size.
func (h *HTML) Render(root, dir, requestPath string) (string, error) {
	entries, files, err := ReadEntries(dir, h.opts.Thumbnails)
	if err != nil {
		return "", err
	}

	display, err := url.PathUnescape(requestPath)
	if err != nil {
		display = requestPath
	}
	rootName := filepath.Base(root)
	if rootName == "." || rootName == string(filepath.Separator) {
		rootName = "/"
	}

	p := page{
		RootName:  rootName,
		Root:      root,
		Path:      display,
		Parent:    !samePath(root, dir),
		Entries:   entries,
		FileCount: files,
		ReadOnly:  h.opts.ReadOnly,
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render listing: %w", err)
	}
	return buf.String(), nil
}

// ReadEntries returns dir's visible entries, directories first and then
// files, each group ordered case-insensitively. files counts the regular
// files, which is what a zip of dir would contain.
func ReadEntries(dir string, thumbs bool) (entries []Entry, files int, err error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	for _, de := range des {
		name := de.Name()
		if upload.IsStagingName(name) {
			continue
		}
		if de.Type().IsRegular() {
			files++
		}

		e := Entry{Name: name, Href: url.PathEscape(name), Size: "?"}
		info, statErr := os.Stat(filepath.Join(dir, name))
		switch {
		case statErr != nil:
		case info.IsDir():
			e.IsDir = true
			e.Name += "/"
			e.Href += "/"
			e.Size = "-"
		default:
			e.Size = humanize.Bytes(uint64(info.Size()))
			if thumbs && mimetypes.IsImage(name) {
				e.Thumb = e.Href + "?thumb=1"
			}
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
	return entries, files, nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
