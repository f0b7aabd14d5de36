package mimetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := map[string]string{
		"movie.mp4":          "video/mp4",
		"MOVIE.MKV":          "video/x-matroska",
		"song.flac":          "audio/flac",
		"photo.HEIC":         "image/heic",
		"report.pdf":         "application/pdf",
		"archive.tar.gz":     "application/gzip",
		"list.m3u8":          "application/vnd.apple.mpegurl",
		"font.woff2":         "font/woff2",
		"app.apk":            "application/vnd.android.package-archive",
		"noextension":        Default,
		"weird.unknownthing": Default,
		".hidden":            Default,
	}
	for name, want := range tests {
		assert.Equal(t, want, Lookup(name), name)
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.JPG"))
	assert.True(t, IsImage("b.webp"))
	assert.False(t, IsImage("c.svg"))
	assert.False(t, IsImage("d.heic"))
	assert.False(t, IsImage("e.txt"))
}
