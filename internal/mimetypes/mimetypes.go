// Package mimetypes maps file extensions to the Content-Type the gateway
// serves them with.
package mimetypes

import (
	"path/filepath"
	"strings"
)

// Default is served for unknown extensions.
const Default = "application/octet-stream"

var byExtension = map[string]string{
	// video formats
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".ogv":  "video/ogg",
	".3gp":  "video/3gpp",
	".3g2":  "video/3gpp2",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".mts":  "video/mp2t",
	".vob":  "video/dvd",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",

	// audio formats
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".m4p":  "audio/mp4",
	".m4r":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".aifc": "audio/aiff",
	".caf":  "audio/x-caf",
	".mid":  "audio/midi",
	".midi": "audio/midi",
	".weba": "audio/webm",
	".mka":  "audio/x-matroska",

	// image formats
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".bmp":   "image/bmp",
	".tiff":  "image/tiff",
	".tif":   "image/tiff",
	".heic":  "image/heic",
	".heif":  "image/heif",
	".heics": "image/heic-sequence",
	".avif":  "image/avif",
	".raw":   "image/raw",
	".cr2":   "image/x-canon-cr2",
	".nef":   "image/x-nikon-nef",
	".arw":   "image/x-sony-arw",
	".dng":   "image/dng",

	// document formats
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".md":   "text/markdown",

	// archive formats
	".zip": "application/zip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".bz2": "application/x-bzip2",
	".xz":  "application/x-xz",

	// streaming playlist formats
	".m3u":  "audio/x-mpegurl",
	".m3u8": "application/vnd.apple.mpegurl",
	".pls":  "audio/x-scpls",

	// font formats
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",

	// other common formats
	".apk":     "application/vnd.android.package-archive",
	".exe":     "application/x-msdownload",
	".dmg":     "application/x-apple-diskimage",
	".iso":     "application/x-iso9660-image",
	".torrent": "application/x-bittorrent",
}

// Lookup returns the content type for name by its lower-cased extension.
func Lookup(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := byExtension[ext]; ok {
		return ct
	}
	return Default
}

// IsImage reports whether name has a raster image type that can be
// decoded for thumbnails.
func IsImage(name string) bool {
	switch Lookup(name) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
