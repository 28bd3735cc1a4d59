// Package contenttype maps file extensions to MIME types using a static,
// build-time table. Files with extensions outside the table are rejected
// before any remote call is made.
package contenttype

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownExtension is returned for extensions missing from the table.
var ErrUnknownExtension = errors.New("unknown file extension")

var byExtension = map[string]string{
	".aac":   "audio/aac",
	".avi":   "video/x-msvideo",
	".bin":   "application/octet-stream",
	".bmp":   "image/bmp",
	".bz2":   "application/x-bzip2",
	".css":   "text/css",
	".csv":   "text/csv",
	".flac":  "audio/flac",
	".gif":   "image/gif",
	".gz":    "application/gzip",
	".htm":   "text/html",
	".html":  "text/html",
	".ico":   "image/vnd.microsoft.icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript",
	".json":  "application/json",
	".md":    "text/markdown",
	".mov":   "video/quicktime",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".mpeg":  "video/mpeg",
	".ogg":   "audio/ogg",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".tar":   "application/x-tar",
	".tif":   "image/tiff",
	".tiff":  "image/tiff",
	".txt":   "text/plain",
	".wav":   "audio/wav",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".xml":   "application/xml",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
	".zip":   "application/zip",
	".zst":   "application/zstd",
	".7z":    "application/x-7z-compressed",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// ForPath returns the MIME type registered for path's extension.
func ForPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", fmt.Errorf("%s has no extension: %w", path, ErrUnknownExtension)
	}

	contentType, ok := byExtension[ext]
	if !ok {
		return "", fmt.Errorf("%s: %w", ext, ErrUnknownExtension)
	}
	return contentType, nil
}
