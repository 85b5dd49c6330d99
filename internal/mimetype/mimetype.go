// Package mimetype maps file extensions to Content-Type values for
// static file responses.
package mimetype

import "strings"

var byExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".md":   "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
	".wasm": "application/wasm",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".bin":  "application/octet-stream",
}

// Default is the fallback Content-Type for unrecognized extensions.
const Default = "application/octet-stream"

// ForPath returns the Content-Type for a file path based on its extension,
// matched case-insensitively, falling back to Default.
func ForPath(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot == len(path)-1 {
		return Default
	}
	ext := strings.ToLower(path[dot:])
	if ct, ok := byExt[ext]; ok {
		return ct
	}
	return Default
}
