package http

import "strings"

// MimeTypeFallback is served when no extension rule matches.
const MimeTypeFallback = "application/octet-stream"

var mimeTypes = map[string]string{
	"css": "text/css",
	"htm": "text/html",
	"jpg": "image/jpeg",
	"js":  "application/javascript",
	"png": "image/png",
	"txt": "text/plain",
}

// MimeTypeForFileName maps a file name to a MIME type by its last
// extension.
func MimeTypeForFileName(fileName string) string {
	dot := strings.LastIndexByte(fileName, '.')
	if dot == -1 || dot == len(fileName)-1 {
		return MimeTypeFallback
	}
	if mime, ok := mimeTypes[fileName[dot+1:]]; ok {
		return mime
	}
	return MimeTypeFallback
}
