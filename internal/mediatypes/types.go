package mediatypes

import (
	"net/http"
	"path/filepath"
	"strings"
)

// FileType represents the broad class of a media file.
type FileType string

const (
	// FileTypeImage represents an image file eligible for variants.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// extensions maps MIME types back to a canonical extension, without the dot.
var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/avif":      "avif",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"video/mp4":       "mp4",
	"video/x-matroska": "mkv",
	"video/quicktime": "mov",
	"video/webm":      "webm",
	"video/x-m4v":     "m4v",
	"video/mpeg":      "mpg",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ExtForMime returns the canonical extension (without dot) for a MIME type,
// or "" if unknown.
func ExtForMime(mime string) string {
	return extensions[strings.ToLower(mime)]
}

// IsImageMime reports whether the MIME type is an image type.
func IsImageMime(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}

// Classify determines the MIME type of an upload from its content, falling
// back to the filename extension when sniffing yields something generic.
// http.DetectContentType only needs the first 512 bytes.
func Classify(filename string, head []byte) string {
	sniffed := http.DetectContentType(head)
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "text/plain") {
		return strings.TrimSpace(strings.Split(sniffed, ";")[0])
	}
	return GetMimeType(strings.ToLower(filepath.Ext(filename)))
}
