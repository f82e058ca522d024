package gemini

import (
	"path/filepath"
	"strings"
)

var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageMIMEType returns the MIME type for an image filename by extension.
// Unknown extensions default to image/jpeg.
func ImageMIMEType(filename string) string {
	if mt, ok := imageMIMETypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "image/jpeg"
}
