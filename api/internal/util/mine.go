package util

import (
	"net/http"
	"strings"
)

// IsImageMIME reports whether http.DetectContentType sees an image in b.
func IsImageMIME(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(b), "image/")
}
