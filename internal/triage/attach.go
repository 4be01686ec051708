package triage

import (
	"strings"

	"github.com/joebot/relaybot/internal/bus"
)

// ImageExtensions is the allow-list of image file suffixes, lowercase.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// IsImage reports whether filename ends with an image extension, ignoring case.
func IsImage(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range ImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Images keeps the image attachments, preserving order.
func Images(attachments []bus.Attachment) []bus.Attachment {
	var out []bus.Attachment
	for _, a := range attachments {
		if IsImage(a.Filename) {
			out = append(out, a)
		}
	}
	return out
}
