package triage

import (
	"regexp"
	"strings"
)

// CanonicalPrefix is the tag every recognized link carries in front of its
// platform marker after normalization.
const CanonicalPrefix = "kk"

// PlatformMarkers are the lowercase host fragments that identify a video link.
var PlatformMarkers = []string{"instagram", "tiktok"}

var (
	// Scheme links, or bare hosts with a path such as vxinstagram.com/reel/1.
	// A bare host needs the path so prose like "ok.so" is not taken for a link.
	linkPattern = regexp.MustCompile(`(?i)https?://[^\s<>]+|\b(?:[a-z0-9-]+\.)+[a-z]{2,}/[^\s<>]*`)

	// One pass over every marker occurrence; a two-letter tag in front is replaced.
	markerPattern = regexp.MustCompile(`(?i)([a-z]{2})?(` + strings.Join(PlatformMarkers, "|") + `)`)
)

// ExtractLinks returns every URL-shaped substring of text in order of appearance.
func ExtractLinks(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)>]'\"")
		if m != "" {
			links = append(links, m)
		}
	}
	return links
}

// IsVideoLink reports whether link contains one of the platform markers.
func IsVideoLink(link string) bool {
	lower := strings.ToLower(link)
	for _, marker := range PlatformMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// VideoLinks filters links down to the ones carrying a platform marker.
func VideoLinks(links []string) []string {
	var out []string
	for _, l := range links {
		if IsVideoLink(l) {
			out = append(out, l)
		}
	}
	return out
}

// NormalizeLink rewrites every platform marker in link to carry exactly the
// canonical prefix, dropping any two-letter tag that was already there.
// Links without a marker are returned unchanged. NormalizeLink is idempotent.
func NormalizeLink(link string) string {
	// Inserting the prefix can complete a new tag in front of the next marker.
	for {
		out := markerPattern.ReplaceAllString(link, CanonicalPrefix+"${2}")
		if out == link {
			return out
		}
		link = out
	}
}
