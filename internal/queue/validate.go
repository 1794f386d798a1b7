package queue

import (
	"fmt"
	"net/url"
	"strings"
)

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// Dedupe removes exact-match duplicate URLs while preserving order, and
// reports how many were dropped. De-duplication happens before a run starts
// so the reported total matches what actually gets processed.
func Dedupe(urls []string) ([]string, int) {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	removed := 0
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			removed++
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	return unique, removed
}

// ValidateURL accepts only http/https URLs on a recognized YouTube host.
// Both conditions are required; an arbitrary http:// URL is rejected.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return wrapCategory(CategoryInvalidURL, fmt.Errorf("invalid URL %q: %w", raw, err))
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return wrapCategory(CategoryInvalidURL, fmt.Errorf("unsupported URL scheme in %q", raw))
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if _, ok := youtubeHosts[host]; !ok {
		return wrapCategory(CategoryInvalidURL, fmt.Errorf("not a YouTube URL: %q", raw))
	}
	return nil
}

// IsPlaylistURL classifies a queue URL. Shorts URLs carry list parameters
// but are still single videos.
func IsPlaylistURL(raw string) bool {
	if strings.Contains(raw, "/shorts/") {
		return false
	}
	return strings.Contains(raw, "playlist?list=") || strings.Contains(raw, "/playlist/")
}
