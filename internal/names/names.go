// Package names holds the pure string utilities used when turning video
// metadata into filenames and tag values: filesystem sanitization, removal of
// auto-generated title suffixes, and splitting free-text artist strings.
package names

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// UnknownArtist is the sentinel used whenever no artist can be resolved.
const UnknownArtist = "Unknown Artist"

const maxFilenameLen = 200

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	multiSpace   = regexp.MustCompile(`\s+`)
	multiDot     = regexp.MustCompile(`\.+`)

	// Suffixes YouTube appends to channel, title and playlist names.
	suffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i) - Topic$`),
		regexp.MustCompile(`(?i) - Official Audio$`),
		regexp.MustCompile(`(?i) - Official Video$`),
		regexp.MustCompile(`(?i)\(Official Music Video\)$`),
		regexp.MustCompile(`(?i)\(Official Audio\)$`),
		regexp.MustCompile(`(?i)\[Official Music Video\]$`),
		regexp.MustCompile(`(?i)\[Official Audio\]$`),
		regexp.MustCompile(`(?i)^Album - `),
	}

	featMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*feat\.\s*`),
		regexp.MustCompile(`(?i)\s*ft\.\s*`),
		regexp.MustCompile(`\s*&\s*`),
	}
)

// SanitizeFilename strips characters that are invalid in filenames on common
// operating systems, collapses runs of whitespace and dots, and caps the
// length. The result never contains any of <>:"/\|?* and sanitizing twice
// yields the same string as sanitizing once.
func SanitizeFilename(name string) string {
	name = invalidChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(multiSpace.ReplaceAllString(name, " "))
	name = strings.Trim(multiDot.ReplaceAllString(name, "."), ".")
	if len(name) > maxFilenameLen {
		// Back up to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxFilenameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

// CleanSuffix removes common auto-generated suffixes ("- Topic",
// "(Official Audio)", ...) from artist, title and playlist names. Patterns
// are applied until no further change so stacked suffixes are fully removed
// and the function is idempotent.
func CleanSuffix(name string) string {
	for {
		before := name
		for _, pattern := range suffixPatterns {
			name = strings.TrimSpace(pattern.ReplaceAllString(name, ""))
		}
		if name == before {
			return name
		}
	}
}

// ParseArtists splits a free-text artist string into individual artist names.
// Commas, ampersands and feat./ft. markers all act as separators; each part
// is suffix-cleaned and empties are dropped.
func ParseArtists(artist string) []string {
	if strings.TrimSpace(artist) == "" {
		return nil
	}
	for _, marker := range featMarkers {
		artist = marker.ReplaceAllString(artist, ",")
	}

	var artists []string
	for _, part := range strings.Split(artist, ",") {
		cleaned := CleanSuffix(strings.TrimSpace(part))
		if cleaned != "" {
			artists = append(artists, cleaned)
		}
	}
	return artists
}
