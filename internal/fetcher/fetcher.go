// Package fetcher is the boundary to the external media download/transcode
// engine. The engine owns network retrieval, stream selection within a format
// spec, and audio extraction; this package only builds requests, runs the
// engine, and reports results in a typed form.
package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Entry is one video within a playlist, in playlist order.
type Entry struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Channel string `json:"channel"`
}

// Metadata is the result of a metadata-only fetch. Entries is nil for a
// single video.
type Metadata struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Info carries the raw per-item metadata fields the engine reports after a
// download. Field availability varies per video; consumers treat every field
// as optional.
type Info struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	UploadDate  string `json:"upload_date"`
	ReleaseDate string `json:"release_date"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Filename    string `json:"_filename"`
}

// Request describes one download invocation.
type Request struct {
	// FormatSpec selects streams in the engine's format language.
	FormatSpec string
	// OutputTemplate uses the engine's %(title)s.%(ext)s semantics; the
	// final extension is decided by the engine and its postprocessors.
	OutputTemplate string
	// ExtractAudio converts the download to MP3 at AudioBitrate.
	ExtractAudio bool
	AudioBitrate string
	// ShowProgress keeps the engine's own progress bar enabled. The engine
	// writes it to stderr, which the runner passes through when a progress
	// sink is configured.
	ShowProgress bool
}

// Result is the engine's report for one downloaded media item.
type Result struct {
	// Path is the output path the engine reported. For audio extraction the
	// extension may still name the pre-conversion container.
	Path string
	Info Info
}

// Fetcher is the external media engine as consumed by the queue processor.
type Fetcher interface {
	// FetchMetadata enumerates a URL without downloading anything.
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)
	// Fetch downloads (and post-processes) one media item.
	Fetch(ctx context.Context, url string, req Request) (*Result, error)
}

// AudioFormat selects the best audio-only source for later MP3 extraction.
func AudioFormat() string {
	return "bestaudio/best"
}

// VideoFormat selects best MP4 video+audio under a height ceiling derived
// from a resolution label like "1080p". The label "best" removes the ceiling.
func VideoFormat(resolution string) string {
	if resolution == "" || resolution == "best" {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	}
	height := strings.TrimSuffix(resolution, "p")
	return fmt.Sprintf("bestvideo[ext=mp4][height<=%s]+bestaudio[ext=m4a]/best[ext=mp4]/best", height)
}
