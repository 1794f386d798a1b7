// Package tagger rewrites the ID3 container of a finished MP3: title,
// artists, album (through a fallback chain), year, track number, and the
// optional enrichment frames for cover art and lyrics.
package tagger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/lvcoi/tubetag/internal/albumart"
	"github.com/lvcoi/tubetag/internal/lyrics"
	"github.com/lvcoi/tubetag/internal/names"
)

// Source holds the raw metadata fields reported by the media engine for one
// item. All fields are optional.
type Source struct {
	Title       string
	Artist      string
	Channel     string
	Album       string
	UploadDate  string // YYYYMMDD
	ReleaseDate string // YYYYMMDD
	Description string
	Thumbnail   string
}

// Request describes one tagging operation.
type Request struct {
	Path          string
	Source        Source
	PlaylistItem  bool
	TrackNumber   int // 1-based, playlist items only
	TotalTracks   int
	PlaylistTitle string
}

// TagError reports that a file could not be opened or saved as a tag
// container. The queue skips the item's enrichment and continues.
type TagError struct {
	Path string
	Err  error
}

func (e *TagError) Error() string {
	return fmt.Sprintf("tagging %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *TagError) Unwrap() error {
	return e.Err
}

// Logger receives per-field tagging notes and enrichment warnings.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// Tagger rewrites tags and runs the enrichment passes.
type Tagger struct {
	art        *albumart.Processor
	lyrics     *lyrics.Resolver
	skipArt    bool
	skipLyrics bool
	log        Logger
}

func New(art *albumart.Processor, lyr *lyrics.Resolver, skipArt, skipLyrics bool, log Logger) *Tagger {
	if log == nil {
		log = nopLogger{}
	}
	return &Tagger{
		art:        art,
		lyrics:     lyr,
		skipArt:    skipArt,
		skipLyrics: skipLyrics,
		log:        log,
	}
}

// Tag clears any pre-existing frames on the file and writes the full tag set
// in one atomic save. Enrichment failures (art, lyrics, year) are warnings;
// anything else aborts the operation before the save so a partial tag write
// is never reported as success.
func (t *Tagger) Tag(ctx context.Context, req Request) error {
	tag, err := id3v2.Open(req.Path, id3v2.Options{Parse: true})
	if err != nil {
		return &TagError{Path: req.Path, Err: err}
	}
	defer tag.Close()

	// Stale frames from a previous run would otherwise survive alongside
	// the new ones.
	tag.DeleteAllFrames()

	title := req.Source.Title
	if title == "" {
		title = "Unknown Title"
	}
	tag.SetTitle(title)

	artists := resolveArtists(req.Source)
	tag.SetArtist(strings.Join(artists, "/"))
	t.log.Infof("tagged artist(s): %s", strings.Join(artists, ", "))

	album := resolveAlbum(req, artists[0])
	tag.SetAlbum(album)
	t.log.Infof("tagged album: %s", album)

	if year := releaseYear(req.Source.UploadDate); year != "" {
		tag.AddTextFrame(tag.CommonID("Year"), tag.DefaultEncoding(), year)
	} else {
		t.log.Warnf("could not determine year for %s", filepath.Base(req.Path))
	}

	if track := trackString(req); track != "" {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), track)
	}

	if t.skipArt {
		t.log.Infof("skipping album art embedding")
	} else {
		t.embedArt(ctx, tag, req.Source.Thumbnail)
	}

	if t.skipLyrics {
		t.log.Infof("skipping lyrics lookup")
	} else {
		t.embedLyrics(ctx, tag, req.Source.Description, title, artists[0])
	}

	if err := tag.Save(); err != nil {
		return &TagError{Path: req.Path, Err: err}
	}
	return nil
}

func (t *Tagger) embedArt(ctx context.Context, tag *id3v2.Tag, thumbnailURL string) {
	if thumbnailURL == "" {
		t.log.Warnf("no thumbnail URL for album art")
		return
	}
	pic, err := t.art.Fetch(ctx, thumbnailURL)
	if err != nil {
		t.log.Warnf("album art unavailable: %v", err)
		return
	}
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    tag.DefaultEncoding(),
		MimeType:    pic.MIMEType,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     pic.Data,
	})
}

func (t *Tagger) embedLyrics(ctx context.Context, tag *id3v2.Tag, description, title, artist string) {
	text, ok := t.lyrics.Resolve(ctx, description, title, artist)
	if !ok {
		t.log.Warnf("no substantial lyrics found for %q", title)
		return
	}
	tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
		Encoding:          tag.DefaultEncoding(),
		Language:          "eng",
		ContentDescriptor: "Lyrics",
		Lyrics:            text,
	})
}

// resolveArtists prefers the explicit artist field over the channel name and
// never returns an empty list.
func resolveArtists(src Source) []string {
	var artists []string
	if src.Artist != "" {
		artists = names.ParseArtists(src.Artist)
	} else if src.Channel != "" {
		artists = names.ParseArtists(src.Channel)
	}
	if len(artists) == 0 {
		artists = []string{names.UnknownArtist}
	}
	return artists
}

// resolveAlbum applies the album fallback chain: playlist title, explicit
// album field, "YouTube Single" when the channel is just the artist,
// release-date synthesis, cleaned channel name, then "YouTube Single".
func resolveAlbum(req Request, primaryArtist string) string {
	src := req.Source
	if req.PlaylistItem && req.PlaylistTitle != "" {
		return names.CleanSuffix(req.PlaylistTitle)
	}
	if src.Album != "" {
		return names.CleanSuffix(src.Album)
	}
	if src.Channel != "" {
		channel := names.CleanSuffix(src.Channel)
		lowerArtist := strings.ToLower(primaryArtist)
		generic := lowerArtist == strings.ToLower(names.UnknownArtist) || lowerArtist == "various artists"
		if strings.EqualFold(primaryArtist, channel) && !generic {
			return "YouTube Single"
		}
		if year := releaseYear(src.ReleaseDate); year != "" {
			if primaryArtist != "" && !generic {
				return fmt.Sprintf("%s - Single (%s)", primaryArtist, year)
			}
			return fmt.Sprintf("Single (%s)", year)
		}
		return channel
	}
	return "YouTube Single"
}

// releaseYear extracts a 4-digit year from a YYYYMMDD date field.
func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// trackString builds the N/Total track frame value. Track numbering only
// applies to playlist items.
func trackString(req Request) string {
	if !req.PlaylistItem || req.TrackNumber <= 0 {
		return ""
	}
	if req.TotalTracks > 0 {
		return fmt.Sprintf("%d/%d", req.TrackNumber, req.TotalTracks)
	}
	return fmt.Sprintf("%d", req.TrackNumber)
}
