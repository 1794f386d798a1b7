// Package queue drives the download queue: validation, sequential
// processing of single videos and playlists through the external media
// engine, and per-item metadata enrichment of the resulting audio files.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lvcoi/tubetag/internal/fetcher"
	"github.com/lvcoi/tubetag/internal/history"
	"github.com/lvcoi/tubetag/internal/names"
	"github.com/lvcoi/tubetag/internal/tagger"
)

// Format selects the queue's output mode.
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// Options describes one queue run.
type Options struct {
	OutputDir       string
	Format          Format
	MP3Bitrate      string // 128k, 192k, 256k or 320k
	VideoResolution string // e.g. 1080p; "best" removes the ceiling
	ShowProgress    bool
}

// Summary is the final accounting for a run. Completed counts queue-level
// URLs, not playlist sub-entries.
type Summary struct {
	Completed int
	Total     int
	Aborted   bool
}

// Tagger is the enrichment stage applied to finished audio files.
type Tagger interface {
	Tag(ctx context.Context, req tagger.Request) error
}

// Recorder persists finished downloads. Recording failures never fail an
// item; the media is already on disk.
type Recorder interface {
	Add(r history.Record) (int64, error)
}

// Processor runs queues sequentially on a single worker. The controlling
// context interacts with a running queue only through Abort and the
// Printer's event stream.
type Processor struct {
	fetcher fetcher.Fetcher
	tagger  Tagger
	printer *Printer
	opts    Options

	abort    atomic.Bool
	sleep    func(time.Duration)
	onRunEnd func()
	recorder Recorder
}

func NewProcessor(f fetcher.Fetcher, t Tagger, printer *Printer, opts Options) *Processor {
	if printer == nil {
		printer = NewPrinter(false, false)
	}
	return &Processor{
		fetcher: f,
		tagger:  t,
		printer: printer,
		opts:    opts,
		sleep:   time.Sleep,
	}
}

// Abort requests a cooperative stop. Safe to call from any goroutine; the
// worker honors it before starting the next un-started item or playlist
// entry. An in-flight engine invocation is allowed to finish.
func (p *Processor) Abort() {
	p.abort.Store(true)
	p.printer.Warnf("abort signal received, stopping after the current item")
}

// SetRecorder enables download-history persistence for subsequent runs.
func (p *Processor) SetRecorder(r Recorder) {
	p.recorder = r
}

// OnRunEnd registers a callback invoked when a run ends on any path
// (completion, abort, fatal error). The caller uses it to restore its own
// state; it runs on the worker goroutine.
func (p *Processor) OnRunEnd(fn func()) {
	p.onRunEnd = fn
}

// Run validates and processes the URL list. Validation failures return
// before any item is processed. Per-item failures are logged and skipped;
// only a missing engine/transcoder stops the whole run.
func (p *Processor) Run(ctx context.Context, urls []string) (Summary, error) {
	urls, removed := Dedupe(urls)
	if removed > 0 {
		p.printer.Infof("removed %d duplicate URL(s) from the queue", removed)
	}
	if err := p.validate(urls); err != nil {
		return Summary{}, err
	}

	// The flag is never reset here: an Abort that lands before Run starts
	// (an immediate interrupt) must still stop the queue.
	summary := Summary{Total: len(urls)}

	defer func() {
		if p.onRunEnd != nil {
			p.onRunEnd()
		}
	}()

	p.printer.Infof("starting download queue: %d item(s) -> %s", len(urls), p.opts.OutputDir)

	var runErr error
	for i, url := range urls {
		if p.stopRequested(ctx) {
			p.printer.Warnf("queue aborted at item %d/%d", i+1, summary.Total)
			summary.Aborted = true
			break
		}

		itemID := uuid.NewString()
		p.printer.Infof("processing item %d/%d: %s", i+1, summary.Total, url)

		err := p.processItem(ctx, itemID, url)
		switch {
		case errors.Is(err, errAborted):
			summary.Aborted = true
		case err != nil && isFatal(err):
			p.printer.Errorf("fatal: %v", err)
			p.printer.Event(Event{Type: "item", Status: "error", ItemID: itemID, URL: url, Error: err.Error()})
			runErr = err
		case err != nil:
			p.printer.Errorf("error processing %s: %v", url, err)
			p.printer.Event(Event{Type: "item", Status: "error", ItemID: itemID, URL: url, Error: err.Error()})
			continue
		default:
			summary.Completed++
			p.printer.Event(Event{Type: "item", Status: "ok", ItemID: itemID, URL: url})
			continue
		}
		break
	}

	p.printer.Summary(summary)
	return summary, runErr
}

func (p *Processor) validate(urls []string) error {
	if len(urls) == 0 {
		return wrapCategory(CategoryInvalidURL, errors.New("no URLs in the queue"))
	}
	info, err := os.Stat(p.opts.OutputDir)
	if err != nil || !info.IsDir() {
		return wrapCategory(CategoryInvalidURL, fmt.Errorf("output directory %q does not exist", p.opts.OutputDir))
	}
	for _, url := range urls {
		if err := ValidateURL(url); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) stopRequested(ctx context.Context) bool {
	return p.abort.Load() || ctx.Err() != nil
}

func (p *Processor) processItem(ctx context.Context, itemID, url string) error {
	if IsPlaylistURL(url) {
		return p.processPlaylist(ctx, itemID, url)
	}
	return p.processSingle(ctx, itemID, url)
}

func (p *Processor) fetchRequest(outputTemplate string) fetcher.Request {
	req := fetcher.Request{
		OutputTemplate: outputTemplate,
		ShowProgress:   p.opts.ShowProgress,
	}
	if p.opts.Format == FormatAudio {
		req.FormatSpec = fetcher.AudioFormat()
		req.ExtractAudio = true
		req.AudioBitrate = p.opts.MP3Bitrate
	} else {
		req.FormatSpec = fetcher.VideoFormat(p.opts.VideoResolution)
	}
	return req
}

func (p *Processor) processSingle(ctx context.Context, itemID, url string) error {
	template := filepath.Join(p.opts.OutputDir, "%(title)s.%(ext)s")
	result, err := p.fetcher.Fetch(ctx, url, p.fetchRequest(template))
	if err != nil {
		return classifyFetchError(err)
	}

	if p.opts.Format != FormatAudio {
		p.printer.Infof("video downloaded to %s", result.Path)
		p.record(history.Record{
			SourceURL: url,
			Title:     result.Info.Title,
			Artist:    result.Info.Artist,
			Path:      result.Path,
			Kind:      "video",
		})
		return nil
	}

	prefix := names.SanitizeFilename(result.Info.Title)
	audioPath, err := locateAudioFile(result.Path, p.opts.OutputDir, prefix, p.sleep)
	if err != nil {
		return err
	}

	tagErr := p.tagFile(ctx, tagger.Request{
		Path:        audioPath,
		Source:      sourceFromInfo(result.Info),
		TotalTracks: 1,
	})
	p.record(history.Record{
		SourceURL: url,
		Title:     result.Info.Title,
		Artist:    result.Info.Artist,
		Album:     result.Info.Album,
		Path:      audioPath,
		Kind:      "audio",
		Tagged:    tagErr == nil,
		TagError:  errString(tagErr),
	})
	return nil
}

func (p *Processor) processPlaylist(ctx context.Context, itemID, url string) error {
	p.printer.Infof("detected a playlist URL, fetching playlist info")
	meta, err := p.fetcher.FetchMetadata(ctx, url)
	if err != nil {
		return classifyFetchError(err)
	}
	if len(meta.Entries) == 0 {
		return wrapCategory(CategoryUnsupported, fmt.Errorf("playlist %s has no entries", url))
	}

	title := meta.Title
	if title == "" {
		title = "Unknown Playlist"
	}
	playlistTitle := names.CleanSuffix(title)

	playlistDir := filepath.Join(p.opts.OutputDir, names.SanitizeFilename(playlistTitle))
	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("creating playlist folder: %w", err))
	}
	total := len(meta.Entries)
	p.printer.Infof("playlist %q has %d video(s)", playlistTitle, total)

	for j, entry := range meta.Entries {
		if p.stopRequested(ctx) {
			p.printer.Warnf("aborted within playlist at entry %d/%d", j+1, total)
			return errAborted
		}
		if entry.URL == "" {
			p.printer.Warnf("skipping playlist entry %d/%d: no URL", j+1, total)
			continue
		}

		base := entryFilenameBase(j, entry)
		template := filepath.Join(playlistDir, base+".%(ext)s")
		p.printer.Infof("downloading entry %d/%d: %q", j+1, total, entry.Title)

		result, err := p.fetcher.Fetch(ctx, entry.URL, p.fetchRequest(template))
		if err != nil {
			err = classifyFetchError(err)
			if isFatal(err) {
				return err
			}
			p.printer.Errorf("entry %d/%d failed: %v", j+1, total, err)
			p.printer.Event(Event{Type: "entry", Status: "error", ItemID: itemID, URL: entry.URL, Title: entry.Title, Index: j + 1, Total: total, Error: err.Error()})
			continue
		}

		if p.opts.Format == FormatAudio {
			audioPath, err := locateAudioFile(result.Path, playlistDir, base, p.sleep)
			if err != nil {
				p.printer.Errorf("entry %d/%d: %v", j+1, total, err)
				continue
			}
			tagErr := p.tagFile(ctx, tagger.Request{
				Path:          audioPath,
				Source:        sourceFromInfo(result.Info),
				PlaylistItem:  true,
				TrackNumber:   j + 1,
				TotalTracks:   total,
				PlaylistTitle: playlistTitle,
			})
			p.record(history.Record{
				SourceURL:     entry.URL,
				Title:         result.Info.Title,
				Artist:        result.Info.Artist,
				Album:         result.Info.Album,
				Path:          audioPath,
				Kind:          "audio",
				TrackNumber:   j + 1,
				PlaylistTitle: playlistTitle,
				Tagged:        tagErr == nil,
				TagError:      errString(tagErr),
			})
		}
		p.printer.Event(Event{Type: "entry", Status: "ok", ItemID: itemID, URL: entry.URL, Title: entry.Title, Output: result.Path, Index: j + 1, Total: total})
	}
	return nil
}

// tagFile runs enrichment. Tagging problems never fail the queue item; the
// audio itself downloaded fine.
func (p *Processor) tagFile(ctx context.Context, req tagger.Request) error {
	p.printer.Infof("processing metadata for %s", filepath.Base(req.Path))
	if err := p.tagger.Tag(ctx, req); err != nil {
		err = wrapCategory(CategoryTag, err)
		p.printer.Errorf("%v", err)
		return err
	}
	return nil
}

func (p *Processor) record(r history.Record) {
	if p.recorder == nil {
		return
	}
	if _, err := p.recorder.Add(r); err != nil {
		p.printer.Warnf("could not record download history: %v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// entryFilenameBase builds "NN - artist - title" for a playlist entry.
func entryFilenameBase(index int, entry fetcher.Entry) string {
	artist := entry.Artist
	if artist == "" {
		artist = entry.Channel
	}
	artistPart := names.SanitizeFilename(artist)
	if artistPart == "" {
		artistPart = names.UnknownArtist
	}
	return fmt.Sprintf("%02d - %s - %s", index+1, artistPart, names.SanitizeFilename(entry.Title))
}

func sourceFromInfo(info fetcher.Info) tagger.Source {
	return tagger.Source{
		Title:       info.Title,
		Artist:      info.Artist,
		Channel:     info.Channel,
		Album:       info.Album,
		UploadDate:  info.UploadDate,
		ReleaseDate: info.ReleaseDate,
		Description: info.Description,
		Thumbnail:   info.Thumbnail,
	}
}

func classifyFetchError(err error) error {
	var toolErr *fetcher.ToolMissingError
	if errors.As(err, &toolErr) {
		return wrapCategory(CategoryMissingTool, err)
	}
	return wrapCategory(CategoryDownload, err)
}
