package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lvcoi/tubetag/internal/albumart"
	"github.com/lvcoi/tubetag/internal/config"
	"github.com/lvcoi/tubetag/internal/fetcher"
	"github.com/lvcoi/tubetag/internal/history"
	"github.com/lvcoi/tubetag/internal/lyrics"
	"github.com/lvcoi/tubetag/internal/queue"
	"github.com/lvcoi/tubetag/internal/tagger"
	"github.com/lvcoi/tubetag/internal/webclient"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (continuing with defaults)\n", err)
	}

	var (
		video       bool
		quiet       bool
		saveConfig  bool
		noHistory   bool
		listHistory int
	)
	flag.StringVar(&settings.OutputDir, "o", settings.OutputDir, "output directory")
	flag.BoolVar(&video, "video", false, "download video instead of extracting MP3 audio")
	flag.StringVar(&settings.MP3Bitrate, "bitrate", settings.MP3Bitrate, "MP3 bitrate: 128k, 192k, 256k or 320k")
	flag.StringVar(&settings.VideoQuality, "quality", settings.VideoQuality, "video quality ceiling (e.g. 1080p) or \"best\"")
	flag.StringVar(&settings.FFmpegPath, "ffmpeg", settings.FFmpegPath, "path to the ffmpeg binary (empty = search PATH)")
	flag.BoolVar(&settings.SkipLyrics, "no-lyrics", settings.SkipLyrics, "skip lyrics lookup and embedding")
	flag.BoolVar(&settings.SkipAlbumArt, "no-art", settings.SkipAlbumArt, "skip album art embedding")
	flag.BoolVar(&settings.ShowProgress, "progress", settings.ShowProgress, "show the engine's download progress bar")
	flag.BoolVar(&settings.JSONEvents, "json", settings.JSONEvents, "emit machine-readable progress events on stdout")
	flag.BoolVar(&quiet, "quiet", false, "suppress info logging (warnings and errors still shown)")
	flag.BoolVar(&saveConfig, "save-config", false, "persist the effective settings for future runs")
	flag.BoolVar(&noHistory, "no-history", false, "do not record downloads in the local history database")
	flag.IntVar(&listHistory, "history", 0, "list the N most recent downloads and exit")
	flag.Parse()
	settings.Normalize()

	printer := queue.NewPrinter(quiet, settings.JSONEvents)

	if saveConfig {
		if err := settings.Save(); err != nil {
			printer.Warnf("could not save settings: %v", err)
		}
	}

	var store *history.Store
	if !noHistory || listHistory > 0 {
		store, err = openHistory()
		if err != nil {
			printer.Warnf("download history unavailable: %v", err)
		} else {
			defer store.Close()
		}
	}

	if listHistory > 0 {
		if store == nil {
			os.Exit(1)
		}
		records, err := store.Recent(listHistory)
		if err != nil {
			printer.Errorf("%v", err)
			os.Exit(1)
		}
		printHistory(records)
		return
	}

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <url> [url...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	engine := fetcher.NewYTDLP("yt-dlp", settings.FFmpegPath)
	if settings.ShowProgress && !quiet {
		engine.ProgressOut = os.Stderr
	}
	if err := engine.CheckTools(); err != nil {
		exitWith(printer, settings.JSONEvents, queue.CategorizedError{Category: queue.CategoryMissingTool, Err: err})
	}

	client := webclient.New(0)
	tag := tagger.New(
		albumart.NewProcessor(client),
		lyrics.NewResolver(client, printer),
		settings.SkipAlbumArt,
		settings.SkipLyrics,
		printer,
	)

	format := queue.FormatAudio
	if video {
		format = queue.FormatVideo
	}
	processor := queue.NewProcessor(engine, tag, printer, queue.Options{
		OutputDir:       settings.OutputDir,
		Format:          format,
		MP3Bitrate:      settings.MP3Bitrate,
		VideoResolution: settings.VideoQuality,
		ShowProgress:    settings.ShowProgress && !quiet,
	})
	if !noHistory && store != nil {
		processor.SetRecorder(store)
	}

	// First interrupt aborts cooperatively; a second one kills the process.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		processor.Abort()
		<-sigs
		os.Exit(130)
	}()

	_, err = processor.Run(context.Background(), urls)
	if err != nil {
		exitWith(printer, settings.JSONEvents, err)
	}
}

func openHistory() (*history.Store, error) {
	settingsPath, err := config.Path()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(dir, "history.db"))
}

func printHistory(records []history.Record) {
	if len(records) == 0 {
		fmt.Println("no recorded downloads")
		return
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %s", r.CreatedAt.Format("2006-01-02 15:04"), r.Title)
		if r.Artist != "" {
			line += "  [" + r.Artist + "]"
		}
		if r.PlaylistTitle != "" {
			line += fmt.Sprintf("  (%s #%d)", r.PlaylistTitle, r.TrackNumber)
		}
		fmt.Println(line)
		fmt.Println("    " + r.Path)
	}
}

func exitWith(printer *queue.Printer, jsonOut bool, err error) {
	if jsonOut {
		payload := struct {
			Type     string `json:"type"`
			Category string `json:"category"`
			Error    string `json:"error"`
		}{
			Type:     "error",
			Category: string(queue.CategoryOf(err)),
			Error:    err.Error(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(payload)
	} else {
		printer.Errorf("%v", err)
	}
	os.Exit(queue.ExitCode(err))
}
