package fetcher

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestVideoFormat(t *testing.T) {
	cases := []struct {
		name       string
		resolution string
		want       string
	}{
		{name: "capped", resolution: "1080p", want: "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{name: "lower cap", resolution: "720p", want: "bestvideo[ext=mp4][height<=720]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{name: "best removes ceiling", resolution: "best", want: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{name: "empty defaults to best", resolution: "", want: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VideoFormat(tc.resolution); got != tc.want {
				t.Fatalf("VideoFormat(%q) = %q, want %q", tc.resolution, got, tc.want)
			}
		})
	}
}

func TestFetchArgs(t *testing.T) {
	y := NewYTDLP("yt-dlp", "/opt/ffmpeg/ffmpeg")
	args := y.fetchArgs("https://www.youtube.com/watch?v=abc", Request{
		FormatSpec:     AudioFormat(),
		OutputTemplate: "/music/%(title)s.%(ext)s",
		ExtractAudio:   true,
		AudioBitrate:   "320k",
	})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f bestaudio/best",
		"-o /music/%(title)s.%(ext)s",
		"-x --audio-format mp3",
		"--audio-quality 320k",
		"--ffmpeg-location /opt/ffmpeg/ffmpeg",
		"--print-json",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected args to contain %q, got %q", want, joined)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("expected URL last, got %q", args[len(args)-1])
	}
	if !strings.Contains(joined, "--no-progress") {
		t.Fatalf("progress not suppressed by default: %q", joined)
	}
}

func TestFetchArgsShowProgress(t *testing.T) {
	y := NewYTDLP("", "")
	joined := strings.Join(y.fetchArgs("u", Request{ShowProgress: true}), " ")
	if strings.Contains(joined, "--no-progress") {
		t.Fatalf("progress suppressed despite ShowProgress: %q", joined)
	}
	for _, want := range []string{"--progress", "--newline"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected args to contain %q, got %q", want, joined)
		}
	}
}

func TestRunCommandTeesStderrToProgressOut(t *testing.T) {
	y := NewYTDLP("", "")
	var progress strings.Builder
	y.ProgressOut = &progress

	_, stderr, err := y.run(context.Background(), "sh", "-c", "echo downloading 42% >&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(string(stderr), "downloading 42%") {
		t.Fatalf("buffered stderr = %q", stderr)
	}
	if !strings.Contains(progress.String(), "downloading 42%") {
		t.Fatalf("progress sink = %q", progress.String())
	}
}

func TestFetchArgsVideoMode(t *testing.T) {
	y := NewYTDLP("", "")
	args := strings.Join(y.fetchArgs("u", Request{FormatSpec: VideoFormat("720p")}), " ")
	if strings.Contains(args, "-x") {
		t.Fatalf("video mode must not extract audio: %q", args)
	}
	if strings.Contains(args, "--ffmpeg-location") {
		t.Fatalf("no ffmpeg location configured: %q", args)
	}
}

const flatPlaylistJSON = `{
	"title": "My Mix (Official Audio)",
	"entries": [
		{"id": "a1", "url": "https://www.youtube.com/watch?v=a1", "title": "First Song", "channel": "Artist X"},
		{"id": "b2", "url": "https://www.youtube.com/watch?v=b2", "title": "Second Song", "artist": "Artist Y", "channel": "Label"}
	]
}`

func TestFetchMetadataParsesFlatPlaylist(t *testing.T) {
	y := NewYTDLP("", "")
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-J") || !strings.Contains(joined, "--flat-playlist") {
			t.Fatalf("metadata pass must be flat and download-free: %q", joined)
		}
		return []byte(flatPlaylistJSON), nil, nil
	}

	meta, err := y.FetchMetadata(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Title != "My Mix (Official Audio)" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if len(meta.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(meta.Entries))
	}
	if meta.Entries[1].Artist != "Artist Y" {
		t.Fatalf("unexpected artist %q", meta.Entries[1].Artist)
	}
}

func TestFetchParsesInfoOutput(t *testing.T) {
	stdout := `[download] noise line
{"id":"a1","title":"First Song","channel":"Artist X","upload_date":"20230415","description":"d","thumbnail":"https://i.ytimg.com/a1.jpg","_filename":"/music/First Song.webm"}`

	y := NewYTDLP("", "")
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte(stdout), nil, nil
	}

	result, err := y.Fetch(context.Background(), "u", Request{ExtractAudio: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Path != "/music/First Song.webm" {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if result.Info.UploadDate != "20230415" {
		t.Fatalf("unexpected upload date %q", result.Info.UploadDate)
	}
}

func TestFetchClassifiesDownloadError(t *testing.T) {
	y := NewYTDLP("", "")
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("WARNING: something\nERROR: Video unavailable"), errors.New("exit status 1")
	}

	_, err := y.Fetch(context.Background(), "u", Request{})
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if !strings.Contains(dlErr.Detail, "Video unavailable") {
		t.Fatalf("expected stderr detail, got %q", dlErr.Detail)
	}
}

func TestFetchClassifiesMissingTool(t *testing.T) {
	y := NewYTDLP("", "")
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}
	}

	_, err := y.Fetch(context.Background(), "u", Request{})
	var toolErr *ToolMissingError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolMissingError, got %v", err)
	}
}

func TestParseInfoOutputNoJSON(t *testing.T) {
	if _, err := parseInfoOutput([]byte("[download] nothing useful")); err == nil {
		t.Fatal("expected error for missing info dict")
	}
}

func TestStderrTailPrefersErrorLine(t *testing.T) {
	tail := stderrTail([]byte("WARNING: a\nERROR: the real problem\ntrailing context"))
	if tail != "ERROR: the real problem" {
		t.Fatalf("unexpected tail %q", tail)
	}
}
