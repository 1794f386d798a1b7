package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const defaultBinary = "yt-dlp"

// runFunc executes the engine binary and returns stdout, stderr.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

// YTDLP drives the yt-dlp binary. Each call spawns one process; the engine
// is never invoked concurrently by the queue, so no pooling is needed.
type YTDLP struct {
	Binary     string
	FFmpegPath string
	// ProgressOut receives the engine's live stderr (progress bars included)
	// in addition to the buffered copy used for error reporting. Nil keeps
	// engine output internal.
	ProgressOut io.Writer

	run runFunc
}

func NewYTDLP(binary, ffmpegPath string) *YTDLP {
	if binary == "" {
		binary = defaultBinary
	}
	y := &YTDLP{
		Binary:     binary,
		FFmpegPath: ffmpegPath,
	}
	y.run = y.runCommand
	return y
}

func (y *YTDLP) runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if y.ProgressOut != nil {
		cmd.Stderr = io.MultiWriter(&stderr, y.ProgressOut)
	} else {
		cmd.Stderr = &stderr
	}
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CheckTools verifies the engine and transcoder binaries exist before a run
// starts, so a missing tool surfaces as one fatal error instead of a failure
// per queue item.
func (y *YTDLP) CheckTools() error {
	if _, err := exec.LookPath(y.Binary); err != nil {
		return &ToolMissingError{Tool: y.Binary, Err: err}
	}
	switch {
	case y.FFmpegPath == "" || y.FFmpegPath == "ffmpeg":
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return &ToolMissingError{Tool: "ffmpeg", Err: err}
		}
	default:
		if _, err := os.Stat(y.FFmpegPath); err != nil {
			return &ToolMissingError{Tool: "ffmpeg", Err: err}
		}
	}
	return nil
}

// FetchMetadata enumerates the URL with a flat, download-free extraction
// pass.
func (y *YTDLP) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	args := []string{"-J", "--flat-playlist", "--no-warnings", url}
	stdout, stderr, err := y.run(ctx, y.Binary, args...)
	if err != nil {
		return nil, y.classify(url, stderr, err)
	}

	var meta Metadata
	if err := json.Unmarshal(stdout, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", url, err)
	}
	return &meta, nil
}

// Fetch downloads one media item and returns the engine's metadata report.
func (y *YTDLP) Fetch(ctx context.Context, url string, req Request) (*Result, error) {
	stdout, stderr, err := y.run(ctx, y.Binary, y.fetchArgs(url, req)...)
	if err != nil {
		return nil, y.classify(url, stderr, err)
	}

	info, err := parseInfoOutput(stdout)
	if err != nil {
		return nil, fmt.Errorf("parsing download report for %s: %w", url, err)
	}
	return &Result{Path: info.Filename, Info: info}, nil
}

func (y *YTDLP) fetchArgs(url string, req Request) []string {
	args := []string{"--no-warnings", "--print-json"}
	if req.ShowProgress {
		// --print-json puts the engine in quiet mode; --progress re-enables
		// the bar, which then lands on stderr. --newline keeps it parseable
		// when stderr is piped.
		args = append(args, "--progress", "--newline")
	} else {
		args = append(args, "--no-progress")
	}
	if req.FormatSpec != "" {
		args = append(args, "-f", req.FormatSpec)
	}
	if req.OutputTemplate != "" {
		args = append(args, "-o", req.OutputTemplate)
	}
	if req.ExtractAudio {
		args = append(args, "-x", "--audio-format", "mp3")
		if req.AudioBitrate != "" {
			args = append(args, "--audio-quality", req.AudioBitrate)
		}
	}
	if y.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.FFmpegPath)
	}
	return append(args, url)
}

// parseInfoOutput reads the JSON info dict from engine stdout. The engine may
// emit one line per item plus trailing noise; the last parseable line wins.
func parseInfoOutput(stdout []byte) (Info, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info Info
		if err := json.Unmarshal([]byte(line), &info); err == nil {
			return info, nil
		}
	}
	return Info{}, errors.New("no JSON info dict in engine output")
}

// classify maps a process failure onto the error taxonomy: a missing binary
// is fatal, everything else is a per-item download error carrying the
// engine's stderr tail.
func (y *YTDLP) classify(url string, stderr []byte, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return &ToolMissingError{Tool: y.Binary, Err: err}
	}
	return &DownloadError{URL: url, Detail: stderrTail(stderr), Err: err}
}

// stderrTail extracts the most useful part of engine stderr: the last ERROR
// line when present, otherwise the last non-empty line.
func stderrTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	lastError := ""
	lastLine := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			lastError = line
		}
		lastLine = line
	}
	if lastError != "" {
		return lastError
	}
	return lastLine
}
