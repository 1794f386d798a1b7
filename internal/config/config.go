// Package config persists user settings as a JSON file under the platform
// config directory. Missing files and missing fields fall back to defaults,
// so a fresh install and a config written by an older version both load.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	appDirName   = "tubetag"
	settingsFile = "settings.json"
)

// Settings holds every persisted knob. Zero values mean "use the default";
// Normalize fills them in after load.
type Settings struct {
	OutputDir    string `json:"output_dir"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	MP3Bitrate   string `json:"mp3_bitrate"`
	VideoQuality string `json:"video_quality"`
	SkipLyrics   bool   `json:"skip_lyrics"`
	SkipAlbumArt bool   `json:"skip_album_art"`
	ShowProgress bool   `json:"show_progress"`
	JSONEvents   bool   `json:"json_events"`
}

var validBitrates = map[string]struct{}{
	"128k": {}, "192k": {}, "256k": {}, "320k": {},
}

var validQualities = map[string]struct{}{
	"480p": {}, "720p": {}, "1080p": {}, "1440p": {}, "2160p": {}, "best": {},
}

// Defaults returns the settings used when no config file exists.
func Defaults() Settings {
	return Settings{
		OutputDir:    defaultOutputDir(),
		MP3Bitrate:   "320k",
		VideoQuality: "1080p",
		ShowProgress: true,
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// Path reports where the settings file lives.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(base, appDirName, settingsFile), nil
}

// Load reads the settings file, merging defaults over anything missing. A
// nonexistent file is not an error.
func Load() (Settings, error) {
	path, err := Path()
	if err != nil {
		return Defaults(), err
	}
	return loadFrom(path)
}

func loadFrom(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("settings file %s is malformed: %w", path, err)
	}
	s.Normalize()
	return s, nil
}

// Save writes the settings file, creating the config directory if needed.
func (s Settings) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return s.saveTo(path)
}

func (s Settings) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Normalize resets out-of-range or empty fields to their defaults.
func (s *Settings) Normalize() {
	def := Defaults()
	if s.OutputDir == "" {
		s.OutputDir = def.OutputDir
	}
	if _, ok := validBitrates[s.MP3Bitrate]; !ok {
		s.MP3Bitrate = def.MP3Bitrate
	}
	if _, ok := validQualities[s.VideoQuality]; !ok {
		s.VideoQuality = def.VideoQuality
	}
}
