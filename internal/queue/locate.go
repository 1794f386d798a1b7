package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	locatePollInterval = 100 * time.Millisecond
	locateMaxPolls     = 5
)

// locateAudioFile finds the MP3 the engine's postprocessor produced. The
// engine reports the pre-conversion path, and conversion may lag the report,
// so: swap the extension, poll briefly for the file to materialize, then
// fall back to scanning the directory for the expected filename prefix.
// The sleep function is injectable to keep the grace period deterministic
// under test.
func locateAudioFile(reportedPath, dir, prefix string, sleep func(time.Duration)) (string, error) {
	want := strings.TrimSuffix(reportedPath, filepath.Ext(reportedPath)) + ".mp3"
	for attempt := 0; attempt < locateMaxPolls; attempt++ {
		if attempt > 0 {
			sleep(locatePollInterval)
		}
		if info, err := os.Stat(want); err == nil && !info.IsDir() {
			return want, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", wrapCategory(CategoryFilesystem, fmt.Errorf("scanning %s for produced audio: %w", dir, err))
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", wrapCategory(CategoryFilesystem, fmt.Errorf("could not locate produced MP3 for %q in %s", prefix, dir))
}
