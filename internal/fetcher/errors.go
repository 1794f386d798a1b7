package fetcher

import "fmt"

// DownloadError reports an engine failure for a single media item. It is
// distinguishable from generic failures so the queue can skip the item and
// continue.
type DownloadError struct {
	URL    string
	Detail string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("download failed for %s: %s", e.URL, e.Detail)
	}
	return fmt.Sprintf("download failed for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ToolMissingError reports that the engine or transcoder binary is absent.
// This failure class is fatal for a whole run.
type ToolMissingError struct {
	Tool string
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Tool, e.Err)
}

func (e *ToolMissingError) Unwrap() error {
	return e.Err
}
