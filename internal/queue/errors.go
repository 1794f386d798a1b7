package queue

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies run failures for exit codes and propagation
// policy: validation failures stop a run from starting, missing tools stop a
// running queue, everything else skips the current item.
type ErrorCategory string

const (
	CategoryInvalidURL  ErrorCategory = "invalid_url"
	CategoryDownload    ErrorCategory = "download"
	CategoryMissingTool ErrorCategory = "missing_tool"
	CategoryTag         ErrorCategory = "tag"
	CategoryFilesystem  ErrorCategory = "filesystem"
	CategoryUnsupported ErrorCategory = "unsupported"
)

type CategorizedError struct {
	Category ErrorCategory
	Err      error
}

func (e CategorizedError) Error() string {
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

func wrapCategory(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return CategorizedError{Category: category, Err: err}
}

// CategoryOf extracts the category from an error chain, defaulting to
// CategoryDownload for uncategorized failures.
func CategoryOf(err error) ErrorCategory {
	var categorized CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return CategoryDownload
}

// ExitCode maps an error onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryInvalidURL:
		return 2
	case CategoryMissingTool:
		return 3
	default:
		return 1
	}
}

// errAborted is the internal signal that the abort flag fired inside a
// playlist loop. It never escapes Run.
var errAborted = fmt.Errorf("run aborted")

func isFatal(err error) bool {
	return CategoryOf(err) == CategoryMissingTool
}
