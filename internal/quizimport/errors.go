package quizimport

import (
	"fmt"
	"strings"
)

// Structural error codes.
const (
	CodeArchiveUnreadable  = "archive_unreadable"
	CodeDataFileNotFound   = "data_file_not_found"
	CodeDataFileUnreadable = "data_file_unreadable"
	CodeParseFailed        = "parse_failed"
)

// StructuralError aborts an import before any row is looked at.
type StructuralError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ValidationError carries the row and image errors that blocked a commit.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("import blocked by %d errors", len(e.Errors))
}

// UploadError is returned in strict image mode when an image could not be stored.
type UploadError struct {
	Failed []string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload images %s: %v", strings.Join(e.Failed, ", "), e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed quiz write.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist quiz: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
