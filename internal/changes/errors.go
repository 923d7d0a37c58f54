package changes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-item failures.
type ErrorKind string

const (
	// KindUnsafePath: the path escapes the project root or is absolute.
	KindUnsafePath ErrorKind = "UnsafePath"
	// KindWriteFailed: writing the new content failed.
	KindWriteFailed ErrorKind = "WriteFailed"
	// KindBackupFailed: the original content could not be read or persisted.
	KindBackupFailed ErrorKind = "BackupFailed"
	// KindRevertFailed: restoring or deleting a file failed.
	KindRevertFailed ErrorKind = "RevertFailed"
	// KindStoreCorrupt: a persisted backup record could not be parsed.
	KindStoreCorrupt ErrorKind = "StoreCorrupt"
	// KindSkipped: not attempted because an all-or-nothing batch aborted.
	KindSkipped ErrorKind = "Skipped"
)

// ErrNotInitialized is returned when the store is used before Initialize.
var ErrNotInitialized = errors.New("backup store not initialized")

// Error is a classified per-item failure.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" if it has none.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func newError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
