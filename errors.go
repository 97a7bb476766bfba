package seamfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for missing files, directories and archive entities.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidOperation is returned for structural misuse, such as asking for the
	// parent of root or calling a file operation on a directory path.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnsupported is returned when a backend cannot perform an operation at all,
	// e.g. writing into a read-only archive.
	ErrUnsupported = errors.New("operation not supported")
)

// ParseError reports a malformed path string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse path %q: %s", e.Input, e.Reason)
}

// NotFoundf wraps [ErrNotFound] with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidOperationf wraps [ErrInvalidOperation] with a formatted message.
func InvalidOperationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

// Unsupportedf wraps [ErrUnsupported] with a formatted message.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}
