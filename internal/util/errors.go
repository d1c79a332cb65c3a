package util

import "errors"

// Sentinel errors shared across packages. Package-level errors wrap these
// so callers can match a whole family with errors.Is.
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates a file exists but cannot be parsed
	ErrCorrupt = errors.New("corrupt file")

	// ErrInvalidConfig indicates invalid or missing configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupported indicates a format or version this tool does not handle
	ErrUnsupported = errors.New("unsupported")
)
