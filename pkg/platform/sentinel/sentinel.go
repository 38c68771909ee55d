// Package sentinel holds errors for infrastructure facts. Stores return them,
// optionally wrapped, and callers match with errors.Is.
package sentinel

import "errors"

var (
	// ErrNotFound means the key does not exist or has expired.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the backing store cannot be reached.
	ErrUnavailable = errors.New("unavailable")
)
