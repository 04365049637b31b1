// Package apperr holds the error markers shared across worklog packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrGeneration    = errors.New("generation failed")
	ErrTranscription = errors.New("transcription failed")
	ErrLocked        = errors.New("project locked")
)

// Wrap tags err with marker so callers can classify it with errors.Is while
// the message keeps the operation that failed.
func Wrap(marker error, op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", marker, op)
	}
	return fmt.Errorf("%w: %s: %w", marker, op, err)
}
