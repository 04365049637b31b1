// Package audio finds recordings in the inbox and checks them before
// transcription.
package audio

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/starford/worklog/internal/apperr"
)

// DurationFunc reports the length of a recording in seconds.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Validator checks the format and length of a recording.
type Validator struct {
	formats  map[string]bool
	min, max float64
	duration DurationFunc
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithDurationFunc replaces ffprobe as the duration source.
func WithDurationFunc(fn DurationFunc) ValidatorOption {
	return func(v *Validator) {
		if fn != nil {
			v.duration = fn
		}
	}
}

// NewValidator returns a Validator accepting the given extensions and
// durations within [min, max] seconds.
func NewValidator(formats []string, min, max float64, ffprobeBinary string, opts ...ValidatorOption) *Validator {
	v := &Validator{formats: formatSet(formats), min: min, max: max}
	v.duration = func(ctx context.Context, path string) (float64, error) {
		probe, err := Inspect(ctx, ffprobeBinary, path)
		if err != nil {
			return 0, err
		}
		return probe.DurationSeconds(), nil
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Supported reports whether name has an accepted extension.
func (v *Validator) Supported(name string) bool {
	return v.formats[strings.ToLower(filepath.Ext(name))]
}

// Validate returns the recording's duration, or an error marked
// apperr.ErrValidation describing why it cannot be processed.
func (v *Validator) Validate(ctx context.Context, path string) (float64, error) {
	if !v.Supported(path) {
		return 0, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("unsupported format: %s", filepath.Ext(path)), nil)
	}
	d, err := v.duration(ctx, path)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrValidation, "unable to determine duration", err)
	}
	if math.IsNaN(d) || d <= 0 {
		return 0, apperr.Wrap(apperr.ErrValidation, "unable to determine duration", nil)
	}
	if d < v.min {
		return d, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("audio too short: %.1fs (minimum: %gs)", d, v.min), nil)
	}
	if d > v.max {
		return d, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("audio too long: %.1fs (maximum: %gs)", d, v.max), nil)
	}
	return d, nil
}

func formatSet(formats []string) map[string]bool {
	set := make(map[string]bool, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		set[f] = true
	}
	return set
}
