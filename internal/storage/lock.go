package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	"github.com/starford/worklog/internal/apperr"
)

const lockRetryDelay = 50 * time.Millisecond

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Locker serializes work on a project across goroutines and processes
// with one advisory file lock per project.
type Locker struct {
	dir string
}

// NewLocker returns a Locker that keeps its lock files in dir.
func NewLocker(dir string) (*Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create lock dir: %w", err)
	}
	return &Locker{dir: dir}, nil
}

// Lock blocks until the project lock is held or ctx is done. The returned
// function releases it.
func (l *Locker) Lock(ctx context.Context, project string) (func(), error) {
	name := unsafeLockChars.ReplaceAllString(project, "_") + ".lock"
	fl := flock.New(filepath.Join(l.dir, name))

	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrLocked, "lock "+project, err)
	}
	if !ok {
		return nil, apperr.Wrap(apperr.ErrLocked, "lock "+project, ctx.Err())
	}
	return func() { _ = fl.Unlock() }, nil
}
