package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/worklog/internal/storage"
)

// reconcileDelay debounces the full pass that follows a rename.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watcher keeps the index in step with the vault while the pipeline and
// external editors write to it.
type Watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	notify EventCallback
}

// NewWatcher returns a Watcher for the vault at root. notify may be nil.
func NewWatcher(db *DB, store storage.Provider, root string, logger *slog.Logger, notify EventCallback) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{db: db, store: store, root: root, logger: logger, notify: notify}
}

// Run processes file change events until ctx is cancelled. Directories
// created at runtime are watched as they appear. A rename schedules a
// reconciliation pass that drops index entries whose files are gone.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.newDir(fw, ev.Name)
					continue
				}
			}
			rel, ok := w.relMarkdown(ev.Name)
			if !ok {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				w.index(rel, kind)
			case ev.Op&fsnotify.Remove != 0:
				w.remove(rel)
			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new one arrives
				// as a Create if it stays inside a watched directory.
				w.remove(rel)
				if timer == nil {
					timer = time.NewTimer(reconcileDelay)
					timerCh = timer.C
				} else {
					timer.Reset(reconcileDelay)
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// relMarkdown maps an absolute event path to a vault-relative Markdown path.
func (w *Watcher) relMarkdown(abs string) (string, bool) {
	if !strings.HasSuffix(abs, ".md") {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || hiddenPath(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) index(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := indexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.emit(kind, rel)
}

func (w *Watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.emit("deleted", rel)
}

func (w *Watcher) emit(kind, rel string) {
	if w.notify != nil {
		w.notify(kind, rel)
	}
}

// reconcile removes index entries without a file on disk and indexes files
// whose checksum differs from the stored one.
func (w *Watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("watcher: reconcile checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("watcher: reconcile list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.index(p, "created")
		}
	}
}

// newDir starts watching a directory created at runtime and indexes any
// Markdown files that landed in it before the watch was added.
func (w *Watcher) newDir(fw *fsnotify.Watcher, dir string) {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil || hiddenPath(rel) {
		return
	}
	if err := w.addDirs(fw, dir); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: watching new dir", slog.String("path", dir))

	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relMarkdown(p); ok {
			w.index(rel, "created")
		}
		return nil
	})
}

// addDirs watches root and every non-hidden directory below it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

// hiddenPath reports whether any element of rel starts with a dot.
func hiddenPath(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
