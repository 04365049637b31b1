package index

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/worklog/internal/parser"
	"github.com/starford/worklog/internal/storage"
)

// Sync walks the vault and brings the index up to date. Files whose
// checksum changed are parsed and upserted, and rows whose file is gone are
// deleted. A file that cannot be read or parsed is logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return fmt.Errorf("index: sync: %w", err)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	var indexed, removed, failed int

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("index: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			failed++
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("index: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			failed++
			continue
		}
		indexed++
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("index: delete failed", slog.String("path", p), slog.String("error", err.Error()))
				failed++
				continue
			}
			removed++
		}
	}

	logger.Info("index: sync complete",
		slog.Int("files", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed),
		slog.Int("failed", failed))
	return nil
}

// indexFile parses data and upserts it into the DB. Weekly files are dated
// by the Monday of their range.
func indexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	date := res.Date
	if date == "" && res.Kind == parser.KindWeekly {
		date, _, _ = strings.Cut(res.Field("date_range"), " ")
	}

	row := NoteRow{
		Path:      path,
		Title:     res.Title,
		Kind:      string(res.Kind),
		Project:   res.Project,
		Date:      date,
		Checksum:  storage.Checksum(data),
		Tags:      res.Tags,
		UpdatedAt: time.Now().UTC(),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
