package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/italolelis/video_downloader/internal/logctx"
)

// PartialSuffix marks transient files written by the saver before they are
// moved into place.
const PartialSuffix = ".part"

// DeleteStalePartials removes transient files in dir older than keepDuration.
// They are left behind only when a save was interrupted; completed files are
// never touched. It returns how many files were removed.
func DeleteStalePartials(ctx context.Context, dir string, keepDuration time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil // nothing saved yet
		}

		return 0, err
	}

	removed := 0

	for _, entry := range entries {
		if !isPartial(entry) {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // already deleted
			}

			logger.Error("Failed to stat file", "file", filePath, "err", err)

			return removed, err
		}

		if now.Sub(info.ModTime()) <= keepDuration {
			continue
		}

		if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("Failed to delete stale partial file", "file", filePath, "err", err)

			return removed, err
		}

		removed++

		logger.Info("Deleted stale partial file", "file", filePath)
	}

	return removed, nil
}

func isPartial(entry fs.DirEntry) bool {
	name := entry.Name()

	return entry.Type().IsRegular() && strings.HasPrefix(name, ".") && strings.HasSuffix(name, PartialSuffix)
}
