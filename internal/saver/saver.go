// Package saver turns a completed download into a file on disk.
package saver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/video_downloader/internal/cleanup"
	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/telemetry"
	"github.com/italolelis/video_downloader/internal/video"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	// fallbackName is used when the result carries no usable filename.
	fallbackName = "video"

	// maxNameAttempts bounds the " (n)" suffixes tried before giving up.
	maxNameAttempts = 1000
)

var ErrNoContent = errors.New("nothing to save")

// Saver writes download results into one output directory.
type Saver struct {
	dir       string
	telemetry *telemetry.Telemetry
}

func New(dir string, tel *telemetry.Telemetry) *Saver {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Saver{dir: dir, telemetry: tel}
}

// Save writes result to the output directory and returns the final path.
// The content goes to a transient file first and is moved into place once
// complete; the transient file is released only after that move. Existing
// files are never overwritten. On success result.Content is dropped.
func (s *Saver) Save(ctx context.Context, result *video.Result) (string, error) {
	if result == nil || len(result.Content) == 0 {
		return "", ErrNoContent
	}

	var target string

	err := s.telemetry.InstrumentSave(ctx, func(ctx context.Context) error {
		var err error

		target, err = s.save(ctx, result)

		return err
	})
	if err != nil {
		return "", err
	}

	result.Content = nil

	return target, nil
}

func (s *Saver) save(ctx context.Context, result *video.Result) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		logger.ErrorContext(ctx, "failed to create output directory", "dir", s.dir, "err", err)

		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := video.BaseFilename(result.Filename)
	if name == "" {
		name = fallbackName
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*"+cleanup.PartialSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to create transient file: %w", err)
	}

	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(result.Content); err != nil {
		tmp.Close()

		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()

		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return "", fmt.Errorf("failed to set permissions on %s: %w", name, err)
	}

	target, err := s.place(tmpPath, name)
	if err != nil {
		logger.ErrorContext(ctx, "failed to place file", "name", name, "err", err)

		return "", err
	}

	logger.InfoContext(ctx, "saved file", "target", target, "size", humanize.Bytes(uint64(len(result.Content))))

	return target, nil
}

// place links tmpPath to the first free variant of name and returns it. os.Link
// fails when the target exists, so a concurrent writer is never clobbered.
func (s *Saver) place(tmpPath, name string) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		target := filepath.Join(s.dir, variant(name, i))

		err := os.Link(tmpPath, target)
		if err == nil {
			return target, nil
		}

		if errors.Is(err, fs.ErrExist) {
			continue
		}

		// filesystems without hard links: fall back to an existence check and rename
		if _, statErr := os.Lstat(target); statErr == nil {
			continue
		}

		if err := os.Rename(tmpPath, target); err != nil {
			return "", fmt.Errorf("failed to move file into place: %w", err)
		}

		return target, nil
	}

	return "", fmt.Errorf("no free file name for %s after %d attempts", name, maxNameAttempts)
}

// variant returns name for i == 0 and "base (i).ext" otherwise.
func variant(name string, i int) string {
	if i == 0 {
		return name
	}

	ext := filepath.Ext(name)

	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
}
