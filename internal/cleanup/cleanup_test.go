package cleanup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/video_downloader/internal/cleanup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestDeleteStalePartials(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, ".clip.mp4.123.part")
	fresh := filepath.Join(dir, ".clip.mp4.456.part")
	oldVideo := filepath.Join(dir, "clip.mp4")
	visiblePart := filepath.Join(dir, "notes.part")

	touch(t, stale, 48*time.Hour)
	touch(t, fresh, time.Minute)
	touch(t, oldVideo, 48*time.Hour)
	touch(t, visiblePart, 48*time.Hour)

	removed, err := cleanup.DeleteStalePartials(context.Background(), dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, oldVideo)
	assert.FileExists(t, visiblePart)
}

func TestDeleteStalePartials_MissingDir(t *testing.T) {
	removed, err := cleanup.DeleteStalePartials(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
