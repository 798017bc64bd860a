// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/models"
)

func writeFile(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestCleanupRunReconcilesRowsAndFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	sources := models.NewQItemSourceStore(db)
	parts := models.NewQuizPartStore(db)
	cfg := testConfig(t)

	// A healthy chain: downloaded source, rendered part, both files on disk.
	qitem := seedQItem(t, ctx, db, 1, 1)
	kept := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "manual")
	keptFP := writeFile(t, filepath.Join(cfg.SourcesDir(), "yt-dlp", "1.webm"))
	require.NoError(t, sources.SetLocalFile(ctx, kept.ID, keptFP))

	timing := seedTiming(t, ctx, db, kept.ID, "manual")
	difficulty := seedDifficulty(t, ctx, db, qitem.ID, 40, "manual")
	part, err := parts.CreatePlaceholder(ctx, timing.ID, difficulty.ID, "classic")
	require.NoError(t, err)
	partFP := writeFile(t, filepath.Join(cfg.QuizPartsDir(), "1.mkv"))
	require.NoError(t, parts.SetLocalFile(ctx, part.ID, partFP))

	// A source whose file vanished from disk.
	vanishedQItem := seedQItem(t, ctx, db, 2, 1)
	vanished := seedSource(t, ctx, db, vanishedQItem.ID, models.PlatformYtdlp, "manual")
	require.NoError(t, sources.SetLocalFile(ctx, vanished.ID, filepath.Join(cfg.SourcesDir(), "yt-dlp", "gone.webm")))

	// A placeholder an interrupted render left behind.
	orphanTiming := seedTiming(t, ctx, db, kept.ID, "default")
	orphan, err := parts.CreatePlaceholder(ctx, orphanTiming.ID, difficulty.ID, "classic")
	require.NoError(t, err)

	// Files nothing references.
	straySource := writeFile(t, filepath.Join(cfg.SourcesDir(), "yt-dlp", "stray.webm"))
	strayPart := writeFile(t, filepath.Join(cfg.QuizPartsDir(), "999.mkv"))

	w := NewCleanup(sources, parts, cfg, testLogger())
	require.NoError(t, w.Run(ctx))

	_, err = sources.GetByID(ctx, vanished.ID)
	assert.ErrorIs(t, err, models.ErrQItemSourceNotFound)
	_, err = parts.GetByID(ctx, orphan.ID)
	assert.ErrorIs(t, err, models.ErrQuizPartNotFound)

	assert.NoFileExists(t, straySource)
	assert.NoFileExists(t, strayPart)
	assert.FileExists(t, keptFP)
	assert.FileExists(t, partFP)

	// The passes feed each other in order, so a second run changes nothing.
	require.NoError(t, w.Run(ctx))
	_, err = sources.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = parts.GetByID(ctx, part.ID)
	assert.NoError(t, err)
	assert.FileExists(t, keptFP)
	assert.FileExists(t, partFP)
}

func TestCleanupRunSweepsFilesOfWorseSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	sources := models.NewQItemSourceStore(db)
	parts := models.NewQuizPartStore(db)
	cfg := testConfig(t)

	qitem := seedQItem(t, ctx, db, 1, 1)

	worse := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "videosearch")
	worseFP := writeFile(t, filepath.Join(cfg.SourcesDir(), "yt-dlp", "worse.webm"))
	require.NoError(t, sources.SetLocalFile(ctx, worse.ID, worseFP))

	best := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "manual")
	bestFP := writeFile(t, filepath.Join(cfg.SourcesDir(), "yt-dlp", "best.webm"))
	require.NoError(t, sources.SetLocalFile(ctx, best.ID, bestFP))

	w := NewCleanup(sources, parts, cfg, testLogger())
	require.NoError(t, w.Run(ctx))

	// The worse row survives undownloaded; only its file goes.
	row, err := sources.GetByID(ctx, worse.ID)
	require.NoError(t, err)
	assert.Nil(t, row.LocalFP)
	assert.NoFileExists(t, worseFP)

	row, err = sources.GetByID(ctx, best.ID)
	require.NoError(t, err)
	require.NotNil(t, row.LocalFP)
	assert.Equal(t, bestFP, *row.LocalFP)
	assert.FileExists(t, bestFP)
}

func TestCleanupRunToleratesMissingDirectories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	w := NewCleanup(models.NewQItemSourceStore(db), models.NewQuizPartStore(db), testConfig(t), testLogger())

	// Fresh resources dir, no videos anywhere.
	require.NoError(t, w.Run(ctx))
}
