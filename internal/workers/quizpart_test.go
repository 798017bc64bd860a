// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/database"
	"github.com/mozhaa/hanyuu/internal/models"
)

type fakeMaker struct {
	style   string
	renders []renderCall
	err     error
}

type renderCall struct {
	timingID     int64
	difficultyID int64
	outputFP     string
}

func (m *fakeMaker) Name() string { return m.style }

func (m *fakeMaker) Render(ctx context.Context, timingID, difficultyID int64, outputFP string) error {
	m.renders = append(m.renders, renderCall{timingID: timingID, difficultyID: difficultyID, outputFP: outputFP})
	return m.err
}

// seedRenderable sets up one qitem whose source is downloaded, timed and
// graded, so the render loop has exactly one candidate.
func seedRenderable(t *testing.T, ctx context.Context, db *database.DB) (*models.QItemSourceTiming, *models.QItemDifficulty) {
	t.Helper()
	qitem := seedQItem(t, ctx, db, 1, 1)
	source := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "manual")
	require.NoError(t, models.NewQItemSourceStore(db).SetLocalFile(ctx, source.ID, "videos/sources/yt-dlp/1.webm"))
	timing := seedTiming(t, ctx, db, source.ID, "manual")
	difficulty := seedDifficulty(t, ctx, db, qitem.ID, 40, "manual")
	return timing, difficulty
}

func TestQuizPartCycleRendersBestCandidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)
	timing, difficulty := seedRenderable(t, ctx, db)

	maker := &fakeMaker{style: "classic"}
	cfg := testConfig(t)
	w := NewQuizPart(QuizPartOptions{Interval: time.Millisecond}, parts, maker, testManager(t), cfg, testLogger())

	require.NoError(t, w.cycle(ctx))

	require.Len(t, maker.renders, 1)
	call := maker.renders[0]
	assert.Equal(t, timing.ID, call.timingID)
	assert.Equal(t, difficulty.ID, call.difficultyID)
	assert.True(t, filepath.IsAbs(call.outputFP))

	refs, err := parts.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, call.outputFP, refs[0].LocalFP)
	assert.Equal(t, fmt.Sprintf("%d.mkv", refs[0].ID), filepath.Base(refs[0].LocalFP))

	// The pair is rendered, the next cycle finds nothing to do.
	require.NoError(t, w.cycle(ctx))
	assert.Len(t, maker.renders, 1)
}

func TestQuizPartCycleFreesSlotWhenRenderFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)
	seedRenderable(t, ctx, db)

	maker := &fakeMaker{style: "classic", err: assert.AnError}
	w := NewQuizPart(QuizPartOptions{Interval: time.Millisecond}, parts, maker, testManager(t), testConfig(t), testLogger())

	require.Error(t, w.cycle(ctx))
	require.Len(t, maker.renders, 1)

	refs, err := parts.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)

	// With the slot freed the next cycle retries the same pair.
	maker.err = nil
	require.NoError(t, w.cycle(ctx))
	require.Len(t, maker.renders, 2)
	assert.Equal(t, maker.renders[0].timingID, maker.renders[1].timingID)
}

func TestQuizPartCycleDeletesDemotedParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)

	qitem := seedQItem(t, ctx, db, 1, 1)
	source := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "manual")
	require.NoError(t, models.NewQItemSourceStore(db).SetLocalFile(ctx, source.ID, "videos/sources/yt-dlp/1.webm"))
	worseTiming := seedTiming(t, ctx, db, source.ID, "default")
	bestTiming := seedTiming(t, ctx, db, source.ID, "manual")
	difficulty := seedDifficulty(t, ctx, db, qitem.ID, 40, "manual")

	demoted, err := parts.CreatePlaceholder(ctx, worseTiming.ID, difficulty.ID, "classic")
	require.NoError(t, err)
	require.NoError(t, parts.SetLocalFile(ctx, demoted.ID, "videos/quizparts/old.mkv"))

	maker := &fakeMaker{style: "classic"}
	w := NewQuizPart(QuizPartOptions{Interval: time.Millisecond}, parts, maker, testManager(t), testConfig(t), testLogger())

	require.NoError(t, w.cycle(ctx))
	require.Len(t, maker.renders, 1)
	assert.Equal(t, bestTiming.ID, maker.renders[0].timingID)

	refs, err := parts.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.NotEqual(t, demoted.ID, refs[0].ID)
}

func TestQuizPartCycleKeepWorseSkipsDemotion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)

	qitem := seedQItem(t, ctx, db, 1, 1)
	source := seedSource(t, ctx, db, qitem.ID, models.PlatformYtdlp, "manual")
	require.NoError(t, models.NewQItemSourceStore(db).SetLocalFile(ctx, source.ID, "videos/sources/yt-dlp/1.webm"))
	worseTiming := seedTiming(t, ctx, db, source.ID, "default")
	seedTiming(t, ctx, db, source.ID, "manual")
	difficulty := seedDifficulty(t, ctx, db, qitem.ID, 40, "manual")

	demotable, err := parts.CreatePlaceholder(ctx, worseTiming.ID, difficulty.ID, "classic")
	require.NoError(t, err)
	require.NoError(t, parts.SetLocalFile(ctx, demotable.ID, "videos/quizparts/old.mkv"))

	maker := &fakeMaker{style: "classic"}
	w := NewQuizPart(QuizPartOptions{Interval: time.Millisecond, KeepWorse: true}, parts, maker, testManager(t), testConfig(t), testLogger())

	require.NoError(t, w.cycle(ctx))
	require.Len(t, maker.renders, 1)

	refs, err := parts.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestQuizPartCycleRerendersStaleParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)
	_, difficulty := seedRenderable(t, ctx, db)

	maker := &fakeMaker{style: "classic"}
	w := NewQuizPart(QuizPartOptions{Interval: time.Millisecond}, parts, maker, testManager(t), testConfig(t), testLogger())

	require.NoError(t, w.cycle(ctx))
	require.Len(t, maker.renders, 1)

	// An edited difficulty outdates the rendered part.
	setUpdatedAt(t, ctx, db, "qitem_difficulty", difficulty.ID, "2031-01-01 00:00:00")

	require.NoError(t, w.cycle(ctx))
	require.Len(t, maker.renders, 2)

	refs, err := parts.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestQuizPartCycleHonorsCategoryFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)
	seedRenderable(t, ctx, db)

	maker := &fakeMaker{style: "classic"}
	opts := QuizPartOptions{Interval: time.Millisecond, Filter: models.PartFilter{Category: models.CategoryEnding}}
	w := NewQuizPart(opts, parts, maker, testManager(t), testConfig(t), testLogger())

	// The only candidate is an opening, the ending-only worker skips it.
	require.NoError(t, w.cycle(ctx))
	assert.Empty(t, maker.renders)
}
