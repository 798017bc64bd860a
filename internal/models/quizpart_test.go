// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/database"
)

// renderFixture wires anime -> qitem -> downloaded source with manual and
// random rows for timing and difficulty.
type renderFixture struct {
	qitem            *QItem
	source           *QItemSource
	manualTiming     *QItemSourceTiming
	randomTiming     *QItemSourceTiming
	manualDifficulty *QItemDifficulty
	randomDifficulty *QItemDifficulty
}

func newRenderFixture(t *testing.T, ctx context.Context, db *database.DB) renderFixture {
	t.Helper()

	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	source := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "attachments")
	require.NoError(t, NewQItemSourceStore(db).SetLocalFile(ctx, source.ID, "videos/sources/yt-dlp/1.mp4"))

	return renderFixture{
		qitem:            qitem,
		source:           source,
		manualTiming:     createTestTiming(t, ctx, db, source.ID, "manual"),
		randomTiming:     createTestTiming(t, ctx, db, source.ID, "random"),
		manualDifficulty: createTestDifficulty(t, ctx, db, qitem.ID, 35, "manual"),
		randomDifficulty: createTestDifficulty(t, ctx, db, qitem.ID, 80, "random"),
	}
}

var (
	testDifficultyPriorities = []string{"manual", "random"}
	testTimingPriorities     = []string{"manual", "default", "random"}
)

func TestQuizPartBestRenderCandidate(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	candidate, err := store.BestRenderCandidate(ctx, "classic", testDifficultyPriorities, testTimingPriorities, PartFilter{})
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, fix.source.ID, candidate.SourceID)
	assert.Equal(t, fix.manualDifficulty.ID, candidate.DifficultyID)
	assert.Equal(t, fix.manualTiming.ID, candidate.TimingID)
	assert.Equal(t, fix.qitem.ID, candidate.QItemID)

	// Once the best pair is rendered the source is exhausted for this style.
	part, err := store.CreatePlaceholder(ctx, candidate.TimingID, candidate.DifficultyID, "classic")
	require.NoError(t, err)
	require.NoError(t, store.SetLocalFile(ctx, part.ID, "videos/quizparts/1.mkv"))

	candidate, err = store.BestRenderCandidate(ctx, "classic", testDifficultyPriorities, testTimingPriorities, PartFilter{})
	require.NoError(t, err)
	assert.Nil(t, candidate)

	// Another style still needs rendering.
	candidate, err = store.BestRenderCandidate(ctx, "onesec", testDifficultyPriorities, testTimingPriorities, PartFilter{})
	require.NoError(t, err)
	require.NotNil(t, candidate)
}

func TestQuizPartBestRenderCandidateFilters(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	candidate, err := store.BestRenderCandidate(ctx, "classic", testDifficultyPriorities, testTimingPriorities, PartFilter{
		Category: CategoryEnding,
	})
	require.NoError(t, err)
	assert.Nil(t, candidate)

	candidate, err = store.BestRenderCandidate(ctx, "classic", testDifficultyPriorities, testTimingPriorities, PartFilter{
		SourceStrategies: []string{"manual"},
	})
	require.NoError(t, err)
	assert.Nil(t, candidate)

	candidate, err = store.BestRenderCandidate(ctx, "classic", testDifficultyPriorities, testTimingPriorities, PartFilter{
		Category:         CategoryOpening,
		AnimeIDs:         []int64{934},
		SourceStrategies: []string{"manual", "attachments"},
	})
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, fix.source.ID, candidate.SourceID)
}

func TestQuizPartPlaceholderUniqueness(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	first, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)
	assert.Empty(t, first.LocalFP)

	_, err = store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	assert.ErrorIs(t, err, ErrQuizPartExists)

	// Same pair in a different style is fine.
	_, err = store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "onesec")
	require.NoError(t, err)
}

func TestQuizPartDeleteStale(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	part, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)
	require.NoError(t, store.SetLocalFile(ctx, part.ID, "videos/quizparts/1.mkv"))

	// Fresh part survives.
	deleted, err := store.DeleteStale(ctx, PartFilter{})
	require.NoError(t, err)
	assert.Empty(t, deleted)

	// A difficulty edit after rendering makes the part stale.
	setUpdatedAt(t, ctx, db, "qitem_difficulty", fix.manualDifficulty.ID, "2031-01-01 00:00:00")

	deleted, err = store.DeleteStale(ctx, PartFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{part.ID}, deleted)

	_, err = store.GetByID(ctx, part.ID)
	assert.ErrorIs(t, err, ErrQuizPartNotFound)
}

func TestQuizPartDemotedIDs(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	winner, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)
	worseDifficulty, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.randomDifficulty.ID, "classic")
	require.NoError(t, err)
	worseTiming, err := store.CreatePlaceholder(ctx, fix.randomTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)
	otherStyle, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "onesec")
	require.NoError(t, err)

	demoted, err := store.DemotedIDs(ctx, fix.source.ID, fix.manualDifficulty.ID, fix.manualTiming.ID, "classic")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{worseDifficulty.ID, worseTiming.ID, otherStyle.ID}, demoted)
	assert.NotContains(t, demoted, winner.ID)

	require.NoError(t, store.DeleteByIDs(ctx, demoted))
	_, err = store.GetByID(ctx, worseDifficulty.ID)
	assert.ErrorIs(t, err, ErrQuizPartNotFound)
	_, err = store.GetByID(ctx, winner.ID)
	require.NoError(t, err)
}

func TestQuizPartDeleteDuplicatesOnCleanDB(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	_, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)

	// The unique index keeps duplicates out, so nothing to delete.
	deleted, err := store.DeleteDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestQuizPartListFilesForQuiz(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	fix := newRenderFixture(t, ctx, db)
	store := NewQuizPartStore(db)

	classic, err := store.CreatePlaceholder(ctx, fix.manualTiming.ID, fix.manualDifficulty.ID, "classic")
	require.NoError(t, err)
	require.NoError(t, store.SetLocalFile(ctx, classic.ID, "videos/quizparts/1.mkv"))
	onesec, err := store.CreatePlaceholder(ctx, fix.randomTiming.ID, fix.randomDifficulty.ID, "onesec")
	require.NoError(t, err)
	require.NoError(t, store.SetLocalFile(ctx, onesec.ID, "videos/quizparts/2.mkv"))

	all, err := store.ListFilesForQuiz(ctx, QuizFilter{
		SourceStrategies:     []string{"manual", "attachments"},
		TimingStrategies:     []string{"manual", "random"},
		DifficultyStrategies: []string{"manual", "random"},
		Styles:               []string{"classic", "onesec"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/quizparts/1.mkv", "videos/quizparts/2.mkv"}, all)

	onlyManual, err := store.ListFilesForQuiz(ctx, QuizFilter{
		TimingStrategies: []string{"manual"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/quizparts/1.mkv"}, onlyManual)

	onlyOnesec, err := store.ListFilesForQuiz(ctx, QuizFilter{Styles: []string{"onesec"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/quizparts/2.mkv"}, onlyOnesec)

	endings, err := store.ListFilesForQuiz(ctx, QuizFilter{Category: CategoryEnding})
	require.NoError(t, err)
	assert.Empty(t, endings)

	otherAnime, err := store.ListFilesForQuiz(ctx, QuizFilter{AnimeIDs: []int64{1}})
	require.NoError(t, err)
	assert.Empty(t, otherAnime)

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
