// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQItemSourceLifecycle(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	store := NewQItemSourceStore(db)

	source, err := store.Create(ctx, &QItemSource{
		QItemID:        qitem.ID,
		Platform:       PlatformTorrent,
		Path:           "https://example.org/pack.torrent",
		AdditionalPath: "AniTousen/Higurashi OP1.mp4",
		AddedBy:        "anitousen",
	})
	require.NoError(t, err)
	assert.Nil(t, source.LocalFP)
	assert.False(t, source.Downloading)

	require.NoError(t, store.SetDownloading(ctx, source.ID, true))
	got, err := store.GetByID(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, got.Downloading)

	require.NoError(t, store.SetLocalFile(ctx, source.ID, "videos/sources/torrent/1.mp4"))
	got, err = store.GetByID(ctx, source.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LocalFP)
	assert.Equal(t, "videos/sources/torrent/1.mp4", *got.LocalFP)
	assert.False(t, got.Downloading)

	// Invalidation clears the stored file, keeping the CHECK satisfied.
	require.NoError(t, store.MarkInvalid(ctx, source.ID))
	got, err = store.GetByID(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, got.Invalid)
	assert.Nil(t, got.LocalFP)
	assert.False(t, got.Downloading)
}

func TestQItemSourceBestPendingByPlatform(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	q1 := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	q2 := createTestQItem(t, ctx, db, anime.MalID, CategoryEnding, 1)
	store := NewQItemSourceStore(db)

	priorities := []string{"manual", "attachments", "videosearch"}

	// q1 has three candidates on the same platform.
	byVideosearch := createTestSource(t, ctx, db, q1.ID, PlatformYtdlp, "videosearch")
	byManual := createTestSource(t, ctx, db, q1.ID, PlatformYtdlp, "manual")
	byAttachments := createTestSource(t, ctx, db, q1.ID, PlatformYtdlp, "attachments")
	// q2 has one candidate on another platform.
	torrentSource := createTestSource(t, ctx, db, q2.ID, PlatformTorrent, "anitousen")

	best, err := store.BestPendingByPlatform(ctx, PlatformYtdlp, priorities, nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, byManual.ID, best[0].ID)

	// Banned ids fall through to the next priority.
	best, err = store.BestPendingByPlatform(ctx, PlatformYtdlp, priorities, []int64{byManual.ID})
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, byAttachments.ID, best[0].ID)

	// Invalid rows are not candidates.
	require.NoError(t, store.MarkInvalid(ctx, byManual.ID))
	best, err = store.BestPendingByPlatform(ctx, PlatformYtdlp, priorities, nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, byAttachments.ID, best[0].ID)

	// Rows being downloaded are skipped too.
	require.NoError(t, store.SetDownloading(ctx, byAttachments.ID, true))
	best, err = store.BestPendingByPlatform(ctx, PlatformYtdlp, priorities, nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, byVideosearch.ID, best[0].ID)

	// Once a better-ranked source holds a file, worse pending ones are no
	// longer offered, so demoted sources are not fetched again.
	require.NoError(t, store.SetLocalFile(ctx, byAttachments.ID, "videos/sources/yt-dlp/x.mp4"))
	best, err = store.BestPendingByPlatform(ctx, PlatformYtdlp, priorities, nil)
	require.NoError(t, err)
	assert.Empty(t, best)

	best, err = store.BestPendingByPlatform(ctx, PlatformTorrent, []string{"manual", "anitousen"}, nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, torrentSource.ID, best[0].ID)
	assert.Equal(t, "AniTousen/Higurashi OP1.mp4", best[0].AdditionalPath)
}

func TestQItemSourceBestPendingUnknownStrategyRanksLast(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	store := NewQItemSourceStore(db)

	unknown := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "strategy_ytdlp")
	known := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "videosearch")
	setUpdatedAt(t, ctx, db, "qitem_source", unknown.ID, "2030-01-01 00:00:00")

	// Even with a newer row, an unlisted strategy loses to a listed one.
	best, err := store.BestPendingByPlatform(ctx, PlatformYtdlp, []string{"manual", "videosearch"}, nil)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, known.ID, best[0].ID)
}

func TestQItemSourceIDsWithoutTimingBy(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	store := NewQItemSourceStore(db)

	s1 := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "manual")
	s2 := createTestSource(t, ctx, db, qitem.ID, PlatformTorrent, "anitousen")

	createTestTiming(t, ctx, db, s1.ID, "default")

	ids, err := store.IDsWithoutTimingBy(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, []int64{s2.ID}, ids)

	ids, err = store.IDsWithoutTimingBy(ctx, "random")
	require.NoError(t, err)
	assert.Equal(t, []int64{s1.ID, s2.ID}, ids)
}

func TestQItemSourceClearWorseLocalFiles(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	store := NewQItemSourceStore(db)

	best := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "manual")
	worse := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "videosearch")
	require.NoError(t, store.SetLocalFile(ctx, best.ID, "videos/sources/yt-dlp/best.mp4"))
	require.NoError(t, store.SetLocalFile(ctx, worse.ID, "videos/sources/yt-dlp/worse.mp4"))

	cleared, err := store.ClearWorseLocalFiles(ctx, []string{"manual", "attachments", "videosearch"})
	require.NoError(t, err)
	assert.Equal(t, []int64{worse.ID}, cleared)

	got, err := store.GetByID(ctx, worse.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocalFP)

	kept, err := store.GetByID(ctx, best.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.LocalFP)

	// Second run is a no-op.
	cleared, err = store.ClearWorseLocalFiles(ctx, []string{"manual", "attachments", "videosearch"})
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

func TestQItemSourceClearLocalFilesWorseThan(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	other := createTestQItem(t, ctx, db, anime.MalID, CategoryEnding, 1)
	store := NewQItemSourceStore(db)

	priorities := []string{"manual", "attachments", "videosearch"}

	better := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "manual")
	winner := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "attachments")
	worse := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "videosearch")
	unrelated := createTestSource(t, ctx, db, other.ID, PlatformYtdlp, "videosearch")

	for _, src := range []*QItemSource{better, winner, worse, unrelated} {
		require.NoError(t, store.SetLocalFile(ctx, src.ID, "videos/sources/yt-dlp/f.mp4"))
	}

	cleared, err := store.ClearLocalFilesWorseThan(ctx, qitem.ID, winner.ID, priorities)
	require.NoError(t, err)
	assert.Equal(t, []int64{worse.ID}, cleared)

	// Better-ranked files and other qitems keep theirs.
	for _, id := range []int64{better.ID, winner.ID, unrelated.ID} {
		got, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got.LocalFP, "id %d", id)
	}

	got, err := store.GetByID(ctx, worse.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocalFP)

	// Second run is a no-op.
	cleared, err = store.ClearLocalFilesWorseThan(ctx, qitem.ID, winner.ID, priorities)
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

func TestQItemSourceListDownloadedAndDelete(t *testing.T) {
	t.Parallel()

	db := newStoreDB(t)
	ctx := context.Background()
	anime := createTestAnime(t, ctx, db, 934)
	qitem := createTestQItem(t, ctx, db, anime.MalID, CategoryOpening, 1)
	store := NewQItemSourceStore(db)

	s1 := createTestSource(t, ctx, db, qitem.ID, PlatformYtdlp, "manual")
	s2 := createTestSource(t, ctx, db, qitem.ID, PlatformLocal, "manual")
	require.NoError(t, store.SetLocalFile(ctx, s2.ID, "videos/sources/local/2.mp4"))

	refs, err := store.ListDownloaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, []FileRef{{ID: s2.ID, LocalFP: "videos/sources/local/2.mp4"}}, refs)

	require.NoError(t, store.DeleteByIDs(ctx, []int64{s1.ID, s2.ID}))
	_, err = store.GetByID(ctx, s1.ID)
	assert.ErrorIs(t, err, ErrQItemSourceNotFound)
}
