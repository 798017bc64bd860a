// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/database"
	"github.com/mozhaa/hanyuu/internal/testdb"
)

func newStoreDB(t *testing.T) *database.DB {
	t.Helper()
	return testdb.Open(t)
}

func createTestAnime(t *testing.T, ctx context.Context, db *database.DB, malID int64) *Anime {
	t.Helper()
	created, err := NewAnimeStore(db).Create(ctx, &Anime{
		MalID:    malID,
		AnidbID:  malID + 100000,
		TitleRo:  "Higurashi no Naku Koro ni",
		TitleEn:  "When They Cry",
		Episodes: 26,
		AiredOn:  "2006-04-05",
		Synonyms: []string{"Higurashi"},
		Videos: [][]string{
			{"op", "Higurashi no Naku Koro ni OP1", "https://youtu.be/Bn-2cT861vo"},
		},
	})
	require.NoError(t, err)
	return created
}

func createTestQItem(t *testing.T, ctx context.Context, db *database.DB, animeID int64, category Category, number int) *QItem {
	t.Helper()
	created, err := NewQItemStore(db).Create(ctx, &QItem{
		AnimeID:  animeID,
		Category: category,
		Number:   number,
		SongName: "Higurashi no Naku Koro ni",
	})
	require.NoError(t, err)
	return created
}

func createTestSource(t *testing.T, ctx context.Context, db *database.DB, qitemID int64, platform, addedBy string) *QItemSource {
	t.Helper()
	created, err := NewQItemSourceStore(db).Create(ctx, &QItemSource{
		QItemID:  qitemID,
		Platform: platform,
		Path:     "https://youtu.be/Bn-2cT861vo",
		AddedBy:  addedBy,
	})
	require.NoError(t, err)
	return created
}

func createTestTiming(t *testing.T, ctx context.Context, db *database.DB, sourceID int64, addedBy string) *QItemSourceTiming {
	t.Helper()
	created, err := NewQItemSourceTimingStore(db).Create(ctx, &QItemSourceTiming{
		QItemSourceID: sourceID,
		GuessStart:    "00:00:00",
		RevealStart:   "00:00:50",
		AddedBy:       addedBy,
	})
	require.NoError(t, err)
	return created
}

func createTestDifficulty(t *testing.T, ctx context.Context, db *database.DB, qitemID int64, value int, addedBy string) *QItemDifficulty {
	t.Helper()
	created, err := NewQItemDifficultyStore(db).Create(ctx, &QItemDifficulty{
		QItemID: qitemID,
		Value:   value,
		AddedBy: addedBy,
	})
	require.NoError(t, err)
	return created
}

// setUpdatedAt pins a row's updated_at so ordering and staleness tests do not
// depend on CURRENT_TIMESTAMP's one-second granularity.
func setUpdatedAt(t *testing.T, ctx context.Context, db *database.DB, table string, id int64, ts string) {
	t.Helper()
	_, err := db.ExecContext(ctx, `UPDATE `+table+` SET updated_at = ? WHERE id = ?`, ts, id)
	require.NoError(t, err)
}
