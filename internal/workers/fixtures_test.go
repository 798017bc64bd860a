// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/database"
	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/testdb"
)

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	return &domain.Config{
		ResourcesDir:         t.TempDir(),
		FindPriorities:       []string{"attachments", "videosearch"},
		TimingPriorities:     []string{"default"},
		DifficultyPriorities: []string{"random"},
	}
}

func testManager(t *testing.T) *metrics.Manager {
	t.Helper()
	return metrics.NewManager("")
}

func seedQItem(t *testing.T, ctx context.Context, db *database.DB, malID int64, number int) *models.QItem {
	t.Helper()
	anime, err := models.NewAnimeStore(db).Create(ctx, &models.Anime{
		MalID:   malID,
		AnidbID: malID + 100000,
		TitleRo: "Higurashi no Naku Koro ni",
		TitleEn: "When They Cry",
	})
	require.NoError(t, err)

	qitem, err := models.NewQItemStore(db).Create(ctx, &models.QItem{
		AnimeID:  anime.MalID,
		Category: models.CategoryOpening,
		Number:   number,
		SongName: "Higurashi no Naku Koro ni",
	})
	require.NoError(t, err)
	return qitem
}

func seedSource(t *testing.T, ctx context.Context, db *database.DB, qitemID int64, platform, addedBy string) *models.QItemSource {
	t.Helper()
	source, err := models.NewQItemSourceStore(db).Create(ctx, &models.QItemSource{
		QItemID:  qitemID,
		Platform: platform,
		Path:     "https://youtu.be/Bn-2cT861vo",
		AddedBy:  addedBy,
	})
	require.NoError(t, err)
	return source
}

func seedTiming(t *testing.T, ctx context.Context, db *database.DB, sourceID int64, addedBy string) *models.QItemSourceTiming {
	t.Helper()
	timing, err := models.NewQItemSourceTimingStore(db).Create(ctx, &models.QItemSourceTiming{
		QItemSourceID: sourceID,
		GuessStart:    "00:00:00",
		RevealStart:   "00:00:50",
		AddedBy:       addedBy,
	})
	require.NoError(t, err)
	return timing
}

func seedDifficulty(t *testing.T, ctx context.Context, db *database.DB, qitemID int64, value int, addedBy string) *models.QItemDifficulty {
	t.Helper()
	difficulty, err := models.NewQItemDifficultyStore(db).Create(ctx, &models.QItemDifficulty{
		QItemID: qitemID,
		Value:   value,
		AddedBy: addedBy,
	})
	require.NoError(t, err)
	return difficulty
}

func openWorkerDB(t *testing.T) *database.DB {
	t.Helper()
	return testdb.Open(t)
}

// setUpdatedAt pins a row's updated_at so staleness tests do not depend on
// CURRENT_TIMESTAMP's one-second granularity.
func setUpdatedAt(t *testing.T, ctx context.Context, db *database.DB, table string, id int64, ts string) {
	t.Helper()
	_, err := db.ExecContext(ctx, `UPDATE `+table+` SET updated_at = ? WHERE id = ?`, ts, id)
	require.NoError(t, err)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
