// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "hanyuu.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func insertTestAnime(t *testing.T, db *DB, malID, anidbID int64, title string) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO anime (mal_id, anidb_id, title_ro, url, poster_url, poster_thumb_url, episodes)
		VALUES (?, ?, ?, '', '', '', 12)
	`, malID, anidbID, title)
	require.NoError(t, err)
}

func TestMigrationsCreateSchema(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	tables := []string{
		"anime", "qitem", "qitem_source", "qitem_source_timing",
		"qitem_difficulty", "quiz_part", "aod_anime",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
		require.Equal(t, table, name)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hanyuu.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	var applied int
	err = db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM migrations").Scan(&applied)
	require.NoError(t, err)
	require.Positive(t, applied)
}

func TestSchemaEnforcesQItemUniqueness(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	insertTestAnime(t, db, 1, 100, "Cowboy Bebop")

	_, err := db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "opening", 1)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "opening", 1)
	require.Error(t, err)
}

func TestSchemaEnforcesValueChecks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	insertTestAnime(t, db, 1, 100, "Cowboy Bebop")

	_, err := db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "trailer", 1)
	require.Error(t, err, "category outside opening/ending must be rejected")

	_, err = db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "opening", 2)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		"INSERT INTO qitem_difficulty (qitem_id, value, added_by) VALUES (?, ?, ?)",
		1, 101, "manual")
	require.Error(t, err, "difficulty above 100 must be rejected")
}

func TestInvalidSourceCannotKeepLocalFile(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	insertTestAnime(t, db, 1, 100, "Cowboy Bebop")

	_, err := db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "opening", 1)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO qitem_source (qitem_id, platform, path, added_by, local_fp, invalid)
		VALUES (?, 'yt-dlp', 'https://example.com/v', 'manual', 'videos/sources/yt-dlp/1.mkv', 1)
	`, 1)
	require.Error(t, err)
}

func TestForeignKeyCascade(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	insertTestAnime(t, db, 1, 100, "Cowboy Bebop")

	_, err := db.ExecContext(ctx,
		"INSERT INTO qitem (anime_id, category, number, song_artist, song_name) VALUES (?, ?, ?, '', '')",
		1, "opening", 1)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DELETE FROM anime WHERE mal_id = ?", 1)
	require.NoError(t, err)

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM qitem").Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTransactionRollback(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO anime (mal_id, anidb_id, title_ro, url, poster_url, poster_thumb_url, episodes)
		VALUES (1, 100, 'Cowboy Bebop', '', '', '', 26)
	`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM anime").Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}
