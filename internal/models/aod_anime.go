// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mozhaa/hanyuu/internal/dbinterface"
)

var ErrAODAnimeNotFound = errors.New("aod anime not found")

// Release seasons and statuses follow the anime-offline-database vocabulary.
const (
	SeasonWinter    = "WINTER"
	SeasonSpring    = "SPRING"
	SeasonSummer    = "SUMMER"
	SeasonFall      = "FALL"
	SeasonUndefined = "UNDEFINED"
)

// AODAnime mirrors one anime-offline-database entry that carries both a
// MyAnimeList and an AniDB id.
type AODAnime struct {
	MalID          int64     `json:"mal_id"`
	AnidbID        int64     `json:"anidb_id"`
	Title          string    `json:"title"`
	PosterURL      string    `json:"poster_url,omitempty"`
	PosterThumbURL string    `json:"poster_thumb_url,omitempty"`
	Episodes       int       `json:"episodes"`
	Duration       *int      `json:"duration,omitempty"`
	ReleaseYear    *int      `json:"release_year,omitempty"`
	ReleaseSeason  string    `json:"release_season"`
	Status         string    `json:"status"`
	AnimeType      string    `json:"anime_type"`
	Sources        []string  `json:"sources"`
	Tags           []string  `json:"tags"`
	Synonyms       []string  `json:"synonyms"`
	RelatedAnime   []string  `json:"related_anime"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Titles returns the main title followed by all synonyms.
func (a *AODAnime) Titles() []string {
	titles := make([]string, 0, 1+len(a.Synonyms))
	if a.Title != "" {
		titles = append(titles, a.Title)
	}
	titles = append(titles, a.Synonyms...)
	return titles
}

type AODAnimeStore struct {
	db dbinterface.TxBeginner
}

func NewAODAnimeStore(db dbinterface.TxBeginner) *AODAnimeStore {
	return &AODAnimeStore{db: db}
}

const aodAnimeColumns = `mal_id, anidb_id, title, poster_url, poster_thumb_url, episodes, duration,
		release_year, release_season, status, anime_type, sources, tags, synonyms, related_anime,
		created_at, updated_at`

func scanAODAnime(row interface{ Scan(dest ...any) error }) (*AODAnime, error) {
	anime := &AODAnime{}
	var (
		duration, releaseYear             sql.NullInt64
		sources, tags, synonyms, relAnime string
	)
	err := row.Scan(
		&anime.MalID,
		&anime.AnidbID,
		&anime.Title,
		&anime.PosterURL,
		&anime.PosterThumbURL,
		&anime.Episodes,
		&duration,
		&releaseYear,
		&anime.ReleaseSeason,
		&anime.Status,
		&anime.AnimeType,
		&sources,
		&tags,
		&synonyms,
		&relAnime,
		&anime.CreatedAt,
		&anime.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	anime.Duration = intPtr(duration)
	anime.ReleaseYear = intPtr(releaseYear)
	if anime.Sources, err = unmarshalStringList(sources); err != nil {
		return nil, err
	}
	if anime.Tags, err = unmarshalStringList(tags); err != nil {
		return nil, err
	}
	if anime.Synonyms, err = unmarshalStringList(synonyms); err != nil {
		return nil, err
	}
	if anime.RelatedAnime, err = unmarshalStringList(relAnime); err != nil {
		return nil, err
	}
	return anime, nil
}

func (s *AODAnimeStore) GetByMalID(ctx context.Context, malID int64) (*AODAnime, error) {
	query := `SELECT ` + aodAnimeColumns + ` FROM aod_anime WHERE mal_id = ?`

	anime, err := scanAODAnime(s.db.QueryRowContext(ctx, query, malID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAODAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aod anime: %w", err)
	}
	return anime, nil
}

func (s *AODAnimeStore) GetByAnidbID(ctx context.Context, anidbID int64) (*AODAnime, error) {
	query := `SELECT ` + aodAnimeColumns + ` FROM aod_anime WHERE anidb_id = ?`

	anime, err := scanAODAnime(s.db.QueryRowContext(ctx, query, anidbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAODAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aod anime: %w", err)
	}
	return anime, nil
}

func (s *AODAnimeStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aod_anime`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count aod anime: %w", err)
	}
	return count, nil
}

// Snapshot inserts carry 15 binds per row; 500 rows per statement stays far
// below SQLite's variable cap while keeping the ~40k-entry refresh quick.
const aodInsertBatchSize = 500

const aodInsertColumns = 15

// ReplaceAll swaps the whole mirror for a fresh snapshot in one transaction.
func (s *AODAnimeStore) ReplaceAll(ctx context.Context, entries []*AODAnime) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM aod_anime`); err != nil {
		return fmt.Errorf("failed to clear aod anime: %w", err)
	}

	template := `
		INSERT INTO aod_anime (
			mal_id, anidb_id, title, poster_url, poster_thumb_url, episodes, duration,
			release_year, release_season, status, anime_type, sources, tags, synonyms, related_anime
		)
		VALUES %s
	`

	for start := 0; start < len(entries); start += aodInsertBatchSize {
		batch := entries[start:min(start+aodInsertBatchSize, len(entries))]

		args := make([]any, 0, len(batch)*aodInsertColumns)
		for _, entry := range batch {
			sources, err := marshalStringList(entry.Sources)
			if err != nil {
				return err
			}
			tags, err := marshalStringList(entry.Tags)
			if err != nil {
				return err
			}
			synonyms, err := marshalStringList(entry.Synonyms)
			if err != nil {
				return err
			}
			relAnime, err := marshalStringList(entry.RelatedAnime)
			if err != nil {
				return err
			}

			args = append(args,
				entry.MalID,
				entry.AnidbID,
				entry.Title,
				entry.PosterURL,
				entry.PosterThumbURL,
				entry.Episodes,
				nullIntPtr(entry.Duration),
				nullIntPtr(entry.ReleaseYear),
				entry.ReleaseSeason,
				entry.Status,
				entry.AnimeType,
				sources,
				tags,
				synonyms,
				relAnime,
			)
		}

		query := dbinterface.BuildQueryWithPlaceholders(template, aodInsertColumns, len(batch))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert aod anime batch at %d: %w", start, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aod anime snapshot: %w", err)
	}
	return nil
}
