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

var (
	ErrAnimeNotFound = errors.New("anime not found")
	ErrAnimeExists   = errors.New("anime already exists")
)

// Anime is a catalog entry keyed by its MyAnimeList id. Optional text
// columns are represented as empty strings, optional numeric ones as nil.
type Anime struct {
	MalID          int64      `json:"mal_id"`
	AnidbID        int64      `json:"anidb_id"`
	Alias          string     `json:"alias,omitempty"`
	TitleRo        string     `json:"title_ro"`
	TitleRu        string     `json:"title_ru,omitempty"`
	TitleEn        string     `json:"title_en,omitempty"`
	TitleJp        string     `json:"title_jp,omitempty"`
	URL            string     `json:"url,omitempty"`
	Status         string     `json:"status,omitempty"`
	PosterURL      string     `json:"poster_url,omitempty"`
	PosterThumbURL string     `json:"poster_thumb_url,omitempty"`
	Episodes       int        `json:"episodes"`
	Duration       *int       `json:"duration,omitempty"`
	Rating         *float64   `json:"rating,omitempty"`
	RatingsCount   int        `json:"ratings_count"`
	Planned        int        `json:"planned"`
	Completed      int        `json:"completed"`
	Watching       int        `json:"watching"`
	Dropped        int        `json:"dropped"`
	OnHold         int        `json:"on_hold"`
	AgeRating      string     `json:"age_rating,omitempty"`
	AiredOn        string     `json:"aired_on,omitempty"`
	ReleasedOn     string     `json:"released_on,omitempty"`
	Videos         [][]string `json:"videos"`
	Synonyms       []string   `json:"synonyms"`
	Genres         []string   `json:"genres"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Titles returns every non-empty title and synonym, romaji first.
func (a *Anime) Titles() []string {
	titles := make([]string, 0, 4+len(a.Synonyms))
	for _, t := range []string{a.TitleRo, a.TitleEn, a.TitleRu, a.TitleJp} {
		if t != "" {
			titles = append(titles, t)
		}
	}
	titles = append(titles, a.Synonyms...)
	return titles
}

// AiredAt parses the aired_on date, reporting false when it is absent.
func (a *Anime) AiredAt() (time.Time, bool) {
	if a.AiredOn == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", a.AiredOn)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type AnimeStore struct {
	db dbinterface.Querier
}

func NewAnimeStore(db dbinterface.Querier) *AnimeStore {
	return &AnimeStore{db: db}
}

const animeColumns = `mal_id, anidb_id, alias, title_ro, title_ru, title_en, title_jp, url, status,
		poster_url, poster_thumb_url, episodes, duration, rating, ratings_count,
		planned, completed, watching, dropped, on_hold, age_rating, aired_on, released_on,
		videos, synonyms, genres, created_at, updated_at`

func scanAnime(row interface{ Scan(dest ...any) error }) (*Anime, error) {
	anime := &Anime{}
	var (
		alias, titleRu, titleEn, titleJp, status sql.NullString
		ageRating, airedOn, releasedOn           sql.NullString
		duration                                 sql.NullInt64
		rating                                   sql.NullFloat64
		videos, synonyms, genres                 string
	)
	err := row.Scan(
		&anime.MalID,
		&anime.AnidbID,
		&alias,
		&anime.TitleRo,
		&titleRu,
		&titleEn,
		&titleJp,
		&anime.URL,
		&status,
		&anime.PosterURL,
		&anime.PosterThumbURL,
		&anime.Episodes,
		&duration,
		&rating,
		&anime.RatingsCount,
		&anime.Planned,
		&anime.Completed,
		&anime.Watching,
		&anime.Dropped,
		&anime.OnHold,
		&ageRating,
		&airedOn,
		&releasedOn,
		&videos,
		&synonyms,
		&genres,
		&anime.CreatedAt,
		&anime.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	anime.Alias = alias.String
	anime.TitleRu = titleRu.String
	anime.TitleEn = titleEn.String
	anime.TitleJp = titleJp.String
	anime.Status = status.String
	anime.AgeRating = ageRating.String
	anime.AiredOn = airedOn.String
	anime.ReleasedOn = releasedOn.String
	anime.Duration = intPtr(duration)
	anime.Rating = floatPtr(rating)

	if anime.Videos, err = unmarshalStringLists(videos); err != nil {
		return nil, err
	}
	if anime.Synonyms, err = unmarshalStringList(synonyms); err != nil {
		return nil, err
	}
	if anime.Genres, err = unmarshalStringList(genres); err != nil {
		return nil, err
	}
	return anime, nil
}

func (s *AnimeStore) Create(ctx context.Context, anime *Anime) (*Anime, error) {
	query := `
		INSERT INTO anime (
			mal_id, anidb_id, alias, title_ro, title_ru, title_en, title_jp, url, status,
			poster_url, poster_thumb_url, episodes, duration, rating, ratings_count,
			planned, completed, watching, dropped, on_hold, age_rating, aired_on, released_on,
			videos, synonyms, genres, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + animeColumns

	videos, err := marshalStringLists(anime.Videos)
	if err != nil {
		return nil, err
	}
	synonyms, err := marshalStringList(anime.Synonyms)
	if err != nil {
		return nil, err
	}
	genres, err := marshalStringList(anime.Genres)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, query,
		anime.MalID,
		anime.AnidbID,
		nullString(anime.Alias),
		anime.TitleRo,
		nullString(anime.TitleRu),
		nullString(anime.TitleEn),
		nullString(anime.TitleJp),
		anime.URL,
		nullString(anime.Status),
		anime.PosterURL,
		anime.PosterThumbURL,
		anime.Episodes,
		nullIntPtr(anime.Duration),
		nullFloatPtr(anime.Rating),
		anime.RatingsCount,
		anime.Planned,
		anime.Completed,
		anime.Watching,
		anime.Dropped,
		anime.OnHold,
		nullString(anime.AgeRating),
		nullString(anime.AiredOn),
		nullString(anime.ReleasedOn),
		videos,
		synonyms,
		genres,
	)

	created, err := scanAnime(row)
	if isUniqueConstraintError(err) {
		return nil, ErrAnimeExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create anime: %w", err)
	}
	return created, nil
}

func (s *AnimeStore) GetByMalID(ctx context.Context, malID int64) (*Anime, error) {
	query := `SELECT ` + animeColumns + ` FROM anime WHERE mal_id = ?`

	anime, err := scanAnime(s.db.QueryRowContext(ctx, query, malID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}
	return anime, nil
}

func (s *AnimeStore) GetByAnidbID(ctx context.Context, anidbID int64) (*Anime, error) {
	query := `SELECT ` + animeColumns + ` FROM anime WHERE anidb_id = ?`

	anime, err := scanAnime(s.db.QueryRowContext(ctx, query, anidbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}
	return anime, nil
}
