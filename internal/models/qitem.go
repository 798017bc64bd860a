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
	ErrQItemNotFound = errors.New("qitem not found")
	ErrQItemExists   = errors.New("qitem already exists")
)

// QItem is a single opening or ending of an anime, the unit the whole
// pipeline revolves around.
type QItem struct {
	ID         int64     `json:"id"`
	AnimeID    int64     `json:"anime_id"`
	Category   Category  `json:"category"`
	Number     int       `json:"number"`
	SongArtist string    `json:"song_artist,omitempty"`
	SongName   string    `json:"song_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type QItemStore struct {
	db dbinterface.Querier
}

func NewQItemStore(db dbinterface.Querier) *QItemStore {
	return &QItemStore{db: db}
}

const qitemColumns = `id, anime_id, category, number, song_artist, song_name, created_at, updated_at`

func scanQItem(row interface{ Scan(dest ...any) error }) (*QItem, error) {
	item := &QItem{}
	err := row.Scan(
		&item.ID,
		&item.AnimeID,
		&item.Category,
		&item.Number,
		&item.SongArtist,
		&item.SongName,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *QItemStore) Create(ctx context.Context, item *QItem) (*QItem, error) {
	query := `
		INSERT INTO qitem (anime_id, category, number, song_artist, song_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + qitemColumns

	created, err := scanQItem(s.db.QueryRowContext(ctx, query,
		item.AnimeID,
		item.Category,
		item.Number,
		item.SongArtist,
		item.SongName,
	))
	if isUniqueConstraintError(err) {
		return nil, ErrQItemExists
	}
	if isForeignKeyConstraintError(err) {
		return nil, ErrAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create qitem: %w", err)
	}
	return created, nil
}

func (s *QItemStore) GetByID(ctx context.Context, id int64) (*QItem, error) {
	query := `SELECT ` + qitemColumns + ` FROM qitem WHERE id = ?`

	item, err := scanQItem(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qitem: %w", err)
	}
	return item, nil
}

// IDsWithoutSourceBy returns ids of qitems that have no source row created
// by the given strategy, oldest first.
func (s *QItemStore) IDsWithoutSourceBy(ctx context.Context, addedBy string) ([]int64, error) {
	query := `
		SELECT q.id
		FROM qitem q
		LEFT JOIN qitem_source s ON s.qitem_id = q.id AND s.added_by = ?
		WHERE s.id IS NULL
		ORDER BY q.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, addedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query qitems without source: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan qitem id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qitem ids: %w", err)
	}
	return ids, nil
}

// IDsWithoutDifficultyBy returns ids of qitems lacking a difficulty row by
// the given strategy, oldest first.
func (s *QItemStore) IDsWithoutDifficultyBy(ctx context.Context, addedBy string) ([]int64, error) {
	query := `
		SELECT q.id
		FROM qitem q
		LEFT JOIN qitem_difficulty d ON d.qitem_id = q.id AND d.added_by = ?
		WHERE d.id IS NULL
		ORDER BY q.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, addedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query qitems without difficulty: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan qitem id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qitem ids: %w", err)
	}
	return ids, nil
}
