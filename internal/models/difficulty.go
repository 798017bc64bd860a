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
	ErrDifficultyNotFound   = errors.New("difficulty not found")
	ErrDifficultyOutOfRange = errors.New("difficulty value out of range [0, 100]")
)

// QItemDifficulty grades how hard a qitem is to guess, 0 (trivial) to 100.
type QItemDifficulty struct {
	ID        int64     `json:"id"`
	QItemID   int64     `json:"qitem_id"`
	Value     int       `json:"value"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type QItemDifficultyStore struct {
	db dbinterface.Querier
}

func NewQItemDifficultyStore(db dbinterface.Querier) *QItemDifficultyStore {
	return &QItemDifficultyStore{db: db}
}

const difficultyColumns = `id, qitem_id, value, added_by, created_at, updated_at`

func scanDifficulty(row interface{ Scan(dest ...any) error }) (*QItemDifficulty, error) {
	difficulty := &QItemDifficulty{}
	err := row.Scan(
		&difficulty.ID,
		&difficulty.QItemID,
		&difficulty.Value,
		&difficulty.AddedBy,
		&difficulty.CreatedAt,
		&difficulty.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return difficulty, nil
}

func (s *QItemDifficultyStore) Create(ctx context.Context, difficulty *QItemDifficulty) (*QItemDifficulty, error) {
	query := `
		INSERT INTO qitem_difficulty (qitem_id, value, added_by, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + difficultyColumns

	created, err := scanDifficulty(s.db.QueryRowContext(ctx, query,
		difficulty.QItemID,
		difficulty.Value,
		difficulty.AddedBy,
	))
	if isCheckConstraintError(err) {
		return nil, ErrDifficultyOutOfRange
	}
	if isForeignKeyConstraintError(err) {
		return nil, ErrQItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create difficulty: %w", err)
	}
	return created, nil
}

func (s *QItemDifficultyStore) GetByID(ctx context.Context, id int64) (*QItemDifficulty, error) {
	query := `SELECT ` + difficultyColumns + ` FROM qitem_difficulty WHERE id = ?`

	difficulty, err := scanDifficulty(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDifficultyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get difficulty: %w", err)
	}
	return difficulty, nil
}
