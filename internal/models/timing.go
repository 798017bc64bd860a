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

var ErrTimingNotFound = errors.New("timing not found")

// QItemSourceTiming holds guess and reveal seek positions for one source,
// stored as HH:MM:SS clocks with optional microsecond precision.
type QItemSourceTiming struct {
	ID            int64     `json:"id"`
	QItemSourceID int64     `json:"qitem_source_id"`
	GuessStart    string    `json:"guess_start"`
	RevealStart   string    `json:"reveal_start"`
	AddedBy       string    `json:"added_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type QItemSourceTimingStore struct {
	db dbinterface.Querier
}

func NewQItemSourceTimingStore(db dbinterface.Querier) *QItemSourceTimingStore {
	return &QItemSourceTimingStore{db: db}
}

const timingColumns = `id, qitem_source_id, guess_start, reveal_start, added_by, created_at, updated_at`

func scanTiming(row interface{ Scan(dest ...any) error }) (*QItemSourceTiming, error) {
	timing := &QItemSourceTiming{}
	err := row.Scan(
		&timing.ID,
		&timing.QItemSourceID,
		&timing.GuessStart,
		&timing.RevealStart,
		&timing.AddedBy,
		&timing.CreatedAt,
		&timing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return timing, nil
}

func (s *QItemSourceTimingStore) Create(ctx context.Context, timing *QItemSourceTiming) (*QItemSourceTiming, error) {
	query := `
		INSERT INTO qitem_source_timing (qitem_source_id, guess_start, reveal_start, added_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + timingColumns

	created, err := scanTiming(s.db.QueryRowContext(ctx, query,
		timing.QItemSourceID,
		timing.GuessStart,
		timing.RevealStart,
		timing.AddedBy,
	))
	if isForeignKeyConstraintError(err) {
		return nil, ErrQItemSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create timing: %w", err)
	}
	return created, nil
}

func (s *QItemSourceTimingStore) GetByID(ctx context.Context, id int64) (*QItemSourceTiming, error) {
	query := `SELECT ` + timingColumns + ` FROM qitem_source_timing WHERE id = ?`

	timing, err := scanTiming(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTimingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timing: %w", err)
	}
	return timing, nil
}
