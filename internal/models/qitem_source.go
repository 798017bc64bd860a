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

var ErrQItemSourceNotFound = errors.New("qitem source not found")

// Source platforms understood by the download backends.
const (
	PlatformLocal   = "local"
	PlatformYtdlp   = "yt-dlp"
	PlatformTorrent = "torrent"
)

// QItemSource is one place a qitem's video can be obtained from. LocalFP is
// nil until a download backend verified and stored the file; it never
// coexists with Invalid.
type QItemSource struct {
	ID             int64     `json:"id"`
	QItemID        int64     `json:"qitem_id"`
	Platform       string    `json:"platform"`
	Path           string    `json:"path"`
	AdditionalPath string    `json:"additional_path,omitempty"`
	AddedBy        string    `json:"added_by"`
	LocalFP        *string   `json:"local_fp,omitempty"`
	Invalid        bool      `json:"invalid"`
	Downloading    bool      `json:"downloading"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FileRef pairs a row id with the media file it owns on disk.
type FileRef struct {
	ID      int64
	LocalFP string
}

type QItemSourceStore struct {
	db dbinterface.Querier
}

func NewQItemSourceStore(db dbinterface.Querier) *QItemSourceStore {
	return &QItemSourceStore{db: db}
}

const qitemSourceColumns = `id, qitem_id, platform, path, additional_path, added_by, local_fp, invalid, downloading, created_at, updated_at`

func scanQItemSource(row interface{ Scan(dest ...any) error }) (*QItemSource, error) {
	source := &QItemSource{}
	var additionalPath, localFP sql.NullString
	err := row.Scan(
		&source.ID,
		&source.QItemID,
		&source.Platform,
		&source.Path,
		&additionalPath,
		&source.AddedBy,
		&localFP,
		&source.Invalid,
		&source.Downloading,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	source.AdditionalPath = additionalPath.String
	if localFP.Valid {
		source.LocalFP = &localFP.String
	}
	return source, nil
}

func (s *QItemSourceStore) Create(ctx context.Context, source *QItemSource) (*QItemSource, error) {
	query := `
		INSERT INTO qitem_source (qitem_id, platform, path, additional_path, added_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + qitemSourceColumns

	created, err := scanQItemSource(s.db.QueryRowContext(ctx, query,
		source.QItemID,
		source.Platform,
		source.Path,
		nullString(source.AdditionalPath),
		source.AddedBy,
	))
	if isForeignKeyConstraintError(err) {
		return nil, ErrQItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create qitem source: %w", err)
	}
	return created, nil
}

func (s *QItemSourceStore) GetByID(ctx context.Context, id int64) (*QItemSource, error) {
	query := `SELECT ` + qitemSourceColumns + ` FROM qitem_source WHERE id = ?`

	source, err := scanQItemSource(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQItemSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qitem source: %w", err)
	}
	return source, nil
}

// ListByQItemID returns all sources of one qitem, oldest first.
func (s *QItemSourceStore) ListByQItemID(ctx context.Context, qitemID int64) ([]*QItemSource, error) {
	query := `SELECT ` + qitemSourceColumns + ` FROM qitem_source WHERE qitem_id = ? ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, qitemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list qitem sources: %w", err)
	}
	defer rows.Close()

	var sources []*QItemSource
	for rows.Next() {
		source, err := scanQItemSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan qitem source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// IDsWithoutTimingBy returns ids of sources that have no timing row created
// by the given strategy, oldest first.
func (s *QItemSourceStore) IDsWithoutTimingBy(ctx context.Context, addedBy string) ([]int64, error) {
	query := `
		SELECT s.id
		FROM qitem_source s
		LEFT JOIN qitem_source_timing t ON t.qitem_source_id = s.id AND t.added_by = ?
		WHERE t.id IS NULL
		ORDER BY s.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, addedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources without timing: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source ids: %w", err)
	}
	return ids, nil
}

// BestPendingByPlatform returns, per qitem, the single highest-priority
// source on the given platform that still needs downloading. Priority
// follows the position of added_by in priorities, newest row first within a
// rank. Ids in banned are skipped, as are qitems that already hold a file
// from a strictly better-ranked source (on any platform), so demoted sources
// are not fetched again.
func (s *QItemSourceStore) BestPendingByPlatform(ctx context.Context, platform string, priorities []string, banned []int64) ([]*QItemSource, error) {
	prioCase, prioArgs := priorityCase("s.added_by", priorities)
	doneCase, doneArgs := priorityCase("d.added_by", priorities)
	selfCase, selfArgs := priorityCase("s.added_by", priorities)

	var (
		query string
		args  []any
	)

	filter := `s.platform = ? AND NOT s.invalid AND NOT s.downloading AND s.local_fp IS NULL`
	filterArgs := []any{platform}
	if len(banned) > 0 {
		filter += ` AND s.id NOT IN (` + inPlaceholders(len(banned)) + `)`
		filterArgs = append(filterArgs, int64Args(banned)...)
	}
	filter += `
			AND NOT EXISTS (
				SELECT 1 FROM qitem_source d
				WHERE d.qitem_id = s.qitem_id AND d.local_fp IS NOT NULL
					AND ` + doneCase + ` < ` + selfCase + `
			)`
	filterArgs = append(filterArgs, doneArgs...)
	filterArgs = append(filterArgs, selfArgs...)

	cols := prefixedColumns("s", qitemSourceColumns)

	if dialectOf(s.db) == "postgres" {
		query = `
			SELECT DISTINCT ON (s.qitem_id) ` + cols + `
			FROM qitem_source s
			WHERE ` + filter + `
			ORDER BY s.qitem_id, ` + prioCase + `, s.updated_at DESC
		`
		args = append(args, filterArgs...)
		args = append(args, prioArgs...)
	} else {
		query = `
			SELECT ` + qitemSourceColumns + ` FROM (
				SELECT ` + cols + `, ROW_NUMBER() OVER (
					PARTITION BY s.qitem_id
					ORDER BY ` + prioCase + `, s.updated_at DESC
				) AS rn
				FROM qitem_source s
				WHERE ` + filter + `
			) ranked
			WHERE rn = 1
			ORDER BY qitem_id
		`
		args = append(args, prioArgs...)
		args = append(args, filterArgs...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sources: %w", err)
	}
	defer rows.Close()

	var sources []*QItemSource
	for rows.Next() {
		source, err := scanQItemSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan qitem source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending sources: %w", err)
	}
	return sources, nil
}

func (s *QItemSourceStore) SetDownloading(ctx context.Context, id int64, downloading bool) error {
	query := `UPDATE qitem_source SET downloading = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, downloading, id)
	if err != nil {
		return fmt.Errorf("failed to update downloading flag: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrQItemSourceNotFound
	}
	return nil
}

// SetLocalFile records the downloaded file and ends the downloading state.
func (s *QItemSourceStore) SetLocalFile(ctx context.Context, id int64, localFP string) error {
	query := `
		UPDATE qitem_source
		SET local_fp = ?, downloading = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, localFP, false, id)
	if err != nil {
		return fmt.Errorf("failed to set local file: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrQItemSourceNotFound
	}
	return nil
}

// MarkInvalid flags the source as permanently unusable, dropping any stored
// file reference to satisfy the invalid/local_fp exclusivity constraint.
func (s *QItemSourceStore) MarkInvalid(ctx context.Context, id int64) error {
	query := `
		UPDATE qitem_source
		SET invalid = ?, local_fp = NULL, downloading = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, true, false, id)
	if err != nil {
		return fmt.Errorf("failed to mark source invalid: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrQItemSourceNotFound
	}
	return nil
}

// ClearLocalFilesWorseThan nulls local_fp on the qitem's other downloaded
// sources whose find strategy ranks below the given source's, returning the
// cleared ids. Runs right after a successful download.
func (s *QItemSourceStore) ClearLocalFilesWorseThan(ctx context.Context, qitemID, sourceID int64, priorities []string) ([]int64, error) {
	otherCase, otherArgs := priorityCase("s.added_by", priorities)
	refCase, refArgs := priorityCase("added_by", priorities)

	query := `
		SELECT s.id
		FROM qitem_source s
		WHERE s.qitem_id = ? AND s.id != ? AND s.local_fp IS NOT NULL
			AND ` + otherCase + ` > (SELECT ` + refCase + ` FROM qitem_source WHERE id = ?)
	`

	args := []any{qitemID, sourceID}
	args = append(args, otherArgs...)
	args = append(args, refArgs...)
	args = append(args, sourceID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query demoted sources: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demoted sources: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	update := `UPDATE qitem_source SET local_fp = NULL, updated_at = CURRENT_TIMESTAMP WHERE id IN (` + inPlaceholders(len(ids)) + `)`
	if _, err := s.db.ExecContext(ctx, update, int64Args(ids)...); err != nil {
		return nil, fmt.Errorf("failed to clear demoted sources: %w", err)
	}
	return ids, nil
}

// ClearWorseLocalFiles nulls local_fp on every downloaded source that is not
// its qitem's best-priority valid source, returning the cleared ids.
func (s *QItemSourceStore) ClearWorseLocalFiles(ctx context.Context, priorities []string) ([]int64, error) {
	prioCase, prioArgs := priorityCase("added_by", priorities)

	var (
		query string
		args  []any
	)

	if dialectOf(s.db) == "postgres" {
		query = `
			SELECT s.id
			FROM qitem_source s
			JOIN (
				SELECT DISTINCT ON (qitem_id) id, qitem_id
				FROM qitem_source
				WHERE NOT invalid
				ORDER BY qitem_id, ` + prioCase + `, updated_at DESC
			) best ON best.qitem_id = s.qitem_id
			WHERE s.id != best.id AND s.local_fp IS NOT NULL
		`
		args = prioArgs
	} else {
		query = `
			SELECT s.id
			FROM qitem_source s
			JOIN (
				SELECT id, qitem_id FROM (
					SELECT id, qitem_id, ROW_NUMBER() OVER (
						PARTITION BY qitem_id
						ORDER BY ` + prioCase + `, updated_at DESC
					) AS rn
					FROM qitem_source
					WHERE NOT invalid
				) ranked WHERE rn = 1
			) best ON best.qitem_id = s.qitem_id
			WHERE s.id != best.id AND s.local_fp IS NOT NULL
		`
		args = prioArgs
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query worse sources: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worse sources: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	update := `UPDATE qitem_source SET local_fp = NULL, updated_at = CURRENT_TIMESTAMP WHERE id IN (` + inPlaceholders(len(ids)) + `)`
	if _, err := s.db.ExecContext(ctx, update, int64Args(ids)...); err != nil {
		return nil, fmt.Errorf("failed to clear worse sources: %w", err)
	}
	return ids, nil
}

// ListDownloaded returns every source that currently owns a file on disk.
func (s *QItemSourceStore) ListDownloaded(ctx context.Context) ([]FileRef, error) {
	query := `SELECT id, local_fp FROM qitem_source WHERE local_fp IS NOT NULL ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloaded sources: %w", err)
	}
	defer rows.Close()

	var refs []FileRef
	for rows.Next() {
		var ref FileRef
		if err := rows.Scan(&ref.ID, &ref.LocalFP); err != nil {
			return nil, fmt.Errorf("failed to scan file ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file refs: %w", err)
	}
	return refs, nil
}

func (s *QItemSourceStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM qitem_source WHERE id IN (` + inPlaceholders(len(ids)) + `)`

	if _, err := s.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("failed to delete qitem sources: %w", err)
	}
	return nil
}
