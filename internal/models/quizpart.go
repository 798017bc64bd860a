// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mozhaa/hanyuu/internal/dbinterface"
)

var (
	ErrQuizPartNotFound = errors.New("quiz part not found")
	ErrQuizPartExists   = errors.New("quiz part slot already taken")
)

// QuizPart is one rendered guess-and-reveal video, tied to the exact timing
// and difficulty rows it was rendered from.
type QuizPart struct {
	ID           int64     `json:"id"`
	TimingID     int64     `json:"timing_id"`
	DifficultyID int64     `json:"difficulty_id"`
	Style        string    `json:"style"`
	LocalFP      string    `json:"local_fp"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RenderCandidate identifies the next (source, difficulty, timing) triple a
// quiz part should be rendered for.
type RenderCandidate struct {
	SourceID     int64
	DifficultyID int64
	TimingID     int64
	QItemID      int64
}

// PartFilter restricts which qitems the quiz-part worker touches. Zero
// values impose no restriction.
type PartFilter struct {
	Category         Category
	AnimeIDs         []int64
	SourceStrategies []string
}

func (f *PartFilter) needsQItem() bool {
	return f.Category != "" || len(f.AnimeIDs) > 0
}

func (f *PartFilter) needsSource() bool {
	return f.needsQItem() || len(f.SourceStrategies) > 0
}

// where renders the filter as AND-clauses over aliases s (qitem_source) and
// q (qitem), in lockstep with its args.
func (f *PartFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.SourceStrategies) > 0 {
		conds = append(conds, `s.added_by IN (`+inPlaceholders(len(f.SourceStrategies))+`)`)
		args = append(args, stringArgs(f.SourceStrategies)...)
	}
	if f.Category != "" {
		conds = append(conds, `q.category = ?`)
		args = append(args, string(f.Category))
	}
	if len(f.AnimeIDs) > 0 {
		conds = append(conds, `q.anime_id IN (`+inPlaceholders(len(f.AnimeIDs))+`)`)
		args = append(args, int64Args(f.AnimeIDs)...)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

// QuizFilter restricts which quiz parts the assembler may pick from. Empty
// lists impose no restriction.
type QuizFilter struct {
	Category             Category
	AnimeIDs             []int64
	SourceStrategies     []string
	TimingStrategies     []string
	DifficultyStrategies []string
	Styles               []string
}

type QuizPartStore struct {
	db dbinterface.Querier
}

func NewQuizPartStore(db dbinterface.Querier) *QuizPartStore {
	return &QuizPartStore{db: db}
}

const quizPartColumns = `id, timing_id, difficulty_id, style, local_fp, created_at, updated_at`

func scanQuizPart(row interface{ Scan(dest ...any) error }) (*QuizPart, error) {
	part := &QuizPart{}
	err := row.Scan(
		&part.ID,
		&part.TimingID,
		&part.DifficultyID,
		&part.Style,
		&part.LocalFP,
		&part.CreatedAt,
		&part.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return part, nil
}

// DeleteStale removes quiz parts whose difficulty or timing row changed
// after the part was rendered, returning the deleted ids.
func (s *QuizPartStore) DeleteStale(ctx context.Context, filter PartFilter) ([]int64, error) {
	query := `
		SELECT qp.id
		FROM quiz_part qp
		JOIN qitem_difficulty d ON d.id = qp.difficulty_id
		JOIN qitem_source_timing t ON t.id = qp.timing_id`
	if filter.needsSource() {
		query += `
		JOIN qitem_source s ON s.id = t.qitem_source_id`
	}
	if filter.needsQItem() {
		query += `
		JOIN qitem q ON q.id = s.qitem_id`
	}
	filterWhere, args := filter.where()
	query += `
		WHERE (qp.updated_at < d.updated_at OR qp.updated_at < t.updated_at)` + filterWhere

	ids, err := s.queryIDs(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale quiz parts: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.DeleteByIDs(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// BestRenderCandidate picks, over downloaded sources matching the filter,
// the first source whose best (difficulty, timing) pair has no quiz part in
// the given style yet. Pairs rank by added_by position in the priority
// lists, then by recency. Returns nil when everything is rendered.
func (s *QuizPartStore) BestRenderCandidate(ctx context.Context, style string, difficultyPriorities, timingPriorities []string, filter PartFilter) (*RenderCandidate, error) {
	dCase, dArgs := priorityCase("d.added_by", difficultyPriorities)
	tCase, tArgs := priorityCase("t.added_by", timingPriorities)
	filterWhere, filterArgs := filter.where()

	qitemJoin := ""
	if filter.needsQItem() {
		qitemJoin = `
				JOIN qitem q ON q.id = s.qitem_id`
	}

	var (
		query string
		args  []any
	)

	if dialectOf(s.db) == "postgres" {
		query = `
			SELECT cand.s_id, cand.d_id, cand.t_id, cand.q_id
			FROM (
				SELECT DISTINCT ON (s.id) s.id AS s_id, d.id AS d_id, t.id AS t_id, s.qitem_id AS q_id
				FROM qitem_source s
				JOIN qitem_difficulty d ON d.qitem_id = s.qitem_id
				JOIN qitem_source_timing t ON t.qitem_source_id = s.id` + qitemJoin + `
				WHERE s.local_fp IS NOT NULL` + filterWhere + `
				ORDER BY s.id, ` + dCase + `, ` + tCase + `, d.updated_at DESC, t.updated_at DESC
			) cand
			LEFT JOIN quiz_part qp ON qp.difficulty_id = cand.d_id AND qp.timing_id = cand.t_id AND qp.style = ?
			WHERE qp.id IS NULL
			ORDER BY cand.s_id
			LIMIT 1
		`
		args = append(args, filterArgs...)
		args = append(args, dArgs...)
		args = append(args, tArgs...)
		args = append(args, style)
	} else {
		query = `
			SELECT cand.s_id, cand.d_id, cand.t_id, cand.q_id
			FROM (
				SELECT s.id AS s_id, d.id AS d_id, t.id AS t_id, s.qitem_id AS q_id,
					ROW_NUMBER() OVER (
						PARTITION BY s.id
						ORDER BY ` + dCase + `, ` + tCase + `, d.updated_at DESC, t.updated_at DESC
					) AS rn
				FROM qitem_source s
				JOIN qitem_difficulty d ON d.qitem_id = s.qitem_id
				JOIN qitem_source_timing t ON t.qitem_source_id = s.id` + qitemJoin + `
				WHERE s.local_fp IS NOT NULL` + filterWhere + `
			) cand
			LEFT JOIN quiz_part qp ON qp.difficulty_id = cand.d_id AND qp.timing_id = cand.t_id AND qp.style = ?
			WHERE cand.rn = 1 AND qp.id IS NULL
			ORDER BY cand.s_id
			LIMIT 1
		`
		args = append(args, dArgs...)
		args = append(args, tArgs...)
		args = append(args, filterArgs...)
		args = append(args, style)
	}

	candidate := &RenderCandidate{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&candidate.SourceID,
		&candidate.DifficultyID,
		&candidate.TimingID,
		&candidate.QItemID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query render candidate: %w", err)
	}
	return candidate, nil
}

// CreatePlaceholder reserves the (timing, difficulty, style) slot with an
// empty local_fp so the row id can name the output file. A unique violation
// means another worker holds the slot.
func (s *QuizPartStore) CreatePlaceholder(ctx context.Context, timingID, difficultyID int64, style string) (*QuizPart, error) {
	query := `
		INSERT INTO quiz_part (timing_id, difficulty_id, style, local_fp, created_at, updated_at)
		VALUES (?, ?, ?, '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + quizPartColumns

	part, err := scanQuizPart(s.db.QueryRowContext(ctx, query, timingID, difficultyID, style))
	if isUniqueConstraintError(err) {
		return nil, ErrQuizPartExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz part: %w", err)
	}
	return part, nil
}

func (s *QuizPartStore) GetByID(ctx context.Context, id int64) (*QuizPart, error) {
	query := `SELECT ` + quizPartColumns + ` FROM quiz_part WHERE id = ?`

	part, err := scanQuizPart(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizPartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz part: %w", err)
	}
	return part, nil
}

func (s *QuizPartStore) SetLocalFile(ctx context.Context, id int64, localFP string) error {
	query := `UPDATE quiz_part SET local_fp = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, localFP, id)
	if err != nil {
		return fmt.Errorf("failed to set quiz part file: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrQuizPartNotFound
	}
	return nil
}

func (s *QuizPartStore) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM quiz_part WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete quiz part: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrQuizPartNotFound
	}
	return nil
}

// DemotedIDs lists quiz parts built from the same source as the winning
// triple but with a different (difficulty, timing, style) combination.
func (s *QuizPartStore) DemotedIDs(ctx context.Context, sourceID, difficultyID, timingID int64, style string) ([]int64, error) {
	query := `
		SELECT qp.id
		FROM quiz_part qp
		JOIN qitem_source_timing t ON t.id = qp.timing_id
		WHERE t.qitem_source_id = ?
		  AND (qp.difficulty_id != ? OR qp.timing_id != ? OR qp.style != ?)
	`

	ids, err := s.queryIDs(ctx, query, []any{sourceID, difficultyID, timingID, style})
	if err != nil {
		return nil, fmt.Errorf("failed to query demoted quiz parts: %w", err)
	}
	return ids, nil
}

// DeleteDuplicates removes quiz parts sharing a (difficulty, timing, style)
// triple with a newer row, keeping the highest id. Returns the deleted ids.
func (s *QuizPartStore) DeleteDuplicates(ctx context.Context) ([]int64, error) {
	query := `
		SELECT qp.id
		FROM quiz_part qp
		JOIN (
			SELECT difficulty_id, timing_id, style, MAX(id) AS keep_id
			FROM quiz_part
			GROUP BY difficulty_id, timing_id, style
			HAVING COUNT(*) > 1
		) dup ON dup.difficulty_id = qp.difficulty_id
		     AND dup.timing_id = qp.timing_id
		     AND dup.style = qp.style
		     AND dup.keep_id != qp.id
	`

	ids, err := s.queryIDs(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate quiz parts: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.DeleteByIDs(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFiles returns every quiz part row with its rendered file path.
func (s *QuizPartStore) ListFiles(ctx context.Context) ([]FileRef, error) {
	query := `SELECT id, local_fp FROM quiz_part ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz part files: %w", err)
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

// ListFilesForQuiz returns the rendered files matching the assembler filter,
// joined through timing to the source and through difficulty to the qitem.
func (s *QuizPartStore) ListFilesForQuiz(ctx context.Context, filter QuizFilter) ([]string, error) {
	query := `
		SELECT qp.local_fp
		FROM quiz_part qp
		JOIN qitem_difficulty d ON d.id = qp.difficulty_id
		JOIN qitem_source_timing t ON t.id = qp.timing_id
		JOIN qitem_source s ON s.id = t.qitem_source_id
		JOIN qitem q ON q.id = d.qitem_id
		WHERE 1=1`
	var args []any

	if len(filter.SourceStrategies) > 0 {
		query += ` AND s.added_by IN (` + inPlaceholders(len(filter.SourceStrategies)) + `)`
		args = append(args, stringArgs(filter.SourceStrategies)...)
	}
	if len(filter.TimingStrategies) > 0 {
		query += ` AND t.added_by IN (` + inPlaceholders(len(filter.TimingStrategies)) + `)`
		args = append(args, stringArgs(filter.TimingStrategies)...)
	}
	if len(filter.DifficultyStrategies) > 0 {
		query += ` AND d.added_by IN (` + inPlaceholders(len(filter.DifficultyStrategies)) + `)`
		args = append(args, stringArgs(filter.DifficultyStrategies)...)
	}
	if len(filter.Styles) > 0 {
		query += ` AND qp.style IN (` + inPlaceholders(len(filter.Styles)) + `)`
		args = append(args, stringArgs(filter.Styles)...)
	}
	if filter.Category != "" {
		query += ` AND q.category = ?`
		args = append(args, string(filter.Category))
	}
	if len(filter.AnimeIDs) > 0 {
		query += ` AND q.anime_id IN (` + inPlaceholders(len(filter.AnimeIDs)) + `)`
		args = append(args, int64Args(filter.AnimeIDs)...)
	}
	query += ` ORDER BY qp.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan quiz file: %w", err)
		}
		files = append(files, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz files: %w", err)
	}
	return files, nil
}

func (s *QuizPartStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM quiz_part WHERE id IN (` + inPlaceholders(len(ids)) + `)`

	if _, err := s.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("failed to delete quiz parts: %w", err)
	}
	return nil
}

func (s *QuizPartStore) queryIDs(ctx context.Context, query string, args []any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
