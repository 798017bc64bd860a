// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies"
)

// Cleanup reconciles database rows with files on disk. One-shot: deletes
// duplicate quiz parts, demotes worse downloaded sources, drops rows whose
// file vanished and unlinks files no surviving row references.
type Cleanup struct {
	sources *models.QItemSourceStore
	parts   *models.QuizPartStore
	cfg     *domain.Config
	log     zerolog.Logger
}

func NewCleanup(sources *models.QItemSourceStore, parts *models.QuizPartStore, cfg *domain.Config, log zerolog.Logger) *Cleanup {
	return &Cleanup{
		sources: sources,
		parts:   parts,
		cfg:     cfg,
		log:     log.With().Str("worker", "cleanup").Logger(),
	}
}

// Run executes the four passes in order. Referenced-file sets are read
// after the row passes, so running cleanup twice in a row is a no-op.
func (w *Cleanup) Run(ctx context.Context) error {
	dups, err := w.parts.DeleteDuplicates(ctx)
	if err != nil {
		return err
	}
	if len(dups) > 0 {
		w.log.Info().Ints64("quizpartIDs", dups).Msg("deleted duplicate quiz parts")
	}

	cleared, err := w.sources.ClearWorseLocalFiles(ctx, strategies.WithManual(w.cfg.FindPriorities))
	if err != nil {
		return err
	}
	if len(cleared) > 0 {
		w.log.Info().Ints64("sourceIDs", cleared).Msg("cleared files of worse sources")
	}

	if err := w.dropRowsWithoutFiles(ctx); err != nil {
		return err
	}

	sourceRefs, err := w.sources.ListDownloaded(ctx)
	if err != nil {
		return err
	}
	partRefs, err := w.parts.ListFiles(ctx)
	if err != nil {
		return err
	}

	if err := w.removeUnreferenced(w.cfg.SourcesDir(), sourceRefs); err != nil {
		return err
	}
	return w.removeUnreferenced(w.cfg.QuizPartsDir(), partRefs)
}

// dropRowsWithoutFiles deletes source and quiz part rows whose local file
// no longer exists. Quiz part placeholders (empty local_fp) count as
// missing; an interrupted render left them behind.
func (w *Cleanup) dropRowsWithoutFiles(ctx context.Context) error {
	sourceRefs, err := w.sources.ListDownloaded(ctx)
	if err != nil {
		return err
	}
	if gone := missingFiles(sourceRefs); len(gone) > 0 {
		w.log.Info().Ints64("sourceIDs", gone).Msg("deleting sources whose file vanished")
		if err := w.sources.DeleteByIDs(ctx, gone); err != nil {
			return err
		}
	}

	partRefs, err := w.parts.ListFiles(ctx)
	if err != nil {
		return err
	}
	if gone := missingFiles(partRefs); len(gone) > 0 {
		w.log.Info().Ints64("quizpartIDs", gone).Msg("deleting quiz parts whose file vanished")
		if err := w.parts.DeleteByIDs(ctx, gone); err != nil {
			return err
		}
	}
	return nil
}

func missingFiles(refs []models.FileRef) []int64 {
	var gone []int64
	for _, ref := range refs {
		if ref.LocalFP == "" {
			gone = append(gone, ref.ID)
			continue
		}
		if _, err := os.Stat(ref.LocalFP); os.IsNotExist(err) {
			gone = append(gone, ref.ID)
		}
	}
	return gone
}

// removeUnreferenced unlinks every file under dir that no row points at.
func (w *Cleanup) removeUnreferenced(dir string, refs []models.FileRef) error {
	used := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref.LocalFP == "" {
			continue
		}
		abs, err := filepath.Abs(ref.LocalFP)
		if err != nil {
			continue
		}
		used[abs] = struct{}{}
	}

	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, ok := used[abs]; ok {
			return nil
		}

		w.log.Info().Str("file", path).Msg("removing unreferenced file")
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		// Directory not created yet, nothing to sweep.
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "sweep %s", dir)
	}

	w.log.Info().Int("removed", removed).Str("dir", dir).Msg("swept unreferenced files")
	return nil
}
