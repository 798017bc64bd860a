// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies"
	"github.com/mozhaa/hanyuu/internal/video"
	"github.com/mozhaa/hanyuu/pkg/rategate"
)

// QuizPartOptions tune the render loop.
type QuizPartOptions struct {
	Interval time.Duration
	// KeepWorse leaves quiz parts built from a worse (difficulty, timing)
	// pair of the same source in place.
	KeepWorse bool
	// Filter restricts which qitems and sources feed the renderer.
	Filter models.PartFilter
}

// QuizPart renders missing quiz parts, best candidate first. Stale parts
// whose timing or difficulty changed since the render are cleared up
// front, so edits re-render on the next pass.
type QuizPart struct {
	opts    QuizPartOptions
	parts   *models.QuizPartStore
	maker   video.Maker
	metrics *metrics.Manager
	cfg     *domain.Config
	log     zerolog.Logger
}

func NewQuizPart(opts QuizPartOptions, parts *models.QuizPartStore, maker video.Maker, manager *metrics.Manager, cfg *domain.Config, log zerolog.Logger) *QuizPart {
	return &QuizPart{
		opts:    opts,
		parts:   parts,
		maker:   maker,
		metrics: manager,
		cfg:     cfg,
		log:     log.With().Str("worker", "quizpart").Str("style", maker.Name()).Logger(),
	}
}

// Start runs render cycles until ctx is canceled.
func (w *QuizPart) Start(ctx context.Context) error {
	w.log.Info().Msg("starting quiz part worker")

	gate := rategate.New(w.opts.Interval, false)
	for ctx.Err() == nil {
		if err := gate.Do(ctx, w.cycle); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Warn().Err(err).Msg("render cycle failed")
		}
		w.metrics.CycleDone("quizpart")
	}
	return nil
}

func (w *QuizPart) cycle(ctx context.Context) error {
	stale, err := w.parts.DeleteStale(ctx, w.opts.Filter)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		w.log.Info().Ints64("quizpartIDs", stale).Msg("deleted stale quiz parts")
	}

	dPrios := strategies.WithManual(w.cfg.DifficultyPriorities)
	tPrios := strategies.WithManual(w.cfg.TimingPriorities)

	candidate, err := w.parts.BestRenderCandidate(ctx, w.maker.Name(), dPrios, tPrios, w.opts.Filter)
	if err != nil {
		return err
	}
	if candidate == nil {
		w.log.Debug().Msg("nothing to render")
		return nil
	}

	w.log.Info().
		Int64("qitemID", candidate.QItemID).
		Int64("sourceID", candidate.SourceID).
		Int64("difficultyID", candidate.DifficultyID).
		Int64("timingID", candidate.TimingID).
		Msg("rendering quiz part")

	if err := w.render(ctx, candidate); err != nil {
		w.metrics.JobDone("quizpart", metrics.OutcomeError)
		return err
	}
	w.metrics.JobDone("quizpart", metrics.OutcomeOK)
	w.metrics.RenderDone(w.maker.Name())

	if w.opts.KeepWorse {
		return nil
	}
	demoted, err := w.parts.DemotedIDs(ctx, candidate.SourceID, candidate.DifficultyID, candidate.TimingID, w.maker.Name())
	if err != nil {
		return err
	}
	if len(demoted) > 0 {
		w.log.Info().
			Int64("sourceID", candidate.SourceID).
			Ints64("quizpartIDs", demoted).
			Msg("deleting demoted quiz parts")
		if err := w.parts.DeleteByIDs(ctx, demoted); err != nil {
			return err
		}
	}
	return nil
}

// render reserves the slot, points it at the output file and runs the
// maker. A failed render frees the slot again so a later cycle can retry.
func (w *QuizPart) render(ctx context.Context, c *models.RenderCandidate) error {
	part, err := w.parts.CreatePlaceholder(ctx, c.TimingID, c.DifficultyID, w.maker.Name())
	if err != nil {
		if errors.Is(err, models.ErrQuizPartExists) {
			w.log.Debug().
				Int64("timingID", c.TimingID).
				Int64("difficultyID", c.DifficultyID).
				Msg("slot already taken by another worker")
			return nil
		}
		return err
	}

	// ffmpeg runs from the worker's own directory, the path must survive
	// being handed around.
	outputFP, err := filepath.Abs(filepath.Join(w.cfg.QuizPartsDir(), fmt.Sprintf("%d.mkv", part.ID)))
	if err != nil {
		return errors.Wrap(err, "resolve quiz part path")
	}
	if err := w.parts.SetLocalFile(ctx, part.ID, outputFP); err != nil {
		return err
	}

	if err := w.maker.Render(ctx, c.TimingID, c.DifficultyID, outputFP); err != nil {
		if derr := w.parts.Delete(ctx, part.ID); derr != nil {
			w.log.Warn().Err(derr).Int64("quizpartID", part.ID).Msg("failed to delete quiz part after render error")
		}
		return errors.Wrapf(err, "render quiz part %d", part.ID)
	}

	w.log.Info().Int64("quizpartID", part.ID).Str("file", outputFP).Msg("quiz part rendered")
	return nil
}
