// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies/difficulty"
	"github.com/mozhaa/hanyuu/pkg/rategate"
)

// Difficulty fills in missing difficulty grades, one qitem per gate entry,
// mirroring the timing worker.
type Difficulty struct {
	interval   time.Duration
	qitems     *models.QItemStore
	strategies []difficulty.Strategy
	metrics    *metrics.Manager
	log        zerolog.Logger
}

func NewDifficulty(interval time.Duration, qitems *models.QItemStore, strats []difficulty.Strategy, manager *metrics.Manager, log zerolog.Logger) *Difficulty {
	return &Difficulty{
		interval:   interval,
		qitems:     qitems,
		strategies: strats,
		metrics:    manager,
		log:        log.With().Str("worker", "difficulty").Logger(),
	}
}

// Start runs difficulty cycles until ctx is canceled.
func (w *Difficulty) Start(ctx context.Context) error {
	if len(w.strategies) == 0 {
		return errors.New("no difficulty strategies configured")
	}
	w.log.Info().Msg("starting difficulty worker")

	gate := rategate.New(w.interval, false)
	for ctx.Err() == nil {
		if err := gate.Do(ctx, w.cycle); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Warn().Err(err).Msg("difficulty cycle failed")
		}
		w.metrics.CycleDone("difficulty")
	}
	return nil
}

func (w *Difficulty) cycle(ctx context.Context) error {
	for _, s := range w.strategies {
		ids, err := w.qitems.IDsWithoutDifficultyBy(ctx, s.Name())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}

		id := ids[0]
		w.log.Info().Str("strategy", s.Name()).Int64("qitemID", id).Msg("grading difficulty")
		if err := s.Run(ctx, id); err != nil {
			w.metrics.JobDone("difficulty", metrics.OutcomeError)
			return errors.Wrapf(err, "difficulty strategy %q on qitem %d", s.Name(), id)
		}
		w.metrics.JobDone("difficulty", metrics.OutcomeOK)
		return nil
	}

	w.log.Debug().Msg("no qitems need difficulties")
	return nil
}
