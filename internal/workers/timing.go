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
	"github.com/mozhaa/hanyuu/internal/strategies/timing"
	"github.com/mozhaa/hanyuu/pkg/rategate"
)

// Timing fills in missing timing predictions. Every source eventually gets
// a timing from every strategy; one source is handled per gate entry so
// the interval flag directly caps strategy work per second.
type Timing struct {
	interval   time.Duration
	sources    *models.QItemSourceStore
	strategies []timing.Strategy
	metrics    *metrics.Manager
	log        zerolog.Logger
}

func NewTiming(interval time.Duration, sources *models.QItemSourceStore, strats []timing.Strategy, manager *metrics.Manager, log zerolog.Logger) *Timing {
	return &Timing{
		interval:   interval,
		sources:    sources,
		strategies: strats,
		metrics:    manager,
		log:        log.With().Str("worker", "timing").Logger(),
	}
}

// Start runs timing cycles until ctx is canceled.
func (w *Timing) Start(ctx context.Context) error {
	if len(w.strategies) == 0 {
		return errors.New("no timing strategies configured")
	}
	w.log.Info().Msg("starting timing worker")

	gate := rategate.New(w.interval, false)
	for ctx.Err() == nil {
		if err := gate.Do(ctx, w.cycle); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Warn().Err(err).Msg("timing cycle failed")
		}
		w.metrics.CycleDone("timing")
	}
	return nil
}

// cycle processes the first source the best-priority strategy still owes a
// timing to, then yields back to the gate.
func (w *Timing) cycle(ctx context.Context) error {
	for _, s := range w.strategies {
		ids, err := w.sources.IDsWithoutTimingBy(ctx, s.Name())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}

		id := ids[0]
		w.log.Info().Str("strategy", s.Name()).Int64("sourceID", id).Msg("predicting timing")
		if err := s.Run(ctx, id); err != nil {
			w.metrics.JobDone("timing", metrics.OutcomeError)
			return errors.Wrapf(err, "timing strategy %q on source %d", s.Name(), id)
		}
		w.metrics.JobDone("timing", metrics.OutcomeOK)
		return nil
	}

	w.log.Debug().Msg("no sources need timings")
	return nil
}
