// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies/find"
	"github.com/mozhaa/hanyuu/pkg/filelist"
)

// SourceFindOptions tune the find loops.
type SourceFindOptions struct {
	// MaxNoFetch bounds how long a strategy may chew on one candidate
	// batch before refreshing it from the database.
	MaxNoFetch time.Duration
	// Wait is the idle sleep when a strategy has nothing left to process.
	Wait time.Duration
	// Delay staggers the per-strategy loop starts.
	Delay time.Duration
}

// SourceFind runs every find strategy against the qitems that still lack
// a source by that strategy. Each strategy remembers the qitems it already
// inspected in a file-backed list, so restarts do not re-crawl the world.
type SourceFind struct {
	opts    SourceFindOptions
	qitems  *models.QItemStore
	finders []find.Strategy
	metrics *metrics.Manager
	cfg     *domain.Config
	log     zerolog.Logger
}

func NewSourceFind(opts SourceFindOptions, qitems *models.QItemStore, finders []find.Strategy, manager *metrics.Manager, cfg *domain.Config, log zerolog.Logger) *SourceFind {
	return &SourceFind{
		opts:    opts,
		qitems:  qitems,
		finders: finders,
		metrics: manager,
		cfg:     cfg,
		log:     log.With().Str("worker", "sourcefind").Logger(),
	}
}

// Start runs one goroutine per strategy until ctx is canceled.
func (w *SourceFind) Start(ctx context.Context) error {
	if len(w.finders) == 0 {
		return errors.New("no find strategies configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range w.finders {
		stagger := time.Duration(i) * w.opts.Delay
		g.Go(func() error {
			return w.runStrategy(ctx, s, stagger)
		})
	}
	return g.Wait()
}

func (w *SourceFind) runStrategy(ctx context.Context, s find.Strategy, stagger time.Duration) error {
	if stagger > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(stagger):
		}
	}

	log := w.log.With().Str("strategy", s.Name()).Logger()
	log.Info().Msg("starting find strategy")

	for ctx.Err() == nil {
		idle, err := w.cycle(ctx, s, log)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Msg("find cycle failed")
			idle = true
		}
		w.metrics.CycleDone("sourcefind")

		if idle {
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.Wait):
			}
		}
	}
	return nil
}

// cycle refreshes the candidate batch and lets the strategy chew on it
// until the batch is exhausted or stale. Reports idle when there was
// nothing left to inspect.
func (w *SourceFind) cycle(ctx context.Context, s find.Strategy, log zerolog.Logger) (bool, error) {
	ids, err := w.qitems.IDsWithoutSourceBy(ctx, s.Name())
	if err != nil {
		return false, err
	}
	fetched := time.Now()

	dir := w.cfg.WorkerDir("source", "find")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, errors.Wrap(err, "create find worker dir")
	}
	list, err := filelist.Ints(filepath.Join(dir, fmt.Sprintf("processed_%s.txt", s.Name())))
	if err != nil {
		return false, err
	}

	pending := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !list.Contains(id) {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return true, list.Close(false)
	}

	rand.Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })

	for _, id := range pending {
		if ctx.Err() != nil {
			break
		}
		log.Info().Int64("qitemID", id).Msg("running find strategy")
		if err := s.Run(ctx, id); err != nil {
			if ctx.Err() != nil {
				// Shutdown, not a verdict on this qitem.
				break
			}
			log.Warn().Err(err).Int64("qitemID", id).Msg("find strategy failed")
			w.metrics.JobDone("sourcefind", metrics.OutcomeError)
		} else {
			w.metrics.JobDone("sourcefind", metrics.OutcomeOK)
		}
		list.Append(id)
		if time.Since(fetched) >= w.opts.MaxNoFetch {
			break
		}
	}
	return false, list.Close(true)
}
