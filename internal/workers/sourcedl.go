// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies"
	"github.com/mozhaa/hanyuu/internal/strategies/download"
	"github.com/mozhaa/hanyuu/pkg/rategate"
)

// SourceDownloadOptions tune the download loops.
type SourceDownloadOptions struct {
	Interval time.Duration
	// BanDuration is how long a source sits out after a temporary failure.
	BanDuration time.Duration
	// KeepWorse leaves files of lower-priority sources in place after a
	// better one lands.
	KeepWorse bool
}

// SourceDownload drains pending sources platform by platform. Each backend
// runs its own loop, so a slow yt-dlp fetch cannot starve local imports or
// torrent queueing.
type SourceDownload struct {
	opts     SourceDownloadOptions
	sources  *models.QItemSourceStore
	backends []download.Backend
	metrics  *metrics.Manager
	cfg      *domain.Config
	log      zerolog.Logger
}

func NewSourceDownload(opts SourceDownloadOptions, sources *models.QItemSourceStore, backends []download.Backend, manager *metrics.Manager, cfg *domain.Config, log zerolog.Logger) *SourceDownload {
	return &SourceDownload{
		opts:     opts,
		sources:  sources,
		backends: backends,
		metrics:  manager,
		cfg:      cfg,
		log:      log.With().Str("worker", "sourcedl").Logger(),
	}
}

// Start runs one goroutine per backend until ctx is canceled.
func (w *SourceDownload) Start(ctx context.Context) error {
	if len(w.backends) == 0 {
		return errors.New("no download backends configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, b := range w.backends {
		g.Go(func() error {
			return w.runBackend(ctx, b)
		})
	}
	return g.Wait()
}

func (w *SourceDownload) runBackend(ctx context.Context, b download.Backend) error {
	log := w.log.With().Str("backend", b.Name()).Logger()
	log.Info().Str("platform", b.Platform()).Msg("starting download backend")

	bans := newBanList(w.opts.BanDuration)
	gate := rategate.New(w.opts.Interval, false)

	for ctx.Err() == nil {
		err := gate.Do(ctx, func(ctx context.Context) error {
			return w.cycle(ctx, b, bans, log)
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Msg("download cycle failed")
		}
		w.metrics.CycleDone("sourcedl")
	}
	return nil
}

func (w *SourceDownload) cycle(ctx context.Context, b download.Backend, bans *banList, log zerolog.Logger) error {
	priorities := strategies.WithManual(w.cfg.FindPriorities)

	rows, err := w.sources.BestPendingByPlatform(ctx, b.Platform(), priorities, bans.active())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Debug().Msg("no pending sources")
		return nil
	}

	for _, source := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.download(ctx, b, bans, source, log); err != nil {
			return err
		}
	}
	return nil
}

// download runs one backend job and settles the row according to the
// failure taxonomy. Only unclassified errors escape to the caller.
func (w *SourceDownload) download(ctx context.Context, b download.Backend, bans *banList, source *models.QItemSource, log zerolog.Logger) error {
	log.Info().
		Int64("sourceID", source.ID).
		Int64("qitemID", source.QItemID).
		Str("addedBy", source.AddedBy).
		Msg("downloading source")

	if err := w.sources.SetDownloading(ctx, source.ID, true); err != nil {
		return err
	}

	err := b.Download(ctx, source)
	switch {
	case err == nil:
		// Local and yt-dlp have written local_fp by now; torrent jobs stay
		// marked downloading until the reconciler sees them finish.
		if !w.opts.KeepWorse {
			if err := w.demoteWorse(ctx, source, log); err != nil {
				return err
			}
		}
		w.metrics.JobDone("sourcedl", metrics.OutcomeOK)
		if b.Deferred() {
			log.Info().Int64("sourceID", source.ID).Msg("download handed off")
		} else {
			log.Info().Int64("sourceID", source.ID).Msg("source downloaded")
		}
		return nil

	case strategies.IsInvalidSource(err):
		log.Warn().Err(err).Int64("sourceID", source.ID).Msg("source is invalid")
		w.metrics.JobDone("sourcedl", metrics.OutcomeInvalid)
		return w.sources.MarkInvalid(ctx, source.ID)

	case strategies.IsTemporaryFailure(err):
		log.Warn().Err(err).
			Int64("sourceID", source.ID).
			Dur("banFor", w.opts.BanDuration).
			Msg("download failed temporarily, banning source")
		bans.ban(source.ID)
		w.metrics.JobDone("sourcedl", metrics.OutcomeTemporary)
		return w.sources.SetDownloading(ctx, source.ID, false)

	default:
		w.metrics.JobDone("sourcedl", metrics.OutcomeError)
		if derr := w.sources.SetDownloading(ctx, source.ID, false); derr != nil {
			log.Warn().Err(derr).Int64("sourceID", source.ID).Msg("failed to clear downloading flag")
		}
		return err
	}
}

func (w *SourceDownload) demoteWorse(ctx context.Context, source *models.QItemSource, log zerolog.Logger) error {
	cleared, err := w.sources.ClearLocalFilesWorseThan(ctx, source.QItemID, source.ID, strategies.WithManual(w.cfg.FindPriorities))
	if err != nil {
		return err
	}
	if len(cleared) > 0 {
		log.Info().
			Int64("qitemID", source.QItemID).
			Ints64("sourceIDs", cleared).
			Msg("cleared files of worse sources")
	}
	return nil
}

// banList tracks sources that failed temporarily. Entries expire on their
// own; active compacts the id slice against the cache so the SQL exclusion
// stays small. Each download loop owns one, so no locking.
type banList struct {
	cache *ttlcache.Cache[int64, struct{}]
	ids   []int64
}

func newBanList(ttl time.Duration) *banList {
	return &banList{
		cache: ttlcache.New(ttlcache.Options[int64, struct{}]{}.SetDefaultTTL(ttl)),
	}
}

func (b *banList) ban(id int64) {
	if _, banned := b.cache.Get(id); !banned {
		b.ids = append(b.ids, id)
	}
	b.cache.Set(id, struct{}{}, ttlcache.DefaultTTL)
}

func (b *banList) active() []int64 {
	live := b.ids[:0]
	for _, id := range b.ids {
		if _, banned := b.cache.Get(id); banned {
			live = append(live, id)
		}
	}
	b.ids = live
	return live
}
