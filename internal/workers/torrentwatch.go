// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/qbittorrent"
	"github.com/mozhaa/hanyuu/internal/strategies/download"
	"github.com/mozhaa/hanyuu/pkg/filelist"
	"github.com/mozhaa/hanyuu/pkg/rategate"
)

// TorrentWatch reconciles the in-flight torrent list against qBittorrent.
// Finished files get their source row finalized, vanished torrents get
// dropped, everything else stays queued for the next look.
type TorrentWatch struct {
	interval time.Duration
	sources  *models.QItemSourceStore
	qbit     *qbittorrent.Client
	metrics  *metrics.Manager
	cfg      *domain.Config
	log      zerolog.Logger
}

func NewTorrentWatch(interval time.Duration, sources *models.QItemSourceStore, qbit *qbittorrent.Client, manager *metrics.Manager, cfg *domain.Config, log zerolog.Logger) *TorrentWatch {
	return &TorrentWatch{
		interval: interval,
		sources:  sources,
		qbit:     qbit,
		metrics:  manager,
		cfg:      cfg,
		log:      log.With().Str("worker", "torrentwatch").Logger(),
	}
}

// Start checks the in-flight list every interval until ctx is canceled.
func (w *TorrentWatch) Start(ctx context.Context) error {
	w.log.Info().Msg("starting torrent watcher")

	gate := rategate.New(w.interval, false)
	for ctx.Err() == nil {
		if err := gate.Do(ctx, w.cycle); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Warn().Err(err).Msg("torrent check failed")
		}
		w.metrics.CycleDone("torrentwatch")
	}
	return nil
}

func (w *TorrentWatch) cycle(ctx context.Context) error {
	path := download.InFlightListPath(w.cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create torrent worker dir")
	}

	list, err := filelist.JSON[download.InFlight](path)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = list.Close(false)
		}
	}()

	entries := list.Items()
	if len(entries) == 0 {
		return nil
	}

	torrents, err := w.qbit.TorrentsByHashes(ctx, uniqueHashes(entries))
	if err != nil {
		return err
	}

	// Pack torrents appear once per wanted file, no point refetching
	// their contents for every entry.
	filesByHash := make(map[string]*qbt.TorrentFiles)

	keep := make([]download.InFlight, 0, len(entries))
	for _, entry := range entries {
		hash := strings.ToLower(entry.InfoHash)

		torrent, registered := torrents[hash]
		if !registered {
			w.log.Warn().
				Str("infohash", entry.InfoHash).
				Str("file", entry.Name).
				Msg("torrent vanished from qbittorrent, dropping")
			continue
		}

		files := filesByHash[hash]
		if files == nil {
			files, err = w.qbit.Files(ctx, entry.InfoHash)
			if err != nil {
				return err
			}
			filesByHash[hash] = files
		}

		found, done := fileProgress(files, entry.Name)
		switch {
		case !found:
			w.log.Warn().
				Str("infohash", entry.InfoHash).
				Str("file", entry.Name).
				Msg("file missing from torrent contents, dropping")
		case done:
			localFP := relativeToCwd(filepath.Join(torrent.SavePath, filepath.FromSlash(entry.Name)))
			if err := w.sources.SetLocalFile(ctx, entry.SourceID, localFP); err != nil {
				return err
			}
			w.metrics.JobDone("torrentwatch", metrics.OutcomeOK)
			w.log.Info().
				Int64("sourceID", entry.SourceID).
				Str("file", localFP).
				Msg("torrent download finished")
		default:
			keep = append(keep, entry)
		}
	}

	list.Replace(keep)
	committed = true
	return list.Close(true)
}

func uniqueHashes(entries []download.InFlight) []string {
	seen := make(map[string]struct{}, len(entries))
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		h := strings.ToLower(e.InfoHash)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	return hashes
}

// fileProgress looks the entry's file up by its client-side name and
// reports whether it exists and whether it finished downloading.
func fileProgress(files *qbt.TorrentFiles, name string) (found, done bool) {
	for i := range *files {
		f := &(*files)[i]
		if f.Name != name {
			continue
		}
		return true, f.Progress == 1
	}
	return false, false
}
