// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package download holds the per-platform backends that turn a found
// QItemSource into a playable file on disk. Local and yt-dlp sources are
// done when Download returns; torrent sources only get queued in
// qBittorrent here and are finalized later by the reconciler.
package download

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/ffprobe"
	"github.com/mozhaa/hanyuu/internal/fetch"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/qbittorrent"
	"github.com/mozhaa/hanyuu/internal/ytdlp"
)

// Backend downloads sources of one platform. Download either finishes the
// job (local_fp set) or hands it off (torrent), and reports failures
// through the shared taxonomy: InvalidSourceError poisons the row forever,
// TemporaryFailureError gets the row banned for a while, anything else
// propagates to the worker loop.
type Backend interface {
	Name() string
	Platform() string
	// Deferred reports whether a successful Download only queued the fetch,
	// leaving local_fp (and the downloading flag) to the reconciler.
	Deferred() bool
	Download(ctx context.Context, source *models.QItemSource) error
}

// MediaProber reports minimal stream facts about a local file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (ffprobe.MediaInfo, error)
}

// Deps bundles what the backends need. Qbit and Prober may be nil when the
// worker runs a subset of platforms.
type Deps struct {
	Sources *models.QItemSourceStore
	Qbit    *qbittorrent.Client
	Fetch   *fetch.Client
	Prober  MediaProber
	Ytdlp   *ytdlp.Client
	Config  *domain.Config
	Log     zerolog.Logger
}

// Registry builds all backends keyed by the platform they serve.
func Registry(deps Deps) map[string]Backend {
	return map[string]Backend{
		models.PlatformLocal:   NewLocal(deps),
		models.PlatformYtdlp:   NewYtdlp(deps),
		models.PlatformTorrent: NewTorrent(deps),
	}
}

// InFlight is one torrent file the pipeline is waiting on qBittorrent to
// finish downloading.
type InFlight struct {
	InfoHash string    `json:"infohash"`
	Name     string    `json:"name"`
	SourceID int64     `json:"qitem_source_id"`
	AddedOn  time.Time `json:"added_on"`
}

// InFlightListPath is where the torrent backend and the reconciler meet.
func InFlightListPath(cfg *domain.Config) string {
	return filepath.Join(cfg.WorkerDir("source", "download", "torrent"), "downloading_torrents.json")
}
