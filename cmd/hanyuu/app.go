// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mozhaa/hanyuu/internal/config"
	"github.com/mozhaa/hanyuu/internal/database"
	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/fetch"
	"github.com/mozhaa/hanyuu/internal/ffprobe"
	"github.com/mozhaa/hanyuu/internal/logger"
	"github.com/mozhaa/hanyuu/internal/metrics"
	"github.com/mozhaa/hanyuu/internal/strategies/download"
	"github.com/mozhaa/hanyuu/pkg/memocache"
)

// app bundles what every subcommand needs once the config is loaded.
type app struct {
	cfg     *config.AppConfig
	db      *database.DB
	metrics *metrics.Manager
}

// openApp loads the configuration, wires the global logger and opens the
// database. A non-empty stage adds a rotating log file under that worker's
// state directory, e.g. openApp("source", "find") logs to
// workers/source/find/.log next to the worker's list files.
func openApp(stage ...string) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}

	logFile := ""
	if len(stage) > 0 {
		logFile = filepath.Join(cfg.Config.WorkerDir(stage...), ".log")
	}
	logger.Setup(cfg.Config, logFile)
	cfg.DynamicReload(logger.SetLogLevel)

	db, err := database.OpenFromConfig(cfg.Config, cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		db:      db,
		metrics: metrics.NewManager(download.InFlightListPath(cfg.Config)),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}

// serveMetrics starts the /metrics listener when enabled. The returned stop
// function is safe to call either way.
func (a *app) serveMetrics() func() {
	if !a.cfg.Config.MetricsEnabled {
		return func() {}
	}

	srv := metrics.NewServer(a.metrics, a.cfg.Config.MetricsHost, a.cfg.Config.MetricsPort, a.cfg.Config.MetricsBasicAuthUsers)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return func() { _ = srv.Stop() }
}

// seconds converts a float seconds flag into a duration, so operators can
// write -d 0.5.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// newFetchClient builds the catalog HTTP client, memoized through the page
// cache under the resources directory. A broken cache degrades to plain
// uncached fetching rather than blocking the worker.
func newFetchClient(cfg *domain.Config) *fetch.Client {
	if err := os.MkdirAll(cfg.ResourcesDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("page cache unavailable, fetching uncached")
		return fetch.New()
	}
	cache, err := memocache.Open(filepath.Join(cfg.ResourcesDir, "webcache.sqlite3"))
	if err != nil {
		log.Warn().Err(err).Msg("page cache unavailable, fetching uncached")
		return fetch.New()
	}
	return fetch.New(fetch.WithCache(cache))
}

func newProber(cfg *domain.Config) *ffprobe.Prober {
	return ffprobe.New(cfg.FfprobePath)
}
