// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/qbittorrent"
	"github.com/mozhaa/hanyuu/internal/strategies/difficulty"
	"github.com/mozhaa/hanyuu/internal/strategies/download"
	"github.com/mozhaa/hanyuu/internal/strategies/find"
	"github.com/mozhaa/hanyuu/internal/strategies/timing"
	"github.com/mozhaa/hanyuu/internal/video"
	"github.com/mozhaa/hanyuu/internal/workers"
	"github.com/mozhaa/hanyuu/internal/ytdlp"
)

// RunWorkerCommand groups the long-running pipeline loops. Every worker
// stops cleanly on SIGINT/SIGTERM and exits 0.
func RunWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Long-running pipeline workers",
	}

	cmd.AddCommand(
		runWorkerSourceFindCommand(),
		runWorkerSourceDownloadCommand(),
		runWorkerTorrentWatchCommand(),
		runWorkerTimingCommand(),
		runWorkerDifficultyCommand(),
		runWorkerQuizPartCommand(),
	)
	return cmd
}

func runWorkerSourceFindCommand() *cobra.Command {
	var (
		maxNoFetch float64
		wait       float64
		delay      float64
		strategies []string
	)

	cmd := &cobra.Command{
		Use:   "sourcefind",
		Short: "Discover where each qitem's video can be obtained",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp("source", "find")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			qitems := models.NewQItemStore(a.db)
			finders, err := find.Registry(find.Deps{
				QItems:  qitems,
				Animes:  models.NewAnimeStore(a.db),
				Sources: models.NewQItemSourceStore(a.db),
				AOD:     models.NewAODAnimeStore(a.db),
				Search:  ytdlp.New(log.Logger, cfg.YtdlpCookiesFromBrowser),
				Config:  cfg,
			}, strategies)
			if err != nil {
				return err
			}

			w := workers.NewSourceFind(workers.SourceFindOptions{
				MaxNoFetch: seconds(maxNoFetch),
				Wait:       seconds(wait),
				Delay:      seconds(delay),
			}, qitems, finders, a.metrics, cfg, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&maxNoFetch, "max-no-fetch", "m", 20, "Seconds a candidate batch may age before a refetch")
	cmd.Flags().Float64VarP(&wait, "wait", "w", 10, "Idle sleep in seconds when nothing is pending")
	cmd.Flags().Float64VarP(&delay, "delay", "d", 0.5, "Stagger between strategy loop starts in seconds")
	cmd.Flags().StringSliceVarP(&strategies, "strategies", "s", nil, "Run only these find strategies (default: all configured)")

	return cmd
}

func runWorkerSourceDownloadCommand() *cobra.Command {
	var (
		interval    float64
		banDuration float64
		platforms   []string
		keepWorse   bool
	)

	cmd := &cobra.Command{
		Use:   "sourcedl",
		Short: "Download pending sources, best candidate first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp("source", "download")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			log.Debug().
				Str("host", cfg.QbitHost).
				Str("username", cfg.QbitUsername).
				Str("password", domain.RedactString(cfg.QbitPassword)).
				Msg("qbittorrent credentials loaded")

			sources := models.NewQItemSourceStore(a.db)
			registry := download.Registry(download.Deps{
				Sources: sources,
				Qbit:    qbittorrent.NewClient(cfg),
				Fetch:   newFetchClient(cfg),
				Prober:  newProber(cfg),
				Ytdlp:   ytdlp.New(log.Logger, cfg.YtdlpCookiesFromBrowser),
				Config:  cfg,
				Log:     log.Logger,
			})

			var backends []download.Backend
			for _, platform := range []string{models.PlatformLocal, models.PlatformYtdlp, models.PlatformTorrent} {
				if len(platforms) > 0 && !slices.Contains(platforms, platform) {
					continue
				}
				backends = append(backends, registry[platform])
			}
			if len(backends) == 0 {
				return errors.Errorf("no backends match platforms %v", platforms)
			}

			w := workers.NewSourceDownload(workers.SourceDownloadOptions{
				Interval:    seconds(interval),
				BanDuration: seconds(banDuration),
				KeepWorse:   keepWorse,
			}, sources, backends, a.metrics, cfg, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "t", 5, "Seconds between download attempts per platform")
	cmd.Flags().Float64VarP(&banDuration, "ban-duration", "b", 3600, "Seconds a source sits out after a temporary failure")
	cmd.Flags().StringSliceVarP(&platforms, "platform", "p", nil, "Serve only these platforms (local, yt-dlp, torrent)")
	cmd.Flags().BoolVarP(&keepWorse, "keep-worse", "k", false, "Keep files of worse sources after a better download")

	return cmd
}

func runWorkerTorrentWatchCommand() *cobra.Command {
	var interval float64

	cmd := &cobra.Command{
		Use:   "torrentwatch",
		Short: "Reconcile queued torrents with qBittorrent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp("torrentwatch")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			w := workers.NewTorrentWatch(seconds(interval), models.NewQItemSourceStore(a.db), qbittorrent.NewClient(cfg), a.metrics, cfg, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "t", 15, "Seconds between reconciliation passes")

	return cmd
}

func runWorkerTimingCommand() *cobra.Command {
	var interval float64

	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Predict guess and reveal timings for downloaded sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp("timing")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			strats, err := timing.Registry(timing.Deps{
				Timings: models.NewQItemSourceTimingStore(a.db),
				Config:  cfg,
			})
			if err != nil {
				return err
			}

			w := workers.NewTiming(seconds(interval), models.NewQItemSourceStore(a.db), strats, a.metrics, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "t", 0, "Seconds between timing predictions")

	return cmd
}

func runWorkerDifficultyCommand() *cobra.Command {
	var interval float64

	cmd := &cobra.Command{
		Use:   "difficulty",
		Short: "Grade how hard each qitem is to guess",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp("difficulty")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			strats, err := difficulty.Registry(difficulty.Deps{
				Difficulties: models.NewQItemDifficultyStore(a.db),
				Config:       cfg,
			})
			if err != nil {
				return err
			}

			w := workers.NewDifficulty(seconds(interval), models.NewQItemStore(a.db), strats, a.metrics, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "t", 0, "Seconds between difficulty gradings")

	return cmd
}

func runWorkerQuizPartCommand() *cobra.Command {
	var (
		interval         float64
		keepWorse        bool
		category         string
		animeIDs         []int64
		sourceStrategies []string
	)

	cmd := &cobra.Command{
		Use:       "quizpart <style>",
		Short:     "Render quiz parts in the given style",
		Args:      cobra.ExactArgs(1),
		ValidArgs: video.StyleNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp("quizpart")
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics()()

			cfg := a.cfg.Config
			filter, err := partFilter(category, animeIDs, sourceStrategies)
			if err != nil {
				return err
			}

			maker, err := video.ByName(video.Deps{
				Timings:      models.NewQItemSourceTimingStore(a.db),
				Difficulties: models.NewQItemDifficultyStore(a.db),
				Sources:      models.NewQItemSourceStore(a.db),
				QItems:       models.NewQItemStore(a.db),
				Animes:       models.NewAnimeStore(a.db),
				Fetch:        newFetchClient(cfg),
				Config:       cfg,
				Log:          log.Logger,
			}, args[0])
			if err != nil {
				return err
			}

			w := workers.NewQuizPart(workers.QuizPartOptions{
				Interval:  seconds(interval),
				KeepWorse: keepWorse,
				Filter:    filter,
			}, models.NewQuizPartStore(a.db), maker, a.metrics, cfg, log.Logger)
			return w.Start(cmd.Context())
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "t", 10, "Seconds between render attempts")
	cmd.Flags().BoolVarP(&keepWorse, "keep-worse", "k", false, "Keep quiz parts of demoted (difficulty, timing) pairs")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Render only this category (op, ed)")
	cmd.Flags().Int64SliceVarP(&animeIDs, "anime", "a", nil, "Render only these anime (MyAnimeList ids)")
	cmd.Flags().StringSliceVarP(&sourceStrategies, "source-strategies", "s", nil, "Render only sources added by these strategies")

	return cmd
}

// partFilter builds the render restriction from the shared flag triple.
func partFilter(category string, animeIDs []int64, sourceStrategies []string) (models.PartFilter, error) {
	filter := models.PartFilter{
		AnimeIDs:         animeIDs,
		SourceStrategies: sourceStrategies,
	}
	if category != "" {
		parsed, err := models.ParseCategory(category)
		if err != nil {
			return models.PartFilter{}, err
		}
		filter.Category = parsed
	}
	return filter, nil
}
