// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies"
)

// RunSeedCommand inserts operator-curated rows. Everything seeded here is
// recorded with added_by = "manual" and outranks strategy output in every
// priority decision.
func RunSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert manual pipeline rows",
	}

	cmd.AddCommand(
		runSeedAnimeCommand(),
		runSeedQItemCommand(),
		runSeedSourceCommand(),
		runSeedTimingCommand(),
		runSeedDifficultyCommand(),
	)
	return cmd
}

func runSeedAnimeCommand() *cobra.Command {
	var (
		malID   int64
		anidbID int64
		titleRo string
		titleEn string
		titleRu string
		titleJp string
	)

	cmd := &cobra.Command{
		Use:   "anime",
		Short: "Add an anime to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			anime, err := models.NewAnimeStore(a.db).Create(cmd.Context(), &models.Anime{
				MalID:   malID,
				AnidbID: anidbID,
				TitleRo: titleRo,
				TitleEn: titleEn,
				TitleRu: titleRu,
				TitleJp: titleJp,
			})
			if err != nil {
				return err
			}
			cmd.Printf("anime %d created\n", anime.MalID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&malID, "mal-id", 0, "MyAnimeList id (required)")
	cmd.Flags().Int64Var(&anidbID, "anidb-id", 0, "AniDB id (required)")
	cmd.Flags().StringVar(&titleRo, "title-ro", "", "Romaji title (required)")
	cmd.Flags().StringVar(&titleEn, "title-en", "", "English title")
	cmd.Flags().StringVar(&titleRu, "title-ru", "", "Russian title")
	cmd.Flags().StringVar(&titleJp, "title-jp", "", "Japanese title")
	_ = cmd.MarkFlagRequired("mal-id")
	_ = cmd.MarkFlagRequired("anidb-id")
	_ = cmd.MarkFlagRequired("title-ro")

	return cmd
}

func runSeedQItemCommand() *cobra.Command {
	var (
		animeID    int64
		category   string
		number     int
		songArtist string
		songName   string
	)

	cmd := &cobra.Command{
		Use:   "qitem",
		Short: "Add an opening or ending to quiz on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := models.ParseCategory(category)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			qitem, err := models.NewQItemStore(a.db).Create(cmd.Context(), &models.QItem{
				AnimeID:    animeID,
				Category:   parsed,
				Number:     number,
				SongArtist: songArtist,
				SongName:   songName,
			})
			if err != nil {
				return err
			}
			cmd.Printf("qitem %d created\n", qitem.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&animeID, "anime", 0, "Anime MyAnimeList id (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category: op or ed (required)")
	cmd.Flags().IntVarP(&number, "number", "n", 1, "Opening/ending number within the anime")
	cmd.Flags().StringVar(&songArtist, "song-artist", "", "Song artist")
	cmd.Flags().StringVar(&songName, "song-name", "", "Song name")
	_ = cmd.MarkFlagRequired("anime")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runSeedSourceCommand() *cobra.Command {
	var (
		qitemID        int64
		platform       string
		path           string
		additionalPath string
	)

	cmd := &cobra.Command{
		Use:   "source",
		Short: "Add a place a qitem's video can be obtained from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch platform {
			case models.PlatformLocal, models.PlatformYtdlp, models.PlatformTorrent:
			default:
				return errors.Errorf("unknown platform %q", platform)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := models.NewQItemSourceStore(a.db).Create(cmd.Context(), &models.QItemSource{
				QItemID:        qitemID,
				Platform:       platform,
				Path:           path,
				AdditionalPath: additionalPath,
				AddedBy:        strategies.ManualName,
			})
			if err != nil {
				return err
			}
			cmd.Printf("source %d created\n", source.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&qitemID, "qitem", 0, "QItem id (required)")
	cmd.Flags().StringVarP(&platform, "platform", "p", models.PlatformYtdlp, "Platform: local, yt-dlp or torrent")
	cmd.Flags().StringVar(&path, "path", "", "Video URL, file path or torrent (required)")
	cmd.Flags().StringVar(&additionalPath, "additional-path", "", "File name inside the torrent")
	_ = cmd.MarkFlagRequired("qitem")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func runSeedTimingCommand() *cobra.Command {
	var (
		sourceID    int64
		guessStart  string
		revealStart string
	)

	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Pin guess and reveal positions for a source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, clock := range []string{guessStart, revealStart} {
				if _, err := models.ParseClock(clock); err != nil {
					return err
				}
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			timing, err := models.NewQItemSourceTimingStore(a.db).Create(cmd.Context(), &models.QItemSourceTiming{
				QItemSourceID: sourceID,
				GuessStart:    guessStart,
				RevealStart:   revealStart,
				AddedBy:       strategies.ManualName,
			})
			if err != nil {
				return err
			}
			cmd.Printf("timing %d created\n", timing.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Source id (required)")
	cmd.Flags().StringVar(&guessStart, "guess-start", "", "Guess segment start, HH:MM:SS (required)")
	cmd.Flags().StringVar(&revealStart, "reveal-start", "", "Reveal segment start, HH:MM:SS (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("guess-start")
	_ = cmd.MarkFlagRequired("reveal-start")

	return cmd
}

func runSeedDifficultyCommand() *cobra.Command {
	var (
		qitemID int64
		value   int
	)

	cmd := &cobra.Command{
		Use:   "difficulty",
		Short: "Grade a qitem by hand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if value < 0 || value > 100 {
				return errors.Errorf("difficulty %d out of range [0, 100]", value)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			difficulty, err := models.NewQItemDifficultyStore(a.db).Create(cmd.Context(), &models.QItemDifficulty{
				QItemID: qitemID,
				Value:   value,
				AddedBy: strategies.ManualName,
			})
			if err != nil {
				return err
			}
			cmd.Printf("difficulty %d created\n", difficulty.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&qitemID, "qitem", 0, "QItem id (required)")
	cmd.Flags().IntVar(&value, "value", 0, "Difficulty 0 (trivial) to 100 (required)")
	_ = cmd.MarkFlagRequired("qitem")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
