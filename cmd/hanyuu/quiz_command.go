// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/workers"
)

// RunQuizCommand assembles one quiz video out of rendered parts.
func RunQuizCommand() *cobra.Command {
	var (
		count                int
		output               string
		picker               string
		memorySize           int
		styles               []string
		timingStrategies     []string
		difficultyStrategies []string
		sourceStrategies     []string
		animeIDs             []int64
		category             string
	)

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Assemble a quiz video from rendered parts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			filter := models.QuizFilter{
				AnimeIDs:             animeIDs,
				SourceStrategies:     sourceStrategies,
				TimingStrategies:     timingStrategies,
				DifficultyStrategies: difficultyStrategies,
				Styles:               styles,
			}
			if category != "" {
				parsed, err := models.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = parsed
			}

			w := workers.NewQuiz(workers.QuizOptions{
				Count:      count,
				Output:     output,
				Picker:     picker,
				MemorySize: memorySize,
				Filter:     filter,
			}, models.NewQuizPartStore(a.db), a.cfg.Config, log.Logger)

			outputFP, err := w.Run(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(outputFP)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "How many parts the quiz holds (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file name under the quiz directory (default: timestamp)")
	cmd.Flags().StringVarP(&picker, "picker", "r", workers.PickerSimple, "Sampling mode: simple or memory")
	cmd.Flags().IntVarP(&memorySize, "memory-size", "M", 10, "How many recent picks the memory picker avoids")
	cmd.Flags().StringSliceVarP(&styles, "styles", "S", nil, "Pick only parts in these styles")
	cmd.Flags().StringSliceVarP(&timingStrategies, "timing-strategies", "t", nil, "Pick only parts timed by these strategies")
	cmd.Flags().StringSliceVarP(&difficultyStrategies, "difficulty-strategies", "d", nil, "Pick only parts graded by these strategies")
	cmd.Flags().StringSliceVarP(&sourceStrategies, "source-strategies", "s", nil, "Pick only parts whose source was added by these strategies")
	cmd.Flags().Int64SliceVarP(&animeIDs, "anime", "a", nil, "Pick only these anime (MyAnimeList ids)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Pick only this category (op, ed)")
	_ = cmd.MarkFlagRequired("count")

	return cmd
}
