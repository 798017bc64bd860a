// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/workers"
)

// RunCleanupCommand reconciles database rows with the files on disk.
func RunCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop rows whose files vanished and files no row references",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			w := workers.NewCleanup(models.NewQItemSourceStore(a.db), models.NewQuizPartStore(a.db), a.cfg.Config, log.Logger)
			return w.Run(cmd.Context())
		},
	}
}
