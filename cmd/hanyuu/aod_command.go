// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/aod"
	"github.com/mozhaa/hanyuu/internal/models"
)

// RunAODCommand manages the anime-offline-database mirror the find
// strategies match against.
func RunAODCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aod",
		Short: "Anime offline database operations",
	}

	cmd.AddCommand(runAODUpdateCommand())
	return cmd
}

func runAODUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh the anime-offline-database mirror",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Config
			svc := aod.NewService(models.NewAODAnimeStore(a.db), newFetchClient(cfg), cfg, log.Logger)
			return svc.Update(cmd.Context())
		},
	}
}
