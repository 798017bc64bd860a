// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/buildinfo"
)

// configPath is the --config value, shared by every subcommand.
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "hanyuu",
		Short:         "Anime music quiz content pipeline",
		Long:          "hanyuu builds anime music quiz videos: it finds opening and ending sources,\ndownloads them, renders guess-and-reveal parts and assembles quizzes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.Version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml or the directory holding it")

	rootCmd.AddCommand(
		RunWorkerCommand(),
		RunQuizCommand(),
		RunCleanupCommand(),
		RunAODCommand(),
		RunSeedCommand(),
		RunConfigCommand(),
		RunVersionCommand(),
	)

	// Workers treat cancellation as a clean stop, so a signal exits 0.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// RunVersionCommand prints the build stamp.
func RunVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Print(buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
