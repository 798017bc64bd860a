// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mozhaa/hanyuu/internal/config"
)

// RunConfigCommand edits the config file in place.
func RunConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Edit the config file",
	}

	cmd.AddCommand(runConfigLogLevelCommand())
	return cmd
}

func runConfigLogLevelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "loglevel LEVEL",
		Short: "Persist a new log level in the config file",
		Long: "Persist a new log level (TRACE, DEBUG, INFO, WARN or ERROR) in the\n" +
			"config file. Running workers watch the file and apply the change\n" +
			"without a restart.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := strings.ToUpper(strings.TrimSpace(args[0]))
			switch level {
			case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
			default:
				return errors.Errorf("unknown log level %q", args[0])
			}

			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}

			cfg.Config.LogLevel = level
			if err := cfg.UpdateConfig(); err != nil {
				return err
			}

			cmd.Printf("logLevel = %q written to %s\n", level, cfg.ConfigFileUsed())
			return nil
		},
	}
}
