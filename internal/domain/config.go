// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version string

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// ResourcesDir holds everything the pipeline produces (videos, worker
	// state, worker logs). StaticDir holds bundled assets (fonts, overlays,
	// countdown clips).
	ResourcesDir string `toml:"resourcesDir" mapstructure:"resourcesDir"`
	StaticDir    string `toml:"staticDir" mapstructure:"staticDir"`

	DatabaseEngine          string `toml:"databaseEngine" mapstructure:"databaseEngine"`
	DatabasePath            string `toml:"databasePath" mapstructure:"databasePath"`
	DatabaseDSN             string `toml:"databaseDsn" mapstructure:"databaseDsn"`
	DatabaseHost            string `toml:"databaseHost" mapstructure:"databaseHost"`
	DatabasePort            int    `toml:"databasePort" mapstructure:"databasePort"`
	DatabaseUser            string `toml:"databaseUser" mapstructure:"databaseUser"`
	DatabasePassword        string `toml:"databasePassword" mapstructure:"databasePassword"`
	DatabaseName            string `toml:"databaseName" mapstructure:"databaseName"`
	DatabaseSSLMode         string `toml:"databaseSslMode" mapstructure:"databaseSslMode"`
	DatabaseConnectTimeout  int    `toml:"databaseConnectTimeout" mapstructure:"databaseConnectTimeout"`
	DatabaseMaxOpenConns    int    `toml:"databaseMaxOpenConns" mapstructure:"databaseMaxOpenConns"`
	DatabaseMaxIdleConns    int    `toml:"databaseMaxIdleConns" mapstructure:"databaseMaxIdleConns"`
	DatabaseConnMaxLifetime int    `toml:"databaseConnMaxLifetime" mapstructure:"databaseConnMaxLifetime"`

	QbitHost     string `toml:"qbitHost" mapstructure:"qbitHost"`
	QbitUsername string `toml:"qbitUsername" mapstructure:"qbitUsername"`
	QbitPassword string `toml:"qbitPassword" mapstructure:"qbitPassword"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// Strategy priority order, best first. The implicit "manual"
	// pseudo-strategy always outranks all of these.
	FindPriorities       []string `toml:"findPriorities" mapstructure:"findPriorities"`
	TimingPriorities     []string `toml:"timingPriorities" mapstructure:"timingPriorities"`
	DifficultyPriorities []string `toml:"difficultyPriorities" mapstructure:"difficultyPriorities"`

	// Video search scoring knobs.
	VideosearchResults    int      `toml:"videosearchResults" mapstructure:"videosearchResults"`
	VideosearchThreshold  float64  `toml:"videosearchThreshold" mapstructure:"videosearchThreshold"`
	ExpectedDurations     []int    `toml:"expectedDurations" mapstructure:"expectedDurations"`
	SearchHelpers         []string `toml:"searchHelpers" mapstructure:"searchHelpers"`
	NegativeSearchHelpers []string `toml:"negativeSearchHelpers" mapstructure:"negativeSearchHelpers"`

	AnitousenTorrentPath string  `toml:"anitousenTorrentPath" mapstructure:"anitousenTorrentPath"`
	AnitousenThreshold   float64 `toml:"anitousenThreshold" mapstructure:"anitousenThreshold"`

	YtdlpCookiesFromBrowser string `toml:"ytdlpCookiesFromBrowser" mapstructure:"ytdlpCookiesFromBrowser"`

	FfmpegPath      string `toml:"ffmpegPath" mapstructure:"ffmpegPath"`
	FfprobePath     string `toml:"ffprobePath" mapstructure:"ffprobePath"`
	FfmpegExtraArgs string `toml:"ffmpegExtraArgs" mapstructure:"ffmpegExtraArgs"`
	AODDatabaseURL  string `toml:"aodDatabaseUrl" mapstructure:"aodDatabaseUrl"`
	AODCacheEnabled bool   `toml:"aodCacheEnabled" mapstructure:"aodCacheEnabled"`
}

// VideosDir is the root for all produced media.
func (c *Config) VideosDir() string {
	return filepath.Join(c.ResourcesDir, "videos")
}

// SourcesDir holds downloaded source videos, one subdirectory per backend.
func (c *Config) SourcesDir() string {
	return filepath.Join(c.VideosDir(), "sources")
}

// QuizPartsDir holds rendered quiz parts, named <quiz part id>.mkv.
func (c *Config) QuizPartsDir() string {
	return filepath.Join(c.VideosDir(), "quizparts")
}

// QuizDir holds assembled quiz videos.
func (c *Config) QuizDir() string {
	return filepath.Join(c.VideosDir(), "quiz")
}

// WorkerDir is the state directory of one worker stage, e.g.
// workers/source/find.
func (c *Config) WorkerDir(stage ...string) string {
	parts := append([]string{c.ResourcesDir, "workers"}, stage...)
	return filepath.Join(parts...)
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DatabaseEngine)) {
	case "", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("invalid databaseEngine %q: must be sqlite or postgres", c.DatabaseEngine)
	}

	if c.MetricsEnabled {
		if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
			return fmt.Errorf("invalid metricsPort %d", c.MetricsPort)
		}
	}

	for _, d := range c.ExpectedDurations {
		if d <= 0 {
			return fmt.Errorf("invalid expectedDurations entry %d: must be positive seconds", d)
		}
	}

	if c.VideosearchThreshold < 0 || c.VideosearchThreshold > 1 {
		return fmt.Errorf("invalid videosearchThreshold %v: must be within [0, 1]", c.VideosearchThreshold)
	}
	if c.AnitousenThreshold < 0 || c.AnitousenThreshold > 2 {
		return fmt.Errorf("invalid anitousenThreshold %v", c.AnitousenThreshold)
	}

	return nil
}
