// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/mozhaa/hanyuu/internal/domain"
)

const envPrefix = "HANYUU__"

// AppConfig wraps the parsed configuration together with the viper
// instance that produced it, so log settings can be hot-reloaded and
// persisted back to the same file.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
	m     sync.Mutex
}

// New loads the configuration from configPath. The path may name a
// config.toml file or a directory containing one; an empty path falls
// back to the default config directory. A commented template is written
// on first run. Environment variables with the HANYUU__ prefix override
// file values.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)

	c.viper.SetDefault("resourcesDir", "")
	c.viper.SetDefault("staticDir", "")

	c.viper.SetDefault("databaseEngine", "sqlite")
	c.viper.SetDefault("databasePath", "")
	c.viper.SetDefault("databaseDsn", "")
	c.viper.SetDefault("databaseHost", "")
	c.viper.SetDefault("databasePort", 5432)
	c.viper.SetDefault("databaseUser", "")
	c.viper.SetDefault("databasePassword", "")
	c.viper.SetDefault("databaseName", "")
	c.viper.SetDefault("databaseSslMode", "disable")
	c.viper.SetDefault("databaseConnectTimeout", 10)
	c.viper.SetDefault("databaseMaxOpenConns", 10)
	c.viper.SetDefault("databaseMaxIdleConns", 5)
	c.viper.SetDefault("databaseConnMaxLifetime", 1800)

	c.viper.SetDefault("qbitHost", "http://localhost:8080")
	c.viper.SetDefault("qbitUsername", "")
	c.viper.SetDefault("qbitPassword", "")

	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
	c.viper.SetDefault("metricsBasicAuthUsers", "")

	c.viper.SetDefault("findPriorities", []string{"attachments", "anitousen", "videosearch"})
	c.viper.SetDefault("timingPriorities", []string{"default", "random"})
	c.viper.SetDefault("difficultyPriorities", []string{"random"})

	c.viper.SetDefault("videosearchResults", 10)
	c.viper.SetDefault("videosearchThreshold", 0.7)
	c.viper.SetDefault("expectedDurations", []int{90, 150})
	c.viper.SetDefault("searchHelpers", []string{"Creditless", "4K", "HD", "1080p"})
	c.viper.SetDefault("negativeSearchHelpers", []string{"Cover", "AMV", "Full", "Lyrics"})

	c.viper.SetDefault("anitousenTorrentPath", "")
	c.viper.SetDefault("anitousenThreshold", 0.8)

	c.viper.SetDefault("ytdlpCookiesFromBrowser", "")

	c.viper.SetDefault("ffmpegPath", "ffmpeg")
	c.viper.SetDefault("ffprobePath", "ffprobe")
	c.viper.SetDefault("ffmpegExtraArgs", "")

	c.viper.SetDefault("aodDatabaseUrl", "https://raw.githubusercontent.com/manami-project/anime-offline-database/master/anime-offline-database-minified.json")
	c.viper.SetDefault("aodCacheEnabled", true)
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	configFile, err := resolveConfigFile(configPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(configFile); err != nil {
			return errors.Wrap(err, "failed to write default config file")
		}
	}

	c.viper.SetConfigFile(configFile)

	if err := c.viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	c.bindEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}

	c.applyPathDefaults(filepath.Dir(configFile))

	return nil
}

// bindEnv maps every known key to its HANYUU__ environment variable,
// e.g. databaseSslMode to HANYUU__DATABASE_SSL_MODE.
func (c *AppConfig) bindEnv() {
	for _, key := range configKeys {
		_ = c.viper.BindEnv(key, envName(key))
	}
}

// configKeys lists the canonical camelCase key names. viper folds keys
// to lower case internally, so the camelCase spelling has to be kept
// here to derive the snake_case environment names.
var configKeys = []string{
	"logLevel", "logPath", "logMaxSize", "logMaxBackups",
	"resourcesDir", "staticDir",
	"databaseEngine", "databasePath", "databaseDsn",
	"databaseHost", "databasePort", "databaseUser", "databasePassword",
	"databaseName", "databaseSslMode", "databaseConnectTimeout",
	"databaseMaxOpenConns", "databaseMaxIdleConns", "databaseConnMaxLifetime",
	"qbitHost", "qbitUsername", "qbitPassword",
	"metricsEnabled", "metricsHost", "metricsPort", "metricsBasicAuthUsers",
	"findPriorities", "timingPriorities", "difficultyPriorities",
	"videosearchResults", "videosearchThreshold", "expectedDurations",
	"searchHelpers", "negativeSearchHelpers",
	"anitousenTorrentPath", "anitousenThreshold",
	"ytdlpCookiesFromBrowser",
	"ffmpegPath", "ffprobePath", "ffmpegExtraArgs",
	"aodDatabaseUrl", "aodCacheEnabled",
}

func envName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return envPrefix + b.String()
}

// applyPathDefaults fills path settings that default relative to the
// config file location.
func (c *AppConfig) applyPathDefaults(configDir string) {
	if c.Config.ResourcesDir == "" {
		c.Config.ResourcesDir = filepath.Join(configDir, "resources")
	}
	if c.Config.StaticDir == "" {
		c.Config.StaticDir = filepath.Join(configDir, "static")
	}
	if c.Config.AnitousenTorrentPath == "" {
		c.Config.AnitousenTorrentPath = filepath.Join(c.Config.StaticDir, "anitousen.torrent")
	}
}

func resolveConfigFile(configPath string) (string, error) {
	if configPath == "" {
		return filepath.Join(getDefaultConfigDir(), "config.toml"), nil
	}

	if strings.HasSuffix(configPath, ".toml") {
		return configPath, nil
	}

	info, err := os.Stat(configPath)
	if err == nil && info.IsDir() {
		return filepath.Join(configPath, "config.toml"), nil
	}
	if err == nil {
		// An existing file without the .toml suffix is still a config file.
		return configPath, nil
	}

	return filepath.Join(configPath, "config.toml"), nil
}

// getDefaultConfigDir returns the directory used when no --config flag
// is given. XDG_CONFIG_HOME=/config (the Docker convention) is used
// directly; any other XDG_CONFIG_HOME gets a hanyuu subdirectory.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "hanyuu")
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hanyuu")
	}

	return "."
}

// GetDatabasePath returns the SQLite database location: the configured
// databasePath when set (config file or HANYUU__DATABASE_PATH), else
// hanyuu.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}

	configDir := filepath.Dir(c.viper.ConfigFileUsed())
	return filepath.Join(configDir, "hanyuu.db")
}

// ConfigFileUsed returns the path of the loaded config file.
func (c *AppConfig) ConfigFileUsed() string {
	return c.viper.ConfigFileUsed()
}

// DynamicReload re-reads the log settings whenever the config file
// changes on disk and hands the new level to apply.
func (c *AppConfig) DynamicReload(apply func(logLevel string)) {
	c.viper.OnConfigChange(func(_ fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		logLevel := c.viper.GetString("logLevel")
		c.Config.LogLevel = logLevel
		if apply != nil {
			apply(logLevel)
		}

		log.Debug().Str("logLevel", logLevel).Msg("config file reloaded")
	})

	c.viper.WatchConfig()
}

func (c *AppConfig) writeDefaultConfig(configFile string) error {
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return err
	}

	f, err := os.Create(configFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(defaultConfigTemplate); err != nil {
		return err
	}

	log.Info().Str("path", configFile).Msg("wrote default config file")

	return nil
}

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stderr only
# Optional
#logPath = "log/hanyuu.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Resources directory
# Holds produced videos and worker state
# Default: "resources" next to this file
#resourcesDir = ""

# Static assets directory (fonts, overlays, countdown clips)
# Default: "static" next to this file
#staticDir = ""

# Database engine
# Default: "sqlite"
# Options: "sqlite", "postgres"
databaseEngine = "sqlite"

# SQLite database path
# Default: "hanyuu.db" next to this file
#databasePath = ""

# Postgres connection, used when databaseEngine = "postgres".
# Either a full DSN or the individual parts.
#databaseDsn = ""
#databaseHost = "localhost"
#databasePort = 5432
#databaseUser = ""
#databasePassword = ""
#databaseName = "hanyuu"
#databaseSslMode = "disable"

# qBittorrent connection for the torrent download backend
#qbitHost = "http://localhost:8080"
#qbitUsername = ""
#qbitPassword = ""

# Prometheus metrics listener
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Comma-separated user:bcryptHash pairs
#metricsBasicAuthUsers = ""

# Strategy priority order, best first.
# Manual entries always outrank every strategy.
#findPriorities = ["attachments", "anitousen", "videosearch"]
#timingPriorities = ["default", "random"]
#difficultyPriorities = ["random"]

# Video search tuning
#videosearchResults = 10
#videosearchThreshold = 0.7
#expectedDurations = [90, 150]
#searchHelpers = ["Creditless", "4K", "HD", "1080p"]
#negativeSearchHelpers = ["Cover", "AMV", "Full", "Lyrics"]

# AniTousen torrent pack
# Default: "anitousen.torrent" under staticDir
#anitousenTorrentPath = ""
#anitousenThreshold = 0.8

# Browser to take yt-dlp cookies from (see yt-dlp --cookies-from-browser)
#ytdlpCookiesFromBrowser = ""

# External tools
#ffmpegPath = "ffmpeg"
#ffprobePath = "ffprobe"
# Extra arguments appended to every ffmpeg invocation, shell-quoted
#ffmpegExtraArgs = ""

# anime-offline-database source for the aod update command
#aodDatabaseUrl = "https://raw.githubusercontent.com/manami-project/anime-offline-database/master/anime-offline-database-minified.json"
#aodCacheEnabled = true
`
