// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// UpdateConfig writes the current log settings back into the config
// file, editing the existing (possibly commented) keys in place.
func (c *AppConfig) UpdateConfig() error {
	c.m.Lock()
	defer c.m.Unlock()

	configFile := c.viper.ConfigFileUsed()
	if configFile == "" {
		return errors.New("no config file loaded")
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	updated := updateLogSettingsInTOML(
		string(content),
		c.Config.LogLevel,
		c.Config.LogPath,
		c.Config.LogMaxSize,
		c.Config.LogMaxBackups,
	)

	if err := os.WriteFile(configFile, []byte(updated), 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// updateLogSettingsInTOML replaces the logLevel, logPath, logMaxSize and
// logMaxBackups assignments in content, uncommenting them if needed. A
// key absent from the file is inserted before the first [section] header
// rather than appended, so section-scoped keys stay in their sections.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	replacements := map[string]string{
		"logLevel":      fmt.Sprintf("logLevel = %q", level),
		"logMaxSize":    fmt.Sprintf("logMaxSize = %d", maxSize),
		"logMaxBackups": fmt.Sprintf("logMaxBackups = %d", maxBackups),
	}
	if path != "" {
		replacements["logPath"] = fmt.Sprintf("logPath = %q", path)
	}

	lines := strings.Split(content, "\n")
	seen := make(map[string]bool, len(replacements))

	for i, line := range lines {
		key, ok := tomlKey(line)
		if !ok {
			continue
		}
		if replacement, want := replacements[key]; want && !seen[key] {
			lines[i] = replacement
			seen[key] = true
		}
	}

	var missing []string
	for _, key := range []string{"logLevel", "logPath", "logMaxSize", "logMaxBackups"} {
		if replacement, want := replacements[key]; want && !seen[key] {
			missing = append(missing, replacement)
		}
	}

	if len(missing) > 0 {
		insertAt := len(lines)
		for i, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "[") {
				insertAt = i
				break
			}
		}

		updated := make([]string, 0, len(lines)+len(missing))
		updated = append(updated, lines[:insertAt]...)
		updated = append(updated, missing...)
		updated = append(updated, lines[insertAt:]...)
		lines = updated
	}

	return strings.Join(lines, "\n")
}

// tomlKey extracts the key of a `key = value` line, tolerating one
// leading comment marker. Prose comments return false.
func tomlKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))

	eq := strings.IndexByte(trimmed, '=')
	if eq <= 0 {
		return "", false
	}

	key := strings.TrimSpace(trimmed[:eq])
	if key == "" || strings.ContainsAny(key, " \t#[]") {
		return "", false
	}

	return key, true
}
