// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo carries the version stamp baked in at link time.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Set via ldflags, e.g.
// -X github.com/mozhaa/hanyuu/internal/buildinfo.Version=v1.2.3
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent identifies this build in outgoing HTTP requests.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("hanyuu/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String renders the stamp for the version subcommand.
func String() string {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, commit, date)
}

// JSON renders the stamp for machine consumers.
func JSON() ([]byte, error) {
	return json.Marshal(struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`
	}{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	})
}
