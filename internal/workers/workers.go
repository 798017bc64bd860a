// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package workers holds the pipeline's long-running loops and one-shot
// passes: finding sources for qitems, downloading them, watching
// qBittorrent, predicting timings and difficulties, rendering quiz parts,
// assembling quizzes and cleaning up. Workers coordinate through the
// database and the file-backed lists only, never directly, so operators
// can run any subset of them, on one machine or several.
package workers

import (
	"os"
	"path/filepath"
	"strings"
)

// relativeToCwd rewrites a path relative to the working directory when it
// lives underneath it. Paths elsewhere stay as given, so databases shared
// between hosts keep portable paths where possible and absolute ones where
// not.
func relativeToCwd(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
