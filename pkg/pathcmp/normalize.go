// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp normalizes file paths for comparison. qBittorrent and
// .torrent metadata report forward-slashed paths regardless of host OS,
// so normalization uses path semantics, not filepath.
package pathcmp

import (
	"path"
	"strings"
)

// IsWindowsDriveAbs reports whether p is a Windows absolute path (C:/...).
// Backslashes should be normalized before calling.
func IsWindowsDriveAbs(p string) bool {
	if len(p) < 3 {
		return false
	}
	c := p[0]
	return ((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) && p[1] == ':' && p[2] == '/'
}

// Normalize prepares a path for equality checks: backslashes become
// forward slashes, the path is cleaned, trailing slashes go away. Windows
// drive roots keep their trailing slash (C:/), since path.Clean would
// collapse them into a drive-relative C:.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")

	if len(p) >= 2 && ((p[0] >= 'A' && p[0] <= 'Z') || (p[0] >= 'a' && p[0] <= 'z')) && p[1] == ':' {
		drive := p[:2]
		rest := p[2:]

		if rest == "" {
			return drive
		}

		rest = path.Clean(rest)
		if rest == "/" || rest == "." {
			return drive + "/"
		}
		return drive + rest
	}

	p = path.Clean(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// WithoutRoot strips the first path segment: "Pack/S1/file.webm" becomes
// "S1/file.webm". Torrent payloads may or may not nest everything under a
// root folder, so callers match both spellings.
func WithoutRoot(p string) string {
	p = Normalize(p)
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
