// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a/b/c", "a/b/c"},
		{"a\\b\\c", "a/b/c"},
		{"a/b/../c", "a/c"},
		{"a/b/", "a/b"},
		{"/", "/"},
		{"C:\\Torrents\\Pack", "C:/Torrents/Pack"},
		{"C:/", "C:/"},
		{"C:", "C:"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestIsWindowsDriveAbs(t *testing.T) {
	t.Parallel()

	assert.True(t, IsWindowsDriveAbs("C:/Torrents/x.torrent"))
	assert.True(t, IsWindowsDriveAbs("d:/x"))
	assert.False(t, IsWindowsDriveAbs("/home/user/x.torrent"))
	assert.False(t, IsWindowsDriveAbs("C:"))
	assert.False(t, IsWindowsDriveAbs("relative/path"))
}

func TestWithoutRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "S1/file.webm", WithoutRoot("Pack/S1/file.webm"))
	assert.Equal(t, "file.webm", WithoutRoot("file.webm"))
	assert.Equal(t, "S1/file.webm", WithoutRoot("Pack\\S1\\file.webm"))
}
