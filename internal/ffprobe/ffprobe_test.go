// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ffprobe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264"},
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "subtitle", "codec_name": "ass"}
		],
		"format": {"duration": "89.520000"}
	}`)

	info, err := parseProbeOutput(payload)
	require.NoError(t, err)
	assert.True(t, info.HasVideo)
	assert.True(t, info.HasAudio)
	assert.True(t, info.Playable())
	assert.InDelta(t, 89.52, info.Duration.Seconds(), 0.001)
}

func TestParseProbeOutputAudioOnly(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"streams": [{"codec_type": "audio", "codec_name": "flac"}],
		"format": {"duration": "212.1"}
	}`)

	info, err := parseProbeOutput(payload)
	require.NoError(t, err)
	assert.False(t, info.HasVideo)
	assert.True(t, info.HasAudio)
	assert.False(t, info.Playable())
}

func TestParseProbeOutputGarbage(t *testing.T) {
	t.Parallel()

	_, err := parseProbeOutput([]byte("not json"))
	require.Error(t, err)
}

func TestProbeEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := New("").Probe(context.Background(), "  ")
	require.Error(t, err)
}

func TestProbeMissingBinary(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New("/nonexistent/ffprobe-binary").Probe(ctx, "/tmp/whatever.mkv")
	require.Error(t, err)
}

func TestNewDefaultsBinary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ffprobe", New(" ").binary)
	assert.Equal(t, "/usr/bin/ffprobe", New("/usr/bin/ffprobe").binary)
}
