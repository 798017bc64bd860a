// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ffprobe shells out to ffprobe and parses the subset of its JSON
// output the pipeline cares about: stream kinds and container duration.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// MediaInfo describes a probed file.
type MediaInfo struct {
	HasVideo bool
	HasAudio bool
	Duration time.Duration
}

// Playable reports whether the file carries both picture and sound, which
// is the minimum a quiz part render needs.
func (m MediaInfo) Playable() bool {
	return m.HasVideo && m.HasAudio
}

type Prober struct {
	binary string
}

func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

// Probe inspects the file at path. A context without a deadline gets the
// package default so a wedged ffprobe cannot stall a worker loop.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return MediaInfo{}, errors.New("file path is required")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return MediaInfo{}, errors.Wrap(err, "ffprobe failed")
		}
		return MediaInfo{}, errors.Wrapf(err, "ffprobe failed: %s", msg)
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return MediaInfo{}, errors.Wrap(err, "parse ffprobe output")
	}
	return info, nil
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(data []byte) (MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return MediaInfo{}, err
	}

	var info MediaInfo
	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
		}
	}

	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			info.Duration = time.Duration(d * float64(time.Second))
		}
	}

	return info, nil
}
