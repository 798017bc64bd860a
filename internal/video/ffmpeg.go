// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Hellseher/go-shellquote"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
)

// runner invokes ffmpeg with operator-supplied global args (hwaccel and
// friends) in front of the per-render ones.
type runner struct {
	binary string
	extra  []string
	log    zerolog.Logger
}

func newRunner(cfg *domain.Config, log zerolog.Logger) (*runner, error) {
	binary := strings.TrimSpace(cfg.FfmpegPath)
	if binary == "" {
		binary = "ffmpeg"
	}

	extra, err := shellquote.Split(cfg.FfmpegExtraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "parse ffmpegExtraArgs %q", cfg.FfmpegExtraArgs)
	}

	return &runner{binary: binary, extra: extra, log: log}, nil
}

func (r *runner) run(ctx context.Context, args []string) error {
	full := make([]string, 0, len(r.extra)+len(args))
	full = append(full, r.extra...)
	full = append(full, args...)

	r.log.Debug().Str("binary", r.binary).Strs("args", full).Msg("running ffmpeg")

	cmd := exec.CommandContext(ctx, r.binary, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return errors.Wrap(err, "ffmpeg failed")
		}
		return errors.Wrapf(err, "ffmpeg failed: %s", msg)
	}
	return nil
}

// ff renders a float the way filter args want it, without a trailing
// exponent or superfluous zeros.
func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeFilterValue protects a value that ends up inside a filter graph.
// The graph is parsed twice, once for option values and once for the whole
// description, so both escape rounds apply.
func escapeFilterValue(s string) string {
	s = escapeChars(s, `\'=:`)
	s = escapeChars(s, `\'[],;`)
	return s
}

func escapeChars(s, chars string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
