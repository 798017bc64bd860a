// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
)

// Concat splices the given files into outputFP without re-encoding, using
// the concat demuxer. All inputs must share codec parameters, which holds
// for quiz parts rendered by the same maker.
func Concat(ctx context.Context, cfg *domain.Config, log zerolog.Logger, files []string, outputFP string) error {
	if len(files) == 0 {
		return errors.New("nothing to concatenate")
	}

	listFP, err := writeConcatList(files)
	if err != nil {
		return err
	}
	defer os.Remove(listFP)

	if err := ensureParentDir(outputFP); err != nil {
		return err
	}

	run, err := newRunner(cfg, log)
	if err != nil {
		return err
	}

	log.Info().Int("parts", len(files)).Str("output", outputFP).Msg("concatenating quiz parts")
	return run.run(ctx, []string{
		"-y", "-nostats", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listFP,
		"-c", "copy",
		outputFP,
	})
}

// writeConcatList emits the demuxer's list format, one absolute path per
// line. Single quotes inside a quoted path are closed, escaped and
// reopened, same as in shell.
func writeConcatList(files []string) (string, error) {
	f, err := os.CreateTemp("", "hanyuu-concat-*.txt")
	if err != nil {
		return "", errors.Wrap(err, "create concat list")
	}

	var sb strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", errors.Wrapf(err, "resolve %q", file)
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(err, "write concat list")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "close concat list")
	}
	return f.Name(), nil
}
