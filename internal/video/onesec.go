// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
)

// OneSec is the speedrun style: one second of audio played twice over a
// fixed countdown clip, then a five second reveal with the theme number
// splashed across the middle.
type OneSec struct {
	deps Deps
	cfg  *domain.Config
	log  zerolog.Logger
}

func NewOneSec(deps Deps) *OneSec {
	return &OneSec{
		deps: deps,
		cfg:  deps.Config,
		log:  deps.Log.With().Str("style", "onesec").Logger(),
	}
}

func (m *OneSec) Name() string { return "onesec" }

func (m *OneSec) Render(ctx context.Context, timingID, difficultyID int64, outputFP string) error {
	in, err := m.deps.loadInputs(ctx, timingID, difficultyID)
	if err != nil {
		return err
	}

	if err := ensureParentDir(outputFP); err != nil {
		return err
	}

	run, err := newRunner(m.cfg, m.log)
	if err != nil {
		return err
	}

	m.log.Info().
		Int64("timingID", timingID).
		Int64("difficultyID", difficultyID).
		Str("output", outputFP).
		Msg("rendering onesec quiz part")
	return run.run(ctx, m.buildArgs(in, outputFP))
}

// buildArgs assembles the invocation. Input indexes: 0 countdown clip,
// 1 guess second, 2 reveal clip.
func (m *OneSec) buildArgs(in *renderInputs, outputFP string) []string {
	countdownFP := filepath.Join(m.cfg.StaticDir, "video", "one_sec_guess_265.mp4")
	fontFP := filepath.Join(m.cfg.StaticDir, "ttf", "VOGUE.TTF")

	graph := strings.Join([]string{
		// Reveal letterboxed with the theme number in the middle.
		fmt.Sprintf("[2:v]scale=1280:720:force_original_aspect_ratio=decrease,"+
			"pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1,"+
			"fade=t=in:st=0:d=0.5,fade=t=out:st=4:d=1,"+
			"drawtext=text=%d:x=(1280-tw)/2:y=(720-th)/2:fontfile=%s:"+
			"fontsize=512:fontcolor=white:borderw=16:bordercolor=black[rv]",
			in.qitem.Number, escapeFilterValue(fontFP)),
		// The guess second, normalized and played twice three seconds in.
		"[1:a]aformat=channel_layouts=stereo|mono,loudnorm=I=-18,asplit[ga0][ga1]",
		"[ga0]adelay=delays=3000:all=1[gad0]",
		"[ga1]adelay=delays=3000:all=1,apad=pad_dur=5[gad1]",
		"[gad0][gad1]concat=n=2:v=0:a=1[ga]",
		"[2:a]loudnorm=I=-18,afade=t=out:st=4:d=1,afade=t=in:st=0:d=0.5[ra]",
		"[0:v][ga][rv][ra]concat=n=2:v=1:a=1[outv][outa]",
	}, ";")

	return []string{
		"-y", "-nostats", "-loglevel", "error",
		"-i", countdownFP,
		"-ss", in.timing.GuessStart, "-t", "1", "-i", in.sourceFP,
		"-ss", in.timing.RevealStart, "-t", "5", "-i", in.sourceFP,
		"-filter_complex", graph,
		"-map", "[outv]", "-map", "[outa]",
		"-c:v", "libx264", "-c:a", "aac", "-preset", "faster",
		outputFP,
	}
}
