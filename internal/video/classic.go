// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/fetch"
)

// countdownFiles maps a difficulty bucket (value/20, capped) to the clip
// played while the crowd guesses.
var countdownFiles = []string{
	"very easy.mkv",
	"easy.mkv",
	"medium.mkv",
	"hard.mkv",
	"very hard.mkv",
}

func countdownFile(difficulty int) string {
	bucket := difficulty / 20
	if bucket > len(countdownFiles)-1 {
		bucket = len(countdownFiles) - 1
	}
	if bucket < 0 {
		bucket = 0
	}
	return countdownFiles[bucket]
}

// classicTimings carries every duration of the classic layout, in seconds.
type classicTimings struct {
	GuessDur  float64 // guess segment length
	RevealDur float64 // reveal segment length

	AudioDelay       float64 // silence before the guess audio starts
	CountdownLeadIn  float64 // countdown counting delay after audio start
	CountdownLeadOut float64 // pause after the countdown hits zero
	CountdownFadeOut float64 // countdown video fade out

	GuessFadeOut  float64
	GuessFadeIn   float64
	RevealFadeOut float64
	RevealFadeIn  float64
}

func defaultClassicTimings() classicTimings {
	return classicTimings{
		GuessDur:         10,
		RevealDur:        8,
		AudioDelay:       1,
		CountdownLeadIn:  0.5,
		CountdownLeadOut: 0.3,
		CountdownFadeOut: 1,
		GuessFadeOut:     1.5,
		GuessFadeIn:      0,
		RevealFadeOut:    2,
		RevealFadeIn:     0.5,
	}
}

// CountdownDur is how long the whole guess half runs: audio delay, the
// guess itself, and the countdown's own lead in and out.
func (t classicTimings) CountdownDur() float64 {
	return t.GuessDur + t.AudioDelay + t.CountdownLeadIn + t.CountdownLeadOut
}

// classicLayout pins the poster and caption inside the 1280x720 reveal.
type classicLayout struct {
	PosterW int
	PosterH int
	PosterX int
	PosterY int
	TextX   int
	TextY   int
}

func defaultClassicLayout() classicLayout {
	return classicLayout{
		PosterW: 252,
		PosterH: 336,
		PosterX: 70,
		PosterY: 360,
		TextX:   115,
		TextY:   620,
	}
}

// Classic is the standard quiz part: audio-only guess over a difficulty
// countdown clip, then the source video revealed with poster and title.
type Classic struct {
	deps    Deps
	cfg     *domain.Config
	fetch   *fetch.Client
	log     zerolog.Logger
	timings classicTimings
	layout  classicLayout
	acodec  string
	vcodec  string
	fps     int
	loudI   float64
}

func NewClassic(deps Deps) *Classic {
	return &Classic{
		deps:    deps,
		cfg:     deps.Config,
		fetch:   deps.Fetch,
		log:     deps.Log.With().Str("style", "classic").Logger(),
		timings: defaultClassicTimings(),
		layout:  defaultClassicLayout(),
		acodec:  "aac",
		vcodec:  "hevc",
		fps:     30,
		loudI:   -18,
	}
}

func (m *Classic) Name() string { return "classic" }

func (m *Classic) Render(ctx context.Context, timingID, difficultyID int64, outputFP string) error {
	in, err := m.deps.loadInputs(ctx, timingID, difficultyID)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "hanyuu-classic-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	posterFP, err := m.deps.fetchPoster(ctx, in.anime, tmpDir)
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

	args := m.buildArgs(in, posterFP, outputFP)

	m.log.Info().
		Int64("timingID", timingID).
		Int64("difficultyID", difficultyID).
		Str("output", outputFP).
		Msg("rendering classic quiz part")
	return run.run(ctx, args)
}

// buildArgs assembles the whole invocation. Input indexes: 0 countdown,
// 1 reveal clip, 2 guess clip, 3 poster image, 4 poster box overlay.
func (m *Classic) buildArgs(in *renderInputs, posterFP, outputFP string) []string {
	vt := m.timings
	countdownFP := filepath.Join(m.cfg.StaticDir, "video", "countdowns", countdownFile(in.difficulty.Value))
	posterBoxFP := filepath.Join(m.cfg.StaticDir, "png", "poster_box.png")
	fontFP := filepath.Join(m.cfg.StaticDir, "ttf", "tccm.ttf")

	caption := fmt.Sprintf("%s %s %d", in.anime.TitleRo, in.qitem.Category.Short(), in.qitem.Number)

	graph := strings.Join([]string{
		// Poster scaled into its frame.
		fmt.Sprintf("[3:v]scale=%d:%d[pv0]", m.layout.PosterW, m.layout.PosterH),
		"[4:v][pv0]overlay[pv]",
		// Reveal video letterboxed to 1280x720.
		"[1:v]scale=1280:720:force_original_aspect_ratio=decrease," +
			"pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1[rv0]",
		fmt.Sprintf("[rv0][pv]overlay=x=%d:y=%d[rv1]", m.layout.PosterX, m.layout.PosterY),
		fmt.Sprintf("[rv1]drawtext=text=%s:x=%d:y=%d:fontfile=%s:fontsize=64:fontcolor=white:"+
			"shadowx=4:shadowy=4:shadowcolor=#000000cc:borderw=1.5:bordercolor=black,"+
			"fade=t=in:st=0:d=%s,fade=t=out:st=%s:d=%s[rv]",
			escapeFilterValue(caption), m.layout.TextX, m.layout.TextY, escapeFilterValue(fontFP),
			ff(vt.RevealFadeIn), ff(vt.RevealDur-vt.RevealFadeOut), ff(vt.RevealFadeOut)),
		// Countdown video fades in with the audio delay and out at its end.
		fmt.Sprintf("[0:v]fade=t=in:st=0:d=%s,fade=t=out:st=%s:d=%s[cv]",
			ff(vt.AudioDelay), ff(vt.CountdownDur()-vt.CountdownFadeOut), ff(vt.CountdownFadeOut)),
		// Guess audio: faded, delayed behind the countdown, padded to fill it.
		fmt.Sprintf("[2:a]afade=t=out:st=%s:d=%s,afade=t=in:st=0:d=%s,"+
			"adelay=delays=%d:all=1,loudnorm=I=%s,apad=pad_dur=%s[ga]",
			ff(vt.GuessDur-vt.GuessFadeOut), ff(vt.GuessFadeOut), ff(vt.GuessFadeIn),
			int(vt.AudioDelay*1000), ff(m.loudI), ff(vt.CountdownDur()-vt.AudioDelay-vt.GuessDur)),
		fmt.Sprintf("[1:a]afade=t=out:st=%s:d=%s,afade=t=in:st=0:d=%s,loudnorm=I=%s[ra]",
			ff(vt.RevealDur-vt.RevealFadeOut), ff(vt.RevealFadeOut), ff(vt.RevealFadeIn), ff(m.loudI)),
		"[cv][ga][rv][ra]concat=n=2:v=1:a=1[outv][outa]",
	}, ";")

	return []string{
		"-y", "-nostats", "-loglevel", "error",
		"-i", countdownFP,
		"-ss", in.timing.RevealStart, "-t", ff(vt.RevealDur), "-i", in.sourceFP,
		"-ss", in.timing.GuessStart, "-t", ff(vt.GuessDur), "-i", in.sourceFP,
		"-loop", "1", "-t", ff(vt.RevealDur), "-i", posterFP,
		"-loop", "1", "-t", ff(vt.RevealDur), "-i", posterBoxFP,
		"-filter_complex", graph,
		"-map", "[outv]", "-map", "[outa]",
		"-c:v", m.vcodec, "-c:a", m.acodec, "-r", fmt.Sprint(m.fps),
		outputFP,
	}
}
