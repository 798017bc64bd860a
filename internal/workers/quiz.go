// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/video"
)

// Picker modes for quiz assembly.
const (
	PickerSimple = "simple"
	PickerMemory = "memory"
)

// QuizOptions describe one quiz to assemble.
type QuizOptions struct {
	// Count is how many parts the quiz holds.
	Count int
	// Output names the file under the quiz directory; empty picks a
	// timestamp.
	Output string
	// Picker selects the sampling mode, PickerSimple or PickerMemory.
	Picker string
	// MemorySize is how many recent picks the memory picker avoids.
	MemorySize int
	// Filter restricts which quiz parts may appear.
	Filter models.QuizFilter
}

// Quiz assembles one quiz video out of rendered parts. One-shot.
type Quiz struct {
	opts  QuizOptions
	parts *models.QuizPartStore
	cfg   *domain.Config
	log   zerolog.Logger
}

func NewQuiz(opts QuizOptions, parts *models.QuizPartStore, cfg *domain.Config, log zerolog.Logger) *Quiz {
	return &Quiz{
		opts:  opts,
		parts: parts,
		cfg:   cfg,
		log:   log.With().Str("worker", "quiz").Logger(),
	}
}

// Run picks parts and concatenates them, returning the output path.
func (w *Quiz) Run(ctx context.Context) (string, error) {
	if w.opts.Count <= 0 {
		return "", errors.New("quiz needs a positive part count")
	}

	files, err := w.parts.ListFilesForQuiz(ctx, w.opts.Filter)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", errors.New("no rendered quiz parts match the filters")
	}

	picker, err := newPicker(w.opts.Picker, w.opts.MemorySize)
	if err != nil {
		return "", err
	}

	picked := make([]string, 0, w.opts.Count)
	for range w.opts.Count {
		picked = append(picked, files[picker.pick(len(files))])
	}

	name := w.opts.Output
	if name == "" {
		now := time.Now()
		name = now.Format("2006_01_02__15_04_05") + fmt.Sprintf("_%06d.mp4", now.Nanosecond()/1000)
	}
	outputFP := filepath.Join(w.cfg.QuizDir(), name)

	if err := video.Concat(ctx, w.cfg, w.log, picked, outputFP); err != nil {
		return "", err
	}

	w.log.Info().
		Int("parts", len(picked)).
		Int("pool", len(files)).
		Str("file", outputFP).
		Msg("quiz assembled")
	return outputFP, nil
}

// picker chooses part indexes in [0, n).
type picker interface {
	pick(n int) int
}

func newPicker(mode string, memorySize int) (picker, error) {
	switch mode {
	case PickerSimple:
		return simplePicker{}, nil
	case PickerMemory:
		return &memoryPicker{size: memorySize}, nil
	default:
		return nil, errors.Errorf("unknown picker %q", mode)
	}
}

// simplePicker samples uniformly with replacement.
type simplePicker struct{}

func (simplePicker) pick(n int) int { return rand.IntN(n) }

// memoryPicker samples uniformly but refuses to repeat its last few picks.
// When the memory would rule out every candidate, the oldest picks are
// forgotten until a choice exists again.
type memoryPicker struct {
	size   int
	recent []int
}

func (p *memoryPicker) pick(n int) int {
	for {
		candidates := p.candidates(n)
		if len(candidates) > 0 {
			idx := candidates[rand.IntN(len(candidates))]
			p.recent = append(p.recent, idx)
			if len(p.recent) > p.size {
				p.recent = p.recent[len(p.recent)-p.size:]
			}
			return idx
		}
		p.recent = p.recent[1:]
	}
}

func (p *memoryPicker) candidates(n int) []int {
	banned := make(map[int]struct{}, len(p.recent))
	for _, idx := range p.recent {
		banned[idx] = struct{}{}
	}
	out := make([]int, 0, n)
	for idx := range n {
		if _, ok := banned[idx]; !ok {
			out = append(out, idx)
		}
	}
	return out
}
