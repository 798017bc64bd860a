// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package timing holds the strategies that predict guess and reveal seek
// positions for a downloaded source.
package timing

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
)

// Strategy names, as stored in qitem_source_timing.added_by.
const (
	NameDefault = "default"
	NameRandom  = "random"
)

// Strategy predicts timings for one source and records them.
type Strategy interface {
	Name() string
	Run(ctx context.Context, sourceID int64) error
}

type Deps struct {
	Timings *models.QItemSourceTimingStore
	Config  *domain.Config
}

func New(name string, deps Deps) (Strategy, error) {
	switch name {
	case NameDefault:
		return &Default{timings: deps.Timings}, nil
	case NameRandom:
		return &Random{timings: deps.Timings}, nil
	default:
		return nil, errors.Errorf("unknown timing strategy %q", name)
	}
}

// Registry builds the configured strategies in priority order, best first.
func Registry(deps Deps) ([]Strategy, error) {
	var out []Strategy
	for _, name := range deps.Config.TimingPriorities {
		s, err := New(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Default starts the guess at the very beginning and reveals at 50 seconds,
// which fits the common 90 second theme.
type Default struct {
	timings *models.QItemSourceTimingStore
}

func (s *Default) Name() string { return NameDefault }

func (s *Default) Run(ctx context.Context, sourceID int64) error {
	_, err := s.timings.Create(ctx, &models.QItemSourceTiming{
		QItemSourceID: sourceID,
		GuessStart:    models.FormatClock(0),
		RevealStart:   models.FormatClock(50 * time.Second),
		AddedBy:       NameDefault,
	})
	return err
}

// Random drops the guess somewhere between 1 and 80 seconds in, with
// microsecond resolution, and reveals from the start.
type Random struct {
	timings *models.QItemSourceTimingStore
}

func (s *Random) Name() string { return NameRandom }

func (s *Random) Run(ctx context.Context, sourceID int64) error {
	const lo, hi = 1_000_000, 80_000_000
	micros := lo + rand.Int64N(hi-lo+1)

	_, err := s.timings.Create(ctx, &models.QItemSourceTiming{
		QItemSourceID: sourceID,
		GuessStart:    models.FormatClock(time.Duration(micros) * time.Microsecond),
		RevealStart:   models.FormatClock(0),
		AddedBy:       NameRandom,
	})
	return err
}
