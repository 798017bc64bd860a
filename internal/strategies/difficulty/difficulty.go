// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package difficulty holds the strategies that grade how hard a qitem is
// to guess.
package difficulty

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
)

// NameRandom is the only automatic grader so far; a real one needs
// community answer statistics the pipeline does not collect yet.
const NameRandom = "random"

// Strategy grades one qitem and records the result.
type Strategy interface {
	Name() string
	Run(ctx context.Context, qitemID int64) error
}

type Deps struct {
	Difficulties *models.QItemDifficultyStore
	Config       *domain.Config
}

func New(name string, deps Deps) (Strategy, error) {
	switch name {
	case NameRandom:
		return &Random{difficulties: deps.Difficulties}, nil
	default:
		return nil, errors.Errorf("unknown difficulty strategy %q", name)
	}
}

// Registry builds the configured strategies in priority order, best first.
func Registry(deps Deps) ([]Strategy, error) {
	var out []Strategy
	for _, name := range deps.Config.DifficultyPriorities {
		s, err := New(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Random grades uniformly between 0 and 100 inclusive.
type Random struct {
	difficulties *models.QItemDifficultyStore
}

func (s *Random) Name() string { return NameRandom }

func (s *Random) Run(ctx context.Context, qitemID int64) error {
	_, err := s.difficulties.Create(ctx, &models.QItemDifficulty{
		QItemID: qitemID,
		Value:   int(rand.Int64N(101)),
		AddedBy: NameRandom,
	})
	return err
}
