// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package video renders quiz parts out of downloaded sources. Each style
// is a Maker that assembles one ffmpeg filter graph (guess segment,
// countdown, reveal segment) and shells out once per render.
package video

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/fetch"
	"github.com/mozhaa/hanyuu/internal/models"
)

// Maker renders one quiz part style.
type Maker interface {
	Name() string
	Render(ctx context.Context, timingID, difficultyID int64, outputFP string) error
}

// Deps bundles the stores and clients the makers read from.
type Deps struct {
	Timings      *models.QItemSourceTimingStore
	Difficulties *models.QItemDifficultyStore
	Sources      *models.QItemSourceStore
	QItems       *models.QItemStore
	Animes       *models.AnimeStore
	Fetch        *fetch.Client
	Config       *domain.Config
	Log          zerolog.Logger
}

// StyleNames lists the known styles in registration order.
func StyleNames() []string {
	return []string{"classic", "onesec"}
}

// ByName builds the maker for one style.
func ByName(deps Deps, name string) (Maker, error) {
	switch name {
	case "classic":
		return NewClassic(deps), nil
	case "onesec":
		return NewOneSec(deps), nil
	default:
		return nil, errors.Errorf("unknown style %q, have %v", name, StyleNames())
	}
}

// renderInputs is the row bundle a render reads: the timing and difficulty
// picked by the quiz part worker plus everything hanging off them.
type renderInputs struct {
	timing     *models.QItemSourceTiming
	difficulty *models.QItemDifficulty
	source     *models.QItemSource
	qitem      *models.QItem
	anime      *models.Anime
	sourceFP   string
}

func (d *Deps) loadInputs(ctx context.Context, timingID, difficultyID int64) (*renderInputs, error) {
	timing, err := d.Timings.GetByID(ctx, timingID)
	if err != nil {
		return nil, err
	}
	difficulty, err := d.Difficulties.GetByID(ctx, difficultyID)
	if err != nil {
		return nil, err
	}
	source, err := d.Sources.GetByID(ctx, timing.QItemSourceID)
	if err != nil {
		return nil, err
	}
	if source.LocalFP == nil {
		return nil, errors.Errorf("source %d has no downloaded file", source.ID)
	}
	qitem, err := d.QItems.GetByID(ctx, source.QItemID)
	if err != nil {
		return nil, err
	}
	anime, err := d.Animes.GetByMalID(ctx, qitem.AnimeID)
	if err != nil {
		return nil, err
	}

	return &renderInputs{
		timing:     timing,
		difficulty: difficulty,
		source:     source,
		qitem:      qitem,
		anime:      anime,
		sourceFP:   *source.LocalFP,
	}, nil
}

// fetchPoster downloads the anime poster into dir and returns the file path.
func (d *Deps) fetchPoster(ctx context.Context, anime *models.Anime, dir string) (string, error) {
	if anime.PosterURL == "" {
		return "", errors.Errorf("anime %d has no poster url", anime.MalID)
	}

	body, err := d.Fetch.GetCached(ctx, anime.PosterURL)
	if err != nil {
		return "", errors.Wrapf(err, "fetch poster for anime %d", anime.MalID)
	}

	path := filepath.Join(dir, "poster")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", errors.Wrap(err, "write poster file")
	}
	return path, nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
