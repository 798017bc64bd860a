// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package find holds the strategies that locate a source video for a
// quiz item and record it as a QItemSource.
package find

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
)

// Strategy names, as stored in qitem_source.added_by.
const (
	NameAttachments = "attachments"
	NameVideosearch = "videosearch"
	NameAniTousen   = "anitousen"
)

// Strategy looks for a source video of one qitem. Run records a new
// QItemSource on success and returns nil when it simply found nothing;
// errors mean the attempt itself failed and may be retried.
type Strategy interface {
	Name() string
	Run(ctx context.Context, qitemID int64) error
}

// SearchResult is one video search hit.
type SearchResult struct {
	Title    string
	Link     string
	Duration float64 // seconds, 0 when unknown
}

// VideoSearcher runs a text query against a video platform.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Deps bundles everything the find strategies read and write.
type Deps struct {
	QItems  *models.QItemStore
	Animes  *models.AnimeStore
	Sources *models.QItemSourceStore
	AOD     *models.AODAnimeStore
	Search  VideoSearcher
	Config  *domain.Config
}

// New builds a single strategy by name.
func New(name string, deps Deps) (Strategy, error) {
	switch name {
	case NameAttachments:
		return NewAttachments(deps), nil
	case NameVideosearch:
		return NewVideosearch(deps), nil
	case NameAniTousen:
		return NewAniTousen(deps), nil
	default:
		return nil, errors.Errorf("unknown find strategy %q", name)
	}
}

// Registry builds the configured strategies in priority order, best
// first. A non-empty allow list keeps only the named ones.
func Registry(deps Deps, allow []string) ([]Strategy, error) {
	var out []Strategy
	for _, name := range deps.Config.FindPriorities {
		if len(allow) > 0 && !slices.Contains(allow, name) {
			continue
		}
		s, err := New(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
