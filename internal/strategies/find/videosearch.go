// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package find

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/matching"
	"github.com/mozhaa/hanyuu/internal/models"
)

// Videosearch queries a video platform with the anime title plus theme
// position and ranks the hits by fuzzy title similarity, duration
// plausibility and helper keywords.
type Videosearch struct {
	name    string
	qitems  *models.QItemStore
	animes  *models.AnimeStore
	sources *models.QItemSourceStore
	search  VideoSearcher
	cfg     *domain.Config
}

func NewVideosearch(deps Deps) *Videosearch {
	return &Videosearch{
		name:    NameVideosearch,
		qitems:  deps.QItems,
		animes:  deps.Animes,
		sources: deps.Sources,
		search:  deps.Search,
		cfg:     deps.Config,
	}
}

func (s *Videosearch) Name() string { return s.name }

func (s *Videosearch) Run(ctx context.Context, qitemID int64) error {
	qitem, err := s.qitems.GetByID(ctx, qitemID)
	if err != nil {
		return err
	}
	anime, err := s.animes.GetByMalID(ctx, qitem.AnimeID)
	if err != nil {
		return err
	}

	// Scores are deduplicated per link, keeping the best one. Order of
	// first sight breaks ties so reruns stay deterministic.
	scores := make(map[string]float64)
	var order []string

	for _, title := range []string{anime.TitleRo, anime.TitleEn} {
		if title == "" {
			continue
		}
		query := fmt.Sprintf("%s %s %d", title, qitem.Category.Display(), qitem.Number)
		log.Info().Int64("qitemID", qitemID).Str("query", query).Msg("video search query")

		results, err := s.search.Search(ctx, query, s.cfg.VideosearchResults)
		if err != nil {
			return fmt.Errorf("failed to search videos: %w", err)
		}
		log.Info().Int64("qitemID", qitemID).Int("count", len(results)).Msg("video search results")

		for _, result := range results {
			score := s.score(result, query)
			if _, seen := scores[result.Link]; !seen {
				order = append(order, result.Link)
				log.Debug().
					Str("title", result.Title).
					Str("link", result.Link).
					Float64("score", score).
					Msg("scored video search result")
			}
			if score > scores[result.Link] {
				scores[result.Link] = score
			}
		}
	}

	if len(order) == 0 {
		log.Info().Int64("qitemID", qitemID).Msg("video search returned nothing")
		return nil
	}

	var (
		bestScore float64 = -1
		bestLink  string
	)
	for _, link := range order {
		if scores[link] > bestScore {
			bestScore, bestLink = scores[link], link
		}
	}

	if bestScore < s.cfg.VideosearchThreshold {
		log.Info().
			Int64("qitemID", qitemID).
			Float64("score", bestScore).
			Float64("threshold", s.cfg.VideosearchThreshold).
			Str("link", bestLink).
			Msg("video search failure")
		return nil
	}

	_, err = s.sources.Create(ctx, &models.QItemSource{
		QItemID:  qitemID,
		Platform: models.PlatformYtdlp,
		Path:     bestLink,
		AddedBy:  s.name,
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("qitemID", qitemID).
		Float64("score", bestScore).
		Float64("threshold", s.cfg.VideosearchThreshold).
		Str("link", bestLink).
		Msg("video search success")
	return nil
}

// score ranks one search hit against the query. Negative helper words
// disqualify outright; otherwise title similarity is sharpened through a
// contrast curve, weighted by how plausible the duration is for a theme,
// plus a small bonus per helper keyword.
func (s *Videosearch) score(result SearchResult, query string) float64 {
	if matching.KeywordScore(s.cfg.NegativeSearchHelpers, result.Title) > 0 {
		return 0
	}

	titleScore := matching.TokenRatio(
		matching.Preprocess(query, 5),
		matching.Preprocess(result.Title, 5),
	)

	var durationScore float64
	for _, d := range s.cfg.ExpectedDurations {
		if v := matching.DurationSimilarity(result.Duration, float64(d)); v > durationScore {
			durationScore = v
		}
	}

	c := matching.Contrast(titleScore, 2.5)
	return c*c*durationScore + 0.5*matching.KeywordScore(s.cfg.SearchHelpers, result.Title)
}
