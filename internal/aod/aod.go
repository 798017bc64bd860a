// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package aod refreshes the local mirror of the anime-offline-database
// catalog, the title authority the find strategies match against.
package aod

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/fetch"
	"github.com/mozhaa/hanyuu/internal/models"
)

// DefaultCatalogURL is used when no aodDatabaseUrl is configured.
const DefaultCatalogURL = "https://raw.githubusercontent.com/manami-project/anime-offline-database/master/anime-offline-database-minified.json"

// Placeholder posters replacing the catalog's own missing-image stubs.
const (
	missingPosterURL = "https://shikimori.one/assets/globals/missing/main.png"
	missingThumbURL  = "https://shikimori.one/assets/globals/missing/preview_animanga.png"
)

var (
	malRe   = regexp.MustCompile(`^https://myanimelist\.net/anime/([0-9]+)$`)
	anidbRe = regexp.MustCompile(`^https://anidb\.net/anime/([0-9]+)`)
)

// catalog is the wire shape of the minified database file.
type catalog struct {
	LastUpdate string         `json:"lastUpdate"`
	Data       []catalogEntry `json:"data"`
}

type catalogEntry struct {
	Sources     []string `json:"sources"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Episodes    int      `json:"episodes"`
	Status      string   `json:"status"`
	AnimeSeason struct {
		Season string `json:"season"`
		Year   *int   `json:"year"`
	} `json:"animeSeason"`
	Picture   string `json:"picture"`
	Thumbnail string `json:"thumbnail"`
	Duration  *struct {
		Value int    `json:"value"`
		Unit  string `json:"unit"`
	} `json:"duration"`
	Synonyms     []string `json:"synonyms"`
	RelatedAnime []string `json:"relatedAnime"`
	Tags         []string `json:"tags"`
}

type Service struct {
	store *models.AODAnimeStore
	fetch *fetch.Client
	cfg   *domain.Config
	log   zerolog.Logger
}

func NewService(store *models.AODAnimeStore, fetchClient *fetch.Client, cfg *domain.Config, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		fetch: fetchClient,
		cfg:   cfg,
		log:   log.With().Str("module", "aod").Logger(),
	}
}

// Update downloads the catalog and replaces the whole aod_anime table with
// the entries carrying both a MyAnimeList and an AniDB id.
func (s *Service) Update(ctx context.Context) error {
	url := strings.TrimSpace(s.cfg.AODDatabaseURL)
	if url == "" {
		url = DefaultCatalogURL
	}

	s.log.Info().Str("url", url).Msg("downloading catalog")

	var (
		body []byte
		err  error
	)
	if s.cfg.AODCacheEnabled {
		body, err = s.fetch.GetCached(ctx, url)
	} else {
		body, err = s.fetch.Get(ctx, url)
	}
	if err != nil {
		return errors.Wrap(err, "download catalog")
	}
	s.log.Info().Int("bytes", len(body)).Msg("catalog downloaded")

	if strings.HasSuffix(url, ".zst") {
		body, err = decompressZstd(body)
		if err != nil {
			return errors.Wrap(err, "decompress catalog")
		}
	}

	var cat catalog
	if err := json.Unmarshal(body, &cat); err != nil {
		return errors.Wrap(err, "parse catalog")
	}
	s.log.Info().Str("lastUpdate", cat.LastUpdate).Int("entries", len(cat.Data)).Msg("catalog parsed")

	animes := mapEntries(cat.Data)
	s.log.Info().Int("mapped", len(animes)).Msg("entries with both mal and anidb ids")

	if err := s.store.ReplaceAll(ctx, animes); err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	return nil
}

// mapEntries keeps the entries identifiable on both MyAnimeList and AniDB
// and converts them to rows.
func mapEntries(entries []catalogEntry) []*models.AODAnime {
	animes := make([]*models.AODAnime, 0, len(entries))
	for _, item := range entries {
		malID, anidbID := extractIDs(item.Sources)
		if malID == 0 || anidbID == 0 {
			continue
		}

		posterURL := item.Picture
		if strings.Contains(posterURL, "no_pic.png") {
			posterURL = missingPosterURL
		}
		thumbURL := item.Thumbnail
		if strings.Contains(thumbURL, "no_pic_thumbnail.png") {
			thumbURL = missingThumbURL
		}

		anime := &models.AODAnime{
			MalID:          malID,
			AnidbID:        anidbID,
			Title:          item.Title,
			PosterURL:      posterURL,
			PosterThumbURL: thumbURL,
			Episodes:       item.Episodes,
			ReleaseYear:    item.AnimeSeason.Year,
			ReleaseSeason:  item.AnimeSeason.Season,
			Status:         item.Status,
			AnimeType:      item.Type,
			Sources:        item.Sources,
			Tags:           item.Tags,
			Synonyms:       item.Synonyms,
			RelatedAnime:   item.RelatedAnime,
		}
		if item.Duration != nil {
			d := item.Duration.Value
			anime.Duration = &d
		}
		animes = append(animes, anime)
	}
	return animes
}

func extractIDs(sources []string) (malID, anidbID int64) {
	for _, source := range sources {
		if m := malRe.FindStringSubmatch(source); m != nil {
			malID, _ = strconv.ParseInt(m[1], 10, 64)
			continue
		}
		if m := anidbRe.FindStringSubmatch(source); m != nil {
			anidbID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	return malID, anidbID
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
