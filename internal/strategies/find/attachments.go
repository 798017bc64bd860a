// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package find

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mozhaa/hanyuu/internal/matching"
	"github.com/mozhaa/hanyuu/internal/models"
)

var (
	openingPrefixRe = regexp.MustCompile(`\bopening`)
	endingPrefixRe  = regexp.MustCompile(`\bending`)
	versionHintRe   = regexp.MustCompile(`(ver\.|v\.|version) *([0-9]+)`)

	themeHintRes = map[string]*regexp.Regexp{
		"op": regexp.MustCompile(`\b(nc *)?op *([0-9]+) *(v[0-9]+)?\b`),
		"ed": regexp.MustCompile(`\b(nc *)?ed *([0-9]+) *(v[0-9]+)?\b`),
	}
	fullHintRes = map[string]*regexp.Regexp{
		"op": regexp.MustCompile(`\b(nc *)?op *([0-9]+) *(v[0-9]+)?\b *full\b`),
		"ed": regexp.MustCompile(`\b(nc *)?ed *([0-9]+) *(v[0-9]+)?\b *full\b`),
	}
)

// Attachments scans the video links attached to the anime's catalog
// entry for one matching the theme, so no search round trip is needed.
type Attachments struct {
	name    string
	qitems  *models.QItemStore
	animes  *models.AnimeStore
	sources *models.QItemSourceStore
}

func NewAttachments(deps Deps) *Attachments {
	return &Attachments{
		name:    NameAttachments,
		qitems:  deps.QItems,
		animes:  deps.Animes,
		sources: deps.Sources,
	}
}

func (s *Attachments) Name() string { return s.name }

func (s *Attachments) Run(ctx context.Context, qitemID int64) error {
	qitem, err := s.qitems.GetByID(ctx, qitemID)
	if err != nil {
		return err
	}
	anime, err := s.animes.GetByMalID(ctx, qitem.AnimeID)
	if err != nil {
		return err
	}

	short := strings.ToLower(qitem.Category.Short())

	var (
		bestScore float64 = -1
		bestTitle string
		bestLink  string
	)
	matched := 0
	for _, video := range anime.Videos {
		kind, title, link := videoTriple(video)
		if strings.ToLower(kind) != short {
			continue
		}
		matched++
		score := scoreAttachment(title, short, qitem.Number, qitem.SongName)
		if score > bestScore {
			bestScore, bestTitle, bestLink = score, title, link
		}
	}

	if matched == 0 {
		log.Info().Int64("qitemID", qitemID).Msg("no suitable videos found in attachments")
		return nil
	}
	log.Debug().Int64("qitemID", qitemID).Int("count", matched).Msg("attachments of matching category")

	if bestScore <= 0 {
		log.Info().
			Int64("qitemID", qitemID).
			Float64("score", bestScore).
			Str("title", bestTitle).
			Str("link", bestLink).
			Msg("attachments failure")
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
		Str("title", bestTitle).
		Str("link", bestLink).
		Msg("attachments success")
	return nil
}

// videoTriple reads a catalog video entry as (kind, title, url),
// padding short or null-bearing entries with empty strings.
func videoTriple(v []string) (kind, title, url string) {
	get := func(i int) string {
		if i < len(v) {
			return v[i]
		}
		return ""
	}
	return get(0), get(1), get(2)
}

// scoreAttachment ranks one attachment title for a theme. Full-song
// uploads score 0; otherwise creditless uploads and low re-cut versions
// are preferred, gated on either the song title appearing in the video
// title or the theme number matching.
func scoreAttachment(title, short string, number int, songName string) float64 {
	title = strings.ToLower(title)
	title = openingPrefixRe.ReplaceAllString(title, "op")
	title = endingPrefixRe.ReplaceAllString(title, "ed")

	themeMatch := themeHintRes[short].FindStringSubmatch(title)
	versionMatch := versionHintRe.FindStringSubmatch(title)

	creditlessPenalty := 0.5
	if themeMatch != nil && themeMatch[1] != "" {
		creditlessPenalty = 1
	}

	themeNumber := 1
	if themeMatch != nil {
		if n, err := strconv.Atoi(themeMatch[2]); err == nil {
			themeNumber = n
		}
	}
	numberMatch := themeNumber == number

	version := 1
	if themeMatch != nil {
		if themeMatch[3] != "" {
			if v, err := strconv.Atoi(themeMatch[3][1:]); err == nil {
				version = v
			}
		}
	} else if versionMatch != nil {
		if v, err := strconv.Atoi(versionMatch[2]); err == nil {
			version = v
		}
	}
	versionPenalty := 0.5 + 0.5/float64(version)

	if fullHintRes[short].MatchString(title) {
		return 0
	}

	songNameMatch := len([]rune(songName)) >= 3 &&
		matching.OverlapRatio(strings.ToLower(songName), title) > 0.9

	if !songNameMatch && !numberMatch {
		return 0
	}
	return versionPenalty * creditlessPenalty
}
