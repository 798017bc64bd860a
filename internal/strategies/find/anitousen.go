// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package find

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/matching"
	"github.com/mozhaa/hanyuu/internal/models"
)

// folderThreshold is how close a pack folder name must be to an anime title.
// It is stricter than the file threshold since folder names are plain titles.
const folderThreshold = 0.9

// AniTousen looks a theme up in the AniTousen collection torrent: first the
// anime's folder by title similarity, then the best-scoring file inside it.
// The pack metainfo is parsed once and kept for the worker's lifetime.
type AniTousen struct {
	name    string
	qitems  *models.QItemStore
	animes  *models.AnimeStore
	sources *models.QItemSourceStore
	aod     *models.AODAnimeStore
	cfg     *domain.Config

	mu      sync.Mutex
	folders []string
	files   map[string][]string
}

func NewAniTousen(deps Deps) *AniTousen {
	return &AniTousen{
		name:    NameAniTousen,
		qitems:  deps.QItems,
		animes:  deps.Animes,
		sources: deps.Sources,
		aod:     deps.AOD,
		cfg:     deps.Config,
	}
}

func (s *AniTousen) Name() string { return s.name }

// load parses the pack torrent into a folder to files mapping. A failed
// parse is not latched, the next run retries.
func (s *AniTousen) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files != nil {
		return nil
	}

	raw, err := os.ReadFile(s.cfg.AnitousenTorrentPath)
	if err != nil {
		return errors.Wrap(err, "failed to read pack torrent")
	}
	var mi metainfo.MetaInfo
	if err := bencode.Unmarshal(raw, &mi); err != nil {
		return errors.Wrapf(err, "failed to parse %s", s.cfg.AnitousenTorrentPath)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s", s.cfg.AnitousenTorrentPath)
	}

	files := make(map[string][]string)
	var folders []string
	for _, f := range info.Files {
		if len(f.Path) < 2 {
			continue
		}
		folder := strings.Join(f.Path[:len(f.Path)-1], "/")
		if _, ok := files[folder]; !ok {
			folders = append(folders, folder)
		}
		files[folder] = append(files[folder], f.Path[len(f.Path)-1])
	}

	s.folders, s.files = folders, files
	log.Debug().Int("folders", len(folders)).Msg("parsed anitousen pack torrent")
	return nil
}

func (s *AniTousen) Run(ctx context.Context, qitemID int64) error {
	if err := s.load(); err != nil {
		return err
	}

	qitem, err := s.qitems.GetByID(ctx, qitemID)
	if err != nil {
		return err
	}
	anime, err := s.animes.GetByMalID(ctx, qitem.AnimeID)
	if err != nil {
		return err
	}
	aod, err := s.aod.GetByMalID(ctx, anime.MalID)
	if err != nil && !errors.Is(err, models.ErrAODAnimeNotFound) {
		return err
	}

	folder, ok := s.findFolder(anime)
	if !ok {
		return nil
	}

	file, ok := s.findFile(folder, qitem, anime, aod)
	if !ok {
		return nil
	}

	_, err = s.sources.Create(ctx, &models.QItemSource{
		QItemID:        qitemID,
		Platform:       models.PlatformTorrent,
		Path:           s.cfg.AnitousenTorrentPath,
		AdditionalPath: folder + "/" + file,
		AddedBy:        s.name,
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("qitemID", qitemID).
		Str("folder", folder).
		Str("file", file).
		Msg("anitousen success")
	return nil
}

// findFolder picks the pack folder whose name is closest to the anime's
// romaji or english title. Folder names keep the uploader's casing, so the
// comparison is case sensitive on purpose.
func (s *AniTousen) findFolder(anime *models.Anime) (string, bool) {
	var (
		bestScore float64 = -1
		bestName  string
	)
	for _, folder := range s.folders {
		var score float64
		for _, title := range []string{anime.TitleRo, anime.TitleEn} {
			if title == "" {
				continue
			}
			if r := matching.IndelRatio(title, folder); r > score {
				score = r
			}
		}
		if score > bestScore {
			bestScore, bestName = score, folder
		}
	}

	if bestScore < folderThreshold {
		log.Info().
			Int64("malID", anime.MalID).
			Float64("score", bestScore).
			Str("folder", bestName).
			Msg("anitousen folder failure")
		return "", false
	}
	log.Debug().
		Int64("malID", anime.MalID).
		Float64("score", bestScore).
		Str("folder", bestName).
		Msg("anitousen folder match")
	return bestName, true
}

func (s *AniTousen) findFile(folder string, qitem *models.QItem, anime *models.Anime, aod *models.AODAnime) (string, bool) {
	themeType := strings.ToLower(qitem.Category.Short())
	expected := expectedShowType(aod)
	season := matching.Season(seasonTitles(anime, aod))

	var (
		bestScore float64 = -1
		bestName  string
	)
	for _, name := range s.files[folder] {
		parsed, ok := matching.ParseAniTousenName(name)
		if !ok {
			log.Debug().Str("file", name).Msg("skipping unparseable anitousen filename")
			continue
		}
		score := parsed.Score(themeType, qitem.Number, qitem.SongName, expected, season)
		if score > bestScore {
			bestScore, bestName = score, name
		}
	}

	if bestScore < s.cfg.AnitousenThreshold {
		log.Info().
			Int64("qitemID", qitem.ID).
			Float64("score", bestScore).
			Str("file", bestName).
			Msg("anitousen file failure")
		return "", false
	}
	return bestName, true
}

// expectedShowType maps the catalog's release type onto the tag vocabulary
// AniTousen filenames use. Unknown or missing entries are assumed TV.
func expectedShowType(aod *models.AODAnime) string {
	if aod == nil {
		return "tv"
	}
	switch strings.ToUpper(aod.AnimeType) {
	case "TV":
		return "tv"
	case "OVA":
		return "ova"
	case "ONA":
		return "ona"
	case "SPECIAL":
		return "special"
	case "MOVIE":
		return "movie"
	case "GAME":
		return "game"
	default:
		return "tv"
	}
}

// seasonTitles collects every known spelling of the anime's title, catalog
// synonyms and offline-database synonyms included, for season inference.
func seasonTitles(anime *models.Anime, aod *models.AODAnime) []string {
	titles := make([]string, 0, 4+len(anime.Synonyms))
	titles = append(titles, anime.TitleRo, anime.TitleEn, anime.TitleJp, anime.TitleRu)
	titles = append(titles, anime.Synonyms...)
	if aod != nil {
		titles = append(titles, aod.Synonyms...)
	}
	return titles
}
