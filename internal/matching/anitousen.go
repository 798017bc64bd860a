// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// AniTousen pack files are named
//
//	[AniTousen] <tags> - <song> (<artist>).<ext>
//
// where <tags> is up to five space- or comma-separated tags: a show type
// (TV, OVA, ONA, SP, Movie, Game) with an optional number or range, a theme
// tag (OPn/EDn), a version (vN) and an episode (EPn).
var (
	aniTousenNameRe = regexp.MustCompile(`^\[AniTousen\] (.+?) - (.+) \((.+)\)\..+$`)
	tagNumberRe     = regexp.MustCompile(`^(\d+)-(\d+)|(\d+)$`)
	aniTousenTagsRe = buildAniTousenTagsRe()
)

func buildAniTousenTagsRe() *regexp.Regexp {
	const (
		tag = `([A-Za-z]+)[ -]?(\d+-\d+|\d+)?`
		sep = `(?: |, )`
	)
	optional := `(?:` + tag + sep + `)?`
	last := `(?:` + tag + `)`
	return regexp.MustCompile(`^` + strings.Repeat(optional, 4) + last + `$`)
}

// AniTousenName is one parsed pack filename.
type AniTousenName struct {
	SongName   string
	SongArtist string
	ShowTypes  map[string]int // tv, ova, ona, special, movie, game -> ordinal
	ThemeType  string         // "op" or "ed"
	ThemeNum   int
	Version    int // 0 when unspecified
	Episode    int // 0 when unspecified
}

// ParseAniTousenName parses a pack filename; ok is false when the name does
// not follow the pack convention.
func ParseAniTousenName(filename string) (*AniTousenName, bool) {
	m := aniTousenNameRe.FindStringSubmatch(filename)
	if m == nil {
		return nil, false
	}
	tm := aniTousenTagsRe.FindStringSubmatch(strings.TrimSpace(m[1]))
	if tm == nil {
		return nil, false
	}

	name := &AniTousenName{
		SongName:   m[2],
		SongArtist: m[3],
		ShowTypes:  make(map[string]int),
		ThemeNum:   1,
	}

	for i := 1; i+1 < len(tm); i += 2 {
		tagName := strings.ToLower(tm[i])
		if tagName == "" {
			continue
		}
		if tagName == "sp" {
			tagName = "special"
		}

		num, hasNum := parseTagNumber(tm[i+1])

		switch tagName {
		case "tv", "special", "ona", "ova", "movie", "game":
			if !hasNum {
				num = 1
			}
			name.ShowTypes[tagName] = num
		case "op", "ed":
			name.ThemeType = tagName
			if hasNum {
				name.ThemeNum = num
			} else {
				name.ThemeNum = 1
			}
		case "v":
			if hasNum {
				name.Version = num
			}
		case "ep":
			if hasNum {
				name.Episode = num
			}
		}
	}

	// a handful of pack entries omit the theme tag; they are all openings
	if name.ThemeType == "" {
		name.ThemeType = "op"
	}
	return name, true
}

// parseTagNumber reads "09" or the start of a range like "1-6".
func parseTagNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	m := tagNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		return n, err == nil
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// SeasonScore compares the filename's ordinal for the expected show type
// against the inferred season; a filename tagged with a different show type
// scores 0.
func (n *AniTousenName) SeasonScore(expectedShowType string, season int) float64 {
	num, ok := n.ShowTypes[expectedShowType]
	if !ok {
		return 0
	}
	return Divergence(float64(num), float64(season), 2)
}

func (n *AniTousenName) ThemeNumberScore(number int) float64 {
	return Divergence(float64(n.ThemeNum), float64(number), 2)
}

// SongNameScore is the case-folded similarity of the song titles, zeroed
// below 0.9 so only near-exact matches count.
func (n *AniTousenName) SongNameScore(songName string) float64 {
	if songName == "" || n.SongName == "" {
		return 0
	}
	return IndelRatioCutoff(strings.ToLower(songName), strings.ToLower(n.SongName), 0.9)
}

func (n *AniTousenName) SongArtistScore(artist string) float64 {
	if artist == "" || n.SongArtist == "" {
		return 0
	}
	return IndelRatioCutoff(strings.ToLower(artist), strings.ToLower(n.SongArtist), 0.9)
}

// VersionScore prefers the first cut of a theme: v1 scores 1, later versions
// approach 0.75.
func (n *AniTousenName) VersionScore() float64 {
	const weight = 0.25
	v := n.Version
	if v == 0 {
		v = 1
	}
	return 1 - weight + weight/float64(v)
}

// EpisodeScore prefers themes that are not tied to a single episode.
func (n *AniTousenName) EpisodeScore() float64 {
	if n.Episode == 0 {
		return 1
	}
	return 0.9
}

// Score ranks the filename for a concrete theme. A near-exact song title
// match wins outright (doubled so it beats any tag-derived score); otherwise
// the wrong theme type disqualifies, and the rest is the geometric mean of
// the tag affinities.
func (n *AniTousenName) Score(themeType string, number int, songName, expectedShowType string, season int) float64 {
	if n.SongNameScore(songName) > 0 {
		return n.VersionScore() * 2
	}
	if n.ThemeType != themeType {
		return 0
	}
	product := n.ThemeNumberScore(number) *
		n.SeasonScore(expectedShowType, season) *
		n.VersionScore() *
		n.EpisodeScore()
	return math.Pow(product, 0.25)
}
