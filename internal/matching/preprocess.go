// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	nonTitleCharRe = regexp.MustCompile(`[^A-Za-z0-9 \-!?:/]`)
	openingWordRe  = regexp.MustCompile(`\bopening\b`)
	endingWordRe   = regexp.MustCompile(`\bending\b`)
	themeNumRe     = regexp.MustCompile(`\b(op|ed)\b +([0-9]+)`)
	bareThemeRe    = regexp.MustCompile(`\b(op|ed)\b`)
	seasonNumRe    = regexp.MustCompile(`\bseason\b +([0-9]+)`)
	digitRe        = regexp.MustCompile(`[0-9]`)
	multiSpaceRe   = regexp.MustCompile(` {2,}`)

	ordinalSeasonRes = buildOrdinalSeasonRes()
)

func buildOrdinalSeasonRes() []*regexp.Regexp {
	ordinals := []string{"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th", "9th", "10th"}
	res := make([]*regexp.Regexp, len(ordinals))
	for i, ord := range ordinals {
		res[i] = regexp.MustCompile(ord + ` +\bseason\b`)
	}
	return res
}

// Preprocess canonicalizes a video or search title before fuzzy comparison:
// lowercase, punctuation squashed, "opening 2"/"op 2"/"op" folded to "op2"
// ("op" alone means the first theme), season phrasings folded to "sN".
// numWeight > 1 repeats every digit that many times so that numeric
// disagreements cost more than letter typos.
func Preprocess(title string, numWeight int) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title = nonTitleCharRe.ReplaceAllString(title, " ")
	title = openingWordRe.ReplaceAllString(title, "op")
	title = endingWordRe.ReplaceAllString(title, "ed")
	title = themeNumRe.ReplaceAllString(title, "${1}${2}")
	title = bareThemeRe.ReplaceAllString(title, "${1}1")
	title = seasonNumRe.ReplaceAllString(title, "s${1}")
	for i, re := range ordinalSeasonRes {
		title = re.ReplaceAllString(title, "s"+strconv.Itoa(i+1))
	}
	if numWeight > 1 {
		title = digitRe.ReplaceAllStringFunc(title, func(d string) string {
			return strings.Repeat(d, numWeight)
		})
	}
	return multiSpaceRe.ReplaceAllString(title, " ")
}

// KeywordScore counts occurrences of any of the keywords in s (case matters)
// and normalizes by the keyword count, so hitting every keyword once scores 1.
func KeywordScore(keywords []string, s string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	quoted := make([]string, len(keywords))
	for i, w := range keywords {
		quoted[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(strings.Join(quoted, "|"))
	if err != nil {
		return 0
	}
	return float64(len(re.FindAllString(s, -1))) / float64(len(keywords))
}

// ParseClockSeconds reads "H:MM:SS", "M:SS" or "SS" style durations, the
// format video search results report lengths in.
func ParseClockSeconds(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, errors.Errorf("%q is not a valid duration", s)
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, errors.Errorf("%q is not a valid duration", s)
		}
		total = total*60 + float64(n)
	}
	return total, nil
}
