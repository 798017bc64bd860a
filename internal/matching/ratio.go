// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// IndelRatio is the normalized insert/delete similarity of two strings
// (substitutions count as one delete plus one insert): 1 for equal strings,
// 0 for disjoint ones.
func IndelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return float64(2*lcsLength(ra, rb)) / float64(total)
}

// IndelRatioCutoff is IndelRatio snapped to 0 below the cutoff.
func IndelRatioCutoff(a, b string, cutoff float64) float64 {
	r := IndelRatio(a, b)
	if r < cutoff {
		return 0
	}
	return r
}

// TokenSortRatio compares the two strings with their whitespace tokens
// sorted, making it insensitive to word order.
func TokenSortRatio(a, b string) float64 {
	return IndelRatio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared tokens against each side's extras, which
// forgives one side carrying extra words.
func TokenSetRatio(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)

	var inter, onlyA, onlyB []string
	for tok := range sa {
		if sb[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range sb {
		if !sa[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))

	best := IndelRatio(t0, t1)
	if r := IndelRatio(t0, t2); r > best {
		best = r
	}
	if r := IndelRatio(t1, t2); r > best {
		best = r
	}
	return best
}

// TokenRatio is the better of TokenSortRatio and TokenSetRatio.
func TokenRatio(a, b string) float64 {
	s := TokenSortRatio(a, b)
	if t := TokenSetRatio(a, b); t > s {
		return t
	}
	return s
}

// OverlapRatio measures how much of needle survives inside hay, as edit
// similarity normalized by the needle's own length. A short song title buried
// in a long video title still scores near 1.
func OverlapRatio(needle, hay string) float64 {
	rn, rh := []rune(needle), []rune(hay)
	if len(rn) == 0 {
		return 0
	}
	maxLen := len(rn)
	if len(rh) > maxLen {
		maxLen = len(rh)
	}
	dist := fuzzy.LevenshteinDistance(needle, hay)
	return float64(maxLen-dist) / float64(len(rn))
}

func sortedTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
