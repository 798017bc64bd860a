// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"regexp"
	"strconv"
)

var (
	seasonPhraseRe = regexp.MustCompile(`(?i)(?:season *(\d+)|(\d+)(?:st|nd|rd|th)? *season|\bs(\d+)\b)`)
	bareNumberRe   = regexp.MustCompile(`\b(\d+)\b`)
)

// Season infers which season a show is from its titles and synonyms. An
// explicit season phrasing in any title wins immediately; failing that, a
// bare number has to recur across more than three titles to be believed.
// Everything else is season 1.
func Season(titles []string) int {
	counts := make(map[int]int)
	var order []int

	for _, title := range titles {
		if title == "" {
			continue
		}
		if m := seasonPhraseRe.FindStringSubmatch(title); m != nil {
			for _, g := range m[1:] {
				if g == "" {
					continue
				}
				if n, err := strconv.Atoi(g); err == nil {
					return n
				}
			}
		}
		if m := bareNumberRe.FindStringSubmatch(title); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if counts[n] == 0 {
				order = append(order, n)
			}
			counts[n]++
		}
	}

	best, quantity := 0, 0
	for _, n := range order {
		if counts[n] > quantity {
			best, quantity = n, counts[n]
		}
	}
	if quantity > 3 {
		return best
	}
	return 1
}
