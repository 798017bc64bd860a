// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matching holds the string and number affinity kernels the find
// strategies rank candidates with. All scores are normalized to [0, 1]
// unless a function says otherwise.
package matching

import "math"

// Similarity decays from 1 as x moves away from y. sigma shifts the decay
// onset (log10), p sets its steepness, and k adds a hard linear falloff that
// zeroes the score at |x-y| = 1/k.
func Similarity(x, y, sigma, p, k float64) float64 {
	d := math.Abs(x - y)
	return math.Max(0, 1-d*k) / (1 + math.Pow(10, sigma)*math.Pow(d, p))
}

// DurationSimilarity compares a measured duration x against an expected one.
// Clips shorter than expected lose score much faster than clips running over,
// which merely drift toward the linear cutoff.
func DurationSimilarity(x, y float64) float64 {
	if x < y {
		return Similarity(x, y, -1, 4, 0)
	}
	return Similarity(x, y, -8, 6, 0.008)
}

// Contrast pushes scores below 0.5 toward 0 and above 0.5 toward 1, keeping
// the endpoints and midpoint fixed. Larger k exaggerates the split.
func Contrast(x, k float64) float64 {
	if x < 0.5 {
		return math.Pow(x*2, k) / 2
	}
	return 1 - math.Pow((1-x)*2, k)/2
}

// Divergence scores how close two ordinals are: 1 when equal, decaying as
// 1/(1+|x-y|)^p.
func Divergence(x, y, p float64) float64 {
	return 1 / math.Pow(1+math.Abs(x-y), p)
}
