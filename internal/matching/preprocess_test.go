// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		numWeight int
		expected  string
	}{
		{"category word folded", "Naruto Opening 2", 1, "naruto op2"},
		{"bare theme means first", "Bleach ED", 1, "bleach ed1"},
		{"ordinal season folded", "Show 2nd Season OP", 1, "show s2 op1"},
		{"season number folded", "Show Season 3 Ending 1", 1, "show s3 ed1"},
		{"kept punctuation", "Fate/Zero OP", 1, "fate/zero op1"},
		{"digit weighting", "K-On!! Ending 1", 5, "k-on!! ed11111"},
		{"noise squashed", "Naruto　OP*1", 1, "naruto op1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Preprocess(tt.title, tt.numWeight))
		})
	}
}

func TestKeywordScore(t *testing.T) {
	helpers := []string{"Creditless", "4K", "HD", "1080p"}

	assert.InDelta(t, 0.75, KeywordScore(helpers, "Naruto OP1 Creditless 1080p HD"), 1e-9)
	assert.Equal(t, 0.0, KeywordScore(helpers, "Naruto OP1"))

	// matching is case sensitive, as uploads advertise these in caps
	assert.Equal(t, 0.0, KeywordScore(helpers, "creditless"))

	assert.Equal(t, 0.0, KeywordScore(nil, "anything"))
}

func TestParseClockSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1:30", 90, false},
		{"0:01:30", 90, false},
		{"90", 90, false},
		{"1:02:03", 3723, false},
		{"", 0, true},
		{"x", 0, true},
		{"1:2:3:4", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClockSeconds(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
