// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "zero", d: 0, want: "00:00:00"},
		{name: "whole seconds", d: 50 * time.Second, want: "00:00:50"},
		{name: "hours and minutes", d: time.Hour + 2*time.Minute + 3*time.Second, want: "01:02:03"},
		{name: "microseconds", d: time.Second + 500*time.Millisecond, want: "00:00:01.500000"},
		{name: "single microsecond", d: time.Second + time.Microsecond, want: "00:00:01.000001"},
		{name: "negative clamps to zero", d: -time.Second, want: "00:00:00"},
		{name: "over a day keeps counting hours", d: 25 * time.Hour, want: "25:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, FormatClock(tt.d))
		})
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "zero", input: "00:00:00", want: 0},
		{name: "whole seconds", input: "00:00:50", want: 50 * time.Second},
		{name: "with microseconds", input: "00:01:05.250000", want: time.Minute + 5*time.Second + 250*time.Millisecond},
		{name: "short fraction", input: "00:00:01.5", want: time.Second + 500*time.Millisecond},
		{name: "missing parts", input: "1:05", wantErr: true},
		{name: "minutes out of range", input: "00:61:00", wantErr: true},
		{name: "seconds out of range", input: "00:00:61", wantErr: true},
		{name: "junk fraction", input: "00:00:00.abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseClock(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockRoundTrip(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{
		0,
		50 * time.Second,
		time.Hour + 23*time.Minute + 45*time.Second,
		17*time.Second + 123456*time.Microsecond,
	} {
		parsed, err := ParseClock(FormatClock(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
}
