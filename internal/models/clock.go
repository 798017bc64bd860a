// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"fmt"
	"strings"
	"time"
)

// FormatClock renders a duration as HH:MM:SS, appending a six-digit
// fractional part only when the duration is not a whole second. The result is
// stored verbatim in timing columns and handed to ffmpeg as a seek position.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	micros := d.Microseconds()
	frac := micros % 1_000_000
	secs := micros / 1_000_000
	h := secs / 3600
	m := secs % 3600 / 60
	s := secs % 60
	if frac == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, frac)
}

// ParseClock parses HH:MM:SS with an optional fractional second part.
func ParseClock(raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	base, fracPart, hasFrac := strings.Cut(value, ".")

	parts := strings.Split(base, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	var h, m, s int
	if _, err := fmt.Sscanf(base, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	if h < 0 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 {
			return 0, fmt.Errorf("invalid clock value %q", raw)
		}
		for _, ch := range fracPart {
			if ch < '0' || ch > '9' {
				return 0, fmt.Errorf("invalid clock value %q", raw)
			}
		}
		// Right-pad to nanoseconds.
		padded := fracPart + strings.Repeat("0", 9-len(fracPart))
		var nanos int64
		if _, err := fmt.Sscanf(padded, "%d", &nanos); err != nil {
			return 0, fmt.Errorf("invalid clock value %q", raw)
		}
		d += time.Duration(nanos)
	}
	return d, nil
}
