// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"fmt"
	"strings"
)

// Category is the kind of anime song a quiz item is built from.
type Category string

const (
	CategoryOpening Category = "opening"
	CategoryEnding  Category = "ending"
)

// ParseCategory accepts both the full and the common short form.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "op", "opening":
		return CategoryOpening, nil
	case "ed", "ending":
		return CategoryEnding, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

func (c Category) String() string {
	return string(c)
}

// Short returns the conventional two-letter form used in titles and filenames.
func (c Category) Short() string {
	switch c {
	case CategoryOpening:
		return "OP"
	case CategoryEnding:
		return "ED"
	default:
		return strings.ToUpper(string(c))
	}
}

// Display returns the capitalized word used in search queries.
func (c Category) Display() string {
	switch c {
	case CategoryOpening:
		return "Opening"
	case CategoryEnding:
		return "Ending"
	default:
		return string(c)
	}
}

func (c Category) Valid() bool {
	return c == CategoryOpening || c == CategoryEnding
}
