// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// priorityCase builds a CASE expression ranking column values by their
// position in names; unknown values rank below every listed one. Returns the
// expression and the placeholder args in textual order.
func priorityCase(column string, names []string) (string, []any) {
	// Bare 0 would be read as a column position in ORDER BY.
	if len(names) == 0 {
		return "(0)", nil
	}
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	args := make([]any, 0, len(names))
	for i, name := range names {
		b.WriteString(" WHEN ? THEN ")
		b.WriteString(strconv.Itoa(i))
		args = append(args, name)
	}
	b.WriteString(" ELSE ")
	b.WriteString(strconv.Itoa(len(names)))
	b.WriteString(" END")
	return b.String(), args
}

// inPlaceholders returns "?, ?, ..., ?" with n placeholders.
func inPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// prefixedColumns qualifies every column in a comma-separated list with the
// given table alias.
func prefixedColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func marshalStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

func unmarshalStringList(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return values, nil
}

func marshalStringLists(values [][]string) (string, error) {
	if values == nil {
		values = [][]string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal string lists: %w", err)
	}
	return string(data), nil
}

func unmarshalStringLists(data string) ([][]string, error) {
	if data == "" {
		return nil, nil
	}
	var values [][]string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal string lists: %w", err)
	}
	return values, nil
}

type dialecter interface {
	Dialect() string
}

// dialectOf sniffs the SQL dialect from the querier, defaulting to sqlite.
func dialectOf(db any) string {
	if d, ok := db.(dialecter); ok {
		return d.Dialect()
	}
	return "sqlite"
}
