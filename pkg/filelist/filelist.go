// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package filelist persists small work lists as flat files guarded by an
// advisory file lock, so several worker processes on one host can share them.
//
// A list is opened, mutated in memory and then closed; Close(true) writes the
// items back, Close(false) discards the changes. The lock is held for the
// whole open-close window. Two encodings exist: one integer per line, and a
// single JSON array. A given file must always be opened with the same flavor.
package filelist

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// List is a locked, file-backed slice of items.
type List[T comparable] struct {
	path     string
	lock     *os.File
	items    []T
	decode   func([]byte) ([]T, error)
	encode   func([]T) ([]byte, error)
	readOnly bool
	closed   bool
}

type options struct {
	readOnly bool
}

type Option func(*options)

// ReadOnly opens the list for inspection only; Close never writes.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// Ints opens a line-oriented list of integers at path, creating state for an
// empty list when the file does not exist yet.
func Ints(path string, opts ...Option) (*List[int64], error) {
	return open(path, decodeInts, encodeInts, opts...)
}

// JSON opens a list stored as a single JSON array of T.
func JSON[T comparable](path string, opts ...Option) (*List[T], error) {
	return open(path, decodeJSON[T], encodeJSON[T], opts...)
}

func open[T comparable](path string, decode func([]byte) ([]T, error), encode func([]T) ([]byte, error), opts ...Option) (*List[T], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		releaseLock(lock)
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var items []T
	if len(data) > 0 {
		items, err = decode(data)
		if err != nil {
			releaseLock(lock)
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}

	return &List[T]{
		path:     path,
		lock:     lock,
		items:    items,
		decode:   decode,
		encode:   encode,
		readOnly: o.readOnly,
	}, nil
}

// Items returns the current in-memory items. The returned slice is the live
// snapshot; Replace installs a new one.
func (l *List[T]) Items() []T {
	return l.items
}

func (l *List[T]) Len() int {
	return len(l.items)
}

func (l *List[T]) Contains(item T) bool {
	for _, it := range l.items {
		if it == item {
			return true
		}
	}
	return false
}

func (l *List[T]) Append(items ...T) {
	l.items = append(l.items, items...)
}

func (l *List[T]) Replace(items []T) {
	l.items = items
}

// Close releases the lock. With commit set (and the list not read-only) the
// in-memory items are written back first.
func (l *List[T]) Close(commit bool) error {
	if l.closed {
		return nil
	}
	l.closed = true

	var writeErr error
	if commit && !l.readOnly {
		data, err := l.encode(l.items)
		if err != nil {
			writeErr = errors.Wrapf(err, "encode %s", l.path)
		} else if err := os.WriteFile(l.path, data, 0o644); err != nil {
			writeErr = errors.Wrapf(err, "write %s", l.path)
		}
	}

	if err := releaseLock(l.lock); err != nil && writeErr == nil {
		writeErr = errors.Wrapf(err, "unlock %s", l.path)
	}
	return writeErr
}

func decodeInts(data []byte) ([]int64, error) {
	var items []int64
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, nil
}

func encodeInts(items []int64) ([]byte, error) {
	var sb strings.Builder
	for _, n := range items {
		sb.WriteString(strconv.FormatInt(n, 10))
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

func decodeJSON[T comparable](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeJSON[T comparable](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.MarshalIndent(items, "", "  ")
}
