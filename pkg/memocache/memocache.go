// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package memocache is a small embedded key/value cache for fetched pages,
// stored in its own SQLite file with per-entry compression. A recorded NULL
// value means "the upstream has nothing for this key", which is as cacheable
// as a real answer.
//
// Writes are last-writer-wins upserts, so concurrent fetchers may both
// compute a value and race to store it without harm. Entries never expire;
// deleting the cache file resets it.
package memocache

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS page (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE,
	value BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Entry is a cache hit. A nil Value with Absent set records that the fetch
// legitimately produced nothing.
type Entry struct {
	Value  []byte
	Absent bool
}

// Cache is a compressed page cache backed by one SQLite file. The compression
// encoding is fixed per cache file; reopening with a different encoding makes
// old entries undecodable.
type Cache struct {
	conn  *sql.DB
	codec codec
}

type Option func(*Cache) error

// WithEncoding selects the per-entry compression. The default is zlib.
func WithEncoding(enc Encoding) Option {
	return func(c *Cache) error {
		codec, err := newCodec(enc)
		if err != nil {
			return err
		}
		c.codec = codec
		return nil
	}
}

// Open opens (creating if needed) the cache file at path.
func Open(path string, opts ...Option) (*Cache, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open memo cache")
	}
	conn.SetMaxOpenConns(1)

	c := &Cache{conn: conn}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if c.codec == nil {
		c.codec, _ = newCodec(EncodingZlib)
	}

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "memo cache pragma")
		}
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "memo cache schema")
	}

	return c, nil
}

func (c *Cache) Close() error {
	return c.conn.Close()
}

// Get returns the entry for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	var value []byte
	var present bool
	err := c.conn.QueryRowContext(ctx, "SELECT value, value IS NOT NULL FROM page WHERE key = ?", key).Scan(&value, &present)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "memo cache get")
	}
	if !present {
		return &Entry{Absent: true}, nil
	}
	decoded, err := c.codec.decode(value)
	if err != nil {
		return nil, errors.Wrapf(err, "memo cache decode key %q", key)
	}
	return &Entry{Value: decoded}, nil
}

// Put stores value under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	encoded, err := c.codec.encode(value)
	if err != nil {
		return errors.Wrap(err, "memo cache encode")
	}
	return c.upsert(ctx, key, encoded)
}

// PutAbsent records that key has no value upstream.
func (c *Cache) PutAbsent(ctx context.Context, key string) error {
	return c.upsert(ctx, key, nil)
}

func (c *Cache) upsert(ctx context.Context, key string, encoded []byte) error {
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO page (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, encoded)
	return errors.Wrap(err, "memo cache put")
}

// Fetch produces the value for a key. Returning a nil slice with a nil error
// records upstream absence.
type Fetch func(ctx context.Context, key string) ([]byte, error)

// Memoize wraps fetch with the cache: hits skip the fetch entirely, misses
// store whatever the fetch produced. The wrapped func reports recorded
// absence the same way the fetch does, as a nil slice.
func (c *Cache) Memoize(fetch Fetch) Fetch {
	return func(ctx context.Context, key string) ([]byte, error) {
		entry, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			if entry.Absent {
				return nil, nil
			}
			return entry.Value, nil
		}

		value, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if value == nil {
			if err := c.PutAbsent(ctx, key); err != nil {
				return nil, err
			}
			return nil, nil
		}
		if err := c.Put(ctx, key, value); err != nil {
			return nil, err
		}
		return value, nil
	}
}
