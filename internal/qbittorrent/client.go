// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent talks to the one qBittorrent instance the pipeline
// parks its torrents in. Torrents are added paused with every file set to
// "don't download", then individual files are flipped on as sources ask
// for them, so a pack torrent only ever pulls the episodes we need.
package qbittorrent

import (
	"context"
	"io"
	stdlog "log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"

	"github.com/mozhaa/hanyuu/internal/domain"
)

// File priorities understood by the qBittorrent WebAPI.
const (
	PriorityDoNotDownload = 0
	PriorityNormal        = 1
	PriorityHigh          = 6
)

// Category tags every torrent the pipeline adds, so operators can tell
// them apart from their own seeding in the qBittorrent UI.
const Category = "hanyuu"

// ErrTorrentNotFound reports that a hash is not registered in the client.
var ErrTorrentNotFound = errors.New("torrent not found in qbittorrent")

// filteredWriter wraps stderr to drop the "unsolicited response" noise
// qBittorrent's HTTP behavior triggers in Go's HTTP client. The messages
// are cosmetic and the library gives us no handle on its transport.
type filteredWriter struct {
	writer io.Writer
}

func (fw *filteredWriter) Write(p []byte) (n int, err error) {
	if strings.Contains(string(p), "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	stdlog.SetOutput(&filteredWriter{writer: os.Stderr})
}

type Client struct {
	qbt *qbt.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewClient builds an unauthenticated client from config. The first call
// that needs the WebAPI logs in lazily, so constructing a client is safe
// even while qBittorrent is down.
func NewClient(cfg *domain.Config) *Client {
	return &Client{
		qbt: qbt.NewClient(qbt.Config{
			Host:     cfg.QbitHost,
			Username: cfg.QbitUsername,
			Password: cfg.QbitPassword,
			Timeout:  30,
		}),
	}
}

func (c *Client) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.qbt.LoginCtx(ctx); err != nil {
		return errors.Wrap(err, "qbittorrent login")
	}
	c.loggedIn = true
	return nil
}

// TorrentByHash returns the torrent registered under hash, or
// ErrTorrentNotFound.
func (c *Client) TorrentByHash(ctx context.Context, hash string) (*qbt.Torrent, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{hash}})
	if err != nil {
		return nil, errors.Wrapf(err, "get torrent %s", hash)
	}
	for i := range torrents {
		if strings.EqualFold(torrents[i].Hash, hash) {
			return &torrents[i], nil
		}
	}
	return nil, errors.Wrapf(ErrTorrentNotFound, "hash %s", hash)
}

// TorrentsByHashes returns the torrents registered under the given hashes,
// keyed by lowercase hash. Hashes unknown to the client are simply absent.
func (c *Client) TorrentsByHashes(ctx context.Context, hashes []string) (map[string]qbt.Torrent, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: hashes})
	if err != nil {
		return nil, errors.Wrap(err, "get torrents by hashes")
	}
	out := make(map[string]qbt.Torrent, len(torrents))
	for _, t := range torrents {
		out[strings.ToLower(t.Hash)] = t
	}
	return out, nil
}

// AddPaused registers the .torrent file at path without starting it,
// saving payload under savePath and tagging it with the pipeline category.
func (c *Client) AddPaused(ctx context.Context, path, savePath, tag string) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	options := map[string]string{
		"savepath": savePath,
		"category": Category,
		"tags":     tag,
		// Both spellings, qBittorrent 5 renamed the field.
		"paused":  "true",
		"stopped": "true",
	}
	if err := c.qbt.AddTorrentFromFileCtx(ctx, path, options); err != nil {
		return errors.Wrapf(err, "add torrent from %s", path)
	}
	return nil
}

// Files lists the torrent's content files.
func (c *Client) Files(ctx context.Context, hash string) (*qbt.TorrentFiles, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	files, err := c.qbt.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "get files of torrent %s", hash)
	}
	return files, nil
}

// SetFilePriorities applies one priority to the given file indexes.
func (c *Client) SetFilePriorities(ctx context.Context, hash string, indexes []int, priority int) error {
	if len(indexes) == 0 {
		return nil
	}
	if err := c.login(ctx); err != nil {
		return err
	}

	if err := c.qbt.SetFilePriorityCtx(ctx, hash, joinIndexes(indexes), priority); err != nil {
		return errors.Wrapf(err, "set priority %d on torrent %s", priority, hash)
	}
	return nil
}

// Resume starts (or restarts) the torrents with the given hashes.
func (c *Client) Resume(ctx context.Context, hashes []string) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	if err := c.qbt.ResumeCtx(ctx, hashes); err != nil {
		return errors.Wrapf(err, "resume torrents %v", hashes)
	}
	return nil
}

// joinIndexes renders file indexes the way the WebAPI wants them: "0|2|7".
func joinIndexes(indexes []int) string {
	var b strings.Builder
	for i, idx := range indexes {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}
