// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ytdlp wraps the yt-dlp binary for the two jobs the pipeline
// needs from it: text search over YouTube and downloading a found video.
// Search shells out directly because flat playlist extraction is a plain
// JSON-lines protocol; downloads go through goutubedl, which also hands
// us the probed metadata. When browser cookies are configured, downloads
// shell out too, since goutubedl exposes no cookies-from-browser option.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/wader/goutubedl"

	"github.com/mozhaa/hanyuu/internal/strategies"
	"github.com/mozhaa/hanyuu/internal/strategies/find"
)

// FormatSelector prefers exactly 720p, then anything between 720p and
// 1080p, then whatever is best. Sources hotter than 1080p waste render
// time without improving a 1280x720 quiz part.
const FormatSelector = "bv*[height=720]+ba/b[height=720]/" +
	"bv*[height>720][height<=1080]+ba/b[height>720][height<=1080]/bv*+ba/b"

const (
	searchTimeout   = 60 * time.Second
	downloadTimeout = 30 * time.Minute
)

type Client struct {
	log zerolog.Logger
	// cookiesFromBrowser is handed to yt-dlp for age restricted videos,
	// e.g. "firefox". Empty disables it.
	cookiesFromBrowser string
}

func New(log zerolog.Logger, cookiesFromBrowser string) *Client {
	return &Client{
		log:                log.With().Str("module", "ytdlp").Logger(),
		cookiesFromBrowser: cookiesFromBrowser,
	}
}

// Search runs a "ytsearchN:" query and returns the flat playlist hits in
// ranking order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]find.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "yt-dlp", searchArgs(c.cookiesFromBrowser, limit, query)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classify(errors.Wrapf(err, "yt-dlp search failed: %s", strings.TrimSpace(stderr.String())))
	}

	return parseSearchOutput(stdout.Bytes())
}

func parseSearchOutput(out []byte) ([]find.SearchResult, error) {
	var results []find.SearchResult

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Duration float64 `json:"duration"`
		}
		if err := json.Unmarshal(line, &entry); err != nil || entry.ID == "" {
			continue
		}

		results = append(results, find.SearchResult{
			Title:    entry.Title,
			Link:     "https://www.youtube.com/watch?v=" + entry.ID,
			Duration: entry.Duration,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan yt-dlp output")
	}

	return results, nil
}

// Download fetches url into dir as "<stem>.<ext>", where the extension
// comes from the probed video info, and returns the final path.
func (c *Client) Download(ctx context.Context, url, dir, stem string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download dir")
	}

	// Age restricted videos probe and download only with the operator's
	// browser cookies, which have to be passed on the command line.
	if c.cookiesFromBrowser != "" {
		return c.downloadWithCookies(ctx, url, dir, stem)
	}

	result, err := goutubedl.New(ctx, url, goutubedl.Options{Type: goutubedl.TypeSingle})
	if err != nil {
		return "", classify(errors.Wrapf(err, "probe %s", url))
	}

	ext := result.Info.Ext
	if ext == "" {
		ext = "mp4"
	}
	dest := filepath.Join(dir, stem+"."+ext)

	c.log.Debug().Str("url", url).Str("dest", dest).Msg("downloading video")

	reader, err := result.Download(ctx, FormatSelector)
	if err != nil {
		return "", classify(errors.Wrapf(err, "download %s", url))
	}
	defer reader.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "create download file")
	}

	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", strategies.WrapTemporary(err, "copy download stream")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", errors.Wrap(err, "close download file")
	}

	return dest, nil
}

// downloadWithCookies runs yt-dlp itself, since goutubedl cannot forward
// --cookies-from-browser. yt-dlp picks the extension, so the output
// template ends in %(ext)s and the result is globbed afterwards.
func (c *Client) downloadWithCookies(ctx context.Context, url, dir, stem string) (string, error) {
	args := downloadArgs(c.cookiesFromBrowser, url, filepath.Join(dir, stem))
	c.log.Debug().Str("url", url).Str("browser", c.cookiesFromBrowser).Msg("downloading video with browser cookies")

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classify(errors.Wrapf(err, "download %s: %s", url, strings.TrimSpace(stderr.String())))
	}

	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return "", errors.Wrap(err, "glob downloaded file")
	}
	if len(matches) == 0 {
		return "", errors.Errorf("yt-dlp succeeded but left no %s.* file in %s", stem, dir)
	}
	return matches[0], nil
}

// searchArgs builds the flat search invocation.
func searchArgs(cookiesFromBrowser string, limit int, query string) []string {
	args := []string{"--flat-playlist", "-j", "--no-warnings"}
	args = appendCookieArgs(args, cookiesFromBrowser)
	return append(args, fmt.Sprintf("ytsearch%d:%s", limit, query))
}

// downloadArgs builds the direct download invocation. destStem is the
// output path without an extension.
func downloadArgs(cookiesFromBrowser, url, destStem string) []string {
	args := []string{"-f", FormatSelector, "--no-warnings", "--no-playlist", "-o", destStem + ".%(ext)s"}
	args = appendCookieArgs(args, cookiesFromBrowser)
	return append(args, url)
}

func appendCookieArgs(args []string, browser string) []string {
	if browser == "" {
		return args
	}
	return append(args, "--cookies-from-browser", browser)
}

// classify folds the known yt-dlp failure messages into the worker
// failure taxonomy. Anything unrecognized means the video itself is gone
// or never existed, which is a permanent failure.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Failed to extract any player response"):
		// Usually no connectivity rather than a broken video.
		return strategies.WrapTemporary(err, "extractor got no response")
	case strings.Contains(msg, "Sign in to confirm your age"):
		return strategies.WrapTemporary(err, "age restricted, needs browser cookies")
	case strings.Contains(msg, "yt-dlp/yt-dlp/issues/7271"):
		return strategies.WrapTemporary(err, "cookie extraction from browser failed")
	case strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "context canceled"):
		return strategies.WrapTemporary(err, "timed out")
	}
	return strategies.InvalidSourcef("yt-dlp failed: %v", err)
}
