// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package download

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/ytdlp"
)

// Ytdlp pulls web videos through yt-dlp. Files land in the backend's own
// directory under sources, named by row id so reruns overwrite instead of
// piling up.
type Ytdlp struct {
	sources *models.QItemSourceStore
	client  *ytdlp.Client
	cfg     *domain.Config
}

func NewYtdlp(deps Deps) *Ytdlp {
	return &Ytdlp{sources: deps.Sources, client: deps.Ytdlp, cfg: deps.Config}
}

func (b *Ytdlp) Name() string     { return "yt-dlp" }
func (b *Ytdlp) Platform() string { return models.PlatformYtdlp }
func (b *Ytdlp) Deferred() bool   { return false }

func (b *Ytdlp) Download(ctx context.Context, source *models.QItemSource) error {
	dir := filepath.Join(b.cfg.SourcesDir(), b.Name())

	dest, err := b.client.Download(ctx, source.Path, dir, strconv.FormatInt(source.ID, 10))
	if err != nil {
		return err
	}

	return b.sources.SetLocalFile(ctx, source.ID, dest)
}
