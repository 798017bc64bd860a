// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package download

import (
	"context"
	"os"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies"
)

// Local accepts files already on disk. There is nothing to fetch, but the
// file still has to be a playable video before it may feed a render.
type Local struct {
	sources *models.QItemSourceStore
	prober  MediaProber
}

func NewLocal(deps Deps) *Local {
	return &Local{sources: deps.Sources, prober: deps.Prober}
}

func (b *Local) Name() string     { return "local" }
func (b *Local) Platform() string { return models.PlatformLocal }
func (b *Local) Deferred() bool   { return false }

func (b *Local) Download(ctx context.Context, source *models.QItemSource) error {
	if source.Path == "" {
		return strategies.InvalidSourcef("local source %d has no path", source.ID)
	}
	if _, err := os.Stat(source.Path); err != nil {
		return strategies.InvalidSourcef("local file %q is not readable: %v", source.Path, err)
	}

	info, err := b.prober.Probe(ctx, source.Path)
	if err != nil {
		return strategies.WrapTemporary(err, "probe local file")
	}
	if !info.Playable() {
		return strategies.InvalidSourcef("local file %q lacks a video or audio stream", source.Path)
	}

	return b.sources.SetLocalFile(ctx, source.ID, source.Path)
}
