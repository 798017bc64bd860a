// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package download

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mozhaa/hanyuu/internal/domain"
	"github.com/mozhaa/hanyuu/internal/fetch"
	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/qbittorrent"
	"github.com/mozhaa/hanyuu/internal/strategies"
	"github.com/mozhaa/hanyuu/pkg/filelist"
	"github.com/mozhaa/hanyuu/pkg/pathcmp"
)

// Tag on every torrent this backend adds, under the shared category.
const torrentTag = "hanyuu_torrent"

// Torrent queues one file of a (possibly huge) pack torrent in qBittorrent.
// The torrent is added paused with nothing selected, the wanted file is
// flipped to high priority, and the reconciler picks up from there.
type Torrent struct {
	sources *models.QItemSourceStore
	qbit    *qbittorrent.Client
	fetch   *fetch.Client
	cfg     *domain.Config
	log     zerolog.Logger
}

func NewTorrent(deps Deps) *Torrent {
	return &Torrent{
		sources: deps.Sources,
		qbit:    deps.Qbit,
		fetch:   deps.Fetch,
		cfg:     deps.Config,
		log:     deps.Log.With().Str("backend", "torrent").Logger(),
	}
}

func (b *Torrent) Name() string     { return "torrent" }
func (b *Torrent) Platform() string { return models.PlatformTorrent }
func (b *Torrent) Deferred() bool   { return true }

func (b *Torrent) Download(ctx context.Context, source *models.QItemSource) error {
	if source.AdditionalPath == "" {
		return strategies.InvalidSourcef("torrent source %d has no file path inside the torrent", source.ID)
	}

	raw, err := b.torrentBytes(ctx, source.Path)
	if err != nil {
		return err
	}

	var mi metainfo.MetaInfo
	if err := bencode.Unmarshal(raw, &mi); err != nil {
		return strategies.InvalidSourcef("%q is not a valid torrent: %v", source.Path, err)
	}
	hash := mi.HashInfoBytes().HexString()

	queued, err := b.alreadyQueued(source.ID)
	if err != nil {
		return err
	}
	if queued {
		b.log.Debug().Int64("sourceID", source.ID).Str("infohash", hash).Msg("torrent already queued")
		return nil
	}

	fileName, fileIndex, err := b.ensureTorrent(ctx, hash, raw, source)
	if err != nil {
		return err
	}

	if err := b.qbit.SetFilePriorities(ctx, hash, []int{fileIndex}, qbittorrent.PriorityHigh); err != nil {
		return strategies.WrapTemporary(err, "select torrent file")
	}
	if err := b.qbit.Resume(ctx, []string{hash}); err != nil {
		return strategies.WrapTemporary(err, "resume torrent")
	}

	if err := b.enqueue(InFlight{
		InfoHash: hash,
		Name:     fileName,
		SourceID: source.ID,
		AddedOn:  time.Now(),
	}); err != nil {
		return err
	}

	b.log.Info().
		Int64("sourceID", source.ID).
		Str("infohash", hash).
		Str("file", fileName).
		Msg("torrent file queued for download")
	return nil
}

// torrentBytes resolves path into raw .torrent bytes. Magnets carry no
// metadata to hash, so they cannot feed this backend.
func (b *Torrent) torrentBytes(ctx context.Context, path string) ([]byte, error) {
	switch classifyTorrentPath(path) {
	case torrentPathMagnet:
		return nil, strategies.InvalidSourcef("magnet links are unsupported: %q", path)
	case torrentPathURL:
		raw, err := b.fetch.Get(ctx, path)
		if err != nil {
			return nil, strategies.InvalidSourcef("fetch torrent %q: %v", path, err)
		}
		return raw, nil
	case torrentPathLocal:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, strategies.InvalidSourcef("read torrent %q: %v", path, err)
		}
		return raw, nil
	default:
		return nil, strategies.InvalidSourcef("unrecognizable torrent path %q", path)
	}
}

// ensureTorrent makes sure the torrent is registered (paused, nothing
// selected) and returns the client's name and index for the wanted file.
func (b *Torrent) ensureTorrent(ctx context.Context, hash string, raw []byte, source *models.QItemSource) (string, int, error) {
	_, err := b.qbit.TorrentByHash(ctx, hash)
	switch {
	case errors.Is(err, qbittorrent.ErrTorrentNotFound):
		if err := b.addPaused(ctx, hash, raw); err != nil {
			return "", 0, err
		}
	case err != nil:
		return "", 0, strategies.WrapTemporary(err, "look up torrent")
	}

	files, err := b.qbit.Files(ctx, hash)
	if err != nil {
		return "", 0, strategies.WrapTemporary(err, "list torrent files")
	}

	name, index, ok := findTorrentFile(files, source.AdditionalPath)
	if !ok {
		return "", 0, strategies.InvalidSourcef("%q not found in torrent %s", source.AdditionalPath, hash)
	}
	return name, index, nil
}

// findTorrentFile locates additionalPath in the torrent payload, matching
// with and without the root folder. Stored paths sometimes carry a leading
// slash, the client's never do.
func findTorrentFile(files *qbt.TorrentFiles, additionalPath string) (string, int, bool) {
	target := strings.TrimPrefix(pathcmp.Normalize(additionalPath), "/")
	for i := range *files {
		f := &(*files)[i]
		name := pathcmp.Normalize(f.Name)
		if name == target || pathcmp.WithoutRoot(name) == target {
			return f.Name, f.Index, true
		}
	}
	return "", 0, false
}

func (b *Torrent) addPaused(ctx context.Context, hash string, raw []byte) error {
	tmp, err := os.CreateTemp("", "hanyuu-*.torrent")
	if err != nil {
		return errors.Wrap(err, "create temp torrent file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp torrent file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp torrent file")
	}

	// qBittorrent runs as its own process, save paths must be absolute.
	savePath, err := filepath.Abs(filepath.Join(b.cfg.SourcesDir(), b.Name()))
	if err != nil {
		return errors.Wrap(err, "resolve torrent save path")
	}

	if err := b.qbit.AddPaused(ctx, tmp.Name(), savePath, torrentTag); err != nil {
		return strategies.WrapTemporary(err, "add torrent")
	}

	if _, err := b.qbit.TorrentByHash(ctx, hash); err != nil {
		if errors.Is(err, qbittorrent.ErrTorrentNotFound) {
			return strategies.InvalidSourcef("torrent %s did not register after adding", hash)
		}
		return strategies.WrapTemporary(err, "look up added torrent")
	}

	// Nothing downloads until a file is asked for explicitly.
	files, err := b.qbit.Files(ctx, hash)
	if err != nil {
		return strategies.WrapTemporary(err, "list torrent files")
	}
	indexes := make([]int, 0, len(*files))
	for _, f := range *files {
		indexes = append(indexes, f.Index)
	}
	if err := b.qbit.SetFilePriorities(ctx, hash, indexes, qbittorrent.PriorityDoNotDownload); err != nil {
		return strategies.WrapTemporary(err, "deselect torrent files")
	}
	return nil
}

func (b *Torrent) alreadyQueued(sourceID int64) (bool, error) {
	path := InFlightListPath(b.cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.Wrap(err, "create torrent worker dir")
	}

	list, err := filelist.JSON[InFlight](path, filelist.ReadOnly())
	if err != nil {
		return false, err
	}
	defer list.Close(false)

	for _, entry := range list.Items() {
		if entry.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (b *Torrent) enqueue(entry InFlight) error {
	list, err := filelist.JSON[InFlight](InFlightListPath(b.cfg))
	if err != nil {
		return err
	}
	list.Append(entry)
	return list.Close(true)
}

type torrentPathKind int

const (
	torrentPathUnknown torrentPathKind = iota
	torrentPathMagnet
	torrentPathURL
	torrentPathLocal
)

// Characters that cannot appear in a filesystem path but routinely show up
// in garbage inputs. The drive prefix of Windows paths is exempt.
const forbiddenPathChars = `<>":|?*`

func classifyTorrentPath(path string) torrentPathKind {
	if strings.HasPrefix(path, "magnet:") {
		return torrentPathMagnet
	}
	if !strings.HasSuffix(path, ".torrent") {
		return torrentPathUnknown
	}
	if u, err := url.Parse(path); err == nil && len(u.Host) >= 3 {
		return torrentPathURL
	}

	// Only absolute drive spellings are exempt from the colon check; a
	// drive-relative C:pack.torrent resolves against the process cwd and
	// is not accepted.
	local := pathcmp.Normalize(path)
	if pathcmp.IsWindowsDriveAbs(local) {
		local = local[2:]
	}
	if !strings.ContainsAny(local, forbiddenPathChars) {
		return torrentPathLocal
	}
	return torrentPathUnknown
}
