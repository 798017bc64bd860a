// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/mozhaa/hanyuu/pkg/filelist"
)

// inFlightEntry carries the fields of one queued torrent the collector
// reports on.
type inFlightEntry struct {
	InfoHash string    `json:"infohash"`
	AddedOn  time.Time `json:"added_on"`
}

// InFlightCollector reads the torrent in-flight list on every scrape and
// reports how many downloads are queued and how long the oldest has been
// waiting.
type InFlightCollector struct {
	listPath string

	inFlightDesc  *prometheus.Desc
	oldestAgeDesc *prometheus.Desc
}

func NewInFlightCollector(listPath string) *InFlightCollector {
	return &InFlightCollector{
		listPath: listPath,
		inFlightDesc: prometheus.NewDesc(
			"hanyuu_torrents_inflight",
			"Torrents queued in qBittorrent awaiting completion",
			nil, nil,
		),
		oldestAgeDesc: prometheus.NewDesc(
			"hanyuu_torrents_inflight_oldest_age_seconds",
			"Age of the oldest queued torrent",
			nil, nil,
		),
	}
}

func (c *InFlightCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlightDesc
	ch <- c.oldestAgeDesc
}

func (c *InFlightCollector) Collect(ch chan<- prometheus.Metric) {
	list, err := filelist.JSON[inFlightEntry](c.listPath, filelist.ReadOnly())
	if err != nil {
		log.Debug().Err(err).Str("path", c.listPath).Msg("in-flight list unreadable, skipping scrape")
		return
	}
	entries := append([]inFlightEntry(nil), list.Items()...)
	if err := list.Close(false); err != nil {
		log.Debug().Err(err).Str("path", c.listPath).Msg("failed to close in-flight list")
	}

	ch <- prometheus.MustNewConstMetric(c.inFlightDesc, prometheus.GaugeValue, float64(len(entries)))

	var oldest time.Time
	for _, e := range entries {
		if oldest.IsZero() || e.AddedOn.Before(oldest) {
			oldest = e.AddedOn
		}
	}
	age := 0.0
	if !oldest.IsZero() {
		age = time.Since(oldest).Seconds()
	}
	ch <- prometheus.MustNewConstMetric(c.oldestAgeDesc, prometheus.GaugeValue, age)
}
