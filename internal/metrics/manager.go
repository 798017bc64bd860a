// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes pipeline counters on an isolated prometheus
// registry, optionally served over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Job outcomes, the label values of hanyuu_worker_jobs_total.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeTemporary = "temporary"
	OutcomeError     = "error"
)

type Manager struct {
	registry *prometheus.Registry

	cycles  *prometheus.CounterVec
	jobs    *prometheus.CounterVec
	renders *prometheus.CounterVec
}

// NewManager builds a registry with the Go and process collectors, the
// worker counters, and, when inFlightListPath is non-empty, the in-flight
// torrent gauge read from that list.
func NewManager(inFlightListPath string) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hanyuu_worker_cycles_total",
			Help: "Completed worker cycles",
		}, []string{"worker"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hanyuu_worker_jobs_total",
			Help: "Processed jobs by outcome",
		}, []string{"worker", "outcome"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hanyuu_quiz_parts_rendered_total",
			Help: "Quiz parts rendered by style",
		}, []string{"style"}),
	}

	registry.MustRegister(m.cycles, m.jobs, m.renders)

	if inFlightListPath != "" {
		registry.MustRegister(NewInFlightCollector(inFlightListPath))
	}

	return m
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// CycleDone counts one finished pass of a worker loop.
func (m *Manager) CycleDone(worker string) {
	m.cycles.WithLabelValues(worker).Inc()
}

// JobDone counts one processed unit of work with its outcome.
func (m *Manager) JobDone(worker, outcome string) {
	m.jobs.WithLabelValues(worker, outcome).Inc()
}

// RenderDone counts one successfully rendered quiz part.
func (m *Manager) RenderDone(style string) {
	m.renders.WithLabelValues(style).Inc()
}
