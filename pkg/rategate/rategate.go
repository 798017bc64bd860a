// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rategate spaces entries into a shared resource by a minimum
// interval, optionally admitting only one caller at a time.
package rategate

import (
	"context"
	"sync"
	"time"
)

// Gate admits callers no closer together than the configured interval.
// The interval is measured entry to entry, not exit to entry. A serialized
// gate additionally keeps the section exclusive until the caller signals
// completion.
type Gate struct {
	mu        sync.Mutex
	interval  time.Duration
	startTime time.Time
	lastEntry time.Duration

	// cap-1 semaphore, allocated only for serialized gates
	sem chan struct{}
}

// New returns a gate with the given minimum interval between entries.
// A non-positive interval disables spacing; the gate then only serializes
// (when asked to) and otherwise admits immediately.
func New(interval time.Duration, serialize bool) *Gate {
	g := &Gate{
		interval:  interval,
		startTime: time.Now(),
		lastEntry: -1,
	}
	if serialize {
		g.sem = make(chan struct{}, 1)
	}
	return g
}

// Wait blocks until the gate admits the caller, honoring ctx. On success it
// returns a done func to call when the gated work finishes (extra calls are
// no-ops; for non-serialized gates the func does nothing). On cancellation it
// returns ctx.Err() without entering.
func (g *Gate) Wait(ctx context.Context) (func(), error) {
	if g.sem != nil {
		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := g.waitInterval(ctx); err != nil {
		if g.sem != nil {
			<-g.sem
		}
		return nil, err
	}

	if g.sem == nil {
		return func() {}, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-g.sem })
	}, nil
}

// Do runs fn inside the gate.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done, err := g.Wait(ctx)
	if err != nil {
		return err
	}
	defer done()
	return fn(ctx)
}

func (g *Gate) waitInterval(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := time.Since(g.startTime)
		if g.interval <= 0 || g.lastEntry < 0 || now-g.lastEntry >= g.interval {
			g.lastEntry = now
			return nil
		}

		wait := g.lastEntry + g.interval - now
		timer := time.NewTimer(wait)
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			g.mu.Lock()
			return ctx.Err()
		case <-timer.C:
			g.mu.Lock()
		}
	}
}
