// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/pkg/filelist"
)

// fakeFinder records the qitems it was asked to inspect.
type fakeFinder struct {
	name string
	ran  []int64
	err  error
}

func (f *fakeFinder) Name() string { return f.name }

func (f *fakeFinder) Run(_ context.Context, qitemID int64) error {
	f.ran = append(f.ran, qitemID)
	return f.err
}

func TestSourceFindCycleProcessesBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	cfg := testConfig(t)

	q1 := seedQItem(t, ctx, db, 1, 1)
	q2 := seedQItem(t, ctx, db, 2, 1)
	covered := seedQItem(t, ctx, db, 3, 1)
	seedSource(t, ctx, db, covered.ID, models.PlatformYtdlp, "fake")

	finder := &fakeFinder{name: "fake"}
	w := NewSourceFind(
		SourceFindOptions{MaxNoFetch: time.Minute, Wait: time.Second},
		models.NewQItemStore(db), nil, testManager(t), cfg, testLogger(),
	)

	idle, err := w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.False(t, idle)
	assert.ElementsMatch(t, []int64{q1.ID, q2.ID}, finder.ran)

	// Everything inspected once lands in the processed list.
	list, err := filelist.Ints(filepath.Join(cfg.WorkerDir("source", "find"), "processed_fake.txt"), filelist.ReadOnly())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{q1.ID, q2.ID}, list.Items())
	require.NoError(t, list.Close(false))

	// Second pass has nothing left and reports idle.
	idle, err = w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.True(t, idle)
	assert.Len(t, finder.ran, 2)
}

func TestSourceFindCycleStopsWhenBatchIsStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	cfg := testConfig(t)

	seedQItem(t, ctx, db, 1, 1)
	seedQItem(t, ctx, db, 2, 1)

	finder := &fakeFinder{name: "fake"}
	w := NewSourceFind(
		SourceFindOptions{MaxNoFetch: 0, Wait: time.Second},
		models.NewQItemStore(db), nil, testManager(t), cfg, testLogger(),
	)

	// A zero batch lifetime forces a refetch after every inspection.
	idle, err := w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.False(t, idle)
	assert.Len(t, finder.ran, 1)

	idle, err = w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.False(t, idle)
	assert.Len(t, finder.ran, 2)
}

func TestSourceFindCycleMarksFailedRunsProcessed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	cfg := testConfig(t)

	qitem := seedQItem(t, ctx, db, 1, 1)

	finder := &fakeFinder{name: "fake", err: errors.New("upstream said no")}
	w := NewSourceFind(
		SourceFindOptions{MaxNoFetch: time.Minute, Wait: time.Second},
		models.NewQItemStore(db), nil, testManager(t), cfg, testLogger(),
	)

	idle, err := w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.False(t, idle)
	assert.Equal(t, []int64{qitem.ID}, finder.ran)

	// The failure does not earn the qitem another attempt.
	idle, err = w.cycle(ctx, finder, w.log)
	require.NoError(t, err)
	assert.True(t, idle)
	assert.Len(t, finder.ran, 1)
}

func TestSourceFindStartRequiresStrategies(t *testing.T) {
	t.Parallel()

	w := NewSourceFind(SourceFindOptions{}, nil, nil, testManager(t), testConfig(t), testLogger())
	require.Error(t, w.Start(context.Background()))
}
