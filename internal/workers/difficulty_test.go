// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/models"
	"github.com/mozhaa/hanyuu/internal/strategies/difficulty"
)

func TestDifficultyCycleHandlesOneQItemPerEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	qitems := models.NewQItemStore(db)
	difficulties := models.NewQItemDifficultyStore(db)

	seedQItem(t, ctx, db, 1, 1)
	seedQItem(t, ctx, db, 2, 1)

	strat, err := difficulty.New(difficulty.NameRandom, difficulty.Deps{Difficulties: difficulties})
	require.NoError(t, err)

	w := NewDifficulty(time.Millisecond, qitems, []difficulty.Strategy{strat}, testManager(t), testLogger())

	// One qitem per gate entry: coverage grows by one per cycle.
	require.NoError(t, w.cycle(ctx))
	ids, err := qitems.IDsWithoutDifficultyBy(ctx, difficulty.NameRandom)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	require.NoError(t, w.cycle(ctx))
	ids, err = qitems.IDsWithoutDifficultyBy(ctx, difficulty.NameRandom)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Fully graded: another cycle is a no-op.
	require.NoError(t, w.cycle(ctx))
	ids, err = qitems.IDsWithoutDifficultyBy(ctx, difficulty.NameRandom)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDifficultyCycleSkipsAlreadyGradedQItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	qitems := models.NewQItemStore(db)
	difficulties := models.NewQItemDifficultyStore(db)

	graded := seedQItem(t, ctx, db, 1, 1)
	seedDifficulty(t, ctx, db, graded.ID, 80, difficulty.NameRandom)
	pending := seedQItem(t, ctx, db, 2, 1)

	strat, err := difficulty.New(difficulty.NameRandom, difficulty.Deps{Difficulties: difficulties})
	require.NoError(t, err)

	w := NewDifficulty(time.Millisecond, qitems, []difficulty.Strategy{strat}, testManager(t), testLogger())

	ids, err := qitems.IDsWithoutDifficultyBy(ctx, difficulty.NameRandom)
	require.NoError(t, err)
	require.Equal(t, []int64{pending.ID}, ids)

	require.NoError(t, w.cycle(ctx))
	ids, err = qitems.IDsWithoutDifficultyBy(ctx, difficulty.NameRandom)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDifficultyStartRequiresStrategies(t *testing.T) {
	t.Parallel()

	w := NewDifficulty(time.Millisecond, nil, nil, testManager(t), testLogger())
	require.Error(t, w.Start(context.Background()))
}
