// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozhaa/hanyuu/internal/models"
)

func TestNewPickerRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := newPicker("bogus", 0)
	require.ErrorContains(t, err, "unknown picker")
}

func TestSimplePickerStaysInRange(t *testing.T) {
	t.Parallel()

	p := simplePicker{}
	for range 200 {
		idx := p.pick(5)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 5)
	}
}

func TestMemoryPickerAvoidsRecentPicks(t *testing.T) {
	t.Parallel()

	p := &memoryPicker{size: 3}
	var picks []int
	for range 200 {
		picks = append(picks, p.pick(10))
	}

	for i, idx := range picks {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 10)
		for back := 1; back <= 3 && back <= i; back++ {
			require.NotEqual(t, picks[i-back], idx, "pick %d repeats within the memory window", i)
		}
	}
}

func TestMemoryPickerForgetsWhenMemoryCoversPool(t *testing.T) {
	t.Parallel()

	// Two candidates and three slots of memory would ban everything;
	// forgetting the oldest picks forces strict alternation instead.
	p := &memoryPicker{size: 3}
	var picks []int
	for range 20 {
		picks = append(picks, p.pick(2))
	}
	for i := 1; i < len(picks); i++ {
		assert.NotEqual(t, picks[i-1], picks[i])
	}

	// A single candidate still terminates.
	single := &memoryPicker{size: 5}
	for range 10 {
		assert.Equal(t, 0, single.pick(1))
	}
}

func TestMemoryPickerWithoutMemoryActsSimple(t *testing.T) {
	t.Parallel()

	p := &memoryPicker{size: 0}
	seen := make(map[int]bool)
	for range 200 {
		seen[p.pick(2)] = true
	}
	// With no memory both indexes keep coming up.
	assert.True(t, seen[0])
	assert.True(t, seen[1])
}

func TestQuizRunRequiresPositiveCount(t *testing.T) {
	t.Parallel()

	w := NewQuiz(QuizOptions{Count: 0, Picker: PickerSimple}, nil, testConfig(t), testLogger())
	_, err := w.Run(context.Background())
	require.ErrorContains(t, err, "positive part count")
}

func TestQuizRunRequiresRenderedParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)

	w := NewQuiz(QuizOptions{Count: 3, Picker: PickerSimple}, parts, testConfig(t), testLogger())
	_, err := w.Run(ctx)
	require.ErrorContains(t, err, "no rendered quiz parts")
}

func TestQuizRunRejectsUnknownPicker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openWorkerDB(t)
	parts := models.NewQuizPartStore(db)
	timing, difficulty := seedRenderable(t, ctx, db)

	part, err := parts.CreatePlaceholder(ctx, timing.ID, difficulty.ID, "classic")
	require.NoError(t, err)
	require.NoError(t, parts.SetLocalFile(ctx, part.ID, "videos/quizparts/1.mkv"))

	w := NewQuiz(QuizOptions{Count: 3, Picker: "bogus"}, parts, testConfig(t), testLogger())
	_, err = w.Run(ctx)
	require.ErrorContains(t, err, "unknown picker")
}
