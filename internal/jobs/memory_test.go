package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsbrief/models"
)

func sampleSynthesis() *models.Synthesis {
	return &models.Synthesis{
		TopicID: "t1",
		Summary: models.Briefing{Headline: "h", Sections: []models.Section{{Paragraphs: []string{"p"}}}},
		Sources: []models.Source{{URL: "https://example.com/a", Title: "a"}},
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	j, err := s.Create(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, models.JobQueued, j.Status)
	assert.Nil(t, j.StartedAt)

	got, err := s.Get(ctx, j.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, got.Status)

	require.NoError(t, s.Start(ctx, j.ID))
	got, _ = s.Get(ctx, j.ID, "u1")
	assert.Equal(t, models.JobRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, s.Complete(ctx, j.ID, sampleSynthesis()))
	got, _ = s.Get(ctx, j.ID, "u1")
	assert.Equal(t, models.JobDone, got.Status)
	assert.NotNil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestMemoryStoreFail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	j, _ := s.Create(ctx, "t1", "u1")
	require.NoError(t, s.Start(ctx, j.ID))
	require.NoError(t, s.Fail(ctx, j.ID, "no summaries produced"))

	got, err := s.Get(ctx, j.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobError, got.Status)
	assert.Equal(t, "no summaries produced", got.Error)
	assert.Nil(t, got.Result)
}

func TestMemoryStoreRejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	j, _ := s.Create(ctx, "t1", "u1")

	assert.ErrorIs(t, s.Complete(ctx, j.ID, sampleSynthesis()), ErrInvalidTransition)
	assert.ErrorIs(t, s.Fail(ctx, j.ID, "x"), ErrInvalidTransition)

	require.NoError(t, s.Start(ctx, j.ID))
	assert.ErrorIs(t, s.Start(ctx, j.ID), ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(ctx, j.ID, nil), ErrInvalidTransition)

	require.NoError(t, s.Fail(ctx, j.ID, "boom"))
	assert.ErrorIs(t, s.Complete(ctx, j.ID, sampleSynthesis()), ErrInvalidTransition)
	assert.ErrorIs(t, s.Start(ctx, j.ID), ErrInvalidTransition)

	got, _ := s.Get(ctx, j.ID, "u1")
	assert.Equal(t, models.JobError, got.Status)
}

func TestMemoryStoreGetErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	_, err := s.Get(ctx, "missing", "u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	j, _ := s.Create(ctx, "t1", "owner")
	_, err = s.Get(ctx, j.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, s.Start(ctx, "missing"), ErrNotFound)
}

func TestMemoryStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	ids := make([]string, 64)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j, err := s.Create(ctx, fmt.Sprint("t", i), "u")
			if err == nil {
				ids[i] = j.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 64, s.Len())
}

func TestMemoryStoreSweepsExpiredTerminalJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	done, _ := s.Create(ctx, "t", "u")
	require.NoError(t, s.Start(ctx, done.ID))
	require.NoError(t, s.Fail(ctx, done.ID, "x"))
	pending, _ := s.Create(ctx, "t", "u")

	clock = clock.Add(2 * time.Minute)
	_, _ = s.Create(ctx, "t", "u")

	_, err := s.Get(ctx, done.ID, "u")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, pending.ID, "u")
	assert.NoError(t, err)
}

func TestGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	j, _ := s.Create(ctx, "t", "u")
	snap, _ := s.Get(ctx, j.ID, "u")
	require.NoError(t, s.Start(ctx, j.ID))
	assert.Equal(t, models.JobQueued, snap.Status)
}
