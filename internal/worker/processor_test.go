package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsbrief/internal/aggregator"
	"github.com/mohammad-safakhou/newsbrief/internal/jobs"
	"github.com/mohammad-safakhou/newsbrief/internal/summarize"
	"github.com/mohammad-safakhou/newsbrief/models"
)

type stubFeeds struct {
	feeds []models.Feed
	err   error
}

func (s stubFeeds) ListFeedsForTopic(context.Context, string, string) ([]models.Feed, error) {
	return s.feeds, s.err
}

type stubAgg struct{ articles []models.Article }

func (s stubAgg) Aggregate(context.Context, []models.Feed, int) aggregator.Result {
	return aggregator.Result{Articles: s.articles}
}

type stubSynth struct {
	mu    sync.Mutex
	got   []models.Article
	gate  chan struct{}
	err   error
	panic bool
}

func (s *stubSynth) Run(_ context.Context, topicID string, arts []models.Article) (*models.Synthesis, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.panic {
		panic("boom")
	}
	s.mu.Lock()
	s.got = arts
	s.mu.Unlock()
	if len(arts) == 0 {
		return nil, summarize.ErrNoSummaries
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Synthesis{TopicID: topicID, Sources: []models.Source{{URL: arts[0].URL}}}, nil
}

func TestSubmitReturnsQueuedBeforeProcessing(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	synth := &stubSynth{gate: make(chan struct{})}
	p := NewProcessor(nil, store, stubFeeds{}, stubAgg{articles: []models.Article{{Title: "a", URL: "https://a"}}}, synth)

	job, err := p.Submit(context.Background(), "t1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)

	close(synth.gate)
	p.Wait()

	got, err := store.Get(context.Background(), job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "t1", got.Result.TopicID)
}

func TestTopicWithoutFeedsEndsInError(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	p := NewProcessor(nil, store, stubFeeds{}, stubAgg{}, &stubSynth{})

	job, err := p.Submit(context.Background(), "empty", "u1", nil)
	require.NoError(t, err)
	p.Wait()

	got, err := store.Get(context.Background(), job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobError, got.Status)
	assert.Equal(t, "no summaries produced", got.Error)
	assert.Nil(t, got.Result)
}

func TestFeedListingFailureFailsJob(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	p := NewProcessor(nil, store, stubFeeds{err: errors.New("db down")}, stubAgg{}, &stubSynth{})

	job, _ := p.Submit(context.Background(), "t", "u", nil)
	p.Wait()

	got, _ := store.Get(context.Background(), job.ID, "u")
	assert.Equal(t, models.JobError, got.Status)
	assert.Contains(t, got.Error, "db down")
}

func TestSuppliedArticlesSkipAggregation(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	synth := &stubSynth{}
	now := time.Now()
	older := now.Add(-time.Hour)
	p := NewProcessor(nil, store, stubFeeds{err: errors.New("must not be called")}, stubAgg{}, synth)

	job, _ := p.Submit(context.Background(), "t", "u", []models.Article{
		{Title: "old", URL: "https://x/old", PublishedAt: &older},
		{Title: "", URL: "https://x/untitled"},
		{Title: "new", URL: "https://x/new", PublishedAt: &now},
	})
	p.Wait()

	got, _ := store.Get(context.Background(), job.ID, "u")
	assert.Equal(t, models.JobDone, got.Status)
	require.Len(t, synth.got, 2)
	assert.Equal(t, "new", synth.got[0].Title)
}

func TestSynthesisPanicFailsJob(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	p := NewProcessor(nil, store, stubFeeds{}, stubAgg{articles: []models.Article{{Title: "a", URL: "https://a"}}}, &stubSynth{panic: true})

	job, _ := p.Submit(context.Background(), "t", "u", nil)
	p.Wait()

	got, _ := store.Get(context.Background(), job.ID, "u")
	assert.Equal(t, models.JobError, got.Status)
	assert.Equal(t, "internal error", got.Error)
}

func TestJobsAreIsolated(t *testing.T) {
	store := jobs.NewMemoryStore(0)
	p := NewProcessor(nil, store, stubFeeds{}, stubAgg{}, &stubSynth{})
	good := NewProcessor(nil, store, stubFeeds{}, stubAgg{articles: []models.Article{{Title: "a", URL: "https://a"}}}, &stubSynth{})

	bad, _ := p.Submit(context.Background(), "t", "u", nil)
	ok, _ := good.Submit(context.Background(), "t", "u", nil)
	p.Wait()
	good.Wait()

	b, _ := store.Get(context.Background(), bad.ID, "u")
	g, _ := store.Get(context.Background(), ok.ID, "u")
	assert.Equal(t, models.JobError, b.Status)
	assert.Equal(t, models.JobDone, g.Status)
}
