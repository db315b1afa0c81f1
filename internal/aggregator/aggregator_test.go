package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/feeds"
	"github.com/mohammad-safakhou/newsbrief/models"
)

type stubFetcher struct {
	mu       sync.Mutex
	byURL    map[string][]models.Article
	calls    map[string]int
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (s *stubFetcher) Fetch(ctx context.Context, feed models.Feed) []models.Article {
	n := atomic.AddInt32(&s.inFlight, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[feed.FeedURL]++
	return s.byURL[feed.FeedURL]
}

func at(t time.Time) *time.Time { return &t }

func TestAggregateSortsAndFilters(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{byURL: map[string][]models.Article{
		"https://a.example/rss": {
			{Title: "B same time", URL: "https://a.example/b", PublishedAt: at(now)},
			{Title: "undated", URL: "https://a.example/u"},
			{Title: "", URL: "https://a.example/no-title"},
		},
		"https://b.example/rss": {
			{Title: "A same time", URL: "https://b.example/a", PublishedAt: at(now)},
			{Title: "older", URL: "https://b.example/o", PublishedAt: at(now.Add(-48 * time.Hour))},
			{Title: "no url", URL: " "},
		},
	}}
	agg := &Aggregator{Fetcher: fetcher}

	res := agg.Aggregate(context.Background(), []models.Feed{
		{ID: "1", FeedURL: "https://a.example/rss"},
		{ID: "2", FeedURL: "https://b.example/rss"},
		{ID: "3", FeedURL: ""},
	}, LimitUnset)

	require.Len(t, res.Articles, 4)
	var titles []string
	for _, a := range res.Articles {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"A same time", "B same time", "older", "undated"}, titles)
	assert.Equal(t, 2, res.FeedsTotal)
	assert.NotContains(t, fetcher.calls, "")
}

func TestAggregateBoundsConcurrency(t *testing.T) {
	fetcher := &stubFetcher{byURL: map[string][]models.Article{}, delay: 20 * time.Millisecond}
	var list []models.Feed
	for i := 0; i < 17; i++ {
		list = append(list, models.Feed{ID: fmt.Sprint(i), FeedURL: fmt.Sprintf("https://f%d.example/rss", i)})
	}
	agg := &Aggregator{Fetcher: fetcher, Concurrency: 5}
	res := agg.Aggregate(context.Background(), list, 10)

	assert.Empty(t, res.Articles)
	assert.NotNil(t, res.Articles)
	assert.Equal(t, 17, res.FeedsFailed)
	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.peak), int32(5))
	require.Len(t, fetcher.calls, 17)
	for u, n := range fetcher.calls {
		assert.Equalf(t, 1, n, "feed %s attempted %d times", u, n)
	}
}

func TestClampLimit(t *testing.T) {
	agg := &Aggregator{}
	cases := map[int]int{LimitUnset: 50, 0: 1, -3: 1, 1: 1, 75: 75, 200: 200, 201: 200, 5000: 200}
	for in, want := range cases {
		assert.Equalf(t, want, agg.ClampLimit(in), "limit %d", in)
	}
	agg = New(nil, config.FeedsConfig{}, config.AggregateConfig{DefaultLimit: 20, MaxLimit: 30})
	assert.Equal(t, 20, agg.ClampLimit(LimitUnset))
	assert.Equal(t, 1, agg.ClampLimit(-5))
	assert.Equal(t, 30, agg.ClampLimit(31))
}

func TestAggregateCapsToLimit(t *testing.T) {
	var arts []models.Article
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		arts = append(arts, models.Article{Title: fmt.Sprint("t", i), URL: fmt.Sprint("https://x/", i), PublishedAt: at(base.Add(time.Duration(i) * time.Hour))})
	}
	agg := &Aggregator{Fetcher: &stubFetcher{byURL: map[string][]models.Article{"https://x/rss": arts}}}
	res := agg.Aggregate(context.Background(), []models.Feed{{ID: "x", FeedURL: "https://x/rss"}}, 3)
	require.Len(t, res.Articles, 3)
	assert.Equal(t, "t9", res.Articles[0].Title)
	assert.Equal(t, "t7", res.Articles[2].Title)
}

// One live feed with three dated items and one unreachable feed.
func TestAggregateLiveAndUnreachableFeed(t *testing.T) {
	day := func(offset int) string {
		return time.Now().UTC().AddDate(0, 0, -offset).Format(time.RFC1123Z)
	}
	body := fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Live</title>
<item><title>two days ago</title><link>https://live.example/3</link><pubDate>%s</pubDate></item>
<item><title>today</title><link>https://live.example/1</link><pubDate>%s</pubDate></item>
<item><title>yesterday</title><link>https://live.example/2</link><pubDate>%s</pubDate></item>
</channel></rss>`, day(2), day(0), day(1))

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	defer live.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	cfg := config.FeedsConfig{FetchTimeout: 2 * time.Second, FetchConcurrency: 5}
	agg := New(feeds.NewFetcher(cfg, nil), cfg, config.AggregateConfig{DefaultLimit: 50, MaxLimit: 200})
	res := agg.Aggregate(context.Background(), []models.Feed{
		{ID: "live", Name: "Live", FeedURL: live.URL},
		{ID: "dead", Name: "Dead", FeedURL: deadURL},
	}, LimitUnset)

	require.Len(t, res.Articles, 3)
	assert.Equal(t, "today", res.Articles[0].Title)
	assert.Equal(t, "yesterday", res.Articles[1].Title)
	assert.Equal(t, "two days ago", res.Articles[2].Title)
	assert.Equal(t, 1, res.FeedsFailed)
	for i := 1; i < len(res.Articles); i++ {
		assert.False(t, res.Articles[i].PublishedAt.After(*res.Articles[i-1].PublishedAt))
	}
}
