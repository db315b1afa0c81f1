// Package aggregator merges the articles of every feed attached to a topic.
package aggregator

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/pool"
	"github.com/mohammad-safakhou/newsbrief/models"
)

const (
	DefaultLimit       = 50
	MaxLimit           = 200
	DefaultConcurrency = 5
)

// LimitUnset asks Aggregate for the configured default limit.
const LimitUnset = math.MinInt

// Fetcher retrieves one feed; failures are reported as an empty result.
type Fetcher interface {
	Fetch(ctx context.Context, feed models.Feed) []models.Article
}

// Aggregator fans a topic's feeds out over the worker pool and merges the results.
type Aggregator struct {
	Fetcher      Fetcher
	Concurrency  int
	DefaultLimit int
	MaxLimit     int
}

func New(fetcher Fetcher, feedsCfg config.FeedsConfig, aggCfg config.AggregateConfig) *Aggregator {
	return &Aggregator{
		Fetcher:      fetcher,
		Concurrency:  feedsCfg.FetchConcurrency,
		DefaultLimit: aggCfg.DefaultLimit,
		MaxLimit:     aggCfg.MaxLimit,
	}
}

// Result is one aggregation pass.
type Result struct {
	Articles    []models.Article
	FeedsTotal  int
	FeedsFailed int
}

// Aggregate fetches all feeds that carry a URL, drops articles without a title
// or url, sorts newest first (title ascending on ties) and caps the list at limit.
// LimitUnset selects the default.
func (a *Aggregator) Aggregate(ctx context.Context, feeds []models.Feed, limit int) Result {
	usable := make([]models.Feed, 0, len(feeds))
	for _, f := range feeds {
		if strings.TrimSpace(f.FeedURL) != "" {
			usable = append(usable, f)
		}
	}

	perFeed := make([][]models.Article, len(usable))
	var failed int32
	pool.Run(ctx, usable, a.concurrency(), func(ctx context.Context, idx int, feed models.Feed) {
		arts := a.Fetcher.Fetch(ctx, feed)
		if len(arts) == 0 {
			atomic.AddInt32(&failed, 1)
		}
		perFeed[idx] = arts
	})

	var merged []models.Article
	for _, arts := range perFeed {
		for _, art := range arts {
			if strings.TrimSpace(art.Title) == "" || strings.TrimSpace(art.URL) == "" {
				continue
			}
			merged = append(merged, art)
		}
	}
	SortArticles(merged)

	if n := a.ClampLimit(limit); len(merged) > n {
		merged = merged[:n]
	}
	if merged == nil {
		merged = []models.Article{}
	}
	return Result{Articles: merged, FeedsTotal: len(usable), FeedsFailed: int(failed)}
}

// ClampLimit maps LimitUnset to the default and clamps anything else to [1, MaxLimit].
func (a *Aggregator) ClampLimit(limit int) int {
	upper := a.MaxLimit
	if upper < 1 {
		upper = MaxLimit
	}
	def := a.DefaultLimit
	if def < 1 || def > upper {
		def = min(DefaultLimit, upper)
	}
	if limit == LimitUnset {
		return def
	}
	return max(1, min(limit, upper))
}

func (a *Aggregator) concurrency() int {
	if a.Concurrency < 1 {
		return DefaultConcurrency
	}
	return a.Concurrency
}

// SortArticles orders by publish time descending, undated articles last (as epoch 0),
// then by title ascending.
func SortArticles(arts []models.Article) {
	sort.SliceStable(arts, func(i, j int) bool {
		ti, tj := timestamp(arts[i]), timestamp(arts[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return arts[i].Title < arts[j].Title
	})
}

func timestamp(a models.Article) time.Time {
	if a.PublishedAt == nil {
		return time.Unix(0, 0)
	}
	return *a.PublishedAt
}
