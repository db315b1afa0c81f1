package feeds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/metrics"
	"github.com/mohammad-safakhou/newsbrief/models"
)

const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultFetchMaxBytes = 10 * 1024 * 1024
)

// Fetcher retrieves a single feed and normalizes its items. It never fails:
// network errors, timeouts, non-2xx responses and malformed XML all yield no articles.
type Fetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Policy    config.HostPolicyConfig
	Logger    *log.Logger
}

// NewFetcher builds a Fetcher from feeds configuration.
func NewFetcher(cfg config.FeedsConfig, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[FEEDS] ", log.LstdFlags)
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		Client:    &http.Client{},
		Timeout:   timeout,
		MaxBytes:  DefaultFetchMaxBytes,
		UserAgent: cfg.UserAgent,
		Policy:    cfg.Policy,
		Logger:    logger,
	}
}

// Fetch returns the articles of feed, or nil on any failure.
func (f *Fetcher) Fetch(ctx context.Context, feed models.Feed) []models.Article {
	feedURL := strings.TrimSpace(feed.FeedURL)
	arts, outcome, err := f.fetch(ctx, feed, feedURL)
	metrics.FeedFetches.WithLabelValues(outcome).Inc()
	if err != nil {
		f.logf("feed %s (%s): %s: %v", feed.ID, feedURL, outcome, err)
		return nil
	}
	return arts
}

func (f *Fetcher) fetch(ctx context.Context, feed models.Feed, feedURL string) ([]models.Article, string, error) {
	if !isHTTPURL(feedURL) || !f.Policy.Permits(feedURL) {
		return nil, metrics.FetchPolicy, errPolicy
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultFetchMaxBytes
	}
	resp, err := get(ctx, client, feedURL, f.UserAgent, f.Timeout, maxBytes)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, metrics.FetchTooLarge, err
		}
		return nil, metrics.FetchError, err
	}
	if !resp.OK() {
		return nil, metrics.FetchStatus, fmt.Errorf("status %d", resp.Status)
	}
	doc, err := Parse(resp.Body)
	if err != nil {
		return nil, metrics.FetchParse, err
	}
	if doc.Kind == KindUnrecognized {
		return nil, metrics.FetchParse, errUnrecognized
	}
	return doc.Articles(models.FeedRef{ID: feed.ID, Name: feed.Name}), metrics.FetchOK, nil
}

func (f *Fetcher) logf(format string, args ...interface{}) {
	if f.Logger != nil {
		f.Logger.Printf(format, args...)
	}
}
