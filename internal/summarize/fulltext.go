package summarize

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	// Inputs with at least this much content are left alone.
	fullTextThreshold = 500
	fullTextMaxBytes  = 4 * 1024 * 1024
)

// ReadabilityEnricher swaps a short feed blurb for the article's extracted
// body text. Any failure leaves the input unchanged.
type ReadabilityEnricher struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewReadabilityEnricher(timeout time.Duration) *ReadabilityEnricher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReadabilityEnricher{Client: &http.Client{}, Timeout: timeout}
}

func (e *ReadabilityEnricher) Enrich(ctx context.Context, in ArticleInput) ArticleInput {
	if len(in.Content) >= fullTextThreshold {
		return in
	}
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return in
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return in
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return in
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return in
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, fullTextMaxBytes), u)
	if err != nil {
		return in
	}
	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > len(in.Content) {
		in.Content = text
	}
	return in
}
