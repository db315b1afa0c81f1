package feeds

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/helpers"
	"github.com/mohammad-safakhou/newsbrief/internal/metrics"
	"github.com/mohammad-safakhou/newsbrief/internal/pool"
	"github.com/mohammad-safakhou/newsbrief/models"
)

const (
	DefaultValidateTimeout     = 8 * time.Second
	DefaultValidateMaxBytes    = 2 * 1024 * 1024
	DefaultValidateConcurrency = 6
)

// Validator decides whether a candidate URL serves a usable, non-empty feed.
// Every failure mode (network, status, size cap, HTML, parse) is a plain "invalid".
type Validator struct {
	Client      *http.Client
	Timeout     time.Duration
	MaxBytes    int64
	UserAgent   string
	Policy      config.HostPolicyConfig
	Concurrency int
	Logger      *log.Logger
}

func NewValidator(cfg config.FeedsConfig, logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.New(log.Writer(), "[FEEDS] ", log.LstdFlags)
	}
	v := &Validator{
		Client:      &http.Client{},
		Timeout:     cfg.ValidateTimeout,
		MaxBytes:    cfg.MaxBodyBytes,
		UserAgent:   cfg.UserAgent,
		Policy:      cfg.Policy,
		Concurrency: cfg.ValidateConcurrency,
		Logger:      logger,
	}
	if v.Timeout <= 0 {
		v.Timeout = DefaultValidateTimeout
	}
	if v.MaxBytes <= 0 {
		v.MaxBytes = DefaultValidateMaxBytes
	}
	if v.Concurrency <= 0 {
		v.Concurrency = DefaultValidateConcurrency
	}
	return v
}

// Validate reports whether rawURL serves an RSS document with a channel title and
// at least one item, or an Atom document with a feed title and at least one entry.
func (v *Validator) Validate(ctx context.Context, rawURL string) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logf("validate %s: recovered: %v", rawURL, r)
			valid = false
		}
		metrics.FeedValidations.WithLabelValues(strconv.FormatBool(valid)).Inc()
	}()

	rawURL = strings.TrimSpace(rawURL)
	if !isHTTPURL(rawURL) || !v.Policy.Permits(rawURL) {
		return false
	}
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := get(ctx, client, rawURL, v.UserAgent, v.Timeout, v.MaxBytes)
	if err != nil {
		v.logf("validate %s: %v", rawURL, err)
		return false
	}
	if !resp.OK() {
		return false
	}
	if !looksLikeFeedContentType(resp.ContentType) && looksLikeHTML(resp.Body) {
		return false
	}
	doc, err := Parse(resp.Body)
	if err != nil {
		return false
	}
	switch doc.Kind {
	case KindRSS, KindAtom:
		return doc.Title() != "" && doc.Len() > 0
	}
	return false
}

// ValidateCandidates validates every candidate through the worker pool and
// returns the subset that validated, in input order.
func (v *Validator) ValidateCandidates(ctx context.Context, candidates []models.FeedCandidate) []models.FeedCandidate {
	return pool.Map(ctx, candidates, v.Concurrency, func(ctx context.Context, c models.FeedCandidate) (models.FeedCandidate, bool) {
		return c, v.Validate(ctx, c.FeedURL)
	})
}

// NormalizeCandidates trims fields and drops candidates lacking a title or an
// absolute http(s) feed URL. Later duplicates of the same feed URL are dropped.
func NormalizeCandidates(in []models.FeedCandidate) []models.FeedCandidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.FeedCandidate, 0, len(in))
	for _, c := range in {
		c.Title = strings.TrimSpace(c.Title)
		c.FeedURL = strings.TrimSpace(c.FeedURL)
		c.SiteURL = strings.TrimSpace(c.SiteURL)
		c.Description = strings.TrimSpace(c.Description)
		if c.Title == "" || !isHTTPURL(c.FeedURL) {
			continue
		}
		if c.SiteURL != "" && !isHTTPURL(c.SiteURL) {
			c.SiteURL = ""
		}
		key := helpers.URLKey(c.FeedURL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func looksLikeFeedContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

func looksLikeHTML(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("<html"))
}

func (v *Validator) logf(format string, args ...interface{}) {
	if v.Logger != nil {
		v.Logger.Printf(format, args...)
	}
}
