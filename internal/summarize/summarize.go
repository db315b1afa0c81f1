// Package summarize implements the map-reduce synthesis pipeline: one
// structured extraction per article, then one briefing over the survivors.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/helpers"
	"github.com/mohammad-safakhou/newsbrief/internal/llm"
	"github.com/mohammad-safakhou/newsbrief/internal/metrics"
	"github.com/mohammad-safakhou/newsbrief/internal/pool"
	"github.com/mohammad-safakhou/newsbrief/models"
)

const (
	DefaultMaxArticles    = 12
	DefaultMapConcurrency = 4
	DefaultContentBudget  = 12000
	TruncationMarker      = "…[truncated]"

	phaseMap    = "map"
	phaseReduce = "reduce"

	mapTemperature    = 0.1
	reduceTemperature = 0.2
)

var (
	// ErrNoSummaries is returned when every article failed extraction.
	ErrNoSummaries = errors.New("no summaries produced")
	// ErrMalformedSynthesis is returned when the reduce response lacks summary or sources.
	ErrMalformedSynthesis = errors.New("malformed synthesis response")
)

// ArticleInput is what the map phase sends for one article.
type ArticleInput struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Content     string `json:"content"`
}

// Enricher may replace an input's content with a fuller text before extraction.
type Enricher interface {
	Enrich(ctx context.Context, in ArticleInput) ArticleInput
}

type Summarizer struct {
	LLM           llm.Completer
	Enricher      Enricher
	MaxArticles   int
	Concurrency   int
	ContentBudget int
	Logger        *log.Logger
	now           func() time.Time
}

func New(completer llm.Completer, cfg config.SummarizeConfig, logger *log.Logger) *Summarizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags)
	}
	s := &Summarizer{
		LLM:           completer,
		MaxArticles:   cfg.MaxArticles,
		Concurrency:   cfg.MapConcurrency,
		ContentBudget: cfg.ContentBudget,
		Logger:        logger,
	}
	if cfg.FullText {
		s.Enricher = NewReadabilityEnricher(cfg.FullTextTimeout)
	}
	return s
}

// Run maps the first MaxArticles articles and reduces the surviving summaries
// into one synthesis for topicID.
func (s *Summarizer) Run(ctx context.Context, topicID string, articles []models.Article) (*models.Synthesis, error) {
	inputs := s.Inputs(articles)
	summaries := s.Map(ctx, inputs)
	s.logf("topic %s: %d/%d articles summarized", topicID, len(summaries), len(inputs))
	if len(summaries) == 0 {
		return nil, ErrNoSummaries
	}
	return s.Reduce(ctx, topicID, summaries)
}

// Inputs caps the article set and normalizes each into an ArticleInput. Content
// is the article summary stripped of markup, falling back to its title.
func (s *Summarizer) Inputs(articles []models.Article) []ArticleInput {
	limit := s.MaxArticles
	if limit <= 0 {
		limit = DefaultMaxArticles
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}
	out := make([]ArticleInput, 0, len(articles))
	for _, a := range articles {
		in := ArticleInput{
			ID:      a.ID,
			URL:     a.URL,
			Title:   a.Title,
			Content: helpers.PlainText(a.Summary),
		}
		if a.PublishedAt != nil {
			in.PublishedAt = a.PublishedAt.UTC().Format(time.RFC3339)
		}
		if in.Content == "" {
			in.Content = a.Title
		}
		out = append(out, in)
	}
	return out
}

// Map extracts one ArticleSummary per input through the worker pool. Inputs
// whose call fails, or whose response lacks a title or url, are dropped.
func (s *Summarizer) Map(ctx context.Context, inputs []ArticleInput) []models.ArticleSummary {
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultMapConcurrency
	}
	return pool.Map(ctx, inputs, limit, func(ctx context.Context, in ArticleInput) (models.ArticleSummary, bool) {
		sum, err := s.mapOne(ctx, in)
		if err != nil {
			metrics.MapItems.WithLabelValues("dropped").Inc()
			s.logf("map %s: %v", in.URL, err)
			return models.ArticleSummary{}, false
		}
		metrics.MapItems.WithLabelValues("ok").Inc()
		return sum, true
	})
}

func (s *Summarizer) mapOne(ctx context.Context, in ArticleInput) (models.ArticleSummary, error) {
	if s.Enricher != nil {
		in = s.Enricher.Enrich(ctx, in)
	}
	in.Content = Truncate(in.Content, s.budget())
	payload, err := json.Marshal(in)
	if err != nil {
		return models.ArticleSummary{}, err
	}

	var sum models.ArticleSummary
	err = llm.CompleteJSON(ctx, s.LLM, llm.Request{
		Phase:       phaseMap,
		Temperature: llm.Float(mapTemperature),
		Messages: []llm.Message{
			{Role: "system", Content: mapSystemPrompt},
			{Role: "user", Content: "ARTICLE:\n" + string(payload)},
		},
	}, &sum)
	if err != nil {
		return models.ArticleSummary{}, err
	}
	sum.Title = strings.TrimSpace(sum.Title)
	sum.URL = strings.TrimSpace(sum.URL)
	if sum.Title == "" || sum.URL == "" {
		return models.ArticleSummary{}, fmt.Errorf("summary missing title or url")
	}
	return sum, nil
}

type reduceResponse struct {
	Summary *models.Briefing `json:"summary"`
	Sources *[]models.Source `json:"sources"`
}

// Reduce issues one call over all summaries and shape-checks the result.
func (s *Summarizer) Reduce(ctx context.Context, topicID string, summaries []models.ArticleSummary) (*models.Synthesis, error) {
	if len(summaries) == 0 {
		return nil, ErrNoSummaries
	}
	payload, err := json.Marshal(map[string]interface{}{"topicId": topicID, "summaries": summaries})
	if err != nil {
		return nil, err
	}

	var resp reduceResponse
	err = llm.CompleteJSON(ctx, s.LLM, llm.Request{
		Phase:       phaseReduce,
		Temperature: llm.Float(reduceTemperature),
		Messages: []llm.Message{
			{Role: "system", Content: reduceSystemPrompt},
			{Role: "user", Content: "INPUT:\n" + string(payload)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	if resp.Summary == nil || resp.Sources == nil {
		return nil, ErrMalformedSynthesis
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return &models.Synthesis{
		TopicID:     topicID,
		GeneratedAt: now().UTC(),
		Summary:     *resp.Summary,
		Sources:     cleanSources(*resp.Sources, summaries),
	}, nil
}

// cleanSources drops entries without a url and de-duplicates. When nothing
// usable remains, the mapped summaries themselves are listed.
func cleanSources(in []models.Source, summaries []models.ArticleSummary) []models.Source {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Source, 0, len(in))
	add := func(src models.Source) {
		src.URL = strings.TrimSpace(src.URL)
		src.Title = strings.TrimSpace(src.Title)
		if src.URL == "" {
			return
		}
		key := helpers.URLKey(src.URL)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, src)
	}
	for _, src := range in {
		add(src)
	}
	if len(out) == 0 {
		for _, sum := range summaries {
			add(models.Source{URL: sum.URL, Title: sum.Title})
		}
	}
	return out
}

// Truncate cuts content to budget runes and appends TruncationMarker when it did.
func Truncate(content string, budget int) string {
	if budget <= 0 {
		return content
	}
	r := []rune(content)
	if len(r) <= budget {
		return content
	}
	return string(r[:budget]) + TruncationMarker
}

func (s *Summarizer) budget() int {
	if s.ContentBudget <= 0 {
		return DefaultContentBudget
	}
	return s.ContentBudget
}

func (s *Summarizer) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
