package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/newsbrief/internal/aggregator"
	"github.com/mohammad-safakhou/newsbrief/internal/jobs"
	"github.com/mohammad-safakhou/newsbrief/models"
)

// FeedLister resolves the caller's feeds for a topic.
type FeedLister interface {
	ListFeedsForTopic(ctx context.Context, topicID, userID string) ([]models.Feed, error)
}

// Aggregator merges the articles of a feed list.
type Aggregator interface {
	Aggregate(ctx context.Context, feeds []models.Feed, limit int) aggregator.Result
}

// Synthesizer runs the map-reduce pipeline over a set of articles.
type Synthesizer interface {
	Run(ctx context.Context, topicID string, articles []models.Article) (*models.Synthesis, error)
}

// Processor owns the detached synthesis task: one single-attempt run per job,
// ending in exactly one Complete or Fail.
type Processor struct {
	logger *log.Logger
	jobs   jobs.Store
	feeds  FeedLister
	agg    Aggregator
	synth  Synthesizer
	wg     sync.WaitGroup
}

// NewProcessor constructs a Processor.
func NewProcessor(logger *log.Logger, js jobs.Store, feeds FeedLister, agg Aggregator, synth Synthesizer) *Processor {
	if logger == nil {
		logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	return &Processor{logger: logger, jobs: js, feeds: feeds, agg: agg, synth: synth}
}

// Submit creates a queued job and starts processing it in the background. The
// returned job is always observed as queued; articles, when non-empty, are used
// instead of aggregating the topic's feeds.
func (p *Processor) Submit(ctx context.Context, topicID, userID string, articles []models.Article) (models.Job, error) {
	job, err := p.jobs.Create(ctx, topicID, userID)
	if err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// detached from the request: the job keeps running after the client goes away
		p.process(context.Background(), job, articles)
	}()
	return job, nil
}

// Wait blocks until every submitted job has finished processing.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) process(ctx context.Context, job models.Job, articles []models.Article) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("job %s: panic: %v", job.ID, r)
			p.fail(ctx, job, fmt.Errorf("internal error"))
		}
	}()

	if err := p.jobs.Start(ctx, job.ID); err != nil {
		p.logger.Printf("job %s: start: %v", job.ID, err)
		return
	}
	p.logger.Printf("job %s: running for topic %s", job.ID, job.TopicID)

	arts, err := p.articles(ctx, job, articles)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}
	result, err := p.synth.Run(ctx, job.TopicID, arts)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}
	if err := p.jobs.Complete(ctx, job.ID, result); err != nil {
		p.logger.Printf("job %s: complete: %v", job.ID, err)
		return
	}
	p.logger.Printf("job %s: done with %d sources", job.ID, len(result.Sources))
}

func (p *Processor) articles(ctx context.Context, job models.Job, supplied []models.Article) ([]models.Article, error) {
	if len(supplied) > 0 {
		out := make([]models.Article, 0, len(supplied))
		for _, a := range supplied {
			if strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.URL) != "" {
				out = append(out, a)
			}
		}
		aggregator.SortArticles(out)
		return out, nil
	}
	feeds, err := p.feeds.ListFeedsForTopic(ctx, job.TopicID, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	res := p.agg.Aggregate(ctx, feeds, aggregator.LimitUnset)
	p.logger.Printf("job %s: aggregated %d articles from %d feeds (%d empty)", job.ID, len(res.Articles), res.FeedsTotal, res.FeedsFailed)
	return res.Articles, nil
}

func (p *Processor) fail(ctx context.Context, job models.Job, cause error) {
	p.logger.Printf("job %s: failed: %v", job.ID, cause)
	if err := p.jobs.Fail(ctx, job.ID, cause.Error()); err != nil && !errors.Is(err, jobs.ErrInvalidTransition) {
		p.logger.Printf("job %s: record failure: %v", job.ID, err)
	}
}
