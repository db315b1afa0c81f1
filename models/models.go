package models

import (
	"errors"
	"time"
)

// ErrTopicNotFound is returned when a topic is not found or not owned by the caller
var ErrTopicNotFound = errors.New("topic not found")

// Feed is a topic's subscribed RSS/Atom source as stored by the topic store.
type Feed struct {
	ID      string `json:"id"`
	TopicID string `json:"topicId,omitempty"`
	Name    string `json:"name,omitempty"`
	FeedURL string `json:"feedUrl"`
	SiteURL string `json:"siteUrl,omitempty"`
}

// FeedRef identifies the feed an article came from.
type FeedRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Article is a normalized feed item. It is recomputed on every aggregation and never persisted.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"publishedAt"`
	Feed        FeedRef    `json:"feed"`
	Summary     string     `json:"summary,omitempty"`
}

// FeedCandidate is a proposed feed awaiting validation.
type FeedCandidate struct {
	Title       string `json:"title"`
	FeedURL     string `json:"feedUrl"`
	SiteURL     string `json:"siteUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// Claim is a single statement extracted from an article.
type Claim struct {
	Text  string `json:"text"`
	Quote string `json:"quote,omitempty"`
}

// ArticleSummary is the map-phase output for one article.
type ArticleSummary struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	PublishedAt   string   `json:"publishedAt,omitempty"`
	Claims        []Claim  `json:"claims"`
	KeyFacts      []string `json:"keyFacts"`
	Stance        string   `json:"stance,omitempty"`
	Uncertainties []string `json:"uncertainties,omitempty"`
}

type Section struct {
	Heading    string   `json:"heading,omitempty"`
	Paragraphs []string `json:"paragraphs"`
}

type TimelineEntry struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

type Briefing struct {
	Headline      string          `json:"headline"`
	Dek           string          `json:"dek,omitempty"`
	Sections      []Section       `json:"sections"`
	Timeline      []TimelineEntry `json:"timeline,omitempty"`
	KeyTakeaways  []string        `json:"keyTakeaways"`
	Risks         []string        `json:"risks,omitempty"`
	OpenQuestions []string        `json:"openQuestions,omitempty"`
}

type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Synthesis is the reduce-phase output: one cited briefing built from several article summaries.
type Synthesis struct {
	TopicID     string    `json:"topicId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     Briefing  `json:"summary"`
	Sources     []Source  `json:"sources"`
}

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Job tracks one asynchronous synthesis request.
// Result is set iff Status is done; Error is set iff Status is error.
type Job struct {
	ID          string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	TopicID     string     `json:"topicId"`
	UserID      string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      *Synthesis `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Terminal reports whether the job has reached done or error.
func (j Job) Terminal() bool {
	return j.Status == JobDone || j.Status == JobError
}
