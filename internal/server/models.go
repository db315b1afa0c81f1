package server

import "github.com/mohammad-safakhou/newsbrief/models"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// NewsResponse wraps the aggregated articles of a topic.
type NewsResponse struct {
	Articles []models.Article `json:"articles"`
}

// SummarizeRequest optionally carries already-fetched articles to synthesize
// instead of re-aggregating the topic's feeds.
type SummarizeRequest struct {
	Articles []models.Article `json:"articles"`
}

// SummarizeAccepted is returned when a synthesis job has been queued.
type SummarizeAccepted struct {
	JobID  string           `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

// ValidateFeedsRequest carries proposed feeds. With Accept set, the valid
// subset is also subscribed to the topic.
type ValidateFeedsRequest struct {
	Candidates []models.FeedCandidate `json:"candidates"`
	Accept     bool                   `json:"accept"`
}

// ValidateFeedsResponse lists the candidates that served a usable feed.
type ValidateFeedsResponse struct {
	Feeds []models.FeedCandidate `json:"feeds"`
	Added int                    `json:"added,omitempty"`
}
