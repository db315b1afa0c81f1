package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsbrief/internal/aggregator"
	"github.com/mohammad-safakhou/newsbrief/internal/feeds"
	"github.com/mohammad-safakhou/newsbrief/internal/jobs"
	"github.com/mohammad-safakhou/newsbrief/internal/runtime"
	"github.com/mohammad-safakhou/newsbrief/models"
)

// TopicStore is the ownership-aware view of topics and their feeds.
type TopicStore interface {
	TopicExists(ctx context.Context, topicID, userID string) (bool, error)
	ListFeedsForTopic(ctx context.Context, topicID, userID string) ([]models.Feed, error)
	AddFeeds(ctx context.Context, topicID string, candidates []models.FeedCandidate) (int, error)
}

// Aggregator merges a topic's feeds.
type Aggregator interface {
	Aggregate(ctx context.Context, feeds []models.Feed, limit int) aggregator.Result
}

// Submitter queues a synthesis job and processes it in the background.
type Submitter interface {
	Submit(ctx context.Context, topicID, userID string, articles []models.Article) (models.Job, error)
}

// CandidateValidator keeps the candidates that serve a non-empty feed.
type CandidateValidator interface {
	ValidateCandidates(ctx context.Context, candidates []models.FeedCandidate) []models.FeedCandidate
}

// NewsHandler serves topic aggregation, synthesis jobs and feed validation.
// A nil Submitter means no LLM credential is configured.
type NewsHandler struct {
	Topics    TopicStore
	Agg       Aggregator
	Jobs      jobs.Store
	Submitter Submitter
	Validator CandidateValidator
	Logger    *log.Logger
}

func (h *NewsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/:topicId/news", h.news)
	g.POST("/:topicId/news/summarize", h.summarize)
	g.GET("/:topicId/news/summarize", h.summarizeStatus)
	g.POST("/:topicId/feeds/validate", h.validateFeeds)
}

func (h *NewsHandler) news(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	topicID, err := requireTopic(c)
	if err != nil {
		return err
	}
	limit := aggregator.LimitUnset
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			limit = n
		}
	}

	topicFeeds, err := h.Topics.ListFeedsForTopic(c.Request().Context(), topicID, userID)
	if err != nil {
		if errors.Is(err, models.ErrTopicNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "topic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list feeds")
	}
	res := h.Agg.Aggregate(c.Request().Context(), topicFeeds, limit)
	h.logf("topic %s: %d articles from %d feeds (%d empty)", topicID, len(res.Articles), res.FeedsTotal, res.FeedsFailed)
	return c.JSON(http.StatusOK, NewsResponse{Articles: res.Articles})
}

func (h *NewsHandler) summarize(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if h.Submitter == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "LLM API key not configured")
	}
	topicID, err := requireTopic(c)
	if err != nil {
		return err
	}
	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.requireOwnedTopic(c.Request().Context(), topicID, userID); err != nil {
		return err
	}

	job, err := h.Submitter.Submit(c.Request().Context(), topicID, userID, req.Articles)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create job")
	}
	return c.JSON(http.StatusAccepted, SummarizeAccepted{JobID: job.ID, Status: job.Status})
}

func (h *NewsHandler) summarizeStatus(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	topicID, err := requireTopic(c)
	if err != nil {
		return err
	}
	jobID := strings.TrimSpace(c.QueryParam("jobId"))
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "jobId required")
	}

	job, err := h.Jobs.Get(c.Request().Context(), jobID, userID)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}
	if job.TopicID != topicID {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

func (h *NewsHandler) validateFeeds(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	topicID, err := requireTopic(c)
	if err != nil {
		return err
	}
	var req ValidateFeedsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.requireOwnedTopic(c.Request().Context(), topicID, userID); err != nil {
		return err
	}

	valid := h.Validator.ValidateCandidates(c.Request().Context(), feeds.NormalizeCandidates(req.Candidates))
	resp := ValidateFeedsResponse{Feeds: valid}
	if resp.Feeds == nil {
		resp.Feeds = []models.FeedCandidate{}
	}
	if req.Accept && len(valid) > 0 {
		added, err := h.Topics.AddFeeds(c.Request().Context(), topicID, valid)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to add feeds")
		}
		resp.Added = added
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *NewsHandler) requireOwnedTopic(ctx context.Context, topicID, userID string) error {
	ok, err := h.Topics.TopicExists(ctx, topicID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load topic")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "topic not found")
	}
	return nil
}

func (h *NewsHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func requireUser(c echo.Context) (string, error) {
	userID, ok := runtime.UserID(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}

func requireTopic(c echo.Context) (string, error) {
	topicID := strings.TrimSpace(c.Param("topicId"))
	if topicID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "topicId required")
	}
	return topicID, nil
}
