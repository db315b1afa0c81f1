// Package jobs tracks asynchronous synthesis jobs through the
// queued -> running -> done|error state machine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/newsbrief/internal/metrics"
	"github.com/mohammad-safakhou/newsbrief/models"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrForbidden         = errors.New("job belongs to another user")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Store is the job registry. Create returns before any processing begins;
// Start, Complete and Fail are called only by the task processing the job.
type Store interface {
	Create(ctx context.Context, topicID, userID string) (models.Job, error)
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result *models.Synthesis) error
	Fail(ctx context.Context, id string, msg string) error
	Get(ctx context.Context, id, userID string) (models.Job, error)
}

func newJob(topicID, userID string, now time.Time) models.Job {
	return models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobQueued,
		TopicID:   topicID,
		UserID:    userID,
		CreatedAt: now,
	}
}

// The transition helpers hold the state machine shared by every backend.

func applyStart(j *models.Job, now time.Time) error {
	if j.Status != models.JobQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, models.JobRunning)
	}
	j.Status = models.JobRunning
	j.StartedAt = &now
	return nil
}

func applyComplete(j *models.Job, result *models.Synthesis, now time.Time) error {
	if j.Status != models.JobRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, models.JobDone)
	}
	if result == nil {
		return fmt.Errorf("%w: done requires a result", ErrInvalidTransition)
	}
	j.Status = models.JobDone
	j.Result = result
	j.Error = ""
	j.CompletedAt = &now
	return nil
}

func applyFail(j *models.Job, msg string, now time.Time) error {
	if j.Status != models.JobRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, models.JobError)
	}
	if msg == "" {
		msg = "unknown error"
	}
	j.Status = models.JobError
	j.Error = msg
	j.Result = nil
	j.CompletedAt = &now
	return nil
}

func authorize(j models.Job, userID string) (models.Job, error) {
	if j.UserID != userID {
		return models.Job{}, ErrForbidden
	}
	return j, nil
}

func recordTransition(status models.JobStatus) {
	metrics.JobTransitions.WithLabelValues(string(status)).Inc()
}
