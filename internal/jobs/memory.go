package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/newsbrief/models"
)

// MemoryStore keeps jobs in process memory. Jobs are lost on restart and are
// visible only to the instance that created them. Terminal jobs older than TTL
// are swept on Create.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, topicID, userID string) (models.Job, error) {
	now := s.now().UTC()
	j := newJob(topicID, userID, now)

	s.mu.Lock()
	s.sweepLocked(now)
	s.jobs[j.ID] = &j
	s.mu.Unlock()

	recordTransition(models.JobQueued)
	return j, nil
}

func (s *MemoryStore) Start(_ context.Context, id string) error {
	return s.update(id, models.JobRunning, func(j *models.Job, now time.Time) error { return applyStart(j, now) })
}

func (s *MemoryStore) Complete(_ context.Context, id string, result *models.Synthesis) error {
	return s.update(id, models.JobDone, func(j *models.Job, now time.Time) error { return applyComplete(j, result, now) })
}

func (s *MemoryStore) Fail(_ context.Context, id string, msg string) error {
	return s.update(id, models.JobError, func(j *models.Job, now time.Time) error { return applyFail(j, msg, now) })
}

func (s *MemoryStore) Get(_ context.Context, id, userID string) (models.Job, error) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	var snapshot models.Job
	if ok {
		snapshot = *j
	}
	s.mu.RUnlock()
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return authorize(snapshot, userID)
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *MemoryStore) update(id string, to models.JobStatus, fn func(*models.Job, time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	next := *j
	if err := fn(&next, s.now().UTC()); err != nil {
		return err
	}
	*j = next
	recordTransition(to)
	return nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, j := range s.jobs {
		if j.Terminal() && j.CompletedAt != nil && now.Sub(*j.CompletedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
