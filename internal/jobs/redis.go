package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsbrief/models"
)

const (
	jobKeyPrefix  = "job:"
	maxTxAttempts = 5
)

// record is the stored form of a job; unlike the API shape it keeps the owner.
type record struct {
	models.Job
	Owner string `json:"userId"`
}

// RedisStore keeps jobs as JSON values under job:<id> with a TTL, so any
// instance sharing the redis database can serve polls. Transitions run
// under WATCH so a status change is never lost to a concurrent writer.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Create(ctx context.Context, topicID, userID string) (models.Job, error) {
	j := newJob(topicID, userID, s.now().UTC())
	data, err := encode(j)
	if err != nil {
		return models.Job{}, err
	}
	ok, err := s.client.SetNX(ctx, jobKeyPrefix+j.ID, data, s.ttl).Result()
	if err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	if !ok {
		return models.Job{}, fmt.Errorf("create job: id collision on %s", j.ID)
	}
	recordTransition(models.JobQueued)
	return j, nil
}

func (s *RedisStore) Start(ctx context.Context, id string) error {
	return s.update(ctx, id, models.JobRunning, func(j *models.Job, now time.Time) error { return applyStart(j, now) })
}

func (s *RedisStore) Complete(ctx context.Context, id string, result *models.Synthesis) error {
	return s.update(ctx, id, models.JobDone, func(j *models.Job, now time.Time) error { return applyComplete(j, result, now) })
}

func (s *RedisStore) Fail(ctx context.Context, id string, msg string) error {
	return s.update(ctx, id, models.JobError, func(j *models.Job, now time.Time) error { return applyFail(j, msg, now) })
}

func (s *RedisStore) Get(ctx context.Context, id, userID string) (models.Job, error) {
	val, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Job{}, ErrNotFound
		}
		return models.Job{}, err
	}
	j, err := decode(val)
	if err != nil {
		return models.Job{}, err
	}
	return authorize(j, userID)
}

func (s *RedisStore) update(ctx context.Context, id string, to models.JobStatus, fn func(*models.Job, time.Time) error) error {
	key := jobKeyPrefix + id
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		j, err := decode(val)
		if err != nil {
			return err
		}
		if err := fn(&j, s.now().UTC()); err != nil {
			return err
		}
		data, err := encode(j)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		recordTransition(to)
		return nil
	}
	return fmt.Errorf("update job %s: too much contention", id)
}

func encode(j models.Job) ([]byte, error) {
	return json.Marshal(record{Job: j, Owner: j.UserID})
}

func decode(data []byte) (models.Job, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Job{}, fmt.Errorf("decode job: %w", err)
	}
	rec.Job.UserID = rec.Owner
	return rec.Job, nil
}
