// Package store reads topic ownership and feed subscriptions from Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/newsbrief/models"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// TopicExists reports whether topicID exists and belongs to userID.
// Identifiers that are not UUIDs never match.
func (s *Store) TopicExists(ctx context.Context, topicID, userID string) (bool, error) {
	if _, err := uuid.Parse(topicID); err != nil {
		return false, nil
	}
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM topics WHERE id=$1 AND user_id=$2`, topicID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListFeedsForTopic returns the feeds of a topic owned by userID, oldest first.
// It returns models.ErrTopicNotFound when the topic is missing or owned by someone else.
func (s *Store) ListFeedsForTopic(ctx context.Context, topicID, userID string) ([]models.Feed, error) {
	ok, err := s.TopicExists(ctx, topicID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrTopicNotFound
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, topic_id, name, feed_url, COALESCE(site_url, '') FROM topic_feeds WHERE topic_id=$1 ORDER BY created_at ASC`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Feed
	for rows.Next() {
		var f models.Feed
		if err := rows.Scan(&f.ID, &f.TopicID, &f.Name, &f.FeedURL, &f.SiteURL); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddFeeds subscribes a topic to the given candidates, skipping feed URLs it already has.
// It returns the number of feeds inserted.
func (s *Store) AddFeeds(ctx context.Context, topicID string, candidates []models.FeedCandidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, c := range candidates {
		res, err := tx.ExecContext(ctx, `INSERT INTO topic_feeds (topic_id, name, feed_url, site_url) VALUES ($1,$2,$3,NULLIF($4,'')) ON CONFLICT (topic_id, feed_url) DO NOTHING`,
			topicID, c.Title, c.FeedURL, c.SiteURL)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}
