package runtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/jobs"
)

// BuildPostgresDSN constructs a DSN from the application configuration.
func BuildPostgresDSN(cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config is nil")
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return "", err
	}
	return cfg.Storage.Postgres.DSN(), nil
}

// OpenRedis connects to the configured redis and verifies it answers PING.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Addr(), err)
	}
	return client, nil
}

// NewJobStore selects the job backend. The returned close func releases any connection.
func NewJobStore(ctx context.Context, cfg *config.Config) (jobs.Store, func() error, error) {
	switch cfg.Jobs.Backend {
	case config.JobsBackendRedis:
		client, err := OpenRedis(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return jobs.NewRedisStore(client, cfg.Jobs.TTL), client.Close, nil
	case config.JobsBackendMemory, "":
		return jobs.NewMemoryStore(cfg.Jobs.TTL), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown jobs backend %q", cfg.Jobs.Backend)
	}
}
