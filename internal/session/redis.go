package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/deckvoice/deckvoice/internal/domain"
)

const runKeyPrefix = "deckvoice:run:"

// mutateRetries bounds optimistic-concurrency retries when a WATCHed key
// changes under a Mutate transaction.
const mutateRetries = 5

// RedisStore keeps runs in Redis as JSON values with a TTL, so multiple
// service instances share one session space. Mutate uses WATCH transactions
// for the per-run serialization the Store contract requires.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions holds Redis connection settings.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Create(ctx context.Context, run *domain.ProcessingRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return domain.InternalError("marshal run", err)
	}
	if err := s.client.Set(ctx, runKey(run.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set run: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*domain.ProcessingRun, error) {
	data, err := s.client.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.RunNotFoundError(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("redis get run: %w", err)
	}

	var run domain.ProcessingRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, domain.InternalError("unmarshal run", err)
	}
	return &run, nil
}

func (s *RedisStore) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.ProcessingRun) error) (*domain.ProcessingRun, error) {
	key := runKey(id)
	var committed *domain.ProcessingRun

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.RunNotFoundError(id.String())
		}
		if err != nil {
			return fmt.Errorf("redis get run: %w", err)
		}

		var run domain.ProcessingRun
		if err := json.Unmarshal(data, &run); err != nil {
			return domain.InternalError("unmarshal run", err)
		}

		if err := fn(&run); err != nil {
			return err
		}

		updated, err := json.Marshal(&run)
		if err != nil {
			return domain.InternalError("marshal run", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		committed = &run
		return nil
	}

	for attempt := 0; attempt < mutateRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return committed, nil
	}

	return nil, domain.InternalError("run mutation kept conflicting with concurrent writes", nil)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, runKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete run: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func runKey(id uuid.UUID) string {
	return runKeyPrefix + id.String()
}
