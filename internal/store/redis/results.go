package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// DefaultResultTTL is the default TTL for persisted results (7 days)
const DefaultResultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when no result matches.
var ErrNotFound = errors.New("result not found")

// Store persists check results, the latest result per username and
// per-platform usage counters.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore creates a new Redis store. A non-positive ttl uses DefaultResultTTL.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Name() string { return "redis" }

// Save persists a completed result in one pipeline.
func (s *Store) Save(ctx context.Context, result *domain.CheckResult) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", result.Request.ID, err)
	}

	id := RecordID(result.Request.ID, result.Request.Username)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, ResultKey(id), data, s.ttl)
	pipe.ZAdd(ctx, AllResultsKey(), redis.Z{Score: score(result.CompletedAt), Member: id})
	pipe.Set(ctx, LatestKey(result.Request.Username), id, s.ttl)
	queueUsage(ctx, pipe, result)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save result %s: %w", id, err)
	}
	return nil
}

// GetResult retrieves a result by record ID.
func (s *Store) GetResult(ctx context.Context, id string) (*domain.CheckResult, error) {
	data, err := s.client.Get(ctx, ResultKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return decode(data)
}

// GetLatest returns the most recent result for username.
func (s *Store) GetLatest(ctx context.Context, username string) (*domain.CheckResult, error) {
	id, err := s.client.Get(ctx, LatestKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
		}
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}
	r, err := s.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	// pointers written before record IDs existed may reference another user
	if !strings.EqualFold(r.Request.Username, username) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return r, nil
}

// ListResults returns results completed at or after since, oldest first.
// IDs whose payload has expired are pruned from the index.
func (s *Store) ListResults(ctx context.Context, since time.Time) ([]*domain.CheckResult, error) {
	from := "-inf"
	if !since.IsZero() {
		from = strconv.FormatFloat(score(since), 'f', -1, 64)
	}
	ids, err := s.client.ZRangeByScore(ctx, AllResultsKey(), &redis.ZRangeBy{Min: from, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list result IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.CheckResult{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ResultKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	results := make([]*domain.CheckResult, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		r, err := decode([]byte(raw))
		if err != nil {
			// Skip results that couldn't be decoded
			continue
		}
		results = append(results, r)
	}

	if len(expired) > 0 {
		_ = s.client.ZRem(ctx, AllResultsKey(), expired...).Err()
	}
	return results, nil
}

// DeleteOlderThan removes results completed before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	until := "(" + strconv.FormatFloat(score(cutoff), 'f', -1, 64)
	ids, err := s.client.ZRangeByScore(ctx, AllResultsKey(), &redis.ZRangeBy{Min: "-inf", Max: until}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list old results: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, ResultKey(id))
	}
	pipe.ZRemRangeByScore(ctx, AllResultsKey(), "-inf", until)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete old results: %w", err)
	}
	return len(ids), nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decode(data []byte) (*domain.CheckResult, error) {
	var r domain.CheckResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &r, nil
}

// score is the completion time in fractional unix seconds.
func score(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
