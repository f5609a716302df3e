package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// queueUsage adds the per-platform counter updates of result to pipe.
func queueUsage(ctx context.Context, pipe redis.Pipeliner, result *domain.CheckResult) {
	for platform, r := range result.PlatformResults {
		key := UsageKey(platform)
		pipe.SAdd(ctx, KeyUsagePlatforms, platform)
		pipe.HIncrBy(ctx, key, UsageTotal, 1)
		if !r.Successful() {
			continue
		}
		pipe.HIncrBy(ctx, key, UsageSuccessful, 1)
		if r.Exists.Bool() {
			pipe.HIncrBy(ctx, key, UsageTaken, 1)
		} else {
			pipe.HIncrBy(ctx, key, UsageAvailable, 1)
		}
	}
}

// PlatformUsage is the lifetime counter set of one platform.
type PlatformUsage struct {
	Total      int64 `json:"total" redis:"total"`
	Successful int64 `json:"successful" redis:"successful"`
	Taken      int64 `json:"taken" redis:"taken"`
	Available  int64 `json:"available" redis:"available"`
}

// GetUsageStats retrieves usage statistics for all platforms
func (s *Store) GetUsageStats(ctx context.Context) (map[string]PlatformUsage, error) {
	platforms, err := s.client.SMembers(ctx, KeyUsagePlatforms).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage platforms: %w", err)
	}

	stats := make(map[string]PlatformUsage, len(platforms))
	if len(platforms) == 0 {
		return stats, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(platforms))
	for _, p := range platforms {
		cmds[p] = pipe.HGetAll(ctx, UsageKey(p))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	for p, cmd := range cmds {
		var u PlatformUsage
		if err := cmd.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan usage of %s: %w", p, err)
		}
		stats[p] = u
	}
	return stats, nil
}
