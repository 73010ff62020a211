package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention keeps daily run counters for 90 days.
const DefaultRetention = 90 * 24 * time.Hour

// RedisSink counts trigger outcomes per job per UTC day in a Redis hash.
type RedisSink struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisSink(client redis.UniversalClient, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{client: client, retention: retention}
}

// Record increments the outcome counter for the day containing at.
func (s *RedisSink) Record(ctx context.Context, jobName, outcome string, at time.Time) error {
	key := buildKey(jobName, at)

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, outcome, 1)
	pipe.Expire(ctx, key, s.retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// DailyCounts returns outcome counts for the day containing day.
func (s *RedisSink) DailyCounts(ctx context.Context, jobName string, day time.Time) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, buildKey(jobName, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	counts := make(map[string]int64, len(raw))
	for outcome, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("outcome %s: %w", outcome, err)
		}
		counts[outcome] = n
	}
	return counts, nil
}

func buildKey(jobName string, t time.Time) string {
	return fmt.Sprintf("j:%s:runs:%s", jobName, t.UTC().Format("20060102"))
}
