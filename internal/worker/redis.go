package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"earnify-bot/internal/ledger"
)

const lastReportKey = "earnify:sweep:last"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-instance SET NX lock released only by its owner.
type RedisLock struct {
	Redis *redis.Client
}

func NewRedisLock(rdb *redis.Client) *RedisLock {
	return &RedisLock{Redis: rdb}
}

func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.Redis, []string{key}, token).Err()
	}
	return release, true, nil
}

// RedisReports keeps the most recent sweep report for the admin view.
type RedisReports struct {
	Redis *redis.Client
}

func NewRedisReports(rdb *redis.Client) *RedisReports {
	return &RedisReports{Redis: rdb}
}

func (r *RedisReports) SaveReport(ctx context.Context, report ledger.SweepReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.Redis.Set(ctx, lastReportKey, data, 0).Err()
}

func (r *RedisReports) LastReport(ctx context.Context) (*ledger.SweepReport, error) {
	data, err := r.Redis.Get(ctx, lastReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report ledger.SweepReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
