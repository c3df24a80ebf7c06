package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrFailedToParseRedisURL = errors.New("failed to parse redis connection url")
	ErrRedisNotReady         = errors.New("redis did not become ready")
)

// Redis holds leases as keys set with NX and a TTL, so the first replica to
// ask for a name owns it until the key expires.
type Redis struct {
	Client redis.UniversalClient
	Owner  string
}

func (r *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, name, r.Owner, ttl).Result()
}

// Connect parses url and pings until the server answers or attempts run out.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	for range max(attempts, 1) {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}

// Local is an in-process lease table for single-replica deployments.
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), nowFn: time.Now}
}

func (l *Local) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}
