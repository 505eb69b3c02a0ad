package cache

import (
	"context"
	"time"

	"web3-fee-distributor/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RoundLock 多个进程分发同一个 mint 时互斥
type RoundLock struct {
	rdb   lockClient
	key   string
	token string
	ttl   time.Duration
}

// lockClient *redis.Client 满足
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

func NewRoundLock(rdb lockClient, mint string, ttl time.Duration) *RoundLock {
	return &RoundLock{
		rdb:   rdb,
		key:   utils.RoundLockKey(mint),
		token: uuid.NewString(),
		ttl:   ttl,
	}
}

// Acquire 拿到锁返回 true
func (l *RoundLock) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

func (l *RoundLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}
