package cache

import (
	"context"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SNAPSHOT_CACHE_TTL       = 10 * time.Minute // 本地缓存过期时间
	SNAPSHOT_CACHE_REDIS_TTL = 24 * time.Hour   // Redis 中快照 TTL
)

// SnapshotCache 奖励余额快照，本地缓存加 Redis，redis 为空时只用本地缓存
type SnapshotCache struct {
	tl         *zap.Logger
	localCache *cache.Cache
	redis      redis.Cmdable
}

func NewSnapshotCache(tl *zap.Logger, rdb redis.Cmdable) *SnapshotCache {
	return &SnapshotCache{
		tl:         tl,
		localCache: cache.New(SNAPSHOT_CACHE_TTL, time.Minute),
		redis:      rdb,
	}
}

// Save 先写本地，Redis 失败只返回错误
func (c *SnapshotCache) Save(ctx context.Context, mint string, snap model.RewardSnapshot) error {
	key := utils.SnapshotKey(mint)
	cp := make(model.RewardSnapshot, len(snap))
	for k, v := range snap {
		cp[k] = v
	}
	c.localCache.Set(key, cp, cache.DefaultExpiration)

	if c.redis == nil {
		return nil
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Set(ctx, key, data, SNAPSHOT_CACHE_REDIS_TTL).Err(); err != nil {
		c.tl.Warn("save reward snapshot to redis failed", zap.String("mint", mint), zap.Error(err))
		return err
	}
	return nil
}

// Load 没有快照时返回 nil, nil
func (c *SnapshotCache) Load(ctx context.Context, mint string) (model.RewardSnapshot, error) {
	key := utils.SnapshotKey(mint)
	if v, ok := c.localCache.Get(key); ok {
		return v.(model.RewardSnapshot), nil
	}
	if c.redis == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := model.UnmarshalRewardSnapshot(data)
	if err != nil {
		return nil, err
	}
	c.localCache.Set(key, snap, cache.DefaultExpiration)
	return snap, nil
}
