package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRedis 只实现用到的命令，其余方法调用会 panic
type fakeRedis struct {
	redis.Cmdable
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

// compareAndDelete 与 releaseScript 语义一致
func (f *fakeRedis) compareAndDelete(keys []string, args []interface{}) *redis.Cmd {
	f.evals++
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

const testMint = "Mint111111111111111111111111111111111111111"

func TestRoundLockIsExclusive(t *testing.T) {
	rdb := newFakeRedis()
	ctx := context.Background()
	first := NewRoundLock(rdb, testMint, time.Hour)
	second := NewRoundLock(rdb, testMint, time.Hour)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, rdb.ttls[utils.RoundLockKey(testMint)])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 未持有锁的一方释放不影响持有者
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, rdb.data, utils.RoundLockKey(testMint))

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, rdb.data, utils.RoundLockKey(testMint))
	assert.Equal(t, 2, rdb.evals)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoundLockPerMint(t *testing.T) {
	rdb := newFakeRedis()
	ctx := context.Background()

	ok, err := NewRoundLock(rdb, testMint, time.Hour).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewRoundLock(rdb, "Other1111111111111111111111111111111111111", time.Hour).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapshotCacheLocalOnly(t *testing.T) {
	c := NewSnapshotCache(zap.NewNop(), nil)
	ctx := context.Background()

	snap, err := c.Load(ctx, testMint)
	require.NoError(t, err)
	assert.Nil(t, snap)

	saved := model.RewardSnapshot{}
	saved.Set("RewardMint", 1_000)
	require.NoError(t, c.Save(ctx, testMint, saved))

	// 保存的是副本
	saved.Set("RewardMint", 5_000)

	snap, err = c.Load(ctx, testMint)
	require.NoError(t, err)
	v, ok := snap.Get("RewardMint")
	require.True(t, ok)
	assert.Equal(t, uint64(970), v)
}

func TestSnapshotCacheReadsThroughRedis(t *testing.T) {
	rdb := newFakeRedis()
	ctx := context.Background()

	saved := model.RewardSnapshot{}
	saved.Set("RewardMint", 1_000)
	require.NoError(t, NewSnapshotCache(zap.NewNop(), rdb).Save(ctx, testMint, saved))
	assert.Equal(t, SNAPSHOT_CACHE_REDIS_TTL, rdb.ttls[utils.SnapshotKey(testMint)])

	// 另一个进程的本地缓存为空，从 Redis 读取
	other := NewSnapshotCache(zap.NewNop(), rdb)
	snap, err := other.Load(ctx, testMint)
	require.NoError(t, err)
	v, ok := snap.Get("RewardMint")
	require.True(t, ok)
	assert.Equal(t, uint64(970), v)

	// 读过一次后走本地缓存
	delete(rdb.data, utils.SnapshotKey(testMint))
	snap, err = other.Load(ctx, testMint)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestSnapshotCacheRedisFailureKeepsLocal(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	c := NewSnapshotCache(zap.NewNop(), rdb)
	ctx := context.Background()

	saved := model.RewardSnapshot{}
	saved.Set("RewardMint", 1_000)
	assert.Error(t, c.Save(ctx, testMint, saved))

	snap, err := c.Load(ctx, testMint)
	require.NoError(t, err)
	_, ok := snap.Get("RewardMint")
	assert.True(t, ok)
}
