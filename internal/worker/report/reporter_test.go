package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"web3-fee-distributor/internal/worker/cache"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memWriter[T any] struct {
	mu     sync.Mutex
	items  []T
	err    error
	closed bool
}

func (w *memWriter[T]) BWrite(_ context.Context, batch []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.items = append(w.items, batch...)
	return nil
}

func (w *memWriter[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter[T]) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func TestReporterFansOutPayouts(t *testing.T) {
	db := &memWriter[model.PayoutRecord]{}
	mq := &memWriter[model.PayoutRecord]{}
	rounds := &memWriter[model.RoundReport]{}

	r := New(zap.NewNop(),
		WithRoundWriter(rounds),
		WithPayoutWriter(writer.NewAsyncBatchWriter[model.PayoutRecord](zap.NewNop(), db, 2, 10*time.Millisecond, "payout_db", 1)),
		WithPayoutWriter(writer.NewAsyncBatchWriter[model.PayoutRecord](zap.NewNop(), mq, 100, time.Hour, "payout_mq", 1)),
	)
	r.Start(context.Background())

	r.ReportPayouts(context.Background(), []model.PayoutRecord{
		{RoundID: "r1", Owner: "a", Status: model.PayoutSent},
		{RoundID: "r1", Owner: "b", Status: model.PayoutFailed},
		{RoundID: "r1", Owner: "c", Status: model.PayoutDeadLetter},
	})
	require.Eventually(t, func() bool { return db.len() == 3 }, time.Second, 5*time.Millisecond)

	r.ReportRound(context.Background(), &model.RoundReport{RoundID: "r1", Outcome: model.OutcomeDistributed})
	r.Close()

	assert.Equal(t, 3, mq.len(), "close flushes pending items")
	assert.Len(t, rounds.items, 1)
	assert.True(t, db.closed)
	assert.True(t, rounds.closed)
}

func TestReporterToleratesFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rounds := &memWriter[model.RoundReport]{err: errors.New("db down")}
	r := New(zap.New(core), WithRoundWriter(rounds))

	r.ReportRound(context.Background(), &model.RoundReport{RoundID: "r2"})
	r.ReportRound(context.Background(), nil)
	r.ReportPayouts(context.Background(), []model.PayoutRecord{{Owner: "a"}})
	r.SaveSnapshot(context.Background(), "mint", model.RewardSnapshot{"x": 1})

	assert.Equal(t, 1, logs.FilterMessage("write round report failed").Len())
}

func TestReporterSavesSnapshot(t *testing.T) {
	store := cache.NewSnapshotCache(zap.NewNop(), nil)
	r := New(zap.NewNop(), WithSnapshotStore(store))

	snap := model.RewardSnapshot{}
	snap.Set("MintA", 1000)
	r.SaveSnapshot(context.Background(), "mint", snap)

	got, err := store.Load(context.Background(), "mint")
	require.NoError(t, err)
	v, ok := got.Get("minta")
	require.True(t, ok)
	assert.Equal(t, uint64(970), v)

	missing, err := store.Load(context.Background(), "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
