package payout

import (
	"context"
	"errors"
	"testing"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/elasticsearch"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMQ struct {
	msgs  []kafka.Message
	fails int
	calls int
}

func (f *fakeMQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("broker unavailable")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

type fakeBulk struct {
	ops []elasticsearch.BulkOperation
}

func (f *fakeBulk) BulkWrite(_ context.Context, ops []elasticsearch.BulkOperation) error {
	f.ops = append(f.ops, ops...)
	return nil
}

func record(owner string, status model.PayoutStatus) model.PayoutRecord {
	return model.PayoutRecord{
		RoundID:       "round-1",
		Mint:          "mint",
		Owner:         owner,
		RewardMint:    "So11111111111111111111111111111111111111112",
		RewardName:    "SOL",
		Amount:        1500,
		HolderPercent: decimal.RequireFromString("1.2345"),
		Attempt:       1,
		Status:        status,
	}
}

func TestKafkaPayoutWriter(t *testing.T) {
	mq := &fakeMQ{fails: 1}
	w := NewKafkaPayoutWriter(mq, zap.NewNop(), "payouts")

	require.NoError(t, w.BWrite(context.Background(), []model.PayoutRecord{record("a", model.PayoutSent), record("b", model.PayoutFailed)}))
	assert.Equal(t, 2, mq.calls, "retried once")
	require.Len(t, mq.msgs, 2)
	assert.Equal(t, "payouts", mq.msgs[0].Topic)
	assert.Equal(t, []byte("a"), mq.msgs[0].Key)

	var event model.PayoutEvent
	require.NoError(t, sonic.Unmarshal(mq.msgs[1].Value, &event))
	assert.Equal(t, "fee_payout", event.Type)
	assert.Equal(t, "b", event.Data.Owner)
	assert.Equal(t, model.PayoutFailed, event.Data.Status)
	assert.True(t, event.Data.HolderPercent.Equal(decimal.RequireFromString("1.2345")))
}

func TestKafkaPayoutWriterGivesUp(t *testing.T) {
	mq := &fakeMQ{fails: 10}
	w := NewKafkaPayoutWriter(mq, zap.NewNop(), "payouts")
	assert.Error(t, w.BWrite(context.Background(), []model.PayoutRecord{record("a", model.PayoutSent)}))
	assert.Equal(t, 3, mq.calls)
	assert.NoError(t, w.BWrite(context.Background(), nil))
}

func TestESPayoutWriter(t *testing.T) {
	es := &fakeBulk{}
	w := NewESPayoutWriter(es, zap.NewNop(), "fee_distribution_payouts")

	failed := record("a", model.PayoutFailed)
	retried := record("a", model.PayoutSent)
	retried.Attempt = 2
	require.NoError(t, w.BWrite(context.Background(), []model.PayoutRecord{failed, retried}))

	require.Len(t, es.ops, 2)
	assert.NotEqual(t, es.ops[0].ID, es.ops[1].ID)
	assert.Equal(t, "fee_distribution_payouts", es.ops[0].Index)
	assert.Equal(t, "index", es.ops[0].Action)
	assert.Equal(t, "failed", es.ops[0].Document["status"])
	assert.InDelta(t, 1.2345, es.ops[1].Document["holder_percent"], 1e-9)
}
