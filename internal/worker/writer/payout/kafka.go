package payout

import (
	"context"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter kafka.Writer 的写入部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPayoutWriter struct {
	mq MessageWriter
	tl *zap.Logger

	topic string
}

func NewKafkaPayoutWriter(mq MessageWriter, tl *zap.Logger, topic string) writer.BatchWriter[model.PayoutRecord] {
	return &KafkaPayoutWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaPayoutWriter) BWrite(ctx context.Context, records []model.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		msg, err := w.marshalToMsg(rec)
		if err != nil {
			w.tl.Warn("marshal payout event failed", zap.String("owner", rec.Owner), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	newCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < writer.RetryCount; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ MQ write failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaPayoutWriter) Close() error {
	return nil
}

// marshalToMsg 以持有人地址为 key，同一持有人的事件落在同一分区
func (w *KafkaPayoutWriter) marshalToMsg(rec model.PayoutRecord) (kafka.Message, error) {
	jsonData, err := sonic.Marshal(model.NewPayoutEvent(rec))
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(rec.Owner),
		Value: jsonData,
	}, nil
}
