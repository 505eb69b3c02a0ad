package payout

import (
	"context"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DbPayoutWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewDbPayoutWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.PayoutRecord] {
	return &DbPayoutWriter{db: db, tl: tl}
}

// BWrite 每次尝试都是一条完整记录，只追加
func (w *DbPayoutWriter) BWrite(ctx context.Context, records []model.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}

	newCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < writer.RetryCount; attempt++ {
		// 重试前清掉上次失败时 gorm 回填的主键
		rows := make([]model.PayoutRecord, len(records))
		copy(rows, records)
		for i := range rows {
			rows[i].ID = 0
		}
		err = w.db.WithContext(newCtx).CreateInBatches(rows, 500).Error
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ DB write payouts failed, exceeded the maximum number of retries", zap.Error(err), zap.Int("records", len(records)))
		return err
	}
	return nil
}

func (w *DbPayoutWriter) Close() error {
	return nil
}
