package round

import (
	"context"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DbRoundWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewDbRoundWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.RoundReport] {
	return &DbRoundWriter{db: db, tl: tl}
}

// BWrite 按 round_id 覆盖写入
func (w *DbRoundWriter) BWrite(ctx context.Context, reports []model.RoundReport) error {
	if len(reports) == 0 {
		return nil
	}

	newCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < writer.RetryCount; attempt++ {
		rows := make([]model.RoundReport, len(reports))
		copy(rows, reports)
		for i := range rows {
			rows[i].ID = 0
		}
		err = w.db.WithContext(newCtx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "round_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"end_balance",
				"holder_count",
				"eligible_count",
				"withdrawable_count",
				"withdrawn_amount",
				"estimated_yield",
				"estimated_withdraw_cost",
				"estimated_distribute_cost",
				"yield_lamports",
				"withdraw_percent",
				"paid_holders",
				"dead_letters",
				"outcome",
				"skip_reason",
				"snapshot",
				"finished_at",
			}),
		}).Create(&rows).Error
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ DB write round report failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *DbRoundWriter) Close() error {
	return nil
}
