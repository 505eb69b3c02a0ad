package payout

import (
	"context"
	"fmt"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"
	"web3-fee-distributor/pkg/elasticsearch"

	"go.uber.org/zap"
)

// BulkClient elasticsearch.Client 的批量写入部分
type BulkClient interface {
	BulkWrite(ctx context.Context, operations []elasticsearch.BulkOperation) error
}

type ESPayoutWriter struct {
	esClient BulkClient
	logger   *zap.Logger
	index    string
}

func NewESPayoutWriter(esClient BulkClient, logger *zap.Logger, index string) writer.BatchWriter[model.PayoutRecord] {
	return &ESPayoutWriter{
		esClient: esClient,
		logger:   logger,
		index:    index,
	}
}

func (w *ESPayoutWriter) BWrite(ctx context.Context, records []model.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}

	operations := make([]elasticsearch.BulkOperation, 0, len(records))
	for i := range records {
		operations = append(operations, elasticsearch.BulkOperation{
			Action:   "index", // 同一次尝试重复写入时覆盖
			Index:    w.index,
			ID:       generateDocID(&records[i]),
			Document: convertToESDoc(&records[i]),
		})
	}
	if err := w.esClient.BulkWrite(ctx, operations); err != nil {
		w.logger.Warn("❌ ES write payouts failed", zap.Error(err), zap.Int("records", len(records)))
		return err
	}
	return nil
}

func (w *ESPayoutWriter) Close() error {
	return nil
}

// generateDocID 轮次、持有人、奖励、尝试次数和状态唯一确定一条记录
func generateDocID(rec *model.PayoutRecord) string {
	return fmt.Sprintf("%s_%s_%s_%d_%s", rec.RoundID, rec.Owner, rec.RewardMint, rec.Attempt, rec.Status)
}

func convertToESDoc(rec *model.PayoutRecord) map[string]interface{} {
	return map[string]interface{}{
		"round_id":       rec.RoundID,
		"mint":           rec.Mint,
		"owner":          rec.Owner,
		"reward_mint":    rec.RewardMint,
		"reward_name":    rec.RewardName,
		"amount":         rec.Amount,
		"holder_percent": rec.HolderPercent.InexactFloat64(),
		"created_ata":    rec.CreatedATA,
		"attempt":        rec.Attempt,
		"status":         string(rec.Status),
		"signature":      rec.Signature,
		"created_at":     rec.CreatedAt,
	}
}
