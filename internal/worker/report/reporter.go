package report

import (
	"context"
	"time"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/writer"

	"go.uber.org/zap"
)

// SnapshotStore 保存兑换后的奖励余额快照
type SnapshotStore interface {
	Save(ctx context.Context, mint string, snap model.RewardSnapshot) error
}

// Reporter 把轮次结果分发到各存储，每个下游都可以不配置
type Reporter struct {
	tl        *zap.Logger
	rounds    writer.BatchWriter[model.RoundReport]
	payouts   []*writer.AsyncBatchWriter[model.PayoutRecord]
	snapshots SnapshotStore
}

type Option func(*Reporter)

// WithRoundWriter 轮次报告同步写入
func WithRoundWriter(w writer.BatchWriter[model.RoundReport]) Option {
	return func(r *Reporter) {
		r.rounds = w
	}
}

// WithPayoutWriter 分发记录异步批量写入
func WithPayoutWriter(w *writer.AsyncBatchWriter[model.PayoutRecord]) Option {
	return func(r *Reporter) {
		r.payouts = append(r.payouts, w)
	}
}

func WithSnapshotStore(s SnapshotStore) Option {
	return func(r *Reporter) {
		r.snapshots = s
	}
}

func New(tl *zap.Logger, opts ...Option) *Reporter {
	r := &Reporter{tl: tl}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) Start(ctx context.Context) {
	for _, w := range r.payouts {
		w.Start(ctx)
	}
}

// Close 等待异步写入完成
func (r *Reporter) Close() {
	for _, w := range r.payouts {
		w.Close()
	}
	if r.rounds != nil {
		_ = r.rounds.Close()
	}
}

func (r *Reporter) ReportRound(ctx context.Context, report *model.RoundReport) {
	if report == nil {
		return
	}
	r.tl.Info("Round report",
		zap.String("round_id", report.RoundID),
		zap.String("mint", report.Mint),
		zap.String("outcome", string(report.Outcome)),
		zap.String("skip_reason", report.SkipReason),
		zap.Uint64("start_balance", report.StartBalance),
		zap.Uint64("end_balance", report.EndBalance),
		zap.Uint64("withdrawn_amount", report.WithdrawnAmount),
		zap.Uint64("yield_lamports", report.YieldLamports),
		zap.Int("paid_holders", report.PaidHolders),
		zap.Int("dead_letters", report.DeadLetters),
		zap.Duration("duration", time.Duration(report.FinishedAt-report.StartedAt)*time.Millisecond))

	if r.rounds == nil {
		return
	}
	if err := r.rounds.BWrite(ctx, []model.RoundReport{*report}); err != nil {
		r.tl.Warn("write round report failed", zap.String("round_id", report.RoundID), zap.Error(err))
	}
}

func (r *Reporter) ReportPayouts(_ context.Context, records []model.PayoutRecord) {
	for _, w := range r.payouts {
		for _, rec := range records {
			w.Submit(rec)
		}
	}
}

func (r *Reporter) SaveSnapshot(ctx context.Context, mint string, snap model.RewardSnapshot) {
	if r.snapshots == nil {
		return
	}
	if err := r.snapshots.Save(ctx, mint, snap); err != nil {
		r.tl.Warn("save reward snapshot failed", zap.String("mint", mint), zap.Error(err))
	}
}
