package job

import (
	"context"

	"web3-fee-distributor/internal/worker/model"

	"go.uber.org/zap"
)

// RoundRunner 执行一轮分发
type RoundRunner interface {
	RunRound(ctx context.Context) (*model.RoundReport, error)
}

// RoundLocker 跨进程互斥，拿不到锁时本轮跳过
type RoundLocker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// DistributionJob 周期执行手续费分发
type DistributionJob struct {
	runner RoundRunner
	lock   RoundLocker
	tl     *zap.Logger
}

// NewDistributionJob lock 可为 nil
func NewDistributionJob(runner RoundRunner, lock RoundLocker, logger *zap.Logger) *DistributionJob {
	return &DistributionJob{
		runner: runner,
		lock:   lock,
		tl:     logger,
	}
}

// Run 执行一轮，致命错误原样返回给调度器
func (j *DistributionJob) Run(ctx context.Context) error {
	if j.lock != nil {
		ok, err := j.lock.Acquire(ctx)
		if err != nil {
			j.tl.Warn("Acquire round lock failed, skip round", zap.Error(err))
			return nil
		}
		if !ok {
			j.tl.Info("Round lock held by another process, skip round")
			return nil
		}
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx)); err != nil {
				j.tl.Warn("Release round lock failed", zap.Error(err))
			}
		}()
	}

	report, err := j.runner.RunRound(ctx)
	if report != nil {
		j.tl.Debug("Distribution job done",
			zap.String("round_id", report.RoundID),
			zap.String("outcome", string(report.Outcome)),
			zap.Uint64("yield_lamports", report.YieldLamports),
			zap.Int("paid_holders", report.PaidHolders),
			zap.Int("dead_letters", report.DeadLetters))
	}
	return err
}
