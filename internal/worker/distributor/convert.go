package distributor

import (
	"context"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/internal/worker/pool"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// SwapFee 把 amount 个 mint 兑换成 SOL，返回余额增量
// 兑换失败不影响本轮，只有 ctx 取消时返回错误
func (r *Runner) SwapFee(ctx context.Context, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	before, err := r.ledger.GetBalance(ctx, r.operator)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "read balance before fee swap failed", zap.Error(err))
		return 0, nil
	}
	if ok, err := r.swap(ctx, "fee", r.feeSwapParams(amount)); !ok {
		return 0, err
	}
	after, err := r.ledger.GetBalance(ctx, r.operator)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "read balance after fee swap failed", zap.Error(err))
		return 0, nil
	}
	var gained uint64
	if after > before {
		gained = after - before
	}
	r.log.Log(logger.SeverityInfo, labelSwap, "fee swapped to SOL",
		zap.Uint64("amount", amount),
		zap.Uint64("before", before),
		zap.Uint64("after", after),
		zap.Uint64("gained", gained))
	return gained, nil
}

// SwapRewards 按各奖励资产的比例把 lamports 兑换出去，每个奖励单独一笔交易
func (r *Runner) SwapRewards(ctx context.Context, lamports uint64) error {
	for i, rw := range r.nonNativeRewards() {
		amount := payout.FromPercentOf(lamports, decimalFromFloat(rw.Percent))
		if amount == 0 {
			continue
		}
		if i > 0 {
			if err := r.pause(ctx, r.opts.Pacing.Batch); err != nil {
				return err
			}
		}
		params := pool.SwapParams{
			Owner:         r.operator,
			InputMint:     spltoken.NativeMint,
			InputProgram:  spltoken.TokenProgramID,
			OutputMint:    rw.Mint,
			OutputProgram: rw.ProgramID,
			Amount:        amount,
			SlippageBps:   r.opts.SlippageBps,
		}
		if ok, err := r.swap(ctx, rw.Name, params); !ok && err != nil {
			return err
		}
	}
	return nil
}

// swap 构造、模拟并发送一次兑换，失败只记录日志
func (r *Runner) swap(ctx context.Context, name string, params pool.SwapParams) (bool, error) {
	fields := []zap.Field{
		zap.String("target", name),
		zap.Stringer("input", params.InputMint),
		zap.Stringer("output", params.OutputMint),
		zap.Uint64("amount", params.Amount),
	}
	ixs, err := r.swapper.SwapInstructions(ctx, params)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "build swap failed", append(fields, zap.Error(err))...)
		return false, ctx.Err()
	}
	if len(ixs) == 0 {
		r.log.Log(logger.SeverityWarn, labelSwap, "no swap route", fields...)
		return false, nil
	}
	blockhash, err := r.ledger.LatestBlockhash(ctx)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "latest blockhash failed", append(fields, zap.Error(err))...)
		return false, ctx.Err()
	}
	tx, size, err := r.compose(blockhash, ixs)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "compose swap failed", append(fields, zap.Error(err))...)
		return false, nil
	}
	if size > r.opts.MaxTxBytes {
		r.log.Log(logger.SeverityWarn, labelSwap, "swap transaction too large", append(fields, zap.Int("size", size))...)
		return false, nil
	}
	sim, err := r.ledger.Simulate(ctx, tx, nil)
	if err != nil || sim.Failed() {
		if err == nil {
			err = sim.Error()
			fields = append(fields, zap.Strings("logs", sim.Logs))
		}
		r.log.Log(logger.SeverityWarn, labelSwap, "swap simulation failed, skipped", append(fields, zap.Error(err))...)
		return false, ctx.Err()
	}
	sig, err := r.send(ctx, labelSwap, tx)
	if chain.IsUnconfirmed(err) {
		r.log.Log(logger.SeverityWarn, labelSwap, "swap unconfirmed, reconcile by signature",
			append(fields, zap.Stringer("signature", sig), zap.Error(err))...)
		return false, nil
	}
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelSwap, "send swap failed", append(fields, zap.Error(err))...)
		return false, nil
	}
	r.log.Log(logger.SeverityInfo, labelSwap, "swap sent", append(fields, zap.Stringer("signature", sig))...)
	return true, nil
}

// TakeSnapshot 记录运营账户各非原生奖励的可分配余额
func (r *Runner) TakeSnapshot(ctx context.Context) error {
	snapshot := make(model.RewardSnapshot, len(r.rewards))
	for _, rw := range r.nonNativeRewards() {
		ata, err := r.rewardATA(rw)
		if err != nil {
			return err
		}
		balance, err := r.ledger.TokenBalance(ctx, ata)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Log(logger.SeverityWarn, labelSwap, "read reward balance failed", zap.String("reward", rw.Name), zap.Error(err))
			continue
		}
		if balance == 0 {
			continue
		}
		snapshot.Set(rw.Mint.String(), balance)
	}
	r.snapshot = snapshot
	r.log.Log(logger.SeverityInfo, labelSwap, "reward snapshot taken", zap.Any("snapshot", map[string]uint64(snapshot)))
	return nil
}

func (r *Runner) rewardATA(rw model.RewardTarget) (solana.PublicKey, error) {
	if ata, ok := r.rewardATAs[rw.Mint]; ok {
		return ata, nil
	}
	ata, err := spltoken.FindAssociatedTokenAddress(r.operator, rw.Mint, rw.ProgramID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	r.rewardATAs[rw.Mint] = ata
	return ata, nil
}
