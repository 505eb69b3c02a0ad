package distributor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/monitor"
	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/internal/worker/pool"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// withdrawSource 待提取的 token account
type withdrawSource struct {
	account  solana.PublicKey
	withheld uint64
}

// WithdrawFee 把 holders 的 withheld 提取到运营账户，返回提取到的 mint 数量
// 模拟失败返回 ErrFatal，发送失败只记录日志
func (r *Runner) WithdrawFee(ctx context.Context, holders []model.Holder) (uint64, error) {
	if r.mint == nil {
		return 0, ErrNotValidated
	}
	queue := make([]withdrawSource, 0, len(holders))
	for _, h := range holders {
		account, err := solana.PublicKeyFromBase58(h.Address)
		if err != nil {
			r.log.Log(logger.SeverityWarn, labelWithdraw, "skip invalid token account", zap.String("address", h.Address), zap.Error(err))
			continue
		}
		queue = append(queue, withdrawSource{account: account, withheld: h.WithheldAmount})
	}

	size := r.opts.withdrawBatchSize()
	var total uint64
	batches := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n := min(size, len(queue))
		batch := queue[:n:n]
		queue = queue[n:]

		got, remaining, err := r.withdrawBatch(ctx, batch)
		if err != nil {
			return total, err
		}
		queue = append(queue, remaining...)
		total = satAdd(total, got)
		batches++

		if len(queue) > 0 {
			if err = r.pause(ctx, r.opts.Pacing.Batch); err != nil {
				return total, err
			}
		}
	}
	monitor.WithdrawnTokens.Add(float64(total))
	r.log.Log(logger.SeverityInfo, labelWithdraw, "withdraw finished",
		zap.Int("accounts", len(holders)),
		zap.Int("batches", batches),
		zap.Uint64("withdrawn", total))
	return total, nil
}

func (r *Runner) withdrawBatch(ctx context.Context, batch []withdrawSource) (uint64, []withdrawSource, error) {
	var pre []solana.Instruction
	exists, err := r.ledger.AccountExists(ctx, r.operatorATA)
	if err != nil {
		return 0, nil, fmt.Errorf("check operator account: %w", err)
	}
	if !exists {
		ix, _, err := spltoken.CreateAssociatedTokenAccount(r.operator, r.operator, r.cfg.Mint, r.mint.ProgramID, true)
		if err != nil {
			return 0, nil, err
		}
		pre = append(pre, ix)
	}
	before, err := r.ledger.TokenBalance(ctx, r.operatorATA)
	if err != nil {
		return 0, nil, fmt.Errorf("read operator token balance: %w", err)
	}
	blockhash, err := r.ledger.LatestBlockhash(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("latest blockhash: %w", err)
	}

	var swapAmount uint64
	build := func(items []withdrawSource) (*solana.Transaction, int, error) {
		ixs := slices.Clone(pre)
		ixs = append(ixs, r.withdrawInstruction(items))
		swapAmount = 0
		if r.opts.WithdrawAndSwap {
			amount := payout.FromPercentOf(sumWithheld(items), decimalFromFloat(r.opts.SwapFeePercent))
			swapIxs, err := r.swapper.SwapInstructions(ctx, r.feeSwapParams(amount))
			if err != nil {
				return nil, 0, fmt.Errorf("build fee swap: %w", err)
			}
			if len(swapIxs) > 0 {
				ixs = append(ixs, swapIxs...)
				swapAmount = amount
			}
		}
		return r.compose(blockhash, ixs)
	}
	tx, fit, remaining, err := shrinkToFit(batch, r.opts.MaxTxBytes, build)
	if err != nil {
		if errors.Is(err, ErrTxTooLarge) {
			r.log.Log(logger.SeverityError, labelWithdraw, "single account withdraw exceeds size limit", zap.Int("max_bytes", r.opts.MaxTxBytes))
		}
		return 0, nil, err
	}
	r.recordShrink(labelWithdraw, len(remaining))

	sim, err := r.ledger.Simulate(ctx, tx, []solana.PublicKey{r.operatorATA})
	if err != nil {
		return 0, nil, fmt.Errorf("simulate withdraw: %w", err)
	}
	if sim.Failed() {
		r.log.Log(logger.SeverityError, labelWithdraw, "withdraw simulation failed", zap.Any("err", sim.Err), zap.Strings("logs", sim.Logs))
		return 0, nil, fatalf("withdraw simulation: %v", sim.Err)
	}
	after, ok := sim.TokenAmount(0)
	if !ok || after+swapAmount <= before {
		r.log.Log(logger.SeverityVerbose, labelWithdraw, "withdraw changes nothing", zap.Int("accounts", len(fit)))
		return 0, remaining, nil
	}
	withdrawn := after + swapAmount - before
	percent := payout.Percent(withdrawn, r.mint.Supply)
	if percent.LessThan(decimalFromFloat(r.opts.MinWithdrawPercent)) {
		r.log.Log(logger.SeverityVerbose, labelWithdraw, "withdraw below minimum, skipped",
			zap.Uint64("amount", withdrawn),
			zap.String("percent", percent.String()))
		return 0, remaining, nil
	}

	sig, err := r.send(ctx, labelWithdraw, tx)
	if chain.IsUnconfirmed(err) {
		r.log.Log(logger.SeverityWarn, labelWithdraw, "withdraw unconfirmed, reconcile by signature",
			zap.Int("accounts", len(fit)),
			zap.Uint64("amount", withdrawn),
			zap.Stringer("signature", sig),
			zap.Error(err))
		return 0, remaining, nil
	}
	if err != nil {
		r.log.Log(logger.SeverityError, labelWithdraw, "send withdraw failed", zap.Int("accounts", len(fit)), zap.Error(err))
		return 0, remaining, nil
	}
	r.log.Log(logger.SeverityInfo, labelWithdraw, "withheld fees withdrawn",
		zap.Int("accounts", len(fit)),
		zap.Uint64("amount", withdrawn),
		zap.Uint64("swapped", swapAmount),
		zap.Stringer("signature", sig))
	return withdrawn, remaining, nil
}

func (r *Runner) withdrawInstruction(items []withdrawSource) solana.Instruction {
	sources := make([]solana.PublicKey, len(items))
	for i, it := range items {
		sources[i] = it.account
	}
	return spltoken.WithdrawWithheldTokensFromAccounts(r.mint.ProgramID, r.cfg.Mint, r.operatorATA, r.operator, sources)
}

func (r *Runner) feeSwapParams(amount uint64) pool.SwapParams {
	return pool.SwapParams{
		Owner:         r.operator,
		InputMint:     r.cfg.Mint,
		InputProgram:  r.mint.ProgramID,
		OutputMint:    spltoken.NativeMint,
		OutputProgram: spltoken.TokenProgramID,
		Amount:        amount,
		SlippageBps:   r.opts.SlippageBps,
	}
}

func sumWithheld(items []withdrawSource) uint64 {
	var total uint64
	for _, it := range items {
		total = satAdd(total, it.withheld)
	}
	return total
}
