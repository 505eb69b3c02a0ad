package distributor

import (
	"context"
	"fmt"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/monitor"
	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/pkg/logger"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var fullShare = decimal.NewFromInt(100)

// DistributeResult 一轮分发的统计
type DistributeResult struct {
	Batches     int
	Paid        int
	Requeued    int
	DeadLetters int
	Unconfirmed int
}

// pending 待分发的持有人，retries 为失败次数
type pending struct {
	holder  model.Holder
	retries int
	last    []model.PayoutRecord
}

// holderPayout 一个持有人在所有奖励上的指令，必须整体放进同一笔交易
type holderPayout struct {
	pending
	ixs     []solana.Instruction
	records []model.PayoutRecord
	created []solana.PublicKey
}

// Distribute 分批给 holders 发放奖励，失败的批次整体重新入队，超过重试上限后记为死信
func (r *Runner) Distribute(ctx context.Context, roundID string, holders []model.Holder, nativePool uint64) (DistributeResult, error) {
	var res DistributeResult
	if r.mint == nil {
		return res, ErrNotValidated
	}
	holders = Dedup(holders)
	queue := make([]pending, 0, len(holders))
	for _, h := range holders {
		queue = append(queue, pending{holder: h})
	}

	perTx := r.holdersPerTx()
	r.log.Log(logger.SeverityInfo, labelDistribute, "distribution started",
		zap.Int("holders", len(queue)),
		zap.Int("holders_per_tx", perTx),
		zap.Uint64("native_pool", nativePool))

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := min(perTx, len(queue))
		batch := queue[:n:n]
		queue = queue[n:]

		remaining, unprocessed, err := r.distributeBatch(ctx, roundID, batch, nativePool, &res)
		if err != nil {
			return res, err
		}
		res.Batches++
		queue = append(queue, remaining...)

		var dead []model.PayoutRecord
		for _, p := range unprocessed {
			p.retries++
			if p.retries > r.opts.MaxHolderRetries {
				res.DeadLetters++
				r.log.Log(logger.SeverityWarn, labelDistribute, "holder dropped after retries",
					zap.String("owner", p.holder.Owner), zap.Int("retries", p.retries))
				for _, rec := range p.last {
					rec.Status = model.PayoutDeadLetter
					rec.Attempt = p.retries
					monitor.PayoutsTotal.WithLabelValues(rec.RewardName, string(rec.Status)).Inc()
					dead = append(dead, rec)
				}
				continue
			}
			res.Requeued++
			monitor.HolderRequeues.Inc()
			queue = append(queue, p)
		}
		r.report(ctx, dead)

		if len(queue) > 0 {
			if err = r.pause(ctx, r.opts.Pacing.Batch); err != nil {
				return res, err
			}
		}
	}
	r.log.Log(logger.SeverityInfo, labelDistribute, "distribution finished",
		zap.Int("batches", res.Batches),
		zap.Int("paid", res.Paid),
		zap.Int("requeued", res.Requeued),
		zap.Int("dead_letters", res.DeadLetters),
		zap.Int("unconfirmed", res.Unconfirmed))
	return res, nil
}

// distributeBatch 返回因超限被挤出的 remaining 和需要重试的 unprocessed
func (r *Runner) distributeBatch(ctx context.Context, roundID string, batch []pending, nativePool uint64, res *DistributeResult) (remaining, unprocessed []pending, err error) {
	payouts := make([]holderPayout, 0, len(batch))
	for _, p := range batch {
		hp, err := r.holderInstructions(ctx, roundID, p, nativePool)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			r.log.Log(logger.SeverityWarn, labelDistribute, "build payout failed", zap.String("owner", p.holder.Owner), zap.Error(err))
			unprocessed = append(unprocessed, p)
			continue
		}
		if len(hp.ixs) == 0 {
			continue
		}
		payouts = append(payouts, hp)
	}
	if len(payouts) == 0 {
		return nil, unprocessed, nil
	}

	blockhash, err := r.ledger.LatestBlockhash(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		r.log.Log(logger.SeverityWarn, labelDistribute, "latest blockhash failed", zap.Error(err))
		return nil, append(unprocessed, pendingOf(payouts)...), nil
	}

	build := func(items []holderPayout) (*solana.Transaction, int, error) {
		var ixs []solana.Instruction
		for _, it := range items {
			ixs = append(ixs, it.ixs...)
		}
		return r.compose(blockhash, ixs)
	}
	tx, fit, popped, err := shrinkToFit(payouts, r.opts.MaxTxBytes, build)
	if err != nil {
		// 单个持有人都放不下或签名失败，整批交给重试上限处理
		r.log.Log(logger.SeverityWarn, labelDistribute, "compose payout failed", zap.Int("holders", len(payouts)), zap.Error(err))
		return nil, append(unprocessed, pendingOf(payouts)...), nil
	}
	remaining = pendingOf(popped)
	r.recordShrink(labelDistribute, len(popped))

	sim, err := r.ledger.Simulate(ctx, tx, nil)
	if err == nil && sim.Failed() {
		err = sim.Error()
		r.log.Log(logger.SeverityVerbose, labelDistribute, "simulation logs", zap.Strings("logs", sim.Logs))
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		r.log.Log(logger.SeverityWarn, labelDistribute, "payout simulation failed, batch requeued",
			zap.Int("holders", len(fit)), zap.Error(err))
		return remaining, append(unprocessed, r.failed(ctx, fit, "")...), nil
	}

	sig, err := r.send(ctx, labelDistribute, tx)
	if chain.IsUnconfirmed(err) {
		// 可能已经上链，不重发
		r.log.Log(logger.SeverityWarn, labelDistribute, "payout unconfirmed, not requeued",
			zap.Int("holders", len(fit)),
			zap.Stringer("signature", sig),
			zap.Error(err))
		r.recordSent(ctx, fit, sig, model.PayoutUnconfirmed)
		res.Unconfirmed += len(fit)
		return remaining, unprocessed, nil
	}
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelDistribute, "send payout failed, batch requeued",
			zap.Int("holders", len(fit)), zap.Error(err))
		return remaining, append(unprocessed, r.failed(ctx, fit, signatureOf(sig))...), nil
	}

	records := r.recordSent(ctx, fit, sig, model.PayoutSent)
	res.Paid += len(fit)
	r.log.Log(logger.SeverityInfo, labelDistribute, "payout batch sent",
		zap.Int("holders", len(fit)),
		zap.Int("payouts", len(records)),
		zap.Stringer("signature", sig))
	return remaining, unprocessed, nil
}

// recordSent 记录已广播的分发，确认后新建的 ATA 才记入缓存
func (r *Runner) recordSent(ctx context.Context, items []holderPayout, sig solana.Signature, status model.PayoutStatus) []model.PayoutRecord {
	var records []model.PayoutRecord
	for _, hp := range items {
		if status == model.PayoutSent {
			for _, ata := range hp.created {
				r.ataCache.Set(ata.String(), true, cache.DefaultExpiration)
			}
		}
		for _, rec := range hp.records {
			rec.Status = status
			rec.Signature = sig.String()
			monitor.PayoutsTotal.WithLabelValues(rec.RewardName, string(rec.Status)).Inc()
			records = append(records, rec)
		}
	}
	r.report(ctx, records)
	return records
}

// signatureOf 未广播时签名为空
func signatureOf(sig solana.Signature) string {
	if sig == (solana.Signature{}) {
		return ""
	}
	return sig.String()
}

// failed 记录失败的分发并返回待重试的持有人
func (r *Runner) failed(ctx context.Context, items []holderPayout, signature string) []pending {
	out := make([]pending, 0, len(items))
	var records []model.PayoutRecord
	for _, hp := range items {
		p := hp.pending
		p.last = make([]model.PayoutRecord, 0, len(hp.records))
		for _, rec := range hp.records {
			rec.Status = model.PayoutFailed
			rec.Signature = signature
			monitor.PayoutsTotal.WithLabelValues(rec.RewardName, string(rec.Status)).Inc()
			records = append(records, rec)
			p.last = append(p.last, rec)
		}
		out = append(out, p)
	}
	r.report(ctx, records)
	return out
}

func (r *Runner) report(ctx context.Context, records []model.PayoutRecord) {
	if r.reporter == nil || len(records) == 0 {
		return
	}
	r.reporter.ReportPayouts(context.WithoutCancel(ctx), records)
}

func pendingOf(items []holderPayout) []pending {
	out := make([]pending, len(items))
	for i, it := range items {
		out[i] = it.pending
	}
	return out
}

// holderInstructions 一个持有人在全部奖励上的转账指令
func (r *Runner) holderInstructions(ctx context.Context, roundID string, p pending, nativePool uint64) (holderPayout, error) {
	hp := holderPayout{pending: p}
	h := p.holder
	owner, err := solana.PublicKeyFromBase58(h.Owner)
	if err != nil {
		r.log.Log(logger.SeverityWarn, labelDistribute, "skip invalid owner", zap.String("owner", h.Owner), zap.Error(err))
		return hp, nil
	}
	supply := r.mint.Supply
	feeBps := r.poolFeeBps()
	holderPct := payout.HolderPercentage(h.Amount, supply)
	now := r.clock.Now().UnixMilli()

	for _, rw := range r.rewards {
		record := model.PayoutRecord{
			RoundID:       roundID,
			Mint:          r.cfg.Mint.String(),
			Owner:         h.Owner,
			RewardMint:    rw.Mint.String(),
			RewardName:    rw.Name,
			HolderPercent: holderPct,
			Attempt:       p.retries + 1,
			CreatedAt:     now,
		}

		if rw.IsNative(spltoken.NativeMint) {
			amount := payout.Amount(nativePool, holderPct, decimalFromFloat(rw.Percent), feeBps)
			if amount == 0 {
				continue
			}
			hp.ixs = append(hp.ixs, system.NewTransferInstruction(amount, r.operator, owner).Build())
			record.Amount = amount
			hp.records = append(hp.records, record)
			continue
		}

		available, ok := r.snapshot.Get(rw.Mint.String())
		if !ok || available == 0 {
			r.log.Log(logger.SeverityWarn, labelDistribute, "no reward snapshot, skipped", zap.String("reward", rw.Name))
			continue
		}
		dest, err := spltoken.FindAssociatedTokenAddress(owner, rw.Mint, rw.ProgramID)
		if err != nil {
			return hp, fmt.Errorf("derive reward account: %w", err)
		}
		exists, err := r.rewardAccountExists(ctx, dest)
		if err != nil {
			return hp, err
		}

		pct := holderPct
		if !exists {
			if r.rules.RequireRewardAccount {
				r.log.Log(logger.SeverityVerbose, labelDistribute, "holder has no reward account, skipped",
					zap.String("owner", h.Owner), zap.String("reward", rw.Name))
				continue
			}
			// 新建账户的租金从持有人份额里扣除
			rent, err := r.mainPool.Quote(spltoken.NativeMint, ATARentLamports)
			if err != nil {
				return hp, fmt.Errorf("quote account rent: %w", err)
			}
			if h.Amount <= rent {
				continue
			}
			pct = payout.HolderPercentage(h.Amount-rent, supply)
		}
		amount := payout.Amount(available, pct, fullShare, feeBps)
		if amount == 0 {
			continue
		}
		if !exists {
			ix, _, err := spltoken.CreateAssociatedTokenAccount(r.operator, owner, rw.Mint, rw.ProgramID, true)
			if err != nil {
				return hp, err
			}
			hp.ixs = append(hp.ixs, ix)
			hp.created = append(hp.created, dest)
			record.CreatedATA = true
		}
		source, err := r.rewardATA(rw)
		if err != nil {
			return hp, err
		}
		hp.ixs = append(hp.ixs, spltoken.TransferChecked(rw.ProgramID, source, rw.Mint, dest, r.operator, amount, rw.Decimals))
		record.Amount = amount
		record.HolderPercent = pct
		hp.records = append(hp.records, record)
	}
	return hp, nil
}

// rewardAccountExists 只缓存存在的账户
func (r *Runner) rewardAccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	key := account.String()
	if _, ok := r.ataCache.Get(key); ok {
		return true, nil
	}
	exists, err := r.ledger.AccountExists(ctx, account)
	if err != nil {
		return false, fmt.Errorf("check reward account: %w", err)
	}
	if exists {
		r.ataCache.Set(key, true, cache.DefaultExpiration)
	}
	return exists, nil
}
