package distributor

import (
	"fmt"

	"web3-fee-distributor/internal/worker/chain"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/payout"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
)

const (
	// ATARentLamports 新建一个 token 账户的租金
	ATARentLamports uint64 = 2_300_000
	// MinOperatorLamports 运营账户最低余额
	MinOperatorLamports uint64 = 3_000_000
	// SwapFeeLamports 单次兑换的预估成本
	SwapFeeLamports uint64 = 50_000

	// txFeeLamports 预估时每笔交易按 10 倍基础费计
	txFeeLamports uint64 = chain.BaseFeeLamports * 10
	// ataCreateShare 预估时假设 75% 的持有人需要新建奖励账户
	ataCreateShare = 0.75
)

// Estimate 提取前的收益与成本预估，单位 lamports
type Estimate struct {
	Yield          uint64
	WithdrawCost   uint64
	DistributeCost uint64
	WithdrawTxs    int
	DistributeTxs  int
	NativePayout   uint64
	ATACost        uint64
}

func (e Estimate) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("yield", e.Yield)
	enc.AddUint64("withdraw_cost", e.WithdrawCost)
	enc.AddUint64("distribute_cost", e.DistributeCost)
	enc.AddInt("withdraw_txs", e.WithdrawTxs)
	enc.AddInt("distribute_txs", e.DistributeTxs)
	enc.AddUint64("native_payout", e.NativePayout)
	enc.AddUint64("ata_cost", e.ATACost)
	return nil
}

// SkipReason 为空表示可以继续
func (e Estimate) SkipReason(minGet uint64) string {
	switch {
	case e.Yield <= e.WithdrawCost:
		return fmt.Sprintf("estimated yield %d not above withdraw cost %d", e.Yield, e.WithdrawCost)
	case e.Yield <= minGet:
		return fmt.Sprintf("estimated yield %d not above minimum %d", e.Yield, minGet)
	case e.Yield <= e.DistributeCost:
		return fmt.Sprintf("estimated yield %d not above distribute cost %d", e.Yield, e.DistributeCost)
	}
	return ""
}

// Estimate 按池子现价估算本轮收益和成本
func (r *Runner) Estimate(withdrawable, eligible []model.Holder) (Estimate, error) {
	var est Estimate
	var withheld uint64
	for _, h := range withdrawable {
		withheld = satAdd(withheld, h.WithheldAmount)
	}
	yield, err := r.mainPool.Quote(r.cfg.Mint, withheld)
	if err != nil {
		return est, err
	}
	est.Yield = yield

	est.WithdrawTxs = ceilDiv(len(withdrawable), r.opts.withdrawBatchSize())
	est.WithdrawCost = txFeeLamports * uint64(est.WithdrawTxs)

	nonNative := len(r.nonNativeRewards())
	perTx := r.holdersPerTx()
	est.DistributeTxs = ceilDiv(len(eligible), perTx)

	supply := r.mint.Supply
	feeBps := r.poolFeeBps()
	for _, rw := range r.rewards {
		if !rw.IsNative(spltoken.NativeMint) {
			continue
		}
		rewardPct := decimalFromFloat(rw.Percent)
		for _, h := range eligible {
			est.NativePayout = satAdd(est.NativePayout, payout.Amount(yield, payout.HolderPercentage(h.Amount, supply), rewardPct, feeBps))
		}
	}
	if !r.rules.RequireRewardAccount {
		creates := decimal.NewFromInt(int64(perTx)).Mul(decimal.NewFromFloat(ataCreateShare)).Floor().IntPart()
		est.ATACost = uint64(creates) * ATARentLamports * uint64(nonNative)
	}
	est.DistributeCost = txFeeLamports*uint64(est.DistributeTxs) +
		SwapFeeLamports*uint64(nonNative) +
		est.NativePayout +
		est.ATACost
	return est, nil
}

// holdersPerTx 单笔分发交易容纳的持有人数
func (r *Runner) holdersPerTx() int {
	divider := payout.RewardDivider(len(r.rewards), len(r.nonNativeRewards()), r.opts.GapFactor)
	return payout.HoldersPerTx(r.opts.InstructionCeiling, divider)
}

func (r *Runner) poolFeeBps() uint32 {
	if r.mainPool == nil || r.mainPool.FeeRateBps == 0 {
		return payout.DefaultPoolFeeBps
	}
	return r.mainPool.FeeRateBps
}

func ceilDiv(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size <= 0 {
		size = 1
	}
	return (n + size - 1) / size
}

func satAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint64(0)
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func solToLamports(sol float64) uint64 {
	v := decimal.NewFromFloat(sol).Mul(decimal.NewFromUint64(chain.LamportsPerSol)).Floor()
	if !v.IsPositive() {
		return 0
	}
	return uint64(v.IntPart())
}
