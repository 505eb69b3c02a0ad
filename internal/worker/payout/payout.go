// Package payout 分红金额计算，纯函数无 I/O
package payout

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPoolFeeBps 池子手续费拿不到时的保守值 (25%)
const DefaultPoolFeeBps = 2500

// HolderShareCut 持仓比例按 90% 折算，剩余部分视为流动性储备
var HolderShareCut = decimal.NewFromFloat(0.90)

var (
	hundred  = decimal.NewFromInt(100)
	bpsScale = decimal.NewFromInt(10000)
)

// HolderPercentage round4(amount / supply * 100 * 0.90)，supply 为 0 时返回 0
func HolderPercentage(amount, supply uint64) decimal.Decimal {
	if supply == 0 {
		return decimal.Zero
	}
	return Percent(amount, supply).Mul(HolderShareCut).Round(4)
}

// Percent part 占 whole 的百分比，不做取整
func Percent(part, whole uint64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(part).Mul(hundred).Div(decimal.NewFromUint64(whole))
}

// Amount floor(pool * holderPct/100 * rewardPct/100 * (1 - feeBps/10000))，结果不会为负
func Amount(pool uint64, holderPct, rewardPct decimal.Decimal, poolFeeBps uint32) uint64 {
	if pool == 0 || !holderPct.IsPositive() || !rewardPct.IsPositive() {
		return 0
	}
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromInt(int64(poolFeeBps)).Div(bpsScale))
	if !keep.IsPositive() {
		return 0
	}
	v := decimal.NewFromUint64(pool).
		Mul(holderPct).Div(hundred).
		Mul(rewardPct).Div(hundred).
		Mul(keep).
		Floor()
	return toUint64(v)
}

// RewardDivider floor(rewardCount * gap + nonNativeCount)
func RewardDivider(rewardCount, nonNativeCount int, gap float64) int {
	return int(decimal.NewFromInt(int64(rewardCount)).
		Mul(decimal.NewFromFloat(gap)).
		Add(decimal.NewFromInt(int64(nonNativeCount))).
		Floor().IntPart())
}

// HoldersPerTx 每笔分发交易可容纳的持有人数，至少为 1
func HoldersPerTx(ceiling, divider int) int {
	if divider <= 0 {
		return max(1, ceiling)
	}
	return max(1, ceiling/divider)
}

// FromPercentOf floor(amount * pct / 100)
func FromPercentOf(amount uint64, pct decimal.Decimal) uint64 {
	if !pct.IsPositive() {
		return 0
	}
	return toUint64(decimal.NewFromUint64(amount).Mul(pct).Div(hundred).Floor())
}

func toUint64(v decimal.Decimal) uint64 {
	if !v.IsPositive() {
		return 0
	}
	bi := v.BigInt()
	if !bi.IsUint64() {
		return math.MaxUint64
	}
	return bi.Uint64()
}
