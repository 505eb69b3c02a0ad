package distributor

import (
	"cmp"
	"math"
	"slices"

	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/internal/worker/payout"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// SelectWithdrawable 按 withheld 降序贪心选取，累计占比始终不超过 maxPercent
func SelectWithdrawable(holders []model.Holder, supply uint64, maxPercent float64) ([]model.Holder, decimal.Decimal) {
	candidates := make([]model.Holder, 0, len(holders))
	for _, h := range holders {
		if h.WithheldAmount > 0 {
			candidates = append(candidates, h)
		}
	}
	slices.SortStableFunc(candidates, func(a, b model.Holder) int {
		return cmp.Compare(b.WithheldAmount, a.WithheldAmount)
	})

	limit := decimal.NewFromFloat(maxPercent)
	selected := make([]model.Holder, 0, len(candidates))
	var total uint64
	percent := decimal.Zero
	for _, h := range candidates {
		if percent.GreaterThanOrEqual(limit) {
			break
		}
		next := total + h.WithheldAmount
		if next < total {
			next = math.MaxUint64
		}
		nextPercent := payout.HolderPercentage(next, supply)
		if nextPercent.GreaterThan(limit) {
			continue
		}
		total, percent = next, nextPercent
		selected = append(selected, h)
	}
	return selected, percent
}

// EligibleHolders 满足持仓比例规则的持有人，按 owner 去重
func EligibleHolders(holders []model.Holder, supply uint64, rules Rules) []model.Holder {
	minHold := decimal.NewFromFloat(rules.MinHold)
	maxHold := decimal.NewFromFloat(rules.MaxHold)
	out := make([]model.Holder, 0, len(holders))
	for _, h := range holders {
		pct := payout.HolderPercentage(h.Amount, supply)
		if pct.LessThan(minHold) || !pct.IsPositive() {
			continue
		}
		if rules.MaxHold > 0 && pct.GreaterThan(maxHold) {
			continue
		}
		out = append(out, h)
	}
	return Dedup(out)
}

// Dedup 按规范化 owner 去重，保留第一次出现
func Dedup(holders []model.Holder) []model.Holder {
	seen := make(map[string]struct{}, len(holders))
	out := make([]model.Holder, 0, len(holders))
	for _, h := range holders {
		key := h.OwnerKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ExcludeOwner 去掉 owner 为 account 的持有人，用于排除池子自身
func ExcludeOwner(holders []model.Holder, account solana.PublicKey) []model.Holder {
	if account.IsZero() {
		return holders
	}
	key := model.NormalizeAddress(account.String())
	out := holders[:0:0]
	for _, h := range holders {
		if h.OwnerKey() == key {
			continue
		}
		out = append(out, h)
	}
	return out
}
