package model

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Holder 某个 mint 的持有人快照，一轮内不可变
type Holder struct {
	Owner          string `json:"owner"`
	Address        string `json:"address"` // token account
	Amount         uint64 `json:"amount"`
	WithheldAmount uint64 `json:"withheld_amount"`
}

// OwnerKey 用于去重的规范化 owner
func (h Holder) OwnerKey() string {
	return NormalizeAddress(h.Owner)
}

func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// RewardTarget 分红资产，Mint 为 wrapped SOL 时按原生 SOL 转账
type RewardTarget struct {
	Mint      solana.PublicKey
	Percent   float64
	ProgramID solana.PublicKey
	Name      string
	Decimals  uint8
}

func (r RewardTarget) IsNative(nativeMint solana.PublicKey) bool {
	return r.Mint.Equals(nativeMint)
}
