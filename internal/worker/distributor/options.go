package distributor

import (
	"fmt"
	"strings"
	"time"

	"web3-fee-distributor/internal/worker/config"
	"web3-fee-distributor/internal/worker/model"
	"web3-fee-distributor/pkg/spltoken"

	"github.com/gagliardetto/solana-go"
)

// Pacing 链上调用之间的间隔，避免触发 RPC 限流
type Pacing struct {
	Step  time.Duration // 阶段之间
	Batch time.Duration // 批次之间
}

// Options 每轮分发的可调参数
type Options struct {
	Interval                 time.Duration
	WithdrawAndSwap          bool
	SwapFeePercent           float64
	MinGetSol                float64 // SOL
	SwapRewardPercent        float64
	MinWithdrawPercent       float64 // 单批提取占总供应量的百分比下限
	MaxWithdrawPercent       float64
	GapFactor                float64
	WithdrawBatchSize        int
	WithdrawAndSwapBatchSize int
	InstructionCeiling       int
	MaxTxBytes               int
	SlippageBps              int
	MaxHolderRetries         int
	Pacing                   Pacing
}

// Rules 分发资格
type Rules struct {
	MinHold              float64 // 持仓百分比下限
	MaxHold              float64 // 0 表示不限制
	RequireRewardAccount bool    // true 时跳过没有奖励 ATA 的持有人
}

func DefaultOptions() Options {
	return Options{
		Interval:                 5 * time.Minute,
		WithdrawAndSwap:          false,
		SwapFeePercent:           60,
		MinGetSol:                0.05,
		SwapRewardPercent:        60,
		MinWithdrawPercent:       0.0001,
		MaxWithdrawPercent:       0.5,
		GapFactor:                1.2,
		WithdrawBatchSize:        24,
		WithdrawAndSwapBatchSize: 15,
		InstructionCeiling:       24,
		MaxTxBytes:               1232,
		SlippageBps:              5000,
		MaxHolderRetries:         3,
		Pacing: Pacing{
			Step:  2 * time.Second,
			Batch: 3 * time.Second,
		},
	}
}

func DefaultRules() Rules {
	return Rules{
		MinHold:              0.05,
		MaxHold:              0,
		RequireRewardAccount: true,
	}
}

// withdrawBatchSize 按模式选择单批提取账户数
func (o Options) withdrawBatchSize() int {
	if o.WithdrawAndSwap {
		return max(1, o.WithdrawAndSwapBatchSize)
	}
	return max(1, o.WithdrawBatchSize)
}

func (o Options) validate() error {
	if o.SwapFeePercent < 0 || o.SwapFeePercent > 100 {
		return fmt.Errorf("swap fee percent %v out of range [0, 100]", o.SwapFeePercent)
	}
	if o.SwapRewardPercent < 0 || o.SwapRewardPercent > 100 {
		return fmt.Errorf("swap reward percent %v out of range [0, 100]", o.SwapRewardPercent)
	}
	if o.MaxTxBytes <= 0 || o.InstructionCeiling <= 0 {
		return fmt.Errorf("max tx bytes and instruction ceiling must be positive")
	}
	return nil
}

// OptionsFromConfig 配置中非空字段覆盖默认值
func OptionsFromConfig(c config.DistributionConfig) (Options, Rules) {
	o, r := DefaultOptions(), DefaultRules()
	if c.IntervalMinutes != nil {
		o.Interval = time.Duration(*c.IntervalMinutes * float64(time.Minute))
	}
	override(&o.WithdrawAndSwap, c.WithdrawAndSwap)
	override(&o.SwapFeePercent, c.SwapFeePercent)
	override(&o.MinGetSol, c.MinGetSol)
	override(&o.SwapRewardPercent, c.SwapRewardPercent)
	override(&o.MinWithdrawPercent, c.MinWithdrawPercent)
	override(&o.MaxWithdrawPercent, c.MaxWithdrawPercent)
	override(&o.GapFactor, c.GapFactor)
	override(&o.WithdrawBatchSize, c.WithdrawBatchSize)
	override(&o.WithdrawAndSwapBatchSize, c.WithdrawAndSwapBatchSize)
	override(&o.InstructionCeiling, c.InstructionCeiling)
	override(&o.SlippageBps, c.SlippageBps)
	override(&o.MaxHolderRetries, c.MaxHolderRetries)

	override(&r.MinHold, c.MinHold)
	override(&r.MaxHold, c.MaxHold)
	override(&r.RequireRewardAccount, c.RequireRewardAccount)
	return o, r
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// RewardsFromConfig 解析奖励资产，未指定 program 时使用 SPL Token
func RewardsFromConfig(rewards []config.RewardConfig) ([]model.RewardTarget, error) {
	out := make([]model.RewardTarget, 0, len(rewards))
	for _, rc := range rewards {
		mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(rc.Mint))
		if err != nil {
			return nil, fmt.Errorf("reward %q mint: %w", rc.Name, err)
		}
		program := spltoken.TokenProgramID
		if rc.ProgramID != "" {
			if program, err = solana.PublicKeyFromBase58(rc.ProgramID); err != nil {
				return nil, fmt.Errorf("reward %q program: %w", rc.Name, err)
			}
		}
		name := rc.Name
		if name == "" {
			name = mint.String()
		}
		out = append(out, model.RewardTarget{
			Mint:      mint,
			Percent:   rc.Percent,
			ProgramID: program,
			Name:      name,
			Decimals:  9,
		})
	}
	return out, nil
}
