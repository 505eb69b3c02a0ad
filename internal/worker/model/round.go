package model

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RoundOutcome 一轮分发的结果
type RoundOutcome string

const (
	OutcomeDistributed   RoundOutcome = "distributed"
	OutcomeSkippedGate   RoundOutcome = "skipped_estimate"
	OutcomeSkippedYield  RoundOutcome = "skipped_yield"
	OutcomeNoHolders     RoundOutcome = "no_holders"
	OutcomeNothingToPull RoundOutcome = "nothing_withdrawn"
	OutcomeFailed        RoundOutcome = "failed"
)

// RoundReport 每轮一条
type RoundReport struct {
	ID                      int             `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID                 string          `gorm:"column:round_id;type:varchar(64);not null;uniqueIndex" json:"round_id"`
	Mint                    string          `gorm:"column:mint;type:varchar(64);not null;index" json:"mint"`
	Network                 string          `gorm:"column:network;type:varchar(16);not null" json:"network"`
	StartBalance            uint64          `gorm:"column:start_balance;not null;default:0" json:"start_balance"`
	EndBalance              uint64          `gorm:"column:end_balance;not null;default:0" json:"end_balance"`
	HolderCount             int             `gorm:"column:holder_count;not null;default:0" json:"holder_count"`
	EligibleCount           int             `gorm:"column:eligible_count;not null;default:0" json:"eligible_count"`
	WithdrawableCount       int             `gorm:"column:withdrawable_count;not null;default:0" json:"withdrawable_count"`
	WithdrawnAmount         uint64          `gorm:"column:withdrawn_amount;not null;default:0" json:"withdrawn_amount"`
	EstimatedYield          uint64          `gorm:"column:estimated_yield;not null;default:0" json:"estimated_yield"`
	EstimatedWithdrawCost   uint64          `gorm:"column:estimated_withdraw_cost;not null;default:0" json:"estimated_withdraw_cost"`
	EstimatedDistributeCost uint64          `gorm:"column:estimated_distribute_cost;not null;default:0" json:"estimated_distribute_cost"`
	YieldLamports           uint64          `gorm:"column:yield_lamports;not null;default:0" json:"yield_lamports"`
	WithdrawPercent         decimal.Decimal `gorm:"column:withdraw_percent;type:decimal(20,8);not null;default:0" json:"withdraw_percent"`
	PaidHolders             int             `gorm:"column:paid_holders;not null;default:0" json:"paid_holders"`
	DeadLetters             int             `gorm:"column:dead_letters;not null;default:0" json:"dead_letters"`
	UnconfirmedHolders      int             `gorm:"column:unconfirmed_holders;not null;default:0" json:"unconfirmed_holders"`
	Outcome                 RoundOutcome    `gorm:"column:outcome;type:varchar(32);not null" json:"outcome"`
	SkipReason              string          `gorm:"column:skip_reason;type:text" json:"skip_reason"`
	RewardMints             pq.StringArray  `gorm:"column:reward_mints;type:varchar(64)[]" json:"reward_mints"`
	Snapshot                datatypes.JSON  `gorm:"column:snapshot;type:jsonb" json:"snapshot"`
	StartedAt               int64           `gorm:"column:started_at;not null" json:"started_at"`   // 毫秒
	FinishedAt              int64           `gorm:"column:finished_at;not null" json:"finished_at"` // 毫秒
}

func (RoundReport) TableName() string {
	return "fee_distribution_rounds"
}
