package model

import (
	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutSent   PayoutStatus = "sent"
	PayoutFailed PayoutStatus = "failed"
	// PayoutUnconfirmed 已广播但未等到确认，需按签名核对，不会重发
	PayoutUnconfirmed PayoutStatus = "unconfirmed"
	PayoutDeadLetter  PayoutStatus = "dead_letter"
)

// PayoutRecord 一个持有人在一个奖励资产上的一次分发
type PayoutRecord struct {
	ID            int             `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID       string          `gorm:"column:round_id;type:varchar(64);not null;index" json:"round_id"`
	Mint          string          `gorm:"column:mint;type:varchar(64);not null" json:"mint"`
	Owner         string          `gorm:"column:owner;type:varchar(64);not null;index" json:"owner"`
	RewardMint    string          `gorm:"column:reward_mint;type:varchar(64);not null" json:"reward_mint"`
	RewardName    string          `gorm:"column:reward_name;type:varchar(64)" json:"reward_name"`
	Amount        uint64          `gorm:"column:amount;not null;default:0" json:"amount"`
	HolderPercent decimal.Decimal `gorm:"column:holder_percent;type:decimal(10,4);not null;default:0" json:"holder_percent"`
	CreatedATA    bool            `gorm:"column:created_ata;not null;default:false" json:"created_ata"`
	Attempt       int             `gorm:"column:attempt;not null;default:1" json:"attempt"`
	Status        PayoutStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Signature     string          `gorm:"column:signature;type:varchar(128)" json:"signature"`
	CreatedAt     int64           `gorm:"column:created_at;not null" json:"created_at"` // 毫秒
}

func (PayoutRecord) TableName() string {
	return "fee_distribution_payouts"
}

// PayoutEvent kafka 消息体
type PayoutEvent struct {
	Type string       `json:"type"`
	Data PayoutRecord `json:"data"`
}

func NewPayoutEvent(r PayoutRecord) PayoutEvent {
	return PayoutEvent{Type: "fee_payout", Data: r}
}
