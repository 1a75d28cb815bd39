package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PredictionRound struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Epoch uint64 `gorm:"not null;uniqueIndex" json:"epoch"`

	StartTimestamp time.Time `gorm:"type:timestamptz;not null" json:"start_timestamp"`
	LockTimestamp  time.Time `gorm:"type:timestamptz;not null" json:"lock_timestamp"`
	CloseTimestamp time.Time `gorm:"type:timestamptz;not null;index" json:"close_timestamp"`

	LockPrice  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"lock_price"`
	ClosePrice decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"close_price"`

	// Oracle update sequence numbers the round is bound to, so a lock
	// or close can never silently reuse an older update.
	LockOracleSeq  uint64 `gorm:"not null;default:0" json:"lock_oracle_seq"`
	CloseOracleSeq uint64 `gorm:"not null;default:0" json:"close_oracle_seq"`

	TotalAmount         int64 `gorm:"type:bigint;not null;default:0" json:"total_amount"`
	BullAmount          int64 `gorm:"type:bigint;not null;default:0" json:"bull_amount"`
	BearAmount          int64 `gorm:"type:bigint;not null;default:0" json:"bear_amount"`
	RewardBaseCalAmount int64 `gorm:"type:bigint;not null;default:0" json:"reward_base_cal_amount"`
	RewardAmount        int64 `gorm:"type:bigint;not null;default:0" json:"reward_amount"`
	TreasuryAmount      int64 `gorm:"type:bigint;not null;default:0" json:"treasury_amount"`

	OracleCalled bool `gorm:"not null;default:false" json:"oracle_called"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (PredictionRound) TableName() string {
	return "prediction_rounds"
}
