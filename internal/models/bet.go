package models

import "time"

const (
	BetDirectionBull = "bull"
	BetDirectionBear = "bear"
)

// Bet records one wager. The unique index enforces one bet per
// (epoch, owner); a second bet is rejected, never merged.
type Bet struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Epoch uint64 `gorm:"not null;uniqueIndex:idx_bets_epoch_owner" json:"epoch"`
	Owner string `gorm:"type:varchar(64);not null;uniqueIndex:idx_bets_epoch_owner;index" json:"owner"`

	Direction string `gorm:"type:varchar(10);not null" json:"direction"`
	Amount    int64  `gorm:"type:bigint;not null" json:"amount"`

	Claimed       bool  `gorm:"not null;default:false" json:"claimed"`
	ClaimedAmount int64 `gorm:"type:bigint;not null;default:0" json:"claimed_amount"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Bet) TableName() string {
	return "bets"
}
