package models

import "time"

// LotteryTicket is immutable after purchase except for the claim
// markers filled in when the owner collects a prize.
type LotteryTicket struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID uint64 `gorm:"not null;index:idx_tickets_round_owner" json:"round_id"`
	Owner   string `gorm:"type:varchar(64);not null;index:idx_tickets_round_owner" json:"owner"`

	// Six digits, each 1-9, read least-significant-digit-first per
	// bracket.
	Number uint32 `gorm:"not null" json:"number"`

	Claimed        bool  `gorm:"not null;default:false" json:"claimed"`
	ClaimedBracket int   `gorm:"not null;default:0" json:"claimed_bracket"`
	ClaimedAmount  int64 `gorm:"type:bigint;not null;default:0" json:"claimed_amount"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (LotteryTicket) TableName() string {
	return "lottery_tickets"
}
