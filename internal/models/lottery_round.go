package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Lottery round lifecycle. A round only ever advances
// pending -> open -> close -> claimable.
const (
	LotteryStatusPending   = "pending"
	LotteryStatusOpen      = "open"
	LotteryStatusClose     = "close"
	LotteryStatusClaimable = "claimable"
)

// Brackets is the number of prize tiers: bracket 6 requires all six
// trailing digits to match, bracket 1 only the last one.
const Brackets = 6

type LotteryRound struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Status string `gorm:"type:varchar(20);not null;index" json:"status"`

	StartTime time.Time `gorm:"type:timestamptz;not null" json:"start_time"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index" json:"end_time"`

	PriceTicket     int64  `gorm:"type:bigint;not null" json:"price_ticket"`
	DiscountDivisor uint32 `gorm:"not null" json:"discount_divisor"`

	// Basis points per bracket, index 0 = bracket 6 (full match) down
	// to index 5 = bracket 1. Sums to at most 10000.
	RewardsBreakdown datatypes.JSON `gorm:"type:jsonb;not null" json:"rewards_breakdown"`
	TreasuryFeeBp    uint32         `gorm:"not null" json:"treasury_fee_bp"`

	AmountCollected      int64 `gorm:"type:bigint;not null;default:0" json:"amount_collected"`
	TreasuryAmount       int64 `gorm:"type:bigint;not null;default:0" json:"treasury_amount"`
	PendingInjectionNext int64 `gorm:"type:bigint;not null;default:0" json:"pending_injection_next"`

	FinalNumber      uint32 `gorm:"not null;default:0" json:"final_number"`
	DrawOracleSeq    uint64 `gorm:"not null;default:0" json:"draw_oracle_seq"`
	TicketsSoldCount int64  `gorm:"type:bigint;not null;default:0" json:"tickets_sold_count"`

	// Settlement output, same bracket ordering as RewardsBreakdown.
	WinnersPerBracket datatypes.JSON `gorm:"type:jsonb" json:"winners_per_bracket"`
	RewardPerTicket   datatypes.JSON `gorm:"type:jsonb" json:"reward_per_ticket"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (LotteryRound) TableName() string {
	return "lottery_rounds"
}

func (r *LotteryRound) Breakdown() ([Brackets]uint32, error) {
	var out [Brackets]uint32
	err := json.Unmarshal(r.RewardsBreakdown, &out)
	return out, err
}

func (r *LotteryRound) SetBreakdown(bp [Brackets]uint32) {
	raw, _ := json.Marshal(bp)
	r.RewardsBreakdown = datatypes.JSON(raw)
}

func (r *LotteryRound) Winners() ([Brackets]int64, error) {
	var out [Brackets]int64
	if len(r.WinnersPerBracket) == 0 {
		return out, nil
	}
	err := json.Unmarshal(r.WinnersPerBracket, &out)
	return out, err
}

func (r *LotteryRound) SetWinners(counts [Brackets]int64) {
	raw, _ := json.Marshal(counts)
	r.WinnersPerBracket = datatypes.JSON(raw)
}

func (r *LotteryRound) TicketRewards() ([Brackets]int64, error) {
	var out [Brackets]int64
	if len(r.RewardPerTicket) == 0 {
		return out, nil
	}
	err := json.Unmarshal(r.RewardPerTicket, &out)
	return out, err
}

func (r *LotteryRound) SetTicketRewards(rewards [Brackets]int64) {
	raw, _ := json.Marshal(rewards)
	r.RewardPerTicket = datatypes.JSON(raw)
}
