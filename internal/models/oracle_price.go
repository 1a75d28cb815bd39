package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OraclePrice is the cached last-known value for one price feed.
// Sequence increases strictly with every accepted update and doubles
// as the oracle update id that rounds bind to.
type OraclePrice struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	FeedID string `gorm:"type:varchar(100);not null;uniqueIndex" json:"feed_id"`

	Price decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"price"`
	Expo  int32           `gorm:"not null" json:"expo"`

	PublishTime time.Time `gorm:"type:timestamptz;not null" json:"publish_time"`
	Sequence    uint64    `gorm:"not null" json:"sequence"`

	RawPayload datatypes.JSON `gorm:"type:jsonb" json:"raw_payload,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (OraclePrice) TableName() string {
	return "oracle_prices"
}
