package models

import "time"

type TokenAccount struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Address string `gorm:"type:varchar(64);not null;uniqueIndex" json:"address"`
	Balance int64  `gorm:"type:bigint;not null;default:0" json:"balance"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_accounts"
}

type TokenAllowance struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Owner   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_allowance_owner_spender" json:"owner"`
	Spender string `gorm:"type:varchar(64);not null;uniqueIndex:idx_allowance_owner_spender" json:"spender"`
	Amount  int64  `gorm:"type:bigint;not null;default:0" json:"amount"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (TokenAllowance) TableName() string {
	return "token_allowances"
}
