package db

import (
	"gamesfi/internal/models"
)

func AutoMigrate(d *DB) error {
	if d == nil || d.Gorm == nil {
		return nil
	}
	return d.Gorm.AutoMigrate(
		&models.SystemSetting{},
		&models.TokenAccount{},
		&models.TokenAllowance{},
		&models.OraclePrice{},
		&models.LotteryRound{},
		&models.LotteryTicket{},
		&models.PredictionRound{},
		&models.Bet{},
	)
}
