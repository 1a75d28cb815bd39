package repository

import (
	"context"

	"gorm.io/gorm"

	"gamesfi/internal/models"
)

// Repository is the persistence surface shared by the engines, the
// oracle adapter and the token ledger. Write methods carry a *Tx
// suffix and accept the transaction they run in; passing a nil tx
// falls back to the base connection. Engine entry points wrap their
// whole body in InTx so each call commits fully or not at all.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Lottery rounds and tickets.
	CreateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error
	UpdateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error
	GetLotteryRoundTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.LotteryRound, error)
	GetLotteryRound(ctx context.Context, id uint64) (*models.LotteryRound, error)
	LatestLotteryRoundTx(ctx context.Context, tx *gorm.DB) (*models.LotteryRound, error)
	ListLotteryRounds(ctx context.Context, params ListLotteryRoundsParams) ([]models.LotteryRound, error)
	CountLotteryRounds(ctx context.Context, params ListLotteryRoundsParams) (int64, error)

	CreateLotteryTicketsTx(ctx context.Context, tx *gorm.DB, items []*models.LotteryTicket) error
	UpdateLotteryTicketTx(ctx context.Context, tx *gorm.DB, item *models.LotteryTicket) error
	GetLotteryTicketsByIDsTx(ctx context.Context, tx *gorm.DB, ids []uint64) ([]models.LotteryTicket, error)
	ListRoundTicketsTx(ctx context.Context, tx *gorm.DB, roundID uint64) ([]models.LotteryTicket, error)
	ListLotteryTickets(ctx context.Context, params ListLotteryTicketsParams) ([]models.LotteryTicket, error)
	CountLotteryTickets(ctx context.Context, params ListLotteryTicketsParams) (int64, error)

	// Prediction rounds and bets.
	CreatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error
	UpdatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error
	GetPredictionRoundTx(ctx context.Context, tx *gorm.DB, epoch uint64) (*models.PredictionRound, error)
	GetPredictionRound(ctx context.Context, epoch uint64) (*models.PredictionRound, error)
	LatestPredictionRoundTx(ctx context.Context, tx *gorm.DB) (*models.PredictionRound, error)
	ListPredictionRounds(ctx context.Context, params ListPredictionRoundsParams) ([]models.PredictionRound, error)
	CountPredictionRounds(ctx context.Context, params ListPredictionRoundsParams) (int64, error)

	CreateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error
	UpdateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error
	GetBetTx(ctx context.Context, tx *gorm.DB, epoch uint64, owner string) (*models.Bet, error)
	GetBet(ctx context.Context, epoch uint64, owner string) (*models.Bet, error)
	ListBets(ctx context.Context, params ListBetsParams) ([]models.Bet, error)
	CountBets(ctx context.Context, params ListBetsParams) (int64, error)

	// Oracle price cache.
	GetOraclePriceTx(ctx context.Context, tx *gorm.DB, feedID string) (*models.OraclePrice, error)
	GetOraclePrice(ctx context.Context, feedID string) (*models.OraclePrice, error)
	UpsertOraclePriceTx(ctx context.Context, tx *gorm.DB, item *models.OraclePrice) error

	// Token ledger.
	GetTokenAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenAccount, error)
	SaveTokenAccountTx(ctx context.Context, tx *gorm.DB, item *models.TokenAccount) error
	GetTokenAllowanceTx(ctx context.Context, tx *gorm.DB, owner, spender string) (*models.TokenAllowance, error)
	SaveTokenAllowanceTx(ctx context.Context, tx *gorm.DB, item *models.TokenAllowance) error

	// System settings (roles, pause, feature switches).
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
}

type ListLotteryRoundsParams struct {
	Limit  int
	Offset int
	Status *string
	Asc    *bool
}

type ListLotteryTicketsParams struct {
	Limit   int
	Offset  int
	RoundID *uint64
	Owner   *string
	Claimed *bool
}

type ListPredictionRoundsParams struct {
	Limit  int
	Offset int
	Asc    *bool
}

type ListBetsParams struct {
	Limit   int
	Offset  int
	Epoch   *uint64
	Owner   *string
	Claimed *bool
}
