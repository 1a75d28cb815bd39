package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gamesfi/internal/models"
	"gamesfi/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// conn resolves the handle a query should run on: the supplied
// transaction when inside InTx, the base connection otherwise.
func (s *Store) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// --- lottery ----------------------------------------------------------------

func (s *Store) CreateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) UpdateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

func (s *Store) GetLotteryRoundTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.LotteryRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.LotteryRound
	err := s.conn(ctx, tx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetLotteryRound(ctx context.Context, id uint64) (*models.LotteryRound, error) {
	return s.GetLotteryRoundTx(ctx, nil, id)
}

func (s *Store) LatestLotteryRoundTx(ctx context.Context, tx *gorm.DB) (*models.LotteryRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.LotteryRound
	err := s.conn(ctx, tx).Order("id desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) lotteryRoundQuery(ctx context.Context, params repository.ListLotteryRoundsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.LotteryRound{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	return query
}

func (s *Store) ListLotteryRounds(ctx context.Context, params repository.ListLotteryRoundsParams) ([]models.LotteryRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	order := "id desc"
	if params.Asc != nil && *params.Asc {
		order = "id asc"
	}
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.LotteryRound
	if err := s.lotteryRoundQuery(ctx, params).Order(order).Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountLotteryRounds(ctx context.Context, params repository.ListLotteryRoundsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.lotteryRoundQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateLotteryTicketsTx(ctx context.Context, tx *gorm.DB, items []*models.LotteryTicket) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.conn(ctx, tx).Create(items).Error
}

func (s *Store) UpdateLotteryTicketTx(ctx context.Context, tx *gorm.DB, item *models.LotteryTicket) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

func (s *Store) GetLotteryTicketsByIDsTx(ctx context.Context, tx *gorm.DB, ids []uint64) ([]models.LotteryTicket, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.LotteryTicket
	if err := s.conn(ctx, tx).Where("id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRoundTicketsTx(ctx context.Context, tx *gorm.DB, roundID uint64) ([]models.LotteryTicket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.LotteryTicket
	if err := s.conn(ctx, tx).Where("round_id = ?", roundID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) lotteryTicketQuery(ctx context.Context, params repository.ListLotteryTicketsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.LotteryTicket{})
	if params.RoundID != nil {
		query = query.Where("round_id = ?", *params.RoundID)
	}
	if params.Owner != nil && strings.TrimSpace(*params.Owner) != "" {
		query = query.Where("owner = ?", strings.ToLower(strings.TrimSpace(*params.Owner)))
	}
	if params.Claimed != nil {
		query = query.Where("claimed = ?", *params.Claimed)
	}
	return query
}

func (s *Store) ListLotteryTickets(ctx context.Context, params repository.ListLotteryTicketsParams) ([]models.LotteryTicket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.LotteryTicket
	if err := s.lotteryTicketQuery(ctx, params).Order("id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountLotteryTickets(ctx context.Context, params repository.ListLotteryTicketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.lotteryTicketQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- prediction -------------------------------------------------------------

func (s *Store) CreatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) UpdatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

func (s *Store) GetPredictionRoundTx(ctx context.Context, tx *gorm.DB, epoch uint64) (*models.PredictionRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PredictionRound
	err := s.conn(ctx, tx).First(&item, "epoch = ?", epoch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPredictionRound(ctx context.Context, epoch uint64) (*models.PredictionRound, error) {
	return s.GetPredictionRoundTx(ctx, nil, epoch)
}

func (s *Store) LatestPredictionRoundTx(ctx context.Context, tx *gorm.DB) (*models.PredictionRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PredictionRound
	err := s.conn(ctx, tx).Order("epoch desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPredictionRounds(ctx context.Context, params repository.ListPredictionRoundsParams) ([]models.PredictionRound, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	order := "epoch desc"
	if params.Asc != nil && *params.Asc {
		order = "epoch asc"
	}
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.PredictionRound
	if err := s.db.WithContext(ctx).Model(&models.PredictionRound{}).
		Order(order).Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPredictionRounds(ctx context.Context, params repository.ListPredictionRoundsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.PredictionRound{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) UpdateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

func (s *Store) GetBetTx(ctx context.Context, tx *gorm.DB, epoch uint64, owner string) (*models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Bet
	err := s.conn(ctx, tx).
		Where("epoch = ?", epoch).
		Where("owner = ?", strings.ToLower(strings.TrimSpace(owner))).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetBet(ctx context.Context, epoch uint64, owner string) (*models.Bet, error) {
	return s.GetBetTx(ctx, nil, epoch, owner)
}

func (s *Store) betQuery(ctx context.Context, params repository.ListBetsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Bet{})
	if params.Epoch != nil {
		query = query.Where("epoch = ?", *params.Epoch)
	}
	if params.Owner != nil && strings.TrimSpace(*params.Owner) != "" {
		query = query.Where("owner = ?", strings.ToLower(strings.TrimSpace(*params.Owner)))
	}
	if params.Claimed != nil {
		query = query.Where("claimed = ?", *params.Claimed)
	}
	return query
}

func (s *Store) ListBets(ctx context.Context, params repository.ListBetsParams) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Bet
	if err := s.betQuery(ctx, params).Order("epoch desc, id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBets(ctx context.Context, params repository.ListBetsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.betQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- oracle -----------------------------------------------------------------

func (s *Store) GetOraclePriceTx(ctx context.Context, tx *gorm.DB, feedID string) (*models.OraclePrice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.OraclePrice
	err := s.conn(ctx, tx).First(&item, "feed_id = ?", strings.TrimSpace(feedID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetOraclePrice(ctx context.Context, feedID string) (*models.OraclePrice, error) {
	return s.GetOraclePriceTx(ctx, nil, feedID)
}

func (s *Store) UpsertOraclePriceTx(ctx context.Context, tx *gorm.DB, item *models.OraclePrice) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "feed_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price",
			"expo",
			"publish_time",
			"sequence",
			"raw_payload",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- token ledger -----------------------------------------------------------

func (s *Store) GetTokenAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TokenAccount
	err := s.conn(ctx, tx).First(&item, "address = ?", strings.ToLower(strings.TrimSpace(address))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveTokenAccountTx(ctx context.Context, tx *gorm.DB, item *models.TokenAccount) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Address = strings.ToLower(strings.TrimSpace(item.Address))
	return s.conn(ctx, tx).Save(item).Error
}

func (s *Store) GetTokenAllowanceTx(ctx context.Context, tx *gorm.DB, owner, spender string) (*models.TokenAllowance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TokenAllowance
	err := s.conn(ctx, tx).
		Where("owner = ?", strings.ToLower(strings.TrimSpace(owner))).
		Where("spender = ?", strings.ToLower(strings.TrimSpace(spender))).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveTokenAllowanceTx(ctx context.Context, tx *gorm.DB, item *models.TokenAllowance) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Owner = strings.ToLower(strings.TrimSpace(item.Owner))
	item.Spender = strings.ToLower(strings.TrimSpace(item.Spender))
	return s.conn(ctx, tx).Save(item).Error
}

// --- system settings --------------------------------------------------------

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).First(&item, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
