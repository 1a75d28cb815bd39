package service

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"gamesfi/internal/models"
	"gamesfi/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. Writes are applied immediately; InTx just
// runs the body, so tests exercise engine logic, not rollback.
type stubRepo struct {
	lotteryRounds map[uint64]*models.LotteryRound
	tickets       map[uint64]*models.LotteryTicket
	predRounds    map[uint64]*models.PredictionRound
	bets          map[string]*models.Bet
	oraclePrices  map[string]*models.OraclePrice
	accounts      map[string]*models.TokenAccount
	allowances    map[string]*models.TokenAllowance
	settings      map[string]*models.SystemSetting

	nextRoundID  uint64
	nextTicketID uint64
	nextBetID    uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		lotteryRounds: make(map[uint64]*models.LotteryRound),
		tickets:       make(map[uint64]*models.LotteryTicket),
		predRounds:    make(map[uint64]*models.PredictionRound),
		bets:          make(map[string]*models.Bet),
		oraclePrices:  make(map[string]*models.OraclePrice),
		accounts:      make(map[string]*models.TokenAccount),
		allowances:    make(map[string]*models.TokenAllowance),
		settings:      make(map[string]*models.SystemSetting),
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func betKey(epoch uint64, owner string) string {
	return strings.ToLower(owner) + "@" + strconv.FormatUint(epoch, 10)
}

func (s *stubRepo) CreateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error {
	s.nextRoundID++
	item.ID = s.nextRoundID
	clone := *item
	s.lotteryRounds[item.ID] = &clone
	return nil
}

func (s *stubRepo) UpdateLotteryRoundTx(ctx context.Context, tx *gorm.DB, item *models.LotteryRound) error {
	clone := *item
	s.lotteryRounds[item.ID] = &clone
	return nil
}

func (s *stubRepo) GetLotteryRoundTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.LotteryRound, error) {
	round, ok := s.lotteryRounds[id]
	if !ok {
		return nil, nil
	}
	clone := *round
	return &clone, nil
}

func (s *stubRepo) GetLotteryRound(ctx context.Context, id uint64) (*models.LotteryRound, error) {
	return s.GetLotteryRoundTx(ctx, nil, id)
}

func (s *stubRepo) LatestLotteryRoundTx(ctx context.Context, tx *gorm.DB) (*models.LotteryRound, error) {
	var latest *models.LotteryRound
	for _, round := range s.lotteryRounds {
		if latest == nil || round.ID > latest.ID {
			latest = round
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (s *stubRepo) ListLotteryRounds(ctx context.Context, params repository.ListLotteryRoundsParams) ([]models.LotteryRound, error) {
	out := make([]models.LotteryRound, 0, len(s.lotteryRounds))
	for _, round := range s.lotteryRounds {
		if params.Status != nil && round.Status != *params.Status {
			continue
		}
		out = append(out, *round)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *stubRepo) CountLotteryRounds(ctx context.Context, params repository.ListLotteryRoundsParams) (int64, error) {
	items, _ := s.ListLotteryRounds(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) CreateLotteryTicketsTx(ctx context.Context, tx *gorm.DB, items []*models.LotteryTicket) error {
	for _, item := range items {
		s.nextTicketID++
		item.ID = s.nextTicketID
		clone := *item
		s.tickets[item.ID] = &clone
	}
	return nil
}

func (s *stubRepo) UpdateLotteryTicketTx(ctx context.Context, tx *gorm.DB, item *models.LotteryTicket) error {
	clone := *item
	s.tickets[item.ID] = &clone
	return nil
}

func (s *stubRepo) GetLotteryTicketsByIDsTx(ctx context.Context, tx *gorm.DB, ids []uint64) ([]models.LotteryTicket, error) {
	out := make([]models.LotteryTicket, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *stubRepo) ListRoundTicketsTx(ctx context.Context, tx *gorm.DB, roundID uint64) ([]models.LotteryTicket, error) {
	out := make([]models.LotteryTicket, 0)
	for _, t := range s.tickets {
		if t.RoundID == roundID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) ListLotteryTickets(ctx context.Context, params repository.ListLotteryTicketsParams) ([]models.LotteryTicket, error) {
	out := make([]models.LotteryTicket, 0)
	for _, t := range s.tickets {
		if params.RoundID != nil && t.RoundID != *params.RoundID {
			continue
		}
		if params.Owner != nil && t.Owner != strings.ToLower(*params.Owner) {
			continue
		}
		if params.Claimed != nil && t.Claimed != *params.Claimed {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountLotteryTickets(ctx context.Context, params repository.ListLotteryTicketsParams) (int64, error) {
	items, _ := s.ListLotteryTickets(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) CreatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error {
	item.ID = item.Epoch
	clone := *item
	s.predRounds[item.Epoch] = &clone
	return nil
}

func (s *stubRepo) UpdatePredictionRoundTx(ctx context.Context, tx *gorm.DB, item *models.PredictionRound) error {
	clone := *item
	s.predRounds[item.Epoch] = &clone
	return nil
}

func (s *stubRepo) GetPredictionRoundTx(ctx context.Context, tx *gorm.DB, epoch uint64) (*models.PredictionRound, error) {
	round, ok := s.predRounds[epoch]
	if !ok {
		return nil, nil
	}
	clone := *round
	return &clone, nil
}

func (s *stubRepo) GetPredictionRound(ctx context.Context, epoch uint64) (*models.PredictionRound, error) {
	return s.GetPredictionRoundTx(ctx, nil, epoch)
}

func (s *stubRepo) LatestPredictionRoundTx(ctx context.Context, tx *gorm.DB) (*models.PredictionRound, error) {
	var latest *models.PredictionRound
	for _, round := range s.predRounds {
		if latest == nil || round.Epoch > latest.Epoch {
			latest = round
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (s *stubRepo) ListPredictionRounds(ctx context.Context, params repository.ListPredictionRoundsParams) ([]models.PredictionRound, error) {
	out := make([]models.PredictionRound, 0, len(s.predRounds))
	for _, round := range s.predRounds {
		out = append(out, *round)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch > out[j].Epoch })
	return out, nil
}

func (s *stubRepo) CountPredictionRounds(ctx context.Context, params repository.ListPredictionRoundsParams) (int64, error) {
	return int64(len(s.predRounds)), nil
}

func (s *stubRepo) CreateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	s.nextBetID++
	item.ID = s.nextBetID
	clone := *item
	s.bets[betKey(item.Epoch, item.Owner)] = &clone
	return nil
}

func (s *stubRepo) UpdateBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	clone := *item
	s.bets[betKey(item.Epoch, item.Owner)] = &clone
	return nil
}

func (s *stubRepo) GetBetTx(ctx context.Context, tx *gorm.DB, epoch uint64, owner string) (*models.Bet, error) {
	bet, ok := s.bets[betKey(epoch, owner)]
	if !ok {
		return nil, nil
	}
	clone := *bet
	return &clone, nil
}

func (s *stubRepo) GetBet(ctx context.Context, epoch uint64, owner string) (*models.Bet, error) {
	return s.GetBetTx(ctx, nil, epoch, owner)
}

func (s *stubRepo) ListBets(ctx context.Context, params repository.ListBetsParams) ([]models.Bet, error) {
	out := make([]models.Bet, 0)
	for _, bet := range s.bets {
		if params.Epoch != nil && bet.Epoch != *params.Epoch {
			continue
		}
		if params.Owner != nil && bet.Owner != strings.ToLower(*params.Owner) {
			continue
		}
		if params.Claimed != nil && bet.Claimed != *params.Claimed {
			continue
		}
		out = append(out, *bet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountBets(ctx context.Context, params repository.ListBetsParams) (int64, error) {
	items, _ := s.ListBets(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) GetOraclePriceTx(ctx context.Context, tx *gorm.DB, feedID string) (*models.OraclePrice, error) {
	price, ok := s.oraclePrices[strings.TrimSpace(feedID)]
	if !ok {
		return nil, nil
	}
	clone := *price
	return &clone, nil
}

func (s *stubRepo) GetOraclePrice(ctx context.Context, feedID string) (*models.OraclePrice, error) {
	return s.GetOraclePriceTx(ctx, nil, feedID)
}

func (s *stubRepo) UpsertOraclePriceTx(ctx context.Context, tx *gorm.DB, item *models.OraclePrice) error {
	clone := *item
	s.oraclePrices[item.FeedID] = &clone
	return nil
}

func (s *stubRepo) GetTokenAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenAccount, error) {
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(address))]
	if !ok {
		return nil, nil
	}
	clone := *acct
	return &clone, nil
}

func (s *stubRepo) SaveTokenAccountTx(ctx context.Context, tx *gorm.DB, item *models.TokenAccount) error {
	clone := *item
	s.accounts[item.Address] = &clone
	return nil
}

func (s *stubRepo) GetTokenAllowanceTx(ctx context.Context, tx *gorm.DB, owner, spender string) (*models.TokenAllowance, error) {
	grant, ok := s.allowances[strings.ToLower(owner)+"/"+strings.ToLower(spender)]
	if !ok {
		return nil, nil
	}
	clone := *grant
	return &clone, nil
}

func (s *stubRepo) SaveTokenAllowanceTx(ctx context.Context, tx *gorm.DB, item *models.TokenAllowance) error {
	clone := *item
	s.allowances[item.Owner+"/"+item.Spender] = &clone
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	clone := *item
	s.settings[item.Key] = &clone
	return nil
}
