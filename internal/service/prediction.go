package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gamesfi/internal/access"
	"gamesfi/internal/config"
	"gamesfi/internal/models"
	"gamesfi/internal/money"
	"gamesfi/internal/oracle"
	"gamesfi/internal/repository"
	"gamesfi/internal/token"
)

type PredictionService struct {
	Repo     repository.Repository
	Gate     *access.Gate
	Token    token.Token
	Oracle   *oracle.Adapter
	Settings *SystemSettingsService
	Config   config.PredictionConfig
	Treasury string
	Logger   *zap.Logger

	Now func() time.Time
}

func (s *PredictionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PredictionService) interval() time.Duration {
	return time.Duration(s.Config.IntervalSeconds) * time.Second
}

func (s *PredictionService) buffer() time.Duration {
	return time.Duration(s.Config.BufferSeconds) * time.Second
}

func (s *PredictionService) freshPrice(ctx context.Context, tx *gorm.DB) (*oracle.Price, error) {
	price, err := s.Oracle.FetchPriceTx(ctx, tx, s.Config.FeedID)
	if err != nil {
		return nil, err
	}
	if err := oracle.RequireFresh(price, s.now(), s.Config.OracleAllowance); err != nil {
		return nil, err
	}
	return price, nil
}

func (s *PredictionService) startRound(ctx context.Context, tx *gorm.DB, epoch uint64) (*models.PredictionRound, error) {
	now := s.now()
	round := &models.PredictionRound{
		Epoch:          epoch,
		StartTimestamp: now,
		LockTimestamp:  now.Add(s.interval()),
		CloseTimestamp: now.Add(2 * s.interval()),
	}
	if err := s.Repo.CreatePredictionRoundTx(ctx, tx, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (s *PredictionService) GenesisStartRound(ctx context.Context, caller string) (*models.PredictionRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var round *models.PredictionRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		latest, err := s.Repo.LatestPredictionRoundTx(ctx, tx)
		if err != nil {
			return err
		}
		if latest != nil {
			return ErrAlreadyStarted
		}
		round, err = s.startRound(ctx, tx, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("genesis round started", zap.Time("lock", round.LockTimestamp))
	}
	return round, nil
}

func (s *PredictionService) lockRound(ctx context.Context, tx *gorm.DB, round *models.PredictionRound, price *oracle.Price) error {
	now := s.now()
	if now.Before(round.LockTimestamp) {
		return fmt.Errorf("epoch %d locks at %s: %w", round.Epoch, round.LockTimestamp, ErrTooEarlyToLock)
	}
	if now.After(round.LockTimestamp.Add(s.buffer())) {
		return fmt.Errorf("epoch %d: %w", round.Epoch, ErrRoundWindowMissed)
	}
	round.LockPrice = price.Price
	round.LockOracleSeq = price.Sequence
	return s.Repo.UpdatePredictionRoundTx(ctx, tx, round)
}

func (s *PredictionService) GenesisLockRound(ctx context.Context, caller string) (*models.PredictionRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var next *models.PredictionRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		genesis, err := s.Repo.GetPredictionRoundTx(ctx, tx, 1)
		if err != nil {
			return err
		}
		if genesis == nil {
			return ErrGenesisNotCompleted
		}
		if genesis.LockOracleSeq != 0 {
			return ErrAlreadyStarted
		}
		price, err := s.freshPrice(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.lockRound(ctx, tx, genesis, price); err != nil {
			return err
		}
		next, err = s.startRound(ctx, tx, 2)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("genesis round locked", zap.Uint64("current_epoch", next.Epoch))
	}
	return next, nil
}

// closeRound resolves a locked round against the close price: the
// treasury takes its cut of the whole pot and the remainder is split
// pro rata over the winning side. A push (close == lock) resolves with
// zero reward pools, every bet on it refunds at principal.
func (s *PredictionService) closeRound(ctx context.Context, tx *gorm.DB, round *models.PredictionRound, price *oracle.Price) error {
	round.ClosePrice = price.Price
	round.CloseOracleSeq = price.Sequence
	round.OracleCalled = true

	cmp := price.Price.Cmp(round.LockPrice)
	if cmp == 0 {
		round.RewardBaseCalAmount = 0
		round.RewardAmount = 0
		round.TreasuryAmount = 0
	} else {
		if cmp > 0 {
			round.RewardBaseCalAmount = round.BullAmount
		} else {
			round.RewardBaseCalAmount = round.BearAmount
		}
		net, fee, err := money.ApplyFee(round.TotalAmount, s.Config.TreasuryFeeBp)
		if err != nil {
			return err
		}
		round.RewardAmount = net
		round.TreasuryAmount = fee
	}
	if err := s.Repo.UpdatePredictionRoundTx(ctx, tx, round); err != nil {
		return err
	}
	if round.TreasuryAmount > 0 {
		return s.Token.Transfer(ctx, tx, s.Config.PoolAddress, s.Treasury, round.TreasuryAmount)
	}
	return nil
}

// ExecuteRound advances the pipeline one step: lock the current epoch,
// close the previous one, open the next.
func (s *PredictionService) ExecuteRound(ctx context.Context, caller string) (*models.PredictionRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var opened *models.PredictionRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		current, err := s.Repo.LatestPredictionRoundTx(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil || current.Epoch < 2 {
			return ErrGenesisNotCompleted
		}
		now := s.now()
		if now.Before(current.LockTimestamp) {
			return fmt.Errorf("epoch %d locks at %s: %w", current.Epoch, current.LockTimestamp, ErrTooEarlyToExecute)
		}
		price, err := s.freshPrice(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.lockRound(ctx, tx, current, price); err != nil {
			return err
		}
		previous, err := s.Repo.GetPredictionRoundTx(ctx, tx, current.Epoch-1)
		if err != nil {
			return err
		}
		if previous == nil {
			return ErrGenesisNotCompleted
		}
		// A previous round that never locked was abandoned by RecoverRounds;
		// it stays unresolved and its bets refund at principal.
		if previous.LockOracleSeq != 0 && !previous.OracleCalled {
			if err := s.closeRound(ctx, tx, previous, price); err != nil {
				return err
			}
		}
		opened, err = s.startRound(ctx, tx, current.Epoch+1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("round executed", zap.Uint64("current_epoch", opened.Epoch))
	}
	return opened, nil
}

// RecoverRounds restarts a pipeline whose lock window was missed. The
// latest epoch is abandoned where it stands, still unlocked, so its
// bets refund at principal once its close buffer passes, and a fresh
// bettable round opens right after it.
func (s *PredictionService) RecoverRounds(ctx context.Context, caller string) (*models.PredictionRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var opened *models.PredictionRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		latest, err := s.Repo.LatestPredictionRoundTx(ctx, tx)
		if err != nil {
			return err
		}
		if latest == nil {
			return ErrGenesisNotCompleted
		}
		if latest.LockOracleSeq != 0 || !s.now().After(latest.LockTimestamp.Add(s.buffer())) {
			return fmt.Errorf("epoch %d: %w", latest.Epoch, ErrRoundStillOpen)
		}
		opened, err = s.startRound(ctx, tx, latest.Epoch+1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Warn("prediction pipeline recovered",
			zap.Uint64("abandoned_epoch", opened.Epoch-1),
			zap.Uint64("current_epoch", opened.Epoch))
	}
	return opened, nil
}

func (s *PredictionService) bet(ctx context.Context, caller string, epoch uint64, direction string, amount int64) (*models.Bet, error) {
	caller = access.NormalizeAddress(caller)
	if caller == "" {
		return nil, access.ErrUnauthorized
	}
	if err := s.Gate.RequireNotPaused(ctx); err != nil {
		return nil, err
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeaturePredictionBets, true) {
		return nil, access.ErrPaused
	}
	if amount < s.Config.MinBetAmount {
		return nil, fmt.Errorf("amount %d < %d: %w", amount, s.Config.MinBetAmount, ErrBetAmountTooLow)
	}
	var bet *models.Bet
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		current, err := s.Repo.LatestPredictionRoundTx(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil || current.Epoch != epoch {
			return fmt.Errorf("epoch %d: %w", epoch, ErrRoundNotBettable)
		}
		now := s.now()
		if current.LockOracleSeq != 0 || !now.Before(current.LockTimestamp) || now.Before(current.StartTimestamp) {
			return fmt.Errorf("epoch %d: %w", epoch, ErrRoundNotBettable)
		}
		existing, err := s.Repo.GetBetTx(ctx, tx, epoch, caller)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("epoch %d: %w", epoch, ErrAlreadyBet)
		}
		bet = &models.Bet{
			Epoch:     epoch,
			Owner:     caller,
			Direction: direction,
			Amount:    amount,
		}
		if err := s.Repo.CreateBetTx(ctx, tx, bet); err != nil {
			return err
		}
		current.TotalAmount, err = money.CheckedAdd(current.TotalAmount, amount)
		if err != nil {
			return err
		}
		if direction == models.BetDirectionBull {
			current.BullAmount, err = money.CheckedAdd(current.BullAmount, amount)
		} else {
			current.BearAmount, err = money.CheckedAdd(current.BearAmount, amount)
		}
		if err != nil {
			return err
		}
		if err := s.Repo.UpdatePredictionRoundTx(ctx, tx, current); err != nil {
			return err
		}
		return s.Token.TransferFrom(ctx, tx, s.Config.PoolAddress, caller, s.Config.PoolAddress, amount)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("bet placed",
			zap.Uint64("epoch", epoch),
			zap.String("owner", caller),
			zap.String("direction", direction),
			zap.Int64("amount", amount))
	}
	return bet, nil
}

func (s *PredictionService) BetBull(ctx context.Context, caller string, epoch uint64, amount int64) (*models.Bet, error) {
	return s.bet(ctx, caller, epoch, models.BetDirectionBull, amount)
}

func (s *PredictionService) BetBear(ctx context.Context, caller string, epoch uint64, amount int64) (*models.Bet, error) {
	return s.bet(ctx, caller, epoch, models.BetDirectionBear, amount)
}

// claimable reports whether the bet won its resolved round.
func claimable(round *models.PredictionRound, bet *models.Bet) bool {
	if !round.OracleCalled || round.RewardBaseCalAmount == 0 {
		return false
	}
	cmp := round.ClosePrice.Cmp(round.LockPrice)
	if cmp == 0 {
		return false
	}
	if cmp > 0 {
		return bet.Direction == models.BetDirectionBull
	}
	return bet.Direction == models.BetDirectionBear
}

// refundable reports whether the bet gets its principal back: a push,
// or a round the oracle never resolved within its buffer.
func (s *PredictionService) refundable(round *models.PredictionRound, bet *models.Bet, now time.Time) bool {
	if round.OracleCalled {
		return round.ClosePrice.Cmp(round.LockPrice) == 0 && round.LockOracleSeq != 0
	}
	return now.After(round.CloseTimestamp.Add(s.buffer()))
}

// Claim pays out a batch of epochs in one transfer. Each epoch must be
// either a win on a resolved round or refundable; anything else aborts
// the whole batch.
func (s *PredictionService) Claim(ctx context.Context, caller string, epochs []uint64) (int64, error) {
	caller = access.NormalizeAddress(caller)
	if caller == "" {
		return 0, access.ErrUnauthorized
	}
	if len(epochs) == 0 {
		return 0, ErrNotEligible
	}
	var total int64
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		total = 0
		now := s.now()
		for _, epoch := range epochs {
			round, err := s.Repo.GetPredictionRoundTx(ctx, tx, epoch)
			if err != nil {
				return err
			}
			if round == nil {
				return fmt.Errorf("epoch %d: %w", epoch, ErrRoundNotFound)
			}
			bet, err := s.Repo.GetBetTx(ctx, tx, epoch, caller)
			if err != nil {
				return err
			}
			if bet == nil {
				return fmt.Errorf("epoch %d: %w", epoch, ErrNotEligible)
			}
			if bet.Claimed {
				return fmt.Errorf("epoch %d: %w", epoch, ErrAlreadyClaimed)
			}
			var payout int64
			switch {
			case claimable(round, bet):
				payout, err = money.MulDiv(bet.Amount, round.RewardAmount, round.RewardBaseCalAmount)
				if err != nil {
					return err
				}
			case s.refundable(round, bet, now):
				payout = bet.Amount
			default:
				return fmt.Errorf("epoch %d: %w", epoch, ErrNotEligible)
			}
			bet.Claimed = true
			bet.ClaimedAmount = payout
			if err := s.Repo.UpdateBetTx(ctx, tx, bet); err != nil {
				return err
			}
			total, err = money.CheckedAdd(total, payout)
			if err != nil {
				return err
			}
		}
		if total > 0 {
			return s.Token.Transfer(ctx, tx, s.Config.PoolAddress, caller, total)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("winnings claimed",
			zap.String("owner", caller),
			zap.Int("epochs", len(epochs)),
			zap.Int64("paid", total))
	}
	return total, nil
}

// UpdatePythOracle forwards a signed price payload to the oracle
// adapter on behalf of the operator.
func (s *PredictionService) UpdatePythOracle(ctx context.Context, caller string, update oracle.Update, feePaid int64) (*oracle.Price, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	return s.Oracle.PushUpdate(ctx, access.NormalizeAddress(caller), update, feePaid)
}

func (s *PredictionService) RoundByEpoch(ctx context.Context, epoch uint64) (*models.PredictionRound, error) {
	round, err := s.Repo.GetPredictionRound(ctx, epoch)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, fmt.Errorf("epoch %d: %w", epoch, ErrRoundNotFound)
	}
	return round, nil
}

func (s *PredictionService) ListRounds(ctx context.Context, params repository.ListPredictionRoundsParams) ([]models.PredictionRound, int64, error) {
	items, err := s.Repo.ListPredictionRounds(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountPredictionRounds(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// BetStatus is a bet joined with its claim eligibility flags.
type BetStatus struct {
	Bet        models.Bet `json:"bet"`
	Claimable  bool       `json:"claimable"`
	Refundable bool       `json:"refundable"`
}

func (s *PredictionService) BetsForOwner(ctx context.Context, owner string, limit, offset int) ([]BetStatus, int64, error) {
	owner = access.NormalizeAddress(owner)
	params := repository.ListBetsParams{
		Limit:  limit,
		Offset: offset,
		Owner:  &owner,
	}
	bets, err := s.Repo.ListBets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountBets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	out := make([]BetStatus, 0, len(bets))
	for i := range bets {
		status := BetStatus{Bet: bets[i]}
		round, err := s.Repo.GetPredictionRound(ctx, bets[i].Epoch)
		if err != nil {
			return nil, 0, err
		}
		if round != nil && !bets[i].Claimed {
			status.Claimable = claimable(round, &bets[i])
			status.Refundable = s.refundable(round, &bets[i], now)
		}
		out = append(out, status)
	}
	return out, total, nil
}
