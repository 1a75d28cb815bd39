package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
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

const (
	// Ticket numbers are six digits, each 1..9, read
	// least-significant-digit-first when matching brackets.
	minTicketNumber uint32 = 111111
	maxTicketNumber uint32 = 999999
)

// RolloverPolicyRollover carries zero-winner bracket pools into the
// next round; RolloverPolicyTreasury sweeps them to the treasury.
const (
	RolloverPolicyRollover = "rollover"
	RolloverPolicyTreasury = "treasury"
)

type LotteryService struct {
	Repo     repository.Repository
	Gate     *access.Gate
	Token    token.Token
	Oracle   *oracle.Adapter
	Settings *SystemSettingsService
	Config   config.LotteryConfig
	Treasury string
	Logger   *zap.Logger

	// Now and ReadEntropy exist so timing edges and draws are
	// deterministic under test.
	Now         func() time.Time
	ReadEntropy func(b []byte) error
}

func (s *LotteryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LotteryService) rolloverPolicy() string {
	if s.Config.RolloverPolicy == RolloverPolicyTreasury {
		return RolloverPolicyTreasury
	}
	return RolloverPolicyRollover
}

// ValidTicketNumber reports whether n is six digits with no zero digit.
func ValidTicketNumber(n uint32) bool {
	if n < minTicketNumber || n > maxTicketNumber {
		return false
	}
	for v := n; v > 0; v /= 10 {
		if v%10 == 0 {
			return false
		}
	}
	return true
}

// matchedBracket counts how many trailing digits of ticket equal the
// trailing digits of final, stopping at the first mismatch. The result
// is the one bracket the ticket wins, 0 for none.
func matchedBracket(ticket, final uint32) int {
	matched := 0
	for i := 0; i < models.Brackets; i++ {
		if ticket%10 != final%10 {
			break
		}
		matched++
		ticket /= 10
		final /= 10
	}
	return matched
}

type StartRoundParams struct {
	EndTime          time.Time
	PriceTicket      int64
	DiscountDivisor  uint32
	RewardsBreakdown [models.Brackets]uint32
	TreasuryFeeBp    uint32
}

func (s *LotteryService) StartRound(ctx context.Context, caller string, params StartRoundParams) (*models.LotteryRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	now := s.now()
	length := params.EndTime.Sub(now)
	if length < s.Config.MinRoundLength || length > s.Config.MaxRoundLength {
		return nil, fmt.Errorf("round length %s: %w", length.Truncate(time.Second), ErrInvalidRoundLength)
	}
	if params.PriceTicket < s.Config.MinTicketPrice || params.PriceTicket > s.Config.MaxTicketPrice {
		return nil, ErrInvalidTicketPrice
	}
	if params.DiscountDivisor < 1 {
		return nil, ErrInvalidDiscountDivisor
	}
	var breakdownSum uint64
	for _, bp := range params.RewardsBreakdown {
		breakdownSum += uint64(bp)
	}
	if breakdownSum > uint64(money.BasisPointsDivisor) {
		return nil, ErrInvalidRewardsBreakdown
	}
	if params.TreasuryFeeBp > s.Config.MaxTreasuryFee {
		return nil, ErrInvalidTreasuryFee
	}

	var round *models.LotteryRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		latest, err := s.Repo.LatestLotteryRoundTx(ctx, tx)
		if err != nil {
			return err
		}
		injection := int64(0)
		if latest != nil {
			if latest.Status != models.LotteryStatusClaimable {
				return fmt.Errorf("round %d: %w", latest.ID, ErrRoundStillOpen)
			}
			if latest.PendingInjectionNext > 0 {
				injection = latest.PendingInjectionNext
				latest.PendingInjectionNext = 0
				if err := s.Repo.UpdateLotteryRoundTx(ctx, tx, latest); err != nil {
					return err
				}
			}
		}
		round = &models.LotteryRound{
			Status:          models.LotteryStatusOpen,
			StartTime:       now,
			EndTime:         params.EndTime.UTC(),
			PriceTicket:     params.PriceTicket,
			DiscountDivisor: params.DiscountDivisor,
			TreasuryFeeBp:   params.TreasuryFeeBp,
			AmountCollected: injection,
		}
		round.SetBreakdown(params.RewardsBreakdown)
		return s.Repo.CreateLotteryRoundTx(ctx, tx, round)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("lottery round started",
			zap.Uint64("round", round.ID),
			zap.Time("end_time", round.EndTime),
			zap.Int64("injected", round.AmountCollected))
	}
	return round, nil
}

func (s *LotteryService) BuyTickets(ctx context.Context, caller string, roundID uint64, numbers []uint32) ([]*models.LotteryTicket, int64, error) {
	caller = access.NormalizeAddress(caller)
	if caller == "" {
		return nil, 0, access.ErrUnauthorized
	}
	if err := s.Gate.RequireNotPaused(ctx); err != nil {
		return nil, 0, err
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeatureLotterySales, true) {
		return nil, 0, access.ErrPaused
	}
	if len(numbers) == 0 || len(numbers) > s.Config.MaxBuyBatch {
		return nil, 0, ErrEmptyTicketsOrTooMany
	}
	for _, n := range numbers {
		if !ValidTicketNumber(n) {
			return nil, 0, fmt.Errorf("number %d: %w", n, ErrInvalidTicketNumber)
		}
	}

	var tickets []*models.LotteryTicket
	var cost int64
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		round, err := s.Repo.GetLotteryRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}
		if round.Status != models.LotteryStatusOpen || !s.now().Before(round.EndTime) {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotOpen)
		}
		cost, err = money.BulkPrice(round.PriceTicket, len(numbers), round.DiscountDivisor)
		if err != nil {
			return err
		}
		tickets = make([]*models.LotteryTicket, 0, len(numbers))
		for _, n := range numbers {
			tickets = append(tickets, &models.LotteryTicket{
				RoundID: roundID,
				Owner:   caller,
				Number:  n,
			})
		}
		if err := s.Repo.CreateLotteryTicketsTx(ctx, tx, tickets); err != nil {
			return err
		}
		round.AmountCollected, err = money.CheckedAdd(round.AmountCollected, cost)
		if err != nil {
			return err
		}
		round.TicketsSoldCount += int64(len(numbers))
		if err := s.Repo.UpdateLotteryRoundTx(ctx, tx, round); err != nil {
			return err
		}
		return s.Token.TransferFrom(ctx, tx, s.Config.PoolAddress, caller, s.Config.PoolAddress, cost)
	})
	if err != nil {
		return nil, 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("tickets bought",
			zap.Uint64("round", roundID),
			zap.String("buyer", caller),
			zap.Int("count", len(numbers)),
			zap.Int64("cost", cost))
	}
	return tickets, cost, nil
}

func (s *LotteryService) CloseLottery(ctx context.Context, caller string, roundID uint64) (*models.LotteryRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var round *models.LotteryRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		round, err = s.Repo.GetLotteryRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}
		if round.Status != models.LotteryStatusOpen {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotOpen)
		}
		if s.now().Before(round.EndTime) {
			return fmt.Errorf("round %d ends %s: %w", roundID, round.EndTime, ErrRoundStillOpen)
		}
		// Pin the oracle sequence at close so the later draw provably
		// seeds from an update taken no earlier than this moment.
		if price := s.freshOraclePrice(ctx, tx); price != nil {
			round.DrawOracleSeq = price.Sequence
		}
		round.Status = models.LotteryStatusClose
		return s.Repo.UpdateLotteryRoundTx(ctx, tx, round)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("lottery round closed", zap.Uint64("round", roundID))
	}
	return round, nil
}

// freshOraclePrice returns the cached oracle price when one exists and
// is within the configured update allowance, nil otherwise.
func (s *LotteryService) freshOraclePrice(ctx context.Context, tx *gorm.DB) *oracle.Price {
	if s.Oracle == nil {
		return nil
	}
	price, err := s.Oracle.FetchPriceTx(ctx, tx, s.Oracle.Config.FeedID)
	if err != nil {
		return nil
	}
	if err := oracle.RequireFresh(price, s.now(), s.Oracle.Config.UpdateAllowance); err != nil {
		return nil
	}
	return price
}

// drawNumber produces the final six digit number, each digit 1..9.
// When a cached oracle price exists the seed is a keccak hash binding
// the draw to that update, the round and its sales; otherwise the seed
// is read from the entropy source.
func (s *LotteryService) drawNumber(ctx context.Context, tx *gorm.DB, round *models.LotteryRound) (uint32, error) {
	var seed []byte
	if price := s.freshOraclePrice(ctx, tx); price != nil {
		var buf [24]byte
		binary.BigEndian.PutUint64(buf[0:8], price.Sequence)
		binary.BigEndian.PutUint64(buf[8:16], uint64(price.PublishTime.Unix()))
		binary.BigEndian.PutUint64(buf[16:24], round.ID)
		seed = crypto.Keccak256(
			buf[:],
			[]byte(price.Price.String()),
			binary.BigEndian.AppendUint64(nil, uint64(round.TicketsSoldCount)),
		)
		round.DrawOracleSeq = price.Sequence
	}
	if seed == nil {
		seed = make([]byte, 32)
		readEntropy := s.ReadEntropy
		if readEntropy == nil {
			readEntropy = func(b []byte) error {
				_, err := rand.Read(b)
				return err
			}
		}
		if err := readEntropy(seed); err != nil {
			return 0, err
		}
	}
	var n uint32
	for i := 0; i < 6; i++ {
		digit := uint32(seed[i])%9 + 1
		n = n*10 + digit
	}
	return n, nil
}

func (s *LotteryService) DrawFinalNumberAndMakeClaimable(ctx context.Context, caller string, roundID uint64) (*models.LotteryRound, error) {
	if err := s.Gate.Require(ctx, caller, access.RoleOperator); err != nil {
		return nil, err
	}
	var round *models.LotteryRound
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		round, err = s.Repo.GetLotteryRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}
		if round.Status == models.LotteryStatusClaimable {
			return fmt.Errorf("round %d: %w", roundID, ErrDrawAlreadyExecuted)
		}
		if round.Status != models.LotteryStatusClose {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotClosed)
		}

		final, err := s.drawNumber(ctx, tx, round)
		if err != nil {
			return err
		}

		tickets, err := s.Repo.ListRoundTicketsTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		var winners [models.Brackets]int64
		for i := range tickets {
			if b := matchedBracket(tickets[i].Number, final); b > 0 {
				winners[models.Brackets-b]++
			}
		}

		breakdown, err := round.Breakdown()
		if err != nil {
			return err
		}
		_, treasuryAmt, err := money.ApplyFee(round.AmountCollected, round.TreasuryFeeBp)
		if err != nil {
			return err
		}
		distributable := round.AmountCollected - treasuryAmt

		var rewards [models.Brackets]int64
		rollover := int64(0)
		for i := 0; i < models.Brackets; i++ {
			pool, err := money.MulDiv(distributable, int64(breakdown[i]), money.BasisPointsDivisor)
			if err != nil {
				return err
			}
			if pool == 0 {
				continue
			}
			if winners[i] > 0 {
				rewards[i] = pool / winners[i]
				continue
			}
			rollover, err = money.CheckedAdd(rollover, pool)
			if err != nil {
				return err
			}
		}
		switch s.rolloverPolicy() {
		case RolloverPolicyTreasury:
			treasuryAmt, err = money.CheckedAdd(treasuryAmt, rollover)
			if err != nil {
				return err
			}
		default:
			round.PendingInjectionNext = rollover
		}

		round.FinalNumber = final
		round.TreasuryAmount = treasuryAmt
		round.SetWinners(winners)
		round.SetTicketRewards(rewards)
		round.Status = models.LotteryStatusClaimable
		if err := s.Repo.UpdateLotteryRoundTx(ctx, tx, round); err != nil {
			return err
		}
		if treasuryAmt > 0 {
			return s.Token.Transfer(ctx, tx, s.Config.PoolAddress, s.Treasury, treasuryAmt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("lottery drawn",
			zap.Uint64("round", roundID),
			zap.Uint32("final_number", round.FinalNumber),
			zap.Int64("treasury", round.TreasuryAmount),
			zap.Int64("rollover", round.PendingInjectionNext))
	}
	return round, nil
}

func (s *LotteryService) ClaimTickets(ctx context.Context, caller string, roundID uint64, ticketIDs []uint64) (int64, error) {
	caller = access.NormalizeAddress(caller)
	if caller == "" {
		return 0, access.ErrUnauthorized
	}
	if len(ticketIDs) == 0 || len(ticketIDs) > s.Config.MaxBuyBatch {
		return 0, ErrEmptyTicketsOrTooMany
	}
	var total int64
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		round, err := s.Repo.GetLotteryRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}
		if round.Status != models.LotteryStatusClaimable {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotClaimable)
		}
		rewards, err := round.TicketRewards()
		if err != nil {
			return err
		}
		tickets, err := s.Repo.GetLotteryTicketsByIDsTx(ctx, tx, ticketIDs)
		if err != nil {
			return err
		}
		byID := make(map[uint64]*models.LotteryTicket, len(tickets))
		for i := range tickets {
			byID[tickets[i].ID] = &tickets[i]
		}
		total = 0
		for _, id := range ticketIDs {
			ticket, ok := byID[id]
			if !ok || ticket.RoundID != roundID || ticket.Owner != caller {
				return fmt.Errorf("ticket %d: %w", id, ErrNotTicketOwner)
			}
			if ticket.Claimed {
				return fmt.Errorf("ticket %d: %w", id, ErrTicketAlreadyClaimed)
			}
			bracket := matchedBracket(ticket.Number, round.FinalNumber)
			reward := int64(0)
			if bracket > 0 {
				reward = rewards[models.Brackets-bracket]
			}
			ticket.Claimed = true
			ticket.ClaimedBracket = bracket
			ticket.ClaimedAmount = reward
			if err := s.Repo.UpdateLotteryTicketTx(ctx, tx, ticket); err != nil {
				return err
			}
			total, err = money.CheckedAdd(total, reward)
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
		s.Logger.Info("tickets claimed",
			zap.Uint64("round", roundID),
			zap.String("owner", caller),
			zap.Int("count", len(ticketIDs)),
			zap.Int64("paid", total))
	}
	return total, nil
}

func (s *LotteryService) InjectFunds(ctx context.Context, caller string, roundID uint64, amount int64) error {
	if err := s.Gate.Require(ctx, caller, access.RoleInjector); err != nil {
		return err
	}
	caller = access.NormalizeAddress(caller)
	if amount <= 0 {
		return token.ErrInvalidAmount
	}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		round, err := s.Repo.GetLotteryRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}
		if round.Status != models.LotteryStatusOpen && round.Status != models.LotteryStatusClose {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotOpen)
		}
		round.AmountCollected, err = money.CheckedAdd(round.AmountCollected, amount)
		if err != nil {
			return err
		}
		if err := s.Repo.UpdateLotteryRoundTx(ctx, tx, round); err != nil {
			return err
		}
		return s.Token.TransferFrom(ctx, tx, s.Config.PoolAddress, caller, s.Config.PoolAddress, amount)
	})
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("funds injected",
			zap.Uint64("round", roundID),
			zap.String("injector", caller),
			zap.Int64("amount", amount))
	}
	return nil
}

func (s *LotteryService) RoundByID(ctx context.Context, roundID uint64) (*models.LotteryRound, error) {
	round, err := s.Repo.GetLotteryRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
	}
	return round, nil
}

func (s *LotteryService) ListRounds(ctx context.Context, params repository.ListLotteryRoundsParams) ([]models.LotteryRound, int64, error) {
	items, err := s.Repo.ListLotteryRounds(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountLotteryRounds(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *LotteryService) TicketsForOwner(ctx context.Context, roundID uint64, owner string, limit, offset int) ([]models.LotteryTicket, int64, error) {
	owner = access.NormalizeAddress(owner)
	params := repository.ListLotteryTicketsParams{
		Limit:   limit,
		Offset:  offset,
		RoundID: &roundID,
		Owner:   &owner,
	}
	items, err := s.Repo.ListLotteryTickets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountLotteryTickets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *LotteryService) TicketsByIDs(ctx context.Context, ids []uint64) ([]models.LotteryTicket, error) {
	return s.Repo.GetLotteryTicketsByIDsTx(ctx, nil, ids)
}
