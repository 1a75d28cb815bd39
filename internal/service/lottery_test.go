package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gamesfi/internal/access"
	"gamesfi/internal/config"
	"gamesfi/internal/models"
	"gamesfi/internal/money"
	"gamesfi/internal/oracle"
	"gamesfi/internal/token"
)

const (
	ownerAddr       = "0x00000000000000000000000000000000000000aa"
	operatorAddr    = "0x00000000000000000000000000000000000000bb"
	injectorAddr    = "0x00000000000000000000000000000000000000cc"
	aliceAddr       = "0x0000000000000000000000000000000000000a11"
	bobAddr         = "0x0000000000000000000000000000000000000b22"
	lotteryPoolAddr = "0x1070000000000000000000000000000000000001"
	treasuryAddr    = "0xfee0000000000000000000000000000000000001"
)

var defaultBreakdown = [models.Brackets]uint32{5000, 2500, 1500, 500, 300, 200}

type lotteryFixture struct {
	repo   *stubRepo
	gate   *access.Gate
	ledger *token.Ledger
	svc    *LotteryService
	now    time.Time
}

func newLotteryFixture(t *testing.T) *lotteryFixture {
	t.Helper()
	ctx := context.Background()
	repo := newStubRepo()
	gate := &access.Gate{Repo: repo}
	if err := gate.Bootstrap(ctx, ownerAddr); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := gate.SetOperator(ctx, ownerAddr, operatorAddr); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	if err := gate.SetInjector(ctx, ownerAddr, injectorAddr); err != nil {
		t.Fatalf("set injector: %v", err)
	}
	ledger := &token.Ledger{Repo: repo}
	f := &lotteryFixture{
		repo:   repo,
		gate:   gate,
		ledger: ledger,
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &LotteryService{
		Repo:     repo,
		Gate:     gate,
		Token:    ledger,
		Settings: &SystemSettingsService{Repo: repo},
		Config: config.LotteryConfig{
			PoolAddress:    lotteryPoolAddr,
			MinRoundLength: 4 * time.Hour,
			MaxRoundLength: 96 * time.Hour,
			MinTicketPrice: 500_000,
			MaxTicketPrice: 5_000_000_000,
			MaxBuyBatch:    100,
			MaxTreasuryFee: 3000,
			RolloverPolicy: RolloverPolicyRollover,
		},
		Treasury: treasuryAddr,
		Now:      func() time.Time { return f.now },
	}
	return f
}

func (f *lotteryFixture) fund(t *testing.T, addr string, amount int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.ledger.Mint(ctx, addr, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.ledger.Approve(ctx, addr, lotteryPoolAddr, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func (f *lotteryFixture) balance(t *testing.T, addr string) int64 {
	t.Helper()
	balance, err := f.ledger.BalanceOf(context.Background(), addr)
	if err != nil {
		t.Fatalf("balance of %s: %v", addr, err)
	}
	return balance
}

func (f *lotteryFixture) startRound(t *testing.T) *models.LotteryRound {
	t.Helper()
	round, err := f.svc.StartRound(context.Background(), operatorAddr, StartRoundParams{
		EndTime:          f.now.Add(6 * time.Hour),
		PriceTicket:      money.Units,
		DiscountDivisor:  2000,
		RewardsBreakdown: defaultBreakdown,
		TreasuryFeeBp:    2000,
	})
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	return round
}

// entropyForNumber returns a deterministic entropy source producing
// the given digits (each 1..9) as the drawn number.
func entropyForNumber(digits [6]byte) func([]byte) error {
	return func(b []byte) error {
		for i := range b {
			b[i] = 0
		}
		for i, d := range digits {
			b[i] = d - 1
		}
		return nil
	}
}

func TestValidTicketNumber(t *testing.T) {
	cases := []struct {
		n  uint32
		ok bool
	}{
		{111111, true},
		{999999, true},
		{123456, true},
		{111110, false},
		{110111, false},
		{101111, false},
		{11111, false},
		{1111111, false},
		{0, false},
	}
	for _, tc := range cases {
		if got := ValidTicketNumber(tc.n); got != tc.ok {
			t.Errorf("ValidTicketNumber(%d) = %v, want %v", tc.n, got, tc.ok)
		}
	}
}

func TestMatchedBracket(t *testing.T) {
	cases := []struct {
		ticket, final uint32
		want          int
	}{
		{123456, 123456, 6},
		{923456, 123456, 5},
		{993456, 123456, 4},
		{111116, 123456, 1},
		{111111, 123456, 0},
		// A matching last digit behind a mismatch does not count.
		{123416, 123456, 1},
	}
	for _, tc := range cases {
		if got := matchedBracket(tc.ticket, tc.final); got != tc.want {
			t.Errorf("matchedBracket(%d, %d) = %d, want %d", tc.ticket, tc.final, got, tc.want)
		}
	}
}

func TestStartRoundValidation(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()

	base := StartRoundParams{
		EndTime:          f.now.Add(6 * time.Hour),
		PriceTicket:      money.Units,
		DiscountDivisor:  2000,
		RewardsBreakdown: defaultBreakdown,
		TreasuryFeeBp:    2000,
	}

	if _, err := f.svc.StartRound(ctx, aliceAddr, base); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("non-operator start: got %v, want ErrUnauthorized", err)
	}

	short := base
	short.EndTime = f.now.Add(time.Hour)
	if _, err := f.svc.StartRound(ctx, operatorAddr, short); !errors.Is(err, ErrInvalidRoundLength) {
		t.Fatalf("short round: got %v, want ErrInvalidRoundLength", err)
	}

	long := base
	long.EndTime = f.now.Add(200 * time.Hour)
	if _, err := f.svc.StartRound(ctx, operatorAddr, long); !errors.Is(err, ErrInvalidRoundLength) {
		t.Fatalf("long round: got %v, want ErrInvalidRoundLength", err)
	}

	cheap := base
	cheap.PriceTicket = 1
	if _, err := f.svc.StartRound(ctx, operatorAddr, cheap); !errors.Is(err, ErrInvalidTicketPrice) {
		t.Fatalf("cheap ticket: got %v, want ErrInvalidTicketPrice", err)
	}

	noDivisor := base
	noDivisor.DiscountDivisor = 0
	if _, err := f.svc.StartRound(ctx, operatorAddr, noDivisor); !errors.Is(err, ErrInvalidDiscountDivisor) {
		t.Fatalf("zero divisor: got %v, want ErrInvalidDiscountDivisor", err)
	}

	fat := base
	fat.RewardsBreakdown = [models.Brackets]uint32{5000, 2500, 1500, 500, 300, 300}
	if _, err := f.svc.StartRound(ctx, operatorAddr, fat); !errors.Is(err, ErrInvalidRewardsBreakdown) {
		t.Fatalf("fat breakdown: got %v, want ErrInvalidRewardsBreakdown", err)
	}

	greedy := base
	greedy.TreasuryFeeBp = 3100
	if _, err := f.svc.StartRound(ctx, operatorAddr, greedy); !errors.Is(err, ErrInvalidTreasuryFee) {
		t.Fatalf("greedy fee: got %v, want ErrInvalidTreasuryFee", err)
	}
}

func TestStartRoundRequiresPreviousClaimable(t *testing.T) {
	f := newLotteryFixture(t)
	f.startRound(t)
	if _, err := f.svc.StartRound(context.Background(), operatorAddr, StartRoundParams{
		EndTime:          f.now.Add(6 * time.Hour),
		PriceTicket:      money.Units,
		DiscountDivisor:  2000,
		RewardsBreakdown: defaultBreakdown,
		TreasuryFeeBp:    2000,
	}); !errors.Is(err, ErrRoundStillOpen) {
		t.Fatalf("second round: got %v, want ErrRoundStillOpen", err)
	}
}

func TestBuyTicketsValidation(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 1000*money.Units)

	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, nil); !errors.Is(err, ErrEmptyTicketsOrTooMany) {
		t.Fatalf("empty batch: got %v, want ErrEmptyTicketsOrTooMany", err)
	}
	many := make([]uint32, 101)
	for i := range many {
		many[i] = 123456
	}
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, many); !errors.Is(err, ErrEmptyTicketsOrTooMany) {
		t.Fatalf("oversized batch: got %v, want ErrEmptyTicketsOrTooMany", err)
	}
	// A zero digit anywhere is rejected even inside the numeric range.
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{120456}); !errors.Is(err, ErrInvalidTicketNumber) {
		t.Fatalf("zero digit: got %v, want ErrInvalidTicketNumber", err)
	}
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{99999}); !errors.Is(err, ErrInvalidTicketNumber) {
		t.Fatalf("five digits: got %v, want ErrInvalidTicketNumber", err)
	}

	f.now = round.EndTime.Add(time.Second)
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); !errors.Is(err, ErrRoundNotOpen) {
		t.Fatalf("after end: got %v, want ErrRoundNotOpen", err)
	}
}

func TestBuyTicketsBulkDiscount(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10_000*money.Units)

	numbers := make([]uint32, 100)
	for i := range numbers {
		numbers[i] = 111111 + uint32(i)*111
	}
	for i := range numbers {
		if !ValidTicketNumber(numbers[i]) {
			numbers[i] = 123456
		}
	}
	_, cost, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, numbers)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	// 100 tickets at 1.0 each with divisor 2000 cost 95.05.
	if cost != 9_505_000_000 {
		t.Fatalf("cost = %d, want 9505000000", cost)
	}
	if got := f.balance(t, lotteryPoolAddr); got != cost {
		t.Fatalf("pool balance = %d, want %d", got, cost)
	}
	updated, err := f.svc.RoundByID(ctx, round.ID)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if updated.AmountCollected != cost {
		t.Fatalf("amount collected = %d, want %d", updated.AmountCollected, cost)
	}
	if updated.TicketsSoldCount != 100 {
		t.Fatalf("tickets sold = %d, want 100", updated.TicketsSoldCount)
	}
}

func TestPauseBlocksBuys(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10*money.Units)

	if err := f.gate.Pause(ctx, ownerAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); !errors.Is(err, access.ErrPaused) {
		t.Fatalf("paused buy: got %v, want ErrPaused", err)
	}
	if err := f.gate.Unpause(ctx, ownerAddr); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); err != nil {
		t.Fatalf("unpaused buy: %v", err)
	}
}

func TestLotteryFullFlow(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10*money.Units)
	f.fund(t, bobAddr, 10*money.Units)

	aliceTickets, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456})
	if err != nil {
		t.Fatalf("alice buy: %v", err)
	}
	// Bob shares the last three digits only.
	bobTickets, _, err := f.svc.BuyTickets(ctx, bobAddr, round.ID, []uint32{999456})
	if err != nil {
		t.Fatalf("bob buy: %v", err)
	}

	if _, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID); !errors.Is(err, ErrRoundStillOpen) {
		t.Fatalf("early close: got %v, want ErrRoundStillOpen", err)
	}
	f.now = round.EndTime.Add(time.Minute)
	if _, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); !errors.Is(err, ErrRoundNotOpen) {
		t.Fatalf("buy after close: got %v, want ErrRoundNotOpen", err)
	}

	f.svc.ReadEntropy = entropyForNumber([6]byte{1, 2, 3, 4, 5, 6})
	drawn, err := f.svc.DrawFinalNumberAndMakeClaimable(ctx, operatorAddr, round.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if drawn.FinalNumber != 123456 {
		t.Fatalf("final number = %d, want 123456", drawn.FinalNumber)
	}
	if _, err := f.svc.DrawFinalNumberAndMakeClaimable(ctx, operatorAddr, round.ID); !errors.Is(err, ErrDrawAlreadyExecuted) {
		t.Fatalf("second draw: got %v, want ErrDrawAlreadyExecuted", err)
	}

	// 2.0 collected, 20% treasury fee, 1.6 distributable.
	wantTreasury := int64(2 * money.Units * 2000 / 10000)
	if drawn.TreasuryAmount != wantTreasury {
		t.Fatalf("treasury = %d, want %d", drawn.TreasuryAmount, wantTreasury)
	}
	if got := f.balance(t, treasuryAddr); got != wantTreasury {
		t.Fatalf("treasury balance = %d, want %d", got, wantTreasury)
	}
	winners, err := drawn.Winners()
	if err != nil {
		t.Fatalf("winners: %v", err)
	}
	// Alice matched all six digits, bob exactly the last three.
	if winners[0] != 1 {
		t.Fatalf("bracket 6 winners = %d, want 1", winners[0])
	}
	if winners[3] != 1 {
		t.Fatalf("bracket 3 winners = %d, want 1", winners[3])
	}

	distributable := 2*money.Units - wantTreasury
	wantAlice := distributable * 5000 / 10000
	wantBob := distributable * 500 / 10000

	paid, err := f.svc.ClaimTickets(ctx, aliceAddr, round.ID, []uint64{aliceTickets[0].ID})
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	if paid != wantAlice {
		t.Fatalf("alice paid = %d, want %d", paid, wantAlice)
	}
	if _, err := f.svc.ClaimTickets(ctx, aliceAddr, round.ID, []uint64{aliceTickets[0].ID}); !errors.Is(err, ErrTicketAlreadyClaimed) {
		t.Fatalf("double claim: got %v, want ErrTicketAlreadyClaimed", err)
	}
	if _, err := f.svc.ClaimTickets(ctx, aliceAddr, round.ID, []uint64{bobTickets[0].ID}); !errors.Is(err, ErrNotTicketOwner) {
		t.Fatalf("foreign claim: got %v, want ErrNotTicketOwner", err)
	}

	paid, err = f.svc.ClaimTickets(ctx, bobAddr, round.ID, []uint64{bobTickets[0].ID})
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if paid != wantBob {
		t.Fatalf("bob paid = %d, want %d", paid, wantBob)
	}

	// Payouts plus treasury never exceed what was collected.
	total := wantAlice + wantBob + wantTreasury
	if total > 2*money.Units {
		t.Fatalf("distributed %d exceeds collected %d", total, 2*money.Units)
	}
}

func TestZeroWinnerPoolsRollOver(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10*money.Units)

	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	f.now = round.EndTime.Add(time.Minute)
	if _, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	// 111111 shares no trailing digit with 123456.
	f.svc.ReadEntropy = entropyForNumber([6]byte{1, 1, 1, 1, 1, 1})
	drawn, err := f.svc.DrawFinalNumberAndMakeClaimable(ctx, operatorAddr, round.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	distributable := money.Units - drawn.TreasuryAmount
	if drawn.PendingInjectionNext != distributable {
		t.Fatalf("pending injection = %d, want %d", drawn.PendingInjectionNext, distributable)
	}

	// A non-winning claim is a zero-paying no-op, not an error.
	tickets, _, err := f.svc.TicketsForOwner(ctx, round.ID, aliceAddr, 10, 0)
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	paid, err := f.svc.ClaimTickets(ctx, aliceAddr, round.ID, []uint64{tickets[0].ID})
	if err != nil {
		t.Fatalf("losing claim: %v", err)
	}
	if paid != 0 {
		t.Fatalf("losing claim paid %d, want 0", paid)
	}

	next, err := f.svc.StartRound(ctx, operatorAddr, StartRoundParams{
		EndTime:          f.now.Add(6 * time.Hour),
		PriceTicket:      money.Units,
		DiscountDivisor:  2000,
		RewardsBreakdown: defaultBreakdown,
		TreasuryFeeBp:    2000,
	})
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	if next.AmountCollected != distributable {
		t.Fatalf("next round collected = %d, want %d", next.AmountCollected, distributable)
	}
	prev, err := f.svc.RoundByID(ctx, round.ID)
	if err != nil {
		t.Fatalf("prev round: %v", err)
	}
	if prev.PendingInjectionNext != 0 {
		t.Fatalf("pending injection not cleared: %d", prev.PendingInjectionNext)
	}
}

func TestZeroWinnerPoolsToTreasury(t *testing.T) {
	f := newLotteryFixture(t)
	f.svc.Config.RolloverPolicy = RolloverPolicyTreasury
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10*money.Units)

	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	f.now = round.EndTime.Add(time.Minute)
	if _, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	f.svc.ReadEntropy = entropyForNumber([6]byte{1, 1, 1, 1, 1, 1})
	drawn, err := f.svc.DrawFinalNumberAndMakeClaimable(ctx, operatorAddr, round.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if drawn.PendingInjectionNext != 0 {
		t.Fatalf("pending injection = %d, want 0", drawn.PendingInjectionNext)
	}
	if drawn.TreasuryAmount != money.Units {
		t.Fatalf("treasury = %d, want %d", drawn.TreasuryAmount, money.Units)
	}
	if got := f.balance(t, treasuryAddr); got != money.Units {
		t.Fatalf("treasury balance = %d, want %d", got, money.Units)
	}
}

func TestDrawSeedsFromFreshOraclePrice(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	f.svc.Oracle = &oracle.Adapter{
		Repo: f.repo,
		Config: config.OracleConfig{
			FeedID:          "btc-usd",
			UpdateAllowance: time.Minute,
		},
		Now: func() time.Time { return f.now },
	}
	round := f.startRound(t)
	f.fund(t, aliceAddr, 10*money.Units)
	if _, _, err := f.svc.BuyTickets(ctx, aliceAddr, round.ID, []uint32{123456}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	f.now = round.EndTime.Add(time.Minute)
	if _, err := f.svc.Oracle.Apply(ctx, oracle.Update{
		FeedID:      "btc-usd",
		Price:       decimal.NewFromInt(50_000),
		Expo:        -8,
		PublishTime: f.now,
	}); err != nil {
		t.Fatalf("apply price: %v", err)
	}
	closed, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.DrawOracleSeq != 1 {
		t.Fatalf("pinned sequence = %d, want 1", closed.DrawOracleSeq)
	}

	// The entropy source must not be consulted when an oracle seed
	// exists.
	f.svc.ReadEntropy = func([]byte) error {
		t.Fatal("entropy read with oracle seed available")
		return nil
	}
	drawn, err := f.svc.DrawFinalNumberAndMakeClaimable(ctx, operatorAddr, round.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !ValidTicketNumber(drawn.FinalNumber) {
		t.Fatalf("final number %d outside ticket space", drawn.FinalNumber)
	}
	if drawn.DrawOracleSeq != 1 {
		t.Fatalf("draw sequence = %d, want 1", drawn.DrawOracleSeq)
	}
}

func TestInjectFunds(t *testing.T) {
	f := newLotteryFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	f.fund(t, injectorAddr, 100*money.Units)
	f.fund(t, aliceAddr, 100*money.Units)

	if err := f.svc.InjectFunds(ctx, aliceAddr, round.ID, money.Units); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("non-injector: got %v, want ErrUnauthorized", err)
	}
	if err := f.svc.InjectFunds(ctx, injectorAddr, round.ID, 5*money.Units); err != nil {
		t.Fatalf("inject: %v", err)
	}
	updated, err := f.svc.RoundByID(ctx, round.ID)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if updated.AmountCollected != 5*money.Units {
		t.Fatalf("collected = %d, want %d", updated.AmountCollected, 5*money.Units)
	}

	// The owner may inject as well, also after close.
	f.now = round.EndTime.Add(time.Minute)
	if _, err := f.svc.CloseLottery(ctx, operatorAddr, round.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	f.fund(t, ownerAddr, 100*money.Units)
	if err := f.svc.InjectFunds(ctx, ownerAddr, round.ID, money.Units); err != nil {
		t.Fatalf("owner inject after close: %v", err)
	}
}
