package service

import "errors"

// Engine sentinel errors. Every mutating call runs atomically, so the
// caller either sees its full effect or one of these with nothing
// persisted. Timing and staleness errors mean "retry later"; the rest
// are permanent for the given input.
var (
	ErrInvalidRoundLength      = errors.New("round length out of range")
	ErrInvalidTicketPrice      = errors.New("ticket price out of range")
	ErrInvalidDiscountDivisor  = errors.New("discount divisor must be at least 1")
	ErrInvalidRewardsBreakdown = errors.New("rewards breakdown exceeds 10000 bp")
	ErrInvalidTreasuryFee      = errors.New("treasury fee exceeds cap")
	ErrRoundNotOpen            = errors.New("round not open")
	ErrRoundStillOpen          = errors.New("round still open")
	ErrRoundNotClosed          = errors.New("round not closed")
	ErrRoundNotClaimable       = errors.New("round not claimable")
	ErrDrawAlreadyExecuted     = errors.New("draw already executed")
	ErrEmptyTicketsOrTooMany   = errors.New("ticket batch empty or too large")
	ErrInvalidTicketNumber     = errors.New("ticket number out of range")
	ErrNotTicketOwner          = errors.New("not the ticket owner")
	ErrTicketAlreadyClaimed    = errors.New("ticket already claimed")

	ErrAlreadyStarted      = errors.New("genesis round already started")
	ErrGenesisNotCompleted = errors.New("genesis start and lock not completed")
	ErrTooEarlyToLock      = errors.New("too early to lock round")
	ErrTooEarlyToExecute   = errors.New("too early to execute round")
	ErrRoundWindowMissed   = errors.New("execution window missed")
	ErrRoundNotBettable    = errors.New("round not bettable")
	ErrBetAmountTooLow     = errors.New("bet amount below minimum")
	ErrAlreadyBet          = errors.New("already bet this epoch")
	ErrAlreadyClaimed      = errors.New("winnings already claimed")
	ErrNotEligible         = errors.New("not eligible to claim")

	ErrRoundNotFound = errors.New("round not found")
)
