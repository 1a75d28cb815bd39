package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"gamesfi/internal/models"
	"gamesfi/internal/money"
	"gamesfi/internal/repository"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Token is the transfer surface the game engines depend on. Both methods run
// inside the caller's transaction so a failed engine call rolls back its
// transfers along with everything else.
type Token interface {
	Transfer(ctx context.Context, tx *gorm.DB, from, to string, amount int64) error
	TransferFrom(ctx context.Context, tx *gorm.DB, spender, from, to string, amount int64) error
}

// Ledger is a database-backed token: balances and allowances as rows, with
// overflow-checked arithmetic on every movement.
type Ledger struct {
	Repo repository.Repository
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (l *Ledger) account(ctx context.Context, tx *gorm.DB, address string) (*models.TokenAccount, error) {
	acct, err := l.Repo.GetTokenAccountTx(ctx, tx, address)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		acct = &models.TokenAccount{Address: normalize(address)}
	}
	return acct, nil
}

func (l *Ledger) move(ctx context.Context, tx *gorm.DB, from, to string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	from = normalize(from)
	to = normalize(to)
	if from == "" || to == "" {
		return ErrInvalidAmount
	}
	src, err := l.account(ctx, tx, from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, ErrInsufficientBalance)
	}
	dst, err := l.account(ctx, tx, to)
	if err != nil {
		return err
	}
	newSrc, err := money.CheckedSub(src.Balance, amount)
	if err != nil {
		return err
	}
	newDst, err := money.CheckedAdd(dst.Balance, amount)
	if err != nil {
		return err
	}
	src.Balance = newSrc
	dst.Balance = newDst
	if err := l.Repo.SaveTokenAccountTx(ctx, tx, src); err != nil {
		return err
	}
	return l.Repo.SaveTokenAccountTx(ctx, tx, dst)
}

func (l *Ledger) Transfer(ctx context.Context, tx *gorm.DB, from, to string, amount int64) error {
	if l == nil || l.Repo == nil {
		return nil
	}
	return l.move(ctx, tx, from, to, amount)
}

// TransferFrom spends the owner's allowance granted to spender, then moves
// the funds. A spender equal to the owner skips the allowance check.
func (l *Ledger) TransferFrom(ctx context.Context, tx *gorm.DB, spender, from, to string, amount int64) error {
	if l == nil || l.Repo == nil {
		return nil
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	spender = normalize(spender)
	from = normalize(from)
	if spender != from {
		grant, err := l.Repo.GetTokenAllowanceTx(ctx, tx, from, spender)
		if err != nil {
			return err
		}
		if grant == nil || grant.Amount < amount {
			return fmt.Errorf("spend %d of %s by %s: %w", amount, from, spender, ErrInsufficientAllowance)
		}
		remaining, err := money.CheckedSub(grant.Amount, amount)
		if err != nil {
			return err
		}
		grant.Amount = remaining
		if err := l.Repo.SaveTokenAllowanceTx(ctx, tx, grant); err != nil {
			return err
		}
	}
	return l.move(ctx, tx, from, to, amount)
}

// Approve sets (not increments) the allowance of spender over owner's funds.
func (l *Ledger) Approve(ctx context.Context, owner, spender string, amount int64) error {
	if l == nil || l.Repo == nil {
		return nil
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	owner = normalize(owner)
	spender = normalize(spender)
	if owner == "" || spender == "" {
		return ErrInvalidAmount
	}
	return l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		grant, err := l.Repo.GetTokenAllowanceTx(ctx, tx, owner, spender)
		if err != nil {
			return err
		}
		if grant == nil {
			grant = &models.TokenAllowance{Owner: owner, Spender: spender}
		}
		grant.Amount = amount
		return l.Repo.SaveTokenAllowanceTx(ctx, tx, grant)
	})
}

// Mint credits freshly issued units to an address. Used for faucet style
// funding in development environments.
func (l *Ledger) Mint(ctx context.Context, to string, amount int64) error {
	if l == nil || l.Repo == nil {
		return nil
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	to = normalize(to)
	if to == "" {
		return ErrInvalidAmount
	}
	return l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		acct, err := l.account(ctx, tx, to)
		if err != nil {
			return err
		}
		balance, err := money.CheckedAdd(acct.Balance, amount)
		if err != nil {
			return err
		}
		acct.Balance = balance
		return l.Repo.SaveTokenAccountTx(ctx, tx, acct)
	})
}

func (l *Ledger) BalanceOf(ctx context.Context, address string) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, nil
	}
	acct, err := l.Repo.GetTokenAccountTx(ctx, nil, address)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, nil
	}
	return acct.Balance, nil
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, nil
	}
	grant, err := l.Repo.GetTokenAllowanceTx(ctx, nil, owner, spender)
	if err != nil {
		return 0, err
	}
	if grant == nil {
		return 0, nil
	}
	return grant.Amount, nil
}
