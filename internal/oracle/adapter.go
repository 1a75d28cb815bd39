package oracle

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gamesfi/internal/access"
	"gamesfi/internal/config"
	"gamesfi/internal/models"
	"gamesfi/internal/repository"
	"gamesfi/internal/token"
)

var (
	ErrPriceNotFound        = errors.New("price not found")
	ErrOracleStale          = errors.New("oracle price stale")
	ErrStaleUpdate          = errors.New("update older than cached price")
	ErrInsufficientFee      = errors.New("insufficient update fee")
	ErrInvalidUpdatePayload = errors.New("invalid update payload")
)

// Update is one signed price observation for a feed. Signature covers the
// digest of (feed id, price, expo, publish time) and must recover to the
// configured publisher address.
type Update struct {
	FeedID      string          `json:"feed_id"`
	Price       decimal.Decimal `json:"price"`
	Expo        int32           `json:"expo"`
	PublishTime time.Time       `json:"publish_time"`
	Signature   string          `json:"signature"`
}

// Price is the cached view handed to the game engines.
type Price struct {
	FeedID      string
	Price       decimal.Decimal
	Expo        int32
	PublishTime time.Time
	Sequence    uint64
}

// Adapter caches one price row per feed and hands out monotonically
// increasing sequence numbers, so round transitions can prove which update
// they consumed.
type Adapter struct {
	Repo   repository.Repository
	Token  *token.Ledger
	Config config.OracleConfig
	Logger *zap.Logger

	TreasuryAddress string
	Now             func() time.Time
}

func (a *Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// Digest is the signing preimage hash for an update: keccak256 over the feed
// id, the price string, the expo and the publish time in unix seconds.
func Digest(feedID string, price decimal.Decimal, expo int32, publishTime time.Time) []byte {
	var expoBuf [4]byte
	binary.BigEndian.PutUint32(expoBuf[:], uint32(expo))
	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], uint64(publishTime.Unix()))
	return crypto.Keccak256(
		[]byte(strings.TrimSpace(feedID)),
		[]byte(price.String()),
		expoBuf[:],
		timeBuf[:],
	)
}

func recoverSigner(u Update) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(u.Signature), "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidUpdatePayload
	}
	// Normalize the recovery id: signers commonly emit 27/28.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(Digest(u.FeedID, u.Price, u.Expo, u.PublishTime), sig)
	if err != nil {
		return "", ErrInvalidUpdatePayload
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

func (a *Adapter) FetchPrice(ctx context.Context, feedID string) (*Price, error) {
	return a.FetchPriceTx(ctx, nil, feedID)
}

func (a *Adapter) FetchPriceTx(ctx context.Context, tx *gorm.DB, feedID string) (*Price, error) {
	if a == nil || a.Repo == nil {
		return nil, ErrPriceNotFound
	}
	row, err := a.Repo.GetOraclePriceTx(ctx, tx, feedID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("feed %s: %w", feedID, ErrPriceNotFound)
	}
	return &Price{
		FeedID:      row.FeedID,
		Price:       row.Price,
		Expo:        row.Expo,
		PublishTime: row.PublishTime,
		Sequence:    row.Sequence,
	}, nil
}

// RequireFresh rejects a price whose publish time is further in the past
// than the allowance.
func RequireFresh(p *Price, now time.Time, allowance time.Duration) error {
	if p == nil {
		return ErrPriceNotFound
	}
	if allowance <= 0 {
		return nil
	}
	if now.Sub(p.PublishTime) > allowance {
		return fmt.Errorf("feed %s published %s ago: %w",
			p.FeedID, now.Sub(p.PublishTime).Truncate(time.Second), ErrOracleStale)
	}
	return nil
}

// PushUpdate verifies and applies a signed update, charging the caller the
// update fee. The transfer and the apply share one transaction, so a stale
// payload rolls the fee back along with everything else.
func (a *Adapter) PushUpdate(ctx context.Context, caller string, u Update, feePaid int64) (*Price, error) {
	if a == nil || a.Repo == nil {
		return nil, ErrInvalidUpdatePayload
	}
	if strings.TrimSpace(u.FeedID) == "" || u.PublishTime.IsZero() {
		return nil, ErrInvalidUpdatePayload
	}
	if feePaid < a.Config.UpdateFee {
		return nil, fmt.Errorf("fee %d < %d: %w", feePaid, a.Config.UpdateFee, ErrInsufficientFee)
	}
	signer, err := recoverSigner(u)
	if err != nil {
		return nil, err
	}
	publisher := access.NormalizeAddress(a.Config.PublisherAddress)
	if publisher == "" || signer != publisher {
		return nil, fmt.Errorf("signer %s is not the publisher: %w", signer, ErrInvalidUpdatePayload)
	}

	var out *Price
	err = a.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if a.Token != nil && a.Config.UpdateFee > 0 {
			if err := a.Token.TransferFrom(ctx, tx, caller, caller, a.TreasuryAddress, feePaid); err != nil {
				return err
			}
		}
		return a.applyTx(ctx, tx, u, &out)
	})
	if err != nil {
		return nil, err
	}
	if a.Logger != nil {
		a.Logger.Info("oracle update applied",
			zap.String("feed", out.FeedID),
			zap.String("price", out.Price.String()),
			zap.Uint64("sequence", out.Sequence))
	}
	return out, nil
}

// Apply stores an update fetched from the first party price service. No fee
// or signature is involved, the transport is trusted.
func (a *Adapter) Apply(ctx context.Context, u Update) (*Price, error) {
	if a == nil || a.Repo == nil {
		return nil, ErrInvalidUpdatePayload
	}
	if strings.TrimSpace(u.FeedID) == "" || u.PublishTime.IsZero() {
		return nil, ErrInvalidUpdatePayload
	}
	var out *Price
	err := a.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return a.applyTx(ctx, tx, u, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) applyTx(ctx context.Context, tx *gorm.DB, u Update, out **Price) error {
	row, err := a.Repo.GetOraclePriceTx(ctx, tx, u.FeedID)
	if err != nil {
		return err
	}
	if row != nil && !u.PublishTime.After(row.PublishTime) {
		return fmt.Errorf("feed %s: %w", u.FeedID, ErrStaleUpdate)
	}
	next := uint64(1)
	if row != nil {
		next = row.Sequence + 1
	}
	payload, _ := u.Price.MarshalJSON()
	item := &models.OraclePrice{
		FeedID:      strings.TrimSpace(u.FeedID),
		Price:       u.Price,
		Expo:        u.Expo,
		PublishTime: u.PublishTime.UTC(),
		Sequence:    next,
		RawPayload:  datatypes.JSON(payload),
		UpdatedAt:   a.now(),
	}
	if row != nil {
		item.ID = row.ID
		item.CreatedAt = row.CreatedAt
	}
	if err := a.Repo.UpsertOraclePriceTx(ctx, tx, item); err != nil {
		return err
	}
	*out = &Price{
		FeedID:      item.FeedID,
		Price:       item.Price,
		Expo:        item.Expo,
		PublishTime: item.PublishTime,
		Sequence:    item.Sequence,
	}
	return nil
}
