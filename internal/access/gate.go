package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gamesfi/internal/models"
	"gamesfi/internal/repository"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrPaused         = errors.New("paused")
	ErrInvalidAddress = errors.New("invalid address")
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleOperator Role = "operator"
	RoleInjector Role = "injector"
)

const (
	keyOwner    = "role.owner"
	keyOperator = "role.operator"
	keyInjector = "role.injector"
	keyPaused   = "system.paused"
)

// Gate resolves privileged roles and the global pause switch from persisted
// system settings. The owner address is seeded from config on startup and can
// only change through TransferOwnership.
type Gate struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func roleKey(role Role) string {
	switch role {
	case RoleOwner:
		return keyOwner
	case RoleOperator:
		return keyOperator
	case RoleInjector:
		return keyInjector
	}
	return ""
}

func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (g *Gate) getAddress(ctx context.Context, key string) (string, error) {
	item, err := g.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil {
		return "", err
	}
	if item == nil || len(item.Value) == 0 {
		return "", nil
	}
	var addr string
	if err := json.Unmarshal(item.Value, &addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

func (g *Gate) setAddress(ctx context.Context, key, addr, description string) error {
	raw, _ := json.Marshal(NormalizeAddress(addr))
	return g.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	})
}

// Bootstrap seeds the owner role from config on first start. An owner already
// persisted in settings wins over the configured one.
func (g *Gate) Bootstrap(ctx context.Context, ownerAddress string) error {
	if g == nil || g.Repo == nil {
		return nil
	}
	current, err := g.getAddress(ctx, keyOwner)
	if err != nil {
		return err
	}
	if current != "" {
		return nil
	}
	owner := NormalizeAddress(ownerAddress)
	if owner == "" {
		return fmt.Errorf("bootstrap owner: %w", ErrInvalidAddress)
	}
	if g.Logger != nil {
		g.Logger.Info("seeding owner role", zap.String("owner", owner))
	}
	return g.setAddress(ctx, keyOwner, owner, "access role")
}

func (g *Gate) Holder(ctx context.Context, role Role) (string, error) {
	if g == nil || g.Repo == nil {
		return "", nil
	}
	key := roleKey(role)
	if key == "" {
		return "", nil
	}
	return g.getAddress(ctx, key)
}

// Require verifies the caller holds the given role. The owner address passes
// every role check.
func (g *Gate) Require(ctx context.Context, caller string, role Role) error {
	if g == nil || g.Repo == nil {
		return ErrUnauthorized
	}
	caller = NormalizeAddress(caller)
	if caller == "" {
		return ErrUnauthorized
	}
	owner, err := g.getAddress(ctx, keyOwner)
	if err != nil {
		return err
	}
	if owner != "" && caller == owner {
		return nil
	}
	if role == RoleOwner {
		return ErrUnauthorized
	}
	holder, err := g.getAddress(ctx, roleKey(role))
	if err != nil {
		return err
	}
	if holder == "" || caller != holder {
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate) IsPaused(ctx context.Context) (bool, error) {
	if g == nil || g.Repo == nil {
		return false, nil
	}
	item, err := g.Repo.GetSystemSettingByKey(ctx, keyPaused)
	if err != nil {
		return false, err
	}
	if item == nil || len(item.Value) == 0 {
		return false, nil
	}
	var paused bool
	if err := json.Unmarshal(item.Value, &paused); err != nil {
		return false, nil
	}
	return paused, nil
}

func (g *Gate) RequireNotPaused(ctx context.Context) error {
	paused, err := g.IsPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (g *Gate) setPaused(ctx context.Context, paused bool) error {
	raw, _ := json.Marshal(paused)
	return g.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         keyPaused,
		Value:       datatypes.JSON(raw),
		Description: "global pause switch",
		UpdatedAt:   time.Now().UTC(),
	})
}

func (g *Gate) Pause(ctx context.Context, caller string) error {
	if err := g.Require(ctx, caller, RoleOwner); err != nil {
		return err
	}
	if g.Logger != nil {
		g.Logger.Warn("pausing", zap.String("caller", NormalizeAddress(caller)))
	}
	return g.setPaused(ctx, true)
}

func (g *Gate) Unpause(ctx context.Context, caller string) error {
	if err := g.Require(ctx, caller, RoleOwner); err != nil {
		return err
	}
	if g.Logger != nil {
		g.Logger.Info("unpausing", zap.String("caller", NormalizeAddress(caller)))
	}
	return g.setPaused(ctx, false)
}

func (g *Gate) SetOperator(ctx context.Context, caller, operator string) error {
	if err := g.Require(ctx, caller, RoleOwner); err != nil {
		return err
	}
	if NormalizeAddress(operator) == "" {
		return ErrInvalidAddress
	}
	return g.setAddress(ctx, keyOperator, operator, "access role")
}

func (g *Gate) SetInjector(ctx context.Context, caller, injector string) error {
	if err := g.Require(ctx, caller, RoleOwner); err != nil {
		return err
	}
	if NormalizeAddress(injector) == "" {
		return ErrInvalidAddress
	}
	return g.setAddress(ctx, keyInjector, injector, "access role")
}

func (g *Gate) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	if err := g.Require(ctx, caller, RoleOwner); err != nil {
		return err
	}
	next := NormalizeAddress(newOwner)
	if next == "" {
		return ErrInvalidAddress
	}
	if g.Logger != nil {
		g.Logger.Warn("transferring ownership",
			zap.String("from", NormalizeAddress(caller)),
			zap.String("to", next))
	}
	return g.setAddress(ctx, keyOwner, next, "access role")
}
