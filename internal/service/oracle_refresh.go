package service

import (
	"context"

	"go.uber.org/zap"

	"gamesfi/internal/client/pyth"
	"gamesfi/internal/oracle"
)

// OracleRefreshService pulls the latest published price from the
// external price service and applies it to the oracle cache. It runs
// on the cron schedule and behind the oracle refresh switch, so a
// deployment can rely solely on pushed signed updates instead.
type OracleRefreshService struct {
	Client   *pyth.Client
	Oracle   *oracle.Adapter
	Settings *SystemSettingsService
	FeedID   string
	Logger   *zap.Logger
}

func (s *OracleRefreshService) RunOnce(ctx context.Context) error {
	if s == nil || s.Client == nil || s.Oracle == nil {
		return nil
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeatureOracleRefresh, true) {
		return nil
	}
	feed, err := s.Client.LatestUpdate(ctx, s.FeedID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("oracle refresh fetch failed", zap.Error(err))
		}
		return err
	}
	price, err := s.Oracle.Apply(ctx, oracle.Update{
		FeedID:      s.FeedID,
		Price:       feed.Price,
		Expo:        feed.Expo,
		PublishTime: feed.PublishTime,
	})
	if err != nil {
		// A repeat of the cached publish time is routine between
		// upstream publishes, not a fault.
		if s.Logger != nil {
			s.Logger.Debug("oracle refresh skipped", zap.Error(err))
		}
		return nil
	}
	if s.Logger != nil {
		s.Logger.Debug("oracle price refreshed",
			zap.String("feed", price.FeedID),
			zap.Uint64("sequence", price.Sequence))
	}
	return nil
}

// HandleStreamUpdate applies one pushed feed observation from the
// websocket stream. Stale repeats are dropped silently.
func (s *OracleRefreshService) HandleStreamUpdate(ctx context.Context, feed pyth.PriceFeed) {
	if s == nil || s.Oracle == nil {
		return
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeatureOracleRefresh, true) {
		return
	}
	price, err := s.Oracle.Apply(ctx, oracle.Update{
		FeedID:      s.FeedID,
		Price:       feed.Price,
		Expo:        feed.Expo,
		PublishTime: feed.PublishTime,
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Debug("stream update skipped", zap.Error(err))
		}
		return
	}
	if s.Logger != nil {
		s.Logger.Debug("stream price applied",
			zap.String("feed", price.FeedID),
			zap.Uint64("sequence", price.Sequence))
	}
}
