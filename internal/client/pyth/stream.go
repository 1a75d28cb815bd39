package pyth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type subscribeRequest struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

type streamEnvelope struct {
	Type      string       `json:"type"`
	PriceFeed rawPriceFeed `json:"price_feed"`
}

// Stream keeps a websocket subscription to the price service alive,
// reconnecting with jittered backoff, and hands each parsed feed update to
// the callback.
type Stream struct {
	URL        string
	FeedIDs    []string
	BackoffMin time.Duration
	BackoffMax time.Duration
	Logger     *zap.Logger
}

func (s *Stream) Run(ctx context.Context, onUpdate func(PriceFeed)) error {
	if s == nil {
		return fmt.Errorf("stream is nil")
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("stream url is required")
	}
	if len(s.FeedIDs) == 0 {
		return fmt.Errorf("no feeds to subscribe")
	}
	backoffMin := s.BackoffMin
	if backoffMin == 0 {
		backoffMin = time.Second
	}
	backoffMax := s.BackoffMax
	if backoffMax == 0 {
		backoffMax = 30 * time.Second
	}
	backoff := backoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.runOnce(ctx, onUpdate)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if s.Logger != nil {
			s.Logger.Warn("price stream disconnected", zap.Error(err))
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, backoffMax)
	}
}

func (s *Stream) runOnce(ctx context.Context, onUpdate func(PriceFeed)) error {
	conn, _, err := websocket.Dial(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "reconnect")
	conn.SetReadLimit(1 << 20)

	req := subscribeRequest{Type: "subscribe", IDs: s.FeedIDs}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("price stream subscribed", zap.Int("feeds", len(s.FeedIDs)))
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var env streamEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if !strings.EqualFold(env.Type, "price_update") {
			continue
		}
		feed, err := parseFeed(env.PriceFeed)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("price stream bad payload", zap.Error(err))
			}
			continue
		}
		if onUpdate != nil {
			onUpdate(feed)
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
