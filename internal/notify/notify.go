// Package notify delivers text notifications to users.
//
// Delivery through here is best-effort and single-attempt; callers decide
// what a failure means (the reminder executor logs and moves on).
package notify

import (
	"context"

	"golang.org/x/time/rate"

	kit "todobot/internal/transport"
	logx "todobot/pkg/logx"
)

// Notifier can deliver one text message to an addressable user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Service sends through the chat adapter, rate-limited so reminder bursts
// don't trip platform flood limits. In direct chats the chat id is the
// user id.
type Service struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func New(adapter kit.Adapter, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		adapter: adapter,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

func (s *Service) Notify(ctx context.Context, userID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, text, &kit.SendOptions{DisablePreview: true})
}
