package services

import (
	"context"
	"time"

	"github.com/fastid/fastid/internal/logging"
)

// Sweeper periodically deletes token pairs whose refresh window has ended.
type Sweeper struct {
	tokens   *TokenService
	interval time.Duration
	log      logging.Logger
}

func NewSweeper(tokens *TokenService, interval time.Duration, log logging.Logger) *Sweeper {
	return &Sweeper{tokens: tokens, interval: interval, log: log}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables sweeping and Run returns immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one sweep and returns the number of pairs removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.log.Error(ctx, "token sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Info(ctx, "expired tokens removed", "count", n)
	}
	return n
}
