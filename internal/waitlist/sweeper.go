package waitlist

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Expirer is the part of Service the sweeper drives.
type Expirer interface {
	ExpireStaleOffers(ctx context.Context) (int64, error)
}

// Sweeper periodically expires stale offers.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		logger:   logger.With().Str("component", "waitlist_sweeper").Logger(),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("waitlist sweeper started")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("waitlist sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.expirer.ExpireStaleOffers(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("waitlist sweep failed")
	}
}
