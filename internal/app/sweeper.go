package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
)

// Sweeper periodically expires stale pending reservations and removes
// elapsed offers. Every pass is idempotent, so overlapping sweeps from
// several processes are harmless.
type Sweeper struct {
	Reservations *ReservationService
	Offers       *OfferService
	Clock        clock.Clock
	Interval     time.Duration
	Log          *logrus.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	now := s.Clock.Now()

	expired, err := s.Reservations.SweepExpired(ctx, now)
	if err != nil {
		s.Log.WithError(err).Error("reservation sweep failed")
	} else if expired > 0 {
		s.Log.WithField("count", expired).Info("expired stale reservations")
	}

	removed, err := s.Offers.CleanupElapsed(ctx, now)
	if err != nil {
		s.Log.WithError(err).Error("offer cleanup failed")
	} else if removed > 0 {
		s.Log.WithField("count", removed).Info("cleaned up elapsed offers")
	}
}
