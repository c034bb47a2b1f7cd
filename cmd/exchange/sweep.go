package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/app"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/config"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/notify"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/storage/postgres"
	"github.com/pr-poehali-dev/legal-crypto-exchange/migrations"
)

// sweepCmd expires stale reservations and removes elapsed offers. By default
// it runs a single pass and exits, for cron setups that prefer an external
// scheduler; with --interval it keeps sweeping until interrupted.
func sweepCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale reservations and remove elapsed offers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			clk := clock.NewSystem()
			reservations, offers := sweepServices(pool, cfg, buildNotifier(cfg, log), clk, log)

			if interval > 0 {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				sweeper := &app.Sweeper{
					Reservations: reservations,
					Offers:       offers,
					Clock:        clk,
					Interval:     interval,
					Log:          log,
				}
				err := sweeper.Run(ctx)
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			now := clk.Now()
			expired, err := reservations.SweepExpired(ctx, now)
			if err != nil {
				return err
			}
			removed, err := offers.CleanupElapsed(ctx, now)
			if err != nil {
				return err
			}
			log.WithField("expired", expired).WithField("removed", removed).Info("sweep finished")
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "keep sweeping at this interval instead of exiting after one pass")
	return cmd
}

// cleanupCmd removes elapsed offers only, leaving pending reservations to the
// sweeper. Mirrors the original deployment's standalone cleanup job.
func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove elapsed offers once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			clk := clock.NewSystem()
			_, offers := sweepServices(pool, cfg, buildNotifier(cfg, log), clk, log)

			removed, err := offers.CleanupElapsed(ctx, clk.Now())
			if err != nil {
				return err
			}
			log.WithField("removed", removed).Info("cleanup finished")
			return nil
		},
	}
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func sweepServices(pool *pgxpool.Pool, cfg config.Config, notifier notify.Notifier, clk clock.Clock, log *logrus.Logger) (*app.ReservationService, *app.OfferService) {
	userRepo := postgres.NewUserRepository(pool)
	reservations := app.NewReservationService(postgres.NewReservationRepository(pool), userRepo, notifier, clk, log, app.WithReservationTTL(cfg.ReservationTTL))
	offers := app.NewOfferService(postgres.NewOfferRepository(pool), userRepo, notifier, clk, log, app.WithOfferTTL(cfg.OfferTTL))
	return reservations, offers
}
