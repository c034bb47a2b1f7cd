package main

import (
	"context"
	"errors"
	"net/http"
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
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/rates"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/storage/postgres"
	transporthttp "github.com/pr-poehali-dev/legal-crypto-exchange/internal/transport/http"
	"github.com/pr-poehali-dev/legal-crypto-exchange/migrations"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return err
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		return err
	}

	notifier := buildNotifier(cfg, log)
	clk := clock.NewSystem()

	offerRepo := postgres.NewOfferRepository(pool)
	resRepo := postgres.NewReservationRepository(pool)
	dealRepo := postgres.NewDealRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	offers := app.NewOfferService(offerRepo, userRepo, notifier, clk, log, app.WithOfferTTL(cfg.OfferTTL))
	reservations := app.NewReservationService(resRepo, userRepo, notifier, clk, log, app.WithReservationTTL(cfg.ReservationTTL))
	deals := app.NewDealService(dealRepo, userRepo, clk)
	users := app.NewUserService(userRepo, clk)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Offers:       offers,
		Reservations: reservations,
		Deals:        deals,
		Completer:    deals,
		Users:        users,
		Rates:        rates.NewClient(),
		Now:          clk.Now,
	}, cfg.CORSOrigins, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := &app.Sweeper{
		Reservations: reservations,
		Offers:       offers,
		Clock:        clk,
		Interval:     cfg.SweepInterval,
		Log:          log,
	}
	go func() {
		if err := sweeper.Run(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("sweeper stopped")
		}
	}()

	log.WithField("port", cfg.Port).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		log.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server shutdown error")
	}
	log.Info("server stopped")
	return nil
}

func buildNotifier(cfg config.Config, log *logrus.Logger) notify.Notifier {
	if cfg.TelegramToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, notifications disabled")
		return notify.Noop{}
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		log.WithError(err).Warn("telegram init failed, notifications disabled")
		return notify.Noop{}
	}
	return tg
}
