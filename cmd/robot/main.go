package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/config"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/httpapi"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/logging"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/notify"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/probe"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/postgres"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/sqlite"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/scheduler"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tlsprobe"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/tracker"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer store.Close()

	var sender notify.Sender
	if cfg.MailEnabled {
		if s := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom); s != nil {
			sender = s
		} else {
			logger.Warn("mail_not_configured")
		}
	}
	if sender == nil {
		sender = &notify.LogSender{Log: logger}
	}
	var broadcast notify.Broadcaster
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		broadcast = slack
	}

	defaults := scheduler.Defaults{
		RefreshSeconds: cfg.DefaultRefreshSeconds,
		TimeoutSeconds: cfg.DefaultTimeoutSeconds,
		SSLExpiryDays:  cfg.DefaultSSLExpiryDays,
	}

	sched := scheduler.New(
		logger,
		store,
		store,
		probe.NewHTTPChecker(2*time.Minute),
		tlsprobe.NewTLSFetcher(10*time.Second),
		tracker.NewStateTracker(store, logger),
		tracker.NewSslTracker(store, store, logger),
		notify.New(store, sender, broadcast, logger),
		scheduler.NewInFlight(),
		cfg.TickInterval,
		cfg.SeedURLs,
		defaults,
	)

	api := httpapi.NewServer(logger, store, defaults)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_error", zap.Error(err))
		}
	}()

	logger.Info("scheduler_start", zap.Duration("tick", cfg.TickInterval))
	sched.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	if cfg.DatabaseURL != "" {
		logger.Info("store_postgres")
		return postgres.New(ctx, cfg.DatabaseURL)
	}
	logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
	return sqlite.New(ctx, cfg.SQLitePath)
}
