package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/pflag"

	"referral-ledger/internal/bot"
	"referral-ledger/internal/config"
	"referral-ledger/internal/repository"
	"referral-ledger/internal/service"
)

const jobTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dbPath, logLevel string
	flagSet := pflag.NewFlagSet("referralbot", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (overrides DATABASE_URL)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if dbPath != "" {
		cfg.DatabaseURL = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var links []string
	if link := cfg.ChannelLink(); link != "" {
		links = append(links, link)
	}
	ledger, err := repository.NewLedgerStore(ctx, db, log, repository.LedgerOptions{
		PrimaryAdmin: cfg.PrimaryAdminID,
		SampleCodes:  cfg.BootstrapSampleCodes,
		DefaultLinks: links,
	})
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}

	notifier := bot.NewNotifier(api, cfg.NotifyQueueSize, log)
	notifyCtx, stopNotifier := context.WithCancel(context.Background())
	notifierDone := make(chan struct{})
	go func() {
		defer close(notifierDone)
		notifier.Run(notifyCtx)
	}()
	defer func() {
		stopNotifier()
		<-notifierDone
	}()

	svc := bot.Services{
		Registration: service.NewRegistrationService(ledger, log),
		Membership:   service.NewMembershipService(ledger, notifier, log),
		Settlements:  service.NewSettlementService(ledger, notifier, log),
		Support:      service.NewSupportService(ledger, notifier, log),
		Admin:        service.NewAdminService(ledger, log, cfg.PrimaryAdminID),
		Digest:       service.NewDigestService(ledger),
	}
	telegramBot := bot.New(api, svc, notifier, bot.Options{
		PrimaryAdmin:    cfg.PrimaryAdminID,
		ChannelID:       cfg.ChannelID,
		ChannelUsername: cfg.ChannelUsername,
		ChannelLink:     cfg.ChannelLink(),
	}, log)

	scheduler := service.NewSchedulerService(time.Local, log)
	job := func(name string, fn func(context.Context) error) func() {
		return func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if err := fn(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
			}
		}
	}
	if _, err := scheduler.ScheduleInterval(cfg.GroupRefreshInterval, job("refresh_groups", telegramBot.RefreshGroups)); err != nil {
		return fmt.Errorf("schedule group refresh: %w", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.AdminDigestTime, job("admin_digest", telegramBot.SendAdminDigests)); err != nil {
		return fmt.Errorf("schedule admin digest: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go job("refresh_groups", telegramBot.RefreshGroups)()

	log.Info("referral bot started", slog.Int64("primary_admin", cfg.PrimaryAdminID), slog.Int("jobs", scheduler.Entries()))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
