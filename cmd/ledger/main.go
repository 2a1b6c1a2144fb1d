// Package main is the entry point for the credit ledger.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/audit"
	"credit-ledger/internal/bot"
	"credit-ledger/internal/config"
	"credit-ledger/internal/game"
	"credit-ledger/internal/game/dice"
	"credit-ledger/internal/game/slot"
	"credit-ledger/internal/jobs"
	"credit-ledger/internal/notify"
	"credit-ledger/internal/pkg/db"
	"credit-ledger/internal/pkg/lock"
	"credit-ledger/internal/pkg/sealer"
	"credit-ledger/internal/repository"
	"credit-ledger/internal/scheduler"
	"credit-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if cfg.Database.Migrate {
		if err := db.Migrate(dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}

	// Ledger metadata sealing
	keys, err := cfg.Audit.DecodedKeys()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode audit keys")
	}
	seal, err := sealer.New(cfg.Audit.ActiveKeyID, keys)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sealer")
	}

	// Telegram client first: it doubles as the notification sender
	var telegramBot *bot.Bot
	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		sinks = append(sinks, notify.NewTelegramSink(telegramBot.Telegram()))
	} else {
		log.Warn().Msg("Bot token not set, Telegram front-end disabled")
	}

	emitter := notify.NewEmitter(cfg.Notify.BufferSize, sinks...)
	emitCtx, stopEmitter := context.WithCancel(context.Background())
	go emitter.Run(emitCtx)

	// Initialize repositories
	accountRepo := repository.NewAccountRepository()
	ledgerRepo := repository.NewLedgerRepository()
	bonusRepo := repository.NewBonusRepository()
	wagerRepo := repository.NewWagerRepository()

	auditor := audit.New(dbPool.Pool, ledgerRepo, seal, audit.Options{
		RetryAttempts: cfg.Audit.RetryAttempts,
		RetryInterval: cfg.Audit.RetryInterval,
	})

	core := &service.Core{
		Pool: dbPool.Pool,
		Locks: lock.NewCoordinator(dbPool.Pool, accountRepo, lock.Options{
			LockTimeout:    cfg.Ledger.LockTimeout,
			BusyRetries:    cfg.Ledger.BusyRetries,
			BackoffInitial: cfg.Ledger.BusyBackoffInitial,
			BackoffMax:     cfg.Ledger.BusyBackoffMax,
		}),
		Accounts: accountRepo,
		Auditor:  auditor,
		Notifier: emitter,
	}

	// Initialize game registry and register games
	gameRegistry := game.NewRegistry()
	for _, g := range []game.Game{dice.New(), slot.New()} {
		if err := gameRegistry.Register(g); err != nil {
			log.Fatal().Err(err).Str("game", string(g.Type())).Msg("Failed to register game")
		}
	}
	log.Info().
		Int("game_count", gameRegistry.Count()).
		Strs("games", gameRegistry.Types()).
		Msg("Games registered")

	// Initialize services
	accountService := service.NewAccountService(core, bonusRepo)
	wagerService := service.NewWagerService(core, wagerRepo, bonusRepo, gameRegistry, game.SystemRNG{}, service.WagerLimits{
		MinBet: cfg.Wager.MinBet,
		MaxBet: cfg.Wager.MaxBet,
	})
	promotionService := service.NewPromotionService(
		core,
		repository.NewPromotionRepository(),
		repository.NewClaimRepository(),
		bonusRepo,
		cfg.Promotion.WageringMultiplier,
	)
	adminService := service.NewAdminService(core)
	referralService := service.NewReferralService(core, repository.NewReferralRepository(), cfg.Referral.PayoutAmount)
	historyService := service.NewHistoryService(auditor, cfg.Audit.HistoryPageSize)
	rankingService := service.NewRankingService(dbPool.Pool, wagerRepo, time.Local)

	// Background jobs
	keyIDs := make([]string, 0, len(keys))
	for id := range keys {
		keyIDs = append(keyIDs, id)
	}
	runner := jobs.NewRunner(auditor, auditor, promotionService, jobs.Options{
		Timeout:            cfg.Scheduler.JobTimeout,
		ActiveKeyID:        cfg.Audit.ActiveKeyID,
		KeyIDs:             keyIDs,
		ReencryptBatchSize: cfg.Audit.ReencryptBatchSize,
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(runner, cfg.Scheduler)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scheduler")
		}
		sched.Start()
	}

	if telegramBot != nil {
		telegramBot.Register(&bot.Dependencies{
			AccountService:   accountService,
			WagerService:     wagerService,
			PromotionService: promotionService,
			AdminService:     adminService,
			ReferralService:  referralService,
			HistoryService:   historyService,
			RankingService:   rankingService,
			GameRegistry:     gameRegistry,
		})
		go telegramBot.Start()
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Stop intake first, then background work, then drain notifications
	if telegramBot != nil {
		telegramBot.Stop()
	}
	if sched != nil {
		sched.Stop()
	}
	stopEmitter()
	select {
	case <-emitter.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Timed out draining notifications")
	}

	log.Info().Msg("Ledger stopped gracefully")
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
