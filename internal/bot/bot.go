// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/config"
	"credit-ledger/internal/game"
	"credit-ledger/internal/handler"
	"credit-ledger/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	identity *handler.Identity

	// Handlers
	accountHandler   *handler.AccountHandler
	gameHandler      *handler.GameHandler
	promotionHandler *handler.PromotionHandler
	adminHandler     *handler.AdminHandler
	rankingHandler   *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	AccountService   *service.AccountService
	WagerService     *service.WagerService
	PromotionService *service.PromotionService
	AdminService     *service.AdminService
	ReferralService  *service.ReferralService
	HistoryService   *service.HistoryService
	RankingService   *service.RankingService
	GameRegistry     *game.Registry
}

// New creates the Telegram client. Handlers are attached later with
// Register so the client can serve as a notification sender first.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{bot: teleBot, cfg: cfg}, nil
}

// Register builds the handlers and routes every command.
func (b *Bot) Register(deps *Dependencies) {
	b.identity = handler.NewIdentity(deps.AccountService, b.cfg)

	b.accountHandler = handler.NewAccountHandler(
		b.identity, deps.AccountService, deps.HistoryService, deps.RankingService, b.cfg.Account.OpeningBalance,
	)
	b.gameHandler = handler.NewGameHandler(b.identity, deps.WagerService, deps.GameRegistry)
	b.promotionHandler = handler.NewPromotionHandler(b.identity, deps.PromotionService)
	b.adminHandler = handler.NewAdminHandler(b.identity, deps.AccountService, deps.AdminService, deps.ReferralService)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)

	b.registerMiddleware()
	b.registerHandlers()
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)

	// Game handlers
	b.bot.Handle("/games", b.gameHandler.HandleGames)
	b.bot.Handle("/wager", b.gameHandler.HandleWager)

	// Promotion handlers; role checks happen in the service
	b.bot.Handle("/promotions", b.promotionHandler.HandleList)
	b.bot.Handle("/promo", b.promotionHandler.HandleCreate)
	b.bot.Handle("/cancel_promo", b.promotionHandler.HandleCancel)
	b.bot.Handle("/claim", b.promotionHandler.HandleClaim)
	b.bot.Handle("/pending", b.promotionHandler.HandlePending)
	b.bot.Handle("/approve", b.promotionHandler.HandleApprove)
	b.bot.Handle("/reject", b.promotionHandler.HandleReject)

	// Ranking handler
	b.bot.Handle("/daily_top", b.rankingHandler.HandleDailyTop)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.identity))
	adminGroup.Handle("/adjust", b.adminHandler.HandleAdjust)
	adminGroup.Handle("/referral", b.adminHandler.HandleReferral)
	adminGroup.Handle("/register", b.adminHandler.HandleRegister)
	adminGroup.Handle("/level", b.adminHandler.HandleSetLevel)
	adminGroup.Handle("/close", b.adminHandler.HandleClose)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Telegram returns the underlying telebot instance.
func (b *Bot) Telegram() *tele.Bot {
	return b.bot
}
