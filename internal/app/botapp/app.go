package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/config"
	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	tginfra "github.com/tunngle1/newversionmusicbot/internal/infra/telegram"
	"github.com/tunngle1/newversionmusicbot/internal/jobs/cleanup"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	paymentsvc "github.com/tunngle1/newversionmusicbot/internal/services/payments"
	referralsvc "github.com/tunngle1/newversionmusicbot/internal/services/referrals"
	userssvc "github.com/tunngle1/newversionmusicbot/internal/services/users"
)

const welcomeText = "🎧 Welcome! Open the Mini App to search and listen to music.\nYour free trial is already running."

// App is the long-poll side of the service. It bootstraps users on /start,
// approves and credits Telegram Stars charges, and runs the expired track
// cleanup on a cron schedule.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	bot      *tginfra.Bot

	users      *userssvc.Service
	payments   *paymentsvc.Service
	cleanupJob *cleanup.Job
	cron       *cron.Cron
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		bot, err = tginfra.NewBot(cfg.Bot.Token)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, update listener disabled")
	}

	userRepo := pgrepo.NewUserRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	referralRepo := pgrepo.NewReferralRepo(pool)
	deliveredRepo := pgrepo.NewDeliveredRepo(pool)
	creditStore := pgrepo.NewCreditStore(pool, paymentRepo, userRepo)
	rewardStore := pgrepo.NewRewardStore(pool, referralRepo, userRepo)

	referralService := referralsvc.NewService(referralsvc.Dependencies{
		Users:     userRepo,
		Referrals: referralRepo,
		Rewards:   rewardStore,
		Notifier:  notifier(bot),
	}, cfg.Payments.ReferralBonusDays, cfg.Bot.Username, logger)

	userService := userssvc.NewService(userssvc.Dependencies{
		Store:     userRepo,
		Referrals: referralService,
		Notifier:  notifier(bot),
	}, cfg.Auth.TrialDays, cfg.Auth.OwnerID, cfg.Cleanup.Grace, logger)

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Ledger:   creditStore,
		Rewards:  referralService,
		Invoices: invoiceCreator(bot),
		Notifier: notifier(bot),
	}, paymentConfig(cfg.Payments, logger), logger)

	cleanupJob := cleanup.New(userRepo, deliveredRepo, messenger(bot), logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		postgres:   pool,
		bot:        bot,
		users:      userService,
		payments:   paymentService,
		cleanupJob: cleanupJob,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	if err := a.startCleanupSchedule(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, tginfra.Handlers{
				OnCommand:           a.handleCommand,
				OnPreCheckout:       a.handlePreCheckout,
				OnSuccessfulPayment: a.handleSuccessfulPayment,
			})
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) startCleanupSchedule() error {
	schedule := strings.TrimSpace(a.cfg.Cleanup.Schedule)
	if schedule == "" {
		a.logger.Warn("cleanup schedule is empty, expired tracks will not be revoked")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := a.cleanupJob.Run(context.Background()); err != nil {
			a.logger.Error("expired track cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup job %q: %w", schedule, err)
	}

	c.Start()
	a.cron = c
	a.logger.Info("cleanup job scheduled", zap.String("schedule", schedule))
	return nil
}

// handleCommand only reacts to /start. The deep link payload after /start is
// the inviter's referral code and rides into Bootstrap as the start param.
func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	if update.Command != "start" {
		return nil
	}

	_, err := a.users.Bootstrap(ctx, authsvc.TelegramProfile{
		ID:         update.UserID,
		Username:   update.Username,
		StartParam: strings.TrimSpace(update.Args),
	})
	if err != nil {
		a.logger.Error("bootstrap on /start failed", zap.Int64("user_id", update.UserID), zap.Error(err))
		return nil
	}

	if err := a.bot.SendText(ctx, update.ChatID, welcomeText); err != nil {
		a.logger.Warn("welcome message failed", zap.Int64("chat_id", update.ChatID), zap.Error(err))
	}
	return nil
}

// handlePreCheckout must answer within 10 seconds or Telegram cancels the
// charge, so the only check is that the payload names a known plan.
func (a *App) handlePreCheckout(ctx context.Context, update tginfra.PreCheckoutUpdate) error {
	if err := a.payments.ValidateStarsPayload(update.Payload); err != nil {
		a.logger.Warn("pre-checkout rejected",
			zap.Int64("user_id", update.UserID),
			zap.String("payload", update.Payload),
			zap.Error(err))
		return a.bot.AnswerPreCheckout(ctx, update.QueryID, false, "Unknown subscription plan. Start the purchase again from the app.")
	}

	return a.bot.AnswerPreCheckout(ctx, update.QueryID, true, "")
}

func (a *App) handleSuccessfulPayment(ctx context.Context, update tginfra.SuccessfulPaymentUpdate) error {
	result, err := a.payments.HandleStarsPayment(ctx, paymentsvc.StarsPaymentInput{
		UserID:         update.UserID,
		Currency:       update.Currency,
		TotalAmount:    update.TotalAmount,
		InvoicePayload: update.InvoicePayload,
		ChargeID:       update.TelegramChargeID,
	})
	if err != nil {
		a.logger.Error("stars payment crediting failed",
			zap.Int64("user_id", update.UserID),
			zap.String("charge_id", update.TelegramChargeID),
			zap.Error(err))
		return nil
	}

	a.logger.Info("stars payment credited",
		zap.Int64("user_id", update.UserID),
		zap.String("charge_id", update.TelegramChargeID),
		zap.Bool("already_processed", result.AlreadyProcessed))
	return nil
}

func (a *App) Close() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	a.logger.Info("bot app shut down")
}

// paymentConfig mirrors the API wiring: prices are parsed once and malformed
// values fall back to defaults instead of refusing to start.
func paymentConfig(cfg config.PaymentsConfig, log *zap.Logger) paymentsvc.Config {
	parsePrice := func(raw, fallback string) decimal.Decimal {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			log.Warn("malformed ton price, using fallback", zap.String("raw", raw))
			return decimal.RequireFromString(fallback)
		}
		return d
	}

	products := make(map[string]enums.Plan, len(cfg.TributeProducts))
	for productID, rawPlan := range cfg.TributeProducts {
		plan, ok := enums.ParsePlan(rawPlan)
		if !ok {
			log.Warn("unknown plan in tribute product map", zap.String("product_id", productID), zap.String("plan", rawPlan))
			continue
		}
		products[productID] = plan
	}

	return paymentsvc.Config{
		StarsPriceMonth:  cfg.StarsPriceMonth,
		StarsPriceYear:   cfg.StarsPriceYear,
		TONPriceMonth:    parsePrice(cfg.TONPriceMonth, "1.0"),
		TONPriceYear:     parsePrice(cfg.TONPriceYear, "10.0"),
		TONWallet:        cfg.TONWallet,
		TONFreshness:     cfg.TONFreshness,
		TributeSecret:    cfg.TributeSecret,
		TributeLinkMonth: cfg.TributeLinkMonth,
		TributeLinkYear:  cfg.TributeLinkYear,
		TributeProducts:  products,
	}
}

func notifier(bot *tginfra.Bot) paymentsvc.Notifier {
	if bot == nil {
		return nil
	}
	return bot
}

func invoiceCreator(bot *tginfra.Bot) paymentsvc.InvoiceCreator {
	if bot == nil {
		return nil
	}
	return bot
}

func messenger(bot *tginfra.Bot) cleanup.Messenger {
	if bot == nil {
		return nil
	}
	return bot
}
