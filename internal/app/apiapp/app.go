package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/config"
	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/infra/genius"
	"github.com/tunngle1/newversionmusicbot/internal/infra/hitmo"
	"github.com/tunngle1/newversionmusicbot/internal/infra/telegram"
	"github.com/tunngle1/newversionmusicbot/internal/infra/tonapi"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	redrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	broadcastsvc "github.com/tunngle1/newversionmusicbot/internal/services/broadcast"
	downloadsvc "github.com/tunngle1/newversionmusicbot/internal/services/downloads"
	entsvc "github.com/tunngle1/newversionmusicbot/internal/services/entitlements"
	lyricssvc "github.com/tunngle1/newversionmusicbot/internal/services/lyrics"
	musicsvc "github.com/tunngle1/newversionmusicbot/internal/services/music"
	paymentsvc "github.com/tunngle1/newversionmusicbot/internal/services/payments"
	ratesvc "github.com/tunngle1/newversionmusicbot/internal/services/rate"
	referralsvc "github.com/tunngle1/newversionmusicbot/internal/services/referrals"
	userssvc "github.com/tunngle1/newversionmusicbot/internal/services/users"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	var redisClient *goredis.Client
	if c, err := redrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, continuing in degraded mode", zap.Error(err))
	} else {
		redisClient = c
	}

	var bot *telegram.Bot
	if b, err := telegram.NewBot(cfg.Bot.Token); err != nil {
		log.Warn("telegram bot init failed, notifications disabled", zap.Error(err))
	} else {
		bot = b
	}

	userRepo := pgrepo.NewUserRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	referralRepo := pgrepo.NewReferralRepo(pool)
	lyricsRepo := pgrepo.NewLyricsRepo(pool)
	deliveredRepo := pgrepo.NewDeliveredRepo(pool)
	creditStore := pgrepo.NewCreditStore(pool, paymentRepo, userRepo)
	rewardStore := pgrepo.NewRewardStore(pool, referralRepo, userRepo)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	cacheRepo := redrepo.NewCacheRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)

	referralService := referralsvc.NewService(referralsvc.Dependencies{
		Users:     userRepo,
		Referrals: referralRepo,
		Rewards:   rewardStore,
		Notifier:  notifier(bot),
	}, cfg.Payments.ReferralBonusDays, cfg.Bot.Username, log)

	userService := userssvc.NewService(userssvc.Dependencies{
		Store:     userRepo,
		Referrals: referralService,
		Notifier:  notifier(bot),
	}, cfg.Auth.TrialDays, cfg.Auth.OwnerID, cfg.Cleanup.Grace, log)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userService, cfg.Bot.Token, cfg.Auth.OwnerID, cfg.Auth.RefreshTTL)

	entitlementService := entsvc.NewService(userRepo)

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Ledger:   creditStore,
		Rewards:  referralService,
		Invoices: invoiceCreator(bot),
		Decoder:  paymentsvc.CellBocDecoder{},
		Indexer:  tonapi.NewClient(cfg.Payments.TONAPIBaseURL, cfg.Payments.TONAPIKey, cfg.Payments.TONAPITimeout),
		Notifier: notifier(bot),
	}, paymentConfig(cfg.Payments, log), log)

	catalog := hitmo.NewClient(cfg.Music.BaseURL, cfg.Music.Timeout)
	musicService := musicsvc.NewService(catalog, cacheRepo, cfg.Cache.TTL, log)

	lyricsProvider := genius.NewClient(cfg.Lyrics.GeniusToken, cfg.Lyrics.Timeout)
	lyricsService := lyricssvc.NewService(lyricsRepo, lyricsProvider, log)

	downloadLimiter := ratesvc.NewLimiter(rateRepo, cfg.Limits.DownloadsPerMinute, cfg.Limits.DownloadsPerHour)
	downloadService := downloadsvc.NewService(downloadsvc.Dependencies{
		Sender:    audioSender(bot),
		Users:     userRepo,
		Delivered: deliveredRepo,
		Limiter:   downloadLimiter,
		Referer:   cfg.Music.BaseURL + "/",
	}, log)

	broadcastService := broadcastsvc.NewService(userRepo, notifier(bot), cfg.Limits.BroadcastSendInterval, log)

	RegisterRoutes(r, Dependencies{
		AuthService:        authService,
		EntitlementService: entitlementService,
		PaymentService:     paymentService,
		ReferralService:    referralService,
		MusicService:       musicService,
		LyricsService:      lyricsService,
		DownloadService:    downloadService,
		UserService:        userService,
		BroadcastService:   broadcastService,
		PaymentRepo:        paymentRepo,
		CacheRepo:          cacheRepo,
		Logger:             log,
		Config:             cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

// paymentConfig parses plan prices once; malformed values fall back to the
// defaults rather than taking the API down.
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

// The typed-nil helpers keep a failed bot init from turning into a non-nil
// interface that panics on first use.
func notifier(bot *telegram.Bot) paymentsvc.Notifier {
	if bot == nil {
		return nil
	}
	return bot
}

func invoiceCreator(bot *telegram.Bot) paymentsvc.InvoiceCreator {
	if bot == nil {
		return nil
	}
	return bot
}

func audioSender(bot *telegram.Bot) downloadsvc.AudioSender {
	if bot == nil {
		return nil
	}
	return bot
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
