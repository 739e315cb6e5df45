package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/config"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	redrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	broadcastsvc "github.com/tunngle1/newversionmusicbot/internal/services/broadcast"
	downloadsvc "github.com/tunngle1/newversionmusicbot/internal/services/downloads"
	entsvc "github.com/tunngle1/newversionmusicbot/internal/services/entitlements"
	lyricssvc "github.com/tunngle1/newversionmusicbot/internal/services/lyrics"
	musicsvc "github.com/tunngle1/newversionmusicbot/internal/services/music"
	paymentsvc "github.com/tunngle1/newversionmusicbot/internal/services/payments"
	referralsvc "github.com/tunngle1/newversionmusicbot/internal/services/referrals"
	userssvc "github.com/tunngle1/newversionmusicbot/internal/services/users"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService        *authsvc.Service
	EntitlementService *entsvc.Service
	PaymentService     *paymentsvc.Service
	ReferralService    *referralsvc.Service
	MusicService       *musicsvc.Service
	LyricsService      *lyricssvc.Service
	DownloadService    *downloadsvc.Service
	UserService        *userssvc.Service
	BroadcastService   *broadcastsvc.Service
	PaymentRepo        *pgrepo.PaymentRepo
	CacheRepo          *redrepo.CacheRepo
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.EntitlementService)
	paymentsHandler := handlers.NewPaymentsHandler(deps.PaymentService, deps.Logger)
	referralHandler := handlers.NewReferralHandler(deps.ReferralService)
	musicHandler := handlers.NewMusicHandler(deps.MusicService)
	streamHandler := handlers.NewStreamHandler(deps.Config.Music.BaseURL, deps.Config.Music.StreamTimeout, deps.Logger)
	lyricsHandler := handlers.NewLyricsHandler(deps.LyricsService)
	downloadHandler := handlers.NewDownloadHandler(deps.DownloadService)
	adminHandler := handlers.NewAdminHandler(deps.UserService, deps.PaymentRepo, deps.BroadcastService, deps.CacheRepo)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	adminMW := RequireRole("admin")

	r.Get("/healthz", healthHandler.Get)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/telegram", authHandler.Telegram)
			r.Post("/refresh", authHandler.Refresh)
			r.With(authMW).Post("/logout", authHandler.Logout)
			r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
		})

		// Mini App entry: auth and bootstrap in one call.
		r.Post("/user/auth", authHandler.Telegram)
		r.With(authMW).Get("/user/subscription-status", subscriptionHandler.Status)

		r.Route("/payments", func(r chi.Router) {
			r.Get("/config", paymentsHandler.Config)
			r.With(authMW).Post("/stars/invoice", paymentsHandler.CreateStarsInvoice)
			r.With(authMW).Post("/ton/verify", paymentsHandler.VerifyTON)
		})
		r.Post("/webhook/tribute", paymentsHandler.TributeWebhook)

		r.Route("/referral", func(r chi.Router) {
			r.Use(authMW)
			r.Get("/code", referralHandler.Code)
			r.Post("/register", referralHandler.Register)
			r.Get("/stats", referralHandler.Stats)
		})

		r.Get("/search", musicHandler.Search)
		r.Get("/search/artist", musicHandler.SearchByArtist)
		r.Get("/search/track", musicHandler.SearchByTrack)
		r.Get("/genre/{id}", musicHandler.GenreTracks)
		r.Get("/radio", musicHandler.RadioStations)
		r.Get("/stream", streamHandler.Handle)
		r.Get("/lyrics", lyricsHandler.Get)

		r.With(authMW).Post("/download", downloadHandler.SendToChat)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMW, adminMW)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/transactions", adminHandler.Transactions)
			r.Get("/users", adminHandler.Users)
			r.Get("/users/top", adminHandler.TopUsers)
			r.Post("/users/{id}/grant", adminHandler.Grant)
			r.Get("/activity", adminHandler.Activity)
			r.Post("/broadcast", adminHandler.Broadcast)
			r.Get("/broadcast/status", adminHandler.BroadcastStatus)
			r.Get("/cache/stats", adminHandler.CacheStats)
			r.Post("/cache/reset", adminHandler.CacheReset)
		})
	})
}
