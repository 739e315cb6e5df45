package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	redrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
	broadcastsvc "github.com/tunngle1/newversionmusicbot/internal/services/broadcast"
	userssvc "github.com/tunngle1/newversionmusicbot/internal/services/users"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type AdminHandler struct {
	users     *userssvc.Service
	payments  *pgrepo.PaymentRepo
	broadcast *broadcastsvc.Service
	cache     *redrepo.CacheRepo
	now       func() time.Time
}

func NewAdminHandler(users *userssvc.Service, payments *pgrepo.PaymentRepo, broadcast *broadcastsvc.Service, cache *redrepo.CacheRepo) *AdminHandler {
	return &AdminHandler{
		users:     users,
		payments:  payments,
		broadcast: broadcast,
		cache:     cache,
		now:       time.Now,
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.users == nil || h.payments == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	userStats, err := h.users.Stats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	revenue, err := h.payments.RevenueByCurrency(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	dayStart := h.now().Truncate(24 * time.Hour)
	paymentsToday, err := h.payments.CountSince(r.Context(), dayStart)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := dto.AdminStatsResponse{
		TotalUsers:    userStats.Total,
		PremiumUsers:  userStats.Premium,
		PremiumPro:    userStats.PremiumPro,
		BlockedUsers:  userStats.Blocked,
		ActiveTrials:  userStats.ActiveTrial,
		NewToday:      userStats.NewToday,
		PaymentsToday: paymentsToday,
		Revenue:       make([]dto.RevenueLineResponse, 0, len(revenue)),
	}
	for _, line := range revenue {
		resp.Revenue = append(resp.Revenue, dto.RevenueLineResponse{
			Currency: line.Currency,
			Total:    line.Total,
			Count:    line.Count,
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	filter := pgrepo.PaymentFilter{
		UserID: queryInt64(r, "user_id", 0),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = enums.PaymentStatus(raw)
	}

	payments, total, err := h.payments.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TransactionsPageResponse{
		Transactions: payments,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	filter := pgrepo.UserFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("premium"); raw != "" {
		v := raw == "true" || raw == "1"
		filter.Premium = &v
	}
	if raw := r.URL.Query().Get("blocked"); raw != "" {
		v := raw == "true" || raw == "1"
		filter.Blocked = &v
	}

	users, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UsersPageResponse{
		Users:  users,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *AdminHandler) TopUsers(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	users, err := h.users.TopByDownloads(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TopUsersResponse{Users: users})
}

func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	days := queryInt(r, "days", 30)
	buckets, err := h.users.ActivityByDay(r.Context(), days)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := dto.ActivityResponse{
		Days:    days,
		Buckets: make([]dto.ActivityBucketResponse, 0, len(buckets)),
	}
	for _, b := range buckets {
		resp.Buckets = append(resp.Buckets, dto.ActivityBucketResponse{Day: b.Day, Joined: b.Joined})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin backend is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "INVALID_REQUEST", "user id must be a positive integer")
		return
	}

	var req dto.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	user, err := h.users.Grant(r.Context(), userID, userssvc.GrantInput{
		IsAdmin:      req.IsAdmin,
		IsPremium:    req.IsPremium,
		IsPremiumPro: req.IsPremiumPro,
		IsBlocked:    req.IsBlocked,
		TrialDays:    req.TrialDays,
		PremiumDays:  req.PremiumDays,
	})
	if err != nil {
		if errors.Is(err, userssvc.ErrUserNotFound) {
			writeNotFound(w, "USER_NOT_FOUND", "user not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, user)
}

func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	if h.broadcast == nil {
		writeInternal(w, "BROADCAST_SERVICE_UNAVAILABLE", "broadcast service is unavailable")
		return
	}

	var req dto.BroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	recipients, err := h.broadcast.Start(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, broadcastsvc.ErrEmptyMessage):
			writeBadRequest(w, "EMPTY_MESSAGE", "broadcast message is required")
		case errors.Is(err, broadcastsvc.ErrBusy):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "BROADCAST_RUNNING",
				Message: "a broadcast is already in progress",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BroadcastResponse{Started: true, Recipients: recipients})
}

func (h *AdminHandler) BroadcastStatus(w http.ResponseWriter, _ *http.Request) {
	if h.broadcast == nil {
		writeInternal(w, "BROADCAST_SERVICE_UNAVAILABLE", "broadcast service is unavailable")
		return
	}

	httperrors.Write(w, http.StatusOK, h.broadcast.Status())
}

func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeInternal(w, "CACHE_UNAVAILABLE", "cache is unavailable")
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CacheStatsResponse{
		Entries: stats.Entries,
		Hits:    stats.Hits,
		Misses:  stats.Misses,
	})
}

func (h *AdminHandler) CacheReset(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeInternal(w, "CACHE_UNAVAILABLE", "cache is unavailable")
		return
	}

	if err := h.cache.Reset(r.Context()); err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CacheResetResponse{OK: true})
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
