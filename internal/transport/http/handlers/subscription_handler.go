package handlers

import (
	"errors"
	"net/http"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	"github.com/tunngle1/newversionmusicbot/internal/domain/rules"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	entsvc "github.com/tunngle1/newversionmusicbot/internal/services/entitlements"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type SubscriptionHandler struct {
	entitlements *entsvc.Service
}

func NewSubscriptionHandler(entitlements *entsvc.Service) *SubscriptionHandler {
	return &SubscriptionHandler{entitlements: entitlements}
}

func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENT_SERVICE_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	status, err := h.entitlements.StatusFor(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			writeNotFound(w, "USER_NOT_FOUND", "user not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, subscriptionStatus(status.User, status.Decision))
}

func subscriptionStatus(user model.User, decision rules.AccessDecision) dto.SubscriptionStatusResponse {
	return dto.SubscriptionStatusResponse{
		UserID:           user.ID,
		HasAccess:        decision.HasAccess,
		Reason:           string(decision.Reason),
		IsAdmin:          user.IsAdmin,
		IsPremium:        user.IsPremium,
		IsPremiumPro:     user.IsPremiumPro,
		IsBlocked:        user.IsBlocked,
		TrialDaysLeft:    decision.TrialDaysLeft,
		TrialExpiresAt:   decision.TrialExpiresAt,
		PremiumExpiresAt: user.PremiumExpiresAt,
		DownloadCount:    user.DownloadCount,
	}
}
