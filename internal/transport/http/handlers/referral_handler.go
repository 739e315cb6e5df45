package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	referralsvc "github.com/tunngle1/newversionmusicbot/internal/services/referrals"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type ReferralHandler struct {
	service *referralsvc.Service
}

func NewReferralHandler(service *referralsvc.Service) *ReferralHandler {
	return &ReferralHandler{service: service}
}

func (h *ReferralHandler) Code(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REFERRAL_SERVICE_UNAVAILABLE", "referral service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	code, err := h.service.CodeFor(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}
	link, err := h.service.InviteLink(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReferralCodeResponse{Code: code, InviteLink: link})
}

func (h *ReferralHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REFERRAL_SERVICE_UNAVAILABLE", "referral service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.ReferralRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	ref, err := h.service.Register(r.Context(), identity.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, referralsvc.ErrInvalidCode):
			writeBadRequest(w, "INVALID_CODE", "referral code is not recognized")
		case errors.Is(err, referralsvc.ErrSelfReferral):
			writeBadRequest(w, "SELF_REFERRAL", "you cannot use your own code")
		case errors.Is(err, referralsvc.ErrAlreadyReferred):
			writeBadRequest(w, "ALREADY_REFERRED", "referral is already registered")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReferralRegisterResponse{
		OK:         true,
		ReferrerID: ref.ReferrerID,
		Status:     string(ref.Status),
	})
}

func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REFERRAL_SERVICE_UNAVAILABLE", "referral service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	stats, err := h.service.StatsFor(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, stats)
}
